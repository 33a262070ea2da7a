package preset

import (
	"errors"
	"testing"
)

func TestLookupPassport(t *testing.T) {
	p, err := Lookup("passport")
	if err != nil {
		t.Fatalf("Lookup(passport) failed: %v", err)
	}

	if p.CanvasW != 1772 || p.CanvasH != 1181 {
		t.Errorf("Expected canvas 1772x1181, got %dx%d", p.CanvasW, p.CanvasH)
	}
	if p.PhotoW != 413 || p.PhotoH != 531 {
		t.Errorf("Expected photo 413x531, got %dx%d", p.PhotoW, p.PhotoH)
	}
	if p.FaceRatio == nil || *p.FaceRatio != 0.75 {
		t.Errorf("Expected face ratio 0.75, got %v", p.FaceRatio)
	}
}

func TestLookupVisa(t *testing.T) {
	p, err := Lookup("visa")
	if err != nil {
		t.Fatalf("Lookup(visa) failed: %v", err)
	}
	if p.PhotoW != 606 || p.PhotoH != 606 {
		t.Errorf("Expected photo 606x606, got %dx%d", p.PhotoW, p.PhotoH)
	}
	if p.FaceRatio == nil || *p.FaceRatio != 0.70 {
		t.Errorf("Expected face ratio 0.70, got %v", p.FaceRatio)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("driving-licence")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Fatalf("Expected ErrUnknownPreset, got %v", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	p, err := Lookup("passport")
	if err != nil {
		t.Fatal(err)
	}
	*p.FaceRatio = 0.1
	p.CanvasW = 1

	again, _ := Lookup("passport")
	if *again.FaceRatio != 0.75 || again.CanvasW != 1772 {
		t.Error("Mutating a looked-up preset changed the catalog")
	}
}

func TestCatalogConsistency(t *testing.T) {
	for _, p := range All() {
		if err := p.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", p.Name, err)
		}
		if got := MMToPixels(p.WidthMM, DPI); got != p.PhotoW {
			t.Errorf("preset %s: width_mm %.2f -> %dpx, table says %d", p.Name, p.WidthMM, got, p.PhotoW)
		}
		if got := MMToPixels(p.HeightMM, DPI); got != p.PhotoH {
			t.Errorf("preset %s: height_mm %.2f -> %dpx, table says %d", p.Name, p.HeightMM, got, p.PhotoH)
		}
		if got := MMToPixels(p.SheetWidthMM, DPI); got != p.CanvasW {
			t.Errorf("preset %s: sheet_width_mm %.2f -> %dpx, table says %d", p.Name, p.SheetWidthMM, got, p.CanvasW)
		}
		if got := MMToPixels(p.SheetHeightMM, DPI); got != p.CanvasH {
			t.Errorf("preset %s: sheet_height_mm %.2f -> %dpx, table says %d", p.Name, p.SheetHeightMM, got, p.CanvasH)
		}
	}
}

func TestMMToPixels(t *testing.T) {
	tests := []struct {
		mm   float64
		dpi  int
		want int
	}{
		{35, 300, 413},
		{45, 300, 531},
		{25.4, 300, 300},
		{25.4, 72, 72},
		{0, 300, 0},
	}

	for _, tt := range tests {
		if got := MMToPixels(tt.mm, tt.dpi); got != tt.want {
			t.Errorf("MMToPixels(%v, %d) = %d, want %d", tt.mm, tt.dpi, got, tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	names := Names()
	if len(names) != 2 || names[0] != "passport" || names[1] != "visa" {
		t.Errorf("Expected [passport visa], got %v", names)
	}
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := map[string]string{
		"canvas smaller than photo": `presets: [{name: a, canvas_w: 10, canvas_h: 10, photo_w: 20, photo_h: 5}]`,
		"face ratio above one":      `presets: [{name: a, face_ratio: 1.5, canvas_w: 10, canvas_h: 10, photo_w: 5, photo_h: 5}]`,
		"duplicate name":            `presets: [{name: a, canvas_w: 10, canvas_h: 10, photo_w: 5, photo_h: 5}, {name: a, canvas_w: 10, canvas_h: 10, photo_w: 5, photo_h: 5}]`,
		"missing name":              `presets: [{canvas_w: 10, canvas_h: 10, photo_w: 5, photo_h: 5}]`,
	}

	for name, doc := range tests {
		if _, err := parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}

func TestParseAllowsMissingFaceRatio(t *testing.T) {
	m, err := parse([]byte(`presets: [{name: id, canvas_w: 100, canvas_h: 100, photo_w: 50, photo_h: 50}]`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if m["id"].FaceRatio != nil {
		t.Errorf("Expected nil face ratio, got %v", *m["id"].FaceRatio)
	}
}
