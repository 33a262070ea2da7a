package matting

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func createTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{10, 20, 30, 255})
		}
	}
	return img
}

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Extract(context.Background(), createTestImage(20, 30))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 30 {
		t.Errorf("Expected 20x30, got %v", out.Bounds())
	}
	if !out.Opaque() {
		t.Error("Expected passthrough output to stay opaque")
	}

	if _, err := (Passthrough{}).Extract(context.Background(), nil); err == nil {
		t.Error("Expected error for nil image")
	}
}

func TestRembgClientExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/remove" {
			t.Errorf("Unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.FormValue("model"); got != "u2net_human_seg" {
			t.Errorf("Expected model field, got %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Missing file field: %v", err)
			return
		}
		defer f.Close()

		in, err := png.Decode(f)
		if err != nil {
			t.Errorf("Upload is not a PNG: %v", err)
			return
		}

		// cut out the right half
		b := in.Bounds()
		out := image.NewNRGBA(b)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Dx()/2; x++ {
				out.Set(x, y, in.At(x, y))
			}
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, out)
	}))
	defer srv.Close()

	c, err := NewRembgClient(srv.URL+"/", "u2net_human_seg")
	if err != nil {
		t.Fatal(err)
	}

	out, err := c.Extract(context.Background(), createTestImage(40, 40))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if out.NRGBAAt(5, 5).A != 255 {
		t.Error("Expected left half to stay opaque")
	}
	if out.NRGBAAt(35, 5).A != 0 {
		t.Error("Expected right half to be transparent")
	}
}

func TestRembgClientErrors(t *testing.T) {
	if _, err := NewRembgClient("", ""); err == nil {
		t.Error("Expected error for empty URL")
	}

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}},
		{"not a png", func(w http.ResponseWriter, r *http.Request) {
			io.Copy(w, bytes.NewReader([]byte("garbage")))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, _ := NewRembgClient(srv.URL, "")
			if _, err := c.Extract(context.Background(), createTestImage(10, 10)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abc", 5) != "abc" {
		t.Error("Expected short string unchanged")
	}
	if truncate("abcdef", 3) != "abc..." {
		t.Error("Expected long string truncated")
	}
}
