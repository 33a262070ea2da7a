// Package preset holds the fixed catalog of photo geometries (passport, visa, ...)
// used to lay out print sheets.
package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

// DPI is the print resolution every preset's pixel values are computed for
const DPI = 300

// ErrUnknownPreset is returned by Lookup when no preset is registered under the name
var ErrUnknownPreset = errors.New("unknown preset")

//go:embed presets.yaml
var presetsYAML []byte

// Preset describes the physical and pixel geometry of one photo type.
// FaceRatio is nil when the preset does no face-relative scaling.
type Preset struct {
	Name          string   `yaml:"name" json:"name"`
	WidthMM       float64  `yaml:"width_mm" json:"width_mm"`
	HeightMM      float64  `yaml:"height_mm" json:"height_mm"`
	FaceRatio     *float64 `yaml:"face_ratio" json:"face_ratio,omitempty"`
	SheetWidthMM  float64  `yaml:"sheet_width_mm" json:"sheet_width_mm"`
	SheetHeightMM float64  `yaml:"sheet_height_mm" json:"sheet_height_mm"`
	CanvasW       int      `yaml:"canvas_w" json:"canvas_w"`
	CanvasH       int      `yaml:"canvas_h" json:"canvas_h"`
	PhotoW        int      `yaml:"photo_w" json:"photo_w"`
	PhotoH        int      `yaml:"photo_h" json:"photo_h"`
}

// Validate checks the preset's internal consistency
func (p Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("preset name is empty")
	}
	if p.PhotoW <= 0 || p.PhotoH <= 0 {
		return fmt.Errorf("preset %s: photo size must be positive, got %dx%d", p.Name, p.PhotoW, p.PhotoH)
	}
	if p.CanvasW < p.PhotoW || p.CanvasH < p.PhotoH {
		return fmt.Errorf("preset %s: canvas %dx%d smaller than photo %dx%d",
			p.Name, p.CanvasW, p.CanvasH, p.PhotoW, p.PhotoH)
	}
	if p.FaceRatio != nil && (*p.FaceRatio <= 0 || *p.FaceRatio > 1) {
		return fmt.Errorf("preset %s: face_ratio must be in (0,1], got %v", p.Name, *p.FaceRatio)
	}
	return nil
}

type catalogFile struct {
	Presets []Preset `yaml:"presets"`
}

// catalog is built once at init and only read afterwards
var catalog = mustLoad(presetsYAML)

func mustLoad(data []byte) map[string]Preset {
	m, err := parse(data)
	if err != nil {
		panic("failed to load embedded presets.yaml: " + err.Error())
	}
	return m
}

func parse(data []byte) (map[string]Preset, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	m := make(map[string]Preset, len(file.Presets))
	for _, p := range file.Presets {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q", p.Name)
		}
		m[p.Name] = p
	}
	return m, nil
}

// Lookup returns the preset registered under name
func Lookup(name string) (Preset, error) {
	p, ok := catalog[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	if p.FaceRatio != nil {
		r := *p.FaceRatio
		p.FaceRatio = &r
	}
	return p, nil
}

// Names returns the registered preset names in sorted order
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered preset sorted by name
func All() []Preset {
	names := Names()
	out := make([]Preset, 0, len(names))
	for _, name := range names {
		p, _ := Lookup(name)
		out = append(out, p)
	}
	return out
}

// MMToPixels converts a physical length to pixels at dpi: round(mm / 25.4 * dpi).
// Use it when deriving new presets; runtime code reads the stored pixel values.
func MMToPixels(mm float64, dpi int) int {
	return int(math.Round(mm / 25.4 * float64(dpi)))
}
