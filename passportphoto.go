// Package passportphoto turns a cut-out portrait into a printable sheet of passport
// or visa photos.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		passportphoto "github.com/menta2k/passport-photo"
//		"github.com/menta2k/passport-photo/pkg/imageio"
//	)
//
//	func main() {
//		subject, err := imageio.New().LoadImage("cutout.png")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		s, err := passportphoto.BuildSheet(subject, nil, passportphoto.Options{
//			Preset:  "passport",
//			BGColor: "#ffffff",
//			Copies:  6,
//		})
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := passportphoto.WriteSheet(s, "sheet.jpg"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The work is split across packages:
//
// 1. Preset (pkg/preset): the catalog of photo formats and their pixel sizes at 300 DPI
// 2. Normalize (pkg/normalize): scales the subject so the face fills the preset's share of the photo
// 3. Layout (pkg/layout): places copies on the sheet in an evenly spaced grid
// 4. Sheet (pkg/sheet): paints the background, pastes the copies and writes a 300 DPI JPEG
//
// Background removal (pkg/matting) and face detection (pkg/detection) are collaborators
// supplied by the caller. BuildSheet accepts the face boxes they produce but does not run them.
package passportphoto

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/menta2k/passport-photo/pkg/layout"
	"github.com/menta2k/passport-photo/pkg/normalize"
	"github.com/menta2k/passport-photo/pkg/preset"
	"github.com/menta2k/passport-photo/pkg/sheet"
	"github.com/menta2k/passport-photo/pkg/types"
)

// Version of the passport photo library
const Version = "1.0.0"

// Options selects the format of the sheet
type Options struct {
	Preset  string
	BGColor string
	Copies  int
}

// LookupPreset returns the named preset
func LookupPreset(name string) (preset.Preset, error) {
	return preset.Lookup(name)
}

// NormalizeSubject scales subject so the face box occupies ratio of its height.
// A nil box or ratio returns an unscaled copy.
func NormalizeSubject(subject image.Image, box *types.BoundingBox, ratio *float64) (*image.NRGBA, error) {
	return normalize.Subject(subject, box, ratio)
}

// PlanGrid computes where copies go on a canvas
func PlanGrid(canvasW, canvasH, photoW, photoH, copies int) (layout.Plan, error) {
	return layout.New(canvasW, canvasH, photoW, photoH, copies)
}

// ComposeSheet renders the planned copies of subject over bg
func ComposeSheet(subject image.Image, plan layout.Plan, p preset.Preset, bg color.Color) (*sheet.PrintSheet, error) {
	return sheet.Compose(subject, plan, p, bg)
}

// ValidatePrintReady reports whether s declares at least 300 DPI
func ValidatePrintReady(s *sheet.PrintSheet) error {
	return sheet.ValidatePrintReady(s)
}

// BuildSheet runs the whole pipeline on a cut-out subject. faces are the boxes a face
// detector reported for subject; only the first is used and none means no scaling.
func BuildSheet(subject image.Image, faces []types.BoundingBox, opts Options) (*sheet.PrintSheet, error) {
	p, err := preset.Lookup(opts.Preset)
	if err != nil {
		return nil, err
	}

	bg, err := sheet.ParseHexColor(opts.BGColor)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize.Subject(subject, normalize.FirstFace(faces), p.FaceRatio)
	if err != nil {
		return nil, fmt.Errorf("normalize subject: %w", err)
	}

	plan, err := layout.New(p.CanvasW, p.CanvasH, p.PhotoW, p.PhotoH, opts.Copies)
	if err != nil {
		return nil, fmt.Errorf("plan %s sheet: %w", p.Name, err)
	}

	s, err := sheet.Compose(normalized, plan, p, bg)
	if err != nil {
		return nil, err
	}

	if err := sheet.ValidatePrintReady(s); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteSheet encodes s as a 300 DPI JPEG at path
func WriteSheet(s *sheet.PrintSheet, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	if err := s.Encode(f); err != nil {
		return fmt.Errorf("failed to encode sheet: %w", err)
	}
	return f.Close()
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
