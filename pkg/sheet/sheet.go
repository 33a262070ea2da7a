// Package sheet composites a normalized subject onto a print-ready sheet and
// encodes it as a 300 DPI JPEG.
package sheet

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"

	"github.com/menta2k/passport-photo/pkg/layout"
	"github.com/menta2k/passport-photo/pkg/preset"
)

// PrintDPI is the resolution stamped on every composed sheet
const PrintDPI = 300

// JPEGQuality is the encoder quality used for sheets
const JPEGQuality = 95

// ErrPlanMismatch is returned when a layout plan was computed for another geometry
var ErrPlanMismatch = errors.New("layout plan does not match preset")

// PrintSheet is a flat (opaque) raster plus its declared resolution
type PrintSheet struct {
	Image *image.RGBA
	DPIX  int
	DPIY  int
}

// Width returns the sheet width in pixels
func (s *PrintSheet) Width() int { return s.Image.Bounds().Dx() }

// Height returns the sheet height in pixels
func (s *PrintSheet) Height() int { return s.Image.Bounds().Dy() }

// Compose resizes subject to the preset's photo cell, pastes it at every position of
// plan over a canvas filled with bg, and returns the flattened sheet at 300 DPI.
// The subject's alpha channel is the blend mask; the result carries no transparency.
func Compose(subject image.Image, plan layout.Plan, p preset.Preset, bg color.Color) (*PrintSheet, error) {
	if subject == nil {
		return nil, fmt.Errorf("subject image is nil")
	}
	if b := subject.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("subject image is empty")
	}
	if plan.CanvasW != p.CanvasW || plan.CanvasH != p.CanvasH ||
		plan.PhotoW != p.PhotoW || plan.PhotoH != p.PhotoH {
		return nil, fmt.Errorf("%w: plan canvas %dx%d photo %dx%d, preset %s canvas %dx%d photo %dx%d",
			ErrPlanMismatch, plan.CanvasW, plan.CanvasH, plan.PhotoW, plan.PhotoH,
			p.Name, p.CanvasW, p.CanvasH, p.PhotoW, p.PhotoH)
	}

	cell := imaging.Resize(subject, p.PhotoW, p.PhotoH, imaging.Lanczos)

	canvas := image.NewRGBA(image.Rect(0, 0, p.CanvasW, p.CanvasH))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(opaque(bg)), image.Point{}, draw.Src)

	for _, r := range plan.Rects() {
		draw.Draw(canvas, r, cell, image.Point{}, draw.Over)
	}

	return &PrintSheet{Image: canvas, DPIX: PrintDPI, DPIY: PrintDPI}, nil
}

func opaque(c color.Color) color.RGBA {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return color.RGBA{R: n.R, G: n.G, B: n.B, A: 0xff}
}
