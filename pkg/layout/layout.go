// Package layout plans where copies of a photo cell go on a print sheet.
//
// Grid shapes come from a curated table keyed by copy count rather than from a
// packing algorithm, so that sheets match the standard photo-sheet products
// operators expect. Spacing distributes the leftover canvas evenly, giving equal
// outer margins and inner gutters.
package layout

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrLayoutOverflow is returned when the grid does not fit on the canvas
	ErrLayoutOverflow = errors.New("layout overflow")
	// ErrInvalidCopies is returned for a copy count below one
	ErrInvalidCopies = errors.New("invalid copy count")
)

// GridShape is a columns × rows arrangement
type GridShape struct {
	Columns int
	Rows    int
}

// Capacity returns the number of cells in the grid
func (g GridShape) Capacity() int {
	return g.Columns * g.Rows
}

// DefaultShape is used for copy counts missing from the shape table
var DefaultShape = GridShape{Columns: 3, Rows: 2}

var shapes = map[int]GridShape{
	4: {Columns: 2, Rows: 2},
	6: {Columns: 3, Rows: 2},
	8: {Columns: 4, Rows: 2},
}

// Shape returns the grid shape used for a multi-copy sheet
func Shape(copies int) GridShape {
	if s, ok := shapes[copies]; ok {
		return s
	}
	return DefaultShape
}

// Plan is the ordered list of top-left positions of the photo cells on a sheet
type Plan struct {
	CanvasW   int
	CanvasH   int
	PhotoW    int
	PhotoH    int
	Shape     GridShape
	SpacingX  int
	SpacingY  int
	Positions []image.Point
}

// Len returns the number of planned copies
func (p Plan) Len() int {
	return len(p.Positions)
}

// Rects returns the photo cell rectangles in plan order
func (p Plan) Rects() []image.Rectangle {
	rects := make([]image.Rectangle, len(p.Positions))
	for i, pt := range p.Positions {
		rects[i] = image.Rect(pt.X, pt.Y, pt.X+p.PhotoW, pt.Y+p.PhotoH)
	}
	return rects
}

// New computes the placements of copies photo cells of photoW×photoH on a
// canvasW×canvasH sheet. A single copy is centered. More copies use the grid from
// Shape; counts above the grid capacity are capped without error.
func New(canvasW, canvasH, photoW, photoH, copies int) (Plan, error) {
	if copies < 1 {
		return Plan{}, fmt.Errorf("%w: %d", ErrInvalidCopies, copies)
	}
	if photoW <= 0 || photoH <= 0 {
		return Plan{}, fmt.Errorf("photo cell must be positive, got %dx%d", photoW, photoH)
	}

	plan := Plan{CanvasW: canvasW, CanvasH: canvasH, PhotoW: photoW, PhotoH: photoH}

	if copies == 1 {
		if canvasW < photoW || canvasH < photoH {
			return Plan{}, fmt.Errorf("%w: photo %dx%d larger than canvas %dx%d",
				ErrLayoutOverflow, photoW, photoH, canvasW, canvasH)
		}
		plan.Shape = GridShape{Columns: 1, Rows: 1}
		plan.SpacingX = (canvasW - photoW) / 2
		plan.SpacingY = (canvasH - photoH) / 2
		plan.Positions = []image.Point{{X: plan.SpacingX, Y: plan.SpacingY}}
		return plan, nil
	}

	shape := Shape(copies)
	freeX := canvasW - shape.Columns*photoW
	freeY := canvasH - shape.Rows*photoH
	if freeX < 0 || freeY < 0 {
		return Plan{}, fmt.Errorf("%w: %dx%d grid of %dx%d cells needs %dx%d, canvas is %dx%d",
			ErrLayoutOverflow, shape.Columns, shape.Rows, photoW, photoH,
			shape.Columns*photoW, shape.Rows*photoH, canvasW, canvasH)
	}

	plan.Shape = shape
	plan.SpacingX = freeX / (shape.Columns + 1)
	plan.SpacingY = freeY / (shape.Rows + 1)

	n := min(copies, shape.Capacity())
	plan.Positions = make([]image.Point, 0, n)
	for row := 0; row < shape.Rows; row++ {
		for col := 0; col < shape.Columns; col++ {
			if len(plan.Positions) == n {
				return plan, nil
			}
			plan.Positions = append(plan.Positions, image.Point{
				X: plan.SpacingX + col*(photoW+plan.SpacingX),
				Y: plan.SpacingY + row*(photoH+plan.SpacingY),
			})
		}
	}
	return plan, nil
}
