// Package normalize rescales an extracted subject so the detected face takes up
// a fixed fraction of the frame height.
package normalize

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/passport-photo/pkg/types"
)

// ErrInvalidBoundingBox is returned when the face box cannot be used for scaling
var ErrInvalidBoundingBox = errors.New("invalid bounding box")

// FirstFace returns the first box the detector reported, or nil when there is none.
// Boxes are not ranked by size or confidence.
func FirstFace(boxes []types.BoundingBox) *types.BoundingBox {
	if len(boxes) == 0 {
		return nil
	}
	b := boxes[0]
	return &b
}

// Scale returns the uniform factor that makes box's height equal to
// subjectHeight*ratio.
func Scale(subjectHeight int, box types.BoundingBox, ratio float64) (float64, error) {
	if box.Height <= 0 {
		return 0, fmt.Errorf("%w: height %d", ErrInvalidBoundingBox, box.Height)
	}
	return float64(subjectHeight) * ratio / float64(box.Height), nil
}

// Subject resizes the whole subject so the face described by box occupies ratio of
// the frame height. When box or ratio is nil the subject is returned unchanged
// (converted to NRGBA).
func Subject(subject image.Image, box *types.BoundingBox, ratio *float64) (*image.NRGBA, error) {
	if subject == nil {
		return nil, fmt.Errorf("subject image is nil")
	}
	if box == nil || ratio == nil {
		return imaging.Clone(subject), nil
	}

	b := subject.Bounds()
	scale, err := Scale(b.Dy(), *box, *ratio)
	if err != nil {
		return nil, err
	}

	w := scaledDim(b.Dx(), scale)
	h := scaledDim(b.Dy(), scale)
	if w == b.Dx() && h == b.Dy() {
		return imaging.Clone(subject), nil
	}
	return imaging.Resize(subject, w, h, imaging.Lanczos), nil
}

func scaledDim(n int, scale float64) int {
	v := int(math.Round(float64(n) * scale))
	if v < 1 {
		return 1
	}
	return v
}
