package vision

import (
	"fmt"
	"image"
	"math"
)

// RegionOfInterest is a normalized rectangle, each coordinate in [0, 1],
// restricting inference to a sub-area of the input image.
type RegionOfInterest struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Validate reports ErrInvalidArgument for coordinates outside [0, 1] or an
// empty rectangle.
func (r RegionOfInterest) Validate() error {
	for _, v := range []float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return &Error{Kind: ErrInvalidArgument, Op: "vision", Msg: fmt.Sprintf("region of interest %v is outside [0, 1]", r)}
		}
	}
	if r.Left >= r.Right || r.Top >= r.Bottom {
		return &Error{Kind: ErrInvalidArgument, Op: "vision", Msg: fmt.Sprintf("region of interest %v is empty", r)}
	}
	return nil
}

// PixelRect maps the region onto bounds, rounding outward so a non-empty
// region always covers at least one pixel.
func (r RegionOfInterest) PixelRect(bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	rect := image.Rect(
		bounds.Min.X+int(math.Floor(r.Left*w)),
		bounds.Min.Y+int(math.Floor(r.Top*h)),
		bounds.Min.X+int(math.Ceil(r.Right*w)),
		bounds.Min.Y+int(math.Ceil(r.Bottom*h)),
	)
	return rect.Intersect(bounds)
}

func (r RegionOfInterest) String() string {
	return fmt.Sprintf("[left=%g top=%g right=%g bottom=%g]", r.Left, r.Top, r.Right, r.Bottom)
}
