package reference

import (
	"image"
	"image/color"
)

const defaultTolerance = 16

// ContrastLocator treats the top-left pixel of the search area as background
// and returns the bounding box of every pixel whose luminance differs from it
// by more than Tolerance.
type ContrastLocator struct {
	// Tolerance defaults to 16 when nil. Zero matches any change in luminance.
	Tolerance *uint8
}

// NewContrastLocator returns a locator with an explicit tolerance.
func NewContrastLocator(tolerance uint8) ContrastLocator {
	return ContrastLocator{Tolerance: &tolerance}
}

func (l ContrastLocator) Locate(img image.Image, within image.Rectangle) (image.Rectangle, bool) {
	within = within.Intersect(img.Bounds())
	if within.Empty() {
		return image.Rectangle{}, false
	}
	tol := uint8(defaultTolerance)
	if l.Tolerance != nil {
		tol = *l.Tolerance
	}

	bg := luma(img.At(within.Min.X, within.Min.Y))
	var box image.Rectangle
	found := false
	for y := within.Min.Y; y < within.Max.Y; y++ {
		for x := within.Min.X; x < within.Max.X; x++ {
			if absDiff(luma(img.At(x, y)), bg) <= tol {
				continue
			}
			px := image.Rect(x, y, x+1, y+1)
			if !found {
				box, found = px, true
			} else {
				box = box.Union(px)
			}
		}
	}
	return box, found
}

func luma(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
