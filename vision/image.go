package vision

import "image"

// Image is a decoded image buffer owned by the caller. The runner never
// copies or mutates it; LIVE_STREAM callbacks receive the same value that was
// submitted.
type Image interface {
	Width() int
	Height() int
}

// Frame adapts a standard library image to Image.
type Frame struct {
	image.Image
}

// NewFrame wraps img.
func NewFrame(img image.Image) *Frame {
	return &Frame{Image: img}
}

func (f *Frame) Width() int  { return f.Bounds().Dx() }
func (f *Frame) Height() int { return f.Bounds().Dy() }
