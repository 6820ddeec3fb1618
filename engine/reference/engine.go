// Package reference provides a deterministic stand-in for a stylization
// model. It locates a subject by contrast against the background, crops it,
// resamples it to a square and posterizes the colors.
//
// It exists so the vision runners can be exercised end to end without a
// neural network runtime.
package reference

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/Swind/go-vision-runner/core"
	"github.com/Swind/go-vision-runner/vision"
)

// DefaultOutputSize is the side length of stylized output images.
const DefaultOutputSize = 256

var (
	// ErrUnsupportedImage is returned for inputs that do not expose pixels.
	ErrUnsupportedImage = errors.New("reference: image does not implement image.Image")
	// ErrEngineClosed is returned by Infer after Close.
	ErrEngineClosed = errors.New("reference: engine is closed")
)

// SubjectLocator finds the subject to stylize inside within.
type SubjectLocator interface {
	Locate(img image.Image, within image.Rectangle) (image.Rectangle, bool)
}

// Config tunes the reference engine. Zero values select the defaults.
type Config struct {
	OutputSize int
	Locator    SubjectLocator
	// Levels is the number of color levels per channel after posterizing.
	Levels int
	Logger core.Logger
}

// NewFactory returns a vision.EngineFactory producing reference engines.
func NewFactory(cfg Config) vision.EngineFactory {
	return func(_ context.Context, asset *vision.ModelAsset) (vision.Engine, error) {
		return New(asset, cfg)
	}
}

// Engine is the reference stylization engine.
type Engine struct {
	model   string
	size    int
	levels  int
	locator SubjectLocator
	logger  core.Logger
	closed  atomic.Bool
}

var _ vision.Engine = (*Engine)(nil)

// New creates an engine for asset. The asset content is not interpreted but
// must not be empty.
func New(asset *vision.ModelAsset, cfg Config) (*Engine, error) {
	if asset == nil || len(asset.Data) == 0 {
		return nil, errors.New("reference: model asset is empty")
	}
	e := &Engine{
		model:   asset.Name,
		size:    cfg.OutputSize,
		levels:  cfg.Levels,
		locator: cfg.Locator,
		logger:  cfg.Logger,
	}
	if e.size <= 0 {
		e.size = DefaultOutputSize
	}
	if e.levels < 2 {
		e.levels = 4
	}
	if e.locator == nil {
		e.locator = ContrastLocator{}
	}
	if e.logger == nil {
		e.logger = core.NewNoOpLogger()
	}
	e.logger.Debug("reference engine loaded", core.F("model", e.model), core.F("output_size", e.size))
	return e, nil
}

// Infer stylizes the subject found in roi, or in the whole image when roi is
// nil. It returns nil, nil when no subject is found.
func (e *Engine) Infer(ctx context.Context, img vision.Image, roi *vision.RegionOfInterest) (vision.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}
	src, ok := img.(image.Image)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedImage, img)
	}

	area := src.Bounds()
	if roi != nil {
		area = roi.PixelRect(area)
	}
	subject, found := e.locator.Locate(src, area)
	if !found {
		return nil, nil
	}
	return vision.NewFrame(e.stylize(src, subject)), nil
}

// Close releases the engine. Later Infer calls fail.
func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

func (e *Engine) stylize(src image.Image, subject image.Rectangle) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, e.size, e.size))
	sw, sh := subject.Dx(), subject.Dy()
	step := 255 / (e.levels - 1)

	for y := 0; y < e.size; y++ {
		sy := subject.Min.Y + y*sh/e.size
		for x := 0; x < e.size; x++ {
			sx := subject.Min.X + x*sw/e.size
			c := color.RGBAModel.Convert(src.At(sx, sy)).(color.RGBA)
			dst.SetRGBA(x, y, color.RGBA{
				R: posterize(c.R, step),
				G: posterize(c.G, step),
				B: posterize(c.B, step),
				A: c.A,
			})
		}
	}
	return dst
}

func posterize(v uint8, step int) uint8 {
	q := (int(v) + step/2) / step * step
	if q > 255 {
		q = 255
	}
	return uint8(q)
}
