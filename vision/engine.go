package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Engine runs the model behind a TaskRunner.
//
// Infer returns a nil Image, and a nil error, when the model found nothing to
// process inside roi. roi is nil when the whole image should be used. The
// runner never calls Infer concurrently on the same engine, and never after
// Close.
type Engine interface {
	Infer(ctx context.Context, img Image, roi *RegionOfInterest) (Image, error)
	Close() error
}

// EngineFactory builds an Engine from a resolved model asset.
type EngineFactory func(ctx context.Context, asset *ModelAsset) (Engine, error)

// BaseOptions names the model to load. Exactly one source must be set.
type BaseOptions struct {
	// ModelAssetPath is a path to the model file on disk.
	ModelAssetPath string
	// ModelAssetBuffer is the model file content already in memory.
	ModelAssetBuffer []byte
}

// ModelAsset is the model content handed to an EngineFactory.
type ModelAsset struct {
	// Name is the base name of the model file, or "buffer" for in-memory content.
	Name string
	Data []byte
}

// Resolve loads the model content. A missing or unreadable path fails with
// ErrResource; zero or two sources fail with ErrConfiguration.
func (o BaseOptions) Resolve() (*ModelAsset, error) {
	hasPath := o.ModelAssetPath != ""
	hasBuffer := len(o.ModelAssetBuffer) > 0

	switch {
	case hasPath && hasBuffer:
		return nil, &Error{Kind: ErrConfiguration, Op: "vision", Msg: "only one of model asset path and model asset buffer can be provided"}
	case !hasPath && !hasBuffer:
		return nil, &Error{Kind: ErrConfiguration, Op: "vision", Msg: "model asset path or model asset buffer must be provided"}
	case hasBuffer:
		return &ModelAsset{Name: "buffer", Data: o.ModelAssetBuffer}, nil
	}

	data, err := os.ReadFile(o.ModelAssetPath)
	if err != nil {
		return nil, &Error{
			Kind: ErrResource,
			Op:   "vision",
			Msg:  fmt.Sprintf("unable to open file at %s", o.ModelAssetPath),
			Err:  err,
		}
	}
	return &ModelAsset{Name: filepath.Base(o.ModelAssetPath), Data: data}, nil
}
