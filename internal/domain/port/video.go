package port

import (
	"context"
	"image"
)

type VideoMetadata struct {
	Duration float64
	Width    int
	Height   int
}

// VideoSource is a seekable decoder owned by a single extraction run.
type VideoSource interface {
	Metadata(ctx context.Context) (VideoMetadata, error)
	// Seek returns only once the frame at t is decoded and ready for Snapshot.
	Seek(ctx context.Context, t float64) error
	// Snapshot returns the current frame resampled to width x height.
	Snapshot(width, height int) (*image.RGBA, error)
	Close() error
}

type VideoOpener interface {
	Open(ctx context.Context, input string) (VideoSource, error)
}
