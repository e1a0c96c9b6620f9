package usecase

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

// Sample is the pair of rasters captured at one timestamp.
type Sample struct {
	Timestamp  float64
	Full       *image.RGBA
	Comparison *image.RGBA
}

// Sampler drives one video source through requested timestamps.
type Sampler struct {
	source         port.VideoSource
	meta           port.VideoMetadata
	comparisonSize int
	seekTimeout    time.Duration
}

func NewSampler(source port.VideoSource, meta port.VideoMetadata, comparisonSize int, seekTimeout time.Duration) *Sampler {
	return &Sampler{
		source:         source,
		meta:           meta,
		comparisonSize: comparisonSize,
		seekTimeout:    seekTimeout,
	}
}

// Sample seeks to t, waits for the seek to complete and captures both rasters.
// Cancellation of ctx is returned as is; every other failure wraps ErrDecode.
func (s *Sampler) Sample(ctx context.Context, t float64) (*Sample, error) {
	if t < 0 || t >= s.meta.Duration {
		return nil, fmt.Errorf("timestamp %.3fs outside [0, %.3fs): %w", t, s.meta.Duration, entity.ErrDecode)
	}

	if err := s.seek(ctx, t); err != nil {
		return nil, err
	}

	full, err := s.source.Snapshot(s.meta.Width, s.meta.Height)
	if err != nil {
		return nil, fmt.Errorf("snapshot full at %.3fs: %w: %v", t, entity.ErrDecode, err)
	}
	if err := checkBounds(full, s.meta.Width, s.meta.Height); err != nil {
		return nil, fmt.Errorf("snapshot full at %.3fs: %w", t, err)
	}

	cmp, err := s.source.Snapshot(s.comparisonSize, s.comparisonSize)
	if err != nil {
		return nil, fmt.Errorf("snapshot comparison at %.3fs: %w: %v", t, entity.ErrDecode, err)
	}
	if err := checkBounds(cmp, s.comparisonSize, s.comparisonSize); err != nil {
		return nil, fmt.Errorf("snapshot comparison at %.3fs: %w", t, err)
	}

	return &Sample{Timestamp: t, Full: full, Comparison: cmp}, nil
}

func (s *Sampler) seek(ctx context.Context, t float64) error {
	seekCtx := ctx
	if s.seekTimeout > 0 {
		var cancel context.CancelFunc
		seekCtx, cancel = context.WithTimeout(ctx, s.seekTimeout)
		defer cancel()
	}

	err := s.source.Seek(seekCtx, t)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(seekCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("seek to %.3fs timed out after %s: %w", t, s.seekTimeout, entity.ErrDecode)
	}
	if errors.Is(err, entity.ErrDecode) {
		return fmt.Errorf("seek to %.3fs: %w", t, err)
	}
	return fmt.Errorf("seek to %.3fs: %w: %v", t, entity.ErrDecode, err)
}

func checkBounds(img *image.RGBA, w, h int) error {
	if img == nil {
		return fmt.Errorf("nil raster: %w", entity.ErrDecode)
	}
	if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("raster is %dx%d, want %dx%d: %w", b.Dx(), b.Dy(), w, h, entity.ErrDecode)
	}
	return nil
}
