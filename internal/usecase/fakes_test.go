package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/raster"
	"github.com/google/uuid"
)

// syntheticSource renders a solid color chosen by content(t) at each seek.
type syntheticSource struct {
	meta    port.VideoMetadata
	content func(t float64) color.RGBA
	metaErr error
	// seekErr, when set, is returned for seeks at or after failAt.
	seekErr error
	failAt  float64
	// block, when set, makes every seek wait on it or on ctx.
	block   chan struct{}
	seeking chan struct{}

	mu       sync.Mutex
	current  *image.RGBA
	seeks    []float64
	closes   atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func newSyntheticSource(duration float64, w, h int, content func(t float64) color.RGBA) *syntheticSource {
	return &syntheticSource{
		meta:    port.VideoMetadata{Duration: duration, Width: w, Height: h},
		content: content,
	}
}

func (s *syntheticSource) Metadata(context.Context) (port.VideoMetadata, error) {
	if s.metaErr != nil {
		return port.VideoMetadata{}, s.metaErr
	}
	return s.meta, nil
}

func (s *syntheticSource) Seek(ctx context.Context, t float64) error {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)

	s.mu.Lock()
	s.seeks = append(s.seeks, t)
	s.mu.Unlock()

	if s.seeking != nil {
		select {
		case s.seeking <- struct{}{}:
		default:
		}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.seekErr != nil && t >= s.failAt {
		return s.seekErr
	}

	c := s.content(t)
	img := image.NewRGBA(image.Rect(0, 0, s.meta.Width, s.meta.Height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, 255
	}
	s.mu.Lock()
	s.current = img
	s.mu.Unlock()
	return nil
}

func (s *syntheticSource) Snapshot(width, height int) (*image.RGBA, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur == nil {
		return nil, errors.New("no frame decoded")
	}
	return raster.Resample(cur, width, height)
}

func (s *syntheticSource) Close() error {
	s.closes.Add(1)
	return nil
}

func (s *syntheticSource) seekCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seeks)
}

type fakeOpener struct {
	source  port.VideoSource
	openErr error
	opened  atomic.Int32
}

func (o *fakeOpener) Open(context.Context, string) (port.VideoSource, error) {
	o.opened.Add(1)
	if o.openErr != nil {
		return nil, o.openErr
	}
	return o.source, nil
}

type finishedEvent struct {
	status entity.RunStatus
	reason string
}

type recordingSink struct {
	mu       sync.Mutex
	frames   []entity.Frame
	progress []float64
	finished []finishedEvent
	order    []string
}

func (r *recordingSink) FrameAppended(_ context.Context, _ uuid.UUID, f entity.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	r.order = append(r.order, "frame")
}

func (r *recordingSink) ProgressChanged(_ context.Context, _ uuid.UUID, p float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
	r.order = append(r.order, "progress")
}

func (r *recordingSink) RunFinished(_ context.Context, _ uuid.UUID, status entity.RunStatus, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, finishedEvent{status: status, reason: reason})
	r.order = append(r.order, "finished")
}

var (
	black = color.RGBA{A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func static(c color.RGBA) func(float64) color.RGBA {
	return func(float64) color.RGBA { return c }
}
