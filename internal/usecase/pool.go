package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type runController interface {
	Current() (entity.ExtractionRun, bool)
	CancelRun(id uuid.UUID) bool
}

// ExtractorPool hands out extractors to concurrent workers. An extractor is
// held by exactly one job at a time, so runs never share a video source.
type ExtractorPool struct {
	all  []port.FrameExtractor
	free chan port.FrameExtractor
}

func NewExtractorPool(extractors ...port.FrameExtractor) *ExtractorPool {
	p := &ExtractorPool{
		all:  extractors,
		free: make(chan port.FrameExtractor, len(extractors)),
	}
	for _, e := range extractors {
		p.free <- e
	}
	return p
}

func (p *ExtractorPool) Acquire(ctx context.Context) (port.FrameExtractor, error) {
	select {
	case e := <-p.free:
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *ExtractorPool) Release(e port.FrameExtractor) {
	p.free <- e
}

func (p *ExtractorPool) Size() int { return cap(p.free) }

func (p *ExtractorPool) Idle() int { return len(p.free) }

// ActiveRuns snapshots the runs currently processing on any extractor.
func (p *ExtractorPool) ActiveRuns() []entity.ExtractionRun {
	runs := make([]entity.ExtractionRun, 0, len(p.all))
	for _, e := range p.all {
		rc, ok := e.(runController)
		if !ok {
			continue
		}
		if run, ok := rc.Current(); ok && run.Status == entity.RunStatusProcessing {
			runs = append(runs, run)
		}
	}
	return runs
}

// CancelRun cancels the processing run with the given id. It reports whether
// such a run was found.
func (p *ExtractorPool) CancelRun(id uuid.UUID) bool {
	for _, e := range p.all {
		rc, ok := e.(runController)
		if !ok {
			continue
		}
		if rc.CancelRun(id) {
			return true
		}
	}
	return false
}
