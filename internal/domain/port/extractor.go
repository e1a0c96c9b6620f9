package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// FrameExtractor runs one extraction at a time and reports through sink.
type FrameExtractor interface {
	Run(ctx context.Context, input string, sink ResultSink) (*entity.ExtractionRun, error)
}
