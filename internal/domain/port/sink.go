package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

// ResultSink receives incremental results of a run. Implementations must not
// block for long and handle their own delivery errors.
type ResultSink interface {
	FrameAppended(ctx context.Context, runID uuid.UUID, frame entity.Frame)
	ProgressChanged(ctx context.Context, runID uuid.UUID, progress float64)
	RunFinished(ctx context.Context, runID uuid.UUID, status entity.RunStatus, reason string)
}
