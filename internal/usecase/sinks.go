package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NopSink discards every event.
type NopSink struct{}

func (NopSink) FrameAppended(context.Context, uuid.UUID, entity.Frame) {}

func (NopSink) ProgressChanged(context.Context, uuid.UUID, float64) {}

func (NopSink) RunFinished(context.Context, uuid.UUID, entity.RunStatus, string) {}

// MultiSink forwards every event to each sink in order.
type MultiSink []port.ResultSink

func (m MultiSink) FrameAppended(ctx context.Context, runID uuid.UUID, frame entity.Frame) {
	for _, s := range m {
		s.FrameAppended(ctx, runID, frame)
	}
}

func (m MultiSink) ProgressChanged(ctx context.Context, runID uuid.UUID, progress float64) {
	for _, s := range m {
		s.ProgressChanged(ctx, runID, progress)
	}
}

func (m MultiSink) RunFinished(ctx context.Context, runID uuid.UUID, status entity.RunStatus, reason string) {
	for _, s := range m {
		s.RunFinished(ctx, runID, status, reason)
	}
}

// LogSink logs kept frames and every crossed progress step.
type LogSink struct {
	logger *zap.Logger
	step   float64

	mu   sync.Mutex
	next map[uuid.UUID]float64
}

func NewLogSink(logger *zap.Logger, step float64) *LogSink {
	if !(step > 0) {
		step = 0.1
	}
	return &LogSink{logger: logger, step: step, next: make(map[uuid.UUID]float64)}
}

func (s *LogSink) FrameAppended(_ context.Context, runID uuid.UUID, frame entity.Frame) {
	s.logger.Info("frame kept",
		zap.String("run_id", runID.String()),
		zap.String("file", frame.FileName()),
		zap.Float64("score", frame.Score),
		zap.Int("bytes", len(frame.Image)),
	)
}

func (s *LogSink) ProgressChanged(_ context.Context, runID uuid.UUID, progress float64) {
	s.mu.Lock()
	next := s.next[runID]
	if progress < next {
		s.mu.Unlock()
		return
	}
	for next <= progress {
		next += s.step
	}
	s.next[runID] = next
	s.mu.Unlock()

	s.logger.Info("progress",
		zap.String("run_id", runID.String()),
		zap.String("percent", fmt.Sprintf("%.0f%%", progress*100)),
	)
}

func (s *LogSink) RunFinished(_ context.Context, runID uuid.UUID, status entity.RunStatus, reason string) {
	s.mu.Lock()
	delete(s.next, runID)
	s.mu.Unlock()

	if status == entity.RunStatusError {
		s.logger.Warn("run finished", zap.String("run_id", runID.String()), zap.String("status", string(status)), zap.String("reason", reason))
		return
	}
	s.logger.Info("run finished", zap.String("run_id", runID.String()), zap.String("status", string(status)))
}
