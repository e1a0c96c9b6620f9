package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
)

const (
	eventPublishTimeout = 2 * time.Second
	progressPerSecond   = 4
)

// EventSink publishes run events as JSON. Delivery failures are logged and
// counted, never returned to the run. Intermediate progress events are rate
// limited per run; frame, final progress and finish events always go out.
type EventSink struct {
	publisher port.EventPublisher
	logger    *zap.Logger

	mu       sync.Mutex
	progress map[uuid.UUID]*rate.Limiter
}

func NewEventSink(publisher port.EventPublisher, logger *zap.Logger) *EventSink {
	return &EventSink{
		publisher: publisher,
		logger:    logger,
		progress:  make(map[uuid.UUID]*rate.Limiter),
	}
}

func (s *EventSink) FrameAppended(ctx context.Context, runID uuid.UUID, frame entity.Frame) {
	s.send(ctx, entity.NewFrameEvent(runID, frame))
}

func (s *EventSink) ProgressChanged(ctx context.Context, runID uuid.UUID, progress float64) {
	if progress > 0 && progress < 1 && !s.limiter(runID).Allow() {
		return
	}
	s.send(ctx, entity.NewProgressEvent(runID, progress))
}

func (s *EventSink) RunFinished(ctx context.Context, runID uuid.UUID, status entity.RunStatus, reason string) {
	s.mu.Lock()
	delete(s.progress, runID)
	s.mu.Unlock()

	s.send(ctx, entity.NewFinishedEvent(runID, status, reason))
}

func (s *EventSink) limiter(runID uuid.UUID) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.progress[runID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(progressPerSecond), 1)
		s.progress[runID] = l
	}
	return l
}

// activeRuns is the number of runs with progress limiter state.
func (s *EventSink) activeRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.progress)
}

func (s *EventSink) send(ctx context.Context, event entity.RunEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		s.drop(event, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, eventPublishTimeout)
	defer cancel()
	if err := s.publisher.PublishEvent(ctx, data); err != nil {
		s.drop(event, err)
	}
}

func (s *EventSink) drop(event entity.RunEvent, err error) {
	metrics.EventsDroppedTotal.WithLabelValues("rabbitmq").Inc()
	s.logger.Warn("run event dropped",
		zap.String("run_id", event.RunID.String()),
		zap.String("type", string(event.Type)),
		zap.Error(err),
	)
}
