package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
)

type fakeEventPublisher struct {
	mu   sync.Mutex
	msgs [][]byte
	err  error
}

func (f *fakeEventPublisher) PublishEvent(_ context.Context, msg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func TestEventSink_PublishesEvents(t *testing.T) {
	pub := &fakeEventPublisher{}
	sink := NewEventSink(pub, zaptest.NewLogger(t))
	runID := uuid.New()
	frame := entity.NewFrame([]byte{1, 2, 3}, 4, 0.4, 8, 8, 0.5)

	sink.ProgressChanged(context.Background(), runID, 0.25)
	sink.FrameAppended(context.Background(), runID, frame)
	sink.RunFinished(context.Background(), runID, entity.RunStatusDone, "")

	require.Len(t, pub.msgs, 3)

	var progress entity.RunEvent
	require.NoError(t, json.Unmarshal(pub.msgs[0], &progress))
	assert.Equal(t, entity.RunEventProgress, progress.Type)
	assert.Equal(t, runID, progress.RunID)
	require.NotNil(t, progress.Progress)
	assert.Equal(t, 0.25, *progress.Progress)

	var frameEvt map[string]any
	require.NoError(t, json.Unmarshal(pub.msgs[1], &frameEvt))
	assert.Equal(t, "frame", frameEvt["type"])
	assert.Equal(t, frame.FileName(), frameEvt["file_name"])
	assert.EqualValues(t, 4, frameEvt["sequence_index"])
	assert.NotContains(t, frameEvt, "image")

	var finished entity.RunEvent
	require.NoError(t, json.Unmarshal(pub.msgs[2], &finished))
	assert.Equal(t, entity.RunEventFinished, finished.Type)
	assert.Equal(t, entity.RunStatusDone, finished.Status)
}

func TestEventSink_ThrottlesIntermediateProgress(t *testing.T) {
	pub := &fakeEventPublisher{}
	sink := NewEventSink(pub, zaptest.NewLogger(t))
	runID := uuid.New()

	sink.ProgressChanged(context.Background(), runID, 0)
	for i := 1; i < 100; i++ {
		sink.ProgressChanged(context.Background(), runID, float64(i)/100)
	}
	sink.ProgressChanged(context.Background(), runID, 1)

	var values []float64
	for _, m := range pub.msgs {
		var evt entity.RunEvent
		require.NoError(t, json.Unmarshal(m, &evt))
		values = append(values, *evt.Progress)
	}
	require.GreaterOrEqual(t, len(values), 3)
	assert.Less(t, len(values), 10)
	assert.Equal(t, 0.0, values[0])
	assert.Equal(t, 1.0, values[len(values)-1])
}

func TestEventSink_ThrottlesEachRunSeparately(t *testing.T) {
	pub := &fakeEventPublisher{}
	sink := NewEventSink(pub, zaptest.NewLogger(t))
	runA, runB := uuid.New(), uuid.New()

	sink.ProgressChanged(context.Background(), runA, 0.1)
	for i := 1; i <= 8; i++ {
		sink.ProgressChanged(context.Background(), runB, float64(i)/10)
	}

	counts := map[uuid.UUID]int{}
	for _, m := range pub.msgs {
		var evt entity.RunEvent
		require.NoError(t, json.Unmarshal(m, &evt))
		counts[evt.RunID]++
	}
	assert.Equal(t, 1, counts[runA])
	assert.GreaterOrEqual(t, counts[runB], 1)
	assert.Equal(t, 2, sink.activeRuns())

	sink.RunFinished(context.Background(), runA, entity.RunStatusDone, "")
	sink.RunFinished(context.Background(), runB, entity.RunStatusDone, "")
	assert.Zero(t, sink.activeRuns())
}

func TestEventSink_CountsDroppedEvents(t *testing.T) {
	pub := &fakeEventPublisher{err: errors.New("channel closed")}
	sink := NewEventSink(pub, zaptest.NewLogger(t))

	before := testutil.ToFloat64(metrics.EventsDroppedTotal.WithLabelValues("rabbitmq"))
	sink.ProgressChanged(context.Background(), uuid.New(), 0.5)
	sink.RunFinished(context.Background(), uuid.New(), entity.RunStatusError, "decode failed")
	after := testutil.ToFloat64(metrics.EventsDroppedTotal.WithLabelValues("rabbitmq"))

	assert.Equal(t, 2.0, after-before)
}
