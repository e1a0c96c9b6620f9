package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

func TestExtractorPool_AcquireRelease(t *testing.T) {
	a := newTestExtractor(t, &fakeOpener{})
	b := newTestExtractor(t, &fakeOpener{})
	pool := NewExtractorPool(a, b)
	assert.Equal(t, 2, pool.Size())
	assert.Equal(t, 2, pool.Idle())

	first, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	second, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, 0, pool.Idle())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.Release(first)
	assert.Equal(t, 1, pool.Idle())
	got, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, got)
}

func TestExtractorPool_ActiveRunsAndCancel(t *testing.T) {
	src := newSyntheticSource(10, 4, 4, static(white))
	src.block = make(chan struct{})
	src.seeking = make(chan struct{}, 1)
	busy := newTestExtractor(t, &fakeOpener{source: src}, func(c *ExtractConfig) {
		c.SeekTimeout = time.Minute
	})
	idle := newTestExtractor(t, &fakeOpener{})
	pool := NewExtractorPool(busy, idle)

	assert.Empty(t, pool.ActiveRuns())
	assert.False(t, pool.CancelRun(uuid.New()))

	done := make(chan error, 1)
	go func() {
		_, err := busy.Run(context.Background(), "long.mp4", nil)
		done <- err
	}()
	<-src.seeking

	runs := pool.ActiveRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, entity.RunStatusProcessing, runs[0].Status)
	assert.Equal(t, "long.mp4", runs[0].Input)

	assert.False(t, pool.CancelRun(uuid.New()))
	assert.True(t, pool.CancelRun(runs[0].ID))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after CancelRun")
	}
	assert.Empty(t, pool.ActiveRuns())
}
