package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/raster"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/selection"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ExtractConfig struct {
	SamplesPerSecond float64
	ComparisonSize   int
	Threshold        float64
	SeekTimeout      time.Duration
	JPEGQuality      int
}

func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		SamplesPerSecond: 10,
		ComparisonSize:   64,
		Threshold:        selection.DefaultThreshold,
		SeekTimeout:      10 * time.Second,
		JPEGQuality:      92,
	}
}

func (c ExtractConfig) Validate() error {
	switch {
	case !(c.SamplesPerSecond > 0):
		return fmt.Errorf("samples per second must be positive, got %v: %w", c.SamplesPerSecond, entity.ErrInvalidArgument)
	case c.ComparisonSize <= 0:
		return fmt.Errorf("comparison size must be positive, got %d: %w", c.ComparisonSize, entity.ErrInvalidArgument)
	case !(c.Threshold > 0 && c.Threshold < 1):
		return fmt.Errorf("similarity threshold must be in (0,1), got %v: %w", c.Threshold, entity.ErrInvalidArgument)
	case c.SeekTimeout < 0:
		return fmt.Errorf("seek timeout must not be negative, got %s: %w", c.SeekTimeout, entity.ErrInvalidArgument)
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return fmt.Errorf("jpeg quality must be in [1,100], got %d: %w", c.JPEGQuality, entity.ErrInvalidArgument)
	}
	return nil
}

// ExtractFramesUseCase runs at most one extraction at a time over the video
// sources produced by its opener.
type ExtractFramesUseCase struct {
	opener port.VideoOpener
	cfg    ExtractConfig
	logger *zap.Logger

	mu      sync.Mutex
	current *entity.ExtractionRun
	cancel  context.CancelFunc
}

func NewExtractFramesUseCase(opener port.VideoOpener, cfg ExtractConfig, logger *zap.Logger) (*ExtractFramesUseCase, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ExtractFramesUseCase{
		opener: opener,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run extracts the distinct frames of input. Kept frames and progress are
// pushed to sink as they are produced. The returned run is a snapshot of the
// terminal state; on failure it still holds the frames kept before the error.
func (uc *ExtractFramesUseCase) Run(ctx context.Context, input string, sink port.ResultSink) (*entity.ExtractionRun, error) {
	if sink == nil {
		sink = NopSink{}
	}

	run, runCtx, err := uc.begin(ctx, input)
	if err != nil {
		return nil, err
	}
	defer uc.end()

	tracer := otel.Tracer("usecase")
	runCtx, span := tracer.Start(runCtx, "ExtractFramesUseCase.Run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.Float64("run.samples_per_second", uc.cfg.SamplesPerSecond),
		attribute.Float64("run.threshold", uc.cfg.Threshold),
	))
	defer span.End()

	log := uc.logger.With(zap.String("run_id", run.ID.String()), zap.String("input", input))
	log.Info("extraction started",
		zap.Float64("samples_per_second", uc.cfg.SamplesPerSecond),
		zap.Float64("threshold", uc.cfg.Threshold),
	)

	start := time.Now()
	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	err = uc.extract(runCtx, run, sink, log)

	// Sinks still get the terminal event when the run was cancelled.
	finishCtx := context.WithoutCancel(runCtx)
	var snap entity.ExtractionRun
	if err != nil {
		uc.mu.Lock()
		run.MarkFailed(err.Error())
		snap = run.Snapshot()
		uc.mu.Unlock()

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.ExtractionRunsTotal.WithLabelValues(string(entity.RunStatusError)).Inc()
		log.Error("extraction failed", zap.Error(err), zap.Int("frames_kept", len(snap.Frames)))
		sink.RunFinished(finishCtx, run.ID, entity.RunStatusError, err.Error())
		return &snap, err
	}

	uc.mu.Lock()
	run.MarkDone()
	snap = run.Snapshot()
	uc.mu.Unlock()

	metrics.ExtractionRunsTotal.WithLabelValues(string(entity.RunStatusDone)).Inc()
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	log.Info("extraction done",
		zap.Int("frames_kept", len(snap.Frames)),
		zap.Int("frames_sampled", snap.SampledCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	sink.ProgressChanged(finishCtx, run.ID, snap.Progress)
	sink.RunFinished(finishCtx, run.ID, entity.RunStatusDone, "")
	return &snap, nil
}

// Cancel stops the in-flight run, if any. The loop notices before its next
// seek and the run ends in error with context.Canceled.
func (uc *ExtractFramesUseCase) Cancel() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.cancel != nil {
		uc.cancel()
	}
}

// CancelRun cancels the in-flight run only if it is the run with the given
// id, so a run started after the caller looked up id is never affected.
func (uc *ExtractFramesUseCase) CancelRun(id uuid.UUID) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.current == nil || uc.current.ID != id || uc.current.Status != entity.RunStatusProcessing || uc.cancel == nil {
		return false
	}
	uc.cancel()
	return true
}

// Current returns a snapshot of the active or most recent run.
func (uc *ExtractFramesUseCase) Current() (entity.ExtractionRun, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.current == nil {
		return entity.ExtractionRun{}, false
	}
	return uc.current.Snapshot(), true
}

func (uc *ExtractFramesUseCase) begin(ctx context.Context, input string) (*entity.ExtractionRun, context.Context, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.current != nil && uc.current.Status == entity.RunStatusProcessing {
		return nil, nil, fmt.Errorf("start run for %s: %w", input, entity.ErrRunInProgress)
	}

	run := entity.NewExtractionRun(input)
	run.MarkProcessing()
	runCtx, cancel := context.WithCancel(ctx)
	uc.current = run
	uc.cancel = cancel
	return run, runCtx, nil
}

func (uc *ExtractFramesUseCase) end() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.cancel != nil {
		uc.cancel()
		uc.cancel = nil
	}
}

func (uc *ExtractFramesUseCase) extract(ctx context.Context, run *entity.ExtractionRun, sink port.ResultSink, log *zap.Logger) error {
	source, err := uc.opener.Open(ctx, run.Input)
	if err != nil {
		return setupError("open video", err)
	}
	defer func() {
		if err := source.Close(); err != nil {
			log.Warn("failed to release video source", zap.Error(err))
		}
	}()

	meta, err := source.Metadata(ctx)
	if err != nil {
		return setupError("read metadata", err)
	}
	if !(meta.Duration > 0) || meta.Width <= 0 || meta.Height <= 0 {
		return fmt.Errorf("unusable metadata duration=%v size=%dx%d: %w",
			meta.Duration, meta.Width, meta.Height, entity.ErrResourceSetup)
	}

	uc.mu.Lock()
	run.VideoDuration = meta.Duration
	uc.mu.Unlock()

	log.Debug("video metadata",
		zap.Float64("duration", meta.Duration),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
	)

	engine, err := selection.NewEngine(uc.cfg.Threshold)
	if err != nil {
		return err
	}
	sampler := NewSampler(source, meta, uc.cfg.ComparisonSize, uc.cfg.SeekTimeout)

	// Timestamps are derived from the index so that t = i/rate is exact
	// instead of accumulating rounding error across steps.
	for i := 0; ; i++ {
		t := float64(i) / uc.cfg.SamplesPerSecond
		if t >= meta.Duration {
			break
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run stopped at %.3fs: %w", t, err)
		}

		sampleStart := time.Now()
		sample, err := sampler.Sample(ctx, t)
		if err != nil {
			return err
		}
		metrics.SampleDuration.Observe(time.Since(sampleStart).Seconds())
		metrics.FramesSampledTotal.Inc()

		decision, err := engine.Decide(sample.Comparison)
		if err != nil {
			return fmt.Errorf("select sample %d: %w", i, err)
		}

		if decision.Keep {
			data, err := raster.EncodeJPEG(sample.Full, uc.cfg.JPEGQuality)
			if err != nil {
				return fmt.Errorf("sample %d at %.3fs: %w: %v", i, t, entity.ErrDecode, err)
			}
			frame := entity.NewFrame(data, i, t, meta.Width, meta.Height, decision.Score)

			uc.mu.Lock()
			run.AppendFrame(frame)
			uc.mu.Unlock()

			metrics.FramesKeptTotal.Inc()
			log.Debug("frame kept",
				zap.Int("sequence_index", i),
				zap.Float64("timestamp", t),
				zap.Float64("score", decision.Score),
			)
			sink.FrameAppended(ctx, run.ID, frame)
		}

		progress := t / meta.Duration
		uc.mu.Lock()
		run.SampledCount = i + 1
		run.SetProgress(progress)
		uc.mu.Unlock()
		sink.ProgressChanged(ctx, run.ID, progress)
	}

	return nil
}

func setupError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, entity.ErrResourceSetup) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, entity.ErrResourceSetup, err)
}
