package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type ProcessVideoUseCase struct {
	repo       port.JobRepository
	frames     port.FrameRepository
	storage    port.VideoStorage
	extractors *ExtractorPool
	archiver   port.Archiver
	sink       port.ResultSink
	publisher  port.StatusPublisher
	dlq        port.DLQPublisher
	notifier   port.FailureNotifier
	logger     *zap.Logger
	tempDir    string
	maxRetry   int
}

type ProcessVideoConfig struct {
	TempDir    string
	MaxRetries int
}

type ProcessVideoDeps struct {
	Jobs       port.JobRepository
	Frames     port.FrameRepository
	Storage    port.VideoStorage
	Extractors *ExtractorPool
	Archiver   port.Archiver
	Sink       port.ResultSink
	Status     port.StatusPublisher
	DLQ        port.DLQPublisher
	Notifier   port.FailureNotifier
}

func NewProcessVideoUseCase(deps ProcessVideoDeps, logger *zap.Logger, cfg ProcessVideoConfig) *ProcessVideoUseCase {
	sink := deps.Sink
	if sink == nil {
		sink = NopSink{}
	}
	return &ProcessVideoUseCase{
		repo:       deps.Jobs,
		frames:     deps.Frames,
		storage:    deps.Storage,
		extractors: deps.Extractors,
		archiver:   deps.Archiver,
		sink:       sink,
		publisher:  deps.Status,
		dlq:        deps.DLQ,
		notifier:   deps.Notifier,
		logger:     logger,
		tempDir:    cfg.TempDir,
		maxRetry:   cfg.MaxRetries,
	}
}

// Execute handles one message from the processing queue. A returned error
// asks the consumer to requeue; permanent failures are routed to the DLQ and
// return nil.
func (uc *ProcessVideoUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessVideoUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.VideoProcessingMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil && !errors.Is(err, entity.ErrJobNotFound) {
		log.Error("failed to load job record", zap.Error(err))
		return fmt.Errorf("find job: %w", err)
	}
	if job == nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, msg.FileSize, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.processVideoPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}
	if job.Status != entity.JobStatusCompleted {
		return nil
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *ProcessVideoUseCase) processVideoPipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.tempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download video from MinIO
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, "input"+filepath.Ext(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		if errors.Is(err, entity.ErrResourceSetup) {
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "download_video: "+err.Error(), log)
	}
	spanDl.End()
	metrics.JobProcessingDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Extract distinct frames
	exStart := time.Now()
	ctx3, spanEx := tracer.Start(ctx, "extract_frames")
	run, err := uc.extract(ctx3, videoPath)
	spanEx.End()
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return uc.handleCancelled(ctx, job, log)
	}
	if err != nil {
		log.Error("frame extraction failed", zap.Error(err))
		if errors.Is(err, entity.ErrResourceSetup) || errors.Is(err, entity.ErrInvalidArgument) {
			// Unreadable input, no retry.
			return uc.handlePermanentFailure(ctx, job, msg, rawMsg, "extract_frames: "+err.Error())
		}
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "extract_frames: "+err.Error(), log)
	}
	metrics.JobProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())

	// Package kept frames
	zipStart := time.Now()
	ctx4, spanZip := tracer.Start(ctx, "create_zip")
	zipPath := filepath.Join(workDir, "frames.zip")
	if err := uc.writeArchive(ctx4, run.Frames, zipPath); err != nil {
		spanZip.End()
		log.Error("zip creation failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "create_zip: "+err.Error(), log)
	}
	spanZip.End()
	metrics.JobProcessingDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	// Upload ZIP to MinIO
	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_zip")
	zipKey := fmt.Sprintf("%s/frames_%s.zip", msg.UserID, job.ID.String())
	zipFile, err := os.Open(zipPath)
	if err != nil {
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "open_zip: "+err.Error(), log)
	}
	zipStat, err := zipFile.Stat()
	if err != nil {
		zipFile.Close()
		spanUp.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "stat_zip: "+err.Error(), log)
	}
	if err := uc.storage.UploadZip(ctx5, zipKey, zipFile, zipStat.Size()); err != nil {
		zipFile.Close()
		spanUp.End()
		log.Error("zip upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "upload_zip: "+err.Error(), log)
	}
	zipFile.Close()
	spanUp.End()
	metrics.JobProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	if err := uc.frames.SaveFrames(ctx, job.ID, run.Frames); err != nil {
		log.Error("failed to save frame records", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, "save_frames: "+err.Error(), log)
	}

	// Mark completed
	job.MarkCompleted(zipKey, run)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", job.FrameCount),
		zap.Int("sampled_count", job.SampledCount),
		zap.Float64("duration_secs", job.VideoDuration),
		zap.String("zip_key", zipKey),
	)

	return nil
}

func (uc *ProcessVideoUseCase) extract(ctx context.Context, videoPath string) (*entity.ExtractionRun, error) {
	extractor, err := uc.extractors.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire extractor: %w", err)
	}
	defer uc.extractors.Release(extractor)

	return extractor.Run(ctx, videoPath, uc.sink)
}

func (uc *ProcessVideoUseCase) writeArchive(ctx context.Context, frames []entity.Frame, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	if err := uc.archiver.WriteArchive(ctx, frames, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (uc *ProcessVideoUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	if ctx.Err() != nil {
		return uc.handleInterrupted(ctx, job, errMsg, log)
	}

	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

// handleCancelled acks a job whose run was cancelled while the worker kept
// running. No retry, DLQ or email follows.
func (uc *ProcessVideoUseCase) handleCancelled(ctx context.Context, job *entity.Job, log *zap.Logger) error {
	job.MarkCancelled()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to cancelled", zap.Error(err))
	}
	uc.publishStatus(ctx, job, log)
	metrics.JobsProcessedTotal.WithLabelValues("cancelled").Inc()
	log.Info("job cancelled")
	return nil
}

// handleInterrupted leaves a job cut short by shutdown for redelivery. The
// record is written with a detached context since ctx is already done.
func (uc *ProcessVideoUseCase) handleInterrupted(ctx context.Context, job *entity.Job, errMsg string, log *zap.Logger) error {
	persistCtx := context.WithoutCancel(ctx)
	job.MarkInterrupted()
	if err := uc.repo.Update(persistCtx, job); err != nil {
		log.Error("failed to reset interrupted job", zap.Error(err))
	}
	uc.publishStatus(persistCtx, job, log)
	log.Warn("job interrupted by shutdown, leaving it for redelivery", zap.String("stage", errMsg))
	return fmt.Errorf("interrupted: %s: %w", errMsg, ctx.Err())
}

func (uc *ProcessVideoUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.VideoProcessingMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, port.FailureNotice{
			UserEmail: msg.UserEmail,
			JobID:     job.ID.String(),
			VideoKey:  msg.VideoKey,
			Reason:    errMsg,
			Attempts:  job.Attempt,
		})
	}

	return nil
}

func (uc *ProcessVideoUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	data, err := json.Marshal(job.StatusMessage())
	if err != nil {
		log.Error("failed to marshal status", zap.Error(err))
		return
	}
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
