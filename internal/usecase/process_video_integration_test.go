//go:build integration

package usecase_test

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"go.uber.org/zap/zaptest"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/email"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-frame-extractor/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
)

var topology = rabbitmq.Topology{
	Exchange:    "fiapx.video",
	Queue:       "video.processing",
	DLQ:         "video.processing.dlq",
	StatusQueue: "video.status",
	EventsQueue: "video.events",
}

type stack struct {
	pool    *pgxpool.Pool
	storage *miniostorage.Storage
	minio   *miniogo.Client
	conn    *amqp.Connection
	amqpURL string
}

func startStack(t *testing.T, ctx context.Context) *stack {
	t.Helper()
	log := zaptest.NewLogger(t)

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { pgContainer.Terminate(context.Background()) })

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { rmqContainer.Terminate(context.Background()) })

	amqpURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { minioContainer.Terminate(context.Background()) })

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.RunMigrations(ctx, pool, log))
	// Applying twice is a no-op.
	require.NoError(t, postgres.RunMigrations(ctx, pool, log))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     minioEndpoint,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
		Region:       "us-east-1",
		UploadBucket: "uploads",
		ZipBucket:    "zips",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	client, err := miniogo.New(minioEndpoint, &miniogo.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	conn, err := amqp.Dial(amqpURL)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &stack{pool: pool, storage: storage, minio: client, conn: conn, amqpURL: amqpURL}
}

func (s *stack) startWorker(t *testing.T, ctx context.Context) {
	t.Helper()
	log := zaptest.NewLogger(t)

	pub, err := rabbitmq.NewPublisher(s.conn, topology.Exchange)
	require.NoError(t, err)

	ex, err := usecase.NewExtractFramesUseCase(
		ffmpeg.NewOpener(ffmpeg.OpenerConfig{}, log),
		usecase.DefaultExtractConfig(),
		log,
	)
	require.NoError(t, err)

	uc := usecase.NewProcessVideoUseCase(usecase.ProcessVideoDeps{
		Jobs:       postgres.NewJobRepository(s.pool),
		Frames:     postgres.NewFrameRepository(s.pool),
		Storage:    s.storage,
		Extractors: usecase.NewExtractorPool(ex),
		Archiver:   archive.NewZipCreator(),
		Sink:       rabbitmq.NewEventSink(rabbitmq.NewEventPublisher(pub), log),
		Status:     rabbitmq.NewStatusPublisher(pub),
		DLQ:        rabbitmq.NewDLQPublisher(pub, topology.DLQ),
		Notifier:   email.NewSMTPNotifier("localhost", 1025, "test@test.local", "", log),
	}, log, usecase.ProcessVideoConfig{
		TempDir:    t.TempDir(),
		MaxRetries: 3,
	})

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         s.amqpURL,
		Topology:    topology,
		Prefetch:    1,
		WorkerCount: 1,
		BaseDelayMs: 100,
	}, uc.Execute, log)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	go consumer.Start(ctx)
	time.Sleep(500 * time.Millisecond)
}

func (s *stack) publish(t *testing.T, ctx context.Context, body []byte) {
	t.Helper()
	ch, err := s.conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	require.NoError(t, ch.PublishWithContext(ctx, topology.Exchange, rabbitmq.RoutingKeyProcessing, false, false,
		amqp.Publishing{ContentType: "application/json", Body: body},
	))
}

// makeVideo renders two seconds of black followed by two seconds of white.
func makeVideo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not on PATH")
	}
	path := filepath.Join(t.TempDir(), "cut.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error", "-y",
		"-f", "lavfi", "-i", "color=c=black:s=64x48:d=2:r=10",
		"-f", "lavfi", "-i", "color=c=white:s=64x48:d=2:r=10",
		"-filter_complex", "[0:v][1:v]concat=n=2:v=1[v]", "-map", "[v]",
		"-c:v", "mpeg4", "-pix_fmt", "yuv420p", path)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
	return path
}

func TestProcessVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	videoPath := makeVideo(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s := startStack(t, ctx)

	videoKey := "testuser/cut.mp4"
	_, err := s.minio.FPutObject(ctx, "uploads", videoKey, videoPath, miniogo.PutObjectOptions{ContentType: "video/mp4"})
	require.NoError(t, err)

	statusCh, err := s.conn.Channel()
	require.NoError(t, err)
	defer statusCh.Close()
	_, err = statusCh.QueueDeclare(topology.StatusQueue, true, false, false, false, nil)
	require.NoError(t, err)

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	s.startWorker(t, workerCtx)

	jobID := uuid.New()
	body, err := json.Marshal(entity.VideoProcessingMessage{
		JobID:     jobID,
		UserID:    "testuser",
		VideoKey:  videoKey,
		UserEmail: "test@test.local",
	})
	require.NoError(t, err)
	s.publish(t, ctx, body)

	statusMsgs, err := statusCh.Consume(topology.StatusQueue, "", true, false, false, false, nil)
	require.NoError(t, err)

	var final entity.VideoStatusMessage
	deadline := time.After(2 * time.Minute)
	for final.Status != entity.JobStatusCompleted {
		select {
		case d := <-statusMsgs:
			require.NoError(t, json.Unmarshal(d.Body, &final))
			require.NotEqual(t, entity.JobStatusFailed, final.Status, final.ErrorMessage)
		case <-deadline:
			t.Fatal("timeout waiting for COMPLETED status")
		}
	}

	assert.Equal(t, jobID, final.JobID)
	assert.Equal(t, 2, final.FrameCount)
	assert.GreaterOrEqual(t, final.SampledCount, 40)

	obj, err := s.minio.GetObject(ctx, "zips", final.ZipKey, miniogo.GetObjectOptions{})
	require.NoError(t, err)
	tmpZip := filepath.Join(t.TempDir(), "result.zip")
	f, err := os.Create(tmpZip)
	require.NoError(t, err)
	_, err = f.ReadFrom(obj)
	require.NoError(t, err)
	f.Close()

	zr, err := zip.OpenReader(tmpZip)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, "frame_0_0.00s.jpg", zr.File[0].Name)
	assert.True(t, strings.HasSuffix(zr.File[1].Name, ".jpg"))

	frames, err := postgres.NewFrameRepository(s.pool).ListFrames(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, zr.File[1].Name, frames[1].FileName)

	var dbStatus string
	require.NoError(t, s.pool.QueryRow(ctx,
		"SELECT status FROM processing_jobs WHERE id=$1", jobID,
	).Scan(&dbStatus))
	assert.Equal(t, "COMPLETED", dbStatus)
}

func TestProcessVideoMalformedMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s := startStack(t, ctx)
	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	s.startWorker(t, workerCtx)

	s.publish(t, ctx, []byte(`{invalid json`))

	dlqCh, err := s.conn.Channel()
	require.NoError(t, err)
	defer dlqCh.Close()

	var got amqp.Delivery
	require.Eventually(t, func() bool {
		d, ok, err := dlqCh.Get(topology.DLQ, true)
		if err != nil || !ok {
			return false
		}
		got = d
		return true
	}, 10*time.Second, 200*time.Millisecond)

	assert.Equal(t, `{invalid json`, string(got.Body))
	assert.Contains(t, got.Headers["x-dlq-reason"], "unmarshal_error")
}
