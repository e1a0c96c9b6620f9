package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/api"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/config"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/email"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/ffmpeg"
	miniostorage "github.com/fiapx/fiapx-frame-extractor/internal/infra/minio"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/postgres"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/rabbitmq"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/tracing"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/websocket"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
)

func main() {
	startTime := time.Now()

	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting fiapx-frame-extractor",
		zap.Int("workers", cfg.WorkerCount),
		zap.Float64("samples_per_second", cfg.SamplesPerSecond),
		zap.Float64("similarity_threshold", cfg.SimilarityThreshold),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if Jaeger unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()
	fatalOnErr(postgres.RunMigrations(ctx, pool, log), "run migrations")

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:     cfg.MinIOEndpoint,
		AccessKey:    cfg.MinIOAccessKey,
		SecretKey:    cfg.MinIOSecretKey,
		UseSSL:       cfg.MinIOUseSSL,
		Region:       cfg.MinIORegion,
		UploadBucket: cfg.MinIOUploadBucket,
		ZipBucket:    cfg.MinIOZipBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")
	defer pub.Close()

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)
	eventSink := rabbitmq.NewEventSink(rabbitmq.NewEventPublisher(pub), log)

	// Live viewers
	hub := websocket.NewHub(log)
	go hub.Run(ctx)

	// One extractor per worker; each owns its run state.
	opener := ffmpeg.NewOpener(ffmpeg.OpenerConfig{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		ProbeTimeout: cfg.FFprobeTimeout,
	}, log)
	extractors := make([]port.FrameExtractor, 0, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		ex, err := usecase.NewExtractFramesUseCase(opener, cfg.Extract(), log.With(zap.Int("extractor", i)))
		fatalOnErr(err, "create extractor")
		extractors = append(extractors, ex)
	}
	extractorPool := usecase.NewExtractorPool(extractors...)

	jobs := postgres.NewJobRepository(pool)
	frames := postgres.NewFrameRepository(pool)

	uc := usecase.NewProcessVideoUseCase(usecase.ProcessVideoDeps{
		Jobs:       jobs,
		Frames:     frames,
		Storage:    storage,
		Extractors: extractorPool,
		Archiver:   archive.NewZipCreator(),
		Sink:       usecase.MultiSink{eventSink, hub},
		Status:     statusPub,
		DLQ:        dlqPub,
		Notifier:   email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log),
	}, log, usecase.ProcessVideoConfig{
		TempDir:    cfg.TempDir,
		MaxRetries: cfg.MaxRetries,
	})

	// HTTP: health, metrics, job queries, live events
	srv := api.NewServer(api.ServerConfig{
		Port:         cfg.HTTPPort,
		Jobs:         jobs,
		Frames:       frames,
		Runs:         extractorPool,
		Links:        storage,
		ZipURLExpiry: cfg.ZipURLExpiry,
		Events:       hub,
		Logger:       log,
		StartTime:    startTime,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}()

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL: cfg.RabbitMQURL,
		Topology: rabbitmq.Topology{
			Exchange:    cfg.RabbitMQExchange,
			Queue:       cfg.RabbitMQProcessingQueue,
			DLQ:         cfg.RabbitMQDLQ,
			StatusQueue: cfg.RabbitMQStatusQueue,
			EventsQueue: cfg.RabbitMQEventsQueue,
		},
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("fiapx-frame-extractor started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	consumer.Close()
	log.Info("fiapx-frame-extractor stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
