package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/infra/archive"
	"github.com/fiapx/fiapx-frame-extractor/internal/infra/ffmpeg"
	"github.com/fiapx/fiapx-frame-extractor/internal/usecase"
	"github.com/fiapx/fiapx-frame-extractor/pkg/logger"
)

func main() {
	defaults := usecase.DefaultExtractConfig()

	in := flag.String("in", "", "Input video file (required)")
	out := flag.String("out", "frames.zip", "Output ZIP archive")
	rate := flag.Float64("rate", defaults.SamplesPerSecond, "Samples per second of video")
	threshold := flag.Float64("threshold", defaults.Threshold, "Similarity threshold in (0,1)")
	size := flag.Int("size", defaults.ComparisonSize, "Comparison raster edge in pixels")
	quality := flag.Int("quality", defaults.JPEGQuality, "JPEG quality (1-100)")
	seekTimeout := flag.Duration("seek-timeout", defaults.SeekTimeout, "Maximum wait for one seek")
	ffmpegPath := flag.String("ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	ffprobePath := flag.String("ffprobe", "ffprobe", "Path to the ffprobe binary")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	if *in == "" {
		fmt.Fprintf(os.Stderr, "Error: -in flag is required\n\n")
		fmt.Fprintf(os.Stderr, "Usage example:\n")
		fmt.Fprintf(os.Stderr, "  extract -in video.mp4 -out frames.zip -threshold 0.05\n\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	log, err := logger.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg := usecase.ExtractConfig{
		SamplesPerSecond: *rate,
		ComparisonSize:   *size,
		Threshold:        *threshold,
		SeekTimeout:      *seekTimeout,
		JPEGQuality:      *quality,
	}
	opener := ffmpeg.NewOpener(ffmpeg.OpenerConfig{
		FFmpegPath:  *ffmpegPath,
		FFprobePath: *ffprobePath,
	}, log)

	if err := run(log, opener, cfg, *in, *out); err != nil {
		log.Error("extraction failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, opener *ffmpeg.Opener, cfg usecase.ExtractConfig, in, out string) error {
	extractor, err := usecase.NewExtractFramesUseCase(opener, cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := extractor.Run(ctx, in, usecase.NewLogSink(log, 0.1))
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := archive.NewZipCreator().WriteArchive(ctx, result.Frames, f); err != nil {
		f.Close()
		os.Remove(out)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	log.Info("archive written",
		zap.String("path", out),
		zap.Int("frames_kept", len(result.Frames)),
		zap.Int("frames_sampled", result.SampledCount),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
