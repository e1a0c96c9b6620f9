package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	ffmpeggo "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/raster"
)

const (
	maxStderrBytes = 4 * 1024
	headerBytes    = 261
	// tailWindow is how close to the end a seek may fall back to the last frame.
	tailWindow = 1.0
)

type OpenerConfig struct {
	FFmpegPath   string
	FFprobePath  string
	ProbeTimeout time.Duration
}

// Opener opens local video files as seekable sources backed by the ffmpeg
// and ffprobe binaries.
type Opener struct {
	cfg    OpenerConfig
	logger *zap.Logger
}

func NewOpener(cfg OpenerConfig, logger *zap.Logger) *Opener {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	return &Opener{cfg: cfg, logger: logger}
}

func (o *Opener) Open(_ context.Context, videoPath string) (port.VideoSource, error) {
	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("stat video: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return nil, fmt.Errorf("%s is not a video file: %w", videoPath, entity.ErrResourceSetup)
	}
	if err := checkContainer(videoPath); err != nil {
		return nil, err
	}
	return &Source{opener: o, path: videoPath}, nil
}

// checkContainer rejects files whose magic bytes identify a known non-video
// type. Unrecognized containers are left for ffprobe to judge.
func checkContainer(videoPath string) error {
	f, err := os.Open(videoPath)
	if err != nil {
		return fmt.Errorf("open video: %w", err)
	}
	defer f.Close()

	head := make([]byte, headerBytes)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("read video header: %w", err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return nil
	}
	if kind.MIME.Type != "video" {
		return fmt.Errorf("%s is %s, not a video: %w", videoPath, kind.MIME.Value, entity.ErrResourceSetup)
	}
	return nil
}

// Source decodes exactly one frame per Seek by running ffmpeg with an input
// seek, so the pixels held after Seek returns always belong to the target
// timestamp.
type Source struct {
	opener *Opener
	path   string

	mu      sync.Mutex
	meta    *port.VideoMetadata
	current *image.RGBA
	closed  bool
}

func (s *Source) Metadata(ctx context.Context) (port.VideoMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadataLocked(ctx)
}

func (s *Source) metadataLocked(ctx context.Context) (port.VideoMetadata, error) {
	if s.closed {
		return port.VideoMetadata{}, errors.New("video source closed")
	}
	if s.meta != nil {
		return *s.meta, nil
	}
	meta, err := s.opener.probe(ctx, s.path)
	if err != nil {
		return port.VideoMetadata{}, err
	}
	s.meta = &meta
	return meta, nil
}

func (s *Source) Seek(ctx context.Context, t float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.metadataLocked(ctx)
	if err != nil {
		return err
	}
	if t < 0 || t >= meta.Duration {
		return fmt.Errorf("seek to %.3fs outside [0, %.3fs): %w", t, meta.Duration, entity.ErrDecode)
	}

	frameBytes := meta.Width * meta.Height * 4
	start := time.Now()
	data, err := s.decode(ctx, seekArgs(s.path, t, meta.Width, meta.Height), frameBytes)
	if err != nil {
		return fmt.Errorf("ffmpeg at %.3fs: %w", t, err)
	}
	if len(data) < frameBytes && t >= meta.Duration-tailWindow {
		// Nothing decodes past the last frame; hold it until the end.
		data, err = s.decode(ctx, lastFrameArgs(s.path, meta.Width, meta.Height), frameBytes)
		if err != nil {
			return fmt.Errorf("ffmpeg last frame for %.3fs: %w", t, err)
		}
		s.opener.logger.Debug("no frame at timestamp, using last frame", zap.Float64("timestamp", t))
	}
	if len(data) < frameBytes {
		return fmt.Errorf("ffmpeg produced %d bytes at %.3fs, want %d: %w", len(data), t, frameBytes, entity.ErrDecode)
	}

	img := image.NewRGBA(image.Rect(0, 0, meta.Width, meta.Height))
	copy(img.Pix, data[:frameBytes])
	s.current = img

	s.opener.logger.Debug("frame decoded",
		zap.Float64("timestamp", t),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// decode runs ffmpeg and returns at most the last frameBytes of its raw output.
func (s *Source) decode(ctx context.Context, args []string, frameBytes int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.opener.cfg.FFmpegPath, args...)

	var stdout, stderr bytes.Buffer
	stdout.Grow(frameBytes)
	cmd.Stdout = &tailWriter{buf: &stdout, limit: frameBytes}
	cmd.Stderr = &tailWriter{buf: &stderr, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v: %s", entity.ErrDecode, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (s *Source) Snapshot(width, height int) (*image.RGBA, error) {
	s.mu.Lock()
	cur := s.current
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, errors.New("video source closed")
	}
	if cur == nil {
		return nil, errors.New("no frame decoded yet")
	}
	return raster.Resample(cur, width, height)
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.current = nil
	return nil
}

// seekArgs decodes the single frame at t as raw RGBA, scaled to the probed
// dimensions so that rotation metadata cannot change the buffer size.
func seekArgs(videoPath string, t float64, width, height int) []string {
	return ffmpeggo.
		Input(videoPath, ffmpeggo.KwArgs{
			"ss":       strconv.FormatFloat(t, 'f', 6, 64),
			"loglevel": "error",
		}).
		Output("pipe:", ffmpeggo.KwArgs{
			"vf":      fmt.Sprintf("scale=%d:%d", width, height),
			"vframes": 1,
			"f":       "rawvideo",
			"pix_fmt": "rgba",
		}).
		GetArgs()
}

// lastFrameArgs decodes the final second of the video; only the last frame
// is kept by the caller.
func lastFrameArgs(videoPath string, width, height int) []string {
	return ffmpeggo.
		Input(videoPath, ffmpeggo.KwArgs{
			"sseof":    "-" + strconv.FormatFloat(tailWindow, 'f', 3, 64),
			"loglevel": "error",
		}).
		Output("pipe:", ffmpeggo.KwArgs{
			"vf":      fmt.Sprintf("scale=%d:%d", width, height),
			"f":       "rawvideo",
			"pix_fmt": "rgba",
		}).
		GetArgs()
}

// tailWriter keeps only the last limit bytes written.
type tailWriter struct {
	buf   *bytes.Buffer
	limit int
}

func (w *tailWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf.Write(p)
	if over := w.buf.Len() - w.limit; over > 0 {
		w.buf.Next(over)
	}
	return n, nil
}
