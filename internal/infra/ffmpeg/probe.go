package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (o *Opener) probe(ctx context.Context, videoPath string) (port.VideoMetadata, error) {
	if o.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ProbeTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, o.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,duration:format=duration",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return port.VideoMetadata{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(ee.Stderr)))
		}
		return port.VideoMetadata{}, fmt.Errorf("ffprobe: %w", err)
	}

	return parseProbe(output)
}

func parseProbe(data []byte) (port.VideoMetadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return port.VideoMetadata{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return port.VideoMetadata{}, fmt.Errorf("video stream has no dimensions: %w", entity.ErrResourceSetup)
		}

		duration, ok := videoDuration(s.Duration, out.Format.Duration)
		if !ok {
			return port.VideoMetadata{}, fmt.Errorf("video has no duration: %w", entity.ErrResourceSetup)
		}

		return port.VideoMetadata{Duration: duration, Width: s.Width, Height: s.Height}, nil
	}

	return port.VideoMetadata{}, fmt.Errorf("no video stream found: %w", entity.ErrResourceSetup)
}

// videoDuration is the shorter of the stream and container durations. The
// container also spans audio, which may outlast the last video frame.
func videoDuration(stream, format string) (float64, bool) {
	sd, serr := parseDuration(stream)
	fd, ferr := parseDuration(format)
	switch {
	case serr == nil && ferr == nil:
		return math.Min(sd, fd), true
	case serr == nil:
		return sd, true
	case ferr == nil:
		return fd, true
	}
	return 0, false
}

func parseDuration(s string) (float64, error) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !(d > 0) {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}
