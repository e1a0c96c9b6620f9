package entity

import (
	"fmt"

	"github.com/google/uuid"
)

const FrameImageExt = "jpg"

// Frame is a kept sample. It is never mutated after creation.
type Frame struct {
	ID               uuid.UUID
	Image            []byte
	SequenceIndex    int
	TimestampSeconds float64
	Width            int
	Height           int
	Score            float64
}

func NewFrame(image []byte, sequenceIndex int, timestamp float64, width, height int, score float64) Frame {
	return Frame{
		ID:               uuid.New(),
		Image:            image,
		SequenceIndex:    sequenceIndex,
		TimestampSeconds: timestamp,
		Width:            width,
		Height:           height,
		Score:            score,
	}
}

// FileName is the archive entry name, e.g. frame_10_1.00s.jpg.
func (f Frame) FileName() string {
	return fmt.Sprintf("frame_%d_%.2fs.%s", f.SequenceIndex, f.TimestampSeconds, FrameImageExt)
}
