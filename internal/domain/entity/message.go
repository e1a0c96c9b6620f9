package entity

import (
	"time"

	"github.com/google/uuid"
)

// VideoProcessingMessage is the inbound message from the video.processing queue.
type VideoProcessingMessage struct {
	JobID     uuid.UUID `json:"job_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// VideoStatusMessage is the outbound message published to the video.status queue.
type VideoStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	ZipKey       string    `json:"zip_key,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	SampledCount int       `json:"sampled_count,omitempty"`
	Duration     float64   `json:"duration_seconds,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}

type RunEventType string

const (
	RunEventFrame    RunEventType = "frame"
	RunEventProgress RunEventType = "progress"
	RunEventFinished RunEventType = "finished"
)

// RunEvent is one incremental update of an extraction run. Frame events carry
// metadata only; image bytes travel in the archive.
type RunEvent struct {
	Type             RunEventType `json:"type"`
	RunID            uuid.UUID    `json:"run_id"`
	FrameID          *uuid.UUID   `json:"frame_id,omitempty"`
	SequenceIndex    *int         `json:"sequence_index,omitempty"`
	TimestampSeconds *float64     `json:"timestamp_seconds,omitempty"`
	FileName         string       `json:"file_name,omitempty"`
	Progress         *float64     `json:"progress,omitempty"`
	Status           RunStatus    `json:"status,omitempty"`
	Reason           string       `json:"reason,omitempty"`
	At               time.Time    `json:"at"`
}

func NewFrameEvent(runID uuid.UUID, f Frame) RunEvent {
	id, seq, ts := f.ID, f.SequenceIndex, f.TimestampSeconds
	return RunEvent{
		Type:             RunEventFrame,
		RunID:            runID,
		FrameID:          &id,
		SequenceIndex:    &seq,
		TimestampSeconds: &ts,
		FileName:         f.FileName(),
		At:               time.Now().UTC(),
	}
}

func NewProgressEvent(runID uuid.UUID, progress float64) RunEvent {
	return RunEvent{
		Type:     RunEventProgress,
		RunID:    runID,
		Progress: &progress,
		At:       time.Now().UTC(),
	}
}

func NewFinishedEvent(runID uuid.UUID, status RunStatus, reason string) RunEvent {
	return RunEvent{
		Type:   RunEventFinished,
		RunID:  runID,
		Status: status,
		Reason: reason,
		At:     time.Now().UTC(),
	}
}
