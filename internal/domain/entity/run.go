package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusIdle       RunStatus = "idle"
	RunStatusProcessing RunStatus = "processing"
	RunStatusDone       RunStatus = "done"
	RunStatusError      RunStatus = "error"
)

func (s RunStatus) Terminal() bool {
	return s == RunStatusDone || s == RunStatusError
}

// ExtractionRun is the transient state of one pass over one video input.
type ExtractionRun struct {
	ID            uuid.UUID
	Input         string
	Status        RunStatus
	Progress      float64
	Frames        []Frame
	SampledCount  int
	VideoDuration float64
	ErrorMessage  string
	StartedAt     time.Time
	FinishedAt    *time.Time
}

func NewExtractionRun(input string) *ExtractionRun {
	return &ExtractionRun{
		ID:     uuid.New(),
		Input:  input,
		Status: RunStatusIdle,
	}
}

// MarkProcessing resets progress and output and enters processing.
func (r *ExtractionRun) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.Progress = 0
	r.Frames = nil
	r.SampledCount = 0
	r.ErrorMessage = ""
	r.StartedAt = time.Now().UTC()
	r.FinishedAt = nil
}

func (r *ExtractionRun) AppendFrame(f Frame) {
	r.Frames = append(r.Frames, f)
}

// SetProgress never lets progress go backwards.
func (r *ExtractionRun) SetProgress(p float64) {
	if p < r.Progress {
		return
	}
	if p > 1 {
		p = 1
	}
	r.Progress = p
}

func (r *ExtractionRun) MarkDone() {
	now := time.Now().UTC()
	r.Status = RunStatusDone
	r.SetProgress(1)
	r.FinishedAt = &now
}

// MarkFailed keeps the frames collected so far.
func (r *ExtractionRun) MarkFailed(errMsg string) {
	now := time.Now().UTC()
	r.Status = RunStatusError
	r.ErrorMessage = errMsg
	r.FinishedAt = &now
}

// Snapshot returns a copy that shares the immutable frames but not the slice.
func (r *ExtractionRun) Snapshot() ExtractionRun {
	cp := *r
	cp.Frames = append([]Frame(nil), r.Frames...)
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	return cp
}
