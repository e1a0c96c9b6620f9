package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

const JobCancelledMessage = "cancelled"

// Job is the persisted record of one queued extraction request.
type Job struct {
	ID            uuid.UUID
	UserID        string
	VideoKey      string
	ZipKey        string
	Status        JobStatus
	FrameCount    int
	SampledCount  int
	FileSize      int64
	VideoDuration float64
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewJob(userID, videoKey string, fileSize int64, maxAttempts int) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:          uuid.New(),
		UserID:      userID,
		VideoKey:    videoKey,
		FileSize:    fileSize,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// MarkProcessing starts a new attempt. Results of an earlier attempt are
// cleared so a retried job never reports stale counts.
func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.ErrorMessage = ""
	j.ZipKey = ""
	j.FrameCount = 0
	j.SampledCount = 0
	j.CompletedAt = nil
	j.UpdatedAt = time.Now().UTC()
}

// MarkCompleted records the outcome of a successful run.
func (j *Job) MarkCompleted(zipKey string, run *ExtractionRun) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ZipKey = zipKey
	j.FrameCount = len(run.Frames)
	j.SampledCount = run.SampledCount
	j.VideoDuration = run.VideoDuration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *Job) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

// MarkCancelled ends the job on request. A cancelled job is not retried.
func (j *Job) MarkCancelled() {
	j.Status = JobStatusFailed
	j.ErrorMessage = JobCancelledMessage
	j.UpdatedAt = time.Now().UTC()
}

// MarkInterrupted puts a job whose attempt was cut short by shutdown back to
// PENDING. The interrupted attempt does not count against MaxAttempts.
func (j *Job) MarkInterrupted() {
	j.Status = JobStatusPending
	if j.Attempt > 0 {
		j.Attempt--
	}
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}

// StatusMessage is the outbound view of the job published on every transition.
func (j *Job) StatusMessage() VideoStatusMessage {
	return VideoStatusMessage{
		JobID:        j.ID,
		UserID:       j.UserID,
		Status:       j.Status,
		VideoKey:     j.VideoKey,
		ZipKey:       j.ZipKey,
		FrameCount:   j.FrameCount,
		SampledCount: j.SampledCount,
		Duration:     j.VideoDuration,
		ErrorMessage: j.ErrorMessage,
		Attempt:      j.Attempt,
		MaxAttempts:  j.MaxAttempts,
	}
}
