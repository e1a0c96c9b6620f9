package port

import (
	"context"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/google/uuid"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Update(ctx context.Context, job *entity.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
}

// FrameRecord is the persisted metadata of a kept frame.
type FrameRecord struct {
	ID               uuid.UUID `json:"id"`
	JobID            uuid.UUID `json:"job_id"`
	SequenceIndex    int       `json:"sequence_index"`
	TimestampSeconds float64   `json:"timestamp_seconds"`
	FileName         string    `json:"file_name"`
	SizeBytes        int       `json:"size_bytes"`
	Score            float64   `json:"score"`
}

type FrameRepository interface {
	SaveFrames(ctx context.Context, jobID uuid.UUID, frames []entity.Frame) error
	ListFrames(ctx context.Context, jobID uuid.UUID) ([]FrameRecord, error)
}
