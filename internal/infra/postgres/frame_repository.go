package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type FrameRepository struct {
	pool *pgxpool.Pool
}

func NewFrameRepository(pool *pgxpool.Pool) *FrameRepository {
	return &FrameRepository{pool: pool}
}

// SaveFrames replaces the frame records of a job. A retried job keeps only
// the frames of its last successful run.
func (r *FrameRepository) SaveFrames(ctx context.Context, jobID uuid.UUID, frames []entity.Frame) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save frames: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM extracted_frames WHERE job_id=$1", jobID); err != nil {
		return fmt.Errorf("clear frames: %w", err)
	}

	batch := &pgx.Batch{}
	for _, f := range frames {
		batch.Queue(`
			INSERT INTO extracted_frames (
				id, job_id, sequence_index, timestamp_seconds, file_name, size_bytes, score
			) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			f.ID, jobID, f.SequenceIndex, f.TimestampSeconds, f.FileName(), len(f.Image), f.Score,
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert frames: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit frames: %w", err)
	}
	return nil
}

func (r *FrameRepository) ListFrames(ctx context.Context, jobID uuid.UUID) ([]port.FrameRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, sequence_index, timestamp_seconds, file_name, size_bytes, score
		FROM extracted_frames WHERE job_id=$1
		ORDER BY sequence_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (port.FrameRecord, error) {
		var rec port.FrameRecord
		err := row.Scan(&rec.ID, &rec.JobID, &rec.SequenceIndex, &rec.TimestampSeconds,
			&rec.FileName, &rec.SizeBytes, &rec.Score)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan frames: %w", err)
	}
	return records, nil
}
