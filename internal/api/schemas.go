package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HealthResponse struct {
	Status          string `json:"status"`
	UptimeS         int64  `json:"uptime_s"`
	Extractors      int    `json:"extractors"`
	IdleExtractors  int    `json:"idle_extractors"`
	ActiveRunsCount int    `json:"active_runs"`
}

type JobResponse struct {
	ID            uuid.UUID  `json:"id"`
	UserID        string     `json:"user_id"`
	VideoKey      string     `json:"video_key"`
	Status        string     `json:"status"`
	FrameCount    int        `json:"frame_count"`
	SampledCount  int        `json:"sampled_count"`
	VideoDuration float64    `json:"video_duration_seconds"`
	Attempt       int        `json:"attempt"`
	MaxAttempts   int        `json:"max_attempts"`
	Error         string     `json:"error,omitempty"`
	ZipKey        string     `json:"zip_key,omitempty"`
	ZipURL        string     `json:"zip_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func JobToResponse(j *entity.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		UserID:        j.UserID,
		VideoKey:      j.VideoKey,
		Status:        string(j.Status),
		FrameCount:    j.FrameCount,
		SampledCount:  j.SampledCount,
		VideoDuration: j.VideoDuration,
		Attempt:       j.Attempt,
		MaxAttempts:   j.MaxAttempts,
		Error:         j.ErrorMessage,
		ZipKey:        j.ZipKey,
		CreatedAt:     j.CreatedAt,
		CompletedAt:   j.CompletedAt,
	}
}

type FramesResponse struct {
	JobID  uuid.UUID          `json:"job_id"`
	Frames []port.FrameRecord `json:"frames"`
}

type RunResponse struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	Progress      float64   `json:"progress"`
	FramesKept    int       `json:"frames_kept"`
	SampledCount  int       `json:"sampled_count"`
	VideoDuration float64   `json:"video_duration_seconds"`
	StartedAt     time.Time `json:"started_at"`
}

func RunToResponse(r entity.ExtractionRun) RunResponse {
	return RunResponse{
		ID:            r.ID,
		Status:        string(r.Status),
		Progress:      r.Progress,
		FramesKept:    len(r.Frames),
		SampledCount:  r.SampledCount,
		VideoDuration: r.VideoDuration,
		StartedAt:     r.StartedAt,
	}
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
