package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// RunRegistry exposes the extraction runs of this worker.
type RunRegistry interface {
	ActiveRuns() []entity.ExtractionRun
	CancelRun(id uuid.UUID) bool
	Size() int
	Idle() int
}

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/healthz", healthHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/jobs/{id}", getJobHandler(cfg))
	r.Get("/jobs/{id}/frames", listFramesHandler(cfg))

	r.Get("/runs", listRunsHandler(cfg))
	r.Post("/runs/{id}/cancel", cancelRunHandler(cfg))

	if cfg.Events != nil {
		r.Handle("/ws", cfg.Events)
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Runs != nil {
			resp.Extractors = cfg.Runs.Size()
			resp.IdleExtractors = cfg.Runs.Idle()
			resp.ActiveRunsCount = len(cfg.Runs.ActiveRuns())
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getJobHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		job, err := cfg.Jobs.FindByID(r.Context(), id)
		if errors.Is(err, entity.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if err != nil {
			cfg.Logger.Error("failed to load job", zap.String("job_id", id.String()), zap.Error(err))
			WriteError(w, http.StatusInternalServerError, "failed to load job", "INTERNAL_ERROR")
			return
		}

		resp := JobToResponse(job)
		if job.Status == entity.JobStatusCompleted && job.ZipKey != "" && cfg.Links != nil {
			link, err := cfg.Links.ZipURL(r.Context(), job.ZipKey, cfg.ZipURLExpiry)
			if err != nil {
				cfg.Logger.Warn("failed to presign zip", zap.String("job_id", id.String()), zap.Error(err))
			} else {
				resp.ZipURL = link
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listFramesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}

		if _, err := cfg.Jobs.FindByID(r.Context(), id); err != nil {
			if errors.Is(err, entity.ErrJobNotFound) {
				WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusInternalServerError, "failed to load job", "INTERNAL_ERROR")
			return
		}

		frames, err := cfg.Frames.ListFrames(r.Context(), id)
		if err != nil {
			cfg.Logger.Error("failed to list frames", zap.String("job_id", id.String()), zap.Error(err))
			WriteError(w, http.StatusInternalServerError, "failed to list frames", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, FramesResponse{JobID: id, Frames: frames})
	}
}

func listRunsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := RunsResponse{Runs: []RunResponse{}}
		for _, run := range cfg.Runs.ActiveRuns() {
			resp.Runs = append(resp.Runs, RunToResponse(run))
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func cancelRunHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r)
		if !ok {
			return
		}
		if !cfg.Runs.CancelRun(id) {
			WriteError(w, http.StatusNotFound, "no active run with this id", "NOT_FOUND")
			return
		}
		cfg.Logger.Info("run cancelled over http", zap.String("run_id", id.String()))
		w.WriteHeader(http.StatusAccepted)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid id", "BAD_REQUEST")
		return uuid.Nil, false
	}
	return id, true
}
