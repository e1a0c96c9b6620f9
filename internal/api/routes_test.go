package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-extractor/internal/domain/port"
)

type fakeJobs struct {
	jobs map[uuid.UUID]*entity.Job
	err  error
}

func (f *fakeJobs) Create(context.Context, *entity.Job) error { return nil }
func (f *fakeJobs) Update(context.Context, *entity.Job) error { return nil }

func (f *fakeJobs) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, entity.ErrJobNotFound
	}
	return job, nil
}

type fakeFrames struct {
	records map[uuid.UUID][]port.FrameRecord
}

func (f *fakeFrames) SaveFrames(context.Context, uuid.UUID, []entity.Frame) error { return nil }

func (f *fakeFrames) ListFrames(_ context.Context, jobID uuid.UUID) ([]port.FrameRecord, error) {
	return f.records[jobID], nil
}

type fakeRuns struct {
	runs      []entity.ExtractionRun
	cancelled []uuid.UUID
}

func (f *fakeRuns) ActiveRuns() []entity.ExtractionRun { return f.runs }
func (f *fakeRuns) Size() int                          { return 3 }
func (f *fakeRuns) Idle() int                          { return 3 - len(f.runs) }

func (f *fakeRuns) CancelRun(id uuid.UUID) bool {
	for _, r := range f.runs {
		if r.ID == id {
			f.cancelled = append(f.cancelled, id)
			return true
		}
	}
	return false
}

type fakeLinker struct{}

func (fakeLinker) ZipURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "http://minio/zips/" + key + "?sig=1", nil
}

type testEnv struct {
	cfg    ServerConfig
	jobs   *fakeJobs
	frames *fakeFrames
	runs   *fakeRuns
}

func newTestEnv(t *testing.T) *testEnv {
	env := &testEnv{
		jobs:   &fakeJobs{jobs: map[uuid.UUID]*entity.Job{}},
		frames: &fakeFrames{records: map[uuid.UUID][]port.FrameRecord{}},
		runs:   &fakeRuns{},
	}
	env.cfg = ServerConfig{
		Jobs:         env.jobs,
		Frames:       env.frames,
		Runs:         env.runs,
		Links:        fakeLinker{},
		ZipURLExpiry: time.Minute,
		Logger:       zaptest.NewLogger(t),
		StartTime:    time.Now().Add(-time.Minute),
	}
	return env
}

func (e *testEnv) do(method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	NewRouter(e.cfg).ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	run := entity.NewExtractionRun("in.mp4")
	run.MarkProcessing()
	env.runs.runs = []entity.ExtractionRun{run.Snapshot()}

	rr := env.do(http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp HealthResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.GreaterOrEqual(t, resp.UptimeS, int64(59))
	assert.Equal(t, 3, resp.Extractors)
	assert.Equal(t, 2, resp.IdleExtractors)
	assert.Equal(t, 1, resp.ActiveRunsCount)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestMetricsEndpoint(t *testing.T) {
	rr := newTestEnv(t).do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestGetJob(t *testing.T) {
	env := newTestEnv(t)
	job := entity.NewJob("u1", "u1/video.mp4", 1024, 3)
	job.MarkProcessing()
	run := entity.NewExtractionRun("in.mp4")
	run.SampledCount = 40
	run.VideoDuration = 4
	run.AppendFrame(entity.NewFrame([]byte{1}, 0, 0, 2, 2, 0))
	job.MarkCompleted("u1/frames_"+job.ID.String()+".zip", run)
	env.jobs.jobs[job.ID] = job

	rr := env.do(http.MethodGet, "/jobs/"+job.ID.String())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp JobResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, job.ID, resp.ID)
	assert.Equal(t, "COMPLETED", resp.Status)
	assert.Equal(t, 1, resp.FrameCount)
	assert.Equal(t, 40, resp.SampledCount)
	assert.Equal(t, "http://minio/zips/"+job.ZipKey+"?sig=1", resp.ZipURL)
}

func TestGetJob_PendingHasNoLink(t *testing.T) {
	env := newTestEnv(t)
	job := entity.NewJob("u1", "u1/video.mp4", 1024, 3)
	env.jobs.jobs[job.ID] = job

	rr := env.do(http.MethodGet, "/jobs/"+job.ID.String())
	require.Equal(t, http.StatusOK, rr.Code)

	var resp JobResponse
	decodeJSON(t, rr, &resp)
	assert.Empty(t, resp.ZipURL)
}

func TestGetJob_Errors(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/jobs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodGet, "/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rr.Code)
	var resp ErrorResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, "NOT_FOUND", resp.Code)

	env.jobs.err = errors.New("connection reset")
	rr = env.do(http.MethodGet, "/jobs/"+uuid.NewString())
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestListFrames(t *testing.T) {
	env := newTestEnv(t)
	job := entity.NewJob("u1", "u1/video.mp4", 1024, 3)
	env.jobs.jobs[job.ID] = job
	env.frames.records[job.ID] = []port.FrameRecord{
		{ID: uuid.New(), JobID: job.ID, SequenceIndex: 0, FileName: "frame_0_0.00s.jpg", SizeBytes: 10},
		{ID: uuid.New(), JobID: job.ID, SequenceIndex: 12, TimestampSeconds: 1.2, FileName: "frame_12_1.20s.jpg", SizeBytes: 11, Score: 0.4},
	}

	rr := env.do(http.MethodGet, "/jobs/"+job.ID.String()+"/frames")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp FramesResponse
	decodeJSON(t, rr, &resp)
	assert.Equal(t, job.ID, resp.JobID)
	require.Len(t, resp.Frames, 2)
	assert.Equal(t, "frame_12_1.20s.jpg", resp.Frames[1].FileName)

	rr = env.do(http.MethodGet, "/jobs/"+uuid.NewString()+"/frames")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRuns(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(http.MethodGet, "/runs")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"runs":[]}`, rr.Body.String())

	run := entity.NewExtractionRun("in.mp4")
	run.MarkProcessing()
	run.SetProgress(0.5)
	env.runs.runs = []entity.ExtractionRun{run.Snapshot()}

	rr = env.do(http.MethodGet, "/runs")
	var resp RunsResponse
	decodeJSON(t, rr, &resp)
	require.Len(t, resp.Runs, 1)
	assert.Equal(t, run.ID, resp.Runs[0].ID)
	assert.Equal(t, "processing", resp.Runs[0].Status)
	assert.Equal(t, 0.5, resp.Runs[0].Progress)

	rr = env.do(http.MethodPost, "/runs/"+run.ID.String()+"/cancel")
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, []uuid.UUID{run.ID}, env.runs.cancelled)

	rr = env.do(http.MethodPost, "/runs/"+uuid.NewString()+"/cancel")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
