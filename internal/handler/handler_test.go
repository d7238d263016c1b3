package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dandantas/tablescout/internal/broadcast"
	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/worker"
	"github.com/dandantas/tablescout/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]model.Job
	submitErr error
	topic     string
	max       int
	document  []byte
}

func newFakeJobs(jobs ...model.Job) *fakeJobs {
	f := &fakeJobs{jobs: make(map[string]model.Job)}
	for _, job := range jobs {
		f.jobs[job.ID] = job
	}
	return f
}

func (f *fakeJobs) SubmitResearch(ctx context.Context, topic string, maxDocuments int) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return model.Job{}, f.submitErr
	}
	f.topic, f.max = topic, maxDocuments
	return model.Job{ID: "research-1", Kind: model.KindTopicResearch, Status: model.StatusQueued}, nil
}

func (f *fakeJobs) SubmitDocument(ctx context.Context, name string, document io.Reader) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return model.Job{}, f.submitErr
	}
	data, err := io.ReadAll(document)
	if err != nil {
		return model.Job{}, err
	}
	f.document = data
	return model.Job{ID: "document-1", Kind: model.KindSingleDocument, Status: model.StatusQueued}, nil
}

func (f *fakeJobs) Job(ctx context.Context, id string) (model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return model.Job{}, model.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobs) Jobs() []model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Job, 0, len(f.jobs))
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out
}

func (f *fakeJobs) Snapshot(jobID string) (model.Message, bool) {
	job, err := f.Job(context.Background(), jobID)
	if err != nil {
		return model.Message{}, false
	}
	return model.NewJobUpdate(job, model.EventNone, nil), true
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter(jobs JobService, hub *broadcast.Hub, db Pinger) http.Handler {
	return newTestRouterWithArchive(jobs, hub, db, nil)
}

func newTestRouterWithArchive(jobs JobService, hub *broadcast.Hub, db Pinger, archive ArchiveLister) http.Handler {
	return NewRouter(
		NewResearchHandler(jobs),
		NewDocumentHandler(jobs, 1),
		NewJobHandler(jobs, archive),
		NewWebSocketHandler(hub, jobs, time.Second),
		NewHealthHandler(db, nil, hub, "test"),
		middleware.CORSConfig{AllowedOrigins: "*", AllowedMethods: "GET, POST, OPTIONS"},
	).Handler()
}

func TestStartResearch(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		jobs := newFakeJobs()
		router := newTestRouter(jobs, broadcast.NewHub(8), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/research/start",
			strings.NewReader(`{"topic":"  ocean temperature  ","max_documents":3}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp StartResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "research-1", resp.JobID)
		assert.Equal(t, "started", resp.Status)
		assert.Equal(t, "ocean temperature", jobs.topic)
		assert.Equal(t, 3, jobs.max)
	})

	t.Run("validation", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), nil)

		cases := map[string]string{
			`{"topic":""}`:                            "topic",
			`{"topic":"x"}`:                           "topic",
			`{"topic":"ok topic","max_documents":-1}`: "max_documents",
		}
		for body, field := range cases {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/research/start", strings.NewReader(body)))
			require.Equal(t, http.StatusBadRequest, rec.Code, body)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Contains(t, resp.Fields, field, body)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/research/start", strings.NewReader(`{`)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("queue full", func(t *testing.T) {
		jobs := newFakeJobs()
		jobs.submitErr = errors.Join(errors.New("submit job"), worker.ErrQueueFull)
		router := newTestRouter(jobs, broadcast.NewHub(8), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/research/start", strings.NewReader(`{"topic":"energy"}`)))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestJobStatusByKind(t *testing.T) {
	research := model.Job{ID: "r1", Kind: model.KindTopicResearch, Status: model.StatusDownloading, Progress: 30}
	document := model.Job{ID: "d1", Kind: model.KindSingleDocument, Status: model.StatusCompleted, Progress: 100}
	router := newTestRouter(newFakeJobs(research, document), broadcast.NewHub(8), nil)

	cases := []struct {
		path string
		code int
	}{
		{"/research/status/r1", http.StatusOK},
		{"/pdf/status/d1", http.StatusOK},
		{"/research/status/d1", http.StatusNotFound},
		{"/pdf/status/r1", http.StatusNotFound},
		{"/research/status/missing", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.code, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/research/status/r1", nil))
	var job model.Job
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&job))
	assert.Equal(t, model.StatusDownloading, job.Status)
	assert.Equal(t, 30, job.Progress)
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/pdf/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadDocument(t *testing.T) {
	document := []byte("%PDF-1.7\nbody")

	t.Run("accepted", func(t *testing.T) {
		jobs := newFakeJobs()
		router := newTestRouter(jobs, broadcast.NewHub(8), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, uploadRequest(t, "pdf_file", "report.PDF", document))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp StartResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "document-1", resp.JobID)
		assert.Equal(t, "processing", resp.Status)
		assert.Equal(t, "report.PDF", resp.Filename)
		assert.Equal(t, document, jobs.document)
	})

	cases := map[string]*http.Request{
		"wrong field":     uploadRequest(t, "file", "report.pdf", document),
		"wrong extension": uploadRequest(t, "pdf_file", "report.txt", document),
		"not a document":  uploadRequest(t, "pdf_file", "report.pdf", []byte("<html>")),
		"too short":       uploadRequest(t, "pdf_file", "report.pdf", []byte("%P")),
		"too large":       uploadRequest(t, "pdf_file", "report.pdf", append([]byte("%PDF-"), make([]byte, 2<<20)...)),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			jobs := newFakeJobs()
			router := newTestRouter(jobs, broadcast.NewHub(8), nil)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, jobs.document)
		})
	}
}

func TestListJobs(t *testing.T) {
	now := time.Now()
	router := newTestRouter(newFakeJobs(
		model.Job{ID: "a", Kind: model.KindTopicResearch, Status: model.StatusCompleted, CreatedAt: now,
			Artifacts: []model.Artifact{{Name: "Table_1"}, {Name: "Table_2"}}},
		model.Job{ID: "b", Kind: model.KindSingleDocument, Status: model.StatusFailed, CreatedAt: now},
		model.Job{ID: "c", Kind: model.KindTopicResearch, Status: model.StatusCompleted, CreatedAt: now},
	), broadcast.NewHub(8), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?status=completed&limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, model.StatusCompleted, resp.Results[0].Status)
}

type fakeArchive struct {
	jobs   []model.Job
	err    error
	status model.JobStatus
	limit  int64
}

func (f *fakeArchive) List(ctx context.Context, status model.JobStatus, limit int64) ([]model.Job, error) {
	f.status, f.limit = status, limit
	return f.jobs, f.err
}

func TestListArchivedJobs(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?archived=true", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("enabled", func(t *testing.T) {
		archive := &fakeArchive{jobs: []model.Job{{ID: "old", Kind: model.KindTopicResearch, Status: model.StatusFailed}}}
		router := newTestRouterWithArchive(newFakeJobs(), broadcast.NewHub(8), nil, archive)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?archived=true&status=failed&limit=10", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ListJobsResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "old", resp.Results[0].ID)
		assert.Equal(t, model.StatusFailed, archive.status)
		assert.EqualValues(t, 10, archive.limit)
	})

	t.Run("archive error", func(t *testing.T) {
		archive := &fakeArchive{err: errors.New("timeout")}
		router := newTestRouterWithArchive(newFakeJobs(), broadcast.NewHub(8), nil, archive)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?archived=true", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("archive disabled", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var health HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
		assert.Equal(t, "disabled", health.MongoDB)
		assert.Equal(t, "test", health.Version)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("archive unreachable", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), fakePinger{err: errors.New("down")})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("root and unknown paths", func(t *testing.T) {
		router := newTestRouter(newFakeJobs(), broadcast.NewHub(8), fakePinger{})

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var info ServiceInfo
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
		assert.Equal(t, "running", info.Status)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/jobs", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
