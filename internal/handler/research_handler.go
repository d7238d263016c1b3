package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/dandantas/tablescout/internal/worker"
	"github.com/dandantas/tablescout/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

// ResearchHandler handles topic research jobs
type ResearchHandler struct {
	jobs JobService
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(jobs JobService) *ResearchHandler {
	return &ResearchHandler{jobs: jobs}
}

// StartResearchRequest is the body of POST /research/start
type StartResearchRequest struct {
	Topic        string `json:"topic" validate:"required,min=2,max=500"`
	MaxDocuments int    `json:"max_documents" validate:"omitempty,min=1,max=100"`
}

// StartResponse acknowledges a queued job
type StartResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
}

// Start handles POST /research/start
func (h *ResearchHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)

	if fields := validationErrors(&req); fields != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Message: "Invalid research request",
			Fields:  fields,
		})
		return
	}

	job, err := h.jobs.SubmitResearch(r.Context(), req.Topic, req.MaxDocuments)
	if err != nil {
		writeSubmitError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{JobID: job.ID, Status: "started"})
}

// Status handles GET /research/status/{job_id}
func (h *ResearchHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJobStatus(w, r, h.jobs, model.KindTopicResearch)
}

func writeJobStatus(w http.ResponseWriter, r *http.Request, jobs JobService, kind model.JobKind) {
	job, err := jobs.Job(r.Context(), chi.URLParam(r, "job_id"))
	if err == nil && job.Kind != kind {
		err = model.ErrJobNotFound
	}
	if err != nil {
		writeJobError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeSubmitError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Failed to submit job",
		"error", err,
		"correlation_id", middleware.GetCorrelationID(r.Context()),
	)
	if errors.Is(err, worker.ErrQueueFull) || errors.Is(err, worker.ErrPoolStopped) {
		writeError(w, http.StatusServiceUnavailable, "Server is busy, try again later")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to start job")
}
