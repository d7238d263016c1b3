package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/tablescout/internal/model"
)

// ArchiveLister reads terminal jobs that may no longer be in memory
type ArchiveLister interface {
	List(ctx context.Context, status model.JobStatus, limit int64) ([]model.Job, error)
}

// JobHandler lists jobs across both kinds
type JobHandler struct {
	jobs    JobService
	archive ArchiveLister // nil when the archive is disabled
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobs JobService, archive ArchiveLister) *JobHandler {
	return &JobHandler{jobs: jobs, archive: archive}
}

// JobListItem is a job without its candidates and artifact data
type JobListItem struct {
	ID         string          `json:"id"`
	Kind       model.JobKind   `json:"kind"`
	Status     model.JobStatus `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message"`
	Topic      string          `json:"topic,omitempty"`
	Document   string          `json:"document_name,omitempty"`
	TableCount int             `json:"table_count"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// ListJobsResponse represents the list response
type ListJobsResponse struct {
	Total   int           `json:"total"`
	Results []JobListItem `json:"results"`
}

// List handles GET /jobs with optional status and limit query parameters.
// archived=true reads from the archive instead of memory.
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.JobStatus(r.URL.Query().Get("status"))
	limit := parseQueryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}

	jobs := h.jobs.Jobs()
	if r.URL.Query().Get("archived") == "true" {
		if h.archive == nil {
			writeError(w, http.StatusNotFound, "Job archive is disabled")
			return
		}
		archived, err := h.archive.List(r.Context(), status, int64(limit))
		if err != nil {
			slog.Error("Failed to list archived jobs", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to list archived jobs")
			return
		}
		jobs = archived
	}

	results := make([]JobListItem, 0)
	total := 0
	for _, job := range jobs {
		if status != "" && job.Status != status {
			continue
		}
		total++
		if len(results) >= limit {
			continue
		}
		results = append(results, JobListItem{
			ID:         job.ID,
			Kind:       job.Kind,
			Status:     job.Status,
			Progress:   job.Progress,
			Message:    job.Message,
			Topic:      job.Params.Topic,
			Document:   job.Params.DocumentName,
			TableCount: len(job.Artifacts),
			Error:      job.Error,
			CreatedAt:  job.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, ListJobsResponse{Total: total, Results: results})
}
