package webhook

import (
	"fmt"

	"github.com/dandantas/tablescout/internal/model"
)

// JobPayload is posted when a job reaches a terminal state
type JobPayload struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Details  map[string]any `json:"details"`
}

// FormatJobPayload creates a webhook payload from a terminal job snapshot
func FormatJobPayload(job model.Job) JobPayload {
	subject := job.Params.Topic
	if job.Kind == model.KindSingleDocument {
		subject = job.Params.DocumentName
	}

	var text string
	if job.Status == model.StatusFailed {
		text = fmt.Sprintf("Job %s (%s) failed: %s", job.ID, subject, job.Error)
	} else {
		text = fmt.Sprintf("Job %s (%s) completed with %d tables", job.ID, subject, len(job.Artifacts))
	}

	details := map[string]any{
		"table_count":     len(job.Artifacts),
		"candidate_count": len(job.Candidates),
		"progress":        job.Progress,
	}
	if job.Summary != nil {
		details["processed_documents"] = job.Summary.ProcessedDocuments
		details["failed_documents"] = job.Summary.FailedDocuments
		details["processing_time"] = job.Summary.ProcessingTime
	}
	if job.Error != "" {
		details["error"] = job.Error
	}

	return JobPayload{
		Text: text,
		Metadata: map[string]any{
			"service":   "tablescout",
			"job_id":    job.ID,
			"kind":      job.Kind,
			"status":    job.Status,
			"timestamp": "", // Set by dispatcher
		},
		Details: details,
	}
}
