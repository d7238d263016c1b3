package model

import (
	"maps"
	"slices"
	"time"
)

// Confidence describes how strongly a candidate was validated before download
type Confidence string

const (
	ConfidenceVerified   Confidence = "verified"
	ConfidenceUnverified Confidence = "unverified"
)

// Candidate is a discovered document reference that has not been downloaded yet
type Candidate struct {
	URL            string     `json:"url" bson:"url"`
	Title          string     `json:"title" bson:"title"`
	Source         string     `json:"source" bson:"source"`
	RelevanceScore float64    `json:"relevance_score" bson:"relevance_score"`
	Confidence     Confidence `json:"confidence,omitempty" bson:"confidence,omitempty"`
}

// Artifact is one extracted table with its category, quality score and provenance.
// Artifacts are never modified after they are appended to a job.
type Artifact struct {
	Name           string            `json:"name" bson:"name"`
	Shape          [2]int            `json:"shape" bson:"shape"`
	Columns        []string          `json:"columns" bson:"columns"`
	Data           []map[string]any  `json:"data" bson:"data"`
	RowCount       int               `json:"row_count" bson:"row_count"`
	ColCount       int               `json:"col_count" bson:"col_count"`
	HasNumeric     bool              `json:"has_numeric" bson:"has_numeric"`
	PreviewOnly    bool              `json:"preview_only" bson:"preview_only"`
	DataTypes      map[string]string `json:"data_types" bson:"data_types"`
	Category       string            `json:"category" bson:"category"`
	QualityScore   float64           `json:"quality_score" bson:"quality_score"`
	SourceDocument string            `json:"source_pdf,omitempty" bson:"source_pdf,omitempty"`
	SourceURL      string            `json:"source_url,omitempty" bson:"source_url,omitempty"`
}

// JobParams holds the submission parameters of a job
type JobParams struct {
	Topic        string `json:"topic,omitempty" bson:"topic,omitempty"`
	MaxDocuments int    `json:"max_documents,omitempty" bson:"max_documents,omitempty"`
	DocumentName string `json:"document_name,omitempty" bson:"document_name,omitempty"`
	DocumentPath string `json:"-" bson:"-"`
}

// JobSummary is filled in when a job completes
type JobSummary struct {
	TableCount         int     `json:"table_count" bson:"table_count"`
	ProcessedDocuments int     `json:"processed_documents" bson:"processed_documents"`
	FailedDocuments    int     `json:"failed_documents" bson:"failed_documents"`
	ProcessingTime     float64 `json:"processing_time" bson:"processing_time"` // In seconds
}

// Job is one unit of end-to-end work tracked from submission to a terminal state
type Job struct {
	ID          string      `json:"id" bson:"_id"`
	Kind        JobKind     `json:"kind" bson:"kind"`
	Status      JobStatus   `json:"status" bson:"status"`
	Progress    int         `json:"progress" bson:"progress"`
	Message     string      `json:"message" bson:"message"`
	Params      JobParams   `json:"params" bson:"params"`
	Candidates  []Candidate `json:"candidates" bson:"candidates"`
	Artifacts   []Artifact  `json:"artifacts" bson:"artifacts"`
	Error       string      `json:"error,omitempty" bson:"error,omitempty"`
	Summary     *JobSummary `json:"summary,omitempty" bson:"summary,omitempty"`
	CreatedAt   time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Clone returns a copy of j that shares no mutable slices, maps or pointers with it.
// Artifact contents are shared since they are immutable once appended.
func (j Job) Clone() Job {
	out := j
	out.Candidates = slices.Clone(j.Candidates)
	out.Artifacts = slices.Clone(j.Artifacts)
	if out.Candidates == nil {
		out.Candidates = []Candidate{}
	}
	if out.Artifacts == nil {
		out.Artifacts = []Artifact{}
	}
	if j.Summary != nil {
		summary := *j.Summary
		out.Summary = &summary
	}
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}

// CloneArtifact returns a deep copy of a, for callers that need to modify it
func CloneArtifact(a Artifact) Artifact {
	out := a
	out.Columns = slices.Clone(a.Columns)
	out.DataTypes = maps.Clone(a.DataTypes)
	if a.Data != nil {
		out.Data = make([]map[string]any, len(a.Data))
		for i, row := range a.Data {
			out.Data[i] = maps.Clone(row)
		}
	}
	return out
}
