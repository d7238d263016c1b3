package model

import "errors"

// JobKind selects which pipeline variant runs a job
type JobKind string

const (
	KindTopicResearch  JobKind = "topic_research"
	KindSingleDocument JobKind = "single_document"
)

// Valid reports whether k is a known job kind
func (k JobKind) Valid() bool {
	return k == KindTopicResearch || k == KindSingleDocument
}

// JobStatus is a stage of the job lifecycle
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusDiscovering JobStatus = "discovering"
	StatusDownloading JobStatus = "downloading"
	StatusExtracting  JobStatus = "extracting"
	StatusAnalyzing   JobStatus = "analyzing"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
)

// IsTerminal reports whether no transition may leave s
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsActive reports whether progress is meaningful in s
func (s JobStatus) IsActive() bool {
	switch s {
	case StatusQueued, StatusDiscovering, StatusDownloading, StatusExtracting, StatusAnalyzing:
		return true
	}
	return false
}

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrJobTerminal        = errors.New("job is in a terminal state")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrArtifactsTruncated = errors.New("artifacts cannot be removed from a job")
)

// transitions lists the forward edges of the lifecycle. Failing is allowed
// from every non-terminal status and staying in place is always allowed
// while the job is active, so neither is listed here.
var transitions = map[JobStatus][]JobStatus{
	StatusQueued:      {StatusDiscovering, StatusExtracting},
	StatusDiscovering: {StatusDownloading},
	StatusDownloading: {StatusExtracting, StatusCompleted},
	StatusExtracting:  {StatusAnalyzing, StatusDownloading, StatusCompleted},
	StatusAnalyzing:   {StatusDownloading, StatusCompleted},
}

// CanTransition reports whether a job may move from one status to another
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to || to == StatusFailed {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
