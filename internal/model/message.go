package model

import "time"

// MessageType identifies a live-channel message
type MessageType string

const (
	// Outbound
	MessageSubscribed MessageType = "subscribed"
	MessageJobUpdate  MessageType = "job_update"
	MessagePong       MessageType = "pong"
	MessageError      MessageType = "error"

	// Inbound
	MessageSubscribeJob MessageType = "subscribe_job"
	MessagePing         MessageType = "ping"
)

// JobEvent tags a job_update with what happened
type JobEvent string

const (
	EventNone       JobEvent = ""
	EventPDFsFound  JobEvent = "pdfs_found"
	EventProcessing JobEvent = "processing"
	EventCompleted  JobEvent = "completed"
	EventError      JobEvent = "error"
)

// Message is the envelope exchanged over the live channel
type Message struct {
	Type      MessageType    `json:"type"`
	JobID     string         `json:"job_id,omitempty"`
	Status    JobStatus      `json:"status,omitempty"`
	Progress  *int           `json:"progress,omitempty"`
	Message   string         `json:"message,omitempty"`
	Event     JobEvent       `json:"event,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewJobUpdate builds a job_update from a committed job snapshot
func NewJobUpdate(job Job, event JobEvent, data map[string]any) Message {
	progress := job.Progress
	return Message{
		Type:      MessageJobUpdate,
		JobID:     job.ID,
		Status:    job.Status,
		Progress:  &progress,
		Message:   job.Message,
		Event:     event,
		Data:      data,
		Error:     job.Error,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubscribed acknowledges a subscribe_job request
func NewSubscribed(jobID string) Message {
	return Message{
		Type:      MessageSubscribed,
		JobID:     jobID,
		Timestamp: time.Now().UTC(),
	}
}

// NewPong answers a ping
func NewPong() Message {
	return Message{
		Type:      MessagePong,
		Timestamp: time.Now().UTC(),
	}
}

// NewErrorMessage reports a malformed or rejected inbound message
func NewErrorMessage(jobID, reason string) Message {
	return Message{
		Type:      MessageError,
		JobID:     jobID,
		Error:     reason,
		Timestamp: time.Now().UTC(),
	}
}
