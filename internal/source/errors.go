package source

import (
	"errors"
	"fmt"
)

// FetchReason classifies a rejected download
type FetchReason string

const (
	ReasonHTTPStatus     FetchReason = "http_status"
	ReasonInvalidContent FetchReason = "invalid_content"
	ReasonTooSmall       FetchReason = "too_small"
	ReasonCancelled      FetchReason = "cancelled"
)

// DiscoveryError means no usable candidates could be produced for a topic
type DiscoveryError struct {
	Topic string
	Err   error
}

func (e *DiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document discovery failed for %q: %v", e.Topic, e.Err)
	}
	return fmt.Sprintf("no relevant documents found for %q", e.Topic)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// FetchError is returned when a document download is rejected
type FetchError struct {
	URL        string
	Reason     FetchReason
	StatusCode int // Zero when the request never got a response
	Detail     string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchReasonOf extracts the reason from a FetchError chain, or "" when err is not one
func FetchReasonOf(err error) FetchReason {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Reason
	}
	return ""
}
