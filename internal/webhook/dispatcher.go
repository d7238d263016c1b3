package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/sony/gobreaker"
)

// Attempt records one delivery try
type Attempt struct {
	StatusCode   int
	ResponseBody string
	Error        string
	Duration     time.Duration
}

// Dispatcher handles webhook delivery with retry logic
type Dispatcher struct {
	url        string
	httpClient *http.Client
	retry      RetryConfig
	breaker    *gobreaker.CircuitBreaker
}

// NewDispatcher creates a new webhook dispatcher. The breaker opens after
// breakerFailures consecutive failed deliveries and half-opens after breakerTimeout.
func NewDispatcher(url string, timeout time.Duration, retry RetryConfig, breakerFailures uint32, breakerTimeout time.Duration) *Dispatcher {
	if breakerFailures == 0 {
		breakerFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 2,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Webhook circuit breaker changed state",
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Dispatcher{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry:   retry,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Notify posts the terminal state of job with retry logic
func (d *Dispatcher) Notify(ctx context.Context, job model.Job) error {
	payload := FormatJobPayload(job)
	payload.Metadata["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.send(ctx, job.ID, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		slog.Warn("Circuit breaker is open, skipping webhook delivery",
			"job_id", job.ID,
			"circuit_state", d.BreakerState(),
		)
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, jobID string, payload JobPayload) error {
	strategy := NewRetryStrategy(d.retry)

	for attempt := 1; attempt <= strategy.MaxAttempts(); attempt++ {
		slog.Debug("Attempting webhook delivery",
			"job_id", jobID,
			"attempt", attempt,
			"max_attempts", strategy.MaxAttempts(),
		)

		result, err := d.deliver(ctx, payload)
		if err == nil {
			slog.Info("Webhook delivered successfully",
				"job_id", jobID,
				"attempt", attempt,
				"status_code", result.StatusCode,
			)
			return nil
		}

		if !strategy.ShouldRetry(attempt, result.StatusCode, err) {
			slog.Error("Webhook delivery failed",
				"job_id", jobID,
				"attempt", attempt,
				"status_code", result.StatusCode,
				"error", result.Error,
			)
			return fmt.Errorf("webhook delivery failed after %d attempts: %w", attempt, err)
		}

		delay := strategy.CalculateDelay(attempt)
		slog.Warn("Webhook delivery failed, retrying",
			"job_id", jobID,
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", result.Error,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	// Unreachable with MaxAttempts >= 1
	return fmt.Errorf("webhook delivery failed after %d attempts", strategy.MaxAttempts())
}

// deliver performs a single webhook delivery attempt
func (d *Dispatcher) deliver(ctx context.Context, payload JobPayload) (Attempt, error) {
	start := time.Now()
	var attempt Attempt

	body, err := json.Marshal(payload)
	if err != nil {
		attempt.Error = fmt.Sprintf("Failed to marshal payload: %v", err)
		return attempt, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		attempt.Error = fmt.Sprintf("Failed to create request: %v", err)
		return attempt, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		attempt.Error = fmt.Sprintf("Request failed: %v", err)
		attempt.Duration = time.Since(start)
		return attempt, err
	}
	defer resp.Body.Close()

	// Read response body (limit to 1KB to prevent memory issues)
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		slog.Warn("Failed to read webhook response body", "error", err)
	}

	attempt.StatusCode = resp.StatusCode
	attempt.ResponseBody = string(respBody)
	attempt.Duration = time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Error = fmt.Sprintf("Webhook returned status %d", resp.StatusCode)
		return attempt, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return attempt, nil
}

// BreakerState returns the current circuit breaker state
func (d *Dispatcher) BreakerState() string {
	return d.breaker.State().String()
}
