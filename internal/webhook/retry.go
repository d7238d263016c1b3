package webhook

import (
	"math"
	"time"
)

// RetryConfig configures exponential backoff between delivery attempts
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// SetDefaults fills unset fields
func (c *RetryConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
}

// RetryStrategy handles exponential backoff retry logic
type RetryStrategy struct {
	config RetryConfig
}

// NewRetryStrategy creates a new retry strategy
func NewRetryStrategy(config RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{
		config: config,
	}
}

// CalculateDelay calculates the delay for a given attempt using exponential backoff
// Formula: delay = min(initial_delay * (multiplier ^ (attempt-1)), max_delay)
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(rs.config.InitialDelay) * math.Pow(rs.config.Multiplier, float64(attempt-1))
	if delay > float64(rs.config.MaxDelay) {
		return rs.config.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry determines if a retry should be attempted based on the error type
func (rs *RetryStrategy) ShouldRetry(attempt int, statusCode int, err error) bool {
	if attempt >= rs.config.MaxAttempts {
		return false
	}

	// Network errors
	if err != nil && statusCode == 0 {
		return true
	}

	switch {
	case statusCode >= 500 && statusCode < 600:
		return true
	case statusCode == 429:
		return true
	case statusCode >= 400 && statusCode < 500:
		return false
	case statusCode >= 300:
		return true
	}
	return false
}

// MaxAttempts returns the maximum number of attempts
func (rs *RetryStrategy) MaxAttempts() int {
	return rs.config.MaxAttempts
}
