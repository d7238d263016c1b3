package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/sony/gobreaker"
)

// Provider is the external search collaborator: one query in, candidate documents out
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]model.Candidate, error)
}

// StaticProvider returns a fixed candidate list for every query
type StaticProvider struct {
	Candidates []model.Candidate
	Err        error
}

// NewStaticProvider serves the given links. Titles are left empty so
// discovery derives them from the URL.
func NewStaticProvider(urls []string) *StaticProvider {
	candidates := make([]model.Candidate, 0, len(urls))
	for _, link := range urls {
		if link = strings.TrimSpace(link); link != "" {
			candidates = append(candidates, model.Candidate{URL: link, Source: "static", RelevanceScore: 1})
		}
	}
	return &StaticProvider{Candidates: candidates}
}

func (p *StaticProvider) Name() string { return "static" }

func (p *StaticProvider) Search(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]model.Candidate, len(p.Candidates))
	copy(out, p.Candidates)
	return out, nil
}

// BreakerProvider stops calling a provider that keeps failing and lets it
// recover after a cool-down.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps next with a circuit breaker that opens after
// consecutiveFailures failed searches and half-opens after timeout.
func NewBreakerProvider(next Provider, consecutiveFailures uint32, timeout time.Duration) *BreakerProvider {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        "discovery-" + next.Name(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Discovery circuit breaker changed state",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (p *BreakerProvider) Name() string { return p.next.Name() }

func (p *BreakerProvider) Search(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.next.Search(ctx, query, limit)
	})
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", p.next.Name(), err)
	}
	candidates, _ := result.([]model.Candidate)
	return candidates, nil
}

// State returns the breaker state name
func (p *BreakerProvider) State() string {
	return p.breaker.State().String()
}
