package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dandantas/tablescout/internal/model"
)

const (
	// MinDocumentBytes is the size a download must exceed to be accepted
	MinDocumentBytes = 1024

	defaultMaxQueries       = 3
	defaultMaxDocumentBytes = 50 << 20
)

// DocumentMagic is the signature every accepted document starts with
var DocumentMagic = []byte("%PDF-")

// Config controls discovery and download behavior
type Config struct {
	UserAgent        string
	MaxQueries       int
	SearchDelay      time.Duration // Between successive search queries
	FetchDelay       time.Duration // Between successive downloads, floored at MinRequestInterval
	ValidateDelay    time.Duration // Between successive HEAD checks, floored at MinRequestInterval
	Validate         bool
	MaxDocumentBytes int64
}

// Source discovers candidate documents through a Provider and downloads them
type Source struct {
	provider   Provider
	httpClient *http.Client
	cfg        Config
	fetchPacer *Pacer
}

// New creates a document source
func New(provider Provider, httpClient *http.Client, cfg Config) *Source {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = defaultMaxQueries
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = defaultMaxDocumentBytes
	}
	return &Source{
		provider:   provider,
		httpClient: httpClient,
		cfg:        cfg,
		fetchPacer: NewPacer(cfg.FetchDelay),
	}
}

// Discover returns at most limit candidates for topic, deduplicated by
// normalized URL and ranked by descending relevance. An empty result with a
// nil error means the provider answered but nothing usable was found; a
// DiscoveryError is returned only when every provider call failed.
func (s *Source) Discover(ctx context.Context, topic string, limit int) ([]model.Candidate, error) {
	if limit <= 0 {
		return []model.Candidate{}, nil
	}

	queries := GenerateQueries(topic)
	if len(queries) > s.cfg.MaxQueries {
		queries = queries[:s.cfg.MaxQueries]
	}

	var (
		found    []model.Candidate
		failures []error
		attempts int
	)

	for i, query := range queries {
		if len(Rank(found, -1)) >= limit {
			break
		}
		if i > 0 && s.cfg.SearchDelay > 0 {
			if err := sleep(ctx, s.cfg.SearchDelay); err != nil {
				return nil, err
			}
		}

		attempts++
		results, err := s.provider.Search(ctx, query, limit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("Discovery query failed",
				"provider", s.provider.Name(),
				"query", query,
				"error", err,
			)
			failures = append(failures, err)
			continue
		}

		for _, c := range results {
			if !IsDocumentLink(c.URL) {
				continue
			}
			if c.Title == "" {
				c.Title = TitleFromURL(c.URL)
			}
			if c.Source == "" {
				c.Source = s.provider.Name()
			}
			found = append(found, c)
		}
	}

	if attempts > 0 && len(failures) == attempts {
		return nil, &DiscoveryError{Topic: topic, Err: errors.Join(failures...)}
	}

	ranked := Rank(found, limit)
	if !s.cfg.Validate {
		for i := range ranked {
			ranked[i].Confidence = model.ConfidenceUnverified
		}
		return ranked, nil
	}
	return s.validate(ctx, ranked)
}

// validate HEAD-checks candidates. A 2xx answer that looks like a document
// is verified; a 2xx answer of another type, or a server that refuses HEAD,
// keeps the candidate as unverified; anything else drops it.
func (s *Source) validate(ctx context.Context, candidates []model.Candidate) ([]model.Candidate, error) {
	pacer := NewPacer(s.cfg.ValidateDelay)
	valid := make([]model.Candidate, 0, len(candidates))

	for _, c := range candidates {
		if err := pacer.Wait(ctx); err != nil {
			return nil, err
		}

		confidence, ok := s.check(ctx, c.URL)
		if !ok {
			slog.Info("Dropping unreachable candidate", "url", c.URL)
			continue
		}
		c.Confidence = confidence
		valid = append(valid, c)
	}
	return valid, nil
}

func (s *Source) check(ctx context.Context, link string) (model.Confidence, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		slog.Debug("Candidate validation failed", "url", link, "error", err)
		return "", false
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		contentType := strings.ToLower(resp.Header.Get("Content-Type"))
		if strings.Contains(contentType, "pdf") || hasPDFPath(link) {
			return model.ConfidenceVerified, true
		}
		return model.ConfidenceUnverified, true
	case resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusMethodNotAllowed,
		resp.StatusCode == http.StatusNotImplemented:
		return model.ConfidenceUnverified, true
	default:
		return "", false
	}
}

// Fetch downloads a document and validates its signature and size. Calls
// are paced so that successive downloads are at least FetchDelay apart.
func (s *Source) Fetch(ctx context.Context, link string) ([]byte, error) {
	if err := s.fetchPacer.Wait(ctx); err != nil {
		return nil, &FetchError{URL: link, Reason: ReasonCancelled, Err: err}
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, &FetchError{URL: link, Reason: ReasonHTTPStatus, Err: err}
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: link, Reason: ReasonHTTPStatus, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: link, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxDocumentBytes+1))
	if err != nil {
		return nil, &FetchError{URL: link, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode, Err: err}
	}
	if int64(len(body)) > s.cfg.MaxDocumentBytes {
		return nil, &FetchError{
			URL:    link,
			Reason: ReasonInvalidContent,
			Detail: fmt.Sprintf("document exceeds %d bytes", s.cfg.MaxDocumentBytes),
		}
	}

	if err := ValidateDocument(body); err != nil {
		err.URL = link
		return nil, err
	}

	slog.Debug("Document downloaded",
		"url", link,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// ValidateDocument checks the magic signature and minimum size of a payload
func ValidateDocument(body []byte) *FetchError {
	if !bytes.HasPrefix(body, DocumentMagic) {
		detail := "missing document signature"
		if bytes.Contains(bytes.ToLower(body[:min(len(body), 2048)]), []byte("<html")) {
			detail = "received an HTML page instead of a document"
		}
		return &FetchError{Reason: ReasonInvalidContent, Detail: detail}
	}
	if len(body) <= MinDocumentBytes {
		return &FetchError{Reason: ReasonTooSmall, Detail: fmt.Sprintf("%d bytes", len(body))}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
