package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dandantas/tablescout/internal/evaluator"
	"github.com/dandantas/tablescout/internal/model"
)

// SearchAPIConfig describes a JSON web-search endpoint. Result fields are
// addressed with JSONPath so that different providers can be plugged in
// without code changes.
type SearchAPIConfig struct {
	Endpoint    string
	APIKey      string
	APIKeyParam string // Query parameter carrying the key, e.g. "key" or "api_key"
	QueryParam  string
	CountParam  string
	ResultsPath string // e.g. "$.items"
	URLField    string // Relative to one result, e.g. "$.link"
	TitleField  string
	ScoreField  string // Optional
	UserAgent   string
	// Results failing any filter are dropped, e.g. "$.mime eq application/pdf"
	Filters []evaluator.Rule
}

// SearchAPIProvider queries a JSON web-search API
type SearchAPIProvider struct {
	cfg        SearchAPIConfig
	httpClient *http.Client
	eval       *evaluator.Evaluator
}

// NewSearchAPIProvider creates a search API provider with defaults for unset fields
func NewSearchAPIProvider(cfg SearchAPIConfig, httpClient *http.Client) *SearchAPIProvider {
	if cfg.QueryParam == "" {
		cfg.QueryParam = "q"
	}
	if cfg.CountParam == "" {
		cfg.CountParam = "num"
	}
	if cfg.APIKeyParam == "" {
		cfg.APIKeyParam = "key"
	}
	if cfg.ResultsPath == "" {
		cfg.ResultsPath = "$.items"
	}
	if cfg.URLField == "" {
		cfg.URLField = "$.link"
	}
	if cfg.TitleField == "" {
		cfg.TitleField = "$.title"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &SearchAPIProvider{
		cfg:        cfg,
		httpClient: httpClient,
		eval:       evaluator.NewEvaluator(),
	}
}

func (p *SearchAPIProvider) Name() string { return "search_api" }

func (p *SearchAPIProvider) Search(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	endpoint, err := url.Parse(p.cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := endpoint.Query()
	params.Set(p.cfg.QueryParam, query)
	params.Set(p.cfg.CountParam, strconv.Itoa(limit*2))
	if p.cfg.APIKey != "" {
		params.Set(p.cfg.APIKeyParam, p.cfg.APIKey)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var body interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return p.extract(body)
}

func (p *SearchAPIProvider) extract(body interface{}) ([]model.Candidate, error) {
	results, err := p.eval.Lookup(body, p.cfg.ResultsPath)
	if err != nil {
		// No results key means no hits
		return []model.Candidate{}, nil
	}
	items, ok := results.([]interface{})
	if !ok {
		return nil, fmt.Errorf("search results at %s are not a list", p.cfg.ResultsPath)
	}

	candidates := make([]model.Candidate, 0, len(items))
	for _, item := range items {
		link := p.eval.LookupString(item, p.cfg.URLField)
		if link == "" || !p.eval.MatchAll(item, p.cfg.Filters) {
			continue
		}
		score := 1.0
		if v, ok := p.eval.LookupNumber(item, p.cfg.ScoreField); ok {
			score = v
		}
		candidates = append(candidates, model.Candidate{
			URL:            link,
			Title:          p.eval.LookupString(item, p.cfg.TitleField),
			Source:         "Web Search",
			RelevanceScore: score,
		})
	}
	return candidates, nil
}
