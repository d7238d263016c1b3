package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/dandantas/tablescout/internal/model"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

// PerplexityConfig configures the LLM discovery provider
type PerplexityConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// PerplexityProvider asks an OpenAI-compatible chat model for document links
type PerplexityProvider struct {
	client    openai.Client
	model     string
	maxTokens int
}

// NewPerplexityProvider creates the provider; httpClient may be nil
func NewPerplexityProvider(cfg PerplexityConfig, httpClient *http.Client) *PerplexityProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(1),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &PerplexityProvider{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

func (p *PerplexityProvider) Name() string { return "perplexity" }

const discoveryPrompt = `Find up to %d publicly downloadable PDF documents (research papers, reports, studies) that contain data tables for this search: %s

Respond with a JSON array only. Each element must have "url" (a direct link to the PDF), "title" and "relevance" (a number between 0 and 1).`

func (p *PerplexityProvider) Search(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a research assistant that locates source documents. Be precise and only return real URLs."),
			openai.UserMessage(fmt.Sprintf(discoveryPrompt, limit, query)),
		},
		MaxTokens: openai.Int(int64(p.maxTokens)),
	})
	if err != nil {
		return nil, fmt.Errorf("perplexity completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("perplexity completion returned no choices")
	}

	return parseCandidates(resp.Choices[0].Message.Content, "Perplexity"), nil
}

type llmCandidate struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"`
}

var urlPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]]+`)

// parseCandidates reads a JSON array out of a model answer. When the answer
// is not valid JSON every URL in the text is used instead.
func parseCandidates(content, sourceTag string) []model.Candidate {
	var parsed []llmCandidate
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
			parsed = nil
		}
	}

	if len(parsed) == 0 {
		for _, link := range urlPattern.FindAllString(content, -1) {
			parsed = append(parsed, llmCandidate{URL: strings.TrimRight(link, ".,;"), Relevance: 1.0})
		}
	}

	candidates := make([]model.Candidate, 0, len(parsed))
	for _, item := range parsed {
		link := strings.TrimSpace(item.URL)
		if link == "" {
			continue
		}
		relevance := item.Relevance
		if relevance <= 0 || relevance > 1 {
			relevance = 1.0
		}
		candidates = append(candidates, model.Candidate{
			URL:            link,
			Title:          strings.TrimSpace(item.Title),
			Source:         sourceTag,
			RelevanceScore: relevance,
		})
	}
	return candidates
}
