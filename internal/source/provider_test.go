package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dandantas/tablescout/internal/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchAPIProvider(t *testing.T) {
	var gotQuery, gotNum, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		gotKey = r.URL.Query().Get("key")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"link": "https://x.org/a.pdf", "title": "A", "score": 0.4},
				map[string]interface{}{"title": "no link"},
				map[string]interface{}{"link": "https://x.org/b.pdf", "title": "B", "score": "0.9"},
			},
		})
	}))
	defer server.Close()

	provider := NewSearchAPIProvider(SearchAPIConfig{
		Endpoint:   server.URL + "/search",
		APIKey:     "secret",
		ScoreField: "$.score",
	}, server.Client())

	got, err := provider.Search(context.Background(), "grid storage filetype:pdf", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "grid storage filetype:pdf", gotQuery)
	assert.Equal(t, "6", gotNum)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "https://x.org/a.pdf", got[0].URL)
	assert.Equal(t, "A", got[0].Title)
	assert.InDelta(t, 0.4, got[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 0.9, got[1].RelevanceScore, 1e-9)
	assert.Equal(t, "Web Search", got[0].Source)
}

func TestSearchAPIProviderFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [
			{"link": "https://x.org/a.pdf", "mime": "application/pdf"},
			{"link": "https://x.org/b.html", "mime": "text/html"},
			{"link": "https://x.org/c", "mime": "application/pdf"}
		]}`))
	}))
	defer server.Close()

	filters, err := evaluator.ParseRules([]string{"$.mime eq application/pdf", "$.link regex \\.pdf$"})
	require.NoError(t, err)

	got, err := NewSearchAPIProvider(SearchAPIConfig{Endpoint: server.URL, Filters: filters}, server.Client()).
		Search(context.Background(), "q", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://x.org/a.pdf", got[0].URL)
	assert.Equal(t, 1.0, got[0].RelevanceScore)
}

func TestSearchAPIProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/down":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/empty":
			w.Write([]byte(`{"searchInformation": {}}`))
		default:
			w.Write([]byte(`{"items": {"not": "a list"}}`))
		}
	}))
	defer server.Close()

	_, err := NewSearchAPIProvider(SearchAPIConfig{Endpoint: server.URL + "/down"}, server.Client()).
		Search(context.Background(), "q", 1)
	assert.ErrorContains(t, err, "status 429")

	got, err := NewSearchAPIProvider(SearchAPIConfig{Endpoint: server.URL + "/empty"}, server.Client()).
		Search(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewSearchAPIProvider(SearchAPIConfig{Endpoint: server.URL + "/odd"}, server.Client()).
		Search(context.Background(), "q", 1)
	assert.ErrorContains(t, err, "not a list")
}

func TestPerplexityProvider(t *testing.T) {
	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) || len(req.Messages) == 0 {
			return
		}
		assert.Equal(t, "sonar-deep-research", req.Model)
		prompt = req.Messages[len(req.Messages)-1].Content

		content := "Here you go:\n```json\n[{\"url\": \"https://x.org/a.pdf\", \"title\": \"A\", \"relevance\": 0.7}, {\"url\": \"https://x.org/b.pdf\", \"title\": \"B\"}]\n```"
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "sonar-deep-research",
			"choices": []interface{}{
				map[string]interface{}{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]interface{}{"role": "assistant", "content": content},
				},
			},
		})
	}))
	defer server.Close()

	provider := NewPerplexityProvider(PerplexityConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/",
		Model:   "sonar-deep-research",
	}, server.Client())

	got, err := provider.Search(context.Background(), "battery recycling filetype:pdf", 4)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Contains(t, prompt, "battery recycling filetype:pdf")
	assert.Contains(t, prompt, "up to 4")
	assert.InDelta(t, 0.7, got[0].RelevanceScore, 1e-9)
	assert.InDelta(t, 1.0, got[1].RelevanceScore, 1e-9)
	assert.Equal(t, "Perplexity", got[1].Source)
}

func TestParseCandidatesFallsBackToLinks(t *testing.T) {
	got := parseCandidates("See https://x.org/a.pdf, and (https://y.org/b.pdf).", "LLM")
	require.Len(t, got, 2)
	assert.Equal(t, "https://x.org/a.pdf", got[0].URL)
	assert.Equal(t, "https://y.org/b.pdf", got[1].URL)
	assert.Empty(t, got[0].Title)
}
