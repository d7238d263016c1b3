package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTP.Port)
	assert.Equal(t, 5, cfg.Research.DefaultDocuments)
	assert.Equal(t, 10, cfg.Research.MaxDocuments)
	assert.Equal(t, time.Second, cfg.Research.SearchDelay)
	assert.Equal(t, 300*time.Millisecond, cfg.Research.FetchDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Research.ValidateDelay)
	assert.Equal(t, 300*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, 100, cfg.Extraction.PreviewRows)
	assert.Equal(t, []string{"{input}", "{output}"}, cfg.Extraction.Args)
	assert.Equal(t, 4, cfg.Workers.PoolSize)
	assert.Equal(t, 100, cfg.Workers.QueueSize)
	assert.Equal(t, 64, cfg.Broadcast.QueueSize)
	assert.Equal(t, "@hourly", cfg.Janitor.Schedule)
	assert.Equal(t, 168*time.Hour, cfg.Janitor.FileRetention)
	assert.Empty(t, cfg.Mongo.URI)
	assert.Equal(t, "jobs", cfg.Mongo.Collection)
	assert.Equal(t, uint64(10), cfg.Mongo.MaxPoolSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("RESEARCH_FETCH_DELAY", "50ms")
	t.Setenv("DISCOVERY_PROVIDER", "static")
	t.Setenv("DISCOVERY_STATIC_URLS", "https://a.example/a.pdf,https://b.example/b.pdf")
	t.Setenv("WEBHOOK_URL", "https://hooks.example/jobs")
	t.Setenv("SEARCH_API_FILTERS", "$.mime eq application/pdf,$.link exists")
	t.Setenv("JANITOR_ARCHIVE_RETENTION", "720h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, MinFetchDelay, cfg.Research.FetchDelay, "fetch delay has a floor")
	assert.Equal(t, []string{"https://a.example/a.pdf", "https://b.example/b.pdf"}, cfg.Discovery.StaticURLs)
	assert.Equal(t, "https://hooks.example/jobs", cfg.Webhook.URL)
	assert.Equal(t, []string{"$.mime eq application/pdf", "$.link exists"}, cfg.Discovery.SearchFilters)
	assert.Equal(t, 720*time.Hour, cfg.Janitor.ArchiveRetention)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown provider":   {"DISCOVERY_PROVIDER": "bing"},
		"searchapi no url":   {"DISCOVERY_PROVIDER": "searchapi"},
		"service no url":     {"EXTRACTION_MODE": "service"},
		"bad pool size":      {"WORKER_POOL_SIZE": "0"},
		"max below default":  {"RESEARCH_MAX_DOCUMENTS": "2"},
		"malformed duration": {"EXTRACTION_TIMEOUT": "soon"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "job_id", "j1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"job_id":"j1"`)

	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "INFO", parseLevel("verbose").String())
}
