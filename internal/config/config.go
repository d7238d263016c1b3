package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	HTTP       HTTPConfig
	Log        LogConfig
	CORS       CORSConfig
	Research   ResearchConfig
	Discovery  DiscoveryConfig
	Extraction ExtractionConfig
	Storage    StorageConfig
	Workers    WorkerConfig
	Broadcast  BroadcastConfig
	Mongo      MongoConfig
	Webhook    WebhookConfig
	Janitor    JanitorConfig
}

// HTTP Server Configuration
type HTTPConfig struct {
	Port         string        `envconfig:"HTTP_PORT" default:"8000"`
	ReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	MaxUploadMB  int64         `envconfig:"HTTP_MAX_UPLOAD_MB" default:"50"`
}

// Logging Configuration
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// CORS Configuration
type CORSConfig struct {
	AllowedOrigins   string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	AllowedMethods   string `envconfig:"CORS_ALLOWED_METHODS" default:"GET, POST, OPTIONS"`
	AllowedHeaders   string `envconfig:"CORS_ALLOWED_HEADERS" default:"*"`
	AllowCredentials bool   `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           int    `envconfig:"CORS_MAX_AGE" default:"3600"`
}

// Research job Configuration
type ResearchConfig struct {
	DefaultDocuments int           `envconfig:"RESEARCH_DEFAULT_DOCUMENTS" default:"5"`
	MaxDocuments     int           `envconfig:"RESEARCH_MAX_DOCUMENTS" default:"10"`
	MaxQueries       int           `envconfig:"RESEARCH_MAX_QUERIES" default:"3"`
	SearchDelay      time.Duration `envconfig:"RESEARCH_SEARCH_DELAY" default:"1s"`
	FetchDelay       time.Duration `envconfig:"RESEARCH_FETCH_DELAY" default:"300ms"`
	ValidateDelay    time.Duration `envconfig:"RESEARCH_VALIDATE_DELAY" default:"500ms"`
	Validate         bool          `envconfig:"RESEARCH_VALIDATE" default:"true"`
	FetchTimeout     time.Duration `envconfig:"RESEARCH_FETCH_TIMEOUT" default:"30s"`
	MaxDocumentBytes int64         `envconfig:"RESEARCH_MAX_DOCUMENT_BYTES" default:"52428800"`
	UserAgent        string        `envconfig:"RESEARCH_USER_AGENT" default:""`
}

// Discovery provider Configuration. Provider is one of perplexity, searchapi or static.
type DiscoveryConfig struct {
	Provider         string        `envconfig:"DISCOVERY_PROVIDER" default:"perplexity"`
	BreakerFailures  uint32        `envconfig:"DISCOVERY_BREAKER_FAILURES" default:"5"`
	BreakerTimeout   time.Duration `envconfig:"DISCOVERY_BREAKER_TIMEOUT" default:"60s"`
	PerplexityAPIKey string        `envconfig:"PERPLEXITY_API_KEY" default:""`
	PerplexityURL    string        `envconfig:"PERPLEXITY_BASE_URL" default:"https://api.perplexity.ai"`
	PerplexityModel  string        `envconfig:"PERPLEXITY_MODEL" default:"sonar-deep-research"`
	PerplexityTokens int64         `envconfig:"PERPLEXITY_MAX_TOKENS" default:"1000"`
	SearchURL        string        `envconfig:"SEARCH_API_URL" default:""`
	SearchAPIKey     string        `envconfig:"SEARCH_API_KEY" default:""`
	SearchKeyParam   string        `envconfig:"SEARCH_API_KEY_PARAM" default:"key"`
	SearchResults    string        `envconfig:"SEARCH_API_RESULTS_PATH" default:"$.items"`
	SearchURLField   string        `envconfig:"SEARCH_API_URL_FIELD" default:"$.link"`
	SearchTitleField string        `envconfig:"SEARCH_API_TITLE_FIELD" default:"$.title"`
	SearchScoreField string        `envconfig:"SEARCH_API_SCORE_FIELD" default:""`
	SearchFilters    []string      `envconfig:"SEARCH_API_FILTERS" default:""`
	StaticURLs       []string      `envconfig:"DISCOVERY_STATIC_URLS" default:""`
}

// Extraction collaborator Configuration. Mode is one of command or service.
type ExtractionConfig struct {
	Mode            string        `envconfig:"EXTRACTION_MODE" default:"command"`
	Timeout         time.Duration `envconfig:"EXTRACTION_TIMEOUT" default:"300s"`
	PreviewRows     int           `envconfig:"EXTRACTION_PREVIEW_ROWS" default:"100"`
	Command         string        `envconfig:"EXTRACTION_COMMAND" default:"table-extractor"`
	Args            []string      `envconfig:"EXTRACTION_ARGS" default:"{input},{output}"`
	AnalyzerCommand string        `envconfig:"ANALYZER_COMMAND" default:""`
	AnalyzerArgs    []string      `envconfig:"ANALYZER_ARGS" default:"{input}"`
	ServiceURL      string        `envconfig:"EXTRACTION_SERVICE_URL" default:""`
}

// File storage Configuration
type StorageConfig struct {
	DownloadDir string `envconfig:"STORAGE_DOWNLOAD_DIR" default:"downloads"`
	UploadDir   string `envconfig:"STORAGE_UPLOAD_DIR" default:"uploads"`
	ResultsDir  string `envconfig:"STORAGE_RESULTS_DIR" default:"results"`
}

// Worker Pool Configuration
type WorkerConfig struct {
	PoolSize  int `envconfig:"WORKER_POOL_SIZE" default:"4"`
	QueueSize int `envconfig:"WORKER_QUEUE_SIZE" default:"100"`
}

// Live channel Configuration
type BroadcastConfig struct {
	QueueSize    int           `envconfig:"BROADCAST_QUEUE_SIZE" default:"64"`
	WriteTimeout time.Duration `envconfig:"BROADCAST_WRITE_TIMEOUT" default:"10s"`
}

// MongoDB Configuration. The job archive is disabled when URI is empty.
type MongoConfig struct {
	URI         string        `envconfig:"MONGO_URI" default:""`
	Database    string        `envconfig:"MONGO_DATABASE" default:"tablescout"`
	Collection  string        `envconfig:"MONGO_COLLECTION" default:"jobs"`
	Timeout     time.Duration `envconfig:"MONGO_TIMEOUT" default:"10s"`
	MaxPoolSize uint64        `envconfig:"MONGO_MAX_POOL_SIZE" default:"10"`
	MinPoolSize uint64        `envconfig:"MONGO_MIN_POOL_SIZE" default:"0"`
	Compressors []string      `envconfig:"MONGO_COMPRESSORS" default:""`
}

// Webhook Configuration. Notifications are disabled when URL is empty.
type WebhookConfig struct {
	URL             string        `envconfig:"WEBHOOK_URL" default:""`
	Timeout         time.Duration `envconfig:"WEBHOOK_TIMEOUT" default:"10s"`
	MaxAttempts     int           `envconfig:"WEBHOOK_MAX_ATTEMPTS" default:"3"`
	InitialBackoff  time.Duration `envconfig:"WEBHOOK_INITIAL_BACKOFF" default:"1s"`
	BreakerFailures uint32        `envconfig:"WEBHOOK_BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"WEBHOOK_BREAKER_TIMEOUT" default:"60s"`
}

// Housekeeping Configuration. Jobs and archived jobs are kept forever when their retention is zero.
type JanitorConfig struct {
	Enabled          bool          `envconfig:"JANITOR_ENABLED" default:"true"`
	Schedule         string        `envconfig:"JANITOR_SCHEDULE" default:"@hourly"`
	FileRetention    time.Duration `envconfig:"JANITOR_FILE_RETENTION" default:"168h"`
	JobRetention     time.Duration `envconfig:"JANITOR_JOB_RETENTION" default:"0s"`
	ArchiveRetention time.Duration `envconfig:"JANITOR_ARCHIVE_RETENTION" default:"0s"`
}

// MinFetchDelay is the smallest pause allowed between document requests
const MinFetchDelay = 300 * time.Millisecond

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	cfg.Research.FetchDelay = max(cfg.Research.FetchDelay, MinFetchDelay)
	cfg.Research.ValidateDelay = max(cfg.Research.ValidateDelay, MinFetchDelay)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that envconfig cannot
func (c *Config) Validate() error {
	var errs []error

	if c.Research.DefaultDocuments < 1 {
		errs = append(errs, errors.New("RESEARCH_DEFAULT_DOCUMENTS must be at least 1"))
	}
	if c.Research.MaxDocuments < c.Research.DefaultDocuments {
		errs = append(errs, errors.New("RESEARCH_MAX_DOCUMENTS must not be lower than RESEARCH_DEFAULT_DOCUMENTS"))
	}
	if c.Workers.PoolSize < 1 {
		errs = append(errs, errors.New("WORKER_POOL_SIZE must be at least 1"))
	}
	if c.Workers.QueueSize < 1 {
		errs = append(errs, errors.New("WORKER_QUEUE_SIZE must be at least 1"))
	}
	if c.Broadcast.QueueSize < 1 {
		errs = append(errs, errors.New("BROADCAST_QUEUE_SIZE must be at least 1"))
	}
	if c.Extraction.Timeout <= 0 {
		errs = append(errs, errors.New("EXTRACTION_TIMEOUT must be positive"))
	}

	switch strings.ToLower(c.Discovery.Provider) {
	case "perplexity", "static":
	case "searchapi":
		if c.Discovery.SearchURL == "" {
			errs = append(errs, errors.New("SEARCH_API_URL is required for the searchapi provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DISCOVERY_PROVIDER %q", c.Discovery.Provider))
	}

	switch strings.ToLower(c.Extraction.Mode) {
	case "command":
		if c.Extraction.Command == "" {
			errs = append(errs, errors.New("EXTRACTION_COMMAND is required in command mode"))
		}
	case "service":
		if c.Extraction.ServiceURL == "" {
			errs = append(errs, errors.New("EXTRACTION_SERVICE_URL is required in service mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EXTRACTION_MODE %q", c.Extraction.Mode))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
