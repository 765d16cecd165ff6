package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the full service configuration, populated from the environment.
// A .env file in the working directory is loaded first when present.
type Config struct {
	Port string `env:"PORT" envDefault:"8090"`

	// Auth
	APIKey string `env:"CPTGEST_API_KEY"`

	// Gemini
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-pro"`
	GeminiBaseURL string `env:"GEMINI_BASE_URL"`
	EmbedModel    string `env:"GEMINI_EMBED_MODEL" envDefault:"text-embedding-004"`

	// Extraction
	MaxPromptBytes   int    `env:"MAX_PROMPT_BYTES" envDefault:"300000"`
	CodeVersion      string `env:"CODE_VERSION" envDefault:"CPT 2024 AMA"`
	DefaultChunkPage int    `env:"DEFAULT_CHUNK_PAGES" envDefault:"5"`
	OutputDir        string `env:"OUTPUT_DIR" envDefault:"./output"`

	// Vertex AI RAG corpus
	GoogleCloudProject string `env:"GOOGLE_CLOUD_PROJECT"`
	GoogleCloudRegion  string `env:"GOOGLE_CLOUD_LOCATION" envDefault:"us-central1"`
	GoogleAccessToken  string `env:"GOOGLE_ACCESS_TOKEN"`
	RAGCorpus          string `env:"RAG_CORPUS"`

	// Local corpus fallback
	LocalCorpusFile string `env:"LOCAL_CORPUS_FILE" envDefault:"./corpus.db"`

	// Worker pool
	WorkerCount  int `env:"WORKER_COUNT" envDefault:"4"`
	MaxQueueSize int `env:"MAX_QUEUE_SIZE" envDefault:"100"`

	// Upload limits
	MaxUploadBytes int64 `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"` // 50MB

	// Job state
	JobTTL time.Duration `env:"JOB_TTL" envDefault:"1h"`
}

// Load reads configuration from .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxPromptBytes <= 0 {
		cfg.MaxPromptBytes = 300000
	}
	if cfg.DefaultChunkPage <= 0 {
		cfg.DefaultChunkPage = 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return cfg, nil
}

// Validate checks the settings a server cannot run without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("CPTGEST_API_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

// UseVertex reports whether the Vertex AI RAG corpus backend is configured.
func (c Config) UseVertex() bool {
	return c.GoogleCloudProject != "" && c.GoogleAccessToken != ""
}
