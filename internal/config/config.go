// Package config loads the process configuration from the environment.
// The resulting value is immutable: it is passed explicitly into the
// parsing engine and batch runner at construction, never read back from
// ambient state inside extraction logic.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full recognized configuration surface.
type Config struct {
	// Parsing behavior.
	ConfidenceThreshold float64 `envconfig:"CONFIDENCE_THRESHOLD" default:"0.6"`
	UseFewShot          bool    `envconfig:"USE_FEW_SHOT" default:"true"`
	BatchConcurrency    int     `envconfig:"BATCH_CONCURRENCY" default:"5"`

	// Generation provider selection.
	LLMProvider string  `envconfig:"LLM_PROVIDER" default:"mock"`
	LLMModel    string  `envconfig:"LLM_MODEL"`
	LLMAPIKey   string  `envconfig:"LLM_API_KEY"`
	LLMRequests float64 `envconfig:"LLM_REQUESTS_PER_MINUTE" default:"50"`
	LLMBurst    int     `envconfig:"LLM_BURST" default:"5"`

	// Storage backends. Store selects between the in-memory collaborators
	// ("memory", for tests and offline runs) and BigQuery ("bigquery").
	Store      string `envconfig:"STORE" default:"memory"`
	ProjectID  string `envconfig:"BQ_PROJECT"`
	Dataset    string `envconfig:"BQ_DATASET" default:"mailparse"`
	GCSBucket  string `envconfig:"GCS_BUCKET"`
	ServerPort string `envconfig:"PORT" default:"8080"`

	// Logging.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogJSON  bool   `envconfig:"LOG_JSON" default:"false"`
}

// envPrefix namespaces every variable, e.g. MAILPARSE_LLM_PROVIDER.
const envPrefix = "MAILPARSE"

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values outside their documented ranges.
func (c Config) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: confidence threshold %v outside [0.0, 1.0]", c.ConfidenceThreshold)
	}
	if c.BatchConcurrency < 1 {
		return fmt.Errorf("config: batch concurrency must be at least 1, got %d", c.BatchConcurrency)
	}
	switch c.Store {
	case "memory", "bigquery":
	default:
		return fmt.Errorf("config: unknown store %q", c.Store)
	}
	if c.Store == "bigquery" && c.ProjectID == "" {
		return fmt.Errorf("config: MAILPARSE_BQ_PROJECT required for bigquery store")
	}
	return nil
}
