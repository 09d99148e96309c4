package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want 0.6", cfg.ConfidenceThreshold)
	}
	if !cfg.UseFewShot {
		t.Error("UseFewShot = false, want true by default")
	}
	if cfg.BatchConcurrency != 5 {
		t.Errorf("BatchConcurrency = %d, want 5", cfg.BatchConcurrency)
	}
	if cfg.LLMProvider != "mock" {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, "mock")
	}
	if cfg.Store != "memory" {
		t.Errorf("Store = %q, want %q", cfg.Store, "memory")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MAILPARSE_CONFIDENCE_THRESHOLD", "0.75")
	t.Setenv("MAILPARSE_LLM_PROVIDER", "gemini")
	t.Setenv("MAILPARSE_LLM_MODEL", "gemini-2.5-pro")
	t.Setenv("MAILPARSE_BATCH_CONCURRENCY", "12")
	t.Setenv("MAILPARSE_STORE", "bigquery")
	t.Setenv("MAILPARSE_BQ_PROJECT", "acme-ledger")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ConfidenceThreshold != 0.75 {
		t.Errorf("ConfidenceThreshold = %v, want 0.75", cfg.ConfidenceThreshold)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("LLMProvider = %q, want %q", cfg.LLMProvider, "gemini")
	}
	if cfg.LLMModel != "gemini-2.5-pro" {
		t.Errorf("LLMModel = %q, want %q", cfg.LLMModel, "gemini-2.5-pro")
	}
	if cfg.BatchConcurrency != 12 {
		t.Errorf("BatchConcurrency = %d, want 12", cfg.BatchConcurrency)
	}
	if cfg.ProjectID != "acme-ledger" {
		t.Errorf("ProjectID = %q, want %q", cfg.ProjectID, "acme-ledger")
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ConfidenceThreshold: 0.6,
		BatchConcurrency:    5,
		Store:               "memory",
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.ConfidenceThreshold = 1.5 },
			wantErr: "confidence threshold",
		},
		{
			name:    "threshold negative",
			mutate:  func(c *Config) { c.ConfidenceThreshold = -0.1 },
			wantErr: "confidence threshold",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.BatchConcurrency = 0 },
			wantErr: "batch concurrency",
		},
		{
			name:    "unknown store",
			mutate:  func(c *Config) { c.Store = "redis" },
			wantErr: "unknown store",
		},
		{
			name:    "bigquery without project",
			mutate:  func(c *Config) { c.Store = "bigquery" },
			wantErr: "BQ_PROJECT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
