// Package app wires the parsing engine from configuration. All three
// binaries (api, worker, parse) share the same collaborator graph, so the
// construction lives here once.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/mailparse/internal/config"
	"github.com/dvloznov/mailparse/internal/gcsarchive"
	infraBQ "github.com/dvloznov/mailparse/internal/infra/bigquery"
	"github.com/dvloznov/mailparse/internal/infra/memory"
	"github.com/dvloznov/mailparse/internal/llm"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// Engine bundles a constructed engine with the resources backing it.
type Engine struct {
	*parsing.Engine

	// Memory is non-nil when the in-memory store backs the engine. Used
	// by tooling that seeds emails directly.
	Memory *memory.Store

	// BigQuery is non-nil when the BigQuery store backs the engine.
	BigQuery *infraBQ.Repository

	// Archive is non-nil when a GCS bucket is configured for oversized
	// email bodies.
	Archive *gcsarchive.Archive

	closers []func() error
}

// Close releases storage clients held by the collaborator graph.
func (e *Engine) Close() error {
	var firstErr error
	for _, closeFn := range e.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// BuildEngine constructs the engine and its collaborators from config.
func BuildEngine(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Engine, error) {
	svc, err := llm.NewService(llm.Options{
		Provider:          llm.Provider(cfg.LLMProvider),
		Model:             cfg.LLMModel,
		APIKey:            cfg.LLMAPIKey,
		RequestsPerMinute: cfg.LLMRequests,
		Burst:             cfg.LLMBurst,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("app: generation service: %w", err)
	}

	opts := parsing.Options{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		UseFewShot:          cfg.UseFewShot,
		BatchConcurrency:    cfg.BatchConcurrency,
	}

	switch cfg.Store {
	case "bigquery":
		repo, err := infraBQ.NewRepository(ctx, cfg.ProjectID, cfg.Dataset)
		if err != nil {
			return nil, fmt.Errorf("app: bigquery repository: %w", err)
		}

		var (
			source  parsing.EmailSource = repo
			archive *gcsarchive.Archive
			closers = []func() error{repo.Close}
		)

		if cfg.GCSBucket != "" {
			archive, err = gcsarchive.New(ctx)
			if err != nil {
				repo.Close()
				return nil, fmt.Errorf("app: gcs archive: %w", err)
			}
			source = gcsarchive.NewResolvingSource(repo, archive)
			closers = append(closers, archive.Close)
		}

		engine := parsing.NewEngine(opts, svc, source, repo, repo, repo, log)
		return &Engine{Engine: engine, BigQuery: repo, Archive: archive, closers: closers}, nil

	case "memory":
		store := memory.NewStore()
		engine := parsing.NewEngine(opts, svc, store, store, store, store, log)
		return &Engine{Engine: engine, Memory: store}, nil

	default:
		return nil, fmt.Errorf("app: unknown store %q", cfg.Store)
	}
}
