package parsing

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/mailparse/internal/domain"
)

// BatchOptions tune one batch run without touching the engine's immutable
// configuration.
type BatchOptions struct {
	// ConfidenceThreshold overrides the engine threshold for this run
	// when non-nil.
	ConfidenceThreshold *float64
}

// ParseBatch fetches pending emails matching the filter and parses each of
// them with bounded concurrency. Per-item failures are isolated: they are
// counted and logged, and the run continues. The returned stats are the
// run's sole result; per-item records live in the attempt log.
func (e *Engine) ParseBatch(ctx context.Context, filter EmailFilter, opts BatchOptions) (BatchStats, error) {
	threshold := e.opts.ConfidenceThreshold
	if opts.ConfidenceThreshold != nil {
		threshold = domain.ClampConfidence(*opts.ConfidenceThreshold)
	}

	emails, err := e.source.FetchPending(ctx, filter)
	if err != nil {
		return BatchStats{}, err
	}

	var counters statCounters
	counters.fetched.Add(int64(len(emails)))

	g := new(errgroup.Group)
	sem := make(chan struct{}, e.opts.BatchConcurrency)

	admitted := 0
	for _, email := range emails {
		// Cancellation stops admission of new items; items already
		// admitted run to completion so no candidate is ever half
		// persisted.
		if ctx.Err() != nil {
			break
		}
		admitted++

		email := email
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			cand, perr := e.run(ctx, email, threshold)
			if perr != nil {
				counters.errors.Add(1)
				e.log.Error().
					Err(perr).
					Str("email_id", email.EmailID).
					Msg("Batch item failed")
				return nil
			}

			counters.processed.Add(1)
			switch {
			case !cand.IsTransaction:
				counters.unparseable.Add(1)
			case cand.Method == domain.MethodGenerative:
				counters.generativeUsed.Add(1)
			case cand.Method == domain.MethodRule:
				counters.ruleUsed.Add(1)
			}
			return nil
		})
	}

	// Items never admitted because the run was cancelled still have to be
	// accounted for: fetched == processed + errors holds for every run.
	if skipped := len(emails) - admitted; skipped > 0 {
		counters.errors.Add(int64(skipped))
		e.log.Warn().Int("skipped", skipped).Msg("Batch cancelled before all items were admitted")
	}

	_ = g.Wait()

	stats := counters.snapshot()
	e.log.Info().
		Int64("fetched", stats.Fetched).
		Int64("processed", stats.Processed).
		Int64("generative_used", stats.GenerativeUsed).
		Int64("rule_used", stats.RuleUsed).
		Int64("unparseable", stats.Unparseable).
		Int64("errors", stats.Errors).
		Msg("Batch run finished")
	return stats, nil
}
