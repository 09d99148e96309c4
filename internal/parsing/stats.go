package parsing

import "sync/atomic"

// BatchStats aggregates counts for one batch run, or cumulatively for the
// engine's lifetime. GenerativeUsed and RuleUsed count which path produced
// the final candidate, not attempts, so Fetched is not their sum; the
// invariant that holds is Fetched == Processed + Errors.
type BatchStats struct {
	Fetched        int64 `json:"fetched"`
	Processed      int64 `json:"processed"`
	GenerativeUsed int64 `json:"generative_used"`
	RuleUsed       int64 `json:"rule_used"`
	Unparseable    int64 `json:"unparseable"`
	Errors         int64 `json:"errors"`
}

// statCounters is the mutable, goroutine-safe accumulator behind BatchStats.
type statCounters struct {
	fetched        atomic.Int64
	processed      atomic.Int64
	generativeUsed atomic.Int64
	ruleUsed       atomic.Int64
	unparseable    atomic.Int64
	errors         atomic.Int64
}

func (c *statCounters) snapshot() BatchStats {
	return BatchStats{
		Fetched:        c.fetched.Load(),
		Processed:      c.processed.Load(),
		GenerativeUsed: c.generativeUsed.Load(),
		RuleUsed:       c.ruleUsed.Load(),
		Unparseable:    c.unparseable.Load(),
		Errors:         c.errors.Load(),
	}
}
