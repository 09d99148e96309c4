package domain

import "time"

// AttemptRecord is the immutable log entry written once per orchestration
// run. It exists for diagnostics and statistics; correctness never depends
// on RawResponse being present.
type AttemptRecord struct {
	AttemptID string
	EmailID   string

	Method     ParseMethod
	Confidence float64
	Succeeded  bool

	// ErrorKind names the failure that triggered fallback, if any
	// (provider_timeout, provider_auth, response_format, ...). Empty when
	// the generative path decoded cleanly.
	ErrorKind string

	// RawResponse keeps the provider's raw text output for diagnostics.
	RawResponse string

	Timestamp time.Time
}
