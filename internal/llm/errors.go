package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind classifies provider failures. All kinds except KindConfig are
// recoverable from the caller's perspective and trigger rule fallback.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "provider_timeout"
	KindAuth        ErrorKind = "provider_auth"
	KindRateLimited ErrorKind = "provider_rate_limited"
	KindUnavailable ErrorKind = "provider_unavailable"

	// KindConfig means the selected provider cannot be used at all, e.g.
	// missing credentials. Fatal at first use, never silently substituted.
	KindConfig ErrorKind = "provider_config"
)

// ProviderError wraps a failure from a generation provider with its kind
// and origin.
type ProviderError struct {
	Provider Provider
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Recoverable reports whether the error should trigger rule fallback rather
// than abort the whole operation. Configuration errors are not recoverable.
func (e *ProviderError) Recoverable() bool { return e.Kind != KindConfig }

// KindOf extracts the ErrorKind from an error chain, or "" if the error is
// not a provider error.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// classify maps a raw provider/SDK error onto an ErrorKind. Unrecognized
// errors are treated as provider unavailability, which is still recoverable.
func classify(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code)
	}

	// langchaingo surfaces HTTP failures as formatted strings; fall back to
	// matching on well-known status markers.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return KindRateLimited
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "unauthorized") || strings.Contains(msg, "api key"):
		return KindAuth
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return KindTimeout
	default:
		return KindUnavailable
	}
}

func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	default:
		return KindUnavailable
	}
}
