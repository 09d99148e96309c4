package parsing

import (
	"errors"
	"fmt"
)

// ErrEmailNotFound is returned by ParseOne when the requested email does
// not exist in the source.
var ErrEmailNotFound = errors.New("email not found")

// ResponseFormatError means the provider's raw output could not be decoded
// into a candidate: malformed JSON, or a required key (is_transaction,
// confidence) missing. It is non-fatal to the engine and triggers fallback.
type ResponseFormatError struct {
	Reason string
	Raw    string
}

func (e *ResponseFormatError) Error() string {
	return fmt.Sprintf("response format: %s", e.Reason)
}

// errorKindResponseFormat is recorded in the attempt log when decoding of
// the generative output failed.
const errorKindResponseFormat = "response_format"

// PersistenceError wraps a collaborator sink failure. It is the only error
// class that propagates out of a single-item parse; in batch mode it is
// isolated per item and counted.
type PersistenceError struct {
	Op  string // "transaction", "attempt_log", "status"
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
