package parsing

import (
	"context"

	"github.com/dvloznov/mailparse/internal/domain"
)

// EmailFilter selects which pending emails a batch run consumes.
type EmailFilter struct {
	// EmailIDs restricts the run to specific emails. Empty means all
	// pending.
	EmailIDs []string

	// Sender restricts to a single sender address when set.
	Sender string

	// MaxItems bounds how many emails are fetched. Zero means the source's
	// default page size.
	MaxItems int
}

// EmailSource supplies pending emails. Implemented by the email-ingestion
// collaborator; this engine never ingests or deduplicates mail itself.
type EmailSource interface {
	// FetchPending returns a finite page of pending emails matching the
	// filter, with bodies resolved.
	FetchPending(ctx context.Context, filter EmailFilter) ([]*domain.RawEmail, error)

	// GetEmail returns one email by ID regardless of its status.
	GetEmail(ctx context.Context, emailID string) (*domain.RawEmail, error)
}

// TransactionStore persists accepted candidates and serves stored results
// for idempotent re-reads.
type TransactionStore interface {
	Persist(ctx context.Context, candidate *domain.ExtractionCandidate, emailID string) error

	// FindByEmail returns the stored candidate for an email, or nil when
	// none exists.
	FindByEmail(ctx context.Context, emailID string) (*domain.ExtractionCandidate, error)
}

// TransactionFilter selects stored transactions for listing.
type TransactionFilter struct {
	// EmailID restricts to the transaction of one email when set.
	EmailID string

	// Limit bounds the page size. Zero means the store's default.
	Limit int

	// Offset skips that many rows, newest first.
	Offset int
}

// AttemptLog owns the immutable per-run attempt records.
type AttemptLog interface {
	PersistAttempt(ctx context.Context, record *domain.AttemptRecord) error
}

// StatusUpdater marks the source email's lifecycle status after a run.
type StatusUpdater interface {
	Mark(ctx context.Context, emailID string, status domain.EmailStatus) error
}
