package domain

import "time"

// StoredTransaction is one persisted extraction result together with its
// storage identity. FindByEmail returns only the candidate; listings need
// the row identity as well.
type StoredTransaction struct {
	TransactionID string              `json:"transaction_id"`
	EmailID       string              `json:"email_id"`
	Candidate     ExtractionCandidate `json:"candidate"`
	CreatedAt     time.Time           `json:"created_at"`
}
