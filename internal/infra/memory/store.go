// Package memory provides in-memory implementations of the parsing
// collaborator interfaces. Data is lost on restart; the package exists for
// tests, offline CLI runs and the mock-provider configuration. For
// persistence, use the BigQuery-backed implementations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// Store holds emails, transactions and attempt records in maps. It is safe
// for concurrent use and implements every parsing collaborator interface.
type Store struct {
	mu       sync.RWMutex
	emails   map[string]*domain.RawEmail
	txns     map[string]*domain.StoredTransaction // keyed by email ID
	attempts []*domain.AttemptRecord
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		emails: make(map[string]*domain.RawEmail),
		txns:   make(map[string]*domain.StoredTransaction),
	}
}

// AddEmail seeds an email, defaulting its status to pending.
func (s *Store) AddEmail(email *domain.RawEmail) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *email
	if cp.Status == "" {
		cp.Status = domain.EmailPending
	}
	s.emails[cp.EmailID] = &cp
}

// InsertEmail registers a newly ingested email. Unlike AddEmail it is an
// error to insert without an ID or to insert the same ID twice.
func (s *Store) InsertEmail(ctx context.Context, email *domain.RawEmail) error {
	if email.EmailID == "" {
		return fmt.Errorf("email ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[email.EmailID]; exists {
		return fmt.Errorf("email already exists: %s", email.EmailID)
	}
	cp := *email
	if cp.Status == "" {
		cp.Status = domain.EmailPending
	}
	s.emails[cp.EmailID] = &cp
	return nil
}

// FetchPending implements parsing.EmailSource.
func (s *Store) FetchPending(ctx context.Context, filter parsing.EmailFilter) ([]*domain.RawEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var wanted map[string]bool
	if len(filter.EmailIDs) > 0 {
		wanted = make(map[string]bool, len(filter.EmailIDs))
		for _, id := range filter.EmailIDs {
			wanted[id] = true
		}
	}

	var result []*domain.RawEmail
	for _, email := range s.emails {
		if email.Status != domain.EmailPending {
			continue
		}
		if wanted != nil && !wanted[email.EmailID] {
			continue
		}
		if filter.Sender != "" && email.Sender != filter.Sender {
			continue
		}
		cp := *email
		result = append(result, &cp)
		if filter.MaxItems > 0 && len(result) >= filter.MaxItems {
			break
		}
	}
	return result, nil
}

// GetEmail implements parsing.EmailSource.
func (s *Store) GetEmail(ctx context.Context, emailID string) (*domain.RawEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email, ok := s.emails[emailID]
	if !ok {
		return nil, nil
	}
	cp := *email
	return &cp, nil
}

// Persist implements parsing.TransactionStore. A reparse of the same email
// replaces the previous entry so FindByEmail stays single-valued.
func (s *Store) Persist(ctx context.Context, candidate *domain.ExtractionCandidate, emailID string) error {
	if emailID == "" {
		return fmt.Errorf("email ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.txns[emailID] = &domain.StoredTransaction{
		TransactionID: uuid.NewString(),
		EmailID:       emailID,
		Candidate:     *candidate,
		CreatedAt:     time.Now().UTC(),
	}
	return nil
}

// FindByEmail implements parsing.TransactionStore.
func (s *Store) FindByEmail(ctx context.Context, emailID string) (*domain.ExtractionCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.txns[emailID]
	if !ok {
		return nil, nil
	}
	cp := txn.Candidate
	return &cp, nil
}

// ListTransactions returns stored transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, filter parsing.TransactionFilter) ([]*domain.StoredTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.StoredTransaction
	for _, txn := range s.txns {
		if filter.EmailID != "" && txn.EmailID != filter.EmailID {
			continue
		}
		cp := *txn
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EmailID < out[j].EmailID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PersistAttempt implements parsing.AttemptLog.
func (s *Store) PersistAttempt(ctx context.Context, record *domain.AttemptRecord) error {
	if record.AttemptID == "" {
		return fmt.Errorf("attempt ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *record
	s.attempts = append(s.attempts, &cp)
	return nil
}

// Mark implements parsing.StatusUpdater.
func (s *Store) Mark(ctx context.Context, emailID string, status domain.EmailStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[emailID]
	if !ok {
		return fmt.Errorf("email not found: %s", emailID)
	}
	email.Status = status
	return nil
}

// Attempts returns a copy of all recorded attempts, for inspection.
func (s *Store) Attempts() []*domain.AttemptRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.AttemptRecord, 0, len(s.attempts))
	for _, a := range s.attempts {
		cp := *a
		out = append(out, &cp)
	}
	return out
}
