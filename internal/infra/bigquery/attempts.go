package bigquery

import (
	"context"
	"fmt"

	"github.com/dvloznov/mailparse/internal/domain"
)

// PersistAttempt appends one attempt record. The table is append-only;
// records are never updated or deleted.
func (r *Repository) PersistAttempt(ctx context.Context, record *domain.AttemptRecord) error {
	row := &AttemptRow{
		AttemptID:   record.AttemptID,
		EmailID:     record.EmailID,
		Method:      string(record.Method),
		Confidence:  record.Confidence,
		Succeeded:   record.Succeeded,
		ErrorKind:   nullString(record.ErrorKind),
		RawResponse: nullString(record.RawResponse),
		Timestamp:   record.Timestamp,
	}
	if err := r.table(attemptsTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("PersistAttempt: inserting row: %w", err)
	}
	return nil
}
