package bigquery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// Persist writes one accepted candidate as a transaction row. A reparse of
// the same email replaces the previous row so FindByEmail stays single-
// valued.
func (r *Repository) Persist(ctx context.Context, candidate *domain.ExtractionCandidate, emailID string) error {
	del := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE email_id = @email_id
	`, r.qualified(transactionsTable)))
	del.Parameters = []bigquery.QueryParameter{
		{Name: "email_id", Value: emailID},
	}
	if err := r.runDML(ctx, del, "Persist"); err != nil {
		return err
	}

	row := transactionToRow(candidate, emailID, uuid.NewString(), time.Now().UTC())
	if err := r.table(transactionsTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("Persist: inserting row: %w", err)
	}
	return nil
}

// ListTransactions returns a page of stored transactions, newest first.
func (r *Repository) ListTransactions(ctx context.Context, filter parsing.TransactionFilter) ([]*domain.StoredTransaction, error) {
	var (
		conds  = []string{"TRUE"}
		params []bigquery.QueryParameter
	)
	if filter.EmailID != "" {
		conds = []string{"email_id = @email_id"}
		params = append(params, bigquery.QueryParameter{Name: "email_id", Value: filter.EmailID})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	params = append(params,
		bigquery.QueryParameter{Name: "limit", Value: int64(limit)},
		bigquery.QueryParameter{Name: "offset", Value: int64(filter.Offset)},
	)

	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			email_id,
			transaction_type,
			amount,
			currency,
			merchant,
			description,
			transaction_date,
			confidence,
			method,
			card_last_4,
			category,
			location,
			reference_number,
			created_ts
		FROM %s
		WHERE %s
		ORDER BY created_ts DESC
		LIMIT @limit OFFSET @offset
	`, r.qualified(transactionsTable), strings.Join(conds, " AND ")))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txns []*domain.StoredTransaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		txns = append(txns, &domain.StoredTransaction{
			TransactionID: row.TransactionID,
			EmailID:       row.EmailID,
			Candidate:     *candidateFromRow(&row),
			CreatedAt:     row.CreatedTS,
		})
	}
	return txns, nil
}

// FindByEmail returns the stored candidate for an email, or nil when none
// exists.
func (r *Repository) FindByEmail(ctx context.Context, emailID string) (*domain.ExtractionCandidate, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			email_id,
			transaction_type,
			amount,
			currency,
			merchant,
			description,
			transaction_date,
			confidence,
			method,
			card_last_4,
			category,
			location,
			reference_number,
			created_ts
		FROM %s
		WHERE email_id = @email_id
		ORDER BY created_ts DESC
		LIMIT 1
	`, r.qualified(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "email_id", Value: emailID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindByEmail: query read: %w", err)
	}

	var row TransactionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindByEmail: iter next: %w", err)
	}
	return candidateFromRow(&row), nil
}
