package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// FetchPending returns a page of pending emails matching the filter,
// oldest first.
func (r *Repository) FetchPending(ctx context.Context, filter parsing.EmailFilter) ([]*domain.RawEmail, error) {
	var (
		conds  = []string{"status = @status"}
		params = []bigquery.QueryParameter{
			{Name: "status", Value: string(domain.EmailPending)},
		}
	)
	if len(filter.EmailIDs) > 0 {
		conds = append(conds, "email_id IN UNNEST(@email_ids)")
		params = append(params, bigquery.QueryParameter{Name: "email_ids", Value: filter.EmailIDs})
	}
	if filter.Sender != "" {
		conds = append(conds, "sender = @sender")
		params = append(params, bigquery.QueryParameter{Name: "sender", Value: filter.Sender})
	}

	limit := filter.MaxItems
	if limit <= 0 {
		limit = defaultFetchLimit
	}
	params = append(params, bigquery.QueryParameter{Name: "limit", Value: int64(limit)})

	q := r.client.Query(fmt.Sprintf(`
		SELECT
			email_id,
			message_id,
			subject,
			sender,
			body,
			body_uri,
			received_at,
			status
		FROM %s
		WHERE %s
		ORDER BY received_at
		LIMIT @limit
	`, r.qualified(emailsTable), strings.Join(conds, " AND ")))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchPending: query read: %w", err)
	}

	var emails []*domain.RawEmail
	for {
		var row EmailRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("FetchPending: iter next: %w", err)
		}
		emails = append(emails, emailFromRow(&row))
	}
	return emails, nil
}

// GetEmail returns one email by ID regardless of status, or nil when it
// does not exist.
func (r *Repository) GetEmail(ctx context.Context, emailID string) (*domain.RawEmail, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			email_id,
			message_id,
			subject,
			sender,
			body,
			body_uri,
			received_at,
			status
		FROM %s
		WHERE email_id = @email_id
		LIMIT 1
	`, r.qualified(emailsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "email_id", Value: emailID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetEmail: query read: %w", err)
	}

	var row EmailRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetEmail: iter next: %w", err)
	}
	return emailFromRow(&row), nil
}

// InsertEmail writes one ingested email. Used by ingestion tooling, not by
// the parsing engine itself.
func (r *Repository) InsertEmail(ctx context.Context, email *domain.RawEmail) error {
	row := &EmailRow{
		EmailID:    email.EmailID,
		MessageID:  email.MessageID,
		Subject:    email.Subject,
		Sender:     email.Sender,
		Body:       email.Body,
		BodyURI:    nullString(email.BodyURI),
		ReceivedAt: email.ReceivedAt,
		Status:     string(email.Status),
	}
	if err := r.table(emailsTable).Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("InsertEmail: inserting row: %w", err)
	}
	return nil
}

// Mark updates the lifecycle status of one email.
func (r *Repository) Mark(ctx context.Context, emailID string, status domain.EmailStatus) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET status = @status
		WHERE email_id = @email_id
	`, r.qualified(emailsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "status", Value: string(status)},
		{Name: "email_id", Value: emailID},
	}
	return r.runDML(ctx, q, "Mark")
}
