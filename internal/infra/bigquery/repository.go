// Package bigquery persists emails, extracted transactions and attempt
// records in BigQuery. It implements the collaborator interfaces consumed
// by the parsing engine.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	emailsTable       = "raw_emails"
	transactionsTable = "transactions"
	attemptsTable     = "parse_attempts"

	defaultFetchLimit = 100
)

// Repository bundles one BigQuery client with the project and dataset it
// operates on. All tables live in the same dataset.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a client-owning repository. Close releases the
// client.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: bigquery client: %w", err)
	}
	return NewRepositoryWithClient(client, projectID, datasetID), nil
}

// NewRepositoryWithClient wraps an existing client. The caller keeps
// ownership of the client's lifecycle.
func NewRepositoryWithClient(client *bigquery.Client, projectID, datasetID string) *Repository {
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}
}

// Close releases the underlying BigQuery client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func (r *Repository) table(name string) *bigquery.Table {
	// Fully qualified to avoid depending on the client's default project.
	return r.client.DatasetInProject(r.projectID, r.datasetID).Table(name)
}

func (r *Repository) qualified(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// runDML executes a DML statement and waits for completion.
func (r *Repository) runDML(ctx context.Context, q *bigquery.Query, op string) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("%s: running query: %w", op, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: waiting for job: %w", op, err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("%s: job error: %w", op, err)
	}
	return nil
}
