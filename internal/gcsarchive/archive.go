// Package gcsarchive reads and writes email bodies archived to Google
// Cloud Storage. Ingestion offloads oversized bodies to a bucket and
// leaves a gs:// URI on the email row; this package resolves the URI back
// into the body before parsing.
package gcsarchive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/mailparse/internal/domain"
)

const writeTimeout = 2 * time.Minute

// Archive wraps one storage client. Assumes Application Default
// Credentials are configured.
type Archive struct {
	client *storage.Client
}

func New(ctx context.Context) (*Archive, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcsarchive: creating storage client: %w", err)
	}
	return &Archive{client: client}, nil
}

func NewWithClient(client *storage.Client) *Archive {
	return &Archive{client: client}
}

// Close releases the underlying storage client.
func (a *Archive) Close() error {
	return a.client.Close()
}

// FetchBody downloads the archived body at the given gs:// URI.
func (a *Archive) FetchBody(ctx context.Context, gcsURI string) (string, error) {
	bucketName, objectPath, err := splitURI(gcsURI)
	if err != nil {
		return "", err
	}

	rc, err := a.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return "", fmt.Errorf("FetchBody: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("FetchBody: reading bytes: %w", err)
	}
	return string(data), nil
}

// ArchiveBody uploads a body and returns its gs:// URI.
func (a *Archive) ArchiveBody(ctx context.Context, bucketName, objectName, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	w := a.client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.WriteString(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("ArchiveBody: writing object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("ArchiveBody: finalizing upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", bucketName, objectName), nil
}

// ResolveBody fills in email.Body from BodyURI when the body was archived.
// Emails with an inline body pass through untouched.
func (a *Archive) ResolveBody(ctx context.Context, email *domain.RawEmail) error {
	if email.Body != "" || email.BodyURI == "" {
		return nil
	}
	body, err := a.FetchBody(ctx, email.BodyURI)
	if err != nil {
		return fmt.Errorf("ResolveBody: email %s: %w", email.EmailID, err)
	}
	email.Body = body
	return nil
}

func splitURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}
	trimmed := strings.TrimPrefix(gcsURI, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}
