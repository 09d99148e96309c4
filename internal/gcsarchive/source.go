package gcsarchive

import (
	"context"

	"github.com/dvloznov/mailparse/internal/domain"
	"github.com/dvloznov/mailparse/internal/parsing"
)

// ResolvingSource decorates an EmailSource so that every email it hands
// out has an inline body, fetching archived bodies from GCS on the way.
type ResolvingSource struct {
	inner   parsing.EmailSource
	archive *Archive
}

func NewResolvingSource(inner parsing.EmailSource, archive *Archive) *ResolvingSource {
	return &ResolvingSource{inner: inner, archive: archive}
}

func (s *ResolvingSource) FetchPending(ctx context.Context, filter parsing.EmailFilter) ([]*domain.RawEmail, error) {
	emails, err := s.inner.FetchPending(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, email := range emails {
		if err := s.archive.ResolveBody(ctx, email); err != nil {
			return nil, err
		}
	}
	return emails, nil
}

func (s *ResolvingSource) GetEmail(ctx context.Context, emailID string) (*domain.RawEmail, error) {
	email, err := s.inner.GetEmail(ctx, emailID)
	if err != nil || email == nil {
		return email, err
	}
	if err := s.archive.ResolveBody(ctx, email); err != nil {
		return nil, err
	}
	return email, nil
}
