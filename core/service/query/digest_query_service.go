package query

import (
	"context"
	"errors"

	"digest_server/core/domain"
	"digest_server/core/port/in"
	"digest_server/core/port/out"
	"digest_server/pkg/apperr"
	"digest_server/pkg/logger"

	"github.com/google/uuid"
)

// Service implements in.QueryService
type Service struct {
	repo out.EmailRepository
}

func NewService(repo out.EmailRepository) in.QueryService {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, q *domain.ListQuery) (*domain.EmailPage, error) {
	if q == nil {
		q = &domain.ListQuery{}
	}
	if q.Category != nil && !q.Category.Valid() {
		return nil, apperr.InvalidInput("category", "unknown category")
	}
	q.Normalize()

	emails, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, apperr.DatabaseError("list emails", err)
	}
	return &domain.EmailPage{
		Emails:     emails,
		Pagination: domain.NewPagination(q.Page, q.Limit, total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	email, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get email", err)
	}
	return email, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeError("delete email", err)
	}
	logger.WithContext(ctx).WithField("email_id", id.String()).Info("email deleted")
	return nil
}

func (s *Service) Export(ctx context.Context, ids []uuid.UUID) ([]byte, error) {
	var (
		emails []*domain.Email
		err    error
	)
	if len(ids) == 0 {
		emails, err = s.repo.ListAll(ctx)
	} else {
		emails, err = s.repo.ListByIDs(ctx, ids)
	}
	if err != nil {
		return nil, apperr.DatabaseError("load emails for export", err)
	}
	return EncodeCSV(emails)
}

func storeError(op string, err error) error {
	if errors.Is(err, out.ErrNotFound) {
		return apperr.NotFound("email")
	}
	return apperr.DatabaseError(op, err)
}
