// Package out defines outbound ports (driven ports) for the application.
// These interfaces represent dependencies that the application needs.
package out

import (
	"context"
	"errors"

	"digest_server/core/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by repositories when the referenced email does not exist.
var ErrNotFound = errors.New("email not found")

// EmailRepository persists emails. Content hashes are unique at the storage level.
type EmailRepository interface {
	// InsertMany inserts the batch atomically and returns the number of rows
	// actually written. Rows whose content hash already exists are skipped.
	InsertMany(ctx context.Context, emails []*domain.Email) (int, error)
	// ExistingHashes returns the subset of hashes already stored.
	ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error)

	GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error)
	List(ctx context.Context, query *domain.ListQuery) ([]*domain.Email, int, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Email, error)
	ListAll(ctx context.Context) ([]*domain.Email, error)

	// UpdateSummary applies u and increments summary_count in a single statement.
	UpdateSummary(ctx context.Context, id uuid.UUID, u *domain.SummaryUpdate) (*domain.Email, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
