package in

import (
	"context"

	"digest_server/core/domain"

	"github.com/google/uuid"
)

type IngestService interface {
	Ingest(ctx context.Context, raw []domain.RawEmail) (*domain.IngestResult, error)
}

type SummaryService interface {
	SummarizeBatch(ctx context.Context, ids []uuid.UUID) ([]domain.BatchResult, error)
	ResummarizeOne(ctx context.Context, id uuid.UUID) (*domain.Email, error)
}

type QueryService interface {
	List(ctx context.Context, query *domain.ListQuery) (*domain.EmailPage, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Email, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Export renders the given emails, or all emails when ids is empty, as CSV.
	Export(ctx context.Context, ids []uuid.UUID) ([]byte, error)
}
