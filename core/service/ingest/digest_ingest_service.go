package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"digest_server/core/domain"
	"digest_server/core/port/in"
	"digest_server/core/port/out"
	"digest_server/pkg/apperr"
	"digest_server/pkg/logger"
)

// Service implements in.IngestService
type Service struct {
	repo out.EmailRepository
	now  func() time.Time
}

func NewService(repo out.EmailRepository) in.IngestService {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Ingest stores every email whose content is not already present.
// Duplicates, in the store or earlier in the batch, are counted as skipped.
func (s *Service) Ingest(ctx context.Context, raw []domain.RawEmail) (*domain.IngestResult, error) {
	if err := validateBatch(raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &domain.IngestResult{}, nil
	}

	now := s.now()
	seen := make(map[string]struct{}, len(raw))
	candidates := make([]*domain.Email, 0, len(raw))
	hashes := make([]string, 0, len(raw))
	for _, r := range raw {
		email := domain.NewEmail(r, now)
		if _, dup := seen[email.ContentHash]; dup {
			continue
		}
		seen[email.ContentHash] = struct{}{}
		candidates = append(candidates, email)
		hashes = append(hashes, email.ContentHash)
	}

	existing, err := s.repo.ExistingHashes(ctx, hashes)
	if err != nil {
		return nil, apperr.DatabaseError("lookup content hashes", err)
	}

	fresh := candidates[:0]
	for _, email := range candidates {
		if _, ok := existing[email.ContentHash]; !ok {
			fresh = append(fresh, email)
		}
	}

	inserted := 0
	if len(fresh) > 0 {
		inserted, err = s.repo.InsertMany(ctx, fresh)
		if err != nil {
			return nil, apperr.DatabaseError("insert emails", err)
		}
	}

	result := &domain.IngestResult{
		Inserted: inserted,
		Skipped:  len(raw) - inserted,
		Total:    len(raw),
	}
	logger.WithContext(ctx).WithFields(map[string]any{
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
		"total":    result.Total,
	}).Info("ingested emails")

	return result, nil
}

func validateBatch(raw []domain.RawEmail) error {
	for i, r := range raw {
		fields := []struct{ name, value string }{
			{"sender", r.Sender},
			{"subject", r.Subject},
			{"body", r.Body},
		}
		for _, f := range fields {
			if strings.TrimSpace(f.value) == "" {
				return apperr.ValidationFailed(fmt.Sprintf("emails[%d].%s is required", i, f.name)).
					WithDetail("index", i).
					WithDetail("field", f.name)
			}
		}
	}
	return nil
}
