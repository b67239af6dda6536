package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"digest_server/core/domain"
	"digest_server/core/port/in"
	"digest_server/core/port/out"
	"digest_server/pkg/apperr"

	"github.com/go-pkgz/pool"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultConcurrency = 4

type Config struct {
	// Concurrency bounds the number of emails summarized at once.
	Concurrency int
	// ItemTimeout bounds each completion call. Zero means no deadline.
	ItemTimeout time.Duration
}

// Service implements in.SummaryService
type Service struct {
	repo        out.EmailRepository
	summarizer  out.EmailSummarizer
	concurrency int
	itemTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewService(repo out.EmailRepository, summarizer out.EmailSummarizer, cfg Config, log zerolog.Logger) in.SummaryService {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Service{
		repo:        repo,
		summarizer:  summarizer,
		concurrency: concurrency,
		itemTimeout: cfg.ItemTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log.With().Str("component", "summary").Logger(),
	}
}

type job struct {
	idx int
	id  uuid.UUID
}

// SummarizeBatch summarizes every distinct id independently and reports one
// result per id in first-occurrence order. Item failures never abort the batch.
func (s *Service) SummarizeBatch(ctx context.Context, ids []uuid.UUID) ([]domain.BatchResult, error) {
	if len(ids) == 0 {
		return nil, apperr.ValidationFailed("ids must contain at least one email id")
	}

	unique := dedupe(ids)
	results := make([]domain.BatchResult, len(unique))
	done := make([]bool, len(unique))

	// Items already started run to completion even if the caller goes away.
	runCtx := context.WithoutCancel(ctx)

	worker := pool.WorkerFunc[job](func(ctx context.Context, j job) error {
		results[j.idx] = s.summarizeItem(ctx, j.id)
		done[j.idx] = true
		return nil
	})
	workers := s.concurrency
	if workers > len(unique) {
		workers = len(unique)
	}
	p := pool.New[job](workers, worker).
		WithBatchSize(1).
		WithContinueOnError()
	if err := p.Go(runCtx); err != nil {
		return nil, apperr.InternalWithError(fmt.Errorf("start summarize pool: %w", err))
	}
	for i, id := range unique {
		p.Submit(job{idx: i, id: id})
	}
	if err := p.Close(runCtx); err != nil {
		s.log.Warn().Err(err).Msg("summarize pool closed with error")
	}

	failed := 0
	for i := range results {
		if !done[i] {
			results[i] = domain.BatchResult{ID: unique[i], OK: false, Error: "not processed"}
		}
		if !results[i].OK {
			failed++
		}
	}

	s.log.Info().
		Int("requested", len(unique)).
		Int("failed", failed).
		Msg("summarize batch finished")

	return results, nil
}

// ResummarizeOne always replaces the summary only, even for an email that was
// never summarized before.
func (s *Service) ResummarizeOne(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	return s.summarize(ctx, id, true)
}

func (s *Service) summarizeItem(ctx context.Context, id uuid.UUID) domain.BatchResult {
	if _, err := s.summarize(ctx, id, false); err != nil {
		s.log.Warn().Err(err).Str("email_id", id.String()).Msg("summarize failed")
		return domain.BatchResult{ID: id, OK: false, Error: errorMessage(err)}
	}
	return domain.BatchResult{ID: id, OK: true}
}

func (s *Service) summarize(ctx context.Context, id uuid.UUID, forceResummarize bool) (*domain.Email, error) {
	email, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("load email", err)
	}

	first := !forceResummarize && !email.IsSummarized()
	result, err := s.callSummarizer(ctx, email, first)
	if err != nil {
		return nil, err
	}

	update := &domain.SummaryUpdate{
		Summary: result.Summary,
		At:      s.now(),
	}
	if first {
		update.Category = result.Category
		if update.Category == nil {
			category := domain.DefaultCategory
			update.Category = &category
		}
		update.Keywords = result.Keywords
		if update.Keywords == nil {
			update.Keywords = []string{}
		}
	}

	updated, err := s.repo.UpdateSummary(ctx, id, update)
	if err != nil {
		return nil, storeError("update summary", err)
	}
	return updated, nil
}

func (s *Service) callSummarizer(ctx context.Context, email *domain.Email, first bool) (*domain.SummaryResult, error) {
	if s.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.itemTimeout)
		defer cancel()
	}

	var (
		result *domain.SummaryResult
		err    error
	)
	if first {
		result, err = s.summarizer.Summarize(ctx, email)
	} else {
		result, err = s.summarizer.Resummarize(ctx, email)
	}
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, apperr.AIServiceError(err)
	}
	return result, nil
}

func storeError(op string, err error) error {
	if errors.Is(err, out.ErrNotFound) {
		return apperr.NotFound("email")
	}
	return apperr.DatabaseError(op, err)
}

func errorMessage(err error) string {
	appErr, ok := apperr.AsAppError(err)
	if !ok {
		return err.Error()
	}
	if appErr.Err != nil && appErr.Code == apperr.CodeAIServiceError {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	return appErr.Message
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	unique := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
