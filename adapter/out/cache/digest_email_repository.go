package cache

import (
	"context"
	"time"

	"digest_server/core/domain"
	"digest_server/core/port/out"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EmailRepository wraps a repository with a read-through cache for single
// email lookups. Writes to a row invalidate its entry and bump its
// generation; a read only fills the cache if the generation it saw before
// loading is unchanged. Cache failures are logged and never fail the request.
type EmailRepository struct {
	out.EmailRepository
	cache out.Cache
	ttl   time.Duration
	log   zerolog.Logger
}

var _ out.EmailRepository = (*EmailRepository)(nil)

func NewEmailRepository(next out.EmailRepository, cache out.Cache, ttl time.Duration, log zerolog.Logger) *EmailRepository {
	return &EmailRepository{
		EmailRepository: next,
		cache:           cache,
		ttl:             ttl,
		log:             log.With().Str("component", "email_cache").Logger(),
	}
}

// cachedEmail keeps the content hash, which the public JSON form omits.
type cachedEmail struct {
	*domain.Email
	Hash string `json:"contentHash"`
}

func emailKey(id uuid.UUID) string {
	return "email:" + id.String()
}

func (r *EmailRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	entry := cachedEmail{Email: &domain.Email{}}
	hit, err := r.cache.GetJSON(ctx, emailKey(id), &entry)
	if err != nil {
		r.log.Warn().Err(err).Str("email_id", id.String()).Msg("cache read failed")
	}
	if hit {
		entry.Email.ContentHash = entry.Hash
		return entry.Email, nil
	}

	// Without a generation the fill cannot be checked against writes, so skip it.
	gen, genErr := r.cache.Generation(ctx, emailKey(id))
	if genErr != nil {
		r.log.Warn().Err(genErr).Str("email_id", id.String()).Msg("cache generation read failed")
	}

	email, err := r.EmailRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if genErr == nil {
		r.store(ctx, email, gen)
	}
	return email, nil
}

func (r *EmailRepository) UpdateSummary(ctx context.Context, id uuid.UUID, u *domain.SummaryUpdate) (*domain.Email, error) {
	email, err := r.EmailRepository.UpdateSummary(ctx, id, u)
	r.evict(ctx, id)
	return email, err
}

func (r *EmailRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.EmailRepository.Delete(ctx, id)
	r.evict(ctx, id)
	return err
}

func (r *EmailRepository) store(ctx context.Context, email *domain.Email, gen int64) {
	entry := cachedEmail{Email: email, Hash: email.ContentHash}
	stored, err := r.cache.SetJSONIfGeneration(ctx, emailKey(email.ID), gen, entry, r.ttl)
	if err != nil {
		r.log.Warn().Err(err).Str("email_id", email.ID.String()).Msg("cache write failed")
		return
	}
	if !stored {
		r.log.Debug().Str("email_id", email.ID.String()).Msg("cache fill dropped after concurrent write")
	}
}

// evict keeps the generation around for longer than any entry could live.
func (r *EmailRepository) evict(ctx context.Context, id uuid.UUID) {
	if err := r.cache.Invalidate(ctx, emailKey(id), 2*r.ttl); err != nil {
		r.log.Warn().Err(err).Str("email_id", id.String()).Msg("cache evict failed")
	}
}
