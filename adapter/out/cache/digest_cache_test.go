package cache

import (
	"context"
	"testing"
	"time"

	"digest_server/adapter/out/memory"
	"digest_server/core/domain"
	"digest_server/core/port/out"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	out.EmailRepository
	gets int
}

func (r *countingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	r.gets++
	return r.EmailRepository.GetByID(ctx, id)
}

// pausingRepo blocks GetByID after the row is loaded until resume is closed.
type pausingRepo struct {
	out.EmailRepository
	loaded chan struct{}
	resume chan struct{}
}

func (r *pausingRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	e, err := r.EmailRepository.GetByID(ctx, id)
	if r.loaded != nil {
		r.loaded <- struct{}{}
		<-r.resume
	}
	return e, err
}

func setup(t *testing.T) (*miniredis.Miniredis, *RedisCache, *countingRepo, *EmailRepository, *domain.Email) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	rc := NewRedisCache(client, "digest:")
	inner := &countingRepo{EmailRepository: memory.NewEmailStore()}
	repo := NewEmailRepository(inner, rc, time.Minute, zerolog.Nop())

	e := domain.NewEmail(domain.RawEmail{Sender: "a@x.io", Subject: "Hi", Body: "Body"}, time.Now().UTC())
	_, err := inner.InsertMany(context.Background(), []*domain.Email{e})
	require.NoError(t, err)
	return mr, rc, inner, repo, e
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr, rc, _, _, _ := setup(t)
	ctx := context.Background()

	var v map[string]int
	hit, err := rc.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, rc.SetJSON(ctx, "k", map[string]int{"n": 1}, time.Minute))
	assert.True(t, mr.Exists("digest:k"))

	hit, err = rc.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, v["n"])

	mr.FastForward(2 * time.Minute)
	hit, _ = rc.GetJSON(ctx, "k", &v)
	assert.False(t, hit)

	require.NoError(t, rc.SetJSON(ctx, "k", 1, 0))
	require.NoError(t, rc.Delete(ctx, "k"))
	assert.False(t, mr.Exists("digest:k"))
	assert.NoError(t, rc.Delete(ctx))
	assert.NoError(t, rc.Ping(ctx))
}

func TestRedisCache_Generation(t *testing.T) {
	mr, rc, _, _, _ := setup(t)
	ctx := context.Background()

	gen, err := rc.Generation(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, gen)

	stored, err := rc.SetJSONIfGeneration(ctx, "k", gen, "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	require.NoError(t, rc.Invalidate(ctx, "k", time.Hour))
	assert.False(t, mr.Exists("digest:k"))
	assert.Equal(t, time.Hour, mr.TTL("digest:k:gen"))

	stored, err = rc.SetJSONIfGeneration(ctx, "k", gen, "stale", time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("digest:k"))

	gen, err = rc.Generation(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	stored, err = rc.SetJSONIfGeneration(ctx, "k", gen, "v2", time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	var v string
	hit, err := rc.GetJSON(ctx, "k", &v)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v2", v)
}

func TestEmailRepository_ReadThrough(t *testing.T) {
	_, _, inner, repo, e := setup(t)
	ctx := context.Background()

	first, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, inner.gets)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, e.ContentHash, second.ContentHash)
	assert.Equal(t, e.Subject, second.Subject)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestEmailRepository_UpdateEvicts(t *testing.T) {
	_, _, inner, repo, e := setup(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)

	cat := domain.CategoryHR
	updated, err := repo.UpdateSummary(ctx, e.ID, &domain.SummaryUpdate{
		Summary: "new", Category: &cat, Keywords: []string{"k"}, At: time.Now().UTC(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.SummaryCount)

	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, inner.gets)
	assert.Equal(t, "new", got.SummaryText())
	assert.Equal(t, domain.CategoryHR, got.Category)
}

func TestEmailRepository_UpdateDuringLoadIsNotCached(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	inner := &pausingRepo{
		EmailRepository: memory.NewEmailStore(),
		loaded:          make(chan struct{}),
		resume:          make(chan struct{}),
	}
	repo := NewEmailRepository(inner, NewRedisCache(client, "digest:"), time.Minute, zerolog.Nop())
	ctx := context.Background()

	e := domain.NewEmail(domain.RawEmail{Sender: "a@x.io", Subject: "Hi", Body: "Body"}, time.Now().UTC())
	_, err := inner.InsertMany(ctx, []*domain.Email{e})
	require.NoError(t, err)

	type result struct {
		email *domain.Email
		err   error
	}
	done := make(chan result, 1)
	go func() {
		got, err := repo.GetByID(ctx, e.ID)
		done <- result{got, err}
	}()

	<-inner.loaded
	cat := domain.CategoryHR
	_, err = repo.UpdateSummary(ctx, e.ID, &domain.SummaryUpdate{
		Summary: "new", Category: &cat, Keywords: []string{"k"}, At: time.Now().UTC(),
	})
	require.NoError(t, err)
	close(inner.resume)

	stale := <-done
	require.NoError(t, stale.err)
	assert.Equal(t, 0, stale.email.SummaryCount)
	assert.False(t, mr.Exists("digest:"+emailKey(e.ID)))

	inner.loaded = nil
	got, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SummaryCount)
	assert.Equal(t, domain.CategoryHR, got.Category)
	assert.Equal(t, "new", got.SummaryText())
	assert.True(t, mr.Exists("digest:"+emailKey(e.ID)))
}

func TestEmailRepository_DeleteEvicts(t *testing.T) {
	mr, _, _, repo, e := setup(t)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, mr.Exists("digest:"+emailKey(e.ID)))

	require.NoError(t, repo.Delete(ctx, e.ID))
	assert.False(t, mr.Exists("digest:"+emailKey(e.ID)))

	_, err = repo.GetByID(ctx, e.ID)
	assert.ErrorIs(t, err, out.ErrNotFound)
}

func TestEmailRepository_CacheDownFallsThrough(t *testing.T) {
	mr, _, inner, repo, e := setup(t)
	mr.Close()

	got, err := repo.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, 1, inner.gets)
}
