// Package memory is an in-process EmailRepository for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"digest_server/core/domain"
	"digest_server/core/port/out"

	"github.com/google/uuid"
)

type EmailStore struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*domain.Email
	byHash map[string]uuid.UUID
}

var _ out.EmailRepository = (*EmailStore)(nil)

func NewEmailStore() *EmailStore {
	return &EmailStore{
		byID:   make(map[uuid.UUID]*domain.Email),
		byHash: make(map[string]uuid.UUID),
	}
}

func (s *EmailStore) InsertMany(_ context.Context, emails []*domain.Email) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, e := range emails {
		if _, ok := s.byHash[e.ContentHash]; ok {
			continue
		}
		c := clone(e)
		s.byID[c.ID] = c
		s.byHash[c.ContentHash] = c.ID
		inserted++
	}
	return inserted, nil
}

func (s *EmailStore) ExistingHashes(_ context.Context, hashes []string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := s.byHash[h]; ok {
			found[h] = struct{}{}
		}
	}
	return found, nil
}

func (s *EmailStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	return clone(e), nil
}

func (s *EmailStore) List(_ context.Context, q *domain.ListQuery) ([]*domain.Email, int, error) {
	q.Normalize()

	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(q.Search)
	matched := make([]*domain.Email, 0, len(s.byID))
	for _, e := range s.byID {
		if q.Category != nil && e.Category != *q.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Sender), search) &&
			!strings.Contains(strings.ToLower(e.Subject), search) &&
			!strings.Contains(strings.ToLower(e.Body), search) {
			continue
		}
		matched = append(matched, e)
	}
	sortEmails(matched, q.Sort)

	total := len(matched)
	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := make([]*domain.Email, 0, end-start)
	for _, e := range matched[start:end] {
		page = append(page, clone(e))
	}
	return page, total, nil
}

func (s *EmailStore) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Email, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if e, ok := s.byID[id]; ok {
			result = append(result, clone(e))
		}
	}
	sortEmails(result, domain.SortNewest)
	return result, nil
}

func (s *EmailStore) ListAll(_ context.Context) ([]*domain.Email, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Email, 0, len(s.byID))
	for _, e := range s.byID {
		result = append(result, clone(e))
	}
	sortEmails(result, domain.SortNewest)
	return result, nil
}

func (s *EmailStore) UpdateSummary(_ context.Context, id uuid.UUID, u *domain.SummaryUpdate) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return nil, out.ErrNotFound
	}
	e.ApplySummary(u)
	return clone(e), nil
}

func (s *EmailStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return out.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byHash, e.ContentHash)
	return nil
}

// Len returns the number of stored emails.
func (s *EmailStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func sortEmails(emails []*domain.Email, key domain.SortKey) {
	sort.SliceStable(emails, func(i, j int) bool {
		a, b := emails[i], emails[j]
		switch key {
		case domain.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID.String() < b.ID.String()
		case domain.SortCount:
			if a.SummaryCount != b.SummaryCount {
				return a.SummaryCount > b.SummaryCount
			}
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() > b.ID.String()
	})
}

func clone(e *domain.Email) *domain.Email {
	c := *e
	c.Keywords = append([]string{}, e.Keywords...)
	if e.Summary != nil {
		summary := *e.Summary
		c.Summary = &summary
	}
	if e.LastSummarizedAt != nil {
		at := *e.LastSummarizedAt
		c.LastSummarizedAt = &at
	}
	return &c
}
