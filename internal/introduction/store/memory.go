// Package store persists introduction requests.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"intromarket/internal/introduction/models"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/platform/tx"
)

// InMemory keeps requests in a map. Writes register undo steps so a
// tx.MemoryRunner rollback restores the previous state.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.IntroductionID]*models.Request
}

func NewInMemory() *InMemory {
	return &InMemory{requests: make(map[id.IntroductionID]*models.Request)}
}

func (s *InMemory) Insert(ctx context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *r
	s.requests[r.ID] = &cp
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.requests, r.ID)
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, rid id.IntroductionID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[rid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *InMemory) CountPendingForProfessional(_ context.Context, pid id.ProfessionalID, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.ProfessionalID == pid && r.IsEffectivelyPending(now) {
			n++
		}
	}
	return n, nil
}

func (s *InMemory) HasPendingForPair(_ context.Context, cid id.CompanyID, pid id.ProfessionalID, now time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.requests {
		if r.CompanyID == cid && r.ProfessionalID == pid && r.IsEffectivelyPending(now) {
			return true, nil
		}
	}
	return false, nil
}

// MarkViewed sets the viewed flag once. It reports whether this call set it.
func (s *InMemory) MarkViewed(ctx context.Context, rid id.IntroductionID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[rid]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if r.ViewedByProfessional {
		return false, nil
	}
	r.ViewedByProfessional = true
	viewedAt := at
	r.ViewedAt = &viewedAt
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		r.ViewedByProfessional = false
		r.ViewedAt = nil
	})
	return true, nil
}

// Respond moves a request out of PENDING when it is still effectively
// pending at `at`. It reports whether the transition happened.
func (s *InMemory) Respond(ctx context.Context, rid id.IntroductionID, to models.Status, at time.Time, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[rid]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if !r.IsEffectivelyPending(at) {
		return false, nil
	}
	prev := *r
	respondedAt := at
	r.Status = to
	r.RespondedAt = &respondedAt
	r.ResponseMessage = message
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*r = prev
	})
	return true, nil
}

// ExpireBatch flips up to limit stored-PENDING requests whose expiry is at
// or before now, oldest expiry first.
func (s *InMemory) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]id.IntroductionID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.Request
	for _, r := range s.requests {
		if r.Status == models.StatusPending && !r.ExpiresAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].ExpiresAt.Equal(due[j].ExpiresAt) {
			return due[i].ExpiresAt.Before(due[j].ExpiresAt)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if len(due) > limit {
		due = due[:limit]
	}

	ids := make([]id.IntroductionID, 0, len(due))
	for _, r := range due {
		r.Status = models.StatusExpired
		ids = append(ids, r.ID)
	}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, rid := range ids {
			s.requests[rid].Status = models.StatusPending
		}
	})
	return ids, nil
}

// All returns copies of every stored request for the in-memory read model.
func (s *InMemory) All(_ context.Context) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Request, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, *r)
	}
	return out, nil
}
