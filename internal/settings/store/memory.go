// Package store persists system settings with an optimistic version guard.
package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"intromarket/internal/settings/models"
	"intromarket/pkg/platform/sentinel"
)

type InMemory struct {
	mu   sync.RWMutex
	rows map[models.Key]models.Setting
}

// NewInMemory seeds the default rows the migration would insert.
func NewInMemory() *InMemory {
	now := time.Now()
	d := models.Defaults()
	return &InMemory{rows: map[models.Key]models.Setting{
		models.KeyExpiryDays: {Key: models.KeyExpiryDays, Value: strconv.Itoa(d.ExpiryDays), Version: 1, UpdatedAt: now},
		models.KeyMaxPending: {Key: models.KeyMaxPending, Value: strconv.Itoa(d.MaxPendingPerProfessional), Version: 1, UpdatedAt: now},
	}}
}

func (s *InMemory) List(_ context.Context) ([]models.Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Setting, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Update writes value when the stored version equals expectedVersion and
// returns the new row.
func (s *InMemory) Update(_ context.Context, key models.Key, value string, expectedVersion int, by string, at time.Time) (models.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return models.Setting{}, sentinel.ErrNotFound
	}
	if row.Version != expectedVersion {
		return models.Setting{}, sentinel.ErrConflict
	}
	row.Value = value
	row.Version++
	row.UpdatedAt = at
	row.UpdatedBy = by
	s.rows[key] = row
	return row, nil
}
