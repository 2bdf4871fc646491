package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
)

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		stored    Status
		expiresAt time.Time
		want      Status
	}{
		{"pending before expiry", StatusPending, now.Add(time.Second), StatusPending},
		{"pending at expiry instant", StatusPending, now, StatusExpired},
		{"pending after expiry", StatusPending, now.Add(-time.Hour), StatusExpired},
		{"accepted stays accepted after expiry", StatusAccepted, now.Add(-time.Hour), StatusAccepted},
		{"declined stays declined", StatusDeclined, now.Add(time.Hour), StatusDeclined},
		{"expired stays expired", StatusExpired, now.Add(time.Hour), StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Request{Status: tt.stored, ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, EffectiveStatus(r, now))
			assert.Equal(t, tt.want == StatusPending, r.IsEffectivelyPending(now))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" pending ")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)

	_, err = ParseStatus("archived")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestNewPending(t *testing.T) {
	sentAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("expiry follows the window", func(t *testing.T) {
		r, err := NewPending(id.CompanyID(uuid.New()), id.ProfessionalID(uuid.New()), id.HRPartnerID(uuid.New()),
			"Staff Engineer", "hello", nil, sentAt, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, r.Status)
		assert.True(t, r.ExpiresAt.After(r.SentAt))
		assert.Equal(t, sentAt.AddDate(0, 0, 7), r.ExpiresAt)
		assert.False(t, r.ID.IsNil())
	})

	t.Run("non-positive window is rejected", func(t *testing.T) {
		_, err := NewPending(id.CompanyID(uuid.New()), id.ProfessionalID(uuid.New()), id.HRPartnerID(uuid.New()),
			"", "", nil, sentAt, 0)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	for _, s := range []Status{StatusAccepted, StatusDeclined, StatusExpired} {
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, Status("OTHER").IsValid())
}
