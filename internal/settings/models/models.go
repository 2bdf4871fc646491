package models

import (
	"fmt"
	"strconv"
	"time"

	dErrors "intromarket/pkg/domain-errors"
)

type Key string

const (
	KeyExpiryDays Key = "introduction_expiry_days"
	KeyMaxPending Key = "max_pending_introductions_per_professional"
)

const (
	DefaultExpiry     = 7
	DefaultMaxPending = 10

	maxExpiryDays     = 365
	maxPendingCeiling = 10000
)

// Settings is the snapshot consulted at decision time.
type Settings struct {
	ExpiryDays                int `json:"introduction_expiry_days"`
	MaxPendingPerProfessional int `json:"max_pending_introductions_per_professional"`
}

func Defaults() Settings {
	return Settings{ExpiryDays: DefaultExpiry, MaxPendingPerProfessional: DefaultMaxPending}
}

// ExpiryWindow returns the request lifetime.
func (s Settings) ExpiryWindow() time.Duration {
	return time.Duration(s.ExpiryDays) * 24 * time.Hour
}

// Setting is one stored key/value row.
type Setting struct {
	Key       Key
	Value     string
	Version   int
	UpdatedAt time.Time
	UpdatedBy string
}

// ParseKey rejects keys outside the known set.
func ParseKey(raw string) (Key, error) {
	switch k := Key(raw); k {
	case KeyExpiryDays, KeyMaxPending:
		return k, nil
	default:
		return "", dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("unknown setting %q", raw))
	}
}

// ValidateValue checks that value is a positive integer within the key's range.
func ValidateValue(key Key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be a positive integer", key))
	}
	limit := maxPendingCeiling
	if key == KeyExpiryDays {
		limit = maxExpiryDays
	}
	if n > limit {
		return 0, dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("%s must be at most %d", key, limit))
	}
	return n, nil
}

// FromRows folds stored rows over the defaults. Rows that fail validation
// keep the default so a bad manual edit cannot stop sends.
func FromRows(rows []Setting) Settings {
	s := Defaults()
	for _, r := range rows {
		n, err := ValidateValue(r.Key, r.Value)
		if err != nil {
			continue
		}
		switch r.Key {
		case KeyExpiryDays:
			s.ExpiryDays = n
		case KeyMaxPending:
			s.MaxPendingPerProfessional = n
		}
	}
	return s
}
