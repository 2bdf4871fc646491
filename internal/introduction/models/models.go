// Package models defines introduction requests and the effective-status
// rule every read and admission decision shares.
package models

import (
	"strings"
	"time"

	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// AllStatuses lists statuses in display order.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusDeclined, StatusExpired}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusDeclined || s == StatusExpired
}

// ParseStatus accepts any letter case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+raw)
	}
	return s, nil
}

const (
	MaxMessageLength   = 2000
	MaxRoleTitleLength = 200
)

type Request struct {
	ID                   id.IntroductionID
	CompanyID            id.CompanyID
	ProfessionalID       id.ProfessionalID
	SentByID             id.HRPartnerID
	Status               Status
	RoleTitle            string
	Message              string
	MatchScore           *float64
	SentAt               time.Time
	ExpiresAt            time.Time
	ViewedByProfessional bool
	ViewedAt             *time.Time
	RespondedAt          *time.Time
	ResponseMessage      string
}

// EffectiveStatus is EXPIRED for a stored PENDING request whose expiry has
// passed, and the stored status otherwise.
func EffectiveStatus(r *Request, now time.Time) Status {
	if r.Status == StatusPending && !r.ExpiresAt.After(now) {
		return StatusExpired
	}
	return r.Status
}

func (r *Request) EffectiveStatus(now time.Time) Status {
	return EffectiveStatus(r, now)
}

func (r *Request) IsEffectivelyPending(now time.Time) bool {
	return EffectiveStatus(r, now) == StatusPending
}

// NewPending builds a PENDING request that expires expiry after sentAt.
func NewPending(
	companyID id.CompanyID,
	professionalID id.ProfessionalID,
	sentBy id.HRPartnerID,
	roleTitle, message string,
	matchScore *float64,
	sentAt time.Time,
	expiry time.Duration,
) (*Request, error) {
	if expiry <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expiry window must be positive")
	}
	return &Request{
		ID:             id.NewIntroductionID(),
		CompanyID:      companyID,
		ProfessionalID: professionalID,
		SentByID:       sentBy,
		Status:         StatusPending,
		RoleTitle:      roleTitle,
		Message:        message,
		MatchScore:     matchScore,
		SentAt:         sentAt,
		ExpiresAt:      sentAt.Add(expiry),
	}, nil
}
