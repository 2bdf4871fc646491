// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a UUID so the compiler keeps a CompanyID from being
// passed where a ProfessionalID is expected. Construct them via the Parse
// functions at trust boundaries; direct conversion skips validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "intromarket/pkg/domain-errors"
)

type (
	// UserID identifies an authenticated actor (reviewer, admin, scheduler).
	UserID uuid.UUID
	// CompanyID identifies a company account.
	CompanyID uuid.UUID
	// ProfessionalID identifies a professional account.
	ProfessionalID uuid.UUID
	// HRPartnerID identifies an HR partner acting for a company.
	HRPartnerID uuid.UUID
	// IntroductionID identifies an introduction request.
	IntroductionID uuid.UUID
)

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return parsed, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user_id")
	return UserID(u), err
}

func ParseCompanyID(s string) (CompanyID, error) {
	u, err := parseUUID(s, "company_id")
	return CompanyID(u), err
}

func ParseProfessionalID(s string) (ProfessionalID, error) {
	u, err := parseUUID(s, "professional_id")
	return ProfessionalID(u), err
}

func ParseHRPartnerID(s string) (HRPartnerID, error) {
	u, err := parseUUID(s, "hr_partner_id")
	return HRPartnerID(u), err
}

func ParseIntroductionID(s string) (IntroductionID, error) {
	u, err := parseUUID(s, "request_id")
	return IntroductionID(u), err
}

func (id UserID) String() string         { return uuid.UUID(id).String() }
func (id CompanyID) String() string      { return uuid.UUID(id).String() }
func (id ProfessionalID) String() string { return uuid.UUID(id).String() }
func (id HRPartnerID) String() string    { return uuid.UUID(id).String() }
func (id IntroductionID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ProfessionalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id HRPartnerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id IntroductionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// NewIntroductionID returns a fresh random request identifier.
func NewIntroductionID() IntroductionID {
	return IntroductionID(uuid.New())
}
