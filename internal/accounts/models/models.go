// Package models holds the marketplace participants: professionals,
// companies and the HR partners who act for companies.
package models

import (
	"time"

	id "intromarket/pkg/domain"
)

// ProfessionalStatus is ordered: UNVERIFIED < BASIC < FULL < PREMIUM.
type ProfessionalStatus string

const (
	ProfessionalUnverified ProfessionalStatus = "UNVERIFIED"
	ProfessionalBasic      ProfessionalStatus = "BASIC"
	ProfessionalFull       ProfessionalStatus = "FULL"
	ProfessionalPremium    ProfessionalStatus = "PREMIUM"
)

var professionalRank = map[ProfessionalStatus]int{
	ProfessionalUnverified: 0,
	ProfessionalBasic:      1,
	ProfessionalFull:       2,
	ProfessionalPremium:    3,
}

// Rank returns the status position; unknown values rank below UNVERIFIED.
func (s ProfessionalStatus) Rank() int {
	if r, ok := professionalRank[s]; ok {
		return r
	}
	return -1
}

// AtLeast reports whether s is at or above other.
func (s ProfessionalStatus) AtLeast(other ProfessionalStatus) bool {
	return s.Rank() >= other.Rank()
}

type Professional struct {
	ID                 id.ProfessionalID
	LinkedInURL        string
	VerificationStatus ProfessionalStatus
	VerificationDate   *time.Time
	VerifiedBy         string
	VerificationNotes  string
	DeletedAt          *time.Time
	CreatedAt          time.Time
}

func (p *Professional) IsDeleted() bool {
	return p.DeletedAt != nil
}

type CompanyStatus string

const (
	CompanyPending    CompanyStatus = "PENDING"
	CompanyVerified   CompanyStatus = "VERIFIED"
	CompanyUnverified CompanyStatus = "UNVERIFIED"
	CompanyPremium    CompanyStatus = "PREMIUM"
)

// CanSend reports whether a company in this status may send introductions.
func (s CompanyStatus) CanSend() bool {
	return s == CompanyVerified || s == CompanyPremium
}

type Company struct {
	ID                  id.CompanyID
	Name                string
	Industry            string
	Location            string
	Website             string
	VerificationStatus  CompanyStatus
	VerificationNotes   string
	VerifiedAt          *time.Time
	VerifiedBy          string
	IntroductionCredits int
	CreatedAt           time.Time
}

type PartnerRole string

const (
	PartnerAdmin     PartnerRole = "ADMIN"
	PartnerRecruiter PartnerRole = "RECRUITER"
)

type HRPartner struct {
	ID        id.HRPartnerID
	CompanyID id.CompanyID
	Role      PartnerRole
	Email     string
	CreatedAt time.Time
}

// ProfessionalVerification is the write applied when a LinkedIn check passes.
type ProfessionalVerification struct {
	Status     ProfessionalStatus
	VerifiedAt time.Time
	VerifiedBy string
	Notes      string
}

// ProfessionalReview records a check that ended in manual review. It never
// changes the status and only applies below BASIC.
type ProfessionalReview struct {
	ReviewedAt time.Time
	ReviewedBy string
	Notes      string
}

// CompanyVerification is the write applied for a company verdict. A nil
// Status records notes without changing the status.
type CompanyVerification struct {
	Status     *CompanyStatus
	VerifiedAt time.Time
	VerifiedBy string
	Notes      string
}
