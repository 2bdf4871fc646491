// Package store persists professionals, companies and HR partners.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"intromarket/internal/accounts/models"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/platform/tx"
)

// InMemory is a map-backed account store for tests and database-less runs.
// Returned values are copies; callers never alias stored rows.
type InMemory struct {
	mu            sync.RWMutex
	professionals map[id.ProfessionalID]*models.Professional
	companies     map[id.CompanyID]*models.Company
	partners      map[id.HRPartnerID]*models.HRPartner
}

func NewInMemory() *InMemory {
	return &InMemory{
		professionals: make(map[id.ProfessionalID]*models.Professional),
		companies:     make(map[id.CompanyID]*models.Company),
		partners:      make(map[id.HRPartnerID]*models.HRPartner),
	}
}

func (s *InMemory) CreateProfessional(_ context.Context, p *models.Professional) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.professionals[p.ID]; ok {
		return fmt.Errorf("professional %s: %w", p.ID, sentinel.ErrConflict)
	}
	cp := *p
	s.professionals[p.ID] = &cp
	return nil
}

func (s *InMemory) CreateCompany(_ context.Context, c *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[c.ID]; ok {
		return fmt.Errorf("company %s: %w", c.ID, sentinel.ErrConflict)
	}
	cp := *c
	s.companies[c.ID] = &cp
	return nil
}

func (s *InMemory) CreateHRPartner(_ context.Context, p *models.HRPartner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.companies[p.CompanyID]; !ok {
		return fmt.Errorf("company %s: %w", p.CompanyID, sentinel.ErrNotFound)
	}
	if _, ok := s.partners[p.ID]; ok {
		return fmt.Errorf("hr partner %s: %w", p.ID, sentinel.ErrConflict)
	}
	if p.Role == models.PartnerAdmin {
		for _, existing := range s.partners {
			if existing.CompanyID == p.CompanyID && existing.Role == models.PartnerAdmin {
				return fmt.Errorf("company %s already has an admin: %w", p.CompanyID, sentinel.ErrConflict)
			}
		}
	}
	cp := *p
	s.partners[p.ID] = &cp
	return nil
}

func (s *InMemory) FindProfessional(_ context.Context, pid id.ProfessionalID) (*models.Professional, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.professionals[pid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindCompany(_ context.Context, cid id.CompanyID) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[cid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *InMemory) FindHRPartner(_ context.Context, hid id.HRPartnerID) (*models.HRPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partners[hid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindCompanyAdmin(_ context.Context, cid id.CompanyID) (*models.HRPartner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.partners {
		if p.CompanyID == cid && p.Role == models.PartnerAdmin {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// UpgradeProfessional applies v only when the stored status ranks below
// v.Status and the professional is not deleted. It reports whether a row
// changed. The write is undone if the surrounding transaction fails.
func (s *InMemory) UpgradeProfessional(ctx context.Context, pid id.ProfessionalID, v models.ProfessionalVerification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[pid]
	if !ok || p.IsDeleted() {
		return false, sentinel.ErrNotFound
	}
	if p.VerificationStatus.AtLeast(v.Status) {
		return false, nil
	}
	s.undoProfessional(ctx, p)
	at := v.VerifiedAt
	p.VerificationStatus = v.Status
	p.VerificationDate = &at
	p.VerifiedBy = v.VerifiedBy
	p.VerificationNotes = v.Notes
	return true, nil
}

// RecordProfessionalReview stores a manual review note with its reviewer and
// time. Professionals at BASIC or above keep their verification record.
func (s *InMemory) RecordProfessionalReview(ctx context.Context, pid id.ProfessionalID, r models.ProfessionalReview) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[pid]
	if !ok || p.IsDeleted() {
		return false, sentinel.ErrNotFound
	}
	if p.VerificationStatus.AtLeast(models.ProfessionalBasic) {
		return false, nil
	}
	s.undoProfessional(ctx, p)
	at := r.ReviewedAt
	p.VerificationDate = &at
	p.VerifiedBy = r.ReviewedBy
	p.VerificationNotes = r.Notes
	return true, nil
}

func (s *InMemory) undoProfessional(ctx context.Context, p *models.Professional) {
	prev := *p
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*p = prev
	})
}

// ApplyCompanyVerification writes a verdict unless the company is PREMIUM.
func (s *InMemory) ApplyCompanyVerification(ctx context.Context, cid id.CompanyID, v models.CompanyVerification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[cid]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if c.VerificationStatus == models.CompanyPremium {
		return false, nil
	}
	prev := *c
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		*c = prev
	})
	if v.Status != nil {
		c.VerificationStatus = *v.Status
		at := v.VerifiedAt
		c.VerifiedAt = &at
		c.VerifiedBy = v.VerifiedBy
	}
	c.VerificationNotes = v.Notes
	return true, nil
}

// DebitCredit takes one credit when at least one remains. Inside a
// tx.MemoryRunner transaction the debit is undone on rollback.
func (s *InMemory) DebitCredit(ctx context.Context, cid id.CompanyID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[cid]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	if c.IntroductionCredits <= 0 {
		return false, nil
	}
	c.IntroductionCredits--
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		c.IntroductionCredits++
	})
	return true, nil
}

// LockProfessional returns a live professional. The memory runner already
// serialises transactions, so no row lock is needed.
func (s *InMemory) LockProfessional(ctx context.Context, pid id.ProfessionalID) (*models.Professional, error) {
	p, err := s.FindProfessional(ctx, pid)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return p, nil
}

// SoftDeleteProfessional tombstones a professional.
func (s *InMemory) SoftDeleteProfessional(_ context.Context, pid id.ProfessionalID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.professionals[pid]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.DeletedAt == nil {
		p.DeletedAt = &at
	}
	return nil
}

// CompanyMatches reports whether the company's name, industry or location
// contains the lower-cased needle. Used by the in-memory read model.
