package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"intromarket/internal/accounts/models"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/platform/tx"
)

type AccountsStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestAccountsStoreSuite(t *testing.T) {
	suite.Run(t, new(AccountsStoreSuite))
}

func (s *AccountsStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *AccountsStoreSuite) newCompany(status models.CompanyStatus, credits int) *models.Company {
	c := &models.Company{
		ID:                  id.CompanyID(uuid.New()),
		Name:                "Acme",
		Website:             "https://acme.com",
		VerificationStatus:  status,
		IntroductionCredits: credits,
		CreatedAt:           time.Now(),
	}
	s.Require().NoError(s.store.CreateCompany(s.ctx, c))
	return c
}

func (s *AccountsStoreSuite) newProfessional(status models.ProfessionalStatus) *models.Professional {
	p := &models.Professional{
		ID:                 id.ProfessionalID(uuid.New()),
		VerificationStatus: status,
		CreatedAt:          time.Now(),
	}
	s.Require().NoError(s.store.CreateProfessional(s.ctx, p))
	return p
}

// Justification: verification must only ever raise a professional's status.
func (s *AccountsStoreSuite) TestUpgradeProfessionalIsMonotonic() {
	now := time.Now()

	s.Run("upgrades unverified to basic", func() {
		p := s.newProfessional(models.ProfessionalUnverified)
		changed, err := s.store.UpgradeProfessional(s.ctx, p.ID, models.ProfessionalVerification{
			Status: models.ProfessionalBasic, VerifiedAt: now, VerifiedBy: "reviewer-1", Notes: "linkedin ok",
		})
		s.Require().NoError(err)
		s.True(changed)

		got, err := s.store.FindProfessional(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.ProfessionalBasic, got.VerificationStatus)
		s.Equal("reviewer-1", got.VerifiedBy)
		s.NotNil(got.VerificationDate)
	})

	s.Run("never downgrades premium", func() {
		p := s.newProfessional(models.ProfessionalPremium)
		changed, err := s.store.UpgradeProfessional(s.ctx, p.ID, models.ProfessionalVerification{
			Status: models.ProfessionalBasic, VerifiedAt: now,
		})
		s.Require().NoError(err)
		s.False(changed)

		got, _ := s.store.FindProfessional(s.ctx, p.ID)
		s.Equal(models.ProfessionalPremium, got.VerificationStatus)
	})

	s.Run("deleted professional is not found", func() {
		p := s.newProfessional(models.ProfessionalUnverified)
		s.Require().NoError(s.store.SoftDeleteProfessional(s.ctx, p.ID, now))
		_, err := s.store.UpgradeProfessional(s.ctx, p.ID, models.ProfessionalVerification{Status: models.ProfessionalBasic})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// Justification: a manual review note must not replace the record of a
// verification that already succeeded.
func (s *AccountsStoreSuite) TestRecordProfessionalReview() {
	now := time.Now()
	review := models.ProfessionalReview{ReviewedAt: now, ReviewedBy: "reviewer-2", Notes: "unreachable"}

	s.Run("unverified records note reviewer and time", func() {
		p := s.newProfessional(models.ProfessionalUnverified)
		recorded, err := s.store.RecordProfessionalReview(s.ctx, p.ID, review)
		s.Require().NoError(err)
		s.True(recorded)

		got, _ := s.store.FindProfessional(s.ctx, p.ID)
		s.Equal(models.ProfessionalUnverified, got.VerificationStatus)
		s.Equal("unreachable", got.VerificationNotes)
		s.Equal("reviewer-2", got.VerifiedBy)
		s.Require().NotNil(got.VerificationDate)
		s.True(got.VerificationDate.Equal(now))
	})

	s.Run("basic and above are left alone", func() {
		p := s.newProfessional(models.ProfessionalUnverified)
		_, err := s.store.UpgradeProfessional(s.ctx, p.ID, models.ProfessionalVerification{
			Status: models.ProfessionalBasic, VerifiedAt: now, VerifiedBy: "reviewer-1", Notes: "linkedin ok",
		})
		s.Require().NoError(err)

		recorded, err := s.store.RecordProfessionalReview(s.ctx, p.ID, review)
		s.Require().NoError(err)
		s.False(recorded)

		got, _ := s.store.FindProfessional(s.ctx, p.ID)
		s.Equal("linkedin ok", got.VerificationNotes)
		s.Equal("reviewer-1", got.VerifiedBy)
	})

	s.Run("undone when the memory transaction fails", func() {
		p := s.newProfessional(models.ProfessionalUnverified)
		err := tx.NewMemoryRunner().RunInTx(s.ctx, func(ctx context.Context) error {
			_, err := s.store.RecordProfessionalReview(ctx, p.ID, review)
			s.Require().NoError(err)
			return errors.New("audit failed")
		})
		s.Require().Error(err)

		got, _ := s.store.FindProfessional(s.ctx, p.ID)
		s.Empty(got.VerificationNotes)
		s.Nil(got.VerificationDate)
	})
}

func (s *AccountsStoreSuite) TestApplyCompanyVerification() {
	verified := models.CompanyVerified

	s.Run("premium is never overwritten", func() {
		c := s.newCompany(models.CompanyPremium, 0)
		changed, err := s.store.ApplyCompanyVerification(s.ctx, c.ID, models.CompanyVerification{Status: &verified})
		s.Require().NoError(err)
		s.False(changed)
	})

	s.Run("nil status records notes only", func() {
		c := s.newCompany(models.CompanyPending, 0)
		changed, err := s.store.ApplyCompanyVerification(s.ctx, c.ID, models.CompanyVerification{Notes: "no admin"})
		s.Require().NoError(err)
		s.True(changed)

		got, _ := s.store.FindCompany(s.ctx, c.ID)
		s.Equal(models.CompanyPending, got.VerificationStatus)
		s.Equal("no admin", got.VerificationNotes)
		s.Nil(got.VerifiedAt)
	})
}

func (s *AccountsStoreSuite) TestSingleAdminPerCompany() {
	c := s.newCompany(models.CompanyPending, 0)
	admin := &models.HRPartner{ID: id.HRPartnerID(uuid.New()), CompanyID: c.ID, Role: models.PartnerAdmin, Email: "a@acme.com"}
	s.Require().NoError(s.store.CreateHRPartner(s.ctx, admin))

	second := &models.HRPartner{ID: id.HRPartnerID(uuid.New()), CompanyID: c.ID, Role: models.PartnerAdmin, Email: "b@acme.com"}
	s.ErrorIs(s.store.CreateHRPartner(s.ctx, second), sentinel.ErrConflict)

	found, err := s.store.FindCompanyAdmin(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(admin.ID, found.ID)
}

func (s *AccountsStoreSuite) TestDebitCredit() {
	s.Run("stops at zero", func() {
		c := s.newCompany(models.CompanyVerified, 1)
		ok, err := s.store.DebitCredit(s.ctx, c.ID)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.DebitCredit(s.ctx, c.ID)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("restored when the memory transaction fails", func() {
		c := s.newCompany(models.CompanyVerified, 2)
		runner := tx.NewMemoryRunner()
		err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
			ok, err := s.store.DebitCredit(ctx, c.ID)
			s.Require().NoError(err)
			s.Require().True(ok)
			return errors.New("insert failed")
		})
		s.Require().Error(err)

		got, _ := s.store.FindCompany(s.ctx, c.ID)
		s.Equal(2, got.IntroductionCredits)
	})
}
