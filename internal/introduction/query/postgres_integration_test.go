//go:build integration

package query_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	accountmodels "intromarket/internal/accounts/models"
	accountstore "intromarket/internal/accounts/store"
	"intromarket/internal/introduction/models"
	"intromarket/internal/introduction/query"
	"intromarket/internal/introduction/store"
	id "intromarket/pkg/domain"
	"intromarket/pkg/requestcontext"
	"intromarket/pkg/testutil/containers"
)

type PostgresReaderSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	accounts *accountstore.Postgres
	requests *store.Postgres
	svc      *query.Service
	now      time.Time
	ctx      context.Context

	professional id.ProfessionalID
	acme         id.CompanyID
	globex       id.CompanyID
	partners     map[id.CompanyID]id.HRPartnerID
}

func TestPostgresReaderSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresReaderSuite))
}

func (s *PostgresReaderSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.accounts = accountstore.NewPostgres(s.postgres.DB)
	s.requests = store.NewPostgres(s.postgres.DB)
	s.svc = query.NewService(query.NewPostgresReader(sqlx.NewDb(s.postgres.DB, "pgx")))
}

func (s *PostgresReaderSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(),
		"introduction_requests", "hr_partners", "professionals", "companies"))
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.partners = map[id.CompanyID]id.HRPartnerID{}

	s.professional = id.ProfessionalID(uuid.New())
	s.Require().NoError(s.accounts.CreateProfessional(s.ctx, &accountmodels.Professional{
		ID: s.professional, VerificationStatus: accountmodels.ProfessionalBasic,
	}))
	s.acme = s.company("Acme Robotics", "Manufacturing", "Berlin")
	s.globex = s.company("Globex", "Fintech", "Lisbon")
}

func (s *PostgresReaderSuite) company(name, industry, location string) id.CompanyID {
	cid := id.CompanyID(uuid.New())
	s.Require().NoError(s.accounts.CreateCompany(s.ctx, &accountmodels.Company{
		ID: cid, Name: name, Industry: industry, Location: location,
		VerificationStatus: accountmodels.CompanyVerified,
	}))
	hid := id.HRPartnerID(uuid.New())
	s.Require().NoError(s.accounts.CreateHRPartner(s.ctx, &accountmodels.HRPartner{
		ID: hid, CompanyID: cid, Role: accountmodels.PartnerRecruiter, Email: "hr@example.com",
	}))
	s.partners[cid] = hid
	return cid
}

func (s *PostgresReaderSuite) add(cid id.CompanyID, role string, sentAgo time.Duration, score *float64, status models.Status) *models.Request {
	r, err := models.NewPending(cid, s.professional, s.partners[cid], role, "", score, s.now.Add(-sentAgo), 7*24*time.Hour)
	s.Require().NoError(err)
	r.Status = status
	s.Require().NoError(s.requests.Insert(s.ctx, r))
	return r
}

func score(v float64) *float64 { return &v }

func ids(page *query.Page) []id.IntroductionID {
	out := make([]id.IntroductionID, 0, len(page.Items))
	for _, it := range page.Items {
		out = append(out, it.ID)
	}
	return out
}

// Justification: SQL filters must agree with the in-memory reader on
// effective status, search and ordering.
func (s *PostgresReaderSuite) TestEffectiveStatusAndCounts() {
	live := s.add(s.acme, "Staff Engineer", time.Hour, nil, models.StatusPending)
	stale := s.add(s.globex, "Analyst", 8*24*time.Hour, nil, models.StatusPending)
	s.add(s.globex, "Designer", 2*time.Hour, nil, models.StatusDeclined)

	page, err := s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Statuses: []models.Status{models.StatusExpired}})
	s.Require().NoError(err)
	s.Equal([]id.IntroductionID{stale.ID}, ids(page))
	s.Equal(models.StatusExpired, page.Items[0].EffectiveStatus)
	s.Equal(models.StatusPending, page.Items[0].Status)

	page, err = s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Statuses: []models.Status{models.StatusPending}})
	s.Require().NoError(err)
	s.Equal([]id.IntroductionID{live.ID}, ids(page))
	s.Equal("Acme Robotics", page.Items[0].CompanyName)

	counts, err := s.svc.Counts(s.ctx, query.ProfessionalScope(s.professional))
	s.Require().NoError(err)
	s.Equal(map[models.Status]int{
		models.StatusPending:  1,
		models.StatusAccepted: 0,
		models.StatusDeclined: 1,
		models.StatusExpired:  1,
	}, counts)
}

func (s *PostgresReaderSuite) TestSearchAndSort() {
	low := s.add(s.acme, "Backend Engineer", 3*time.Hour, score(0.4), models.StatusPending)
	high := s.add(s.globex, "Risk Analyst", 2*time.Hour, score(0.9), models.StatusPending)
	none := s.add(s.acme, "Data Engineer", time.Hour, nil, models.StatusPending)

	s.Run("search matches company fields case-insensitively", func() {
		page, err := s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Search: "FINTECH"})
		s.Require().NoError(err)
		s.Equal([]id.IntroductionID{high.ID}, ids(page))
	})

	s.Run("search treats wildcards literally", func() {
		page, err := s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Search: "%"})
		s.Require().NoError(err)
		s.Empty(page.Items)
		s.Zero(page.Total)
	})

	s.Run("match score puts nulls last", func() {
		page, err := s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Sort: query.SortMatchScore})
		s.Require().NoError(err)
		s.Equal([]id.IntroductionID{high.ID, low.ID, none.ID}, ids(page))
	})

	s.Run("oldest first with paging", func() {
		page, err := s.svc.List(s.ctx, query.ProfessionalScope(s.professional), query.Filter{Sort: query.SortOldest, Page: 2, PageSize: 2})
		s.Require().NoError(err)
		s.Equal([]id.IntroductionID{none.ID}, ids(page))
		s.Equal(3, page.Total)
	})

	s.Run("company scope", func() {
		page, err := s.svc.List(s.ctx, query.CompanyScope(s.acme), query.Filter{})
		s.Require().NoError(err)
		s.Equal([]id.IntroductionID{none.ID, low.ID}, ids(page))
	})
}
