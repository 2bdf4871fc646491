package query

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	accountmodels "intromarket/internal/accounts/models"
	accountstore "intromarket/internal/accounts/store"
	"intromarket/internal/introduction/models"
	"intromarket/internal/introduction/store"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/requestcontext"
)

type QuerySuite struct {
	suite.Suite
	accounts *accountstore.InMemory
	requests *store.InMemory
	svc      *Service
	now      time.Time
	ctx      context.Context

	professional id.ProfessionalID
	acme         id.CompanyID
	globex       id.CompanyID
}

func TestQuerySuite(t *testing.T) {
	suite.Run(t, new(QuerySuite))
}

func (s *QuerySuite) SetupTest() {
	s.accounts = accountstore.NewInMemory()
	s.requests = store.NewInMemory()
	s.svc = NewService(NewMemoryReader(s.requests, s.accounts))
	s.now = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.professional = id.ProfessionalID(uuid.New())
	s.acme = s.company("Acme Robotics", "Manufacturing", "Berlin")
	s.globex = s.company("Globex", "Fintech", "Lisbon")
}

func (s *QuerySuite) company(name, industry, location string) id.CompanyID {
	cid := id.CompanyID(uuid.New())
	s.Require().NoError(s.accounts.CreateCompany(s.ctx, &accountmodels.Company{
		ID: cid, Name: name, Industry: industry, Location: location,
		VerificationStatus: accountmodels.CompanyVerified,
	}))
	return cid
}

func (s *QuerySuite) add(cid id.CompanyID, role string, sentAgo time.Duration, score *float64, status models.Status) *models.Request {
	sentAt := s.now.Add(-sentAgo)
	r, err := models.NewPending(cid, s.professional, id.HRPartnerID(uuid.New()), role, "", score, sentAt, 7*24*time.Hour)
	s.Require().NoError(err)
	r.Status = status
	s.Require().NoError(s.requests.Insert(context.Background(), r))
	return r
}

func score(v float64) *float64 { return &v }

func (s *QuerySuite) ids(page *Page) []id.IntroductionID {
	out := make([]id.IntroductionID, 0, len(page.Items))
	for _, it := range page.Items {
		out = append(out, it.ID)
	}
	return out
}

// Justification: reads report effective status, so a stale PENDING row shows
// as EXPIRED in filters and counts.
func (s *QuerySuite) TestEffectiveStatusFiltering() {
	live := s.add(s.acme, "Staff Engineer", time.Hour, nil, models.StatusPending)
	stale := s.add(s.globex, "CTO", 8*24*time.Hour, nil, models.StatusPending)
	s.add(s.globex, "VP Engineering", 2*time.Hour, nil, models.StatusAccepted)

	page, err := s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Statuses: []models.Status{models.StatusPending}})
	s.Require().NoError(err)
	s.Equal([]id.IntroductionID{live.ID}, s.ids(page))

	page, err = s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Statuses: []models.Status{models.StatusExpired}})
	s.Require().NoError(err)
	s.Equal([]id.IntroductionID{stale.ID}, s.ids(page))
	s.Equal(models.StatusExpired, page.Items[0].EffectiveStatus)
	s.Equal(models.StatusPending, page.Items[0].Status)

	counts, err := s.svc.Counts(s.ctx, ProfessionalScope(s.professional))
	s.Require().NoError(err)
	s.Equal(map[models.Status]int{
		models.StatusPending:  1,
		models.StatusAccepted: 1,
		models.StatusDeclined: 0,
		models.StatusExpired:  1,
	}, counts)
}

func (s *QuerySuite) TestSearch() {
	berlin := s.add(s.acme, "Platform Lead", time.Hour, nil, models.StatusPending)
	fintech := s.add(s.globex, "Data Scientist", 2*time.Hour, nil, models.StatusPending)

	cases := map[string][]id.IntroductionID{
		"berlin":     {berlin.ID},
		"FINTECH":    {fintech.ID},
		"platform":   {berlin.ID},
		"globex":     {fintech.ID},
		"a":          {berlin.ID, fintech.ID},
		"no-such-co": {},
	}
	for needle, want := range cases {
		page, err := s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Search: needle})
		s.Require().NoError(err)
		s.Equal(want, s.ids(page), needle)
	}
}

func (s *QuerySuite) TestOrdering() {
	a := s.add(s.acme, "A", 3*time.Hour, score(0.4), models.StatusPending)
	b := s.add(s.acme, "B", 1*time.Hour, nil, models.StatusPending)
	c := s.add(s.globex, "C", 2*time.Hour, score(0.9), models.StatusPending)

	tests := []struct {
		sort Sort
		want []id.IntroductionID
	}{
		{SortNewest, []id.IntroductionID{b.ID, c.ID, a.ID}},
		{SortOldest, []id.IntroductionID{a.ID, c.ID, b.ID}},
		{SortMatchScore, []id.IntroductionID{c.ID, a.ID, b.ID}},
		{SortExpiringSoon, []id.IntroductionID{a.ID, c.ID, b.ID}},
	}
	for _, tt := range tests {
		page, err := s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Sort: tt.sort})
		s.Require().NoError(err)
		s.Equal(tt.want, s.ids(page), tt.sort)
	}
}

func (s *QuerySuite) TestPagination() {
	for i := range 5 {
		s.add(s.acme, "Role", time.Duration(i+1)*time.Hour, nil, models.StatusPending)
	}

	page, err := s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Page: 2, PageSize: 2})
	s.Require().NoError(err)
	s.Len(page.Items, 2)
	s.Equal(5, page.Total)
	s.Equal(2, page.Page)

	page, err = s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Page: 4, PageSize: 2})
	s.Require().NoError(err)
	s.Empty(page.Items)
	s.NotNil(page.Items)
	s.Equal(5, page.Total)

	page, err = s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{})
	s.Require().NoError(err)
	s.Equal(DefaultPageSize, page.PageSize)

	page, err = s.svc.List(s.ctx, ProfessionalScope(s.professional), Filter{Page: MaxPage, PageSize: MaxPageSize})
	s.Require().NoError(err)
	s.Empty(page.Items)
	s.Equal(5, page.Total)
}

func (s *QuerySuite) TestCompanyScope() {
	mine := s.add(s.acme, "Role", time.Hour, nil, models.StatusPending)
	s.add(s.globex, "Role", time.Hour, nil, models.StatusPending)

	page, err := s.svc.List(s.ctx, CompanyScope(s.acme), Filter{})
	s.Require().NoError(err)
	s.Equal([]id.IntroductionID{mine.ID}, s.ids(page))
	s.Equal("Acme Robotics", page.Items[0].CompanyName)
}

func (s *QuerySuite) TestInvalidInput() {
	cases := []struct {
		name  string
		scope Scope
		f     Filter
	}{
		{"no scope", Scope{}, Filter{}},
		{"both scopes", Scope{ProfessionalID: s.professional, CompanyID: s.acme}, Filter{}},
		{"page size too large", ProfessionalScope(s.professional), Filter{PageSize: MaxPageSize + 1}},
		{"negative page", ProfessionalScope(s.professional), Filter{Page: -1}},
		{"page past limit", ProfessionalScope(s.professional), Filter{Page: MaxPage + 1}},
		{"page offset overflows", ProfessionalScope(s.professional), Filter{Page: math.MaxInt64 / 50, PageSize: MaxPageSize}},
		{"unknown sort", ProfessionalScope(s.professional), Filter{Sort: "random"}},
		{"unknown status", ProfessionalScope(s.professional), Filter{Statuses: []models.Status{"ARCHIVED"}}},
	}
	for _, tc := range cases {
		_, err := s.svc.List(s.ctx, tc.scope, tc.f)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), tc.name)
	}
}
