// Package query lists and counts introduction requests by effective status.
// It only reads; nothing here changes stored state.
package query

import (
	"context"
	"strings"
	"time"

	"intromarket/internal/introduction/models"
	id "intromarket/pkg/domain"
	dErrors "intromarket/pkg/domain-errors"
	"intromarket/pkg/requestcontext"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 10_000
	maxSearchLength = 200
)

type Sort string

const (
	SortNewest       Sort = "newest"
	SortOldest       Sort = "oldest"
	SortMatchScore   Sort = "match_score"
	SortExpiringSoon Sort = "expiring_soon"
)

func ParseSort(raw string) (Sort, error) {
	switch s := Sort(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortMatchScore, SortExpiringSoon:
		return s, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown sort: "+raw)
}

type Filter struct {
	Statuses []models.Status
	Search   string
	Sort     Sort
	Page     int
	PageSize int
}

// Normalize applies defaults and rejects out-of-range values.
func (f *Filter) Normalize() error {
	f.Search = strings.TrimSpace(f.Search)
	if len(f.Search) > maxSearchLength {
		return dErrors.New(dErrors.CodeInvalidInput, "search text is too long")
	}
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	if _, err := ParseSort(string(f.Sort)); err != nil {
		return err
	}
	for _, s := range f.Statuses {
		if !s.IsValid() {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+string(s))
		}
	}
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
	if f.Page < 1 || f.Page > MaxPage {
		return dErrors.New(dErrors.CodeInvalidInput, "page must be between 1 and 10000")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		return dErrors.New(dErrors.CodeInvalidInput, "page_size must be between 1 and 100")
	}
	return nil
}

func (f Filter) offset() int {
	return (f.Page - 1) * f.PageSize
}

// Scope restricts a query to one professional's inbox or one company's
// outbox. Exactly one side is set.
type Scope struct {
	ProfessionalID id.ProfessionalID
	CompanyID      id.CompanyID
}

func ProfessionalScope(pid id.ProfessionalID) Scope { return Scope{ProfessionalID: pid} }

func CompanyScope(cid id.CompanyID) Scope { return Scope{CompanyID: cid} }

func (s Scope) validate() error {
	if s.ProfessionalID.IsNil() == s.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "exactly one of professional or company scope is required")
	}
	return nil
}

func (s Scope) matches(r *models.Request) bool {
	if !s.ProfessionalID.IsNil() {
		return r.ProfessionalID == s.ProfessionalID
	}
	return r.CompanyID == s.CompanyID
}

type Item struct {
	models.Request
	EffectiveStatus models.Status
	CompanyName     string
	CompanyIndustry string
	CompanyLocation string
}

type Page struct {
	Items    []Item
	Total    int
	Page     int
	PageSize int
}

type Reader interface {
	List(ctx context.Context, scope Scope, f Filter, now time.Time) ([]Item, int, error)
	Counts(ctx context.Context, scope Scope, now time.Time) (map[models.Status]int, error)
}

type Service struct {
	reader Reader
}

func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

func (s *Service) List(ctx context.Context, scope Scope, f Filter) (*Page, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	if err := f.Normalize(); err != nil {
		return nil, err
	}
	items, total, err := s.reader.List(ctx, scope, f, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list introductions")
	}
	if items == nil {
		items = []Item{}
	}
	return &Page{Items: items, Total: total, Page: f.Page, PageSize: f.PageSize}, nil
}

// Counts returns the number of requests per effective status. Every status
// is present in the result, zero when there are none.
func (s *Service) Counts(ctx context.Context, scope Scope) (map[models.Status]int, error) {
	if err := scope.validate(); err != nil {
		return nil, err
	}
	raw, err := s.reader.Counts(ctx, scope, requestcontext.Now(ctx))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count introductions")
	}
	out := make(map[models.Status]int, len(models.AllStatuses))
	for _, st := range models.AllStatuses {
		out[st] = raw[st]
	}
	return out, nil
}
