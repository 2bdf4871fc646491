package query

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	accountmodels "intromarket/internal/accounts/models"
	"intromarket/internal/introduction/models"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
)

type RequestSource interface {
	All(ctx context.Context) ([]models.Request, error)
}

type CompanyDirectory interface {
	FindCompany(ctx context.Context, cid id.CompanyID) (*accountmodels.Company, error)
}

// MemoryReader evaluates filters over an in-memory request store with the
// same ordering rules as the SQL reader.
type MemoryReader struct {
	requests  RequestSource
	companies CompanyDirectory
}

func NewMemoryReader(requests RequestSource, companies CompanyDirectory) *MemoryReader {
	return &MemoryReader{requests: requests, companies: companies}
}

func (m *MemoryReader) List(ctx context.Context, scope Scope, f Filter, now time.Time) ([]Item, int, error) {
	items, err := m.scoped(ctx, scope, now)
	if err != nil {
		return nil, 0, err
	}

	wanted := make(map[models.Status]bool, len(f.Statuses))
	for _, s := range f.Statuses {
		wanted[s] = true
	}
	needle := strings.ToLower(f.Search)

	matched := items[:0]
	for _, it := range items {
		if len(wanted) > 0 && !wanted[it.EffectiveStatus] {
			continue
		}
		if needle != "" && !containsAny(needle, it.RoleTitle, it.CompanyName, it.CompanyIndustry, it.CompanyLocation) {
			continue
		}
		matched = append(matched, it)
	}

	sort.SliceStable(matched, less(matched, f.Sort))

	total := len(matched)
	start := f.offset()
	if start >= total {
		return []Item{}, total, nil
	}
	end := min(start+f.PageSize, total)
	return matched[start:end], total, nil
}

func (m *MemoryReader) Counts(ctx context.Context, scope Scope, now time.Time) (map[models.Status]int, error) {
	items, err := m.scoped(ctx, scope, now)
	if err != nil {
		return nil, err
	}
	out := make(map[models.Status]int)
	for _, it := range items {
		out[it.EffectiveStatus]++
	}
	return out, nil
}

func (m *MemoryReader) scoped(ctx context.Context, scope Scope, now time.Time) ([]Item, error) {
	all, err := m.requests.All(ctx)
	if err != nil {
		return nil, err
	}
	companies := make(map[id.CompanyID]*accountmodels.Company)
	var out []Item
	for i := range all {
		r := all[i]
		if !scope.matches(&r) {
			continue
		}
		c, ok := companies[r.CompanyID]
		if !ok {
			c, err = m.companies.FindCompany(ctx, r.CompanyID)
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return nil, err
			}
			companies[r.CompanyID] = c
		}
		it := Item{Request: r, EffectiveStatus: r.EffectiveStatus(now)}
		if c != nil {
			it.CompanyName, it.CompanyIndustry, it.CompanyLocation = c.Name, c.Industry, c.Location
		}
		out = append(out, it)
	}
	return out, nil
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// less mirrors the ORDER BY clauses of the SQL reader, ties broken by id.
func less(items []Item, by Sort) func(i, j int) bool {
	return func(i, j int) bool {
		a, b := items[i], items[j]
		switch by {
		case SortOldest:
			if !a.SentAt.Equal(b.SentAt) {
				return a.SentAt.Before(b.SentAt)
			}
		case SortMatchScore:
			switch {
			case a.MatchScore != nil && b.MatchScore == nil:
				return true
			case a.MatchScore == nil && b.MatchScore != nil:
				return false
			case a.MatchScore != nil && *a.MatchScore != *b.MatchScore:
				return *a.MatchScore > *b.MatchScore
			}
			if !a.SentAt.Equal(b.SentAt) {
				return a.SentAt.After(b.SentAt)
			}
		case SortExpiringSoon:
			if !a.ExpiresAt.Equal(b.ExpiresAt) {
				return a.ExpiresAt.Before(b.ExpiresAt)
			}
		default:
			if !a.SentAt.Equal(b.SentAt) {
				return a.SentAt.After(b.SentAt)
			}
		}
		return a.ID.String() < b.ID.String()
	}
}
