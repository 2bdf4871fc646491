package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"intromarket/internal/introduction/models"
	id "intromarket/pkg/domain"
)

var orderBy = map[Sort]string{
	SortNewest:       `r.sent_at DESC, r.id`,
	SortOldest:       `r.sent_at ASC, r.id`,
	SortMatchScore:   `r.match_score DESC NULLS LAST, r.sent_at DESC, r.id`,
	SortExpiringSoon: `r.expires_at ASC, r.id`,
}

// PostgresReader runs list and count queries with sqlx struct scanning.
type PostgresReader struct {
	db *sqlx.DB
}

func NewPostgresReader(db *sqlx.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

type itemRow struct {
	ID                   uuid.UUID  `db:"id"`
	CompanyID            uuid.UUID  `db:"company_id"`
	ProfessionalID       uuid.UUID  `db:"professional_id"`
	SentByID             uuid.UUID  `db:"sent_by_id"`
	Status               string     `db:"status"`
	EffectiveStatus      string     `db:"effective_status"`
	RoleTitle            string     `db:"role_title"`
	Message              string     `db:"message"`
	MatchScore           *float64   `db:"match_score"`
	SentAt               time.Time  `db:"sent_at"`
	ExpiresAt            time.Time  `db:"expires_at"`
	ViewedByProfessional bool       `db:"viewed_by_professional"`
	ViewedAt             *time.Time `db:"viewed_at"`
	RespondedAt          *time.Time `db:"responded_at"`
	ResponseMessage      *string    `db:"response_message"`
	CompanyName          string     `db:"company_name"`
	CompanyIndustry      string     `db:"company_industry"`
	CompanyLocation      string     `db:"company_location"`
}

func (r itemRow) toItem() Item {
	it := Item{
		Request: models.Request{
			ID:                   id.IntroductionID(r.ID),
			CompanyID:            id.CompanyID(r.CompanyID),
			ProfessionalID:       id.ProfessionalID(r.ProfessionalID),
			SentByID:             id.HRPartnerID(r.SentByID),
			Status:               models.Status(r.Status),
			RoleTitle:            r.RoleTitle,
			Message:              r.Message,
			MatchScore:           r.MatchScore,
			SentAt:               r.SentAt,
			ExpiresAt:            r.ExpiresAt,
			ViewedByProfessional: r.ViewedByProfessional,
			ViewedAt:             r.ViewedAt,
			RespondedAt:          r.RespondedAt,
		},
		EffectiveStatus: models.Status(r.EffectiveStatus),
		CompanyName:     r.CompanyName,
		CompanyIndustry: r.CompanyIndustry,
		CompanyLocation: r.CompanyLocation,
	}
	if r.ResponseMessage != nil {
		it.ResponseMessage = *r.ResponseMessage
	}
	return it
}

// builder collects positional arguments. now is bound on first use of
// the effective status expression, so queries never carry unused params.
type builder struct {
	args   []any
	now    time.Time
	nowRef string
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

// effectiveStatus is the SQL form of models.EffectiveStatus.
func (b *builder) effectiveStatus() string {
	if b.nowRef == "" {
		b.nowRef = b.arg(b.now)
	}
	return "CASE WHEN r.status = 'PENDING' AND r.expires_at <= " + b.nowRef + " THEN 'EXPIRED' ELSE r.status END"
}

func (b *builder) where(scope Scope, f Filter) string {
	var clauses []string
	if !scope.ProfessionalID.IsNil() {
		clauses = append(clauses, "r.professional_id = "+b.arg(uuid.UUID(scope.ProfessionalID)))
	} else {
		clauses = append(clauses, "r.company_id = "+b.arg(uuid.UUID(scope.CompanyID)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		clauses = append(clauses, "("+b.effectiveStatus()+") = ANY("+b.arg(pq.Array(statuses))+")")
	}
	if f.Search != "" {
		p := b.arg("%" + escapeLike(f.Search) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(r.role_title ILIKE %[1]s OR c.name ILIKE %[1]s OR c.industry ILIKE %[1]s OR c.location ILIKE %[1]s)", p))
	}
	return strings.Join(clauses, " AND ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (p *PostgresReader) List(ctx context.Context, scope Scope, f Filter, now time.Time) ([]Item, int, error) {
	counter := &builder{now: now}
	pred := counter.where(scope, f)
	var total int
	if err := p.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM introduction_requests r
		JOIN companies c ON c.id = r.company_id
		WHERE `+pred, counter.args...); err != nil {
		return nil, 0, fmt.Errorf("count introductions: %w", err)
	}

	order, ok := orderBy[f.Sort]
	if !ok {
		order = orderBy[SortNewest]
	}
	b := &builder{now: now}
	status := b.effectiveStatus()
	pred = b.where(scope, f)
	limit := b.arg(f.PageSize)
	offset := b.arg(f.offset())
	q := `
		SELECT r.id, r.company_id, r.professional_id, r.sent_by_id, r.status,
			` + status + ` AS effective_status,
			r.role_title, r.message, r.match_score, r.sent_at, r.expires_at,
			r.viewed_by_professional, r.viewed_at, r.responded_at, r.response_message,
			c.name AS company_name, c.industry AS company_industry, c.location AS company_location
		FROM introduction_requests r
		JOIN companies c ON c.id = r.company_id
		WHERE ` + pred + `
		ORDER BY ` + order + `
		LIMIT ` + limit + ` OFFSET ` + offset

	var rows []itemRow
	if err := p.db.SelectContext(ctx, &rows, q, b.args...); err != nil {
		return nil, 0, fmt.Errorf("list introductions: %w", err)
	}
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toItem())
	}
	return items, total, nil
}

func (p *PostgresReader) Counts(ctx context.Context, scope Scope, now time.Time) (map[models.Status]int, error) {
	b := &builder{now: now}
	status := b.effectiveStatus()
	pred := b.where(scope, Filter{})
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	if err := p.db.SelectContext(ctx, &rows, `
		SELECT `+status+` AS status, COUNT(*) AS n
		FROM introduction_requests r
		WHERE `+pred+`
		GROUP BY 1`, b.args...); err != nil {
		return nil, fmt.Errorf("count introductions by status: %w", err)
	}
	out := make(map[models.Status]int, len(rows))
	for _, r := range rows {
		out[models.Status(r.Status)] = r.N
	}
	return out, nil
}
