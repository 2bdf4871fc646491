package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"intromarket/internal/introduction/models"
	"intromarket/internal/platform/database"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
	txcontext "intromarket/pkg/platform/tx"
)

// Postgres is the SQL request store. Transitions are single conditional
// UPDATEs; callers learn the outcome from the affected row count.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, company_id, professional_id, sent_by_id, status, role_title, message,
	match_score, sent_at, expires_at, viewed_by_professional, viewed_at, responded_at, response_message`

func (s *Postgres) Insert(ctx context.Context, r *models.Request) error {
	var score sql.NullFloat64
	if r.MatchScore != nil {
		score = sql.NullFloat64{Float64: *r.MatchScore, Valid: true}
	}
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO introduction_requests (id, company_id, professional_id, sent_by_id, status,
			role_title, message, match_score, sent_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, uuid.UUID(r.ID), uuid.UUID(r.CompanyID), uuid.UUID(r.ProfessionalID), uuid.UUID(r.SentByID),
		string(r.Status), r.RoleTitle, r.Message, score, r.SentAt, r.ExpiresAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("introduction %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert introduction: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, rid id.IntroductionID) (*models.Request, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM introduction_requests WHERE id = $1`, uuid.UUID(rid))
	var (
		r            models.Request
		rawID        uuid.UUID
		companyID    uuid.UUID
		profID       uuid.UUID
		sentBy       uuid.UUID
		status       string
		score        sql.NullFloat64
		viewedAt     sql.NullTime
		respondedAt  sql.NullTime
		responseText sql.NullString
	)
	err := row.Scan(&rawID, &companyID, &profID, &sentBy, &status, &r.RoleTitle, &r.Message,
		&score, &r.SentAt, &r.ExpiresAt, &r.ViewedByProfessional, &viewedAt, &respondedAt, &responseText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan introduction: %w", err)
	}
	r.ID = id.IntroductionID(rawID)
	r.CompanyID = id.CompanyID(companyID)
	r.ProfessionalID = id.ProfessionalID(profID)
	r.SentByID = id.HRPartnerID(sentBy)
	r.Status = models.Status(status)
	if score.Valid {
		v := score.Float64
		r.MatchScore = &v
	}
	if viewedAt.Valid {
		t := viewedAt.Time
		r.ViewedAt = &t
	}
	if respondedAt.Valid {
		t := respondedAt.Time
		r.RespondedAt = &t
	}
	r.ResponseMessage = responseText.String
	return &r, nil
}

// CountPendingForProfessional counts effectively pending rows: stored
// PENDING with an expiry still in the future.
func (s *Postgres) CountPendingForProfessional(ctx context.Context, pid id.ProfessionalID, now time.Time) (int, error) {
	var n int
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT COUNT(*) FROM introduction_requests
		WHERE professional_id = $1 AND status = 'PENDING' AND expires_at > $2
	`, uuid.UUID(pid), now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending introductions: %w", err)
	}
	return n, nil
}

func (s *Postgres) HasPendingForPair(ctx context.Context, cid id.CompanyID, pid id.ProfessionalID, now time.Time) (bool, error) {
	var exists bool
	err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM introduction_requests
			WHERE company_id = $1 AND professional_id = $2 AND status = 'PENDING' AND expires_at > $3
		)
	`, uuid.UUID(cid), uuid.UUID(pid), now).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending pair: %w", err)
	}
	return exists, nil
}

func (s *Postgres) MarkViewed(ctx context.Context, rid id.IntroductionID, at time.Time) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE introduction_requests SET viewed_by_professional = TRUE, viewed_at = $2
		WHERE id = $1 AND viewed_by_professional = FALSE
	`, uuid.UUID(rid), at)
	if err != nil {
		return false, fmt.Errorf("mark introduction viewed: %w", err)
	}
	return s.affectedOrMissing(ctx, res, rid)
}

// Respond is keyed on status = 'PENDING' AND expires_at > at, so of two
// racing responders only one matches and an expired row never transitions.
func (s *Postgres) Respond(ctx context.Context, rid id.IntroductionID, to models.Status, at time.Time, message string) (bool, error) {
	var response sql.NullString
	if message != "" {
		response = sql.NullString{String: message, Valid: true}
	}
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE introduction_requests
		SET status = $2, responded_at = $3, response_message = $4
		WHERE id = $1 AND status = 'PENDING' AND expires_at > $3
	`, uuid.UUID(rid), string(to), at, response)
	if err != nil {
		return false, fmt.Errorf("respond to introduction: %w", err)
	}
	return s.affectedOrMissing(ctx, res, rid)
}

// ExpireBatch claims due rows with SKIP LOCKED so concurrent reconcilers
// and in-flight responders never block each other or double count.
func (s *Postgres) ExpireBatch(ctx context.Context, now time.Time, limit int) ([]id.IntroductionID, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		UPDATE introduction_requests SET status = 'EXPIRED'
		WHERE id IN (
			SELECT id FROM introduction_requests
			WHERE status = 'PENDING' AND expires_at <= $1
			ORDER BY expires_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		AND status = 'PENDING'
		RETURNING id
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("expire introductions: %w", err)
	}
	defer rows.Close()

	var ids []id.IntroductionID
	for rows.Next() {
		var raw uuid.UUID
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan expired id: %w", err)
		}
		ids = append(ids, id.IntroductionID(raw))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired ids: %w", err)
	}
	return ids, nil
}

func (s *Postgres) affectedOrMissing(ctx context.Context, res sql.Result, rid id.IntroductionID) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return true, nil
	}
	var exists bool
	if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM introduction_requests WHERE id = $1)`, uuid.UUID(rid)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check introduction exists: %w", err)
	}
	if !exists {
		return false, sentinel.ErrNotFound
	}
	return false, nil
}
