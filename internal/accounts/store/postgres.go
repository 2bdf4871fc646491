package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"intromarket/internal/accounts/models"
	"intromarket/internal/platform/database"
	id "intromarket/pkg/domain"
	"intromarket/pkg/platform/sentinel"
	txcontext "intromarket/pkg/platform/tx"
)

// Postgres is the SQL account store. Every method runs on the transaction
// carried in ctx when there is one.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const professionalColumns = `id, linkedin_url, verification_status, verification_date,
	verified_by, verification_notes, deleted_at, created_at`

const companyColumns = `id, name, industry, location, website, verification_status,
	verification_notes, verified_at, verified_by, introduction_credits, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfessional(row rowScanner) (*models.Professional, error) {
	var (
		p          models.Professional
		rawID      uuid.UUID
		linkedin   sql.NullString
		status     string
		verifiedAt sql.NullTime
		verifiedBy sql.NullString
		notes      sql.NullString
		deletedAt  sql.NullTime
	)
	if err := row.Scan(&rawID, &linkedin, &status, &verifiedAt, &verifiedBy, &notes, &deletedAt, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan professional: %w", err)
	}
	p.ID = id.ProfessionalID(rawID)
	p.LinkedInURL = linkedin.String
	p.VerificationStatus = models.ProfessionalStatus(status)
	p.VerificationDate = nullTime(verifiedAt)
	p.VerifiedBy = verifiedBy.String
	p.VerificationNotes = notes.String
	p.DeletedAt = nullTime(deletedAt)
	return &p, nil
}

func scanCompany(row rowScanner) (*models.Company, error) {
	var (
		c          models.Company
		rawID      uuid.UUID
		status     string
		notes      sql.NullString
		verifiedAt sql.NullTime
		verifiedBy sql.NullString
	)
	if err := row.Scan(&rawID, &c.Name, &c.Industry, &c.Location, &c.Website, &status,
		&notes, &verifiedAt, &verifiedBy, &c.IntroductionCredits, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	c.ID = id.CompanyID(rawID)
	c.VerificationStatus = models.CompanyStatus(status)
	c.VerificationNotes = notes.String
	c.VerifiedAt = nullTime(verifiedAt)
	c.VerifiedBy = verifiedBy.String
	return &c, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Postgres) CreateProfessional(ctx context.Context, p *models.Professional) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO professionals (id, linkedin_url, verification_status, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.UUID(p.ID), nullString(p.LinkedInURL), string(p.VerificationStatus), p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("professional %s: %w", p.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert professional: %w", err)
	}
	return nil
}

func (s *Postgres) CreateCompany(ctx context.Context, c *models.Company) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO companies (id, name, industry, location, website, verification_status,
			introduction_credits, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, uuid.UUID(c.ID), c.Name, c.Industry, c.Location, c.Website,
		string(c.VerificationStatus), c.IntroductionCredits, c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("company %s: %w", c.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *Postgres) CreateHRPartner(ctx context.Context, p *models.HRPartner) error {
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO hr_partners (id, company_id, role_in_platform, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.UUID(p.ID), uuid.UUID(p.CompanyID), string(p.Role), p.Email, p.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("hr partner %s: %w", p.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert hr partner: %w", err)
	}
	return nil
}

func (s *Postgres) FindProfessional(ctx context.Context, pid id.ProfessionalID) (*models.Professional, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE id = $1`, uuid.UUID(pid))
	return scanProfessional(row)
}

// LockProfessional takes a row lock on a live professional for the rest of
// the caller's transaction. Concurrent sends to the same recipient queue here.
func (s *Postgres) LockProfessional(ctx context.Context, pid id.ProfessionalID) (*models.Professional, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+professionalColumns+` FROM professionals WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`,
		uuid.UUID(pid))
	return scanProfessional(row)
}

func (s *Postgres) FindCompany(ctx context.Context, cid id.CompanyID) (*models.Company, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE id = $1`, uuid.UUID(cid))
	return scanCompany(row)
}

func (s *Postgres) FindHRPartner(ctx context.Context, hid id.HRPartnerID) (*models.HRPartner, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, company_id, role_in_platform, email, created_at
		FROM hr_partners WHERE id = $1
	`, uuid.UUID(hid))
	return scanPartner(row)
}

func (s *Postgres) FindCompanyAdmin(ctx context.Context, cid id.CompanyID) (*models.HRPartner, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, company_id, role_in_platform, email, created_at
		FROM hr_partners WHERE company_id = $1 AND role_in_platform = 'ADMIN'
	`, uuid.UUID(cid))
	return scanPartner(row)
}

func scanPartner(row rowScanner) (*models.HRPartner, error) {
	var (
		p         models.HRPartner
		rawID     uuid.UUID
		companyID uuid.UUID
		role      string
	)
	if err := row.Scan(&rawID, &companyID, &role, &p.Email, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan hr partner: %w", err)
	}
	p.ID = id.HRPartnerID(rawID)
	p.CompanyID = id.CompanyID(companyID)
	p.Role = models.PartnerRole(role)
	return &p, nil
}

// UpgradeProfessional is a conditional write: it only matches rows whose
// status ranks below the target, so verification never downgrades.
func (s *Postgres) UpgradeProfessional(ctx context.Context, pid id.ProfessionalID, v models.ProfessionalVerification) (bool, error) {
	var lower []string
	for _, st := range []models.ProfessionalStatus{
		models.ProfessionalUnverified, models.ProfessionalBasic, models.ProfessionalFull,
	} {
		if st.Rank() < v.Status.Rank() {
			lower = append(lower, string(st))
		}
	}
	if len(lower) == 0 {
		return false, nil
	}

	exec := txcontext.Executor(ctx, s.db)
	res, err := exec.ExecContext(ctx, `
		UPDATE professionals
		SET verification_status = $2, verification_date = $3, verified_by = $4, verification_notes = $5
		WHERE id = $1 AND deleted_at IS NULL AND verification_status = ANY($6)
	`, uuid.UUID(pid), string(v.Status), v.VerifiedAt, v.VerifiedBy, nullString(v.Notes), pq.Array(lower))
	if err != nil {
		return false, fmt.Errorf("upgrade professional: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upgrade professional rows: %w", err)
	}
	if n == 0 {
		if _, err := s.LiveProfessional(ctx, pid); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// LiveProfessional returns the professional unless missing or deleted.
func (s *Postgres) LiveProfessional(ctx context.Context, pid id.ProfessionalID) (*models.Professional, error) {
	p, err := s.FindProfessional(ctx, pid)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted() {
		return nil, sentinel.ErrNotFound
	}
	return p, nil
}

// RecordProfessionalReview only matches UNVERIFIED rows, so the record of a
// past successful verification is never replaced by a review note.
func (s *Postgres) RecordProfessionalReview(ctx context.Context, pid id.ProfessionalID, r models.ProfessionalReview) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE professionals
		SET verification_notes = $2, verification_date = $3, verified_by = $4
		WHERE id = $1 AND deleted_at IS NULL AND verification_status = $5
	`, uuid.UUID(pid), nullString(r.Notes), r.ReviewedAt, r.ReviewedBy, string(models.ProfessionalUnverified))
	if err != nil {
		return false, fmt.Errorf("record professional review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record professional review rows: %w", err)
	}
	if n == 0 {
		if _, err := s.LiveProfessional(ctx, pid); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// ApplyCompanyVerification never touches PREMIUM companies.
func (s *Postgres) ApplyCompanyVerification(ctx context.Context, cid id.CompanyID, v models.CompanyVerification) (bool, error) {
	exec := txcontext.Executor(ctx, s.db)
	var (
		res sql.Result
		err error
	)
	if v.Status != nil {
		res, err = exec.ExecContext(ctx, `
			UPDATE companies
			SET verification_status = $2, verified_at = $3, verified_by = $4,
				verification_notes = $5, updated_at = NOW()
			WHERE id = $1 AND verification_status <> 'PREMIUM'
		`, uuid.UUID(cid), string(*v.Status), v.VerifiedAt, v.VerifiedBy, nullString(v.Notes))
	} else {
		res, err = exec.ExecContext(ctx, `
			UPDATE companies SET verification_notes = $2, updated_at = NOW()
			WHERE id = $1 AND verification_status <> 'PREMIUM'
		`, uuid.UUID(cid), nullString(v.Notes))
	}
	if err != nil {
		return false, fmt.Errorf("apply company verification: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply company verification rows: %w", err)
	}
	if n == 0 {
		if _, err := s.FindCompany(ctx, cid); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// DebitCredit decrements credits only while they are positive. Zero rows
// affected means the company ran out, possibly to a concurrent send.
func (s *Postgres) DebitCredit(ctx context.Context, cid id.CompanyID) (bool, error) {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE companies
		SET introduction_credits = introduction_credits - 1, updated_at = NOW()
		WHERE id = $1 AND introduction_credits > 0
	`, uuid.UUID(cid))
	if err != nil {
		return false, fmt.Errorf("debit credit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit credit rows: %w", err)
	}
	return n == 1, nil
}

func (s *Postgres) SoftDeleteProfessional(ctx context.Context, pid id.ProfessionalID, at time.Time) error {
	res, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, `
		UPDATE professionals SET deleted_at = COALESCE(deleted_at, $2) WHERE id = $1
	`, uuid.UUID(pid), at)
	if err != nil {
		return fmt.Errorf("soft delete professional: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
