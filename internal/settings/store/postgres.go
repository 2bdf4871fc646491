package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"intromarket/internal/settings/models"
	"intromarket/pkg/platform/sentinel"
	txcontext "intromarket/pkg/platform/tx"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) List(ctx context.Context) ([]models.Setting, error) {
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, `
		SELECT key, value, version, updated_at, COALESCE(updated_by, '')
		FROM system_settings
		ORDER BY key
	`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	var out []models.Setting
	for rows.Next() {
		var (
			r   models.Setting
			key string
		)
		if err := rows.Scan(&key, &r.Value, &r.Version, &r.UpdatedAt, &r.UpdatedBy); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		r.Key = models.Key(key)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return out, nil
}

// Update is guarded by version; a lost race surfaces as sentinel.ErrConflict.
func (s *Postgres) Update(ctx context.Context, key models.Key, value string, expectedVersion int, by string, at time.Time) (models.Setting, error) {
	row := txcontext.Executor(ctx, s.db).QueryRowContext(ctx, `
		UPDATE system_settings
		SET value = $2, version = version + 1, updated_at = $4, updated_by = $5
		WHERE key = $1 AND version = $3
		RETURNING key, value, version, updated_at, COALESCE(updated_by, '')
	`, string(key), value, expectedVersion, at, by)

	var (
		r      models.Setting
		rawKey string
	)
	err := row.Scan(&rawKey, &r.Value, &r.Version, &r.UpdatedAt, &r.UpdatedBy)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := txcontext.Executor(ctx, s.db).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM system_settings WHERE key = $1)`, string(key)).Scan(&exists); err != nil {
			return models.Setting{}, fmt.Errorf("check setting: %w", err)
		}
		if !exists {
			return models.Setting{}, sentinel.ErrNotFound
		}
		return models.Setting{}, sentinel.ErrConflict
	}
	if err != nil {
		return models.Setting{}, fmt.Errorf("update setting: %w", err)
	}
	r.Key = models.Key(rawKey)
	return r, nil
}
