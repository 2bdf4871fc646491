package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	accountstore "intromarket/internal/accounts/store"
	"intromarket/internal/introduction/query"
	introservice "intromarket/internal/introduction/service"
	introstore "intromarket/internal/introduction/store"
	"intromarket/internal/platform/config"
	"intromarket/internal/platform/database"
	platformredis "intromarket/internal/platform/redis"
	settingsservice "intromarket/internal/settings/service"
	settingsstore "intromarket/internal/settings/store"
	"intromarket/internal/verification"
	audit "intromarket/pkg/platform/audit"
	auditmemory "intromarket/pkg/platform/audit/store/memory"
	auditpostgres "intromarket/pkg/platform/audit/store/postgres"
	"intromarket/pkg/platform/audit/relay"
	"intromarket/pkg/platform/tx"
)

type accountStore interface {
	introservice.Accounts
	verification.AccountStore
}

// backend groups the storage the services run on: Postgres when a database
// URL is configured, in-memory stores otherwise.
type backend struct {
	kind     string
	db       *sql.DB
	redis    *platformredis.Client
	accounts accountStore
	requests introservice.Store
	reader   query.Reader
	settings settingsservice.Store
	audit    audit.Store
	outbox   relay.Outbox
	tx       introservice.TxRunner
}

func openBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; running on in-memory stores")
		accounts := accountstore.NewInMemory()
		requests := introstore.NewInMemory()
		return &backend{
			kind:     "memory",
			redis:    redisClient,
			accounts: accounts,
			requests: requests,
			reader:   query.NewMemoryReader(requests, accounts),
			settings: settingsstore.NewInMemory(),
			audit:    auditmemory.NewInMemoryStore(),
			tx:       tx.NewMemoryRunner(),
		}, nil
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			if redisClient != nil {
				_ = redisClient.Close()
			}
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	auditStore := auditpostgres.New(db)
	return &backend{
		kind:     "postgres",
		db:       db,
		redis:    redisClient,
		accounts: accountstore.NewPostgres(db),
		requests: introstore.NewPostgres(db),
		reader:   query.NewPostgresReader(sqlx.NewDb(db, "pgx")),
		settings: settingsstore.NewPostgres(db),
		audit:    auditStore,
		outbox:   auditStore,
		tx:       tx.NewRunner(db, cfg.Database.TxTimeout),
	}, nil
}

// Health reports the first unreachable dependency.
func (b *backend) Health(ctx context.Context) error {
	if b.db != nil {
		if err := b.db.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (b *backend) Close() error {
	var errs []error
	if b.redis != nil {
		errs = append(errs, b.redis.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	return errors.Join(errs...)
}
