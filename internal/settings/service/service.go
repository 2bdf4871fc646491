package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"intromarket/internal/settings/cache"
	"intromarket/internal/settings/models"
	dErrors "intromarket/pkg/domain-errors"
	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/sentinel"
	"intromarket/pkg/requestcontext"
)

// Store is the persistence port for settings rows.
type Store interface {
	List(ctx context.Context) ([]models.Setting, error)
	Update(ctx context.Context, key models.Key, value string, expectedVersion int, by string, at time.Time) (models.Setting, error)
}

// Cache holds the folded snapshot. Failures degrade to store reads.
// Invalidate advances the generation; SetIfGeneration refuses snapshots
// loaded under an older one.
type Cache interface {
	Get(ctx context.Context) (models.Settings, error)
	Generation(ctx context.Context) (int64, error)
	SetIfGeneration(ctx context.Context, s models.Settings, gen int64) (bool, error)
	Invalidate(ctx context.Context) error
}

type Service struct {
	store  Store
	cache  Cache
	audit  *audit.Emitter
	logger *slog.Logger
}

type Option func(*Service)

func WithCache(c Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

func WithAuditEmitter(e *audit.Emitter) Option {
	return func(s *Service) {
		s.audit = e
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the settings in force now. Callers read it per decision
// and never hold on to the snapshot.
func (s *Service) Current(ctx context.Context) (models.Settings, error) {
	cacheable := false
	var gen int64
	if s.cache != nil {
		cached, err := s.cache.Get(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.WarnContext(ctx, "settings cache read failed", "error", err)
		}
		// The generation is read before the rows so an update landing in
		// between makes the write-back below a no-op.
		if gen, err = s.cache.Generation(ctx); err == nil {
			cacheable = true
		} else {
			s.logger.WarnContext(ctx, "settings generation read failed", "error", err)
		}
	}

	rows, err := s.store.List(ctx)
	if err != nil {
		return models.Settings{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load settings")
	}
	current := models.FromRows(rows)

	if cacheable {
		written, err := s.cache.SetIfGeneration(ctx, current, gen)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "settings cache write failed", "error", err)
		case !written:
			s.logger.DebugContext(ctx, "settings cache write skipped after concurrent update")
		}
	}
	return current, nil
}

func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	rows, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list settings")
	}
	return rows, nil
}

// Update validates and writes one setting, then drops the cached snapshot.
func (s *Service) Update(ctx context.Context, rawKey, value string, expectedVersion int, updatedBy string) (models.Setting, error) {
	key, err := models.ParseKey(rawKey)
	if err != nil {
		return models.Setting{}, err
	}
	if _, err := models.ValidateValue(key, value); err != nil {
		return models.Setting{}, err
	}
	if expectedVersion <= 0 {
		return models.Setting{}, dErrors.New(dErrors.CodeInvalidInput, "version is required")
	}

	row, err := s.store.Update(ctx, key, value, expectedVersion, updatedBy, requestcontext.Now(ctx))
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return models.Setting{}, dErrors.New(dErrors.CodeNotFound, "setting not found")
		case errors.Is(err, sentinel.ErrConflict):
			return models.Setting{}, dErrors.New(dErrors.CodeConflict, "setting was modified concurrently; reload and retry")
		default:
			return models.Setting{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update setting")
		}
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.ErrorContext(ctx, "settings cache invalidation failed", "key", string(key), "error", err)
		}
	}

	s.logger.InfoContext(ctx, "setting updated",
		"request_id", requestcontext.RequestID(ctx),
		"key", string(key),
		"value", value,
		"version", row.Version,
	)
	s.audit.EmitBestEffort(ctx, audit.EventSettingsUpdated, audit.Event{
		ActorID:  updatedBy,
		Subject:  string(key),
		Decision: value,
	})
	return row, nil
}
