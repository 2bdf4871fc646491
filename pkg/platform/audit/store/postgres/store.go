package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "intromarket/pkg/platform/audit"
	txcontext "intromarket/pkg/platform/tx"
)

// Store implements audit.Store on the audit_events table. Rows start with a
// NULL published_at and double as the outbox the relay drains to Kafka.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append inserts the event using the caller's transaction when present, so
// the audit record commits or rolls back with the state change it describes.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, actor_id, subject, action,
			decision, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		event.ActorID,
		event.Subject,
		event.Action,
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for one entity, newest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := `
		SELECT category, occurred_at, actor_id, subject, action, decision, reason, request_id
		FROM audit_events
		WHERE subject = $1
		ORDER BY occurred_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			category string
		)
		if err := rows.Scan(&category, &event.Timestamp, &event.ActorID, &event.Subject,
			&event.Action, &event.Decision, &event.Reason, &event.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Category = audit.EventCategory(category)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// OutboxEntry is an unpublished audit row claimed by the relay.
type OutboxEntry struct {
	ID    uuid.UUID
	Event audit.Event
}

// ClaimUnpublished locks up to limit unpublished rows inside the caller's
// transaction. Concurrent relays skip rows another relay holds.
func (s *Store) ClaimUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `
		SELECT id, category, occurred_at, actor_id, subject, action, decision, reason, request_id
		FROM audit_events
		WHERE published_at IS NULL
		ORDER BY occurred_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.Executor(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var (
			entry    OutboxEntry
			category string
		)
		if err := rows.Scan(&entry.ID, &category, &entry.Event.Timestamp, &entry.Event.ActorID,
			&entry.Event.Subject, &entry.Event.Action, &entry.Event.Decision,
			&entry.Event.Reason, &entry.Event.RequestID); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.Event.Category = audit.EventCategory(category)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps published_at on the given rows.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_events SET published_at = NOW() WHERE id = ANY($1::uuid[])`
	args := make([]string, len(ids))
	for i, v := range ids {
		args[i] = v.String()
	}
	if _, err := txcontext.Executor(ctx, s.db).ExecContext(ctx, query, pq.Array(args)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
