// Package relay drains unpublished audit rows to Kafka.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"intromarket/pkg/platform/audit/store/postgres"
)

const (
	defaultBatchSize = 100
	defaultInterval  = 2 * time.Second
)

// Outbox is the claim/mark side of the audit store.
type Outbox interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// TxRunner scopes one claim-publish-mark cycle.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Message is one keyed record handed to the broker.
type Message struct {
	Key   string
	Value []byte
}

// Publisher delivers messages synchronously.
type Publisher interface {
	Publish(ctx context.Context, msgs []Message) error
}

// payload is the JSON document published per audit event.
type payload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type Relay struct {
	outbox    Outbox
	tx        TxRunner
	publisher Publisher
	logger    *slog.Logger
	batchSize int
	interval  time.Duration
}

type Option func(*Relay)

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func New(outbox Outbox, tx TxRunner, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		tx:        tx,
		publisher: publisher,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled. Publish failures are logged and retried
// on the next tick; rows stay unpublished until the broker acknowledges them.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Drain(ctx); err != nil {
				r.logger.ErrorContext(ctx, "audit relay cycle failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch and returns how many rows were marked.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := r.outbox.ClaimUnpublished(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		msgs := make([]Message, 0, len(entries))
		ids := make([]uuid.UUID, 0, len(entries))
		for _, entry := range entries {
			value, err := json.Marshal(payload{
				ID:        entry.ID.String(),
				Category:  string(entry.Event.Category),
				Timestamp: entry.Event.Timestamp.UTC().Format(time.RFC3339Nano),
				ActorID:   entry.Event.ActorID,
				Subject:   entry.Event.Subject,
				Action:    entry.Event.Action,
				Decision:  entry.Event.Decision,
				Reason:    entry.Event.Reason,
				RequestID: entry.Event.RequestID,
			})
			if err != nil {
				return fmt.Errorf("marshal audit payload: %w", err)
			}
			msgs = append(msgs, Message{Key: entry.Event.Subject, Value: value})
			ids = append(ids, entry.ID)
		}

		if err := r.publisher.Publish(txCtx, msgs); err != nil {
			return fmt.Errorf("publish audit batch: %w", err)
		}
		if err := r.outbox.MarkPublished(txCtx, ids); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.logger.DebugContext(ctx, "audit batch relayed", "count", published)
	}
	return published, nil
}
