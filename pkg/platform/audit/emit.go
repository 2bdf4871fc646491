package audit

import (
	"context"
	"log/slog"

	"intromarket/pkg/requestcontext"
)

// Emitter stamps events with request metadata before appending them.
type Emitter struct {
	store  Store
	logger *slog.Logger
}

func NewEmitter(store Store, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emitter{store: store, logger: logger}
}

// Emit appends the event and returns the store error. Callers inside a
// transaction must propagate it so the state change and its audit record
// commit together.
func (e *Emitter) Emit(ctx context.Context, action AuditEvent, event Event) error {
	if e == nil || e.store == nil {
		return nil
	}
	event.Action = string(action)
	event.Category = action.Category()
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.ActorID == "" {
		if actor := requestcontext.ActorID(ctx); !actor.IsNil() {
			event.ActorID = actor.String()
		}
	}
	return e.store.Append(ctx, event)
}

// EmitBestEffort logs instead of returning append failures. Used for
// events outside a transaction whose loss must not fail the caller.
func (e *Emitter) EmitBestEffort(ctx context.Context, action AuditEvent, event Event) {
	if err := e.Emit(ctx, action, event); err != nil {
		e.logger.ErrorContext(ctx, "audit append failed",
			"action", string(action),
			"subject", event.Subject,
			"error", err,
		)
	}
}
