// Package worker runs expiry reconciliation on a ticker for deployments
// without an external scheduler.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"intromarket/pkg/requestcontext"
)

const defaultInterval = time.Minute

type Reconciler interface {
	ReconcileExpired(ctx context.Context, batchSize int) (int, error)
}

type Worker struct {
	reconciler Reconciler
	interval   time.Duration
	batchSize  int
	logger     *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		w.batchSize = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func New(reconciler Reconciler, opts ...Option) *Worker {
	w := &Worker{
		reconciler: reconciler,
		interval:   defaultInterval,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run reconciles once immediately and then on every tick until ctx is
// cancelled. Failures are logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one reconcile pass with a fresh request id and time.
func (w *Worker) RunOnce(ctx context.Context) int {
	ctx = requestcontext.WithRequestID(ctx, "reconcile-"+uuid.NewString())
	ctx = requestcontext.WithTime(ctx, time.Now().UTC())
	n, err := w.reconciler.ReconcileExpired(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "reconcile pass failed",
				"request_id", requestcontext.RequestID(ctx),
				"expired", n,
				"error", err,
			)
		}
		return n
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "reconcile pass completed",
			"request_id", requestcontext.RequestID(ctx),
			"expired", n,
		)
	}
	return n
}
