package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intromarket/pkg/requestcontext"
)

type countingReconciler struct {
	calls     atomic.Int32
	batchSeen atomic.Int32
	err       error
}

func (c *countingReconciler) ReconcileExpired(ctx context.Context, batchSize int) (int, error) {
	c.calls.Add(1)
	c.batchSeen.Store(int32(batchSize))
	if requestcontext.RequestID(ctx) == "" {
		return 0, errors.New("missing request id")
	}
	return 3, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunOnce(t *testing.T) {
	rec := &countingReconciler{}
	w := New(rec, WithBatchSize(250), WithLogger(quietLogger()))

	assert.Equal(t, 3, w.RunOnce(context.Background()))
	assert.EqualValues(t, 1, rec.calls.Load())
	assert.EqualValues(t, 250, rec.batchSeen.Load())
}

func TestRunOnceSurvivesErrors(t *testing.T) {
	rec := &countingReconciler{err: errors.New("db down")}
	w := New(rec, WithLogger(quietLogger()))
	assert.Equal(t, 3, w.RunOnce(context.Background()))
}

func TestRunStopsOnCancel(t *testing.T) {
	rec := &countingReconciler{}
	w := New(rec, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
