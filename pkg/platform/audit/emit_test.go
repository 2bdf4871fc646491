package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "intromarket/pkg/domain"
	audit "intromarket/pkg/platform/audit"
	"intromarket/pkg/platform/audit/store/memory"
	"intromarket/pkg/requestcontext"
)

func TestEmitterStampsRequestMetadata(t *testing.T) {
	store := memory.NewInMemoryStore()
	emitter := audit.NewEmitter(store, nil)

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	actor := id.UserID(uuid.New())
	ctx := requestcontext.WithTime(context.Background(), now)
	ctx = requestcontext.WithRequestID(ctx, "req-1")
	ctx = requestcontext.WithActor(ctx, actor, requestcontext.RoleHRPartner)

	require.NoError(t, emitter.Emit(ctx, audit.EventIntroductionSent, audit.Event{Subject: "r1"}))

	events, err := store.ListBySubject(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "introduction_sent", events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, now, events[0].Timestamp)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.Equal(t, actor.String(), events[0].ActorID)
}

func TestEmitterNilIsNoop(t *testing.T) {
	var emitter *audit.Emitter
	assert.NoError(t, emitter.Emit(context.Background(), audit.EventSettingsUpdated, audit.Event{}))
}
