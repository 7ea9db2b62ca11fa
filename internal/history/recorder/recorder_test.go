package recorder

//go:generate mockgen -source=recorder.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"rostertrail/internal/history"
	"rostertrail/internal/history/publisher"
	"rostertrail/internal/history/recorder/mocks"
	"rostertrail/internal/history/store"
	"rostertrail/internal/history/store/memory"
	"rostertrail/internal/snapshot"
	id "rostertrail/pkg/domain"
	dErrors "rostertrail/pkg/domain-errors"
	"rostertrail/pkg/requestcontext"
)

func testActor() id.ActorID { return id.ActorID(uuid.New()) }

func TestRecord_UpdateWritesEntryWithDiff(t *testing.T) {
	auditStore := memory.NewAuditStore()
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)
	actor := testActor()

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", "Firefox 128.0 (Linux)")
	written, err := svc.Record(ctx, RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     actor,
		OldSnapshot: snapshot.FieldMapOf("display_name", "Ann"),
		NewSnapshot: snapshot.FieldMapOf("display_name", "Anne"),
	})
	require.NoError(t, err)
	assert.True(t, written)

	entries, total, err := auditStore.List(context.Background(), store.AuditFilter{ActorID: actor, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	entry := entries[0]
	assert.Equal(t, []string{"display_name"}, entry.ChangedFields)
	assert.Equal(t, "203.0.113.7", entry.NetworkOrigin)
	assert.Equal(t, "Firefox 128.0 (Linux)", entry.ClientAgent)
	assert.False(t, entry.CreatedAt.IsZero())
}

func TestRecord_NoOpUpdateWritesNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auditStore := mocks.NewMockAuditStore(ctrl)
	// No Append expectation: any call fails the test.
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)

	snap := snapshot.FieldMapOf("email", "a@test.com")
	same := snapshot.FieldMapOf("email", "a@test.com")

	written, err := svc.Record(context.Background(), RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     testActor(),
		OldSnapshot: snap,
		NewSnapshot: same,
	})
	require.NoError(t, err)
	assert.False(t, written)
}

func TestRecord_CreateAlwaysWrites(t *testing.T) {
	auditStore := memory.NewAuditStore()
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)
	actor := testActor()

	written, err := svc.Record(context.Background(), RecordRequest{
		Action:      history.ActionCreate,
		EntityType:  history.EntityCoachProfile,
		EntityID:    "coach-9",
		ActorID:     actor,
		NewSnapshot: snapshot.FieldMapOf("first_name", "Jane", "license", "B"),
	})
	require.NoError(t, err)
	assert.True(t, written)

	entries, _, err := auditStore.List(context.Background(), store.AuditFilter{ActorID: actor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, history.ActionCreate, entries[0].Action)
	assert.Nil(t, entries[0].OldSnapshot)
	assert.Equal(t, []string{"first_name", "license"}, entries[0].ChangedFields)
}

func TestRecord_DeleteAlwaysWrites(t *testing.T) {
	auditStore := memory.NewAuditStore()
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)
	actor := testActor()

	written, err := svc.Record(context.Background(), RecordRequest{
		Action:      history.ActionDelete,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     actor,
		OldSnapshot: snapshot.FieldMapOf("display_name", "Ann"),
	})
	require.NoError(t, err)
	assert.True(t, written)

	entries, _, err := auditStore.List(context.Background(), store.AuditFilter{ActorID: actor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].NewSnapshot)
}

func TestRecord_StoreFailureIsNonFatalToCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auditStore := mocks.NewMockAuditStore(ctrl)
	auditStore.EXPECT().Append(gomock.Any(), gomock.Any()).Return(errors.New("store down"))

	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)

	written, err := svc.Record(context.Background(), RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     testActor(),
		OldSnapshot: snapshot.FieldMapOf("display_name", "Ann"),
		NewSnapshot: snapshot.FieldMapOf("display_name", "Anne"),
	})
	// The error is reported for callers that care, but it is an ignorable
	// availability signal, not a failure of the primary mutation.
	assert.False(t, written)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func TestRecord_ValidatesBeforeIO(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	auditStore := mocks.NewMockAuditStore(ctrl)
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)

	base := RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     testActor(),
		OldSnapshot: snapshot.FieldMapOf("a", 1),
		NewSnapshot: snapshot.FieldMapOf("a", 2),
	}

	t.Run("unknown action", func(t *testing.T) {
		req := base
		req.Action = "UPSERT"
		_, err := svc.Record(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("unknown entity type", func(t *testing.T) {
		req := base
		req.EntityType = "competition"
		_, err := svc.Record(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("nil actor", func(t *testing.T) {
		req := base
		req.ActorID = id.ActorID{}
		_, err := svc.Record(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("missing entity id", func(t *testing.T) {
		req := base
		req.EntityID = ""
		_, err := svc.Record(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("create without new snapshot", func(t *testing.T) {
		req := base
		req.Action = history.ActionCreate
		req.NewSnapshot = nil
		_, err := svc.Record(context.Background(), req)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestRecord_NonAuditableChurnIsSuppressed(t *testing.T) {
	auditStore := memory.NewAuditStore()
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, nil)
	actor := testActor()

	// Only bookkeeping fields moved; the save must not be recorded.
	written, err := svc.Record(context.Background(), RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     actor,
		OldSnapshot: snapshot.FieldMapOf("updated_at", "2026-01-01T00:00:00Z", "display_name", "Ann"),
		NewSnapshot: snapshot.FieldMapOf("updated_at", "2026-02-01T00:00:00Z", "display_name", "Ann"),
	})
	require.NoError(t, err)
	assert.False(t, written)
}

func TestRecord_EmitsEventAfterSuccessfulWrite(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	emitter := mocks.NewMockEmitter(ctrl)
	var emitted publisher.Event
	emitter.EXPECT().Emit(gomock.Any()).Do(func(e publisher.Event) { emitted = e })

	auditStore := memory.NewAuditStore()
	svc := New(auditStore, history.DefaultPolicy(), nil, nil, emitter)
	actor := testActor()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), at)
	_, err := svc.Record(ctx, RecordRequest{
		Action:      history.ActionUpdate,
		EntityType:  history.EntityProfile,
		EntityID:    "profile-1",
		ActorID:     actor,
		OldSnapshot: snapshot.FieldMapOf("display_name", "Ann"),
		NewSnapshot: snapshot.FieldMapOf("display_name", "Anne"),
	})
	require.NoError(t, err)

	assert.Equal(t, "audit", emitted.Kind)
	assert.Equal(t, actor.String(), emitted.ActorID)
	assert.Equal(t, []string{"display_name"}, emitted.ChangedFields)
	assert.Equal(t, at, emitted.CreatedAt)
}
