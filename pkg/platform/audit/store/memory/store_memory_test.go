package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "ledger/pkg/platform/audit"
	"ledger/pkg/platform/sentinel"
)

func TestHeaderLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	h := &audit.Header{Method: "PATCH", Path: "/api/v1/documents/1", UserName: "alice"}
	require.NoError(t, store.CreateHeader(ctx, h))
	assert.Equal(t, int64(1), h.ID)

	require.NoError(t, store.CompleteHeader(ctx, h.ID, audit.Outcome{StatusCode: 409, Elapsed: 12 * time.Millisecond}))
	got, err := store.Header(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, 409, got.StatusCode)
	assert.False(t, got.IsSuccess)
	assert.Equal(t, int64(12), got.ResponseTimeMs)

	headers, err := store.ListHeaders(ctx)
	require.NoError(t, err)
	assert.Len(t, headers, 1)
}

func TestCompleteMissingHeader(t *testing.T) {
	store := NewInMemoryStore()
	err := store.CompleteHeader(context.Background(), 42, audit.Outcome{StatusCode: 200})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	headers, _ := store.ListHeaders(context.Background())
	assert.Empty(t, headers, "complete must never create a header")
}

func TestAppendChanges(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	h := &audit.Header{Method: "POST"}
	require.NoError(t, store.CreateHeader(ctx, h))

	require.NoError(t, store.AppendChanges(ctx, h.ID, []audit.FieldChange{
		{EntityType: "Document", EntityID: "1", Operation: audit.OperationCreated, FieldName: "DocumentNumber"},
		{EntityType: "Document", EntityID: "1", Operation: audit.OperationCreated, FieldName: "DocumentType"},
	}))
	changes, err := store.ListChanges(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, h.ID, changes[0].HeaderID)
	assert.NotEqual(t, changes[0].ID, changes[1].ID)

	err = store.AppendChanges(ctx, 999, []audit.FieldChange{{FieldName: "X"}})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
