package repository

import (
	"context"
	"testing"

	"safedrop-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	runStoreSuite(t, NewInMemoryStore())
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)

	got, err := store.GetFileByID(ctx, file.ID)
	require.NoError(t, err)
	got.SetShareToken("mutated")
	got.StorageName = "changed"

	again, err := store.GetFileByID(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, again.IsShared)
	assert.Equal(t, file.StorageName, again.StorageName)

	_, err = store.GetFileByShareToken(ctx, "mutated")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_RejectsCreatingSharedDuplicateToken(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	owner := newTestUser(t, store)

	token := "tok"
	first := &models.File{ID: uuid.New(), OwnerID: owner.ID, StorageName: "a", IsShared: true, ShareToken: &token}
	second := &models.File{ID: uuid.New(), OwnerID: owner.ID, StorageName: "b", IsShared: true, ShareToken: &token}

	require.NoError(t, store.CreateFile(ctx, first))
	require.ErrorIs(t, store.CreateFile(ctx, second), ErrConflict)
}
