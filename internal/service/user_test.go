package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"safedrop-backend/internal/auth"
	"safedrop-backend/internal/blobstore"
	"safedrop-backend/internal/models"
	"safedrop-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(t *testing.T, allowRegistration bool) (*UserService, *repository.InMemoryStore, *auth.TokenService) {
	t.Helper()
	store := repository.NewInMemoryStore()
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewUserService(store, blobs, tokens, discardLogger(), allowRegistration), store, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, tokens := newUserService(t, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, " alice ", "Alice@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	for _, login := range []string{"alice", "alice@example.com", "ALICE@example.com"} {
		token, err := svc.Login(ctx, login, "correct-horse")
		require.NoError(t, err, login)

		parsed, err := tokens.ValidateToken(token)
		require.NoError(t, err)
		id, err := tokens.GetUserIDFromToken(parsed)
		require.NoError(t, err)
		assert.Equal(t, user.ID, id)
	}

	_, err = svc.Login(ctx, "alice", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _ := newUserService(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "a@example.com", "password1")
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(ctx, "bob", "b@example.com", strings.Repeat("x", MinPasswordLength-1))
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Register(ctx, "bob", "b@example.com", "password1")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "bob", "other@example.com", "password1")
	require.ErrorIs(t, err, ErrUserExists)
	_, err = svc.Register(ctx, "robert", "B@example.com", "password1")
	require.ErrorIs(t, err, ErrUserExists)
}

func TestRegister_Closed(t *testing.T) {
	svc, _, _ := newUserService(t, false)
	ctx := context.Background()

	_, err := svc.Register(ctx, "carol", "c@example.com", "password1")
	require.ErrorIs(t, err, ErrRegistrationClosed)

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "password1")
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
}

func TestDeleteUser(t *testing.T) {
	svc, store, _ := newUserService(t, true)
	ctx := context.Background()

	admin, err := svc.CreateAdmin(ctx, "root", "root@example.com", "password1")
	require.NoError(t, err)
	victim, err := svc.Register(ctx, "dave", "d@example.com", "password1")
	require.NoError(t, err)

	name, err := svc.blobs.Put(ctx, "notes.txt", []byte("envelope"))
	require.NoError(t, err)
	require.NoError(t, store.CreateFile(ctx, &models.File{
		ID:          uuid.New(),
		OwnerID:     victim.ID,
		StorageName: name,
		CreatedAt:   time.Now(),
	}))

	_, err = svc.DeleteUser(ctx, admin.ID, admin.ID)
	require.ErrorIs(t, err, ErrSelfDelete)

	deleted, err := svc.DeleteUser(ctx, admin.ID, victim.ID)
	require.NoError(t, err)
	assert.Equal(t, "dave", deleted.Username)

	_, err = svc.blobs.Get(ctx, name)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	_, err = svc.GetUserByID(ctx, victim.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
	_, err = svc.DeleteUser(ctx, admin.ID, victim.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	users, err := svc.GetAllUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "root", users[0].Username)
}
