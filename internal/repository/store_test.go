package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"safedrop-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract; both implementations must pass it.
func runStoreSuite(t *testing.T, store Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, store) })
	t.Run("file lifecycle", func(t *testing.T) { testFileLifecycle(t, store) })
	t.Run("share pair", func(t *testing.T) { testSharePair(t, store) })
	t.Run("share abort", func(t *testing.T) { testShareAbort(t, store) })
	t.Run("share token uniqueness", func(t *testing.T) { testShareTokenUnique(t, store) })
	t.Run("concurrent toggles", func(t *testing.T) { testConcurrentToggles(t, store) })
	t.Run("downloads and stats", func(t *testing.T) { testDownloadsAndStats(t, store) })
	t.Run("delete user cascades", func(t *testing.T) { testDeleteUserCascades(t, store) })
}

func newTestUser(t *testing.T, store Store) *models.User {
	t.Helper()
	suffix := uuid.NewString()[:8]
	user := &models.User{
		ID:           uuid.New(),
		Username:     "user_" + suffix,
		Email:        suffix + "@example.com",
		PasswordHash: "hash",
		Role:         models.RoleUser,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func newTestFile(t *testing.T, store Store, owner uuid.UUID) *models.File {
	t.Helper()
	file := &models.File{
		ID:           uuid.New(),
		OwnerID:      owner,
		OriginalName: "report.pdf",
		StorageName:  "report_20240101_120000_" + uuid.NewString() + ".pdf",
		Size:         11,
		MimeType:     "application/pdf",
		Checksum:     "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.CreateFile(context.Background(), file))
	return file
}

func actions(logs []*models.AccessLog) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}

func testUsers(t *testing.T, store Store) {
	ctx := context.Background()
	user := newTestUser(t, store)

	byName, err := store.GetUserByUsername(ctx, user.Username)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	byEmail, err := store.GetUserByEmail(ctx, user.Email)
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byID, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)
	assert.Equal(t, models.RoleUser, byID.Role)

	dup := *user
	dup.ID = uuid.New()
	dup.Email = "other-" + user.Email
	require.ErrorIs(t, store.CreateUser(ctx, &dup), ErrConflict)

	dup.Username = "other_" + user.Username
	dup.Email = user.Email
	require.ErrorIs(t, store.CreateUser(ctx, &dup), ErrConflict)

	_, err = store.GetUserByID(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	all, err := store.GetAllUsers(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, all)
}

func testFileLifecycle(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)

	got, err := store.GetFileByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, file.StorageName, got.StorageName)
	assert.Equal(t, int64(11), got.Size)
	assert.False(t, got.IsShared)
	assert.Nil(t, got.ShareToken)

	dup := *file
	dup.ID = uuid.New()
	require.ErrorIs(t, store.CreateFile(ctx, &dup), ErrConflict)

	list, err := store.GetFilesByOwner(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	logs, err := store.GetAccessLogsByFile(ctx, file.ID, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{models.ActionUpload}, actions(logs))

	require.NoError(t, store.DeleteFile(ctx, file.ID, owner.ID))
	_, err = store.GetFileByID(ctx, file.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, store.DeleteFile(ctx, file.ID, owner.ID), ErrNotFound)

	logs, err = store.GetAccessLogsByFile(ctx, file.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func testSharePair(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)
	token := "tok_" + uuid.NewString()

	shared, err := store.UpdateShare(ctx, file.ID, func(f *models.File) error {
		f.SetShareToken(token)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, shared.IsShared)
	require.NotNil(t, shared.ShareToken)
	assert.Equal(t, token, *shared.ShareToken)

	byToken, err := store.GetFileByShareToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, file.ID, byToken.ID)

	revoked, err := store.UpdateShare(ctx, file.ID, func(f *models.File) error {
		f.ClearShareToken()
		return nil
	})
	require.NoError(t, err)
	assert.False(t, revoked.IsShared)
	assert.Nil(t, revoked.ShareToken)

	_, err = store.GetFileByShareToken(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)

	logs, err := store.GetAccessLogsByFile(ctx, file.ID, 50)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{models.ActionUnshare, models.ActionShare, models.ActionUpload}, actions(logs))

	limited, err := store.GetAccessLogsByFile(ctx, file.ID, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func testShareAbort(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)

	_, err := store.UpdateShare(ctx, file.ID, func(f *models.File) error {
		f.SetShareToken("never-persisted")
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	got, err := store.GetFileByID(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, got.IsShared)
	assert.Nil(t, got.ShareToken)

	_, err = store.UpdateShare(ctx, uuid.New(), func(f *models.File) error { return nil })
	require.ErrorIs(t, err, ErrNotFound)
}

func testShareTokenUnique(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	a := newTestFile(t, store, owner.ID)
	b := newTestFile(t, store, owner.ID)
	token := "tok_" + uuid.NewString()

	_, err := store.UpdateShare(ctx, a.ID, func(f *models.File) error {
		f.SetShareToken(token)
		return nil
	})
	require.NoError(t, err)

	_, err = store.UpdateShare(ctx, b.ID, func(f *models.File) error {
		f.SetShareToken(token)
		return nil
	})
	require.ErrorIs(t, err, ErrConflict)

	got, err := store.GetFileByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.IsShared)
}

func testConcurrentToggles(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateShare(ctx, file.ID, func(f *models.File) error {
				if f.IsShared {
					f.ClearShareToken()
				} else {
					f.SetShareToken(uuid.NewString())
				}
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := store.GetFileByID(ctx, file.ID)
	require.NoError(t, err)
	// An even number of serialized toggles ends unshared.
	assert.False(t, got.IsShared)
	assert.Nil(t, got.ShareToken)
}

func testDownloadsAndStats(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	a := newTestFile(t, store, owner.ID)
	b := newTestFile(t, store, owner.ID)

	require.NoError(t, store.RecordDownload(ctx, a.ID, &owner.ID))
	require.NoError(t, store.RecordDownload(ctx, a.ID, nil))
	require.ErrorIs(t, store.RecordDownload(ctx, uuid.New(), nil), ErrNotFound)

	_, err := store.UpdateShare(ctx, b.ID, func(f *models.File) error {
		f.SetShareToken("tok_" + uuid.NewString())
		return nil
	})
	require.NoError(t, err)

	got, err := store.GetFileByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.DownloadCount)

	logs, err := store.GetAccessLogsByFile(ctx, a.ID, 50)
	require.NoError(t, err)
	var anonymous int
	for _, l := range logs {
		if l.Action == models.ActionDownload && l.UserID == nil {
			anonymous++
		}
	}
	assert.Equal(t, 1, anonymous)

	stats, err := store.GetUserStats(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, &models.UserStats{
		TotalFiles:     2,
		TotalBytes:     22,
		TotalDownloads: 2,
		ActiveShares:   1,
	}, stats)

	empty, err := store.GetUserStats(ctx, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, &models.UserStats{}, empty)
}

func testDeleteUserCascades(t *testing.T, store Store) {
	ctx := context.Background()
	owner := newTestUser(t, store)
	file := newTestFile(t, store, owner.ID)
	token := "tok_" + uuid.NewString()
	_, err := store.UpdateShare(ctx, file.ID, func(f *models.File) error {
		f.SetShareToken(token)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, owner.ID))
	require.ErrorIs(t, store.DeleteUser(ctx, owner.ID), ErrNotFound)

	_, err = store.GetFileByID(ctx, file.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetFileByShareToken(ctx, token)
	require.ErrorIs(t, err, ErrNotFound)

	logs, err := store.GetAccessLogsByFile(ctx, file.ID, 50)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
