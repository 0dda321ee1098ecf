package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+_\d{8}_\d{6}_[0-9a-f-]{36}(\.[a-z0-9]+)?$`)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "uploads"))
	require.NoError(t, err)
	return s
}

func TestNewLocalStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")

	s, err := NewLocalStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, s.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewLocalStore_EmptyDir(t *testing.T) {
	_, err := NewLocalStore("")
	require.Error(t, err)
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()
	envelope := []byte("opaque envelope bytes")

	name, err := s.Put(ctx, "Quarterly Report.PDF", envelope)
	require.NoError(t, err)
	assert.Regexp(t, nameRe, name)
	assert.True(t, strings.HasPrefix(name, "QuarterlyReport_"))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	got, err := s.Get(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, envelope, got)

	removed, err := s.Delete(ctx, name)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Delete(ctx, name)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = s.Get(ctx, name)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutLeavesNoTempFiles(t *testing.T) {
	s := newTestLocalStore(t)

	name, err := s.Put(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, name, entries[0].Name())
}

func TestLocalStore_PutRecreatesMissingDirectory(t *testing.T) {
	s := newTestLocalStore(t)
	require.NoError(t, os.RemoveAll(s.Dir()))

	name, err := s.Put(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
}

func TestLocalStore_PutRetriesOnCollision(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "taken.bin"), []byte("original"), 0o600))

	calls := 0
	s.newName = func(string) string {
		calls++
		if calls == 1 {
			return "taken.bin"
		}
		return "fresh.bin"
	}

	name, err := s.Put(ctx, "x.bin", []byte("new"))
	require.NoError(t, err)
	assert.Equal(t, "fresh.bin", name)
	assert.Equal(t, 2, calls)

	// the existing blob is untouched
	old, err := s.Get(ctx, "taken.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), old)
}

func TestLocalStore_PutGivesUpAfterRepeatedCollisions(t *testing.T) {
	s := newTestLocalStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "taken.bin"), nil, 0o600))
	s.newName = func(string) string { return "taken.bin" }

	_, err := s.Put(context.Background(), "x.bin", []byte("new"))
	require.ErrorIs(t, err, ErrNameCollision)
}

func TestLocalStore_RejectsPathTraversal(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	outside := filepath.Join(filepath.Dir(s.Dir()), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("do not touch"), 0o600))

	for _, name := range []string{"", ".", "..", "../secret.txt", "a/b", `a\b`} {
		_, err := s.Get(ctx, name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)

		removed, err := s.Delete(ctx, name)
		assert.NoError(t, err)
		assert.False(t, removed)
	}

	_, err := os.Stat(outside)
	require.NoError(t, err)
}

func TestLocalStore_ConcurrentPuts(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	names := make([]string, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i], errs[i] = s.Put(ctx, "same-name.txt", []byte(fmt.Sprintf("payload-%d", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[names[i]], "duplicate name %s", names[i])
		seen[names[i]] = true

		got, err := s.Get(ctx, names[i])
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("payload-%d", i), string(got))
	}
}

func TestGenerateName(t *testing.T) {
	tests := []struct {
		original   string
		wantPrefix string
		wantExt    string
	}{
		{"photo.JPG", "photo_", ".jpg"},
		{"../../etc/passwd", "passwd_", ""},
		{"имя файла.txt", "file_", ".txt"},
		{"no extension", "noextension_", ""},
		{"archive.tar.gz", "archivetar_", ".gz"},
		{"", "file_", ""},
	}

	for _, tt := range tests {
		t.Run(tt.original, func(t *testing.T) {
			name := GenerateName(tt.original)
			assert.Regexp(t, nameRe, name)
			assert.True(t, strings.HasPrefix(name, tt.wantPrefix), name)
			assert.Equal(t, tt.wantExt, filepath.Ext(name))
			assert.True(t, validName(name))
		})
	}

	assert.NotEqual(t, GenerateName("same.txt"), GenerateName("same.txt"))
}
