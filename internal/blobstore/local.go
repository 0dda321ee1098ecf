package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps envelopes as files in a single directory.
type LocalStore struct {
	dir string
	// newName is swapped in tests to force collisions
	newName func(originalName string) string
}

// NewLocalStore creates the root directory if needed and returns a store over it.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", dir, err)
	}
	return &LocalStore{dir: dir, newName: GenerateName}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes the envelope to a temp file, fsyncs it and publishes it with a
// hard link. The link fails if the name exists, so a collision never
// overwrites another blob; a new name is generated instead.
func (s *LocalStore) Put(ctx context.Context, originalName string, envelope []byte) (string, error) {
	// MkdirAll is idempotent; the directory may have been removed since startup
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("ensure upload directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(envelope); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write envelope: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fsync envelope: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := s.newName(originalName)
		err := os.Link(tmpPath, filepath.Join(s.dir, name))
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("publish blob %s: %w", name, err)
		}
	}

	return "", ErrNameCollision
}

// Get reads the whole blob.
func (s *LocalStore) Get(ctx context.Context, name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("read blob %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the blob and reports whether anything was removed.
func (s *LocalStore) Delete(ctx context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, nil
	}

	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("delete blob %s: %w", name, err)
	}
	return true, nil
}
