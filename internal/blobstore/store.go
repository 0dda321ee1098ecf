// Package blobstore persists encrypted envelopes under generated storage names.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxNameAttempts bounds retries when a generated name is already taken.
const maxNameAttempts = 5

var (
	// ErrNotFound is returned when no blob exists under the requested name.
	ErrNotFound = errors.New("blob not found")
	// ErrNameCollision means every generated name in a Put was already taken.
	ErrNameCollision = errors.New("storage name collision")
)

// Store is the contract shared by the filesystem and S3 backends.
type Store interface {
	// Put writes envelope under a freshly generated name derived from
	// originalName and returns that name. The blob is fully visible once Put returns.
	Put(ctx context.Context, originalName string, envelope []byte) (string, error)
	// Get returns the full content of the blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes the blob. It reports false, without error, if nothing was there.
	Delete(ctx context.Context, name string) (bool, error)
}

// GenerateName builds a storage name of the form
// {base}_{YYYYMMDD_HHMMSS}_{uuid}{ext}, e.g. report_20260102_150405_8f14e45f-....pdf.
func GenerateName(originalName string) string {
	ext := sanitizeExt(filepath.Ext(originalName))
	base := sanitize(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))

	if len(base) > 64 {
		base = base[:64]
	}

	ts := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s%s", base, ts, uuid.NewString(), ext)
}

// validName rejects anything that is not a plain generated base name.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return filepath.Base(name) == name
}

// sanitize keeps ASCII letters, digits, dash and underscore.
func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

func sanitizeExt(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	var b strings.Builder
	for _, r := range strings.ToLower(ext) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 16 {
		return ""
	}
	return "." + b.String()
}
