package repository

import (
	"context"
	"errors"

	"safedrop-backend/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on a unique constraint violation
	ErrConflict = errors.New("record conflicts with an existing one")
)

// UserStore defines the user operations on the DB
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	// DeleteUser removes the user; files and access logs go with it.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// FileStore defines the file operations on the DB.
// Every mutating call writes its access log in the same transaction.
type FileStore interface {
	// CreateFile inserts the file and its upload event.
	CreateFile(ctx context.Context, file *models.File) error
	GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error)
	// GetFileByShareToken only matches files that are currently shared.
	GetFileByShareToken(ctx context.Context, token string) (*models.File, error)
	// DeleteFile records a delete event by actorID and removes the row.
	DeleteFile(ctx context.Context, id, actorID uuid.UUID) error
	// UpdateShare locks the row, lets fn change the share pair and persists
	// it together with a share or unshare event by the owner. An error from
	// fn aborts the update and is returned unchanged.
	UpdateShare(ctx context.Context, id uuid.UUID, fn func(f *models.File) error) (*models.File, error)
	// RecordDownload bumps the counter and appends a download event.
	// actorID is nil for anonymous downloads.
	RecordDownload(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error
	GetUserStats(ctx context.Context, ownerID uuid.UUID) (*models.UserStats, error)
}

// AccessLogStore defines read access to the audit trail
type AccessLogStore interface {
	// GetAccessLogsByFile returns the newest events first, at most limit.
	GetAccessLogsByFile(ctx context.Context, fileID uuid.UUID, limit int) ([]*models.AccessLog, error)
}

// Store aggregates every store operation
// and simplifies dependency injection
type Store interface {
	UserStore
	FileStore
	AccessLogStore
}

// shareAction returns the event that matches the share pair after an update.
func shareAction(f *models.File) string {
	if f.IsShared {
		return models.ActionShare
	}
	return models.ActionUnshare
}
