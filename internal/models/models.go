package models

import (
	"time"

	"github.com/google/uuid"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account in the system
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never exposed in JSON
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// File is an uploaded file whose content lives encrypted in the blob store.
// ShareToken is set if and only if IsShared is true.
type File struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"ownerId"`
	OriginalName  string    `json:"originalName"`
	StorageName   string    `json:"-"`
	Size          int64     `json:"size"` // plaintext bytes
	MimeType      string    `json:"mimeType"`
	Checksum      string    `json:"-"` // sha256 of the plaintext, hex
	CreatedAt     time.Time `json:"createdAt"`
	DownloadCount int64     `json:"downloadCount"`
	IsShared      bool      `json:"isShared"`
	ShareToken    *string   `json:"-"`
}

// SetShareToken attaches a token and marks the file as shared.
func (f *File) SetShareToken(token string) {
	f.ShareToken = &token
	f.IsShared = true
}

// ClearShareToken removes the token and the shared flag together.
func (f *File) ClearShareToken() {
	f.ShareToken = nil
	f.IsShared = false
}

// Access log actions
const (
	ActionUpload   = "upload"
	ActionDownload = "download"
	ActionDelete   = "delete"
	ActionShare    = "share"
	ActionUnshare  = "unshare"
)

// AccessLog is an append-only record of an action on a file.
// UserID is nil for anonymous share-link downloads.
type AccessLog struct {
	ID        uuid.UUID  `json:"id"`
	Action    string     `json:"action"`
	UserID    *uuid.UUID `json:"userId,omitempty"`
	FileID    uuid.UUID  `json:"fileId"`
	Timestamp time.Time  `json:"timestamp"`
}

// UserStats summarises a user's files for the dashboard.
type UserStats struct {
	TotalFiles     int64 `json:"totalFiles"`
	TotalBytes     int64 `json:"totalBytes"`
	TotalDownloads int64 `json:"totalDownloads"`
	ActiveShares   int64 `json:"activeShares"`
}
