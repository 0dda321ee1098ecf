package service

import (
	"errors"
	"fmt"

	"safedrop-backend/internal/cryptox"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username or email already exists")
	ErrRegistrationClosed = errors.New("registration is disabled")
	ErrValidation         = errors.New("validation failed")
	ErrFileNotAllowed     = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file too large")
	ErrNotShared          = errors.New("file is not shared")
	ErrSelfDelete         = errors.New("cannot delete your own account")

	// ErrCorrupted means a stored envelope decrypted to something other than
	// what was uploaded. It matches cryptox.ErrDecryption as well.
	ErrCorrupted = fmt.Errorf("stored file is corrupted: %w", cryptox.ErrDecryption)
)
