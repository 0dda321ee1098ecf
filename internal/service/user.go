package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"safedrop-backend/internal/auth"
	"safedrop-backend/internal/blobstore"
	"safedrop-backend/internal/models"
	"safedrop-backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 8

// UserService handles account business logic
type UserService struct {
	store             repository.Store
	blobs             blobstore.Store
	tokenService      *auth.TokenService
	logger            *slog.Logger
	allowRegistration bool
}

// NewUserService creates a new user service
func NewUserService(store repository.Store, blobs blobstore.Store, tokenService *auth.TokenService, logger *slog.Logger, allowRegistration bool) *UserService {
	return &UserService{
		store:             store,
		blobs:             blobs,
		tokenService:      tokenService,
		logger:            logger,
		allowRegistration: allowRegistration,
	}
}

// Register creates a regular account when self-registration is enabled
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if !s.allowRegistration {
		return nil, ErrRegistrationClosed
	}
	return s.createUser(ctx, username, email, password, models.RoleUser)
}

// CreateAdmin creates an admin account regardless of the registration setting
func (s *UserService) CreateAdmin(ctx context.Context, username, email, password string) (*models.User, error) {
	return s.createUser(ctx, username, email, password, models.RoleAdmin)
}

func (s *UserService) createUser(ctx context.Context, username, email, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: username, email and password are required", ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	// Check the unique fields up front for a clean error
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	}
	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrUserExists
	}

	// Never store the plain password
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	s.logger.Info("user created", "user_id", user.ID, "role", role)
	return user, nil
}

// Login authenticates by username or email and returns a signed JWT
func (s *UserService) Login(ctx context.Context, login, password string) (string, error) {
	login = strings.TrimSpace(login)

	var (
		user *models.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.store.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		user, err = s.store.GetUserByUsername(ctx, login)
	}
	if err != nil {
		// Same answer for unknown users and bad passwords
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.tokenService.NewToken(user.ID)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// GetUserByID looks a user up by ID
func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// GetAllUsers lists every account ordered by username
func (s *UserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.store.GetAllUsers(ctx)
}

// DeleteUser removes the target account with its files and their blobs.
// actorID is the admin performing the deletion; uuid.Nil skips the
// self-deletion guard for the CLI.
func (s *UserService) DeleteUser(ctx context.Context, actorID, targetID uuid.UUID) (*models.User, error) {
	if actorID == targetID {
		return nil, ErrSelfDelete
	}

	user, err := s.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	files, err := s.store.GetFilesByOwner(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("list files of user: %w", err)
	}

	if err := s.store.DeleteUser(ctx, targetID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("delete user: %w", err)
	}

	for _, f := range files {
		if _, err := s.blobs.Delete(ctx, f.StorageName); err != nil {
			s.logger.Warn("orphaned blob after user deletion",
				"user_id", targetID, "storage_name", f.StorageName, "error", err)
		}
	}

	s.logger.Info("user deleted", "user_id", targetID, "by", actorID, "files", len(files))
	return user, nil
}
