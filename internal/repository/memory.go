package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"safedrop-backend/internal/models"

	"github.com/google/uuid"
)

// InMemoryStore is an in-memory implementation of Store.
// It returns copies so callers never share state with the maps.
type InMemoryStore struct {
	mu              sync.RWMutex
	usersByID       map[uuid.UUID]*models.User
	usersByUsername map[string]*models.User
	usersByEmail    map[string]*models.User
	filesByID       map[uuid.UUID]*models.File
	filesByToken    map[string]*models.File
	logs            []*models.AccessLog
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		usersByID:       make(map[uuid.UUID]*models.User),
		usersByUsername: make(map[string]*models.User),
		usersByEmail:    make(map[string]*models.User),
		filesByID:       make(map[uuid.UUID]*models.File),
		filesByToken:    make(map[string]*models.File),
	}
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyFile(f *models.File) *models.File {
	c := *f
	if f.ShareToken != nil {
		token := *f.ShareToken
		c.ShareToken = &token
	}
	return &c
}

// appendLog must be called with mu held for writing
func (s *InMemoryStore) appendLog(action string, userID *uuid.UUID, fileID uuid.UUID) {
	var actor *uuid.UUID
	if userID != nil {
		id := *userID
		actor = &id
	}
	s.logs = append(s.logs, &models.AccessLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    actor,
		FileID:    fileID,
		Timestamp: time.Now().UTC(),
	})
}

// removeFile drops the file and its logs; mu must be held for writing
func (s *InMemoryStore) removeFile(f *models.File) {
	delete(s.filesByID, f.ID)
	if f.ShareToken != nil {
		delete(s.filesByToken, *f.ShareToken)
	}

	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.FileID != f.ID {
			kept = append(kept, l)
		}
	}
	s.logs = kept
}

// --- UserStore ---

func (s *InMemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("user '%s': %w", user.Username, ErrConflict)
	}
	if _, exists := s.usersByEmail[user.Email]; exists {
		return fmt.Errorf("email '%s': %w", user.Email, ErrConflict)
	}

	stored := copyUser(user)
	s.usersByID[user.ID] = stored
	s.usersByUsername[user.Username] = stored
	s.usersByEmail[user.Email] = stored
	return nil
}

func (s *InMemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, fmt.Errorf("user '%s': %w", username, ErrNotFound)
	}
	return copyUser(user), nil
}

func (s *InMemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[email]
	if !exists {
		return nil, fmt.Errorf("email '%s': %w", email, ErrNotFound)
	}
	return copyUser(user), nil
}

func (s *InMemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, fmt.Errorf("user with id '%s': %w", id, ErrNotFound)
	}
	return copyUser(user), nil
}

func (s *InMemoryStore) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*models.User, 0, len(s.usersByID))
	for _, u := range s.usersByID {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *InMemoryStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return fmt.Errorf("user with id '%s': %w", id, ErrNotFound)
	}

	for _, f := range s.filesByID {
		if f.OwnerID == id {
			s.removeFile(f)
		}
	}

	kept := s.logs[:0]
	for _, l := range s.logs {
		if l.UserID == nil || *l.UserID != id {
			kept = append(kept, l)
		}
	}
	s.logs = kept

	delete(s.usersByID, id)
	delete(s.usersByUsername, user.Username)
	delete(s.usersByEmail, user.Email)
	return nil
}

// --- FileStore ---

func (s *InMemoryStore) CreateFile(ctx context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.filesByID[file.ID]; exists {
		return fmt.Errorf("file '%s': %w", file.ID, ErrConflict)
	}
	for _, f := range s.filesByID {
		if f.StorageName == file.StorageName {
			return fmt.Errorf("file '%s': %w", file.StorageName, ErrConflict)
		}
	}
	if file.ShareToken != nil {
		if _, taken := s.filesByToken[*file.ShareToken]; taken {
			return fmt.Errorf("share token: %w", ErrConflict)
		}
	}

	stored := copyFile(file)
	s.filesByID[file.ID] = stored
	if stored.ShareToken != nil {
		s.filesByToken[*stored.ShareToken] = stored
	}

	owner := file.OwnerID
	s.appendLog(models.ActionUpload, &owner, file.ID)
	return nil
}

func (s *InMemoryStore) GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.filesByID[id]
	if !exists {
		return nil, fmt.Errorf("file: %w", ErrNotFound)
	}
	return copyFile(file), nil
}

func (s *InMemoryStore) GetFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := []*models.File{}
	for _, f := range s.filesByID {
		if f.OwnerID == ownerID {
			files = append(files, copyFile(f))
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].CreatedAt.After(files[j].CreatedAt) })
	return files, nil
}

func (s *InMemoryStore) GetFileByShareToken(ctx context.Context, token string) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, exists := s.filesByToken[token]
	if !exists || !file.IsShared {
		return nil, fmt.Errorf("file: %w", ErrNotFound)
	}
	return copyFile(file), nil
}

func (s *InMemoryStore) DeleteFile(ctx context.Context, id, actorID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists := s.filesByID[id]
	if !exists {
		return fmt.Errorf("file: %w", ErrNotFound)
	}

	s.appendLog(models.ActionDelete, &actorID, id)
	s.removeFile(file)
	return nil
}

func (s *InMemoryStore) UpdateShare(ctx context.Context, id uuid.UUID, fn func(f *models.File) error) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.filesByID[id]
	if !exists {
		return nil, fmt.Errorf("file: %w", ErrNotFound)
	}

	next := copyFile(current)
	if err := fn(next); err != nil {
		return nil, err
	}

	if next.ShareToken != nil {
		if other, taken := s.filesByToken[*next.ShareToken]; taken && other.ID != id {
			return nil, fmt.Errorf("share token: %w", ErrConflict)
		}
	}

	if current.ShareToken != nil {
		delete(s.filesByToken, *current.ShareToken)
	}
	current.IsShared = next.IsShared
	current.ShareToken = nil
	if next.ShareToken != nil {
		token := *next.ShareToken
		current.ShareToken = &token
		s.filesByToken[token] = current
	}

	owner := current.OwnerID
	s.appendLog(shareAction(current), &owner, id)
	return copyFile(current), nil
}

func (s *InMemoryStore) RecordDownload(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, exists := s.filesByID[id]
	if !exists {
		return fmt.Errorf("file: %w", ErrNotFound)
	}

	file.DownloadCount++
	s.appendLog(models.ActionDownload, actorID, id)
	return nil
}

func (s *InMemoryStore) GetUserStats(ctx context.Context, ownerID uuid.UUID) (*models.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.UserStats{}
	for _, f := range s.filesByID {
		if f.OwnerID != ownerID {
			continue
		}
		stats.TotalFiles++
		stats.TotalBytes += f.Size
		stats.TotalDownloads += f.DownloadCount
		if f.IsShared {
			stats.ActiveShares++
		}
	}
	return stats, nil
}

// --- AccessLogStore ---

func (s *InMemoryStore) GetAccessLogsByFile(ctx context.Context, fileID uuid.UUID, limit int) ([]*models.AccessLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	logs := []*models.AccessLog{}
	for i := len(s.logs) - 1; i >= 0 && len(logs) < limit; i-- {
		if s.logs[i].FileID == fileID {
			entry := *s.logs[i]
			logs = append(logs, &entry)
		}
	}
	return logs, nil
}
