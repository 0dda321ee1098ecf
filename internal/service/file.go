package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"safedrop-backend/internal/auth"
	"safedrop-backend/internal/blobstore"
	"safedrop-backend/internal/cryptox"
	"safedrop-backend/internal/filetype"
	"safedrop-backend/internal/metrics"
	"safedrop-backend/internal/models"
	"safedrop-backend/internal/repository"

	"github.com/google/uuid"
)

const (
	// maxShareAttempts bounds token regeneration on a uniqueness conflict
	maxShareAttempts = 3
	// DefaultLogLimit is the number of access events returned per file
	DefaultLogLimit = 50
)

// FileService encrypts, stores, shares and serves files
type FileService struct {
	store         repository.Store
	blobs         blobstore.Store
	cipher        *cryptox.Cipher
	policy        filetype.Policy
	logger        *slog.Logger
	newShareToken func() (string, error)
}

// NewFileService wires the file service to its collaborators
func NewFileService(store repository.Store, blobs blobstore.Store, cipher *cryptox.Cipher, policy filetype.Policy, logger *slog.Logger) *FileService {
	return &FileService{
		store:         store,
		blobs:         blobs,
		cipher:        cipher,
		policy:        policy,
		logger:        logger,
		newShareToken: auth.NewShareToken,
	}
}

// FileDetails is a file with its derived display attributes
type FileDetails struct {
	*models.File
	Category  filetype.Category `json:"category"`
	IconClass string            `json:"iconClass"`
}

// Describe adds the category and icon class to a file
func Describe(f *models.File) *FileDetails {
	return &FileDetails{
		File:      f,
		Category:  filetype.Classify(f.OriginalName),
		IconClass: filetype.IconClass(f.OriginalName),
	}
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Upload admits, encrypts and stores content for ownerID.
// The blob is written before the row; a failed insert removes the blob.
func (s *FileService) Upload(ctx context.Context, ownerID uuid.UUID, filename, declaredType string, content io.Reader) (file *models.File, err error) {
	defer func() { metrics.ObserveOperation("upload", err) }()

	// 1. Admission
	filename = path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if filename == "" || filename == "." || filename == "/" {
		return nil, fmt.Errorf("%w: no file selected", ErrValidation)
	}
	if !s.policy.Allows(filename) {
		return nil, ErrFileNotAllowed
	}

	// 2. Read at most one byte past the limit to detect oversize input
	data, err := io.ReadAll(io.LimitReader(content, s.policy.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.policy.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	// 3. Encrypt and publish the blob
	envelope, err := s.cipher.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("encrypt upload: %w", err)
	}

	storageName, err := s.blobs.Put(ctx, filename, envelope)
	if err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	// 4. Record the file together with its upload event
	file = &models.File{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		OriginalName: filename,
		StorageName:  storageName,
		Size:         int64(len(data)),
		MimeType:     filetype.ContentType(filename, declaredType, data),
		Checksum:     checksum(data),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.store.CreateFile(ctx, file); err != nil {
		if _, delErr := s.blobs.Delete(ctx, storageName); delErr != nil {
			s.logger.Error("failed to remove blob after insert failure",
				"storage_name", storageName, "error", delErr)
		}
		return nil, fmt.Errorf("save file record: %w", err)
	}

	s.logger.Info("file uploaded", "file_id", file.ID, "owner_id", ownerID, "size", file.Size)
	return file, nil
}

// getOwnedFile loads a file and checks that userID owns it
func (s *FileService) getOwnedFile(ctx context.Context, fileID, userID uuid.UUID) (*models.File, error) {
	file, err := s.store.GetFileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if file.OwnerID != userID {
		return nil, ErrForbidden
	}
	return file, nil
}

// GetFile returns the metadata of a file owned by userID
func (s *FileService) GetFile(ctx context.Context, fileID, userID uuid.UUID) (*FileDetails, error) {
	file, err := s.getOwnedFile(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	return Describe(file), nil
}

// ListFiles returns the files of ownerID, newest first
func (s *FileService) ListFiles(ctx context.Context, ownerID uuid.UUID) ([]*FileDetails, error) {
	files, err := s.store.GetFilesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]*FileDetails, 0, len(files))
	for _, f := range files {
		out = append(out, Describe(f))
	}
	return out, nil
}

// readPlaintext fetches and decrypts the blob of file and checks it
// against the size and checksum recorded at upload.
func (s *FileService) readPlaintext(ctx context.Context, file *models.File) ([]byte, error) {
	envelope, err := s.blobs.Get(ctx, file.StorageName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Error("blob missing for file", "file_id", file.ID, "storage_name", file.StorageName)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}

	plaintext, err := s.cipher.Decrypt(envelope)
	if err != nil {
		metrics.DecryptFailuresTotal.Inc()
		s.logger.Error("failed to decrypt file", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}

	if int64(len(plaintext)) != file.Size ||
		subtle.ConstantTimeCompare([]byte(checksum(plaintext)), []byte(file.Checksum)) != 1 {
		metrics.DecryptFailuresTotal.Inc()
		s.logger.Error("decrypted file does not match its record",
			"file_id", file.ID, "want_size", file.Size, "got_size", len(plaintext))
		return nil, ErrCorrupted
	}

	return plaintext, nil
}

// Download returns the decrypted content of a file owned by userID
func (s *FileService) Download(ctx context.Context, fileID, userID uuid.UUID) (file *models.File, data []byte, err error) {
	defer func() { metrics.ObserveOperation("download", err) }()

	file, err = s.getOwnedFile(ctx, fileID, userID)
	if err != nil {
		return nil, nil, err
	}

	data, err = s.readPlaintext(ctx, file)
	if err != nil {
		return nil, nil, err
	}

	actor := userID
	if err := s.store.RecordDownload(ctx, file.ID, &actor); err != nil {
		return nil, nil, fmt.Errorf("record download: %w", err)
	}
	file.DownloadCount++

	return file, data, nil
}

// ResolveShare returns the shared file behind token. Unknown and revoked
// tokens are indistinguishable.
func (s *FileService) ResolveShare(ctx context.Context, token string) (*models.File, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	file, err := s.store.GetFileByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// DownloadShared serves a file anonymously through its share token
func (s *FileService) DownloadShared(ctx context.Context, token string) (file *models.File, data []byte, err error) {
	defer func() { metrics.ObserveOperation("shared_download", err) }()

	file, err = s.ResolveShare(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	data, err = s.readPlaintext(ctx, file)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.RecordDownload(ctx, file.ID, nil); err != nil {
		return nil, nil, fmt.Errorf("record download: %w", err)
	}
	file.DownloadCount++

	return file, data, nil
}

// Delete removes a file owned by userID. The record goes first; a blob that
// cannot be removed afterwards is logged as orphaned.
func (s *FileService) Delete(ctx context.Context, fileID, userID uuid.UUID) (err error) {
	defer func() { metrics.ObserveOperation("delete", err) }()

	file, err := s.getOwnedFile(ctx, fileID, userID)
	if err != nil {
		return err
	}

	if err := s.store.DeleteFile(ctx, file.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete file record: %w", err)
	}

	removed, err := s.blobs.Delete(ctx, file.StorageName)
	if err != nil {
		s.logger.Warn("orphaned blob after file deletion",
			"file_id", file.ID, "storage_name", file.StorageName, "error", err)
		return nil
	}
	if !removed {
		s.logger.Warn("blob already absent on delete", "file_id", file.ID, "storage_name", file.StorageName)
	}

	s.logger.Info("file deleted", "file_id", file.ID, "owner_id", userID)
	return nil
}

// shareMode selects what updateShare does with the current state
type shareMode int

const (
	shareEnable shareMode = iota
	shareRevoke
	shareToggle
)

// updateShare applies mode under the row lock, regenerating the token
// when it collides with another file's.
func (s *FileService) updateShare(ctx context.Context, fileID, userID uuid.UUID, mode shareMode) (*models.File, error) {
	for attempt := 1; ; attempt++ {
		token, err := s.newShareToken()
		if err != nil {
			return nil, err
		}

		file, err := s.store.UpdateShare(ctx, fileID, func(f *models.File) error {
			if f.OwnerID != userID {
				return ErrForbidden
			}
			enable := mode == shareEnable || (mode == shareToggle && !f.IsShared)
			if enable {
				f.SetShareToken(token)
			} else {
				f.ClearShareToken()
			}
			return nil
		})

		switch {
		case err == nil:
			action := shareAction(file)
			metrics.ShareChangesTotal.WithLabelValues(action).Inc()
			s.logger.Info("share state changed", "file_id", file.ID, "action", action)
			return file, nil
		case errors.Is(err, repository.ErrConflict) && attempt < maxShareAttempts:
			s.logger.Warn("share token collision, regenerating", "file_id", fileID, "attempt", attempt)
			continue
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}
}

func shareAction(f *models.File) string {
	if f.IsShared {
		return models.ActionShare
	}
	return models.ActionUnshare
}

// EnableShare attaches a fresh token, replacing any previous one
func (s *FileService) EnableShare(ctx context.Context, fileID, userID uuid.UUID) (*models.File, error) {
	return s.updateShare(ctx, fileID, userID, shareEnable)
}

// RevokeShare clears the token and the shared flag
func (s *FileService) RevokeShare(ctx context.Context, fileID, userID uuid.UUID) (*models.File, error) {
	return s.updateShare(ctx, fileID, userID, shareRevoke)
}

// ToggleShare flips the file between shared and unshared
func (s *FileService) ToggleShare(ctx context.Context, fileID, userID uuid.UUID) (*models.File, error) {
	return s.updateShare(ctx, fileID, userID, shareToggle)
}

// ShareToken returns the current token of a shared file owned by userID
func (s *FileService) ShareToken(ctx context.Context, fileID, userID uuid.UUID) (string, error) {
	file, err := s.getOwnedFile(ctx, fileID, userID)
	if err != nil {
		return "", err
	}
	if !file.IsShared || file.ShareToken == nil {
		return "", ErrNotShared
	}
	return *file.ShareToken, nil
}

// AccessLogs returns the newest events of a file owned by userID
func (s *FileService) AccessLogs(ctx context.Context, fileID, userID uuid.UUID, limit int) ([]*models.AccessLog, error) {
	if _, err := s.getOwnedFile(ctx, fileID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > DefaultLogLimit {
		limit = DefaultLogLimit
	}
	return s.store.GetAccessLogsByFile(ctx, fileID, limit)
}

// Stats summarises the files of ownerID
func (s *FileService) Stats(ctx context.Context, ownerID uuid.UUID) (*models.UserStats, error) {
	return s.store.GetUserStats(ctx, ownerID)
}
