package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"safedrop-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore opens the connection pool and checks connectivity
func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("postgres connection pool established")
	return &PostgresStore{db: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.db.Close()
}

// Ping reports whether the database is reachable
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// withTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	return fn(tx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func insertAccessLog(ctx context.Context, q querier, action string, userID *uuid.UUID, fileID uuid.UUID) error {
	sql := `
        INSERT INTO access_logs (id, action, user_id, file_id, timestamp)
        VALUES ($1, $2, $3, $4, $5)`

	if _, err := q.Exec(ctx, sql, uuid.New(), action, userID, fileID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to write %s access log: %w", action, err)
	}
	return nil
}

// --- UserStore ---

const userColumns = `id, username, email, password_hash, role, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	sql := `
        INSERT INTO users (id, username, email, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, sql,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user '%s': %w", user.Username, ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` = $1`

	user, err := scanUser(s.db.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with %s '%v': %w", where, arg, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch user by %s: %w", where, err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, "username", username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, "email", email)
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *PostgresStore) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := s.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	defer rows.Close()

	// Empty slice, not nil, for consistent JSON
	users := []*models.User{}

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func (s *PostgresStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user with id '%s': %w", id, ErrNotFound)
	}
	return nil
}

// --- FileStore ---

const fileColumns = `id, owner_id, original_name, storage_name, size, mime_type, checksum,
        created_at, download_count, is_shared, share_token`

func scanFile(row pgx.Row) (*models.File, error) {
	file := &models.File{}
	err := row.Scan(
		&file.ID,
		&file.OwnerID,
		&file.OriginalName,
		&file.StorageName,
		&file.Size,
		&file.MimeType,
		&file.Checksum,
		&file.CreatedAt,
		&file.DownloadCount,
		&file.IsShared,
		&file.ShareToken,
	)
	return file, err
}

func (s *PostgresStore) CreateFile(ctx context.Context, file *models.File) error {
	sql := `
        INSERT INTO files (id, owner_id, original_name, storage_name, size, mime_type, checksum,
                           created_at, download_count, is_shared, share_token)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, sql,
			file.ID,
			file.OwnerID,
			file.OriginalName,
			file.StorageName,
			file.Size,
			file.MimeType,
			file.Checksum,
			file.CreatedAt,
			file.DownloadCount,
			file.IsShared,
			file.ShareToken,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("file '%s': %w", file.StorageName, ErrConflict)
			}
			return fmt.Errorf("failed to create file: %w", err)
		}

		owner := file.OwnerID
		return insertAccessLog(ctx, tx, models.ActionUpload, &owner, file.ID)
	})
}

func (s *PostgresStore) getFile(ctx context.Context, q querier, where string, arg any) (*models.File, error) {
	sql := `SELECT ` + fileColumns + ` FROM files WHERE ` + where

	file, err := scanFile(q.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch file: %w", err)
	}
	return file, nil
}

func (s *PostgresStore) GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	return s.getFile(ctx, s.db, `id = $1`, id)
}

func (s *PostgresStore) GetFileByShareToken(ctx context.Context, token string) (*models.File, error) {
	return s.getFile(ctx, s.db, `share_token = $1 AND is_shared`, token)
}

func (s *PostgresStore) GetFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error) {
	sql := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files: %w", err)
	}
	defer rows.Close()

	files := []*models.File{}

	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating files: %w", err)
	}

	return files, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id, actorID uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.getFile(ctx, tx, `id = $1 FOR UPDATE`, id); err != nil {
			return err
		}

		// The event is removed again by the cascade below; it still passes
		// through the audit table inside this transaction.
		if err := insertAccessLog(ctx, tx, models.ActionDelete, &actorID, id); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM files WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateShare(ctx context.Context, id uuid.UUID, fn func(f *models.File) error) (*models.File, error) {
	var updated *models.File

	err := s.withTx(ctx, func(tx pgx.Tx) error {
		file, err := s.getFile(ctx, tx, `id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}

		if err := fn(file); err != nil {
			return err
		}

		sql := `UPDATE files SET is_shared = $2, share_token = $3 WHERE id = $1`
		if _, err := tx.Exec(ctx, sql, file.ID, file.IsShared, file.ShareToken); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("share token: %w", ErrConflict)
			}
			return fmt.Errorf("failed to update share state: %w", err)
		}

		owner := file.OwnerID
		if err := insertAccessLog(ctx, tx, shareAction(file), &owner, file.ID); err != nil {
			return err
		}

		updated = file
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) RecordDownload(ctx context.Context, id uuid.UUID, actorID *uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE files SET download_count = download_count + 1 WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to increment download count: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("file: %w", ErrNotFound)
		}
		return insertAccessLog(ctx, tx, models.ActionDownload, actorID, id)
	})
}

func (s *PostgresStore) GetUserStats(ctx context.Context, ownerID uuid.UUID) (*models.UserStats, error) {
	sql := `
        SELECT COUNT(*),
               COALESCE(SUM(size), 0)::BIGINT,
               COALESCE(SUM(download_count), 0)::BIGINT,
               COUNT(*) FILTER (WHERE is_shared)
        FROM files
        WHERE owner_id = $1`

	stats := &models.UserStats{}
	err := s.db.QueryRow(ctx, sql, ownerID).Scan(
		&stats.TotalFiles,
		&stats.TotalBytes,
		&stats.TotalDownloads,
		&stats.ActiveShares,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute user stats: %w", err)
	}
	return stats, nil
}

// --- AccessLogStore ---

func (s *PostgresStore) GetAccessLogsByFile(ctx context.Context, fileID uuid.UUID, limit int) ([]*models.AccessLog, error) {
	sql := `
        SELECT id, action, user_id, file_id, timestamp
        FROM access_logs
        WHERE file_id = $1
        ORDER BY timestamp DESC
        LIMIT $2`

	rows, err := s.db.Query(ctx, sql, fileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch access logs: %w", err)
	}
	defer rows.Close()

	logs := []*models.AccessLog{}

	for rows.Next() {
		entry := &models.AccessLog{}
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.UserID, &entry.FileID, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan access log row: %w", err)
		}
		logs = append(logs, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating access logs: %w", err)
	}

	return logs, nil
}
