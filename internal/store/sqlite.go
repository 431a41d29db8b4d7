package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
	"github.com/ashureev/campaignd/internal/entries"
	"github.com/ashureev/campaignd/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the sweeper delete while uploads are being written.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS uploads (
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		original_name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (kind, name)
	);
	CREATE INDEX IF NOT EXISTS idx_uploads_created ON uploads(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveUpload stores a new upload, retrying briefly on lock contention.
func (s *SQLiteStore) SaveUpload(ctx context.Context, upload *domain.Upload) error {
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = time.Now()
	}
	query := `
	INSERT INTO uploads (kind, name, original_name, content, created_at)
	VALUES (?, ?, ?, ?, ?)`

	return shared.RetryOnConflict(ctx, "save upload", func() error {
		_, err := s.db.ExecContext(ctx, query,
			string(upload.Kind), upload.Name, upload.OriginalName,
			upload.Content, upload.CreatedAt.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert upload: %w", err)
		}
		return nil
	})
}

// GetUpload retrieves an upload by kind and name.
func (s *SQLiteStore) GetUpload(ctx context.Context, kind domain.UploadKind, name string) (*domain.Upload, error) {
	query := `
		SELECT kind, name, original_name, content, created_at
		FROM uploads WHERE kind = ? AND name = ?`

	row := s.db.QueryRowContext(ctx, query, string(kind), name)

	var upload domain.Upload
	var storedKind string
	var createdAt int64
	err := row.Scan(&storedKind, &upload.Name, &upload.OriginalName, &upload.Content, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("scan upload row: %w", err)
	}

	upload.Kind = domain.UploadKind(storedKind)
	upload.CreatedAt = time.UnixMilli(createdAt)
	return &upload, nil
}

// LoadCredentials parses a stored credential file.
func (s *SQLiteStore) LoadCredentials(ctx context.Context, name string) ([]domain.Credential, error) {
	upload, err := s.GetUpload(ctx, domain.UploadCredentials, name)
	if err != nil {
		return nil, err
	}
	return entries.Credentials(upload.Content), nil
}

// LoadMessages parses a stored message file.
func (s *SQLiteStore) LoadMessages(ctx context.Context, name string) ([]string, error) {
	upload, err := s.GetUpload(ctx, domain.UploadMessages, name)
	if err != nil {
		return nil, err
	}
	return entries.Messages(upload.Content), nil
}

// DeleteUploadsOlderThan removes uploads older than ttl.
func (s *SQLiteStore) DeleteUploadsOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).UnixMilli()
	var deleted int64
	err := shared.RetryOnConflict(ctx, "delete expired uploads", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE created_at < ?`, threshold)
		if err != nil {
			return fmt.Errorf("delete expired uploads: %w", err)
		}
		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	return deleted, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
