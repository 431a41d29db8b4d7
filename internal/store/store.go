// Package store provides persistence for uploaded credential and message files.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/campaignd/internal/domain"
)

// ErrUploadNotFound is returned when a referenced upload does not exist.
var ErrUploadNotFound = errors.New("upload not found")

// Repository stores uploaded files and parses them into campaign entries.
type Repository interface {
	// SaveUpload stores a new upload. Names are unique per kind.
	SaveUpload(ctx context.Context, upload *domain.Upload) error

	// GetUpload retrieves an upload by kind and name.
	GetUpload(ctx context.Context, kind domain.UploadKind, name string) (*domain.Upload, error)

	// LoadCredentials parses a stored credential file, one entry per line,
	// JSON-decoded where possible.
	LoadCredentials(ctx context.Context, name string) ([]domain.Credential, error)

	// LoadMessages parses a stored message file, one message per line.
	LoadMessages(ctx context.Context, name string) ([]string, error)

	// DeleteUploadsOlderThan removes uploads stored before now-ttl.
	DeleteUploadsOlderThan(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
