// Package storage publishes run output to local disk or S3.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrFileNotFound is returned when a requested file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath is returned when a path is invalid or escapes the storage root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrUnsupportedType is returned for a storage type other than local or s3.
	ErrUnsupportedType = errors.New("unsupported storage type")
)

// BlobStorage defines the interface for storing and retrieving published files.
type BlobStorage interface {
	// Upload stores data from the reader at the specified path.
	Upload(ctx context.Context, path string, reader io.Reader) error

	// Download retrieves data from the specified path.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the data at the specified path.
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the specified path.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns every stored path under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// GetURL returns a URL for accessing the data at the specified path.
	// Local storage returns the file path, S3 a presigned URL.
	GetURL(ctx context.Context, path string) (string, error)
}

// Config selects and configures a BlobStorage.
type Config struct {
	Type          string // "local" or "s3"
	BaseDir       string // local root directory
	Bucket        string
	Region        string
	Prefix        string // key prefix inside the bucket
	Endpoint      string // S3-compatible endpoint, e.g. MinIO
	AccessKey     string // empty uses the default credential chain
	SecretKey     string
	PresignExpiry time.Duration
}

// New creates a BlobStorage implementation based on configuration.
func New(ctx context.Context, cfg Config) (BlobStorage, error) {
	switch strings.ToLower(cfg.Type) {
	case "local", "":
		return NewLocalStorage(cfg.BaseDir)

	case "s3":
		s3Storage, err := NewS3Storage(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3 storage: %w", err)
		}
		return s3Storage, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, cfg.Type)
	}
}

// cleanKey validates a relative slash-separated path and returns it cleaned.
func cleanKey(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: path cannot be empty", ErrInvalidPath)
	}
	p = filepath.ToSlash(p)
	if path.IsAbs(p) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: absolute paths not allowed", ErrInvalidPath)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path traversal detected", ErrInvalidPath)
	}
	return clean, nil
}

// ContentType guesses the MIME type of a published file.
func ContentType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}
