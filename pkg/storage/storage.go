// Package storage provides artifact storage with local filesystem and
// Google Cloud Storage implementations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"google.golang.org/api/option"
)

// ErrNotFound is returned when a key has no stored object.
var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	Key         string    `json:"key"`
	Path        string    `json:"path"` // local path or gs:// URL
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the interface for file storage operations
type Storage interface {
	// Put stores r under key. Readers never observe a partially written object.
	Put(ctx context.Context, key string, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns a reader for key
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is stored
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeGCS   StorageType = "gcs"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// GCS storage config
	GCSBucket          string
	GCSPrefix          string
	GCSCredentialsFile string // empty uses application default credentials
	GCSEndpoint        string // emulator or private endpoint
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeGCS:
		var opts []option.ClientOption
		if cfg.GCSCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentialsFile))
		}
		if cfg.GCSEndpoint != "" {
			opts = append(opts, option.WithEndpoint(cfg.GCSEndpoint))
		}
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSPrefix, opts...)
	case StorageTypeLocal, "":
		return NewLocalStorage(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// CleanKey validates a slash separated key and sanitises each segment.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	parts := strings.Split(key, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." {
			continue
		}
		if p == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
		out = append(out, sanitizeFilename(p))
	}
	if len(out) == 0 {
		return "", fmt.Errorf("empty storage key")
	}
	return path.Join(out...), nil
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}
