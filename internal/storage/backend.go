// Package storage defines the Backend interface used by the reference file
// store and selects an implementation from configuration.
package storage

import (
	"context"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

// ErrNotFound is wrapped by backends when a key does not exist.
var ErrNotFound = fs.ErrNotExist

// Backend is the interface for content storage backends.
// Implementations handle raw object I/O (local filesystem, S3).
type Backend interface {
	// List returns the direct children of the directory at key. The empty
	// key is the backend root.
	List(ctx context.Context, key string) ([]models.ObjectInfo, error)

	// Stat describes the object or directory at key.
	Stat(ctx context.Context, key string) (models.ObjectInfo, error)

	// GetObject retrieves an object by key along with its size.
	GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error)

	// PutObject creates or replaces the object at key.
	PutObject(ctx context.Context, key string, body io.Reader, size int64) error

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// CleanKey turns a client path into a backend key: separators are
// normalized, ".." cannot climb above the root, and the result has no
// leading or trailing slash. The root is "".
func CleanKey(p string) string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimPrefix(p, "/")
}

// JoinKey joins key elements, skipping empty ones.
func JoinKey(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = CleanKey(e); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, "/")
}
