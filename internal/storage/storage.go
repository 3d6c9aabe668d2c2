// Package storage defines the blob backend contract shared by the result store.
// Backends exist for the local filesystem, Google Cloud Storage and memory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a key or prefix has no objects.
	ErrNotFound = errors.New("object not found")
	// ErrExists is returned when a create-exclusive write hits an existing key.
	ErrExists = errors.New("object already exists")
)

// PartialListError is returned by ListObjects together with the objects it
// could read when some entries had to be skipped.
type PartialListError struct {
	Prefix  string
	Skipped []error
}

func (e *PartialListError) Error() string {
	return fmt.Sprintf("list %q: skipped %d unreadable entries: %v", e.Prefix, len(e.Skipped), errors.Join(e.Skipped...))
}

// Unwrap exposes the individual skip errors to errors.Is and errors.As.
func (e *PartialListError) Unwrap() []error {
	return e.Skipped
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key     string
	Size    int64
	ModTime time.Time
}

// Backend stores immutable objects under slash-separated keys.
type Backend interface {
	// PutObject writes a new object and returns its URI. Existing keys yield ErrExists.
	PutObject(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	// GetObject returns the full object content or ErrNotFound.
	GetObject(ctx context.Context, key string) ([]byte, error)
	// ListObjects returns every object whose key starts with prefix, in no particular order.
	// Entries that cannot be read are skipped and reported through a *PartialListError
	// returned alongside the readable objects.
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	// DeleteObject removes an object. Missing keys yield ErrNotFound.
	DeleteObject(ctx context.Context, key string) error
}
