// Package memory stores blob content in-memory for development and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/crawlersvc/internal/storage"
)

type object struct {
	data    []byte
	modTime time.Time
}

// BlobStore stores artifacts in-memory and returns pseudo URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

var _ storage.Backend = (*BlobStore)(nil)

// Option customizes a BlobStore.
type Option func(*BlobStore)

// WithClock overrides the time source used for modification times.
func WithClock(now func() time.Time) Option {
	return func(s *BlobStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore(opts ...Option) *BlobStore {
	s := &BlobStore{
		objects: make(map[string]object),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, key string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("path is required")
	}
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; ok {
		return "", fmt.Errorf("%s: %w", key, storage.ErrExists)
	}
	s.objects[key] = object{data: byteData, modTime: s.now()}
	return fmt.Sprintf("memory://%s", key), nil
}

// GetObject returns a copy of the stored content.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// ListObjects returns objects under prefix. A non-empty prefix with no
// objects yields ErrNotFound, mirroring a missing directory.
func (s *BlobStore) ListObjects(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	match := prefix
	if match != "" && !strings.HasSuffix(match, "/") {
		match += "/"
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []storage.ObjectInfo
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, match) {
			continue
		}
		infos = append(infos, storage.ObjectInfo{
			Key:     key,
			Size:    int64(len(obj.data)),
			ModTime: obj.modTime,
		})
	}
	if prefix != "" && len(infos) == 0 {
		return nil, fmt.Errorf("%s: %w", prefix, storage.ErrNotFound)
	}
	return infos, nil
}

// DeleteObject removes an object.
func (s *BlobStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	delete(s.objects, key)
	return nil
}

// Touch overrides the modification time of an existing object.
func (s *BlobStore) Touch(key string, modTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	obj.modTime = modTime
	s.objects[key] = obj
	return nil
}
