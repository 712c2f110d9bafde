package storage

import (
	"context"
	"sync"
)

// MemoryUploader keeps uploads in process. Used for dry runs and tests.
type MemoryUploader struct {
	Prefix string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

var _ Uploader = (*MemoryUploader)(nil)

// NewMemoryUploader returns an empty in-memory uploader.
func NewMemoryUploader(prefix string) *MemoryUploader {
	return &MemoryUploader{
		Prefix:  prefix,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

// Upload copies data under a fresh key and returns a memory:// URL.
func (m *MemoryUploader) Upload(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Op: "put", Err: err}
	}
	key := NewKey(m.Prefix, originalName)
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = buf
	m.types[key] = mimeType
	m.mu.Unlock()
	return "memory://" + key, nil
}

// Len returns the number of stored objects.
func (m *MemoryUploader) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Get returns a stored object's bytes and content type.
func (m *MemoryUploader) Get(key string) ([]byte, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, m.types[key], ok
}
