package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockObjectStore keeps objects in memory for tests.
type MockObjectStore struct {
	mu      sync.Mutex
	Objects map[string][]byte

	UploadErr   error
	DownloadErr error
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{Objects: make(map[string][]byte)}
}

func (m *MockObjectStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.Objects[key] = buf
	return key, nil
}

func (m *MockObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.Objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	return nil
}

func (m *MockObjectStore) PresignGet(ctx context.Context, key string, expires time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}
