package services

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MockObjectStore is an in-memory ObjectStore for testing
type MockObjectStore struct {
	objects  map[string][]byte // map of object key to content
	metadata map[string]map[string]string
	err      error
	mu       sync.RWMutex
}

// NewMockObjectStore creates an empty mock object store
func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

// FailWith makes subsequent PutObject calls return err
func (m *MockObjectStore) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// PutObject stores the body under its key
func (m *MockObjectStore) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	content, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	key := aws.ToString(params.Key)
	m.objects[key] = content
	m.metadata[key] = params.Metadata
	return &s3.PutObjectOutput{}, nil
}

// Objects returns a copy of all stored objects
func (m *MockObjectStore) Objects() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent race conditions
	objects := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		objects[k] = v
	}
	return objects
}

// Metadata returns the user metadata stored with key
func (m *MockObjectStore) Metadata(key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key]
}

// Clear removes all objects
func (m *MockObjectStore) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.metadata = make(map[string]map[string]string)
	m.mu.Unlock()
}
