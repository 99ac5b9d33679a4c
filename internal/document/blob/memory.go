package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/smallbiznis/claimflow/internal/document/domain"
)

// Memory keeps content in process. Used when object storage is disabled and in tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	// FailPut, when set, is returned by every Put.
	FailPut error
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(_ context.Context, key string, content io.Reader, _ int64, _ string) error {
	if m.FailPut != nil {
		return m.FailPut
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
