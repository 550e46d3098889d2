package recordstore

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps documents in-process. Used in tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]Document)}
}

func (m *MemoryStore) Get(_ context.Context, path string) (Document, bool, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[path]
	return doc, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, path string, doc Document) error {
	if _, _, err := SplitPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make(Document, len(doc))
	copy(stored, doc)
	m.docs[path] = stored
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	if _, _, err := SplitPath(path); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) (map[string]Document, error) {
	if _, _, err := SplitPath(prefix); err != nil {
		return nil, err
	}
	prefix = strings.Trim(prefix, "/") + "/"
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Document)
	for path, doc := range m.docs {
		if strings.HasPrefix(path, prefix) {
			out[strings.TrimPrefix(path, prefix)] = doc
		}
	}
	return out, nil
}
