package tree

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// memoryBackend keeps leaves in a map. Used by tests and local development.
type memoryBackend struct {
	mu     sync.RWMutex
	leaves map[string]json.RawMessage
}

// NewMemory returns a Tree that lives only in process memory.
func NewMemory() *Tree {
	return newTree(&memoryBackend{leaves: map[string]json.RawMessage{}})
}

func (m *memoryBackend) load(_ context.Context, root string) (map[string]json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[string]json.RawMessage{}
	for p, raw := range m.leaves {
		if root == "" || p == root || strings.HasPrefix(p, root+"/") {
			out[p] = raw
		}
	}
	return out, nil
}

func (m *memoryBackend) apply(_ context.Context, ops []op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range ops {
		switch o.kind {
		case opClearTree:
			for p := range m.leaves {
				if p == o.path || strings.HasPrefix(p, o.path+"/") {
					delete(m.leaves, p)
				}
			}
		case opClearLeaf:
			delete(m.leaves, o.path)
		case opPut:
			m.leaves[o.path] = o.value
		}
	}
	return nil
}
