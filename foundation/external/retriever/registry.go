package retriever

import (
	"fmt"
	"sync"
)

// Registry maps store ids to retrieval handles shared by every session.
// Registrations are swapped under the lock, never mutated in place, so a
// rebuild after a catalog update cannot corrupt in-flight reads: a
// retrieval started against the old handle simply finishes against it.
type Registry struct {
	apiEndpoint string

	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry(apiEndpoint string) *Registry {
	return &Registry{
		apiEndpoint: apiEndpoint,
		handles:     make(map[string]*Handle),
	}
}

// Get returns the handle registered under storeID, creating and
// registering it if absent.
func (r *Registry) Get(storeID string, configPath string, indexDir string) *Handle {
	r.mu.RLock()
	h, exists := r.handles[storeID]
	r.mu.RUnlock()
	if exists {
		return h
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, exists := r.handles[storeID]; exists {
		return h
	}

	h = &Handle{
		apiEndpoint: r.apiEndpoint,
		configPath:  configPath,
		indexDir:    indexDir,
	}
	r.handles[storeID] = h

	return h
}

// Lookup returns the handle without creating one.
func (r *Registry) Lookup(storeID string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handles[storeID]
	if !exists {
		return nil, fmt.Errorf("retriever[%s] is not registered", storeID)
	}
	return h, nil
}

// Pop evicts the handle so the next Get rebuilds it against a fresh
// index.
func (r *Registry) Pop(storeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.handles, storeID)
}
