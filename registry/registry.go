package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Registry stores a mapping of adapter names to constructors for one collaborator kind
// (log services, version registries).
type Registry[C any] struct {
	kind     string
	mu       sync.RWMutex
	adapters map[string]C
}

// New allocates a registry; kind prefixes error messages.
func New[C any](kind string) *Registry[C] {
	return &Registry[C]{kind: kind, adapters: make(map[string]C)}
}

// Register adds a constructor by name. Names are case-insensitive and trimmed.
func (r *Registry[C]) Register(name string, constructor C) error {
	key := normalize(name)
	if key == "" {
		return fmt.Errorf("registry: %s provider name required", r.kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[key]; exists {
		return fmt.Errorf("registry: %s provider %s already registered", r.kind, key)
	}
	r.adapters[key] = constructor
	return nil
}

// MustRegister is Register for init blocks; a duplicate name panics.
func (r *Registry[C]) MustRegister(name string, constructor C) {
	if err := r.Register(name, constructor); err != nil {
		panic(err)
	}
}

// Get fetches a constructor by name.
func (r *Registry[C]) Get(name string) (C, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	constructor, ok := r.adapters[normalize(name)]
	return constructor, ok
}

// Names returns the sorted registered keys.
func (r *Registry[C]) Names() []string {
	r.mu.RLock()
	names := lo.Keys(r.adapters)
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
