package storage

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps keys to backend instances. Each key and each backend
// instance appears at most once; backends are compared by identity, so
// implementations must be pointer types.
type Registry struct {
	mu       sync.Mutex
	backends map[Key]Backend
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{backends: make(map[Key]Backend)}
}

// Register adds backend under key. Registering a key or a backend that is
// already present fails with ErrDuplicateRegistration.
func (r *Registry) Register(key Key, backend Backend) error {
	if backend == nil {
		return fmt.Errorf("cannot register nil backend: %w", ErrInvalidArgument)
	}
	if key == "" {
		return fmt.Errorf("cannot register backend with empty key: %w", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[key]; exists {
		return fmt.Errorf("key %q: %w", key, ErrDuplicateRegistration)
	}
	for existingKey, existing := range r.backends {
		if existing == backend {
			return fmt.Errorf("backend is registered as %q: %w", existingKey, ErrDuplicateRegistration)
		}
	}

	r.backends[key] = backend
	return nil
}

// Unregister removes the entry for key
func (r *Registry) Unregister(key Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[key]; !exists {
		return fmt.Errorf("key %q: %w", key, ErrUnknownRegistration)
	}
	delete(r.backends, key)
	return nil
}

// UnregisterBackend removes the entry holding backend
func (r *Registry) UnregisterBackend(backend Backend) error {
	if backend == nil {
		return fmt.Errorf("cannot unregister nil backend: %w", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, existing := range r.backends {
		if existing == backend {
			delete(r.backends, key)
			return nil
		}
	}
	return fmt.Errorf("backend %q: %w", backend.Key(), ErrUnknownRegistration)
}

// Resolve returns the backend registered under key
func (r *Registry) Resolve(key Key) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	backend, ok := r.backends[key]
	if !ok {
		return nil, fmt.Errorf("key %q: %w", key, ErrUnknownRegistration)
	}
	return backend, nil
}

// Keys returns all registered keys, sorted
func (r *Registry) Keys() []Key {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Key, 0, len(r.backends))
	for key := range r.backends {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of registered backends
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backends)
}

// Reset drops every entry without terminating the backends
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends = make(map[Key]Backend)
}

// defaultRegistry is the process-wide registry. It starts empty, is filled
// by backends registering themselves and is never cleared implicitly.
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}

// Register adds backend to the process-wide registry
func Register(key Key, backend Backend) error {
	return defaultRegistry.Register(key, backend)
}

// Unregister removes key from the process-wide registry
func Unregister(key Key) error {
	return defaultRegistry.Unregister(key)
}

// Resolve looks key up in the process-wide registry
func Resolve(key Key) (Backend, error) {
	return defaultRegistry.Resolve(key)
}
