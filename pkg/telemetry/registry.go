package telemetry

import "sync"

// CallbackHandler receives driver callbacks routed by a Registry.
type CallbackHandler interface {
	HandleCallback(ev CallbackEvent)
}

// Subscription handles are only unique within one backend, so owners are
// keyed by both. Backends must be comparable (pointer types are).
type registryKey struct {
	backend Backend
	sub     Subscription
}

// Registry maps subscription handles to the collector that owns them.
// The driver calls back on its own threads, so every access is locked.
type Registry struct {
	mu     sync.RWMutex
	owners map[registryKey]CallbackHandler
}

func NewRegistry() *Registry {
	return &Registry{owners: make(map[registryKey]CallbackHandler)}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry { return defaultRegistry }

func (r *Registry) Register(backend Backend, sub Subscription, owner CallbackHandler) {
	r.mu.Lock()
	r.owners[registryKey{backend, sub}] = owner
	r.mu.Unlock()
}

func (r *Registry) Unregister(backend Backend, sub Subscription) {
	r.mu.Lock()
	delete(r.owners, registryKey{backend, sub})
	r.mu.Unlock()
}

func (r *Registry) Lookup(backend Backend, sub Subscription) (CallbackHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.owners[registryKey{backend, sub}]
	return owner, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}

// Trampoline returns the Callback handed to backend.Subscribe. Events for
// subscriptions nobody owns (not yet registered, or already released)
// are dropped.
func (r *Registry) Trampoline(backend Backend) Callback {
	return func(sub Subscription, ev CallbackEvent) {
		if owner, ok := r.Lookup(backend, sub); ok {
			owner.HandleCallback(ev)
		}
	}
}
