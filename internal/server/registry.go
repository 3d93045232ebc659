package server

import (
	"log/slog"
	"sync"

	"github.com/jengzang/traffic-backend-go/internal/handler"
	"github.com/jengzang/traffic-backend-go/internal/protocol"
)

// Registry maps request types to handler factories. The first registration
// of a type wins.
type Registry struct {
	mu        sync.RWMutex
	factories map[protocol.RequestType]handler.Factory
}

// NewRegistry creates a registry holding entries.
func NewRegistry(entries ...handler.Entry) *Registry {
	r := &Registry{factories: make(map[protocol.RequestType]handler.Factory)}
	for _, e := range entries {
		r.Register(e.Type, e.Factory)
	}
	return r
}

// Register adds f for t and reports whether it was added. Duplicates are
// ignored.
func (r *Registry) Register(t protocol.RequestType, f handler.Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[t]; exists {
		slog.Warn("duplicate handler registration ignored", "type", t.String())
		return false
	}
	r.factories[t] = f
	slog.Debug("handler registered", "type", t.String())
	return true
}

// Lookup returns the factory for t.
func (r *Registry) Lookup(t protocol.RequestType) (handler.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.factories[t]
	return f, ok
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
