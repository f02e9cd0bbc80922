package operator

import (
	"sort"
	"sync"

	"github.com/arivox/arivox/internal/call"
)

// Registry is the process-wide table of live calls, keyed by call ID. It is
// the only state shared between the telephony event loop and the operator
// plane; reads take snapshots so neither side holds the other's locks.
type Registry struct {
	mu    sync.RWMutex
	calls map[string]*call.Orchestrator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{calls: make(map[string]*call.Orchestrator)}
}

// Add registers o under its call ID, replacing any prior entry.
func (r *Registry) Add(o *call.Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[o.ID()] = o
}

// Remove drops the call with the given ID. Unknown IDs are a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.calls, id)
}

// Get returns the call with the given ID.
func (r *Registry) Get(id string) (*call.Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.calls[id]
	return o, ok
}

// Snapshot returns the live calls sorted by ID.
func (r *Registry) Snapshot() []*call.Orchestrator {
	r.mu.RLock()
	out := make([]*call.Orchestrator, 0, len(r.calls))
	for _, o := range r.calls {
		out = append(out, o)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of live calls.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.calls)
}
