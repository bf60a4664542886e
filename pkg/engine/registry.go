package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/oddsync/oddsync/pkg/feed"
)

// registered is one adapter plus the capabilities recorded at registration
// time, so the engine never probes at runtime.
type registered struct {
	adapter    feed.Adapter
	filterable feed.TargetFilterable // nil when the adapter cannot self-filter
}

// Registry tracks adapters and starts/stops them concurrently, isolating
// per-adapter failures: one broken adapter never blocks its siblings.
type Registry struct {
	mu    sync.Mutex
	byID  map[string]*registered
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*registered)}
}

// Register adds an adapter. Source ids must be unique process-wide.
func (r *Registry) Register(a feed.Adapter) error {
	id := a.SourceID()
	if id == "" {
		return fmt.Errorf("adapter has empty source id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("adapter %q already registered", id)
	}

	entry := &registered{adapter: a}
	if f, ok := a.(feed.TargetFilterable); ok {
		entry.filterable = f
	}
	r.byID[id] = entry
	r.order = append(r.order, id)
	return nil
}

// Get returns the adapter with the given source id.
func (r *Registry) Get(id string) (feed.Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return entry.adapter, true
}

// All returns the adapters in registration order.
func (r *Registry) All() []feed.Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]feed.Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].adapter)
	}
	return out
}

// Filterable returns every adapter that accepted the target-filter
// capability at registration.
func (r *Registry) Filterable() []feed.TargetFilterable {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []feed.TargetFilterable
	for _, id := range r.order {
		if f := r.byID[id].filterable; f != nil {
			out = append(out, f)
		}
	}
	return out
}

// StartAll starts every adapter concurrently.
func (r *Registry) StartAll(ctx context.Context) {
	r.StartAllExcept(ctx, "")
}

// StartAllExcept starts every adapter but the named one concurrently. Start
// failures are logged per adapter and do not block the others.
func (r *Registry) StartAllExcept(ctx context.Context, except string) {
	var wg sync.WaitGroup
	for _, a := range r.All() {
		if a.SourceID() == except {
			continue
		}
		wg.Add(1)
		go func(a feed.Adapter) {
			defer wg.Done()
			if err := a.Start(ctx); err != nil {
				log.Printf("[REGISTRY] Failed to start %s: %v", a.SourceID(), err)
			}
		}(a)
	}
	wg.Wait()
}

// StopAll stops every adapter concurrently, isolating failures.
func (r *Registry) StopAll() {
	var wg sync.WaitGroup
	for _, a := range r.All() {
		wg.Add(1)
		go func(a feed.Adapter) {
			defer wg.Done()
			if err := a.Stop(); err != nil {
				log.Printf("[REGISTRY] Failed to stop %s: %v", a.SourceID(), err)
			}
		}(a)
	}
	wg.Wait()
}
