// Package engine wires adapters through the matcher and state store and
// fans resulting change signals out to registered observers.
package engine

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/oddsync/oddsync/pkg/state"
)

// Observer receives a change signal: the merged event, the keys that
// changed, and the source that caused the change. Observers run
// synchronously on the hot path and must not block.
type Observer func(ev *state.UnifiedEvent, changed []string, source string)

type observerEntry struct {
	id string
	fn Observer
}

// Dispatcher fans change signals out to observers in registration order.
// A panicking observer is logged and skipped; it never aborts the remaining
// observers or propagates to the caller.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []observerEntry
	onPanic   func(source string)
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// OnPanic sets a hook invoked after an observer panic is recovered,
// e.g. to bump a metric.
func (d *Dispatcher) OnPanic(fn func(source string)) {
	d.mu.Lock()
	d.onPanic = fn
	d.mu.Unlock()
}

// Register appends an observer and returns a handle for Unregister.
func (d *Dispatcher) Register(fn Observer) string {
	id := uuid.NewString()
	d.mu.Lock()
	d.observers = append(d.observers, observerEntry{id: id, fn: fn})
	d.mu.Unlock()
	return id
}

// Unregister removes the observer with the given handle.
func (d *Dispatcher) Unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, entry := range d.observers {
		if entry.id == id {
			d.observers = append(d.observers[:i], d.observers[i+1:]...)
			return
		}
	}
}

// Emit invokes every observer with the signal. The entries are copied under
// the lock: Unregister compacts the list in place, so iterating the shared
// backing array outside the lock would race with it.
func (d *Dispatcher) Emit(ev *state.UnifiedEvent, changed []string, source string) {
	d.mu.RLock()
	observers := make([]observerEntry, len(d.observers))
	copy(observers, d.observers)
	onPanic := d.onPanic
	d.mu.RUnlock()

	for _, entry := range observers {
		safeCall(entry.fn, ev, changed, source, onPanic)
	}
}

// Count returns the number of registered observers.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.observers)
}

// safeCall is the per-observer error boundary: a downstream signal bug must
// never fail the hot path.
func safeCall(fn Observer, ev *state.UnifiedEvent, changed []string, source string, onPanic func(string)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[DISPATCH] Observer panic on %s from %s: %v", ev.ID, source, r)
			if onPanic != nil {
				onPanic(source)
			}
		}
	}()
	fn(ev, changed, source)
}
