package engine

import (
	"sync/atomic"
	"testing"

	"github.com/oddsync/oddsync/pkg/state"
)

func TestDispatcherOrder(t *testing.T) {
	d := NewDispatcher()

	var calls []string
	d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		calls = append(calls, "first")
	})
	d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		calls = append(calls, "second")
	})

	d.Emit(&state.UnifiedEvent{ID: "ev1"}, []string{"ml_home_ft"}, "a")

	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("Observers ran out of order: %v", calls)
	}
}

func TestDispatcherPanicIsolation(t *testing.T) {
	d := NewDispatcher()

	panicSource := ""
	d.OnPanic(func(source string) { panicSource = source })

	d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		panic("observer bug")
	})

	called := false
	d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		called = true
	})

	d.Emit(&state.UnifiedEvent{ID: "ev1"}, []string{"score"}, "a")

	if !called {
		t.Error("Panic in one observer starved the next")
	}
	if panicSource != "a" {
		t.Errorf("Panic hook got source %q, want %q", panicSource, "a")
	}
}

func TestDispatcherUnregister(t *testing.T) {
	d := NewDispatcher()

	count := 0
	id := d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		count++
	})
	if d.Count() != 1 {
		t.Fatalf("Count = %d, want 1", d.Count())
	}

	d.Emit(&state.UnifiedEvent{ID: "ev1"}, []string{"score"}, "a")
	d.Unregister(id)
	d.Emit(&state.UnifiedEvent{ID: "ev1"}, []string{"score"}, "a")

	if count != 1 {
		t.Errorf("Observer called %d times, want 1", count)
	}
	if d.Count() != 0 {
		t.Errorf("Count = %d after unregister, want 0", d.Count())
	}

	// Unknown handles are ignored.
	d.Unregister("no-such-handle")
}

func TestDispatcherConcurrentEmitUnregister(t *testing.T) {
	d := NewDispatcher()

	var calls int64
	d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {
		atomic.AddInt64(&calls, 1)
	})

	ids := make([]string, 0, 512)
	for i := 0; i < 512; i++ {
		ids = append(ids, d.Register(func(ev *state.UnifiedEvent, changed []string, source string) {}))
	}

	// Emit on one goroutine while the observer list is compacted on another.
	done := make(chan struct{})
	go func() {
		defer close(done)
		ev := &state.UnifiedEvent{ID: "ev1"}
		for i := 0; i < 500; i++ {
			d.Emit(ev, []string{"score"}, "a")
		}
	}()

	for _, id := range ids {
		d.Unregister(id)
	}
	<-done

	if atomic.LoadInt64(&calls) == 0 {
		t.Error("Surviving observer was never called")
	}
	if d.Count() != 1 {
		t.Errorf("Count = %d after unregistering, want 1", d.Count())
	}
}
