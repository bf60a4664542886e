package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/oddsync/oddsync/pkg/feed"
)

// fakeAdapter is a minimal feed.Adapter for engine and registry tests.
type fakeAdapter struct {
	id       string
	startErr error

	mu      sync.Mutex
	fn      feed.UpdateFunc
	started bool
	stopped bool
}

func (f *fakeAdapter) SourceID() string { return f.id }

func (f *fakeAdapter) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeAdapter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeAdapter) OnUpdate(fn feed.UpdateFunc) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *fakeAdapter) Status() feed.Status { return feed.StatusConnected }

func (f *fakeAdapter) emit(u feed.EventUpdate) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func (f *fakeAdapter) wasStarted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *fakeAdapter) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeAdapter) setStartErr(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// fakeFilterable is a fakeAdapter that accepts a target filter.
type fakeFilterable struct {
	fakeAdapter
	targets []feed.TargetEvent
}

func (f *fakeFilterable) SetTargetFilter(targets []feed.TargetEvent) {
	f.mu.Lock()
	f.targets = targets
	f.mu.Unlock()
}

func (f *fakeFilterable) gotTargets() []feed.TargetEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targets
}

// fakeAnchor is a fakeAdapter whose discovery completes immediately.
type fakeAnchor struct {
	fakeAdapter
	discoverErr error
	targets     []feed.TargetEvent
	onTargets   func([]feed.TargetEvent)
}

func (f *fakeAnchor) AwaitDiscovery(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.discoverErr
}

func (f *fakeAnchor) Targets() []feed.TargetEvent { return f.targets }

func (f *fakeAnchor) OnTargetsUpdated(fn func([]feed.TargetEvent)) {
	f.mu.Lock()
	f.onTargets = fn
	f.mu.Unlock()
}

func (f *fakeAnchor) rediscover(targets []feed.TargetEvent) {
	f.mu.Lock()
	f.targets = targets
	fn := f.onTargets
	f.mu.Unlock()
	if fn != nil {
		fn(targets)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeAdapter{id: "a"}); err != nil {
		t.Fatalf("First registration failed: %v", err)
	}
	if err := r.Register(&fakeAdapter{id: "a"}); err == nil {
		t.Error("Duplicate source id accepted")
	}
	if err := r.Register(&fakeAdapter{id: ""}); err == nil {
		t.Error("Empty source id accepted")
	}
}

func TestRegistryStartFailureIsolated(t *testing.T) {
	r := NewRegistry()
	broken := &fakeAdapter{id: "broken", startErr: errors.New("dial failed")}
	healthy := &fakeAdapter{id: "healthy"}
	r.Register(broken)
	r.Register(healthy)

	r.StartAll(context.Background())

	if !healthy.wasStarted() {
		t.Error("Healthy adapter blocked by its broken sibling")
	}
	if broken.wasStarted() {
		t.Error("Broken adapter reported as started")
	}
}

func TestRegistryStartAllExcept(t *testing.T) {
	r := NewRegistry()
	anchor := &fakeAdapter{id: "anchor"}
	secondary := &fakeAdapter{id: "secondary"}
	r.Register(anchor)
	r.Register(secondary)

	r.StartAllExcept(context.Background(), "anchor")

	if anchor.wasStarted() {
		t.Error("Excluded adapter was started")
	}
	if !secondary.wasStarted() {
		t.Error("Remaining adapter was not started")
	}
}

func TestRegistryFilterable(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeAdapter{id: "plain"})
	r.Register(&fakeFilterable{fakeAdapter: fakeAdapter{id: "filterable"}})

	if got := len(r.Filterable()); got != 1 {
		t.Errorf("Filterable count = %d, want 1", got)
	}
	if got := len(r.All()); got != 2 {
		t.Errorf("All count = %d, want 2", got)
	}
}

func TestRegistryStopAll(t *testing.T) {
	r := NewRegistry()
	a := &fakeAdapter{id: "a"}
	b := &fakeAdapter{id: "b"}
	r.Register(a)
	r.Register(b)

	r.StartAll(context.Background())
	r.StopAll()

	if !a.wasStopped() || !b.wasStopped() {
		t.Error("Not every adapter was stopped")
	}
}
