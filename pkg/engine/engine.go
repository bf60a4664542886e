package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/oddsync/oddsync/pkg/feed"
	"github.com/oddsync/oddsync/pkg/match"
	"github.com/oddsync/oddsync/pkg/state"
)

// Config is the engine configuration surface.
type Config struct {
	// FuzzyThreshold gates matches inside a sport:league:date block.
	FuzzyThreshold float64

	// CrossSourceThreshold gates the stricter global fallback scan.
	CrossSourceThreshold float64

	// TeamMappingsPath points at the curated boot-time team mappings file.
	TeamMappingsPath string

	// CleanupInterval is the periodic sweep cadence.
	CleanupInterval time.Duration

	// GracePeriod is how long ended events are retained before eviction.
	GracePeriod time.Duration

	// KickoffTolerance is accepted for configuration compatibility but is
	// not consulted by the matching algorithm.
	KickoffTolerance time.Duration

	// AnchorSource is the source id whose team names take precedence.
	AnchorSource string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		FuzzyThreshold:       0.75,
		CrossSourceThreshold: 0.88,
		CleanupInterval:      time.Minute,
		GracePeriod:          state.DefaultGracePeriod,
	}
}

// Engine orchestrates the per-update pipeline: adapter callback -> matcher
// -> store -> dispatcher. All writers are serialized onto one transaction
// mutex so matching, merging and dispatch are atomic relative to each other
// and to the periodic sweep.
type Engine struct {
	cfg        *Config
	registry   *Registry
	matcher    *match.Matcher
	store      *state.Store
	dispatcher *Dispatcher
	metrics    *Metrics
	anchor     feed.AnchorAdapter

	txMu sync.Mutex // serializes match -> merge -> dispatch and the sweep

	mu      sync.Mutex // lifecycle
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds an engine, loading the persisted team mappings.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	teams := match.LoadTeamBook(cfg.TeamMappingsPath)
	matcher := match.NewMatcher(match.Config{
		FuzzyThreshold:       cfg.FuzzyThreshold,
		CrossSourceThreshold: cfg.CrossSourceThreshold,
	}, teams, match.NewLeagueBook())

	e := &Engine{
		cfg:        cfg,
		registry:   NewRegistry(),
		matcher:    matcher,
		store:      state.NewStore(cfg.AnchorSource, cfg.GracePeriod),
		dispatcher: NewDispatcher(),
		metrics:    NewMetrics(),
	}
	e.dispatcher.OnPanic(func(source string) {
		e.metrics.ObserverPanics.WithLabelValues(source).Inc()
	})
	return e
}

// RegisterAdapter wires an adapter's updates into the pipeline. The adapter
// detected as the anchor (feed.AnchorAdapter) drives the funnel startup;
// registering a second anchor is an error.
func (e *Engine) RegisterAdapter(a feed.Adapter) error {
	anchor, isAnchor := a.(feed.AnchorAdapter)
	if isAnchor && e.anchor != nil {
		// Reject before touching the registry, so the extra anchor is not
		// left behind as a wired secondary.
		return fmt.Errorf("anchor adapter already registered (%s)", e.anchor.SourceID())
	}

	if err := e.registry.Register(a); err != nil {
		return err
	}
	a.OnUpdate(e.handleUpdate)

	if isAnchor {
		e.anchor = anchor
	}
	return nil
}

// RegisterObserver adds a downstream consumer and returns its handle.
func (e *Engine) RegisterObserver(fn Observer) string {
	return e.dispatcher.Register(fn)
}

// UnregisterObserver removes a consumer by handle.
func (e *Engine) UnregisterObserver(id string) {
	e.dispatcher.Unregister(id)
}

// Start launches the adapters. With an anchor registered it runs the funnel
// sequence: anchor first, await discovery, push its targets into every
// filterable adapter, then start the rest. Without one, everything starts
// concurrently and unfiltered. A failing anchor is a startup error; failing
// secondaries are logged and isolated.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.mu.Unlock()

	if e.anchor != nil {
		log.Printf("[ENGINE] Funnel startup: anchor=%s", e.anchor.SourceID())
		if err := e.anchor.Start(ctx); err != nil {
			e.failStart()
			return fmt.Errorf("anchor %s failed to start: %w", e.anchor.SourceID(), err)
		}
		if err := e.anchor.AwaitDiscovery(ctx); err != nil {
			e.anchor.Stop()
			e.failStart()
			return fmt.Errorf("anchor %s discovery: %w", e.anchor.SourceID(), err)
		}
		e.propagateTargets(e.anchor.Targets())
		e.anchor.OnTargetsUpdated(e.propagateTargets)
		e.registry.StartAllExcept(ctx, e.anchor.SourceID())
	} else {
		log.Printf("[ENGINE] No anchor registered, starting all adapters unfiltered")
		e.registry.StartAll(ctx)
	}

	e.wg.Add(1)
	go e.sweepLoop()

	log.Printf("[ENGINE] Running with %d adapters", len(e.registry.All()))
	return nil
}

// failStart rolls the lifecycle back after a failed funnel startup, so a
// later Start attempt runs the sequence again instead of no-opping.
func (e *Engine) failStart() {
	e.mu.Lock()
	e.running = false
	e.stopCh = nil
	e.mu.Unlock()
}

// Stop halts the sweep and every adapter. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()
	e.registry.StopAll()
	log.Printf("[ENGINE] Stopped")
}

// Events returns a snapshot of every tracked event.
func (e *Engine) Events() []state.UnifiedEvent {
	return e.store.Snapshot()
}

// Event returns the live record for one event id.
func (e *Engine) Event(id string) (*state.UnifiedEvent, bool) {
	return e.store.Get(id)
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Registry returns the adapter registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// handleUpdate is the per-update transaction: resolve the canonical
// identity, mirror a swapped update, merge, and dispatch on real change —
// all under the transaction mutex.
func (e *Engine) handleUpdate(u feed.EventUpdate) {
	start := time.Now()

	e.txMu.Lock()
	res := e.matcher.Match(u)
	if res.Swapped {
		u = feed.SwapOrientation(u)
	}
	ev, changed := e.store.Update(res.EventID, u, res.League)
	if len(changed) > 0 {
		e.dispatcher.Emit(ev, changed, u.SourceID)
	}
	tracked := e.store.Len()
	e.txMu.Unlock()

	feedSec := -1.0
	if u.Timestamp > 0 {
		feedSec = time.Since(time.UnixMilli(u.Timestamp)).Seconds()
	}
	e.metrics.RecordUpdate(u.SourceID, res.Path, res.Swapped, len(changed), time.Since(start).Seconds(), feedSec)
	e.metrics.TrackedEvents.Set(float64(tracked))
}

// propagateTargets pushes the anchor's target list into every filterable
// adapter. Called at funnel startup and again on each re-discovery.
func (e *Engine) propagateTargets(targets []feed.TargetEvent) {
	filterable := e.registry.Filterable()
	for _, f := range filterable {
		f.SetTargetFilter(targets)
	}
	log.Printf("[ENGINE] Propagated %d targets to %d filterable adapters", len(targets), len(filterable))
}

func (e *Engine) sweepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.txMu.Lock()
			swept := e.store.Sweep()
			for _, id := range swept {
				e.matcher.RemoveEvent(id)
			}
			remaining := e.store.Len()
			e.txMu.Unlock()

			e.metrics.RecordSweep(len(swept), remaining)
			for _, a := range e.registry.All() {
				e.metrics.AdapterStatus.WithLabelValues(a.SourceID()).Set(float64(a.Status()))
			}

		case <-e.stopCh:
			return
		}
	}
}
