// Package polymarket implements the anchor feed adapter: rate-limited REST
// discovery of sports events (which defines the funnel's target list) plus
// a live market-data WebSocket for price updates.
package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/oddsync/oddsync/pkg/feed"
	"github.com/oddsync/oddsync/pkg/wss"
)

// SourceID is this adapter's stable source identifier.
const SourceID = "polymarket"

// Config holds adapter settings.
type Config struct {
	RESTBaseURL string
	WSSURL      string

	// Sport and LeagueTags select which event tags to discover.
	Sport      string
	LeagueTags []string

	DiscoveryInterval time.Duration
	RateLimit         float64
	Burst             int
}

// DefaultConfig returns production endpoints and cadence.
func DefaultConfig() Config {
	return Config{
		RESTBaseURL:       "https://gamma-api.polymarket.com",
		WSSURL:            "wss://ws-subscriptions-clob.polymarket.com/ws/market",
		Sport:             "soccer",
		LeagueTags:        []string{"epl", "la-liga"},
		DiscoveryInterval: 5 * time.Minute,
		RateLimit:         10,
		Burst:             5,
	}
}

// Adapter is the anchor feed adapter.
type Adapter struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter

	mu        sync.Mutex
	onUpdate  feed.UpdateFunc
	onTargets func([]feed.TargetEvent)
	targets   []feed.TargetEvent
	byToken   map[string]trackedMarket
	running   bool
	cancel    context.CancelFunc
	ws        *wss.Client

	discoveredCh chan struct{}
	discoverOnce sync.Once
	wg           sync.WaitGroup
}

// New builds the adapter.
func New(cfg Config) *Adapter {
	def := DefaultConfig()
	if cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = def.RESTBaseURL
	}
	if cfg.WSSURL == "" {
		cfg.WSSURL = def.WSSURL
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = def.DiscoveryInterval
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	return &Adapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		byToken:      make(map[string]trackedMarket),
		discoveredCh: make(chan struct{}),
	}
}

// SourceID implements feed.Adapter.
func (a *Adapter) SourceID() string { return SourceID }

// OnUpdate implements feed.Adapter.
func (a *Adapter) OnUpdate(fn feed.UpdateFunc) {
	a.mu.Lock()
	a.onUpdate = fn
	a.mu.Unlock()
}

// OnTargetsUpdated implements feed.AnchorAdapter.
func (a *Adapter) OnTargetsUpdated(fn func([]feed.TargetEvent)) {
	a.mu.Lock()
	a.onTargets = fn
	a.mu.Unlock()
}

// Targets implements feed.AnchorAdapter.
func (a *Adapter) Targets() []feed.TargetEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]feed.TargetEvent, len(a.targets))
	copy(out, a.targets)
	return out
}

// AwaitDiscovery blocks until the initial discovery pass finishes.
func (a *Adapter) AwaitDiscovery(ctx context.Context) error {
	select {
	case <-a.discoveredCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status implements feed.Adapter.
func (a *Adapter) Status() feed.Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ws != nil {
		return a.ws.Status()
	}
	if a.running {
		return feed.StatusConnecting
	}
	return feed.StatusIdle
}

// Start runs discovery and the live price stream. Idempotent.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run(ctx)
	return nil
}

// Stop tears everything down. Idempotent, safe on an unstarted adapter.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.cancel
	ws := a.ws
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ws != nil {
		ws.Close()
	}
	a.wg.Wait()
	return nil
}

func (a *Adapter) run(ctx context.Context) {
	defer a.wg.Done()

	if err := a.discover(ctx); err != nil {
		log.Printf("[%s] Initial discovery failed: %v", SourceID, err)
		if errors.Is(err, context.Canceled) {
			return
		}
	}

	client := wss.NewClient(wss.DefaultConfig(a.cfg.WSSURL), wss.Handlers{
		OnConnect:    a.subscribe,
		OnMessage:    a.handleFrame,
		OnDisconnect: func(err error) { log.Printf("[%s] Stream dropped: %v", SourceID, err) },
	})
	a.mu.Lock()
	a.ws = client
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		client.Run(ctx)
	}()

	ticker := time.NewTicker(a.cfg.DiscoveryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.discover(ctx); err != nil {
				log.Printf("[%s] Re-discovery failed: %v", SourceID, err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// subscribe sends the market-channel subscription for every tracked token.
// Runs on every (re)connect.
func (a *Adapter) subscribe() {
	a.mu.Lock()
	tokens := make([]string, 0, len(a.byToken))
	for tok := range a.byToken {
		tokens = append(tokens, tok)
	}
	ws := a.ws
	a.mu.Unlock()

	if ws == nil || len(tokens) == 0 {
		return
	}
	if err := ws.Send(wsSubscribe{Type: "market", AssetsIDs: tokens}); err != nil {
		log.Printf("[%s] Subscribe failed: %v", SourceID, err)
	}
}

// handleFrame turns a price_change frame into a normalized update.
func (a *Adapter) handleFrame(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.EventType != "price_change" {
		return
	}

	a.mu.Lock()
	tracked, ok := a.byToken[msg.AssetID]
	a.mu.Unlock()
	if !ok {
		return
	}

	price, err := decimal.NewFromString(msg.Price)
	if err != nil {
		return
	}

	ts := time.Now().UnixMilli()
	if msg.Timestamp != "" {
		if n, err := strconv.ParseInt(msg.Timestamp, 10, 64); err == nil {
			ts = n
		}
	}

	a.emit(feed.EventUpdate{
		SourceID:      SourceID,
		SourceEventID: tracked.eventID,
		Sport:         a.cfg.Sport,
		League:        tracked.league,
		StartTime:     tracked.startTime,
		HomeTeam:      tracked.homeTeam,
		AwayTeam:      tracked.awayTeam,
		Slug:          tracked.slug,
		Markets: []feed.MarketUpdate{{
			Key:     tracked.key,
			Value:   price,
			TokenID: msg.AssetID,
		}},
		Timestamp: ts,
	})
}

// setDiscovered installs a discovery pass's results, fires the targets
// callback when the list changed, and marks initial discovery complete.
func (a *Adapter) setDiscovered(targets []feed.TargetEvent, byToken map[string]trackedMarket) {
	a.mu.Lock()
	changed := targetsDiffer(a.targets, targets)
	a.targets = targets
	a.byToken = byToken
	onTargets := a.onTargets
	a.mu.Unlock()

	log.Printf("[%s] Discovery: %d targets, %d tokens", SourceID, len(targets), len(byToken))
	a.discoverOnce.Do(func() { close(a.discoveredCh) })

	if changed && onTargets != nil {
		onTargets(targets)
	}
	a.subscribe()
}

func (a *Adapter) emit(u feed.EventUpdate) {
	if u.Timestamp == 0 {
		u.Timestamp = time.Now().UnixMilli()
	}
	a.mu.Lock()
	fn := a.onUpdate
	a.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func targetsDiffer(a, b []feed.TargetEvent) bool {
	if len(a) != len(b) {
		return true
	}
	seen := make(map[string]bool, len(a))
	for _, t := range a {
		seen[t.EventID] = true
	}
	for _, t := range b {
		if !seen[t.EventID] {
			return true
		}
	}
	return false
}
