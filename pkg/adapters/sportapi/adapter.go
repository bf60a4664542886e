// Package sportapi implements a filterable secondary adapter that polls a
// REST scores/odds API and emits normalized updates for events the anchor
// feed cares about.
package sportapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/oddsync/oddsync/pkg/feed"
	"github.com/oddsync/oddsync/pkg/match"
)

// Config holds adapter settings.
type Config struct {
	// SourceID must be stable, lowercase and unique; one sportapi instance
	// can run per upstream provider.
	SourceID string

	BaseURL string
	APIKey  string
	Sport   string

	PollInterval    time.Duration
	RateLimit       float64
	Burst           int
	FilterThreshold float64
}

// DefaultConfig returns defaults for a live scoreboard poll.
func DefaultConfig(sourceID, baseURL string) Config {
	return Config{
		SourceID:        sourceID,
		BaseURL:         baseURL,
		Sport:           "soccer",
		PollInterval:    5 * time.Second,
		RateLimit:       2,
		Burst:           1,
		FilterThreshold: match.DefaultFilterThreshold,
	}
}

// apiGame is one game in the provider's scoreboard payload.
type apiGame struct {
	ID        string             `json:"id"`
	League    string             `json:"league"`
	Kickoff   int64              `json:"kickoff"` // epoch ms
	HomeTeam  string             `json:"home_team"`
	AwayTeam  string             `json:"away_team"`
	Status    string             `json:"status"`
	HomeScore int                `json:"home_score"`
	AwayScore int                `json:"away_score"`
	Period    string             `json:"period"`
	Elapsed   int                `json:"elapsed"`
	Odds      map[string]float64 `json:"odds"` // market key -> decimal odds
}

// Adapter polls the provider and self-filters against the anchor's targets.
type Adapter struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter

	status int32 // atomic feed.Status

	mu       sync.Mutex
	onUpdate feed.UpdateFunc
	filter   *match.TargetFilter
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds the adapter.
func New(cfg Config) *Adapter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Adapter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		status:  int32(feed.StatusIdle),
	}
}

// SourceID implements feed.Adapter.
func (a *Adapter) SourceID() string { return a.cfg.SourceID }

// OnUpdate implements feed.Adapter.
func (a *Adapter) OnUpdate(fn feed.UpdateFunc) {
	a.mu.Lock()
	a.onUpdate = fn
	a.mu.Unlock()
}

// Status implements feed.Adapter.
func (a *Adapter) Status() feed.Status {
	return feed.Status(atomic.LoadInt32(&a.status))
}

// SetTargetFilter implements feed.TargetFilterable: subsequent polls only
// emit games matching the anchor's target list.
func (a *Adapter) SetTargetFilter(targets []feed.TargetEvent) {
	filter := match.NewTargetFilter(targets, a.cfg.FilterThreshold)
	a.mu.Lock()
	a.filter = filter
	a.mu.Unlock()
	log.Printf("[%s] Target filter set: %d targets", a.cfg.SourceID, len(targets))
}

// Start launches the poll loop. Idempotent.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	if a.cfg.BaseURL == "" {
		a.mu.Unlock()
		return fmt.Errorf("%s: no base URL configured", a.cfg.SourceID)
	}
	a.running = true
	ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	atomic.StoreInt32(&a.status, int32(feed.StatusConnecting))
	a.wg.Add(1)
	go a.pollLoop(ctx)
	return nil
}

// Stop halts the poll loop. Idempotent, safe on an unstarted adapter.
func (a *Adapter) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	a.wg.Wait()
	atomic.StoreInt32(&a.status, int32(feed.StatusStopped))
	return nil
}

func (a *Adapter) pollLoop(ctx context.Context) {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	a.poll(ctx)
	for {
		select {
		case <-ticker.C:
			a.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *Adapter) poll(ctx context.Context) {
	games, err := a.fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			atomic.StoreInt32(&a.status, int32(feed.StatusError))
			log.Printf("[%s] Poll failed: %v", a.cfg.SourceID, err)
		}
		return
	}
	atomic.StoreInt32(&a.status, int32(feed.StatusConnected))

	a.mu.Lock()
	filter := a.filter
	fn := a.onUpdate
	a.mu.Unlock()
	if fn == nil {
		return
	}

	now := time.Now().UnixMilli()
	for i := range games {
		g := &games[i]
		if filter != nil && !filter.Check(g.HomeTeam, g.AwayTeam) {
			continue
		}
		fn(a.toUpdate(g, now))
	}
}

func (a *Adapter) fetch(ctx context.Context) ([]apiGame, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/v1/scoreboard?sport="+a.cfg.Sport, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if a.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching scoreboard: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scoreboard API returned %d: %s", resp.StatusCode, string(body))
	}

	var games []apiGame
	if err := json.NewDecoder(resp.Body).Decode(&games); err != nil {
		return nil, fmt.Errorf("decoding scoreboard: %w", err)
	}
	return games, nil
}

// toUpdate converts one scoreboard game to the normalized contract.
func (a *Adapter) toUpdate(g *apiGame, now int64) feed.EventUpdate {
	u := feed.EventUpdate{
		SourceID:      a.cfg.SourceID,
		SourceEventID: g.ID,
		Sport:         a.cfg.Sport,
		League:        g.League,
		StartTime:     g.Kickoff,
		HomeTeam:      g.HomeTeam,
		AwayTeam:      g.AwayTeam,
		Status:        mapStatus(g.Status),
		Stats: &feed.Stats{
			Score:   &feed.Score{Home: g.HomeScore, Away: g.AwayScore},
			Period:  g.Period,
			Elapsed: g.Elapsed,
		},
		Timestamp: now,
	}

	for key, odds := range g.Odds {
		u.Markets = append(u.Markets, feed.MarketUpdate{
			Key:   key,
			Value: decimal.NewFromFloat(odds),
		})
	}
	return u
}

// mapStatus normalizes the provider's status vocabulary.
func mapStatus(s string) string {
	switch s {
	case "scheduled", "pre", "ns":
		return feed.EventScheduled
	case "live", "in", "ht":
		return feed.EventLive
	case "final", "ft", "post":
		return feed.EventEnded
	case "canceled", "cancelled", "postponed", "abandoned":
		return feed.EventCanceled
	default:
		return ""
	}
}
