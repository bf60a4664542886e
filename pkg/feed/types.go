// Package feed defines the contracts between external feed adapters and the
// correlation engine: the normalized update every adapter must produce, the
// anchor target-event shape, and the adapter lifecycle interfaces.
package feed

import (
	"context"

	"github.com/shopspring/decimal"
)

// Status represents an adapter's connection lifecycle state.
type Status int32

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusError
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusError:
		return "error"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Event status values on the unified event.
const (
	EventScheduled = "scheduled"
	EventLive      = "live"
	EventEnded     = "ended"
	EventCanceled  = "canceled"
)

// Score is a home/away score pair.
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Stats carries live match statistics. Extra holds sport-specific fields
// (e.g. "sets", "corners") that pass through unmodified.
type Stats struct {
	Score   *Score            `json:"score,omitempty"`
	Period  string            `json:"period,omitempty"`
	Elapsed int               `json:"elapsed,omitempty"`
	Extra   map[string]string `json:"extra,omitempty"`
}

// MarketUpdate is one market quote from a source.
//
// Key follows the {marketType}_{encodedThreshold}_{timespan} grammar, e.g.
// "ml_home_ft", "o_2_5_ft", "handicap_away_m1_5_ft". TokenID, when present,
// is the source's execution identifier for that market.
type MarketUpdate struct {
	Key     string          `json:"key"`
	Value   decimal.Decimal `json:"value"`
	TokenID string          `json:"token_id,omitempty"`
}

// EventUpdate is the normalized update contract every adapter produces.
// It is immutable once emitted; the engine copies before mutating.
type EventUpdate struct {
	SourceID      string         `json:"source_id"`
	SourceEventID string         `json:"source_event_id"`
	Sport         string         `json:"sport"`
	League        string         `json:"league"`
	StartTime     int64          `json:"start_time"` // epoch ms
	HomeTeam      string         `json:"home_team"`
	AwayTeam      string         `json:"away_team"`
	Status        string         `json:"status,omitempty"`
	Slug          string         `json:"slug,omitempty"`
	Stats         *Stats         `json:"stats,omitempty"`
	Markets       []MarketUpdate `json:"markets,omitempty"`
	Timestamp     int64          `json:"timestamp"` // producer wall clock, epoch ms
}

// TargetEvent is one event discovered by the anchor feed. Secondary adapters
// use the list to self-filter before emitting updates.
type TargetEvent struct {
	EventID   string `json:"event_id"`
	HomeTeam  string `json:"home_team"`
	AwayTeam  string `json:"away_team"`
	HomeNorm  string `json:"home_norm"`
	AwayNorm  string `json:"away_norm"`
	Sport     string `json:"sport"`
	League    string `json:"league"`
	StartTime int64  `json:"start_time"`
}

// UpdateFunc receives normalized updates from an adapter. Implementations
// must not block the adapter's I/O loop.
type UpdateFunc func(EventUpdate)

// Adapter is the lifecycle contract every feed adapter implements.
//
// SourceID must be a stable, lowercase, process-wide-unique string. Start and
// Stop must be idempotent; Stop must tolerate an unstarted adapter.
type Adapter interface {
	SourceID() string
	Start(ctx context.Context) error
	Stop() error
	OnUpdate(fn UpdateFunc)
	Status() Status
}

// TargetFilterable marks an adapter that can restrict itself to the anchor's
// target list. The capability is recorded at registration time, not probed
// per call.
type TargetFilterable interface {
	SetTargetFilter(targets []TargetEvent)
}

// AnchorAdapter is the designated primary feed. Its discovered events define
// the funnel target list and its team names take naming precedence.
type AnchorAdapter interface {
	Adapter

	// AwaitDiscovery blocks until the initial discovery pass completes.
	AwaitDiscovery(ctx context.Context) error

	// Targets returns the current target-event list.
	Targets() []TargetEvent

	// OnTargetsUpdated registers a callback fired when re-discovery changes
	// the target list.
	OnTargetsUpdated(fn func([]TargetEvent))
}
