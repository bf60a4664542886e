// Package state owns the canonical per-event records: one mutable
// UnifiedEvent per resolved identity, merged from every source's updates
// with per-source change detection.
package state

import (
	"github.com/shopspring/decimal"

	"github.com/oddsync/oddsync/pkg/feed"
)

// Reserved change keys. Market keys report themselves; score and status
// changes are tracked under these.
const (
	KeyScore  = "score"
	KeyStatus = "status"
)

// TeamInfo is one side of a unified event: the canonical display name plus
// every source's raw alias.
type TeamInfo struct {
	// Name is the canonical display name. It is set once and stays sticky,
	// except the designated anchor source may overwrite it.
	Name string `json:"name"`

	// Aliases maps source id to the raw name that source reports.
	Aliases map[string]string `json:"aliases,omitempty"`
}

// Quote is one source's last-known value for a market key.
type Quote struct {
	Value     decimal.Decimal `json:"value"`
	Timestamp int64           `json:"timestamp"`
}

// UnifiedEvent is the canonical merged view of one real-world match across
// all sources.
type UnifiedEvent struct {
	ID        string `json:"id"`
	Sport     string `json:"sport"`
	League    string `json:"league"` // canonical league
	StartTime int64  `json:"start_time"`
	Status    string `json:"status"`

	// LeagueAliases maps source id to the raw league name it reports.
	LeagueAliases map[string]string `json:"league_aliases,omitempty"`

	Home TeamInfo `json:"home"`
	Away TeamInfo `json:"away"`

	Stats feed.Stats `json:"stats"`

	// PrevScore is the score before the most recent score change, retained
	// for downstream goal classification.
	PrevScore *feed.Score `json:"prev_score,omitempty"`

	// Markets maps market key -> source id -> that source's last quote.
	// One slot per source: a source never clobbers another's value.
	Markets map[string]map[string]Quote `json:"markets"`

	// Tokens maps market key to the execution token id, when a source
	// supplied one.
	Tokens map[string]string `json:"tokens,omitempty"`

	// SourceEventIDs maps source id to that source's native event id.
	SourceEventIDs map[string]string `json:"source_event_ids,omitempty"`

	// Slug is the anchor source's market slug, for execution lookups.
	Slug string `json:"slug,omitempty"`

	// LastUpdate is when the event was last merged into, epoch ms.
	LastUpdate int64 `json:"last_update"`
}
