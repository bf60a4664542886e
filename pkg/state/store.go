package state

import (
	"log"
	"sync"
	"time"

	"github.com/oddsync/oddsync/pkg/feed"
)

// DefaultGracePeriod is how long an ended event is retained before the
// sweep deletes it, giving downstream consumers a settlement tail.
const DefaultGracePeriod = 5 * time.Minute

// Store holds every live canonical event. Update merges one source's view
// into the unified record and reports which facts actually changed; Sweep
// evicts dead events past the grace window.
type Store struct {
	mu           sync.RWMutex
	events       map[string]*UnifiedEvent
	anchorSource string
	grace        time.Duration
	now          func() time.Time
}

// NewStore builds a store. anchorSource names the feed whose team names
// override sticky display names; a zero grace selects DefaultGracePeriod.
func NewStore(anchorSource string, grace time.Duration) *Store {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Store{
		events:       make(map[string]*UnifiedEvent),
		anchorSource: anchorSource,
		grace:        grace,
		now:          time.Now,
	}
}

// Update merges an (already orientation-corrected) update into the event,
// creating it on first sight, and returns the event plus the keys whose
// values actually changed. Re-reporting an unchanged value yields no key.
func (s *Store) Update(eventID string, u feed.EventUpdate, canonicalLeague string) (*UnifiedEvent, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()

	ev, exists := s.events[eventID]
	if !exists {
		ev = &UnifiedEvent{
			ID:             eventID,
			Sport:          u.Sport,
			League:         canonicalLeague,
			StartTime:      u.StartTime,
			Status:         feed.EventScheduled,
			LeagueAliases:  make(map[string]string),
			Home:           TeamInfo{Aliases: make(map[string]string)},
			Away:           TeamInfo{Aliases: make(map[string]string)},
			Markets:        make(map[string]map[string]Quote),
			Tokens:         make(map[string]string),
			SourceEventIDs: make(map[string]string),
		}
		s.events[eventID] = ev
	}

	var changed []string

	// Market slots are per source under each key: the same source
	// re-reporting the same value is a no-op, but a second source reporting
	// a different value is a visible divergence.
	for _, mkt := range u.Markets {
		slots, ok := ev.Markets[mkt.Key]
		if !ok {
			slots = make(map[string]Quote)
			ev.Markets[mkt.Key] = slots
		}
		prev, had := slots[u.SourceID]
		if !had || !prev.Value.Equal(mkt.Value) {
			changed = append(changed, mkt.Key)
		}
		slots[u.SourceID] = Quote{Value: mkt.Value, Timestamp: u.Timestamp}
		if mkt.TokenID != "" {
			ev.Tokens[mkt.Key] = mkt.TokenID
		}
	}

	if u.Stats != nil {
		changed = append(changed, s.mergeStats(ev, u.Stats)...)
	}

	if u.Status != "" && u.Status != ev.Status {
		ev.Status = u.Status
		changed = append(changed, KeyStatus)
	}

	// Last write wins for aliases and the anchor slug; the display name is
	// sticky unless the anchor source corrects it.
	ev.Home.Aliases[u.SourceID] = u.HomeTeam
	ev.Away.Aliases[u.SourceID] = u.AwayTeam
	ev.LeagueAliases[u.SourceID] = u.League
	if ev.Home.Name == "" || u.SourceID == s.anchorSource {
		ev.Home.Name = u.HomeTeam
	}
	if ev.Away.Name == "" || u.SourceID == s.anchorSource {
		ev.Away.Name = u.AwayTeam
	}
	if u.Slug != "" {
		ev.Slug = u.Slug
	}
	if u.SourceEventID != "" {
		ev.SourceEventIDs[u.SourceID] = u.SourceEventID
	}

	ev.LastUpdate = now
	return ev, changed
}

// mergeStats merges field by field. A score change is tracked under
// KeyScore and the prior score is retained before being overwritten.
func (s *Store) mergeStats(ev *UnifiedEvent, st *feed.Stats) []string {
	var changed []string

	if st.Score != nil {
		cur := ev.Stats.Score
		if cur == nil || cur.Home != st.Score.Home || cur.Away != st.Score.Away {
			if cur != nil {
				prev := *cur
				ev.PrevScore = &prev
			}
			score := *st.Score
			ev.Stats.Score = &score
			changed = append(changed, KeyScore)
		}
	}
	if st.Period != "" {
		ev.Stats.Period = st.Period
	}
	if st.Elapsed > 0 {
		ev.Stats.Elapsed = st.Elapsed
	}
	if len(st.Extra) > 0 {
		if ev.Stats.Extra == nil {
			ev.Stats.Extra = make(map[string]string, len(st.Extra))
		}
		for k, v := range st.Extra {
			ev.Stats.Extra[k] = v
		}
	}

	return changed
}

// Sweep deletes events that finished longer ago than the grace window and
// returns their ids so the caller can purge the matcher indices. Scheduled
// and live events are never swept, regardless of age. A swept id is gone
// for good: a later update mints a fresh canonical event.
func (s *Store) Sweep() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.grace).UnixMilli()

	var swept []string
	for id, ev := range s.events {
		if ev.Status != feed.EventEnded && ev.Status != feed.EventCanceled {
			continue
		}
		if ev.LastUpdate > cutoff {
			continue
		}
		delete(s.events, id)
		swept = append(swept, id)
	}

	if len(swept) > 0 {
		log.Printf("[STORE] Swept %d finished events (%d remaining)", len(swept), len(s.events))
	}
	return swept
}

// Get returns the live event record. The pointer is shared with the store;
// callers outside the engine's write transaction must treat it as
// read-only.
func (s *Store) Get(id string) (*UnifiedEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	return ev, ok
}

// Snapshot returns copies of every event, safe to serve concurrently.
func (s *Store) Snapshot() []UnifiedEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UnifiedEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, copyEvent(ev))
	}
	return out
}

// Len returns the number of live events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// SetClock overrides the store's clock. Tests only.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func copyEvent(ev *UnifiedEvent) UnifiedEvent {
	out := *ev

	out.LeagueAliases = copyStrings(ev.LeagueAliases)
	out.Tokens = copyStrings(ev.Tokens)
	out.SourceEventIDs = copyStrings(ev.SourceEventIDs)
	out.Home.Aliases = copyStrings(ev.Home.Aliases)
	out.Away.Aliases = copyStrings(ev.Away.Aliases)
	out.Stats.Extra = copyStrings(ev.Stats.Extra)

	if ev.Stats.Score != nil {
		score := *ev.Stats.Score
		out.Stats.Score = &score
	}
	if ev.PrevScore != nil {
		prev := *ev.PrevScore
		out.PrevScore = &prev
	}

	out.Markets = make(map[string]map[string]Quote, len(ev.Markets))
	for key, slots := range ev.Markets {
		dup := make(map[string]Quote, len(slots))
		for src, q := range slots {
			dup[src] = q
		}
		out.Markets[key] = dup
	}

	return out
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
