package match

import (
	"strings"
	"sync"
	"time"

	"github.com/oddsync/oddsync/pkg/feed"
)

// Match resolution paths, in the order they are attempted.
const (
	PathCached      = "cached"
	PathExact       = "exact"
	PathBlock       = "block"
	PathCrossSource = "cross_source"
	PathCreated     = "created"
)

// Config holds the matcher thresholds.
type Config struct {
	// FuzzyThreshold is the minimum average team score for a match inside
	// a sport:league:date block.
	FuzzyThreshold float64

	// CrossSourceThreshold is the stricter minimum for the global fallback
	// scan across all events, where the candidate pool is larger.
	CrossSourceThreshold float64
}

// DefaultConfig returns the default matcher thresholds.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold:       0.75,
		CrossSourceThreshold: 0.88,
	}
}

// Result is the outcome of resolving one update.
type Result struct {
	// EventID is the canonical event id the update belongs to.
	EventID string

	// League is the canonical league for the event.
	League string

	// Swapped is set when the source reported home/away reversed relative
	// to the canonical orientation; the caller must mirror the update
	// before merging.
	Swapped bool

	// Created is set when no existing event matched and a new canonical
	// event was minted.
	Created bool

	// Path names the resolution step that produced the match.
	Path string
}

// eventTeams is the matcher-side record of a canonical event.
type eventTeams struct {
	sport  string
	league string
	date   string
	home   string // canonical normalized home name
	away   string // canonical normalized away name
}

// Matcher resolves (sport, league, date, home, away, source) tuples to
// canonical event ids. All indices are instance-owned so isolated matchers
// can run concurrently in tests.
type Matcher struct {
	mu      sync.Mutex
	cfg     Config
	teams   *TeamBook
	leagues *LeagueBook

	byBlock map[string][]string        // "sport:league:date" -> event ids
	byPair  map[string]string          // "sport:home_vs_away" -> event id
	byTeam  map[string]string          // "sport:team" -> event id
	events  map[string]*eventTeams     // event id -> teams
	sources map[string]map[string]bool // event id -> confirmed source ids
}

// NewMatcher builds a matcher over the given alias caches.
func NewMatcher(cfg Config, teams *TeamBook, leagues *LeagueBook) *Matcher {
	def := DefaultConfig()
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = def.FuzzyThreshold
	}
	if cfg.CrossSourceThreshold <= 0 {
		cfg.CrossSourceThreshold = def.CrossSourceThreshold
	}
	if teams == nil {
		teams = NewTeamBook()
	}
	if leagues == nil {
		leagues = NewLeagueBook()
	}
	return &Matcher{
		cfg:     cfg,
		teams:   teams,
		leagues: leagues,
		byBlock: make(map[string][]string),
		byPair:  make(map[string]string),
		byTeam:  make(map[string]string),
		events:  make(map[string]*eventTeams),
		sources: make(map[string]map[string]bool),
	}
}

// Leagues returns the league registry the matcher resolves against.
func (m *Matcher) Leagues() *LeagueBook { return m.leagues }

// Teams returns the team alias cache.
func (m *Matcher) Teams() *TeamBook { return m.teams }

// Match resolves an update to a canonical event id, creating a new event
// when nothing matches. It never fails: an unmatched update is a new event,
// not an error.
func (m *Matcher) Match(u feed.EventUpdate) Result {
	sport := strings.ToLower(strings.TrimSpace(u.Sport))
	league := m.leagues.Resolve(sport, u.League, u.SourceID)
	date := time.UnixMilli(u.StartTime).UTC().Format("2006-01-02")

	m.mu.Lock()
	defer m.mu.Unlock()

	// Fast path: both names already have cached canonical forms.
	if ch, okH := m.teams.Lookup(u.SourceID, u.HomeTeam); okH {
		if ca, okA := m.teams.Lookup(u.SourceID, u.AwayTeam); okA {
			if id, ok := m.byPair[pairKey(sport, ch, ca)]; ok {
				return m.matched(id, u, league, false, PathCached)
			}
			if id, ok := m.byPair[pairKey(sport, ca, ch)]; ok {
				return m.matched(id, u, league, true, PathCached)
			}
		}
	}

	nh := NormalizeTeamName(u.HomeTeam)
	na := NormalizeTeamName(u.AwayTeam)

	// Exact path on freshly normalized names, both orientations.
	if id, ok := m.byPair[pairKey(sport, nh, na)]; ok {
		return m.matched(id, u, league, false, PathExact)
	}
	if id, ok := m.byPair[pairKey(sport, na, nh)]; ok {
		return m.matched(id, u, league, true, PathExact)
	}

	// Blocked fuzzy match: only candidates sharing sport, league and date.
	block := blockKey(sport, league, date)
	if id, swapped, ok := m.scan(m.byBlock[block], nh, na, m.cfg.FuzzyThreshold); ok {
		return m.matched(id, u, league, swapped, PathBlock)
	}

	// Cross-source fallback over every event this source has not already
	// been confirmed on, at the stricter threshold.
	if id, swapped, ok := m.scan(m.crossCandidates(sport, u.SourceID, nh, na), nh, na, m.cfg.CrossSourceThreshold); ok {
		return m.matched(id, u, league, swapped, PathCrossSource)
	}

	// No match anywhere: mint a new canonical event.
	id := sport + ":" + league + ":" + date + ":" + nh + "_vs_" + na
	m.events[id] = &eventTeams{sport: sport, league: league, date: date, home: nh, away: na}
	m.byBlock[block] = append(m.byBlock[block], id)
	m.byPair[pairKey(sport, nh, na)] = id
	if _, taken := m.byTeam[teamKey(sport, nh)]; !taken {
		m.byTeam[teamKey(sport, nh)] = id
	}
	if _, taken := m.byTeam[teamKey(sport, na)]; !taken {
		m.byTeam[teamKey(sport, na)] = id
	}
	m.learn(id, u, false)
	m.confirm(id, u.SourceID)

	return Result{EventID: id, League: league, Created: true, Path: PathCreated}
}

// RemoveEvent purges a swept event from every index so it cannot produce
// stale matches. A later update for the same real-world match creates a
// fresh canonical event.
func (m *Matcher) RemoveEvent(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evt, ok := m.events[id]
	if !ok {
		return
	}

	delete(m.events, id)
	delete(m.sources, id)
	delete(m.byPair, pairKey(evt.sport, evt.home, evt.away))

	for _, team := range []string{evt.home, evt.away} {
		key := teamKey(evt.sport, team)
		if m.byTeam[key] == id {
			delete(m.byTeam, key)
		}
	}

	block := blockKey(evt.sport, evt.league, evt.date)
	ids := m.byBlock[block]
	for i, candidate := range ids {
		if candidate == id {
			m.byBlock[block] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byBlock[block]) == 0 {
		delete(m.byBlock, block)
	}
}

// EventCount returns the number of indexed canonical events.
func (m *Matcher) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// matched finalizes a successful resolution: learns the source's aliases so
// its next update takes the O(1) fast path, confirms the source, and teaches
// the league registry when the update arrived under a different league name.
func (m *Matcher) matched(id string, u feed.EventUpdate, resolvedLeague string, swapped bool, path string) Result {
	evt := m.events[id]
	m.learn(id, u, swapped)
	m.confirm(id, u.SourceID)

	if evt.league != resolvedLeague {
		m.leagues.AddAlias(evt.sport, u.League, evt.league, u.SourceID)
	}

	return Result{EventID: id, League: evt.league, Swapped: swapped, Path: path}
}

// scan fuzzy-compares the update's normalized names against each candidate
// in both orientations. A candidate orientation is eligible only when both
// team scores individually clear the per-team gate; the best eligible
// average wins and must clear the threshold.
func (m *Matcher) scan(ids []string, nh, na string, threshold float64) (string, bool, bool) {
	gate := threshold - 0.12
	if gate < 0.70 {
		gate = 0.70
	}

	bestID := ""
	bestAvg := 0.0
	bestSwapped := false

	for _, id := range ids {
		evt, ok := m.events[id]
		if !ok {
			continue
		}

		hs := similarity(nh, evt.home)
		as := similarity(na, evt.away)
		if hs >= gate && as >= gate {
			if avg := (hs + as) / 2; avg > bestAvg {
				bestID, bestAvg, bestSwapped = id, avg, false
			}
		}

		hs = similarity(nh, evt.away)
		as = similarity(na, evt.home)
		if hs >= gate && as >= gate {
			if avg := (hs + as) / 2; avg > bestAvg {
				bestID, bestAvg, bestSwapped = id, avg, true
			}
		}
	}

	if bestID == "" || bestAvg < threshold {
		return "", false, false
	}
	return bestID, bestSwapped, true
}

// crossCandidates lists every event the source has not been confirmed on,
// with exact team-name hits first so the common case stays cheap.
func (m *Matcher) crossCandidates(sport, source, nh, na string) []string {
	ids := make([]string, 0, len(m.events))
	seen := make(map[string]bool, 2)

	for _, team := range []string{nh, na} {
		if id, ok := m.byTeam[teamKey(sport, team)]; ok && !m.sources[id][source] && !seen[id] {
			ids = append(ids, id)
			seen[id] = true
		}
	}
	for id := range m.events {
		if m.events[id].sport == sport && !m.sources[id][source] && !seen[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Matcher) learn(id string, u feed.EventUpdate, swapped bool) {
	evt := m.events[id]
	if evt == nil {
		return
	}
	if swapped {
		m.teams.Cache(u.SourceID, u.HomeTeam, evt.away)
		m.teams.Cache(u.SourceID, u.AwayTeam, evt.home)
	} else {
		m.teams.Cache(u.SourceID, u.HomeTeam, evt.home)
		m.teams.Cache(u.SourceID, u.AwayTeam, evt.away)
	}
}

func (m *Matcher) confirm(id, source string) {
	set, ok := m.sources[id]
	if !ok {
		set = make(map[string]bool)
		m.sources[id] = set
	}
	set[source] = true
}

func pairKey(sport, home, away string) string {
	return sport + ":" + home + "_vs_" + away
}

func teamKey(sport, team string) string {
	return sport + ":" + team
}

func blockKey(sport, league, date string) string {
	return sport + ":" + league + ":" + date
}
