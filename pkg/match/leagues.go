package match

import (
	"sync"
)

// League matching thresholds. Token containment is a strong signal and gets
// a score floor; plain fuzzy matches must clear acceptLeague.
const (
	leagueContainFloor = 0.90
	acceptLeague       = 0.75
)

// league is one canonical league entry.
type league struct {
	sport     string
	canonical string            // normalized canonical form, used in event ids
	display   string            // first-seen raw name
	aliases   map[string]string // source -> raw name
}

// LeagueBook is the per-sport canonical league registry. Raw league names
// resolve via an exact hash on the normalized form, falling back to a fuzzy
// scan over leagues of the same sport.
type LeagueBook struct {
	mu      sync.RWMutex
	bySport map[string][]*league
	index   map[string]*league // "sport:normalized" -> league
}

// NewLeagueBook returns an empty league registry.
func NewLeagueBook() *LeagueBook {
	return &LeagueBook{
		bySport: make(map[string][]*league),
		index:   make(map[string]*league),
	}
}

// Resolve maps a source's raw league name to the canonical league for the
// sport, creating a new canonical league when nothing scores high enough.
func (b *LeagueBook) Resolve(sport, rawLeague, source string) string {
	normalized := NormalizeLeague(rawLeague)
	if normalized == "" {
		normalized = "unknown"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := sport + ":" + normalized
	if lg, ok := b.index[key]; ok {
		lg.aliases[source] = rawLeague
		return lg.canonical
	}

	var best *league
	bestScore := 0.0
	for _, lg := range b.bySport[sport] {
		score := similarity(normalized, lg.canonical)
		if tokenContains(normalized, lg.canonical) && score < leagueContainFloor {
			score = leagueContainFloor
		}
		if score > bestScore {
			bestScore = score
			best = lg
		}
	}

	if best != nil && bestScore >= acceptLeague {
		// Index the raw form so the next update resolves on the fast path.
		b.index[key] = best
		best.aliases[source] = rawLeague
		return best.canonical
	}

	lg := &league{
		sport:     sport,
		canonical: normalized,
		display:   rawLeague,
		aliases:   map[string]string{source: rawLeague},
	}
	b.bySport[sport] = append(b.bySport[sport], lg)
	b.index[key] = lg
	return lg.canonical
}

// AddAlias teaches the registry that rawLeague refers to the given canonical
// league, after the event matcher confirms two events under different league
// names are the same match. If Resolve had already minted a separate league
// for the raw name, the alias is repointed and the orphan discarded so it
// cannot attract future fuzzy matches.
func (b *LeagueBook) AddAlias(sport, rawLeague, canonical, source string) {
	normalized := NormalizeLeague(rawLeague)
	if normalized == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	target, ok := b.index[sport+":"+canonical]
	if !ok {
		return
	}

	key := sport + ":" + normalized
	old := b.index[key]
	if old == target {
		return
	}
	b.index[key] = target
	target.aliases[source] = rawLeague
	if old != nil {
		b.dropIfOrphaned(old)
	}
}

// dropIfOrphaned removes a league from the per-sport scan list once no
// index entry points at it. Caller holds the lock.
func (b *LeagueBook) dropIfOrphaned(lg *league) {
	for _, indexed := range b.index {
		if indexed == lg {
			return
		}
	}
	leagues := b.bySport[lg.sport]
	for i, candidate := range leagues {
		if candidate == lg {
			b.bySport[lg.sport] = append(leagues[:i], leagues[i+1:]...)
			return
		}
	}
}

// Display returns the first-seen raw name for a canonical league.
func (b *LeagueBook) Display(sport, canonical string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lg, ok := b.index[sport+":"+canonical]; ok {
		return lg.display
	}
	return canonical
}
