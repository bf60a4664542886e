package match

import (
	"github.com/oddsync/oddsync/pkg/feed"
)

// DefaultFilterThreshold is the default average-score acceptance threshold
// for the target filter.
const DefaultFilterThreshold = 0.75

// TargetFilter scores an arbitrary (home, away) pair against the anchor's
// target list. Secondary adapters use it to drop events the anchor does not
// care about before emitting updates.
type TargetFilter struct {
	targets   []feed.TargetEvent
	threshold float64
}

// NewTargetFilter builds a filter over the given targets. A threshold of 0
// selects DefaultFilterThreshold.
func NewTargetFilter(targets []feed.TargetEvent, threshold float64) *TargetFilter {
	if threshold <= 0 {
		threshold = DefaultFilterThreshold
	}
	return &TargetFilter{targets: targets, threshold: threshold}
}

// Check reports whether the pair matches any target. An empty target list
// passes everything through.
func (f *TargetFilter) Check(home, away string) bool {
	if len(f.targets) == 0 {
		return true
	}

	nh := NormalizeTeamName(home)
	na := NormalizeTeamName(away)
	if nh == "" || na == "" {
		return false
	}

	// Each team must individually clear the floor; a near-perfect average
	// short-circuits.
	floor := f.threshold - 0.10
	if floor < 0.70 {
		floor = 0.70
	}

	best := 0.0
	for _, t := range f.targets {
		hs := teamScore(nh, t.HomeNorm)
		as := teamScore(na, t.AwayNorm)
		if hs < floor || as < floor {
			continue
		}
		avg := (hs + as) / 2
		if avg >= 0.98 {
			return true
		}
		if avg > best {
			best = avg
		}
	}

	return best >= f.threshold
}

// Len returns the number of targets.
func (f *TargetFilter) Len() int {
	return len(f.targets)
}

// teamScore is Jaro-Winkler with a substring boost: when the shorter name is
// a whole-token prefix or infix of the longer one ("barys" in
// "barys_astana"), the score is raised to 0.90 so abbreviated forms clear
// the filter.
func teamScore(a, b string) float64 {
	score := similarity(a, b)
	if score < 0.90 && tokenPrefixOrInfix(a, b) {
		score = 0.90
	}
	return score
}
