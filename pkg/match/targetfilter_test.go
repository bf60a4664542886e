package match

import (
	"testing"

	"github.com/oddsync/oddsync/pkg/feed"
)

func target(home, away string) feed.TargetEvent {
	return feed.TargetEvent{
		HomeTeam: home,
		AwayTeam: away,
		HomeNorm: NormalizeTeamName(home),
		AwayNorm: NormalizeTeamName(away),
		Sport:    "hockey",
	}
}

func TestTargetFilterExactPair(t *testing.T) {
	f := NewTargetFilter([]feed.TargetEvent{target("Arsenal", "Chelsea")}, 0)
	if !f.Check("Arsenal", "Chelsea") {
		t.Error("Exact pair rejected")
	}
	if !f.Check("Arsenal FC", "Chelsea FC") {
		t.Error("Suffix-only variant rejected")
	}
}

func TestTargetFilterSubstringBoost(t *testing.T) {
	// The anchor knows the short form; the secondary reports the long one.
	f := NewTargetFilter([]feed.TargetEvent{target("Barys", "Avangard")}, 0)
	if !f.Check("Barys Astana", "Avangard Omsk") {
		t.Error("Long-form names rejected despite whole-token substring")
	}

	// And the reverse: anchor long, secondary short.
	f = NewTargetFilter([]feed.TargetEvent{target("Barys Astana", "Avangard Omsk")}, 0)
	if !f.Check("Barys", "Avangard") {
		t.Error("Short-form names rejected")
	}
}

func TestTargetFilterPerTeamFloor(t *testing.T) {
	f := NewTargetFilter([]feed.TargetEvent{target("Barys Astana", "Avangard Omsk")}, 0)

	// One perfect team never carries an unrelated one through.
	if f.Check("Barys Astana", "Spartak Moscow") {
		t.Error("Pair passed with one unrelated team")
	}
	if f.Check("Lokomotiv", "Avangard Omsk") {
		t.Error("Pair passed with one unrelated team")
	}
}

func TestTargetFilterRejectsUnknownPair(t *testing.T) {
	f := NewTargetFilter([]feed.TargetEvent{target("Arsenal", "Chelsea")}, 0)
	if f.Check("Real Madrid", "Barcelona") {
		t.Error("Unknown pair passed the filter")
	}
	if f.Check("", "") {
		t.Error("Empty names passed the filter")
	}
}

func TestTargetFilterEmptyTargetsPassThrough(t *testing.T) {
	f := NewTargetFilter(nil, 0)
	if !f.Check("Anything", "At All") {
		t.Error("Empty target list must pass everything through")
	}
	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
}

func TestTargetFilterMultipleTargets(t *testing.T) {
	f := NewTargetFilter([]feed.TargetEvent{
		target("Arsenal", "Chelsea"),
		target("Barys Astana", "Avangard Omsk"),
	}, 0)

	if !f.Check("Barys", "Avangard") {
		t.Error("Second target not reachable")
	}
	if !f.Check("Arsenal", "Chelsea") {
		t.Error("First target not reachable")
	}
}
