package match

import "testing"

func TestLeagueBookResolveAcronym(t *testing.T) {
	book := NewLeagueBook()

	full := book.Resolve("soccer", "English Premier League", "a")
	if full != "english_premier_league" {
		t.Fatalf("Wrong canonical league: %q", full)
	}

	// The acronym must fold into the existing league, not mint a new one.
	if got := book.Resolve("soccer", "EPL", "b"); got != full {
		t.Errorf("EPL resolved to %q, want %q", got, full)
	}

	// And now the raw form is indexed for the fast path.
	if got := book.Resolve("soccer", "EPL", "c"); got != full {
		t.Errorf("Indexed EPL resolved to %q, want %q", got, full)
	}
}

func TestLeagueBookResolveAcronymFirst(t *testing.T) {
	// Order independence: the acronym seen first becomes canonical and the
	// full name folds into it.
	book := NewLeagueBook()

	short := book.Resolve("soccer", "EPL", "a")
	if short != "epl" {
		t.Fatalf("Wrong canonical league: %q", short)
	}
	if got := book.Resolve("soccer", "English Premier League", "b"); got != short {
		t.Errorf("Full name resolved to %q, want %q", got, short)
	}
}

func TestLeagueBookSportsIsolated(t *testing.T) {
	book := NewLeagueBook()
	book.Resolve("soccer", "EPL", "a")

	// A different sport never fuzzy-matches across the sport boundary.
	if got := book.Resolve("hockey", "English Premier League", "a"); got != "english_premier_league" {
		t.Errorf("Cross-sport resolution leaked: got %q", got)
	}
}

func TestLeagueBookAddAliasRepoints(t *testing.T) {
	book := NewLeagueBook()
	canonical := book.Resolve("soccer", "Premier League", "a")

	// A raw name too far for fuzzy resolution mints its own league first.
	minted := book.Resolve("soccer", "ENG Premier", "b")
	if minted == canonical {
		t.Fatalf("Test premise broken: %q fuzzy-matched %q", minted, canonical)
	}

	book.AddAlias("soccer", "ENG Premier", canonical, "b")
	if got := book.Resolve("soccer", "ENG Premier", "c"); got != canonical {
		t.Errorf("Taught alias resolved to %q, want %q", got, canonical)
	}
}

func TestLeagueBookAddAliasUnknownCanonical(t *testing.T) {
	book := NewLeagueBook()
	book.AddAlias("soccer", "EPL", "no_such_league", "a")

	// Nothing learned; the raw name still mints its own league.
	if got := book.Resolve("soccer", "EPL", "a"); got != "epl" {
		t.Errorf("Resolve after bad AddAlias: got %q, want %q", got, "epl")
	}
}

func TestLeagueBookDisplay(t *testing.T) {
	book := NewLeagueBook()
	canonical := book.Resolve("soccer", "English Premier League", "a")
	book.Resolve("soccer", "EPL", "b")

	if got := book.Display("soccer", canonical); got != "English Premier League" {
		t.Errorf("Display = %q, want first-seen raw name", got)
	}
}
