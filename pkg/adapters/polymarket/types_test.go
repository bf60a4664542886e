package polymarket

import "testing"

func TestSplitTitleTeams(t *testing.T) {
	cases := []struct {
		title string
		home  string
		away  string
		ok    bool
	}{
		{"Arsenal vs. Chelsea", "Arsenal", "Chelsea", true},
		{"Arsenal vs Chelsea", "Arsenal", "Chelsea", true},
		{"Barys Astana v Avangard Omsk", "Barys Astana", "Avangard Omsk", true},
		{"Real Madrid v. Barcelona", "Real Madrid", "Barcelona", true},
		{"Liverpool vs. Chelsea: Total Goals", "Liverpool", "Chelsea", true},
		{"Liverpool vs. Chelsea?", "Liverpool", "Chelsea", true},
		{"Will Arsenal win the league?", "", "", false},
		{"vs. Chelsea", "", "", false},
		{"", "", "", false},
	}

	for _, c := range cases {
		home, away, ok := splitTitleTeams(c.title)
		if ok != c.ok || home != c.home || away != c.away {
			t.Errorf("splitTitleTeams(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.title, home, away, ok, c.home, c.away, c.ok)
		}
	}
}

func TestDecodeStringArray(t *testing.T) {
	got := decodeStringArray(`["0.52", "0.48"]`)
	if len(got) != 2 || got[0] != "0.52" || got[1] != "0.48" {
		t.Errorf("Wrong decoded array: %v", got)
	}

	if got := decodeStringArray(""); got != nil {
		t.Errorf("Empty input decoded to %v", got)
	}
	if got := decodeStringArray("not json"); got != nil {
		t.Errorf("Garbage input decoded to %v", got)
	}
}

func TestEventStartTime(t *testing.T) {
	ev := apiEvent{StartDate: "2026-03-14T15:00:00Z"}
	want := int64(1773500400000)
	if got := ev.startTime(); got != want {
		t.Errorf("startTime = %d, want %d", got, want)
	}

	ev = apiEvent{StartDate: "not a date"}
	if got := ev.startTime(); got != 0 {
		t.Errorf("Bad date parsed to %d", got)
	}
	ev = apiEvent{}
	if got := ev.startTime(); got != 0 {
		t.Errorf("Empty date parsed to %d", got)
	}
}

func TestMarketKey(t *testing.T) {
	home, away := "Arsenal FC", "Chelsea"

	cases := []struct {
		mkt  apiMarket
		want string
	}{
		{apiMarket{GroupItemTitle: "Draw"}, "draw_ft"},
		{apiMarket{GroupItemTitle: "Arsenal"}, "ml_home_ft"},
		{apiMarket{GroupItemTitle: "Chelsea"}, "ml_away_ft"},
		{apiMarket{Question: "Arsenal"}, "ml_home_ft"}, // GroupItemTitle fallback
		{apiMarket{GroupItemTitle: "Over 2.5 Goals"}, ""},
	}

	for _, c := range cases {
		if got := marketKey(&c.mkt, home, away); got != c.want {
			t.Errorf("marketKey(%q/%q) = %q, want %q", c.mkt.GroupItemTitle, c.mkt.Question, got, c.want)
		}
	}
}
