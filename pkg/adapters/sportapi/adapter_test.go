package sportapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/oddsync/oddsync/pkg/feed"
	"github.com/oddsync/oddsync/pkg/match"
)

const scoreboard = `[
	{
		"id": "g1",
		"league": "Premier League",
		"kickoff": 1773500400000,
		"home_team": "Manchester United",
		"away_team": "Liverpool",
		"status": "live",
		"home_score": 1,
		"away_score": 0,
		"period": "1H",
		"elapsed": 23,
		"odds": {"ml_home_ft": 1.85, "draw_ft": 3.4}
	},
	{
		"id": "g2",
		"league": "Premier League",
		"kickoff": 1773500400000,
		"home_team": "Brentford",
		"away_team": "Fulham",
		"status": "ns",
		"odds": {"ml_home_ft": 2.1}
	}
]`

func TestAdapterPollFiltersAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/scoreboard" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-API-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(scoreboard))
	}))
	defer srv.Close()

	cfg := DefaultConfig("scores", srv.URL)
	cfg.APIKey = "secret"
	a := New(cfg)

	var mu sync.Mutex
	var updates []feed.EventUpdate
	a.OnUpdate(func(u feed.EventUpdate) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	// The anchor only cares about the first fixture.
	a.SetTargetFilter([]feed.TargetEvent{{
		HomeTeam: "Man United",
		AwayTeam: "Liverpool",
		HomeNorm: match.NormalizeTeamName("Man United"),
		AwayNorm: match.NormalizeTeamName("Liverpool"),
	}})

	a.poll(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(updates) != 1 {
		t.Fatalf("Emitted %d updates, want 1 (filtered)", len(updates))
	}

	u := updates[0]
	if u.SourceID != "scores" || u.SourceEventID != "g1" {
		t.Errorf("Wrong identity: source=%q event=%q", u.SourceID, u.SourceEventID)
	}
	if u.Status != feed.EventLive {
		t.Errorf("Wrong status: %q", u.Status)
	}
	if u.Stats == nil || u.Stats.Score.Home != 1 || u.Stats.Score.Away != 0 {
		t.Errorf("Wrong score: %+v", u.Stats)
	}
	if len(u.Markets) != 2 {
		t.Fatalf("Got %d markets, want 2", len(u.Markets))
	}
	for _, m := range u.Markets {
		if m.Key == "ml_home_ft" && !m.Value.Equal(decimal.NewFromFloat(1.85)) {
			t.Errorf("Wrong moneyline: %s", m.Value)
		}
	}

	if a.Status() != feed.StatusConnected {
		t.Errorf("Status = %v after a good poll, want connected", a.Status())
	}
}

func TestAdapterPollErrorSetsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := New(DefaultConfig("scores", srv.URL))
	a.OnUpdate(func(feed.EventUpdate) { t.Error("Emitted an update from a failed poll") })

	a.poll(context.Background())

	if a.Status() != feed.StatusError {
		t.Errorf("Status = %v after a failed poll, want error", a.Status())
	}
}

func TestAdapterStartRequiresBaseURL(t *testing.T) {
	a := New(DefaultConfig("scores", ""))
	if err := a.Start(context.Background()); err == nil {
		t.Error("Start accepted an empty base URL")
	}
	if err := a.Stop(); err != nil {
		t.Errorf("Stop on unstarted adapter: %v", err)
	}
}

func TestMapStatus(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"scheduled", feed.EventScheduled},
		{"ns", feed.EventScheduled},
		{"live", feed.EventLive},
		{"ht", feed.EventLive},
		{"ft", feed.EventEnded},
		{"final", feed.EventEnded},
		{"postponed", feed.EventCanceled},
		{"abandoned", feed.EventCanceled},
		{"weird", ""},
	}

	for _, c := range cases {
		if got := mapStatus(c.in); got != c.want {
			t.Errorf("mapStatus(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
