package polymarket

import (
	"encoding/json"
	"strings"
	"time"
)

// apiEvent is one event from the discovery REST API.
type apiEvent struct {
	ID        string      `json:"id"`
	Slug      string      `json:"slug"`
	Title     string      `json:"title"`
	StartDate string      `json:"startDate"`
	Closed    bool        `json:"closed"`
	Markets   []apiMarket `json:"markets"`
	Tags      []apiTag    `json:"tags"`
}

// apiMarket is one outcome market under an event. The API double-encodes
// outcome and token arrays as JSON strings.
type apiMarket struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	Slug           string `json:"slug"`
	GroupItemTitle string `json:"groupItemTitle"`
	OutcomePrices  string `json:"outcomePrices"`
	ClobTokenIDs   string `json:"clobTokenIds"`
	Closed         bool   `json:"closed"`
}

type apiTag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// wsMessage is a frame from the market data channel.
type wsMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Market    string `json:"market"`
	Price     string `json:"price"`
	Timestamp string `json:"timestamp"`
}

// wsSubscribe is the market-channel subscription request.
type wsSubscribe struct {
	Type      string   `json:"type"`
	AssetsIDs []string `json:"assets_ids"`
}

// startTime parses the event's start date to epoch ms.
func (e *apiEvent) startTime() int64 {
	if e.StartDate == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, e.StartDate)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// decodeStringArray unpacks the API's double-encoded JSON string arrays,
// e.g. "[\"0.52\", \"0.48\"]".
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// splitTitleTeams extracts (home, away) from an event title like
// "Arsenal vs. Chelsea" or "Barys Astana v Avangard Omsk".
func splitTitleTeams(title string) (string, string, bool) {
	title = strings.TrimSpace(title)
	for _, sep := range []string{" vs. ", " vs ", " v. ", " v "} {
		idx := strings.Index(title, sep)
		if idx <= 0 {
			continue
		}
		home := strings.TrimSpace(title[:idx])
		away := strings.TrimSpace(title[idx+len(sep):])
		// Drop trailing qualifiers: "Chelsea: O/U 2.5", "Chelsea?"
		for _, cut := range []string{":", "?"} {
			if j := strings.Index(away, cut); j > 0 {
				away = strings.TrimSpace(away[:j])
			}
		}
		if home != "" && away != "" {
			return home, away, true
		}
	}
	return "", "", false
}
