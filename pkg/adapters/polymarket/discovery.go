package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/oddsync/oddsync/pkg/feed"
	"github.com/oddsync/oddsync/pkg/match"
)

// trackedMarket links one CLOB token back to the event and market key it
// quotes, so a price frame can be turned into an update without a lookup
// round-trip.
type trackedMarket struct {
	eventID   string // source event id
	slug      string
	league    string
	startTime int64
	homeTeam  string
	awayTeam  string
	key       string // market key, e.g. "ml_home_ft"
}

// discover runs one REST discovery pass: list active events per configured
// league tag, parse team pairs out of the titles, and rebuild the target
// list and token index.
func (a *Adapter) discover(ctx context.Context) error {
	var targets []feed.TargetEvent
	byToken := make(map[string]trackedMarket)
	var updates []feed.EventUpdate

	for _, tag := range a.cfg.LeagueTags {
		events, err := a.listEvents(ctx, tag)
		if err != nil {
			return fmt.Errorf("list events for %s: %w", tag, err)
		}

		for i := range events {
			ev := &events[i]
			if ev.Closed {
				continue
			}
			home, away, ok := splitTitleTeams(ev.Title)
			if !ok {
				continue
			}

			league := tag
			for _, t := range ev.Tags {
				if strings.EqualFold(t.Slug, tag) && t.Label != "" {
					league = t.Label
					break
				}
			}

			start := ev.startTime()
			targets = append(targets, feed.TargetEvent{
				EventID:   ev.Slug,
				HomeTeam:  home,
				AwayTeam:  away,
				HomeNorm:  match.NormalizeTeamName(home),
				AwayNorm:  match.NormalizeTeamName(away),
				Sport:     a.cfg.Sport,
				League:    league,
				StartTime: start,
			})

			update := feed.EventUpdate{
				SourceID:      SourceID,
				SourceEventID: ev.ID,
				Sport:         a.cfg.Sport,
				League:        league,
				StartTime:     start,
				HomeTeam:      home,
				AwayTeam:      away,
				Slug:          ev.Slug,
			}

			for j := range ev.Markets {
				mkt := &ev.Markets[j]
				if mkt.Closed {
					continue
				}
				key := marketKey(mkt, home, away)
				if key == "" {
					continue
				}

				tokens := decodeStringArray(mkt.ClobTokenIDs)
				prices := decodeStringArray(mkt.OutcomePrices)
				if len(tokens) == 0 {
					continue
				}
				// First token/price is the YES side.
				tok := tokens[0]
				byToken[tok] = trackedMarket{
					eventID:   ev.ID,
					slug:      ev.Slug,
					league:    league,
					startTime: start,
					homeTeam:  home,
					awayTeam:  away,
					key:       key,
				}

				if len(prices) > 0 {
					if price, err := decimal.NewFromString(prices[0]); err == nil {
						update.Markets = append(update.Markets, feed.MarketUpdate{
							Key:     key,
							Value:   price,
							TokenID: tok,
						})
					}
				}
			}

			if len(update.Markets) > 0 {
				updates = append(updates, update)
			}
		}
	}

	a.setDiscovered(targets, byToken)

	// Seed the engine with the discovery-time prices.
	for _, u := range updates {
		a.emit(u)
	}
	return nil
}

// listEvents fetches active, unresolved events for one league tag.
func (a *Adapter) listEvents(ctx context.Context, tag string) ([]apiEvent, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("tag_slug", tag)
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", "100")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.RESTBaseURL+"/events?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("events API returned %d: %s", resp.StatusCode, string(body))
	}

	var events []apiEvent
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return events, nil
}

// marketKey maps an outcome market to the flat key grammar: the draw market
// and the two moneylines. Anything else (totals, props) is skipped here;
// secondary feeds carry those.
func marketKey(mkt *apiMarket, home, away string) string {
	title := mkt.GroupItemTitle
	if title == "" {
		title = mkt.Question
	}
	norm := match.NormalizeTeamName(title)

	switch {
	case strings.Contains(strings.ToLower(title), "draw"):
		return "draw_ft"
	case norm == match.NormalizeTeamName(home):
		return "ml_home_ft"
	case norm == match.NormalizeTeamName(away):
		return "ml_away_ft"
	default:
		return ""
	}
}
