package feed

import "strings"

// SwapOrientation mirrors an update whose source reported home and away in
// reversed order relative to the canonical orientation: team fields and the
// score are swapped, and directional market keys are rewritten by exchanging
// the literal "home"/"away" substrings.
func SwapOrientation(u EventUpdate) EventUpdate {
	u.HomeTeam, u.AwayTeam = u.AwayTeam, u.HomeTeam

	if u.Stats != nil {
		stats := *u.Stats
		if stats.Score != nil {
			stats.Score = &Score{Home: stats.Score.Away, Away: stats.Score.Home}
		}
		u.Stats = &stats
	}

	if len(u.Markets) > 0 {
		markets := make([]MarketUpdate, len(u.Markets))
		for i, m := range u.Markets {
			m.Key = SwapMarketKey(m.Key)
			markets[i] = m
		}
		u.Markets = markets
	}

	return u
}

// SwapMarketKey exchanges the "home" and "away" substrings in a market key,
// so "ml_home_ft" becomes "ml_away_ft" and "handicap_away_m1_5_ft" becomes
// "handicap_home_m1_5_ft". Keys without a direction pass through unchanged.
func SwapMarketKey(key string) string {
	const sentinel = "\x00"
	key = strings.ReplaceAll(key, "home", sentinel)
	key = strings.ReplaceAll(key, "away", "home")
	return strings.ReplaceAll(key, sentinel, "away")
}
