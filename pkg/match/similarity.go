package match

import (
	"strings"

	"github.com/xrash/smetrics"
)

// similarity scores two normalized names in [0, 1] using Jaro-Winkler.
func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// tokenContains reports whether every token of the shorter name appears in
// the longer one, or the shorter name is the acronym of the longer one's
// tokens ("epl" vs "english_premier_league"). Tokens are "_"-separated.
func tokenContains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}

	longTokens := strings.Split(long, "_")
	have := make(map[string]bool, len(longTokens))
	for _, t := range longTokens {
		have[t] = true
	}

	all := true
	for _, t := range strings.Split(short, "_") {
		if !have[t] {
			all = false
			break
		}
	}
	if all {
		return true
	}

	// Acronym: single short token matching the initials of the long name.
	if len(longTokens) >= 2 && !strings.Contains(short, "_") && len(short) == len(longTokens) {
		for i, t := range longTokens {
			if t == "" || t[0] != short[i] {
				return false
			}
		}
		return true
	}

	return false
}

// tokenPrefixOrInfix reports whether the shorter normalized name appears as
// a whole-token prefix or infix of the longer one ("barys" in
// "barys_astana"). Names shorter than three characters never qualify, to
// avoid degenerate short-string matches.
func tokenPrefixOrInfix(a, b string) bool {
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < 3 || short == long {
		return false
	}
	return strings.HasPrefix(long, short+"_") || strings.Contains(long, "_"+short+"_")
}
