// Package match resolves incoming feed updates to canonical event
// identities: text normalization, alias caches, league resolution, the
// anchor target filter, and the fuzzy event matcher.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// deaccent strips combining diacritics after canonical decomposition.
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// translit maps non-ASCII Latin letters that NFD cannot decompose.
var translit = map[rune]string{
	'ə': "e",
	'ø': "o",
	'ß': "ss",
	'æ': "ae",
	'œ': "oe",
	'đ': "d",
	'ð': "d",
	'þ': "th",
	'ł': "l",
	'ı': "i",
	'ŋ': "n",
}

// clubSuffixes are dropped as whole words so "Barys Astana HC" and
// "FC Barcelona" key the same as their bare names.
var clubSuffixes = map[string]bool{
	"fc":      true,
	"cf":      true,
	"fk":      true,
	"afc":     true,
	"sc":      true,
	"ac":      true,
	"bc":      true,
	"bk":      true,
	"hc":      true,
	"hk":      true,
	"if":      true,
	"utd":     true,
	"city":    true,
	"club":    true,
	"team":    true,
	"esports": true,
}

// NormalizeTeamName canonicalizes a raw team name for hash indexing and
// similarity scoring. The result uses "_" as the token separator and the
// function is idempotent: NormalizeTeamName(NormalizeTeamName(x)) ==
// NormalizeTeamName(x).
func NormalizeTeamName(name string) string {
	tokens := normalizeTokens(name)

	kept := tokens[:0]
	for _, tok := range tokens {
		if !clubSuffixes[tok] {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		// Name consisted entirely of suffix tokens; keep it as-is rather
		// than collapse to the empty string.
		kept = normalizeTokens(name)
	}

	return strings.Join(kept, "_")
}

// NormalizeLeague canonicalizes a raw league name. Same pipeline as team
// names minus the club-suffix stripping.
func NormalizeLeague(name string) string {
	return strings.Join(normalizeTokens(name), "_")
}

// normalizeTokens lowercases, strips diacritics, transliterates leftover
// non-ASCII Latin letters, drops parenthetical region codes like "(Kaz)",
// maps punctuation to separators, and splits into tokens.
func normalizeTokens(s string) []string {
	s = strings.ToLower(s)
	if out, _, err := transform.String(deaccent, s); err == nil {
		s = out
	}

	var b strings.Builder
	b.Grow(len(s))
	depth := 0
	for _, r := range s {
		switch {
		case r == '(':
			depth++
		case r == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// inside a parenthetical country/region code
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if t, ok := translit[r]; ok {
				b.WriteString(t)
			} else {
				b.WriteByte(' ')
			}
		}
	}

	return strings.Fields(b.String())
}
