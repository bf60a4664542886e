package match

import "testing"

func TestSimilarity(t *testing.T) {
	if got := similarity("liverpool", "liverpool"); got != 1 {
		t.Errorf("Identical names scored %f, want 1", got)
	}
	if got := similarity("", "liverpool"); got != 0 {
		t.Errorf("Empty name scored %f, want 0", got)
	}

	if got := similarity("manchester", "manchester_united"); got < 0.88 {
		t.Errorf("Prefix variant scored %f, want >= 0.88", got)
	}
	if got := similarity("zenit", "chelsea"); got > 0.70 {
		t.Errorf("Unrelated names scored %f, want <= 0.70", got)
	}
}

func TestTokenContains(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"premier_league", "english_premier_league", true},
		{"liga", "la_liga", true},
		{"epl", "english_premier_league", true},  // acronym
		{"nba", "national_basketball_association", true},
		{"ecl", "english_premier_league", false}, // wrong initials
		{"champions_league", "english_premier_league", false},
		{"", "english_premier_league", false},
		{"serie_a", "serie_a", true},
	}

	for _, c := range cases {
		if got := tokenContains(c.a, c.b); got != c.want {
			t.Errorf("tokenContains(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestTokenPrefixOrInfix(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"barys", "barys_astana", true},
		{"real", "real_madrid_castilla", true},
		{"madrid", "real_madrid_castilla", true}, // infix
		{"astana", "barys_astana", false},        // suffix does not qualify
		{"ba", "barys_astana", false},            // too short
		{"barys_astana", "barys_astana", false},  // equal names are not a substring case
		{"spartak", "barys_astana", false},
	}

	for _, c := range cases {
		if got := tokenPrefixOrInfix(c.a, c.b); got != c.want {
			t.Errorf("tokenPrefixOrInfix(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
