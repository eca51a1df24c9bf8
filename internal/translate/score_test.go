package translate

import "testing"

func TestMatchScore_CosmeticDifferencesScoreOne(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"Hello, World!", "hello world!"},
		{"A  B\tC", "abc"},
		{"line\none", "LINE ONE"},
		{"你好，世界", "你好世界"},
		{"", ""},
	}
	for _, c := range cases {
		if got := MatchScore(c.a, c.b); got != 1.0 {
			t.Errorf("MatchScore(%q, %q) = %v, want 1.0", c.a, c.b, got)
		}
	}
}

func TestMatchScore_DifferentTextScoresBelowOne(t *testing.T) {
	if got := MatchScore("Settings", "Einstellungen"); got >= 1.0 {
		t.Errorf("unrelated words scored %v", got)
	}
	if got := MatchScore("abcdef", "abcxef"); got <= 0 || got >= 1.0 {
		t.Errorf("near match scored %v, want in (0, 1)", got)
	}
}

func TestMatchScore_IsSymmetricEnough(t *testing.T) {
	a, b := "the quick brown fox", "quick brown foxes"
	if s1, s2 := MatchScore(a, b), MatchScore(b, a); s1 != s2 {
		t.Errorf("asymmetric scores: %v vs %v", s1, s2)
	}
}

func TestMatchScore_EmptyAgainstNonEmpty(t *testing.T) {
	if got := MatchScore("", "text"); got != 0 {
		t.Errorf("MatchScore(\"\", \"text\") = %v, want 0", got)
	}
}
