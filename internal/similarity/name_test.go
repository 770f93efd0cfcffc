package similarity

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func TestLevenshteinDistance(t *testing.T) {
	tests := map[string]struct {
		s1, s2 string
		want   int
	}{
		"identical":     {"hello", "hello", 0},
		"both empty":    {"", "", 0},
		"one empty":     {"hello", "", 5},
		"substitution":  {"cat", "bat", 1},
		"insertion":     {"cat", "cats", 1},
		"classic":       {"kitten", "sitting", 3},
		"unicode runes": {"héllo", "hello", 1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := LevenshteinDistance(tt.s1, tt.s2); got != tt.want {
				t.Errorf("LevenshteinDistance(%q, %q) = %d, want %d", tt.s1, tt.s2, got, tt.want)
			}
		})
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	if got := LevenshteinSimilarity("", ""); got != 1.0 {
		t.Errorf("empty strings = %f, want 1", got)
	}
	if got := LevenshteinSimilarity("cat", "bat"); !approx(got, 2.0/3.0) {
		t.Errorf("cat/bat = %f, want 0.667", got)
	}
}

func TestJaroWinkler(t *testing.T) {
	if got := JaroSimilarity("MARTHA", "MARHTA"); !approx(got, 0.9444) {
		t.Errorf("JaroSimilarity(MARTHA, MARHTA) = %f, want 0.9444", got)
	}
	if got := JaroWinkler("MARTHA", "MARHTA"); !approx(got, 0.9611) {
		t.Errorf("JaroWinkler(MARTHA, MARHTA) = %f, want 0.9611", got)
	}
	if got := JaroWinkler("abc", ""); got != 0 {
		t.Errorf("JaroWinkler with empty = %f, want 0", got)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"API_Design.v2": "api design v2",
		"foo--bar":      "foo bar",
		"core/testing":  "core testing",
		"  spaced  ":    "spaced",
		"emoji🙂name":    "emojiname",
	}
	for in, want := range tests {
		if got := normalizeName(in, false); got != want {
			t.Errorf("normalizeName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := normalizeName("API", true); got != "API" {
		t.Errorf("case sensitive normalizeName = %q, want API", got)
	}
}

func TestNameMatcher_Compare(t *testing.T) {
	m := NewNameMatcher(DefaultNameMatcherConfig())

	if got := m.Compare("api-design", "api_design"); got != 1.0 {
		t.Errorf("separator variants = %f, want 1", got)
	}
	if got := m.Compare("Core", "core"); got != 1.0 {
		t.Errorf("case variants = %f, want 1", got)
	}
	if got := m.Compare("", "core"); got != 0 {
		t.Errorf("empty name = %f, want 0", got)
	}

	strict := NewNameMatcher(NameMatcherConfig{Algorithm: AlgorithmLevenshtein, CaseSensitive: true})
	if got := strict.Compare("Core", "core"); got == 1.0 {
		t.Error("case sensitive matcher should distinguish Core and core")
	}
}

func TestNameMatcher_FindSimilar(t *testing.T) {
	names := []string{"commit", "commits", "review-pr", "unrelated-xyz", "commit"}
	matches := NewNameMatcher(DefaultNameMatcherConfig()).FindSimilar(names)

	pairs := make(map[string]bool)
	for _, m := range matches {
		pairs[m.Name1+":"+m.Name2] = true
		if m.Name1 == m.Name2 {
			t.Errorf("identical names should not be paired: %q", m.Name1)
		}
	}
	if !pairs["commit:commits"] {
		t.Errorf("expected commit:commits in %v", pairs)
	}
	if pairs["commit:unrelated-xyz"] {
		t.Error("commit and unrelated-xyz should not match")
	}
}

func TestSuggest(t *testing.T) {
	candidates := []string{"zzzz", "api-design", "api-docs", "api-desing"}

	got := Suggest("api-desing", candidates, 2)
	if len(got) == 0 || got[0] != "api-design" {
		t.Fatalf("Suggest() = %v, want api-design first", got)
	}
	if len(got) > 2 {
		t.Errorf("Suggest() returned %d results, limit 2", len(got))
	}
	for _, s := range got {
		if s == "zzzz" || s == "api-desing" {
			t.Errorf("Suggest() should not return %q", s)
		}
	}

	if diff := cmp.Diff([]string{"api-design"}, Suggest("api-desing", candidates, 1)); diff != "" {
		t.Errorf("Suggest() limit 1 mismatch (-want +got):\n%s", diff)
	}
	if got := Suggest("nothing-like-it", []string{"zzzz"}, 3); len(got) != 0 {
		t.Errorf("Suggest() = %v, want none", got)
	}
}

func TestNewNameMatcher_Defaults(t *testing.T) {
	m := NewNameMatcher(NameMatcherConfig{Threshold: -1})
	if m.config.Threshold != 0.7 {
		t.Errorf("Threshold = %f, want 0.7", m.config.Threshold)
	}
	if m.config.Algorithm != AlgorithmCombined {
		t.Errorf("Algorithm = %q, want combined", m.config.Algorithm)
	}
}
