package similarity

import (
	"testing"

	"github.com/klauern/rulebook/internal/model"
)

func TestNewContentMatcher(t *testing.T) {
	tests := map[string]struct {
		config        ContentMatcherConfig
		wantThreshold float64
		wantAlgorithm string
		wantNGramSize int
	}{
		"zero config": {
			config:        ContentMatcherConfig{},
			wantThreshold: 0.6,
			wantAlgorithm: "combined",
			wantNGramSize: 3,
		},
		"custom values kept": {
			config:        ContentMatcherConfig{Threshold: 0.8, Algorithm: "lcs", NGramSize: 5},
			wantThreshold: 0.8,
			wantAlgorithm: "lcs",
			wantNGramSize: 5,
		},
		"out of range threshold": {
			config:        ContentMatcherConfig{Threshold: 1.5, Algorithm: "jaccard", NGramSize: -1},
			wantThreshold: 0.6,
			wantAlgorithm: "jaccard",
			wantNGramSize: 3,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			m := NewContentMatcher(tt.config)
			if m.config.Threshold != tt.wantThreshold {
				t.Errorf("Threshold = %f, want %f", m.config.Threshold, tt.wantThreshold)
			}
			if m.config.Algorithm != tt.wantAlgorithm {
				t.Errorf("Algorithm = %q, want %q", m.config.Algorithm, tt.wantAlgorithm)
			}
			if m.config.NGramSize != tt.wantNGramSize {
				t.Errorf("NGramSize = %d, want %d", m.config.NGramSize, tt.wantNGramSize)
			}
		})
	}
}

func TestLongestCommonSubsequenceLength(t *testing.T) {
	if got := longestCommonSubsequenceLength([]string{"a", "b", "c"}, []string{"a", "c"}); got != 2 {
		t.Errorf("LCS = %d, want 2", got)
	}
	if got := longestCommonSubsequenceLength(nil, []string{"a"}); got != 0 {
		t.Errorf("LCS with empty = %d, want 0", got)
	}
}

func TestJaccardIndex(t *testing.T) {
	a := tokenSet([]string{"a", "b", " "})
	b := tokenSet([]string{"b", "c"})
	if got := jaccardIndex(a, b); !approx(got, 1.0/3.0) {
		t.Errorf("jaccardIndex = %f, want 0.333", got)
	}
	if got := jaccardIndex(nil, nil); got != 1.0 {
		t.Errorf("jaccardIndex of empty sets = %f, want 1", got)
	}
	if got := len(generateNGrams("abcd", 3)); got != 2 {
		t.Errorf("generateNGrams = %d grams, want 2", got)
	}
}

func TestContentMatcher_Compare(t *testing.T) {
	m := NewContentMatcher(DefaultContentMatcherConfig())

	tests := map[string]struct {
		a, b string
		want float64
	}{
		"identical":     {"a\nb", "a\nb", 1.0},
		"one empty":     {"", "a", 0},
		"partial":       {"a\nb\nc", "a\nb\nd", 2.0 / 3.0},
		"no overlap":    {"a\nb", "c\nd", 0},
		"reordered":     {"a\nb", "b\na", 1.0},
		"lcs preferred": {"a\nb\nc\nd", "a\nb\nc\ne", 0.75},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := m.Compare(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("Compare() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestContentMatcher_FindSimilar(t *testing.T) {
	rules := []model.Rule{
		{ID: "style-a", Body: "Use tabs.\nWrap at 100.\nNo globals."},
		{ID: "style-b", Body: "Use tabs.\nWrap at 100.\nNo globals."},
		{ID: "other", Body: "Totally\ndifferent"},
		{ID: "empty", Body: ""},
	}

	matches := NewContentMatcher(DefaultContentMatcherConfig()).FindSimilar(rules)
	if len(matches) != 1 {
		t.Fatalf("FindSimilar() = %+v, want one match", matches)
	}
	if matches[0].Rule1 != "style-a" || matches[0].Rule2 != "style-b" || matches[0].Score != 1.0 {
		t.Errorf("match = %+v", matches[0])
	}
}
