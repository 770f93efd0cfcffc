// Package similarity scores how alike rule ids and rule bodies are. It backs
// "did you mean" suggestions and the overlap checks in lint.
package similarity

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/klauern/rulebook/internal/logging"
)

// Algorithm names accepted by NameMatcherConfig.
const (
	AlgorithmLevenshtein = "levenshtein"
	AlgorithmJaroWinkler = "jaro-winkler"
	AlgorithmCombined    = "combined"
)

// NameMatch is a pair of identifiers with their similarity score.
type NameMatch struct {
	Name1     string  `json:"name1"`
	Name2     string  `json:"name2"`
	Score     float64 `json:"score"`
	Algorithm string  `json:"algorithm"`
}

// NameMatcherConfig configures name similarity matching.
type NameMatcherConfig struct {
	// Threshold is the minimum similarity score (0.0-1.0) to consider a match.
	// Default: 0.7
	Threshold float64
	// Algorithm is one of the Algorithm constants. Default: combined.
	Algorithm string
	// Normalize treats "-", "_", "." and spaces as equivalent separators.
	Normalize bool
	// CaseSensitive disables case folding.
	CaseSensitive bool
}

// DefaultNameMatcherConfig returns sensible defaults for id matching.
func DefaultNameMatcherConfig() NameMatcherConfig {
	return NameMatcherConfig{
		Threshold:     0.7,
		Algorithm:     AlgorithmCombined,
		Normalize:     true,
		CaseSensitive: false,
	}
}

// NameMatcher compares identifiers.
type NameMatcher struct {
	config NameMatcherConfig
}

// NewNameMatcher creates a name matcher, filling in invalid settings with defaults.
func NewNameMatcher(config NameMatcherConfig) *NameMatcher {
	if config.Threshold <= 0 || config.Threshold > 1 {
		config.Threshold = 0.7
	}
	if config.Algorithm == "" {
		config.Algorithm = AlgorithmCombined
	}
	return &NameMatcher{config: config}
}

// FindSimilar returns every pair of distinct names scoring at or above the
// threshold, in input order.
func (m *NameMatcher) FindSimilar(names []string) []NameMatch {
	logging.Debug("finding similar names",
		logging.Operation("name_similarity"),
		logging.Count(len(names)),
		slog.Float64("threshold", m.config.Threshold),
	)

	var matches []NameMatch
	for i := range len(names) {
		for j := i + 1; j < len(names); j++ {
			if names[i] == names[j] {
				continue
			}
			score := m.Compare(names[i], names[j])
			if score >= m.config.Threshold {
				matches = append(matches, NameMatch{
					Name1:     names[i],
					Name2:     names[j],
					Score:     score,
					Algorithm: m.config.Algorithm,
				})
			}
		}
	}

	logging.Debug("name similarity search complete",
		logging.Operation("name_similarity"),
		slog.Int("matches_found", len(matches)),
	)
	return matches
}

// Suggest returns up to limit candidates closest to target, best first.
// Candidates below the threshold are dropped; ties keep candidate order.
func (m *NameMatcher) Suggest(target string, candidates []string, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	var hits []scored
	for _, c := range candidates {
		if c == target {
			continue
		}
		if s := m.Compare(target, c); s >= m.config.Threshold {
			hits = append(hits, scored{c, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}

// Suggest ranks candidates against target with the default configuration.
func Suggest(target string, candidates []string, limit int) []string {
	return NewNameMatcher(DefaultNameMatcherConfig()).Suggest(target, candidates, limit)
}

// Compare returns the similarity score between two names (0.0-1.0).
func (m *NameMatcher) Compare(name1, name2 string) float64 {
	if m.config.Normalize {
		name1 = normalizeName(name1, m.config.CaseSensitive)
		name2 = normalizeName(name2, m.config.CaseSensitive)
	} else if !m.config.CaseSensitive {
		name1 = strings.ToLower(name1)
		name2 = strings.ToLower(name2)
	}

	if name1 == name2 {
		return 1.0
	}
	if len(name1) == 0 || len(name2) == 0 {
		return 0.0
	}

	switch m.config.Algorithm {
	case AlgorithmLevenshtein:
		return LevenshteinSimilarity(name1, name2)
	case AlgorithmJaroWinkler:
		return JaroWinkler(name1, name2)
	case AlgorithmCombined:
		return max(LevenshteinSimilarity(name1, name2), JaroWinkler(name1, name2))
	default:
		return LevenshteinSimilarity(name1, name2)
	}
}

// normalizeName collapses separators to single spaces and drops other
// punctuation, so "api_design" and "api-design" compare equal.
func normalizeName(s string, caseSensitive bool) string {
	if !caseSensitive {
		s = strings.ToLower(s)
	}

	var result strings.Builder
	result.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			result.WriteRune(r)
			prevSpace = false
		case r == '-' || r == '_' || r == ' ' || r == '.' || r == '/':
			if !prevSpace {
				result.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimSpace(result.String())
}

// LevenshteinDistance calculates the minimum number of single-character edits
// (insertions, deletions, or substitutions) required to change one string into another.
func LevenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Convert to runes for proper Unicode handling
	r1 := []rune(s1)
	r2 := []rune(s2)

	// Optimize for shorter string as columns
	if len(r1) < len(r2) {
		r1, r2 = r2, r1
	}

	// Use two rows instead of full matrix to save memory: O(min(m,n)) space
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)

	// Initialize first row
	for j := range prev {
		prev[j] = j
	}

	// Fill the matrix
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

// LevenshteinSimilarity returns a normalized similarity score (0.0-1.0)
// based on Levenshtein distance.
func LevenshteinSimilarity(s1, s2 string) float64 {
	if len(s1) == 0 && len(s2) == 0 {
		return 1.0
	}

	distance := LevenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))

	return 1.0 - float64(distance)/float64(maxLen)
}

// JaroSimilarity calculates the Jaro similarity between two strings.
// Returns a value between 0.0 (no similarity) and 1.0 (identical).
func JaroSimilarity(s1, s2 string) float64 {
	r1 := []rune(s1)
	r2 := []rune(s2)

	if len(r1) == 0 && len(r2) == 0 {
		return 1.0
	}
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	// Match window: max(|s1|, |s2|) / 2 - 1
	matchWindow := max(0, max(len(r1), len(r2))/2-1)

	s1Matches := make([]bool, len(r1))
	s2Matches := make([]bool, len(r2))

	matches := 0
	transpositions := 0

	// Find matching characters
	for i := range r1 {
		start := max(0, i-matchWindow)
		end := min(len(r2), i+matchWindow+1)

		for j := start; j < end; j++ {
			if s2Matches[j] || r1[i] != r2[j] {
				continue
			}
			s1Matches[i] = true
			s2Matches[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Count transpositions
	k := 0
	for i := range r1 {
		if !s1Matches[i] {
			continue
		}
		for !s2Matches[k] {
			k++
		}
		if r1[i] != r2[k] {
			transpositions++
		}
		k++
	}

	jaro := (float64(matches)/float64(len(r1)) +
		float64(matches)/float64(len(r2)) +
		float64(matches-transpositions/2)/float64(matches)) / 3.0

	return jaro
}

// JaroWinkler calculates the Jaro-Winkler similarity, which gives more
// weight to strings that match from the beginning (good for names).
// Returns a value between 0.0 and 1.0.
func JaroWinkler(s1, s2 string) float64 {
	jaro := JaroSimilarity(s1, s2)

	// Calculate common prefix length (up to 4 characters)
	r1 := []rune(s1)
	r2 := []rune(s2)

	prefixLen := 0
	maxPrefix := min(4, min(len(r1), len(r2)))
	for i := range maxPrefix {
		if r1[i] == r2[i] {
			prefixLen++
		} else {
			break
		}
	}

	// Winkler modification: boost score for common prefix
	// Standard scaling factor is 0.1
	const scalingFactor = 0.1
	return jaro + float64(prefixLen)*scalingFactor*(1.0-jaro)
}
