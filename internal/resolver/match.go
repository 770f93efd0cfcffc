package resolver

import (
	"github.com/bmatcuk/doublestar/v4"
)

// Match reports whether pattern matches path. "**" spans any number of
// directories, "*" stays within one segment and matching is case sensitive.
// Both sides use forward slashes. Invalid patterns never match.
func Match(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// MatchAny returns the first glob that matches any of paths.
func MatchAny(globs, paths []string) (string, bool) {
	for _, g := range globs {
		for _, p := range paths {
			if Match(g, p) {
				return g, true
			}
		}
	}
	return "", false
}
