package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Discovery patterns, relative to the rules/ and commands/ directories.
var (
	RulePatterns    = []string{"**/*.md", "**/*.mdc"}
	CommandPatterns = []string{"**/*.md", "**/*.mdc", "**/*.txt"}
)

// DiscoverFiles finds all files matching the given doublestar patterns in
// baseDir. It returns absolute paths, deduplicated and sorted
// lexicographically. A missing baseDir yields an empty result.
func DiscoverFiles(baseDir string, patterns []string) ([]string, error) {
	info, err := os.Stat(baseDir)
	if os.IsNotExist(err) {
		return []string{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat directory %q: %w", baseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", baseDir)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %q: %w", baseDir, err)
	}

	fsys := os.DirFS(absBase)
	seen := make(map[string]bool)
	files := []string{}

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs := filepath.Join(absBase, filepath.FromSlash(m))
			if !seen[abs] {
				seen[abs] = true
				files = append(files, abs)
			}
		}
	}

	slices.Sort(files)
	return files, nil
}

// ValidGlob reports whether pattern is a syntactically valid doublestar glob.
func ValidGlob(pattern string) bool {
	return pattern != "" && doublestar.ValidatePattern(pattern)
}
