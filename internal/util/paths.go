package util

import (
	"os"
	"path/filepath"
	"strings"
)

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// RulebookConfigPath returns the rulebook configuration directory.
// RULEBOOK_HOME overrides the default of ~/.rulebook.
func RulebookConfigPath() string {
	if v := os.Getenv("RULEBOOK_HOME"); v != "" {
		return v
	}
	return filepath.Join(HomeDir(), ".rulebook")
}

// RulebookCachePath returns the default parse cache directory.
func RulebookCachePath() string {
	return filepath.Join(RulebookConfigPath(), "cache")
}

// ProjectRulesRoot returns the project-level root holding rules/ and commands/.
func ProjectRulesRoot(projectDir string) string {
	return filepath.Join(projectDir, ".cursor")
}

// UserRulesRoot returns the user-level root holding rules/ and commands/.
func UserRulesRoot() string {
	return filepath.Join(HomeDir(), ".cursor")
}

// ExpandPath expands ~ to the home directory and resolves relative paths
// against baseDir. An empty path stays empty.
func ExpandPath(path, baseDir string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}
	return filepath.Join(baseDir, path)
}

// ExpandPaths expands every path and drops empty or duplicate entries,
// preserving order.
func ExpandPaths(paths []string, baseDir string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		expanded := ExpandPath(strings.TrimSpace(p), baseDir)
		if expanded == "" || seen[expanded] {
			continue
		}
		seen[expanded] = true
		out = append(out, expanded)
	}
	return out
}
