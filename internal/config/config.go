// Package config provides configuration management for rulebook.
// It supports a YAML configuration file, environment variables, and sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/klauern/rulebook/internal/util"
)

// Judge strategies for intelligent-rule candidates.
const (
	JudgeNone        = "none"
	JudgeAll         = "all"
	JudgeInteractive = "interactive"
)

// Config represents the complete rulebook configuration.
type Config struct {
	// Roots is the ordered list of directories holding rules/ and commands/.
	// Earlier roots win duplicate ids. Paths can use ~ or be relative to the
	// working directory.
	Roots []string `json:"roots" yaml:"roots"`

	// Load configures registry loading
	Load LoadConfig `json:"load" yaml:"load"`

	// Cache configures the parse cache
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Resolve configures rule resolution
	Resolve ResolveConfig `json:"resolve" yaml:"resolve"`

	// Output configures display preferences
	Output OutputConfig `json:"output" yaml:"output"`

	// Lint configures the lint command
	Lint LintConfig `json:"lint" yaml:"lint"`

	// Watch configures the watch command
	Watch WatchConfig `json:"watch" yaml:"watch"`
}

// LoadConfig holds registry loading settings.
type LoadConfig struct {
	// Workers bounds parallel parsing. Zero means GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// CacheConfig holds caching settings.
type CacheConfig struct {
	// Enabled enables or disables the parse cache
	Enabled bool `json:"enabled" yaml:"enabled"`
	// TTL is the time-to-live for cache entries
	TTL time.Duration `json:"ttl" yaml:"ttl"`
	// Location is the cache directory path
	Location string `json:"location" yaml:"location"`
}

// ResolveConfig holds resolution settings.
type ResolveConfig struct {
	// Judge picks intelligent-rule candidates: none, all, or interactive
	Judge string `json:"judge" yaml:"judge"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Format is the default output format (table, json, yaml)
	Format string `json:"format" yaml:"format"`
	// Color controls color output (auto, always, never)
	Color string `json:"color" yaml:"color"`
	// Verbose enables verbose output
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// LintConfig holds lint settings.
type LintConfig struct {
	// Strict makes warnings fail lint
	Strict bool `json:"strict" yaml:"strict"`
	// SecretScan enables scanning rule and command bodies for secrets
	SecretScan bool `json:"secret_scan" yaml:"secret_scan"`
	// NameThreshold is the minimum score for near-duplicate rule ids (0.0-1.0)
	NameThreshold float64 `json:"name_threshold" yaml:"name_threshold"`
	// ContentThreshold is the minimum score for overlapping rule bodies (0.0-1.0)
	ContentThreshold float64 `json:"content_threshold" yaml:"content_threshold"`
}

// WatchConfig holds watch settings.
type WatchConfig struct {
	// Debounce is how long to wait for a burst of changes to settle
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Roots: []string{
			".cursor",   // Project (relative)
			"~/.cursor", // User (absolute)
		},
		Load: LoadConfig{
			Workers: 0,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTL:      24 * time.Hour,
			Location: util.RulebookCachePath(),
		},
		Resolve: ResolveConfig{
			Judge: JudgeNone,
		},
		Output: OutputConfig{
			Format:  "table",
			Color:   "auto",
			Verbose: false,
		},
		Lint: LintConfig{
			Strict:           false,
			SecretScan:       true,
			NameThreshold:    0.85,
			ContentThreshold: 0.8,
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// configFileName is the name of the config file.
const configFileName = "config.yaml"

// FilePath returns the path to the config file.
func FilePath() string {
	return filepath.Join(util.RulebookConfigPath(), configFileName)
}

// Load loads the configuration from file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg := Default()

	configPath := FilePath()
	// #nosec G304 - configPath is constructed from trusted config directory
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvironment()
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.applyEnvironment()
	return cfg, nil
}

// Save writes the configuration to the config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path.
func (c *Config) SaveToPath(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// #nosec G306 - config file should be readable by user
	return os.WriteFile(path, data, 0o644)
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern RULEBOOK_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("RULEBOOK_ROOTS"); v != "" {
		c.Roots = splitPaths(v)
	}

	if v := os.Getenv("RULEBOOK_LOAD_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Load.Workers = n
		}
	}

	// Cache settings
	if v := os.Getenv("RULEBOOK_CACHE_ENABLED"); v != "" {
		c.Cache.Enabled = parseBool(v)
	}
	if v := os.Getenv("RULEBOOK_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = d
		}
	}
	if v := os.Getenv("RULEBOOK_CACHE_LOCATION"); v != "" {
		c.Cache.Location = v
	}

	if v := os.Getenv("RULEBOOK_JUDGE"); v != "" {
		c.Resolve.Judge = v
	}

	// Output settings
	if v := os.Getenv("RULEBOOK_OUTPUT_FORMAT"); v != "" {
		c.Output.Format = v
	}
	if v := os.Getenv("RULEBOOK_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("RULEBOOK_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}

	// Lint settings
	if v := os.Getenv("RULEBOOK_LINT_STRICT"); v != "" {
		c.Lint.Strict = parseBool(v)
	}
	if v := os.Getenv("RULEBOOK_LINT_SECRET_SCAN"); v != "" {
		c.Lint.SecretScan = parseBool(v)
	}
	if v := os.Getenv("RULEBOOK_LINT_NAME_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Lint.NameThreshold = f
		}
	}
	if v := os.Getenv("RULEBOOK_LINT_CONTENT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Lint.ContentThreshold = f
		}
	}

	if v := os.Getenv("RULEBOOK_WATCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Watch.Debounce = d
		}
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitPaths splits a colon-separated path string into individual paths.
// Empty segments are filtered out.
func splitPaths(s string) []string {
	parts := strings.Split(s, string(os.PathListSeparator))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// RootPaths returns the configured roots, expanded and deduplicated, in
// order. Relative roots resolve against baseDir.
func (c *Config) RootPaths(baseDir string) []string {
	return util.ExpandPaths(c.Roots, baseDir)
}

// Workers returns the effective number of parse workers.
func (c *Config) Workers() int {
	if c.Load.Workers > 0 {
		return c.Load.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// GetJudge returns the judge strategy, falling back to none for unknown values.
func (c *Config) GetJudge() string {
	switch j := strings.ToLower(strings.TrimSpace(c.Resolve.Judge)); j {
	case JudgeNone, JudgeAll, JudgeInteractive:
		return j
	default:
		return JudgeNone
	}
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
