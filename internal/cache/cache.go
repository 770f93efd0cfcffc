// Package cache provides a parse cache for rule and command files.
package cache

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauern/rulebook/internal/model"
	"github.com/klauern/rulebook/internal/util"
)

// Entry represents a cached parse result with the source file's metadata.
// Exactly one of Rule and Command is set.
type Entry struct {
	Rule       *model.Rule    `json:"rule,omitempty"`
	Command    *model.Command `json:"command,omitempty"`
	CachedAt   time.Time      `json:"cached_at"`
	SourcePath string         `json:"source_path"`
	SourceMod  time.Time      `json:"source_mod"`
	SourceSize int64          `json:"source_size"`
}

// Cache manages cached parse results for one named source, usually a root.
// It is safe for concurrent use.
type Cache struct {
	Version string           `json:"version"`
	Entries map[string]Entry `json:"entries"`
	path    string
	mu      sync.RWMutex
}

const (
	cacheVersion = "2.0"
	// DefaultTTL is the default time-to-live for cache entries
	DefaultTTL = 24 * time.Hour
)

// New creates or loads a cache for the given source name.
// If cacheDir is empty, defaults to ~/.rulebook/cache
func New(sourceName string, cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		cacheDir = util.RulebookCachePath()
	}
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, err
	}

	cachePath := filepath.Join(cacheDir, sourceName+".json")
	cache := &Cache{
		Version: cacheVersion,
		Entries: make(map[string]Entry),
		path:    cachePath,
	}

	// #nosec G304 - cachePath is constructed from trusted configuration path
	if data, err := os.ReadFile(cachePath); err == nil {
		if err := json.Unmarshal(data, cache); err != nil {
			// Corrupted cache, start fresh
			cache.Entries = make(map[string]Entry)
		}
		if cache.Version != cacheVersion {
			cache.Entries = make(map[string]Entry)
			cache.Version = cacheVersion
		}
		if cache.Entries == nil {
			cache.Entries = make(map[string]Entry)
		}
	}

	cache.path = cachePath
	return cache, nil
}

// Path returns the file the cache persists to.
func (c *Cache) Path() string {
	return c.path
}

// GetRule returns the cached rule for a source file if the file is unchanged.
func (c *Cache) GetRule(file string) (model.Rule, bool) {
	entry, ok := c.fresh(file)
	if !ok || entry.Rule == nil {
		return model.Rule{}, false
	}
	return *entry.Rule, true
}

// GetCommand returns the cached command for a source file if the file is
// unchanged.
func (c *Cache) GetCommand(file string) (model.Command, bool) {
	entry, ok := c.fresh(file)
	if !ok || entry.Command == nil {
		return model.Command{}, false
	}
	return *entry.Command, true
}

// SetRule stores a cleanly parsed rule.
func (c *Cache) SetRule(rule model.Rule) {
	c.set(rule.Path, Entry{Rule: &rule})
}

// SetCommand stores a cleanly parsed command.
func (c *Cache) SetCommand(cmd model.Command) {
	c.set(cmd.File, Entry{Command: &cmd})
}

func (c *Cache) fresh(file string) (Entry, bool) {
	c.mu.RLock()
	entry, exists := c.Entries[file]
	c.mu.RUnlock()
	if !exists {
		return Entry{}, false
	}

	info, err := os.Stat(file)
	if err != nil || !info.ModTime().Equal(entry.SourceMod) || info.Size() != entry.SourceSize {
		// Source is gone or has been modified, cache is stale
		c.mu.Lock()
		delete(c.Entries, file)
		c.mu.Unlock()
		return Entry{}, false
	}
	return entry, true
}

func (c *Cache) set(file string, entry Entry) {
	info, err := os.Stat(file)
	if err != nil {
		return
	}
	entry.CachedAt = time.Now()
	entry.SourcePath = file
	entry.SourceMod = info.ModTime()
	entry.SourceSize = info.Size()

	c.mu.Lock()
	c.Entries[file] = entry
	c.mu.Unlock()
}

// Save persists the cache to disk
func (c *Cache) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	// #nosec G306 - cache files should be readable by user
	return os.WriteFile(c.path, data, 0o644)
}

// Clear removes all entries from the cache and deletes its file.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.Entries = make(map[string]Entry)
	c.mu.Unlock()
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Size returns the number of entries in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.Entries)
}

// IsStale checks if any cache entry has expired based on TTL
func (c *Cache) IsStale(ttl time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, entry := range c.Entries {
		if time.Since(entry.CachedAt) > ttl {
			return true
		}
	}
	return false
}

// Prune removes stale entries based on TTL
func (c *Cache) Prune(ttl time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pruned := 0
	for key, entry := range c.Entries {
		if time.Since(entry.CachedAt) > ttl {
			delete(c.Entries, key)
			pruned++
		}
	}
	return pruned
}

// NameFor derives a stable cache name for a root directory.
func NameFor(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(abs))
	base := filepath.Base(abs)
	if base == "." || base == string(filepath.Separator) {
		base = "root"
	}
	return fmt.Sprintf("%s-%08x", base, h.Sum32())
}
