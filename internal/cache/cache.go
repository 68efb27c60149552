// Package cache stores API responses on disk keyed by a hash of the
// request, with an in-memory front for repeated lookups within a run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Kind separates cached responses by the API they came from.
type Kind string

const (
	KindCompletion Kind = "completion"
	KindImage      Kind = "image"
	KindDocument   Kind = "document"
)

// DefaultMemoryTTL is how long entries stay in the memory front.
const DefaultMemoryTTL = 24 * time.Hour

// Entry is the on-disk record of one response.
type Entry struct {
	Kind      Kind            `json:"kind"`
	Request   json.RawMessage `json:"request"`
	Output    json.RawMessage `json:"output"`
	CreatedAt time.Time       `json:"created_at"`
}

// Config configures a Cache.
type Config struct {
	Dir       string
	Disabled  bool
	MemoryTTL time.Duration
	Logger    *slog.Logger
}

// Cache is safe for concurrent use.
type Cache struct {
	dir      string
	disabled bool
	mem      *gocache.Cache
	logger   *slog.Logger
}

// Stats summarizes the cache directory.
type Stats struct {
	Location    string `json:"location" yaml:"location"`
	Disabled    bool   `json:"disabled" yaml:"disabled"`
	Total       int    `json:"total_cached" yaml:"total_cached"`
	Completions int    `json:"completions" yaml:"completions"`
	Images      int    `json:"images" yaml:"images"`
	Documents   int    `json:"documents" yaml:"documents"`
}

// New creates a cache rooted at cfg.Dir.
func New(cfg Config) *Cache {
	ttl := cfg.MemoryTTL
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		dir:      cfg.Dir,
		disabled: cfg.Disabled,
		mem:      gocache.New(ttl, time.Hour),
		logger:   logger,
	}
}

// Key hashes the JSON encoding of the request together with its kind and
// returns the first 16 hex characters.
func Key(kind Kind, request any) (string, error) {
	data, err := json.Marshal(struct {
		Function Kind `json:"function"`
		Request  any  `json:"request"`
	}{kind, request})
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16], nil
}

// Disabled reports whether lookups and stores are skipped.
func (c *Cache) Disabled() bool {
	return c.disabled
}

// Location returns the absolute cache directory.
func (c *Cache) Location() string {
	if abs, err := filepath.Abs(c.dir); err == nil {
		return abs
	}
	return c.dir
}

func (c *Cache) path(kind Kind, key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s.json", kind, key))
}

// Load decodes a cached output into out. Unreadable or corrupt entries are
// treated as misses.
func (c *Cache) Load(kind Kind, key string, out any) bool {
	if c.disabled {
		return false
	}
	id := string(kind) + "_" + key
	if v, ok := c.mem.Get(id); ok {
		if err := json.Unmarshal(v.([]byte), out); err == nil {
			return true
		}
	}

	data, err := os.ReadFile(c.path(kind, key))
	if err != nil {
		return false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn("ignoring corrupt cache entry", "key", id, "error", err)
		return false
	}
	if err := json.Unmarshal(entry.Output, out); err != nil {
		c.logger.Warn("ignoring corrupt cache entry", "key", id, "error", err)
		return false
	}
	c.mem.Set(id, []byte(entry.Output), gocache.DefaultExpiration)
	return true
}

// Store writes the response to disk and the memory front.
func (c *Cache) Store(kind Kind, key string, request, output any) error {
	if c.disabled {
		return nil
	}
	req, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	out, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data, err := json.MarshalIndent(Entry{
		Kind:      kind,
		Request:   req,
		Output:    out,
		CreatedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	final := c.path(kind, key)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move cache file: %w", err)
	}

	c.mem.Set(string(kind)+"_"+key, out, gocache.DefaultExpiration)
	return nil
}

// Do returns the cached output for request, or calls fn and stores its
// result. A failed store is logged and does not fail the call.
func Do[T any](c *Cache, kind Kind, request any, fn func() (T, error)) (T, bool, error) {
	var zero T
	if c == nil || c.disabled {
		v, err := fn()
		return v, false, err
	}

	key, err := Key(kind, request)
	if err != nil {
		return zero, false, err
	}
	var cached T
	if c.Load(kind, key, &cached) {
		c.logger.Debug("using cached response", "kind", kind, "key", key)
		return cached, true, nil
	}

	v, err := fn()
	if err != nil {
		return zero, false, err
	}
	if err := c.Store(kind, key, request, v); err != nil {
		c.logger.Warn("failed to cache response", "kind", kind, "key", key, "error", err)
	}
	return v, false, nil
}

// Stats counts cached responses by kind.
func (c *Cache) Stats() (Stats, error) {
	stats := Stats{Location: c.Location(), Disabled: c.disabled}
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to read cache dir: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		switch {
		case strings.HasPrefix(name, string(KindCompletion)+"_"):
			stats.Completions++
		case strings.HasPrefix(name, string(KindImage)+"_"):
			stats.Images++
		case strings.HasPrefix(name, string(KindDocument)+"_"):
			stats.Documents++
		default:
			continue
		}
		stats.Total++
	}
	return stats, nil
}

// Clear removes every cached response and returns how many were deleted.
func (c *Cache) Clear() (int, error) {
	c.mem.Flush()
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", filepath.Base(m), err)
		}
		removed++
	}
	return removed, nil
}
