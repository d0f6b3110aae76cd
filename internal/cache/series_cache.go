package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/irfndi/pricecast/internal/models"
)

// Key identifies a cached historical series.
type Key struct {
	AssetID string `json:"asset_id"`
	Days    int    `json:"days"`
}

func (k Key) String() string {
	return k.AssetID + ":" + strconv.Itoa(k.Days)
}

// ParseKey is the inverse of Key.String.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, ":")
	if i <= 0 {
		return Key{}, fmt.Errorf("invalid cache key %q", s)
	}
	days, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return Key{}, fmt.Errorf("invalid cache key %q: %w", s, err)
	}
	return Key{AssetID: s[:i], Days: days}, nil
}

// Entry is a cached series and the time it was obtained.
type Entry struct {
	Series    models.Series `msgpack:"s"`
	FetchedAt time.Time     `msgpack:"f"`
	// Synthetic marks generated data served while the upstream was down.
	Synthetic bool `msgpack:"y"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}

// SeriesCache stores historical series by key. Entries are superseded in
// place and never removed by callers; implementations copy series on the
// way in and out.
type SeriesCache interface {
	Get(ctx context.Context, key Key) (Entry, bool)
	Set(ctx context.Context, key Key, entry Entry) error
}

// Stats tracks cache performance metrics
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
}

// HitRate returns the hit percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// MemorySeriesCache is a process-lifetime SeriesCache.
type MemorySeriesCache struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	stats   Stats
}

func NewMemorySeriesCache() *MemorySeriesCache {
	return &MemorySeriesCache{entries: make(map[Key]Entry)}
}

func (c *MemorySeriesCache) Get(_ context.Context, key Key) (Entry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	c.mu.Lock()
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	c.mu.Unlock()

	if !ok {
		return Entry{}, false
	}
	return Entry{Series: entry.Series.Clone(), FetchedAt: entry.FetchedAt, Synthetic: entry.Synthetic}, true
}

func (c *MemorySeriesCache) Set(_ context.Context, key Key, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Series: entry.Series.Clone(), FetchedAt: entry.FetchedAt, Synthetic: entry.Synthetic}
	c.stats.Sets++
	return nil
}

// Keys returns the cached keys in no particular order.
func (c *MemorySeriesCache) Keys(_ context.Context) ([]Key, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]Key, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

// Clear drops every entry. Counters are kept.
func (c *MemorySeriesCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]Entry)
	return nil
}

func (c *MemorySeriesCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemorySeriesCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
