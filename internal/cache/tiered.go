package cache

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/pricecast/internal/telemetry"
)

// Maintainer is a tier that can enumerate and drop its entries.
type Maintainer interface {
	Keys(ctx context.Context) ([]Key, error)
	Clear(ctx context.Context) error
}

// TieredSeriesCache reads the in-process tier first and falls back to the
// shared tier, promoting what it finds there. Writes go to both.
type TieredSeriesCache struct {
	local  *MemorySeriesCache
	shared SeriesCache
	logger *logrus.Logger
}

func NewTieredSeriesCache(local *MemorySeriesCache, shared SeriesCache, logger *logrus.Logger) *TieredSeriesCache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &TieredSeriesCache{local: local, shared: shared, logger: logger}
}

func (c *TieredSeriesCache) Get(ctx context.Context, key Key) (Entry, bool) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.GetCacheTracer(), "cache.get",
		telemetry.StringAttribute("key", key.String()),
	)
	defer span.End()

	if entry, ok := c.local.Get(ctx, key); ok {
		telemetry.SetSpanAttributes(span, telemetry.StringAttribute("tier", "local"), telemetry.BoolAttribute("hit", true))
		return entry, true
	}
	entry, ok := c.shared.Get(ctx, key)
	telemetry.SetSpanAttributes(span, telemetry.StringAttribute("tier", "shared"), telemetry.BoolAttribute("hit", ok))
	if !ok {
		return Entry{}, false
	}
	_ = c.local.Set(ctx, key, entry)
	return entry, true
}

// Set always updates the local tier. A shared tier failure is logged and
// returned, but the local entry remains.
func (c *TieredSeriesCache) Set(ctx context.Context, key Key, entry Entry) error {
	_ = c.local.Set(ctx, key, entry)
	if err := c.shared.Set(ctx, key, entry); err != nil {
		c.logger.WithField("key", key.String()).WithError(err).Warn("Shared cache write failed")
		return err
	}
	return nil
}

// Keys returns the union of both tiers. A shared tier that cannot enumerate
// contributes nothing.
func (c *TieredSeriesCache) Keys(ctx context.Context) ([]Key, error) {
	keys, _ := c.local.Keys(ctx)
	m, ok := c.shared.(Maintainer)
	if !ok {
		return keys, nil
	}
	shared, err := m.Keys(ctx)
	if err != nil {
		return keys, err
	}

	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	for _, k := range shared {
		if _, dup := seen[k]; !dup {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Clear drops both tiers.
func (c *TieredSeriesCache) Clear(ctx context.Context) error {
	err := c.local.Clear(ctx)
	if m, ok := c.shared.(Maintainer); ok {
		err = errors.Join(err, m.Clear(ctx))
	}
	return err
}
