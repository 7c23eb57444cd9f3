// Package quotes holds the most recent normalized quote per (venue, market,
// side) with a freshness bound. Everything above it in the engine reads
// prices through this cache; stale entries are indistinguishable from absent
// ones.
package quotes

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/cache"
	"github.com/crossvenue/arb/pkg/types"
)

// Cache stores the latest quote per key. Writes overwrite unconditionally;
// reads reject entries older than the freshness bound. Safe for concurrent
// readers against one writer per key (the underlying cache handles its own
// synchronization).
type Cache struct {
	store     cache.Cache
	freshness time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// Config holds quote cache configuration.
type Config struct {
	Store     cache.Cache
	Freshness time.Duration
	Logger    *zap.Logger
}

// New creates a quote cache over a TTL store. The TTL doubles as a hard
// eviction bound; the ObservedAt check on Get guards entries written with a
// skewed timestamp.
func New(cfg *Config) *Cache {
	return &Cache{
		store:     cfg.Store,
		freshness: cfg.Freshness,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

func key(venue types.Venue, marketID string, side types.Side) string {
	return fmt.Sprintf("%s/%s/%s", venue, marketID, side)
}

// Put overwrites the entry for the quote's (venue, marketId, side) key.
func (c *Cache) Put(quote *types.Quote) {
	c.store.Set(key(quote.Venue, quote.MarketID, quote.Side), quote, c.freshness)
	QuotesStoredTotal.WithLabelValues(string(quote.Venue)).Inc()
}

// Get returns the stored quote, or false if none exists or the entry is
// older than the freshness bound.
func (c *Cache) Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool) {
	value, ok := c.store.Get(key(venue, marketID, side))
	if !ok {
		return nil, false
	}

	quote, ok := value.(*types.Quote)
	if !ok {
		return nil, false
	}

	if !quote.FreshAt(c.now(), c.freshness) {
		QuotesStaleTotal.WithLabelValues(string(venue)).Inc()
		c.logger.Debug("quote-cache-stale-hit",
			zap.String("venue", string(venue)),
			zap.String("market-id", marketID),
			zap.String("side", string(side)),
			zap.Time("observed-at", quote.ObservedAt))
		return nil, false
	}

	return quote, true
}

// Wait flushes pending writes. Used where a caller must read its own write,
// such as the scan loop publishing before evaluation.
func (c *Cache) Wait() {
	c.store.Wait()
}
