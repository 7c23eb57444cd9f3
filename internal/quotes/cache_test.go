package quotes

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/cache"
	"github.com/crossvenue/arb/pkg/types"
)

func newTestCache(t *testing.T, freshness time.Duration) *Cache {
	t.Helper()
	logger := zap.NewNop()

	store, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      logger,
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(store.Close)

	return New(&Config{
		Store:     store,
		Freshness: freshness,
		Logger:    logger,
	})
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t, 10*time.Second)

	quote := &types.Quote{
		Venue:        types.VenueKalshi,
		MarketID:     "INXD-24",
		Side:         types.SideYes,
		BestBidPrice: 0.44,
		BestAskPrice: 0.45,
		BestAskSize:  200,
		ObservedAt:   time.Now(),
	}

	c.Put(quote)
	c.Wait()

	got, ok := c.Get(types.VenueKalshi, "INXD-24", types.SideYes)
	if !ok {
		t.Fatal("expected quote to be present")
	}
	if got.BestAskPrice != 0.45 {
		t.Errorf("expected ask 0.45, got %f", got.BestAskPrice)
	}
}

func TestCache_AbsentKey(t *testing.T) {
	c := newTestCache(t, 10*time.Second)

	_, ok := c.Get(types.VenuePolymarket, "missing", types.SideNo)
	if ok {
		t.Error("expected absent quote for unknown key")
	}
}

func TestCache_StaleQuoteTreatedAsAbsent(t *testing.T) {
	c := newTestCache(t, 10*time.Second)

	quote := &types.Quote{
		Venue:        types.VenueKalshi,
		MarketID:     "INXD-24",
		Side:         types.SideYes,
		BestAskPrice: 0.45,
		ObservedAt:   time.Now(),
	}
	c.Put(quote)
	c.Wait()

	// Move the clock past the freshness bound instead of sleeping.
	c.now = func() time.Time { return time.Now().Add(11 * time.Second) }

	_, ok := c.Get(types.VenueKalshi, "INXD-24", types.SideYes)
	if ok {
		t.Error("expected stale quote to be treated as absent")
	}
}

func TestCache_OverwriteKeepsNewest(t *testing.T) {
	c := newTestCache(t, 10*time.Second)

	first := &types.Quote{
		Venue: types.VenueKalshi, MarketID: "M", Side: types.SideYes,
		BestAskPrice: 0.45, ObservedAt: time.Now(),
	}
	second := &types.Quote{
		Venue: types.VenueKalshi, MarketID: "M", Side: types.SideYes,
		BestAskPrice: 0.47, ObservedAt: time.Now(),
	}

	c.Put(first)
	c.Wait()
	c.Put(second)
	c.Wait()

	got, ok := c.Get(types.VenueKalshi, "M", types.SideYes)
	if !ok {
		t.Fatal("expected quote to be present")
	}
	if got.BestAskPrice != 0.47 {
		t.Errorf("expected newest ask 0.47, got %f", got.BestAskPrice)
	}
}

func TestCache_SidesAreIndependent(t *testing.T) {
	c := newTestCache(t, 10*time.Second)

	c.Put(&types.Quote{
		Venue: types.VenueKalshi, MarketID: "M", Side: types.SideYes,
		BestAskPrice: 0.45, ObservedAt: time.Now(),
	})
	c.Wait()

	_, ok := c.Get(types.VenueKalshi, "M", types.SideNo)
	if ok {
		t.Error("expected NO side to be absent when only YES was stored")
	}
}
