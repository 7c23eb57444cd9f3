package cache

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCache(t *testing.T) Cache {
	t.Helper()
	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	if !c.Set("k", "v", time.Minute) {
		t.Fatal("set dropped")
	}
	c.Wait()

	value, found := c.Get("k")
	if !found || value != "v" {
		t.Errorf("expected (v, true), got (%v, %v)", value, found)
	}
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", 10*time.Millisecond)
	c.Wait()

	time.Sleep(50 * time.Millisecond)

	if _, found := c.Get("k"); found {
		t.Error("expected entry to expire")
	}
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "v", time.Minute)
	c.Wait()
	c.Delete("k")
	c.Wait()

	if _, found := c.Get("k"); found {
		t.Error("expected entry gone after delete")
	}
}

func TestRistrettoCache_Overwrite(t *testing.T) {
	c := newTestCache(t)

	c.Set("k", "old", time.Minute)
	c.Wait()
	c.Set("k", "new", time.Minute)
	c.Wait()

	value, found := c.Get("k")
	if !found || value != "new" {
		t.Errorf("expected newest value, got (%v, %v)", value, found)
	}
}
