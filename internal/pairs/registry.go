// Package pairs tracks verified market pairs and suggests candidate pairs
// from raw event listings. Pairing is always approved by a human; this
// package only reacts to create/pause/resume events and cooldown stamps.
package pairs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

// Registry is the authoritative in-memory set of verified pairs. Pairs are
// never deleted, only paused.
type Registry struct {
	mu     sync.RWMutex
	pairs  map[string]*types.VerifiedPair
	logger *zap.Logger
}

// NewRegistry creates an empty pair registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		pairs:  make(map[string]*types.VerifiedPair),
		logger: logger,
	}
}

// Add registers a manually approved pair. Re-approving an existing
// (venueA, venueB) market combination returns the existing pair.
func (r *Registry) Add(venueA, venueB types.MarketRef, approvedBy, notes string) *types.VerifiedPair {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.pairs {
		if p.VenueA == venueA && p.VenueB == venueB {
			return p
		}
	}

	pair := &types.VerifiedPair{
		ID:         uuid.New().String(),
		VenueA:     venueA,
		VenueB:     venueB,
		Status:     types.PairActive,
		ApprovedBy: approvedBy,
		ApprovedAt: time.Now(),
		Notes:      notes,
	}
	r.pairs[pair.ID] = pair

	r.logger.Info("pair-verified",
		zap.String("pair-id", pair.ID),
		zap.String("venue-a-market", venueA.MarketID),
		zap.String("venue-b-market", venueB.MarketID),
		zap.String("approved-by", approvedBy))

	return pair
}

// Get returns the pair with the given ID.
func (r *Registry) Get(id string) (*types.VerifiedPair, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pair, ok := r.pairs[id]
	return pair, ok
}

// Pause stops a pair from producing opportunities.
func (r *Registry) Pause(id string) error {
	return r.setStatus(id, types.PairPaused)
}

// Resume re-activates a paused pair.
func (r *Registry) Resume(id string) error {
	return r.setStatus(id, types.PairActive)
}

func (r *Registry) setStatus(id string, status types.PairStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, ok := r.pairs[id]
	if !ok {
		return fmt.Errorf("pair %s not found", id)
	}
	pair.Status = status

	r.logger.Info("pair-status-changed",
		zap.String("pair-id", id),
		zap.String("status", string(status)))

	return nil
}

// SetCooldown stamps the pair's cooldown deadline. Called by the execution
// coordinator after a terminal attempt.
func (r *Registry) SetCooldown(id string, until time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pair, ok := r.pairs[id]
	if !ok {
		return
	}
	pair.CooldownUntil = until
}

// Tradable returns the pairs eligible for evaluation at the given time:
// active and past any cooldown. Order is stable by approval time.
func (r *Registry) Tradable(now time.Time) []*types.VerifiedPair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eligible := make([]*types.VerifiedPair, 0, len(r.pairs))
	for _, p := range r.pairs {
		if p.Tradable(now) {
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].ApprovedAt.Before(eligible[j].ApprovedAt)
	})

	return eligible
}

// Snapshot returns a copy of every pair for reporting.
func (r *Registry) Snapshot() []types.VerifiedPair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.VerifiedPair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ApprovedAt.Before(out[j].ApprovedAt)
	})

	return out
}
