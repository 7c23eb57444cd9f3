// Package ledger is the authoritative record of open exposure and PnL per
// (venue, market). It performs admission control for new execution attempts
// and is the only place fills durably mutate positions.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

// ErrExposureLimit is returned when a reservation would push absolute net
// exposure over the per-market limit. The attempt aborts; the pair stays
// active.
var ErrExposureLimit = fmt.Errorf("exposure limit exceeded")

// Position is the net exposure in one market on one venue. NetSize is signed
// on the YES axis: positive is long YES, negative is long NO (economically
// short YES). AvgCost is the YES-equivalent entry price of the held side.
type Position struct {
	Venue         types.Venue `json:"venue"`
	MarketID      string      `json:"market_id"`
	NetSize       float64     `json:"net_size"`
	AvgCost       float64     `json:"avg_cost"`
	RealizedPnl   float64     `json:"realized_pnl"`
	UnrealizedPnl float64     `json:"unrealized_pnl"`
	LastUpdatedAt time.Time   `json:"last_updated_at"`
}

type marketKey struct {
	venue    types.Venue
	marketID string
}

// marketState serializes all mutations for one (venue, market) key.
type marketState struct {
	mu       sync.Mutex
	position Position
	reserved float64
	applied  map[string]struct{} // orderIDs already applied
}

// Ledger tracks positions across venues. All mutation paths for a given
// market serialize through that market's lock; no lock is ever held across
// markets.
type Ledger struct {
	mu      sync.Mutex
	markets map[marketKey]*marketState

	maxPositionPerMarket float64
	logger               *zap.Logger
}

// Config holds ledger configuration.
type Config struct {
	MaxPositionPerMarket float64
	Logger               *zap.Logger
}

// New creates an empty ledger.
func New(cfg *Config) *Ledger {
	return &Ledger{
		markets:              make(map[marketKey]*marketState),
		maxPositionPerMarket: cfg.MaxPositionPerMarket,
		logger:               cfg.Logger,
	}
}

func (l *Ledger) state(venue types.Venue, marketID string) *marketState {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := marketKey{venue: venue, marketID: marketID}
	st, ok := l.markets[key]
	if !ok {
		st = &marketState{
			position: Position{Venue: venue, MarketID: marketID},
			applied:  make(map[string]struct{}),
		}
		l.markets[key] = st
	}
	return st
}

// Reserve performs admission control: it holds headroom for an execution
// attempt and fails with ErrExposureLimit if absolute exposure plus existing
// reservations would exceed the per-market limit. Reservations are advisory
// and must be released once the attempt reaches a terminal state.
func (l *Ledger) Reserve(venue types.Venue, marketID string, size float64) error {
	st := l.state(venue, marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	exposure := abs(st.position.NetSize) + st.reserved + size
	if exposure > l.maxPositionPerMarket {
		ReservationsRejectedTotal.WithLabelValues(string(venue)).Inc()
		return fmt.Errorf("%w: market %s on %s: %.2f + %.2f would exceed %.2f",
			ErrExposureLimit, marketID, venue, abs(st.position.NetSize)+st.reserved, size, l.maxPositionPerMarket)
	}

	st.reserved += size
	return nil
}

// Release returns reserved headroom. Safe to call with more than is
// outstanding; the reservation floor is zero.
func (l *Ledger) Release(venue types.Venue, marketID string, size float64) {
	st := l.state(venue, marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.reserved -= size
	if st.reserved < 0 {
		st.reserved = 0
	}
}

// Headroom returns the size still admissible for the market.
func (l *Ledger) Headroom(venue types.Venue, marketID string) float64 {
	st := l.state(venue, marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	headroom := l.maxPositionPerMarket - abs(st.position.NetSize) - st.reserved
	if headroom < 0 {
		return 0
	}
	return headroom
}

// ApplyFill applies a confirmed fill to the market's position using
// weighted-average cost basis. Realized PnL is booked when the fill reduces
// or flips the sign of NetSize. Fills are deduplicated by order ID: applying
// the same order twice is a no-op.
func (l *Ledger) ApplyFill(fill types.Fill) {
	if fill.Size <= 0 {
		return
	}

	st := l.state(fill.Venue, fill.MarketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, dup := st.applied[fill.OrderID]; dup {
		FillsDedupedTotal.WithLabelValues(string(fill.Venue)).Inc()
		l.logger.Debug("duplicate-fill-ignored",
			zap.String("order-id", fill.OrderID),
			zap.String("market-id", fill.MarketID))
		return
	}
	st.applied[fill.OrderID] = struct{}{}

	delta := fill.SignedSize()
	price := fill.YesEquivalentPrice()
	pos := &st.position

	switch {
	case pos.NetSize == 0 || sameSign(pos.NetSize, delta):
		// Opening or adding: weighted-average entry.
		total := abs(pos.NetSize) + abs(delta)
		pos.AvgCost = (abs(pos.NetSize)*pos.AvgCost + abs(delta)*price) / total
		pos.NetSize += delta
	default:
		// Reducing or flipping: realize on the closed quantity.
		closed := abs(delta)
		if closed > abs(pos.NetSize) {
			closed = abs(pos.NetSize)
		}
		pos.RealizedPnl += (price - pos.AvgCost) * closed * sign(pos.NetSize)

		remainder := abs(delta) - closed
		pos.NetSize += delta
		if remainder > 0 {
			// Flip: the leftover opens a fresh position at the fill price.
			pos.AvgCost = price
		} else if pos.NetSize == 0 {
			pos.AvgCost = 0
		}
	}

	pos.LastUpdatedAt = fill.FilledAt
	if pos.LastUpdatedAt.IsZero() {
		pos.LastUpdatedAt = time.Now()
	}

	FillsAppliedTotal.WithLabelValues(string(fill.Venue)).Inc()
	NetExposure.WithLabelValues(string(fill.Venue), fill.MarketID).Set(pos.NetSize)

	l.logger.Info("fill-applied",
		zap.String("order-id", fill.OrderID),
		zap.String("venue", string(fill.Venue)),
		zap.String("market-id", fill.MarketID),
		zap.Float64("delta", delta),
		zap.Float64("net-size", pos.NetSize),
		zap.Float64("avg-cost", pos.AvgCost),
		zap.Float64("realized-pnl", pos.RealizedPnl))
}

// MarkToMarket recomputes unrealized PnL from a current YES price without
// touching NetSize or AvgCost.
func (l *Ledger) MarkToMarket(venue types.Venue, marketID string, yesPrice float64) float64 {
	st := l.state(venue, marketID)
	st.mu.Lock()
	defer st.mu.Unlock()

	pos := &st.position
	pos.UnrealizedPnl = (yesPrice - pos.AvgCost) * pos.NetSize
	return pos.UnrealizedPnl
}

// Position returns a copy of the market's position.
func (l *Ledger) Position(venue types.Venue, marketID string) (Position, bool) {
	l.mu.Lock()
	st, ok := l.markets[marketKey{venue: venue, marketID: marketID}]
	l.mu.Unlock()
	if !ok {
		return Position{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.position, true
}

// Positions returns a copy of every tracked position.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	states := make([]*marketState, 0, len(l.markets))
	for _, st := range l.markets {
		states = append(states, st)
	}
	l.mu.Unlock()

	out := make([]Position, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.position)
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Venue != out[j].Venue {
			return out[i].Venue < out[j].Venue
		}
		return out[i].MarketID < out[j].MarketID
	})

	return out
}

// TotalPnl sums realized and unrealized PnL across all positions.
func (l *Ledger) TotalPnl() (realized, unrealized float64) {
	for _, pos := range l.Positions() {
		realized += pos.RealizedPnl
		unrealized += pos.UnrealizedPnl
	}
	return realized, unrealized
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}
