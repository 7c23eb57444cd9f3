package types

import "time"

// Venue identifies a trading venue. The engine is venue-agnostic; these
// constants cover the two venues the default configuration talks to.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Side is a binary-contract outcome side.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the other outcome side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// MarketRef identifies a market on a specific venue.
type MarketRef struct {
	Venue    Venue  `json:"venue"`
	MarketID string `json:"market_id"`
}

// Quote is the most recent top-of-book observation for one side of a market.
// Quotes are ephemeral: each refresh overwrites the previous observation, and
// readers must treat anything older than the freshness bound as absent.
type Quote struct {
	Venue        Venue
	MarketID     string
	Side         Side
	BestBidPrice float64
	BestBidSize  float64
	BestAskPrice float64
	BestAskSize  float64
	ObservedAt   time.Time
}

// FreshAt reports whether the quote is usable at the given time under the
// given freshness bound.
func (q *Quote) FreshAt(now time.Time, bound time.Duration) bool {
	return now.Sub(q.ObservedAt) <= bound
}

// PairStatus is the lifecycle state of a verified pair. Pairs are never
// deleted, only paused.
type PairStatus string

const (
	PairActive PairStatus = "active"
	PairPaused PairStatus = "paused"
)

// VerifiedPair links two markets that a human has confirmed to track the same
// underlying event. Created by manual approval; mutated only by pause/resume
// commands and by the execution coordinator stamping cooldowns.
type VerifiedPair struct {
	ID            string     `json:"id"`
	VenueA        MarketRef  `json:"venue_a"`
	VenueB        MarketRef  `json:"venue_b"`
	Status        PairStatus `json:"status"`
	CooldownUntil time.Time  `json:"cooldown_until,omitempty"`
	ApprovedBy    string     `json:"approved_by,omitempty"`
	ApprovedAt    time.Time  `json:"approved_at,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Tradable reports whether the pair may produce execution attempts at the
// given time: active and past any cooldown.
func (p *VerifiedPair) Tradable(now time.Time) bool {
	return p.Status == PairActive && !now.Before(p.CooldownUntil)
}

// OrderState is the venue-observed lifecycle state of an order.
type OrderState string

const (
	OrderNew             OrderState = "new"
	OrderSubmitted       OrderState = "submitted"
	OrderPartiallyFilled OrderState = "partially_filled"
	OrderFilled          OrderState = "filled"
	OrderCancelled       OrderState = "cancelled"
	OrderExpired         OrderState = "expired"
)

// Terminal reports whether the state is final. Terminal orders are immutable.
func (s OrderState) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled || s == OrderExpired
}

// OrderStatus is a fill-status report from a venue order gateway.
type OrderStatus struct {
	OrderID      string
	State        OrderState
	FilledSize   float64
	AvgFillPrice float64
}

// Fill is a confirmed quantity applied to the position ledger. Buy reports
// whether the order added (true) or closed (false) exposure on Side.
type Fill struct {
	OrderID  string
	Venue    Venue
	MarketID string
	Side     Side
	Buy      bool
	Size     float64
	Price    float64
	FilledAt time.Time
}

// SignedSize converts the fill to the ledger's signed convention: positive is
// long YES exposure, negative is long NO (equivalently short YES).
func (f Fill) SignedSize() float64 {
	if (f.Side == SideYes) == f.Buy {
		return f.Size
	}
	return -f.Size
}

// YesEquivalentPrice maps the fill price onto the YES axis: a NO contract at
// price p carries the same payout profile as selling YES at 1-p.
func (f Fill) YesEquivalentPrice() float64 {
	if f.Side == SideYes {
		return f.Price
	}
	return 1.0 - f.Price
}
