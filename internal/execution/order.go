// Package execution places hedged order pairs across two venues with a
// bounded two-phase protocol: the harder leg first, the second leg sized to
// what actually filled, and a capped unwind whenever the hedge cannot be
// completed.
package execution

import (
	"fmt"
	"time"

	"github.com/crossvenue/arb/pkg/types"
)

// Order is the engine-side view of one venue order. It mirrors the venue's
// reported lifecycle and enforces the legal transitions locally so a buggy or
// reordered status feed cannot corrupt accounting.
type Order struct {
	ID            string
	Ref           types.MarketRef
	Side          types.Side
	Buy           bool
	Price         float64
	RequestedSize float64
	FilledSize    float64
	AvgFillPrice  float64
	State         types.OrderState
	SubmittedAt   time.Time
	CompletedAt   time.Time
}

var legalTransitions = map[types.OrderState][]types.OrderState{
	types.OrderNew:       {types.OrderSubmitted},
	types.OrderSubmitted: {types.OrderPartiallyFilled, types.OrderFilled, types.OrderCancelled, types.OrderExpired},
	types.OrderPartiallyFilled: {
		types.OrderPartiallyFilled, types.OrderFilled, types.OrderCancelled, types.OrderExpired,
	},
}

func newOrder(ref types.MarketRef, side types.Side, buy bool, price, size float64) *Order {
	return &Order{
		Ref:           ref,
		Side:          side,
		Buy:           buy,
		Price:         price,
		RequestedSize: size,
		State:         types.OrderNew,
	}
}

// transition moves the order to a new state, rejecting illegal edges.
// Terminal states are immutable.
func (o *Order) transition(to types.OrderState) error {
	if o.State.Terminal() {
		return fmt.Errorf("order %s is terminal in state %s", o.ID, o.State)
	}
	for _, allowed := range legalTransitions[o.State] {
		if allowed == to {
			o.State = to
			if to.Terminal() {
				o.CompletedAt = time.Now()
			}
			return nil
		}
	}
	return fmt.Errorf("order %s: illegal transition %s -> %s", o.ID, o.State, to)
}

// applyStatus folds a venue status report into the order. Fill size is
// monotonic and clamped to the requested size; a report that regresses the
// fill is ignored. A status matching the current state is a no-op for the
// state machine but may still advance the fill.
func (o *Order) applyStatus(status *types.OrderStatus) error {
	filled := status.FilledSize
	if filled > o.RequestedSize {
		filled = o.RequestedSize
	}
	if filled > o.FilledSize {
		o.FilledSize = filled
		if status.AvgFillPrice > 0 {
			o.AvgFillPrice = status.AvgFillPrice
		}
	}

	if status.State == o.State {
		return nil
	}
	return o.transition(status.State)
}

// fill converts the order's confirmed quantity into a ledger fill. Returns
// false when nothing filled.
func (o *Order) fill(filledAt time.Time) (types.Fill, bool) {
	if o.FilledSize <= 0 {
		return types.Fill{}, false
	}

	price := o.AvgFillPrice
	if price == 0 {
		price = o.Price
	}

	return types.Fill{
		OrderID:  o.ID,
		Venue:    o.Ref.Venue,
		MarketID: o.Ref.MarketID,
		Side:     o.Side,
		Buy:      o.Buy,
		Size:     o.FilledSize,
		Price:    price,
		FilledAt: filledAt,
	}, true
}
