// Package arbitrage evaluates verified pairs against cached quotes and
// produces sized, fee-adjusted opportunities for the execution coordinator.
package arbitrage

import (
	"time"

	"github.com/google/uuid"

	"github.com/crossvenue/arb/pkg/types"
)

// Direction is the shape of the combined trade.
type Direction string

const (
	// DirectionCrossBuy buys complementary sides on the two venues for a
	// combined price under 1.
	DirectionCrossBuy Direction = "cross_buy"
	// DirectionCrossSell sells complementary sides for combined proceeds
	// over 1. Requires inventory or short capability on both venues.
	DirectionCrossSell Direction = "cross_sell"
)

// Leg is one venue-side of an opportunity.
type Leg struct {
	Ref   types.MarketRef `json:"ref"`
	Side  types.Side      `json:"side"`
	Buy   bool            `json:"buy"`
	Price float64         `json:"price"`
	Depth float64         `json:"depth"`
	Fee   float64         `json:"fee"`
}

// Opportunity is an immutable snapshot of a qualifying price discrepancy.
// All economics are computed at detection time; the coordinator re-validates
// against live quotes before committing capital.
type Opportunity struct {
	ID        string    `json:"id"`
	PairID    string    `json:"pair_id"`
	Direction Direction `json:"direction"`
	LegA      Leg       `json:"leg_a"`
	LegB      Leg       `json:"leg_b"`

	// Combined is the sum of the two leg prices.
	Combined float64 `json:"combined"`
	// GrossSpread is the locked payout edge before costs.
	GrossSpread float64 `json:"gross_spread"`
	// FeeCost is the per-contract taker fee across both legs.
	FeeCost float64 `json:"fee_cost"`
	// SlippageBuffer is the haircut reserved for price movement between
	// detection and fill.
	SlippageBuffer float64 `json:"slippage_buffer"`
	// NetEdge is GrossSpread minus FeeCost minus SlippageBuffer.
	NetEdge float64 `json:"net_edge"`
	// EdgeRatio is NetEdge over Combined, the figure compared against the
	// qualification threshold.
	EdgeRatio float64 `json:"edge_ratio"`

	// MaxSize is the executable size: the minimum of both depths, the trade
	// size cap and ledger headroom on both legs.
	MaxSize float64 `json:"max_size"`

	DetectedAt time.Time `json:"detected_at"`
}

func newOpportunity(pairID string, dir Direction, legA, legB Leg, slippageTolerance float64) *Opportunity {
	combined := legA.Price + legB.Price
	fees := legA.Price*legA.Fee + legB.Price*legB.Fee
	buffer := combined * slippageTolerance

	var gross float64
	if dir == DirectionCrossBuy {
		gross = 1.0 - combined
	} else {
		gross = combined - 1.0
	}

	net := gross - fees - buffer

	opp := &Opportunity{
		ID:             uuid.New().String(),
		PairID:         pairID,
		Direction:      dir,
		LegA:           legA,
		LegB:           legB,
		Combined:       combined,
		GrossSpread:    gross,
		FeeCost:        fees,
		SlippageBuffer: buffer,
		NetEdge:        net,
		DetectedAt:     time.Now(),
	}
	if combined > 0 {
		opp.EdgeRatio = net / combined
	}
	return opp
}

// ExpectedProfit is the net edge scaled to a given size.
func (o *Opportunity) ExpectedProfit(size float64) float64 {
	return o.NetEdge * size
}
