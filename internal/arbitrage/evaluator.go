package arbitrage

import (
	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

// QuoteReader is the evaluator's view of the quote cache.
type QuoteReader interface {
	Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool)
}

// HeadroomSource is the evaluator's view of the position ledger.
type HeadroomSource interface {
	Headroom(venue types.Venue, marketID string) float64
}

// Config holds evaluator configuration.
type Config struct {
	Quotes QuoteReader
	Ledger HeadroomSource
	FeeFor func(venue types.Venue) float64
	Logger *zap.Logger

	MinArbitrageThreshold float64
	MaxTradeSize          float64
	SlippageTolerance     float64
	EnableCrossSell       bool
}

// Evaluator scans a verified pair's cached quotes for executable price
// discrepancies. It is read-only: it never mutates the ledger or the pair.
type Evaluator struct {
	quotes QuoteReader
	ledger HeadroomSource
	feeFor func(venue types.Venue) float64
	logger *zap.Logger

	minThreshold      float64
	maxTradeSize      float64
	slippageTolerance float64
	enableCrossSell   bool
}

// New creates an evaluator.
func New(cfg *Config) *Evaluator {
	return &Evaluator{
		quotes:            cfg.Quotes,
		ledger:            cfg.Ledger,
		feeFor:            cfg.FeeFor,
		logger:            cfg.Logger,
		minThreshold:      cfg.MinArbitrageThreshold,
		maxTradeSize:      cfg.MaxTradeSize,
		slippageTolerance: cfg.SlippageTolerance,
		enableCrossSell:   cfg.EnableCrossSell,
	}
}

// Evaluate checks every trade shape for the pair and returns the best
// qualifying opportunity, or nil if none qualifies. A pair with any stale or
// missing quote produces nil, never a guess.
func (e *Evaluator) Evaluate(pair *types.VerifiedPair) *Opportunity {
	EvaluationsTotal.Inc()

	candidates := []*Opportunity{
		e.crossBuy(pair, types.SideYes),
		e.crossBuy(pair, types.SideNo),
	}
	if e.enableCrossSell {
		candidates = append(candidates,
			e.crossSell(pair, types.SideYes),
			e.crossSell(pair, types.SideNo),
		)
	}

	var best *Opportunity
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if best == nil || c.EdgeRatio > best.EdgeRatio {
			best = c
		}
	}

	if best != nil {
		OpportunitiesDetectedTotal.WithLabelValues(string(best.Direction)).Inc()
		e.logger.Info("opportunity-detected",
			zap.String("opportunity-id", best.ID),
			zap.String("pair-id", best.PairID),
			zap.String("direction", string(best.Direction)),
			zap.Float64("combined", best.Combined),
			zap.Float64("net-edge", best.NetEdge),
			zap.Float64("edge-ratio", best.EdgeRatio),
			zap.Float64("max-size", best.MaxSize))
	}

	return best
}

// Revalidate re-prices an opportunity against live quotes at execution time.
// It returns a fresh opportunity in the same direction and sides, or nil if
// the edge no longer qualifies.
func (e *Evaluator) Revalidate(opp *Opportunity) *Opportunity {
	pair := &types.VerifiedPair{
		ID:     opp.PairID,
		VenueA: opp.LegA.Ref,
		VenueB: opp.LegB.Ref,
	}

	var fresh *Opportunity
	if opp.Direction == DirectionCrossBuy {
		fresh = e.crossBuy(pair, opp.LegA.Side)
	} else {
		fresh = e.crossSell(pair, opp.LegA.Side)
	}

	if fresh == nil {
		RevalidationFailuresTotal.Inc()
	}
	return fresh
}

// crossBuy prices buying sideA on venue A against the complementary side on
// venue B, both at the ask.
func (e *Evaluator) crossBuy(pair *types.VerifiedPair, sideA types.Side) *Opportunity {
	quoteA, ok := e.quotes.Get(pair.VenueA.Venue, pair.VenueA.MarketID, sideA)
	if !ok {
		return nil
	}
	quoteB, ok := e.quotes.Get(pair.VenueB.Venue, pair.VenueB.MarketID, sideA.Opposite())
	if !ok {
		return nil
	}
	if quoteA.BestAskSize <= 0 || quoteB.BestAskSize <= 0 {
		return nil
	}

	legA := Leg{
		Ref:   pair.VenueA,
		Side:  sideA,
		Buy:   true,
		Price: quoteA.BestAskPrice,
		Depth: quoteA.BestAskSize,
		Fee:   e.feeFor(pair.VenueA.Venue),
	}
	legB := Leg{
		Ref:   pair.VenueB,
		Side:  sideA.Opposite(),
		Buy:   true,
		Price: quoteB.BestAskPrice,
		Depth: quoteB.BestAskSize,
		Fee:   e.feeFor(pair.VenueB.Venue),
	}

	return e.qualify(newOpportunity(pair.ID, DirectionCrossBuy, legA, legB, e.slippageTolerance))
}

// crossSell prices selling sideA on venue A against the complementary side on
// venue B, both at the bid.
func (e *Evaluator) crossSell(pair *types.VerifiedPair, sideA types.Side) *Opportunity {
	quoteA, ok := e.quotes.Get(pair.VenueA.Venue, pair.VenueA.MarketID, sideA)
	if !ok {
		return nil
	}
	quoteB, ok := e.quotes.Get(pair.VenueB.Venue, pair.VenueB.MarketID, sideA.Opposite())
	if !ok {
		return nil
	}
	if quoteA.BestBidSize <= 0 || quoteB.BestBidSize <= 0 {
		return nil
	}

	legA := Leg{
		Ref:   pair.VenueA,
		Side:  sideA,
		Buy:   false,
		Price: quoteA.BestBidPrice,
		Depth: quoteA.BestBidSize,
		Fee:   e.feeFor(pair.VenueA.Venue),
	}
	legB := Leg{
		Ref:   pair.VenueB,
		Side:  sideA.Opposite(),
		Buy:   false,
		Price: quoteB.BestBidPrice,
		Depth: quoteB.BestBidSize,
		Fee:   e.feeFor(pair.VenueB.Venue),
	}

	return e.qualify(newOpportunity(pair.ID, DirectionCrossSell, legA, legB, e.slippageTolerance))
}

func (e *Evaluator) qualify(opp *Opportunity) *Opportunity {
	if opp.EdgeRatio < e.minThreshold {
		return nil
	}

	size := min4(
		opp.LegA.Depth,
		opp.LegB.Depth,
		e.maxTradeSize,
		e.headroom(opp),
	)
	if size <= 0 {
		RejectedNoHeadroomTotal.Inc()
		return nil
	}

	opp.MaxSize = size
	return opp
}

func (e *Evaluator) headroom(opp *Opportunity) float64 {
	a := e.ledger.Headroom(opp.LegA.Ref.Venue, opp.LegA.Ref.MarketID)
	b := e.ledger.Headroom(opp.LegB.Ref.Venue, opp.LegB.Ref.MarketID)
	if b < a {
		return b
	}
	return a
}

func min4(a, b, c, d float64) float64 {
	m := a
	for _, v := range []float64{b, c, d} {
		if v < m {
			m = v
		}
	}
	return m
}
