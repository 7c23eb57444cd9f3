package arbitrage

import (
	"fmt"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

type fakeQuotes struct {
	quotes map[string]*types.Quote
}

func newFakeQuotes() *fakeQuotes {
	return &fakeQuotes{quotes: make(map[string]*types.Quote)}
}

func (f *fakeQuotes) put(q *types.Quote) {
	f.quotes[fmt.Sprintf("%s/%s/%s", q.Venue, q.MarketID, q.Side)] = q
}

func (f *fakeQuotes) Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool) {
	q, ok := f.quotes[fmt.Sprintf("%s/%s/%s", venue, marketID, side)]
	return q, ok
}

type fakeHeadroom struct {
	headroom float64
}

func (f *fakeHeadroom) Headroom(types.Venue, string) float64 {
	return f.headroom
}

func feeSchedule(venue types.Venue) float64 {
	if venue == types.VenueKalshi {
		return 0.01
	}
	return 0.02
}

func testPair() *types.VerifiedPair {
	return &types.VerifiedPair{
		ID:     "pair-1",
		VenueA: types.MarketRef{Venue: types.VenueKalshi, MarketID: "FED-25MAR"},
		VenueB: types.MarketRef{Venue: types.VenuePolymarket, MarketID: "0xabc"},
		Status: types.PairActive,
	}
}

func testEvaluator(q QuoteReader, h HeadroomSource, crossSell bool) *Evaluator {
	return New(&Config{
		Quotes:                q,
		Ledger:                h,
		FeeFor:                feeSchedule,
		Logger:                zap.NewNop(),
		MinArbitrageThreshold: 0.01,
		MaxTradeSize:          1000,
		SlippageTolerance:     0.02,
		EnableCrossSell:       crossSell,
	})
}

func askQuote(venue types.Venue, marketID string, side types.Side, ask, size float64) *types.Quote {
	return &types.Quote{
		Venue:        venue,
		MarketID:     marketID,
		Side:         side,
		BestAskPrice: ask,
		BestAskSize:  size,
		ObservedAt:   time.Now(),
	}
}

func TestEvaluate_CrossBuyQualifies(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.45, 500))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 300))

	e := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	opp := e.Evaluate(testPair())

	if opp == nil {
		t.Fatal("expected opportunity")
	}
	if opp.Direction != DirectionCrossBuy {
		t.Errorf("expected cross_buy, got %s", opp.Direction)
	}
	if math.Abs(opp.Combined-0.95) > 1e-9 {
		t.Errorf("expected combined=0.95, got %.4f", opp.Combined)
	}
	// fees = 0.45*0.01 + 0.50*0.02 = 0.0145; buffer = 0.95*0.02 = 0.019
	if math.Abs(opp.NetEdge-0.0165) > 1e-9 {
		t.Errorf("expected net edge=0.0165, got %.6f", opp.NetEdge)
	}
	if math.Abs(opp.MaxSize-300) > 1e-9 {
		t.Errorf("expected size capped at smaller depth 300, got %.2f", opp.MaxSize)
	}
}

func TestEvaluate_NoEdgeReturnsNil(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.55, 500))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 300))

	e := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	if opp := e.Evaluate(testPair()); opp != nil {
		t.Errorf("expected nil for combined >= 1, got %+v", opp)
	}
}

func TestEvaluate_MissingQuoteReturnsNil(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.45, 500))

	e := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	if opp := e.Evaluate(testPair()); opp != nil {
		t.Errorf("expected nil with one leg unquoted, got %+v", opp)
	}
}

func TestEvaluate_ZeroHeadroomReturnsNil(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.45, 500))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 300))

	e := testEvaluator(q, &fakeHeadroom{headroom: 0}, false)
	if opp := e.Evaluate(testPair()); opp != nil {
		t.Errorf("expected nil with no ledger headroom, got %+v", opp)
	}
}

func TestEvaluate_SizeCappedByMaxTradeSize(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.40, 5000))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 5000))

	e := testEvaluator(q, &fakeHeadroom{headroom: 10000}, false)
	opp := e.Evaluate(testPair())

	if opp == nil {
		t.Fatal("expected opportunity")
	}
	if math.Abs(opp.MaxSize-1000) > 1e-9 {
		t.Errorf("expected size capped at 1000, got %.2f", opp.MaxSize)
	}
}

func TestEvaluate_CrossSellRequiresFlag(t *testing.T) {
	bidQuote := func(venue types.Venue, marketID string, side types.Side, bid, size float64) *types.Quote {
		return &types.Quote{
			Venue:        venue,
			MarketID:     marketID,
			Side:         side,
			BestBidPrice: bid,
			BestBidSize:  size,
			ObservedAt:   time.Now(),
		}
	}

	q := newFakeQuotes()
	q.put(bidQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.60, 400))
	q.put(bidQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 400))

	disabled := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	if opp := disabled.Evaluate(testPair()); opp != nil {
		t.Errorf("expected cross-sell to be off by default, got %+v", opp)
	}

	enabled := testEvaluator(q, &fakeHeadroom{headroom: 5000}, true)
	opp := enabled.Evaluate(testPair())
	if opp == nil {
		t.Fatal("expected cross-sell opportunity with flag enabled")
	}
	if opp.Direction != DirectionCrossSell {
		t.Errorf("expected cross_sell, got %s", opp.Direction)
	}
	// proceeds 1.10, gross 0.10, fees 0.60*0.01+0.50*0.02=0.016, buffer 0.022
	if math.Abs(opp.NetEdge-0.062) > 1e-9 {
		t.Errorf("expected net edge=0.062, got %.6f", opp.NetEdge)
	}
}

func TestRevalidate_FailsAfterQuoteMoves(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.45, 500))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 300))

	e := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	opp := e.Evaluate(testPair())
	if opp == nil {
		t.Fatal("expected opportunity")
	}

	// Ask moves against us before execution.
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.52, 500))

	if fresh := e.Revalidate(opp); fresh != nil {
		t.Errorf("expected revalidation to fail after move, got %+v", fresh)
	}
}

func TestRevalidate_ReturnsFreshPricing(t *testing.T) {
	q := newFakeQuotes()
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.45, 500))
	q.put(askQuote(types.VenuePolymarket, "0xabc", types.SideNo, 0.50, 300))

	e := testEvaluator(q, &fakeHeadroom{headroom: 5000}, false)
	opp := e.Evaluate(testPair())
	if opp == nil {
		t.Fatal("expected opportunity")
	}

	// Edge improves slightly; revalidation should pick up the new price.
	q.put(askQuote(types.VenueKalshi, "FED-25MAR", types.SideYes, 0.44, 500))

	fresh := e.Revalidate(opp)
	if fresh == nil {
		t.Fatal("expected revalidation to succeed")
	}
	if math.Abs(fresh.LegA.Price-0.44) > 1e-9 {
		t.Errorf("expected fresh leg price 0.44, got %.4f", fresh.LegA.Price)
	}
}
