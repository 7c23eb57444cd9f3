package ledger

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

func testLedger(maxPosition float64) *Ledger {
	return New(&Config{
		MaxPositionPerMarket: maxPosition,
		Logger:               zap.NewNop(),
	})
}

func yesBuy(orderID string, size, price float64) types.Fill {
	return types.Fill{
		OrderID:  orderID,
		Venue:    types.VenueKalshi,
		MarketID: "FED-25MAR",
		Side:     types.SideYes,
		Buy:      true,
		Size:     size,
		Price:    price,
		FilledAt: time.Now(),
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyFill_OpensPosition(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))

	pos, ok := l.Position(types.VenueKalshi, "FED-25MAR")
	if !ok {
		t.Fatal("expected position to exist")
	}
	if !approx(pos.NetSize, 100) || !approx(pos.AvgCost, 0.45) {
		t.Errorf("unexpected position: net=%.4f avg=%.4f", pos.NetSize, pos.AvgCost)
	}
}

func TestApplyFill_WeightedAverageOnAdd(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.40))
	l.ApplyFill(yesBuy("o2", 100, 0.50))

	pos, _ := l.Position(types.VenueKalshi, "FED-25MAR")
	if !approx(pos.NetSize, 200) || !approx(pos.AvgCost, 0.45) {
		t.Errorf("expected net=200 avg=0.45, got net=%.4f avg=%.4f", pos.NetSize, pos.AvgCost)
	}
}

func TestApplyFill_NoBuyIsNegativeYesExposure(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(types.Fill{
		OrderID:  "o1",
		Venue:    types.VenuePolymarket,
		MarketID: "0xabc",
		Side:     types.SideNo,
		Buy:      true,
		Size:     100,
		Price:    0.50,
	})

	pos, _ := l.Position(types.VenuePolymarket, "0xabc")
	if !approx(pos.NetSize, -100) {
		t.Errorf("expected net=-100, got %.4f", pos.NetSize)
	}
	// NO at 0.50 sits at 0.50 on the YES axis.
	if !approx(pos.AvgCost, 0.50) {
		t.Errorf("expected avg=0.50, got %.4f", pos.AvgCost)
	}
}

func TestApplyFill_ReduceRealizesPnl(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))

	sell := yesBuy("o2", 40, 0.55)
	sell.Buy = false
	l.ApplyFill(sell)

	pos, _ := l.Position(types.VenueKalshi, "FED-25MAR")
	if !approx(pos.NetSize, 60) {
		t.Errorf("expected net=60, got %.4f", pos.NetSize)
	}
	if !approx(pos.AvgCost, 0.45) {
		t.Errorf("expected avg cost unchanged on reduce, got %.4f", pos.AvgCost)
	}
	if !approx(pos.RealizedPnl, 4.0) {
		t.Errorf("expected realized=4.0, got %.4f", pos.RealizedPnl)
	}
}

func TestApplyFill_FlipOpensRemainderAtFillPrice(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))

	sell := yesBuy("o2", 150, 0.50)
	sell.Buy = false
	l.ApplyFill(sell)

	pos, _ := l.Position(types.VenueKalshi, "FED-25MAR")
	if !approx(pos.NetSize, -50) {
		t.Errorf("expected net=-50 after flip, got %.4f", pos.NetSize)
	}
	if !approx(pos.AvgCost, 0.50) {
		t.Errorf("expected avg=0.50 for flipped remainder, got %.4f", pos.AvgCost)
	}
	if !approx(pos.RealizedPnl, 5.0) {
		t.Errorf("expected realized=5.0 on closed 100, got %.4f", pos.RealizedPnl)
	}
}

func TestApplyFill_FullCloseResetsAvgCost(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))

	sell := yesBuy("o2", 100, 0.55)
	sell.Buy = false
	l.ApplyFill(sell)

	pos, _ := l.Position(types.VenueKalshi, "FED-25MAR")
	if !approx(pos.NetSize, 0) || !approx(pos.AvgCost, 0) {
		t.Errorf("expected flat position, got net=%.4f avg=%.4f", pos.NetSize, pos.AvgCost)
	}
	if !approx(pos.RealizedPnl, 10.0) {
		t.Errorf("expected realized=10.0, got %.4f", pos.RealizedPnl)
	}
}

func TestApplyFill_DuplicateOrderIDIgnored(t *testing.T) {
	l := testLedger(5000)

	fill := yesBuy("o1", 100, 0.45)
	l.ApplyFill(fill)
	l.ApplyFill(fill)

	pos, _ := l.Position(types.VenueKalshi, "FED-25MAR")
	if !approx(pos.NetSize, 100) {
		t.Errorf("expected duplicate to be ignored, got net=%.4f", pos.NetSize)
	}
}

func TestReserve_LimitEnforced(t *testing.T) {
	l := testLedger(5000)

	if err := l.Reserve(types.VenueKalshi, "FED-25MAR", 3000); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	err := l.Reserve(types.VenueKalshi, "FED-25MAR", 2500)
	if !errors.Is(err, ErrExposureLimit) {
		t.Errorf("expected ErrExposureLimit, got %v", err)
	}

	l.Release(types.VenueKalshi, "FED-25MAR", 3000)

	if err := l.Reserve(types.VenueKalshi, "FED-25MAR", 2500); err != nil {
		t.Errorf("reserve after release: %v", err)
	}
}

func TestReserve_CountsExistingExposure(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 4000, 0.45))

	err := l.Reserve(types.VenueKalshi, "FED-25MAR", 1500)
	if !errors.Is(err, ErrExposureLimit) {
		t.Errorf("expected ErrExposureLimit over held position, got %v", err)
	}
	if !approx(l.Headroom(types.VenueKalshi, "FED-25MAR"), 1000) {
		t.Errorf("expected headroom 1000, got %.4f", l.Headroom(types.VenueKalshi, "FED-25MAR"))
	}
}

func TestMarkToMarket(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))

	unrealized := l.MarkToMarket(types.VenueKalshi, "FED-25MAR", 0.50)
	if !approx(unrealized, 5.0) {
		t.Errorf("expected unrealized=5.0, got %.4f", unrealized)
	}

	realized, unreal := l.TotalPnl()
	if !approx(realized, 0) || !approx(unreal, 5.0) {
		t.Errorf("unexpected totals: realized=%.4f unrealized=%.4f", realized, unreal)
	}
}

func TestPositions_SortedAndIndependent(t *testing.T) {
	l := testLedger(5000)

	l.ApplyFill(yesBuy("o1", 100, 0.45))
	l.ApplyFill(types.Fill{
		OrderID:  "o2",
		Venue:    types.VenuePolymarket,
		MarketID: "0xabc",
		Side:     types.SideNo,
		Buy:      true,
		Size:     100,
		Price:    0.50,
	})

	positions := l.Positions()
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].Venue != types.VenueKalshi || positions[1].Venue != types.VenuePolymarket {
		t.Errorf("expected venue-sorted order, got %s then %s", positions[0].Venue, positions[1].Venue)
	}
}
