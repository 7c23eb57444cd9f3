package execution

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/notify"
	"github.com/crossvenue/arb/internal/testutil"
	"github.com/crossvenue/arb/internal/venue"
	"github.com/crossvenue/arb/pkg/types"
)

type stubLedger struct {
	mu         sync.Mutex
	fills      []types.Fill
	reserveErr error
}

func (s *stubLedger) Reserve(types.Venue, string, float64) error { return s.reserveErr }
func (s *stubLedger) Release(types.Venue, string, float64)       {}
func (s *stubLedger) ApplyFill(fill types.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills = append(s.fills, fill)
}

func (s *stubLedger) fillsFor(v types.Venue) []types.Fill {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Fill
	for _, f := range s.fills {
		if f.Venue == v {
			out = append(out, f)
		}
	}
	return out
}

type stubRevalidator struct {
	result *arbitrage.Opportunity
}

func (s *stubRevalidator) Revalidate(*arbitrage.Opportunity) *arbitrage.Opportunity {
	return s.result
}

type stubCooldowner struct {
	mu    sync.Mutex
	pairs []string
}

func (s *stubCooldowner) SetCooldown(id string, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs = append(s.pairs, id)
}

type stubStorage struct {
	mu      sync.Mutex
	records []*Record
}

func (s *stubStorage) SaveExecution(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

type sentAlert struct {
	severity notify.Severity
	title    string
}

type stubAlerter struct {
	mu     sync.Mutex
	alerts []sentAlert
}

func (s *stubAlerter) Alert(_ context.Context, severity notify.Severity, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, sentAlert{severity: severity, title: title})
	return nil
}

type harness struct {
	coordinator *Coordinator
	gatewayA    *testutil.FakeGateway
	gatewayB    *testutil.FakeGateway
	ledger      *stubLedger
	cooldowns   *stubCooldowner
	storage     *stubStorage
	alerter     *stubAlerter
	revalidator *stubRevalidator
}

func newHarness(opp *arbitrage.Opportunity) *harness {
	h := &harness{
		gatewayA:    testutil.NewFakeGateway(),
		gatewayB:    testutil.NewFakeGateway(),
		ledger:      &stubLedger{},
		cooldowns:   &stubCooldowner{},
		storage:     &stubStorage{},
		alerter:     &stubAlerter{},
		revalidator: &stubRevalidator{result: opp},
	}

	h.coordinator = New(&Config{
		Gateways: map[types.Venue]venue.OrderGateway{
			types.VenueKalshi:     h.gatewayA,
			types.VenuePolymarket: h.gatewayB,
		},
		Ledger:            h.ledger,
		Revalidator:       h.revalidator,
		Pairs:             h.cooldowns,
		Storage:           h.storage,
		Alerter:           h.alerter,
		Quotes:            testutil.NewStaticQuotes(),
		Logger:            zap.NewNop(),
		OrderTimeout:      60 * time.Millisecond,
		CooldownPeriod:    5 * time.Second,
		UnwindMaxAttempts: 3,
		SlippageTolerance: 0.02,
		GatewayMaxRetries: 2,
		GatewayRetryDelay: time.Millisecond,
		PollInterval:      time.Millisecond,
	})

	return h
}

// testOpportunity has the thinner depth on venue A so the kalshi leg goes
// first.
func testOpportunity() *arbitrage.Opportunity {
	return &arbitrage.Opportunity{
		ID:        "opp-1",
		PairID:    "pair-1",
		Direction: arbitrage.DirectionCrossBuy,
		LegA: arbitrage.Leg{
			Ref:   types.MarketRef{Venue: types.VenueKalshi, MarketID: "FED-25MAR"},
			Side:  types.SideYes,
			Buy:   true,
			Price: 0.45,
			Depth: 300,
			Fee:   0.01,
		},
		LegB: arbitrage.Leg{
			Ref:   types.MarketRef{Venue: types.VenuePolymarket, MarketID: "0xabc"},
			Side:  types.SideNo,
			Buy:   true,
			Price: 0.50,
			Depth: 500,
			Fee:   0.02,
		},
		MaxSize: 100,
	}
}

func TestExecute_FullSuccess(t *testing.T) {
	h := newHarness(testOpportunity())

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptBothConfirmed {
		t.Errorf("expected both_confirmed, got %s", rec.State)
	}
	if math.Abs(rec.HedgedSize-100) > 1e-9 || rec.Residual > 1e-9 {
		t.Errorf("expected fully hedged 100, got hedged=%.2f residual=%.2f", rec.HedgedSize, rec.Residual)
	}
	// gross (1-0.45-0.50)=0.05, fees 0.45*0.01+0.50*0.02=0.0145, on 100
	if math.Abs(rec.RealizedEdge-3.55) > 1e-9 {
		t.Errorf("expected realized edge 3.55, got %.4f", rec.RealizedEdge)
	}
	if len(h.ledger.fills) != 2 {
		t.Errorf("expected 2 ledger fills, got %d", len(h.ledger.fills))
	}
	if len(h.cooldowns.pairs) != 1 {
		t.Errorf("expected cooldown stamped once, got %d", len(h.cooldowns.pairs))
	}
	if len(h.storage.records) != 1 {
		t.Errorf("expected 1 stored record, got %d", len(h.storage.records))
	}
	if len(h.alerter.alerts) != 1 {
		t.Fatalf("expected exactly 1 notification for the terminal attempt, got %d", len(h.alerter.alerts))
	}
	if a := h.alerter.alerts[0]; a.severity != notify.SeverityInfo || a.title != "execution both_confirmed" {
		t.Errorf("unexpected notification %+v", a)
	}
}

func TestExecute_ThinnerLegGoesFirst(t *testing.T) {
	opp := testOpportunity()
	opp.LegA.Depth = 500
	opp.LegB.Depth = 120

	h := newHarness(opp)
	rec, err := h.coordinator.Execute(context.Background(), opp)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptBothConfirmed {
		t.Fatalf("expected both_confirmed, got %s", rec.State)
	}
	if len(h.gatewayB.Submitted) != 1 || h.gatewayB.Submitted[0].MarketID != "0xabc" {
		t.Fatal("expected thin polymarket leg to be submitted")
	}
	if rec.LegA.Ref.Venue != types.VenuePolymarket {
		t.Errorf("expected first leg on polymarket, got %s", rec.LegA.Ref.Venue)
	}
}

func TestExecute_PartialFirstLegResizesHedge(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayA.Ratios = []float64{0.4}

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptBothConfirmed {
		t.Errorf("expected both_confirmed, got %s", rec.State)
	}
	if math.Abs(rec.HedgedSize-40) > 1e-9 {
		t.Errorf("expected hedge sized to partial fill 40, got %.2f", rec.HedgedSize)
	}
	if len(h.gatewayB.Submitted) != 1 || math.Abs(h.gatewayB.Submitted[0].Size-40) > 1e-9 {
		t.Errorf("expected second leg requested at 40, got %+v", h.gatewayB.Submitted)
	}
}

func TestExecute_ZeroFillFirstLegAborts(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayA.Ratios = []float64{0}

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptAborted {
		t.Errorf("expected aborted, got %s", rec.State)
	}
	if len(h.gatewayB.Submitted) != 0 {
		t.Error("expected no second leg after zero first-leg fill")
	}
	if len(h.cooldowns.pairs) != 0 {
		t.Error("expected no cooldown on abort")
	}
	if len(h.ledger.fills) != 0 {
		t.Errorf("expected no ledger fills, got %d", len(h.ledger.fills))
	}
	if len(h.alerter.alerts) != 1 {
		t.Fatalf("expected exactly 1 notification for the aborted attempt, got %d", len(h.alerter.alerts))
	}
	if a := h.alerter.alerts[0]; a.severity != notify.SeverityInfo || a.title != "execution aborted" {
		t.Errorf("unexpected notification %+v", a)
	}
}

func TestExecute_ZeroFillSecondLegUnwinds(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayB.Ratios = []float64{0}

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptUnwound {
		t.Errorf("expected unwound, got %s", rec.State)
	}
	if rec.Flagged {
		t.Error("expected clean unwind to stay unflagged")
	}
	if rec.Residual > 1e-9 {
		t.Errorf("expected zero residual after unwind, got %.2f", rec.Residual)
	}

	// Unwind order is the opposite side of the filled first leg.
	if len(h.gatewayA.Submitted) != 2 {
		t.Fatalf("expected first leg plus one unwind on kalshi, got %d", len(h.gatewayA.Submitted))
	}
	unwindReq := h.gatewayA.Submitted[1]
	if unwindReq.Buy {
		t.Error("expected unwind to sell the bought leg")
	}
	if len(h.cooldowns.pairs) != 1 {
		t.Error("expected cooldown after unwind")
	}

	kalshiFills := h.ledger.fillsFor(types.VenueKalshi)
	if len(kalshiFills) != 2 {
		t.Fatalf("expected entry and unwind fills on kalshi, got %d", len(kalshiFills))
	}
	if kalshiFills[1].Buy {
		t.Error("expected unwind fill to be a sell")
	}
	if len(h.alerter.alerts) != 1 {
		t.Fatalf("expected exactly 1 notification for the unwound attempt, got %d", len(h.alerter.alerts))
	}
	if a := h.alerter.alerts[0]; a.severity != notify.SeverityInfo || a.title != "execution unwound" {
		t.Errorf("unexpected notification %+v", a)
	}
}

func TestExecute_ExhaustedUnwindFlagsRecord(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayA.Ratios = []float64{1, 0, 0, 0}
	h.gatewayB.Ratios = []float64{0}

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptUnwound {
		t.Errorf("expected unwound, got %s", rec.State)
	}
	if !rec.Flagged {
		t.Error("expected surviving residual to flag the record")
	}
	if math.Abs(rec.Residual-100) > 1e-9 {
		t.Errorf("expected full residual 100, got %.2f", rec.Residual)
	}
	if len(rec.Unwinds) != 3 {
		t.Errorf("expected 3 unwind attempts, got %d", len(rec.Unwinds))
	}
	if len(h.alerter.alerts) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(h.alerter.alerts))
	}
	if a := h.alerter.alerts[0]; a.severity != notify.SeverityHigh || a.title != "unhedged residual" {
		t.Errorf("expected high-severity residual notification, got %+v", a)
	}
}

func TestExecute_LateFillAfterCancelIsKept(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayA.LateFillOnCancel = true

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptBothConfirmed {
		t.Errorf("expected both_confirmed after late fill, got %s", rec.State)
	}
	if len(h.gatewayA.Cancelled) != 1 {
		t.Errorf("expected one cancel on kalshi, got %d", len(h.gatewayA.Cancelled))
	}
	kalshiFills := h.ledger.fillsFor(types.VenueKalshi)
	if len(kalshiFills) != 1 || math.Abs(kalshiFills[0].Size-100) > 1e-9 {
		t.Errorf("expected full late fill applied, got %+v", kalshiFills)
	}
}

func TestExecute_RevalidationFailureAborts(t *testing.T) {
	h := newHarness(testOpportunity())
	h.revalidator.result = nil

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptAborted {
		t.Errorf("expected aborted, got %s", rec.State)
	}
	if len(h.gatewayA.Submitted)+len(h.gatewayB.Submitted) != 0 {
		t.Error("expected no orders after failed revalidation")
	}
	if len(h.cooldowns.pairs) != 0 {
		t.Error("expected no cooldown on abort")
	}
}

func TestExecute_ReserveFailureAborts(t *testing.T) {
	h := newHarness(testOpportunity())
	h.ledger.reserveErr = errors.New("limit")

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptAborted {
		t.Errorf("expected aborted, got %s", rec.State)
	}
	if len(h.gatewayA.Submitted) != 0 {
		t.Error("expected no orders after failed reservation")
	}
}

func TestExecute_SecondAttemptOnBusyPairDropped(t *testing.T) {
	h := newHarness(testOpportunity())
	h.coordinator.begin("pair-1")
	defer h.coordinator.end("pair-1")

	_, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if !errors.Is(err, ErrPairBusy) {
		t.Errorf("expected ErrPairBusy, got %v", err)
	}
}

func TestExecute_RejectedSubmitAborts(t *testing.T) {
	h := newHarness(testOpportunity())
	h.gatewayA.SubmitErrs = []error{venue.ErrRejected}

	rec, err := h.coordinator.Execute(context.Background(), testOpportunity())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if rec.State != AttemptAborted {
		t.Errorf("expected aborted on rejection, got %s", rec.State)
	}
}
