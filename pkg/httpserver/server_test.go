package httpserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/pkg/healthprobe"
	"github.com/crossvenue/arb/pkg/types"
)

type stubPairs struct{}

func (stubPairs) Snapshot() []types.VerifiedPair {
	return []types.VerifiedPair{{
		ID:     "pair-1",
		VenueA: types.MarketRef{Venue: types.VenueKalshi, MarketID: "FED-25MAR"},
		VenueB: types.MarketRef{Venue: types.VenuePolymarket, MarketID: "0xabc"},
		Status: types.PairActive,
	}}
}

type stubControl struct {
	paused  []string
	resumed []string
}

func (s *stubControl) Pause(id string) error {
	if id != "pair-1" {
		return errors.New("pair not found")
	}
	s.paused = append(s.paused, id)
	return nil
}

func (s *stubControl) Resume(id string) error {
	if id != "pair-1" {
		return errors.New("pair not found")
	}
	s.resumed = append(s.resumed, id)
	return nil
}

type stubLedger struct{}

func (stubLedger) Positions() []ledger.Position {
	return []ledger.Position{{
		Venue:    types.VenueKalshi,
		MarketID: "FED-25MAR",
		NetSize:  100,
		AvgCost:  0.45,
	}}
}

func (stubLedger) TotalPnl() (float64, float64) { return 3.55, 1.2 }

func testServer(ready bool) *httptest.Server {
	ts, _ := testServerWithControl(ready)
	return ts
}

func testServerWithControl(ready bool) (*httptest.Server, *stubControl) {
	probe := healthprobe.New()
	probe.SetReady(ready)

	control := &stubControl{}
	s := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: probe,
		Pairs:         stubPairs{},
		PairControl:   control,
		Ledger:        stubLedger{},
	})

	return httptest.NewServer(s.server.Handler), control
}

func TestServer_Health(t *testing.T) {
	ts := testServer(false)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServer_ReadyReflectsProbe(t *testing.T) {
	notReady := testServer(false)
	defer notReady.Close()

	resp, err := http.Get(notReady.URL + "/ready")
	if err != nil {
		t.Fatalf("get ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before ready, got %d", resp.StatusCode)
	}

	ready := testServer(true)
	defer ready.Close()

	resp, err = http.Get(ready.URL + "/ready")
	if err != nil {
		t.Fatalf("get ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 when ready, got %d", resp.StatusCode)
	}
}

func TestServer_Pairs(t *testing.T) {
	ts := testServer(true)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/pairs")
	if err != nil {
		t.Fatalf("get pairs: %v", err)
	}
	defer resp.Body.Close()

	var body pairsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Pairs) != 1 || body.Pairs[0].ID != "pair-1" {
		t.Errorf("unexpected pairs payload: %+v", body)
	}
}

func TestServer_PauseAndResumePair(t *testing.T) {
	ts, control := testServerWithControl(true)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/pairs/pair-1/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("post pause: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body pairStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PairID != "pair-1" || body.Status != "paused" {
		t.Errorf("unexpected pause payload: %+v", body)
	}
	if len(control.paused) != 1 {
		t.Errorf("expected one pause call, got %d", len(control.paused))
	}

	resp, err = http.Post(ts.URL+"/api/pairs/pair-1/resume", "application/json", nil)
	if err != nil {
		t.Fatalf("post resume: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || len(control.resumed) != 1 {
		t.Errorf("expected resume to succeed once, got status %d calls %d", resp.StatusCode, len(control.resumed))
	}
}

func TestServer_PauseUnknownPairIs404(t *testing.T) {
	ts, control := testServerWithControl(true)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/pairs/nope/pause", "application/json", nil)
	if err != nil {
		t.Fatalf("post pause: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown pair, got %d", resp.StatusCode)
	}
	if len(control.paused) != 0 {
		t.Error("expected no pause recorded for unknown pair")
	}
}

func TestServer_Positions(t *testing.T) {
	ts := testServer(true)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/positions")
	if err != nil {
		t.Fatalf("get positions: %v", err)
	}
	defer resp.Body.Close()

	var body positionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Positions) != 1 || body.RealizedPnl != 3.55 {
		t.Errorf("unexpected positions payload: %+v", body)
	}
}
