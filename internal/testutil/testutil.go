// Package testutil provides in-memory fakes for venue gateways and quote
// feeds used across package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/crossvenue/arb/internal/venue"
	"github.com/crossvenue/arb/pkg/types"
)

type fakeOrderState struct {
	req       venue.OrderRequest
	ratio     float64
	cancelled bool
	late      bool
}

// FakeGateway is a scripted in-memory order gateway. Each submitted order
// consumes one entry from SubmitErrs and Ratios; exhausted scripts fall back
// to successful submission and a full fill.
type FakeGateway struct {
	mu sync.Mutex

	// SubmitErrs is consumed one entry per SubmitOrder call; nil means the
	// submission succeeds.
	SubmitErrs []error
	// Ratios is the fill ratio per submitted order, consumed in order.
	Ratios []float64
	// LateFillOnCancel makes orders report no fill until cancelled, then a
	// full fill, reproducing the fill-beats-cancel race.
	LateFillOnCancel bool

	Submitted []venue.OrderRequest
	Cancelled []string

	seq    int
	orders map[string]*fakeOrderState
}

// NewFakeGateway creates a gateway whose orders fill fully on first poll.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{orders: make(map[string]*fakeOrderState)}
}

func (g *FakeGateway) SubmitOrder(_ context.Context, req venue.OrderRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.SubmitErrs) > 0 {
		err := g.SubmitErrs[0]
		g.SubmitErrs = g.SubmitErrs[1:]
		if err != nil {
			return "", err
		}
	}

	ratio := 1.0
	if len(g.Ratios) > 0 {
		ratio = g.Ratios[0]
		g.Ratios = g.Ratios[1:]
	}

	g.seq++
	id := fmt.Sprintf("ord-%d", g.seq)
	g.orders[id] = &fakeOrderState{req: req, ratio: ratio, late: g.LateFillOnCancel}
	g.Submitted = append(g.Submitted, req)

	return id, nil
}

func (g *FakeGateway) CancelOrder(_ context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.orders[orderID]
	if !ok {
		return venue.ErrOrderNotFound
	}
	st.cancelled = true
	g.Cancelled = append(g.Cancelled, orderID)

	return nil
}

func (g *FakeGateway) OrderStatus(_ context.Context, orderID string) (*types.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.orders[orderID]
	if !ok {
		return nil, venue.ErrOrderNotFound
	}

	if st.late {
		if !st.cancelled {
			return &types.OrderStatus{OrderID: orderID, State: types.OrderSubmitted}, nil
		}
		return &types.OrderStatus{
			OrderID:      orderID,
			State:        types.OrderFilled,
			FilledSize:   st.req.Size,
			AvgFillPrice: st.req.Price,
		}, nil
	}

	filled := st.ratio * st.req.Size
	status := &types.OrderStatus{
		OrderID:      orderID,
		FilledSize:   filled,
		AvgFillPrice: st.req.Price,
	}

	switch {
	case st.ratio >= 1:
		status.State = types.OrderFilled
	case st.cancelled:
		status.State = types.OrderCancelled
	case st.ratio > 0:
		status.State = types.OrderPartiallyFilled
	default:
		status.State = types.OrderSubmitted
	}

	return status, nil
}

// FakeQuoteSource serves a fixed set of quotes per market.
type FakeQuoteSource struct {
	mu     sync.Mutex
	Quotes map[string][]*types.Quote
	Err    error
}

// NewFakeQuoteSource creates an empty quote source.
func NewFakeQuoteSource() *FakeQuoteSource {
	return &FakeQuoteSource{Quotes: make(map[string][]*types.Quote)}
}

// SetQuotes replaces the quotes served for a market.
func (f *FakeQuoteSource) SetQuotes(marketID string, quotes ...*types.Quote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Quotes[marketID] = quotes
}

func (f *FakeQuoteSource) FetchQuotes(_ context.Context, marketID string) ([]*types.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	return f.Quotes[marketID], nil
}

// StaticQuotes is a map-backed quote reader for evaluator and coordinator
// tests.
type StaticQuotes struct {
	mu     sync.Mutex
	quotes map[string]*types.Quote
}

// NewStaticQuotes creates an empty quote reader.
func NewStaticQuotes() *StaticQuotes {
	return &StaticQuotes{quotes: make(map[string]*types.Quote)}
}

// Put stores a quote under its (venue, market, side) key.
func (s *StaticQuotes) Put(q *types.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[fmt.Sprintf("%s/%s/%s", q.Venue, q.MarketID, q.Side)] = q
}

func (s *StaticQuotes) Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quotes[fmt.Sprintf("%s/%s/%s", venue, marketID, side)]
	return q, ok
}
