package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/pkg/types"
)

// PaperGateway simulates a venue order gateway for paper trading. Orders fill
// at the requested price after a short delay; a configurable fraction of
// orders fill only partially, which exercises the coordinator's resize and
// unwind paths without real money at risk.
type PaperGateway struct {
	venue         types.Venue
	fillDelay     time.Duration
	partialChance float64
	logger        *zap.Logger

	mu     sync.Mutex
	orders map[string]*paperOrder
	rng    *rand.Rand
}

type paperOrder struct {
	req         OrderRequest
	submittedAt time.Time
	cancelled   bool
	fillRatio   float64
}

// PaperGatewayConfig holds paper gateway configuration.
type PaperGatewayConfig struct {
	Venue         types.Venue
	FillDelay     time.Duration
	PartialChance float64
	Seed          int64
	Logger        *zap.Logger
}

// NewPaperGateway creates a simulated order gateway.
func NewPaperGateway(cfg *PaperGatewayConfig) *PaperGateway {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	fillDelay := cfg.FillDelay
	if fillDelay <= 0 {
		fillDelay = 200 * time.Millisecond
	}

	return &PaperGateway{
		venue:         cfg.Venue,
		fillDelay:     fillDelay,
		partialChance: cfg.PartialChance,
		logger:        cfg.Logger,
		orders:        make(map[string]*paperOrder),
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// SubmitOrder records a simulated order.
func (g *PaperGateway) SubmitOrder(ctx context.Context, req OrderRequest) (string, error) {
	if req.Size <= 0 || req.Price <= 0 || req.Price >= 1 {
		return "", fmt.Errorf("%w: invalid price/size %.4f/%.2f", ErrRejected, req.Price, req.Size)
	}

	orderID := uuid.New().String()

	g.mu.Lock()
	fillRatio := 1.0
	if g.rng.Float64() < g.partialChance {
		// Partial fills land between 30% and 90% of the requested size.
		fillRatio = 0.3 + 0.6*g.rng.Float64()
	}
	g.orders[orderID] = &paperOrder{
		req:         req,
		submittedAt: time.Now(),
		fillRatio:   fillRatio,
	}
	g.mu.Unlock()

	g.logger.Debug("paper-order-submitted",
		zap.String("venue", string(g.venue)),
		zap.String("order-id", orderID),
		zap.Float64("fill-ratio", fillRatio))

	return orderID, nil
}

// CancelOrder freezes the simulated order at its current fill.
func (g *PaperGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.cancelled = true

	return nil
}

// OrderStatus reports the simulated fill state: zero before the fill delay
// elapses, then the order's fill ratio.
func (g *PaperGateway) OrderStatus(ctx context.Context, orderID string) (*types.OrderStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	order, ok := g.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}

	status := &types.OrderStatus{
		OrderID:      orderID,
		State:        types.OrderSubmitted,
		AvgFillPrice: order.req.Price,
	}

	if time.Since(order.submittedAt) >= g.fillDelay {
		status.FilledSize = order.req.Size * order.fillRatio
		if order.fillRatio >= 1.0 {
			status.State = types.OrderFilled
		} else {
			status.State = types.OrderPartiallyFilled
		}
	}

	if order.cancelled {
		if status.FilledSize >= order.req.Size {
			status.State = types.OrderFilled
		} else {
			status.State = types.OrderCancelled
		}
	}

	return status, nil
}
