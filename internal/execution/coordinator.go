package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/notify"
	"github.com/crossvenue/arb/internal/venue"
	"github.com/crossvenue/arb/pkg/types"
)

// AttemptState is the lifecycle state of one two-legged execution attempt.
type AttemptState string

const (
	AttemptIdle          AttemptState = "idle"
	AttemptLegASubmitted AttemptState = "leg_a_submitted"
	AttemptLegAConfirmed AttemptState = "leg_a_confirmed"
	AttemptLegBSubmitted AttemptState = "leg_b_submitted"
	AttemptBothConfirmed AttemptState = "both_confirmed"
	AttemptUnwinding     AttemptState = "unwinding"
	AttemptUnwound       AttemptState = "unwound"
	AttemptAborted       AttemptState = "aborted"
)

// ErrPairBusy is returned when an attempt is already in flight for the pair.
var ErrPairBusy = errors.New("pair has an attempt in flight")

// Record is the durable outcome of one execution attempt.
type Record struct {
	ID            string               `json:"id"`
	OpportunityID string               `json:"opportunity_id"`
	PairID        string               `json:"pair_id"`
	Direction     arbitrage.Direction  `json:"direction"`
	State         AttemptState         `json:"state"`
	LegA          *Order               `json:"leg_a,omitempty"`
	LegB          *Order               `json:"leg_b,omitempty"`
	Unwinds       []*Order             `json:"unwinds,omitempty"`
	HedgedSize    float64              `json:"hedged_size"`
	Residual      float64              `json:"residual"`
	RealizedEdge  float64              `json:"realized_edge"`
	Flagged       bool                 `json:"flagged"`
	Reason        string               `json:"reason,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at"`
}

// Ledger is the coordinator's view of the position ledger.
type Ledger interface {
	Reserve(venue types.Venue, marketID string, size float64) error
	Release(venue types.Venue, marketID string, size float64)
	ApplyFill(fill types.Fill)
}

// Revalidator re-prices an opportunity against live quotes.
type Revalidator interface {
	Revalidate(opp *arbitrage.Opportunity) *arbitrage.Opportunity
}

// Cooldowner stamps pair cooldowns after completed attempts.
type Cooldowner interface {
	SetCooldown(id string, until time.Time)
}

// Storage persists execution records.
type Storage interface {
	SaveExecution(ctx context.Context, rec *Record) error
}

// Alerter publishes execution events to the operator surface.
type Alerter interface {
	Alert(ctx context.Context, severity notify.Severity, title, message string) error
}

// QuoteReader supplies current quotes for unwind pricing.
type QuoteReader interface {
	Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool)
}

// Config holds coordinator configuration.
type Config struct {
	Gateways    map[types.Venue]venue.OrderGateway
	Ledger      Ledger
	Revalidator Revalidator
	Pairs       Cooldowner
	Storage     Storage
	Alerter     Alerter
	Quotes      QuoteReader
	Logger      *zap.Logger

	OrderTimeout      time.Duration
	CooldownPeriod    time.Duration
	UnwindMaxAttempts int
	SlippageTolerance float64
	GatewayMaxRetries int
	GatewayRetryDelay time.Duration

	// PollInterval is the initial order status poll interval; it doubles up
	// to 10x between polls. Zero means 100ms.
	PollInterval time.Duration
}

// Coordinator executes opportunities with a two-phase protocol: the harder
// leg first, the second leg sized to the confirmed first-leg fill, and a
// bounded unwind when the hedge cannot complete. At most one attempt runs
// per pair at any time.
type Coordinator struct {
	cfg    *Config
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a coordinator.
func New(cfg *Config) *Coordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.UnwindMaxAttempts < 1 {
		cfg.UnwindMaxAttempts = 1
	}
	return &Coordinator{
		cfg:      cfg,
		logger:   cfg.Logger,
		inflight: make(map[string]struct{}),
	}
}

func (c *Coordinator) begin(pairID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inflight[pairID]; busy {
		return false
	}
	c.inflight[pairID] = struct{}{}
	return true
}

func (c *Coordinator) end(pairID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, pairID)
}

// Execute runs one attempt for the opportunity. Overlapping attempts on the
// same pair are dropped with ErrPairBusy; the caller just moves on.
func (c *Coordinator) Execute(ctx context.Context, opp *arbitrage.Opportunity) (*Record, error) {
	if !c.begin(opp.PairID) {
		SingleFlightDroppedTotal.Inc()
		return nil, ErrPairBusy
	}
	defer c.end(opp.PairID)

	rec := &Record{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		PairID:        opp.PairID,
		Direction:     opp.Direction,
		State:         AttemptIdle,
		StartedAt:     time.Now(),
	}

	fresh := c.cfg.Revalidator.Revalidate(opp)
	if fresh == nil {
		return c.abort(ctx, rec, "revalidation failed")
	}

	size := fresh.MaxSize
	first, second := orderLegs(fresh)

	if err := c.cfg.Ledger.Reserve(first.Ref.Venue, first.Ref.MarketID, size); err != nil {
		return c.abort(ctx, rec, fmt.Sprintf("reserve first leg: %v", err))
	}
	defer c.cfg.Ledger.Release(first.Ref.Venue, first.Ref.MarketID, size)

	if err := c.cfg.Ledger.Reserve(second.Ref.Venue, second.Ref.MarketID, size); err != nil {
		return c.abort(ctx, rec, fmt.Sprintf("reserve second leg: %v", err))
	}
	defer c.cfg.Ledger.Release(second.Ref.Venue, second.Ref.MarketID, size)

	// Phase one: the harder leg at full size.
	orderA := newOrder(first.Ref, first.Side, first.Buy, first.Price, size)
	rec.LegA = orderA

	if err := c.place(ctx, orderA); err != nil {
		return c.abort(ctx, rec, fmt.Sprintf("submit first leg: %v", err))
	}
	rec.State = AttemptLegASubmitted

	c.await(ctx, orderA)
	c.applyFill(orderA)

	if orderA.FilledSize <= 0 {
		// Nothing committed; no cooldown so the pair stays eligible.
		return c.abort(ctx, rec, "first leg filled zero")
	}
	rec.State = AttemptLegAConfirmed

	// Phase two: hedge exactly what filled.
	hedgeTarget := orderA.FilledSize
	orderB := newOrder(second.Ref, second.Side, second.Buy, second.Price, hedgeTarget)
	rec.LegB = orderB

	err := c.place(ctx, orderB)
	if err != nil {
		c.logger.Warn("second-leg-submit-failed",
			zap.String("attempt-id", rec.ID),
			zap.Error(err))
	} else {
		rec.State = AttemptLegBSubmitted
		c.await(ctx, orderB)
		c.applyFill(orderB)
	}

	rec.HedgedSize = orderB.FilledSize
	rec.Residual = orderA.FilledSize - orderB.FilledSize
	rec.RealizedEdge = realizedEdge(fresh, orderA, orderB, rec.HedgedSize)

	if rec.Residual <= 0 {
		rec.State = AttemptBothConfirmed
		return c.finish(ctx, rec)
	}

	rec.State = AttemptUnwinding
	c.unwind(ctx, rec, orderA)
	rec.State = AttemptUnwound

	return c.finish(ctx, rec)
}

// orderLegs orders the legs hardest-fill first: thinner depth relative to
// the requested size goes first so the deeper leg hedges it.
func orderLegs(opp *arbitrage.Opportunity) (arbitrage.Leg, arbitrage.Leg) {
	if opp.LegB.Depth < opp.LegA.Depth {
		return opp.LegB, opp.LegA
	}
	return opp.LegA, opp.LegB
}

// place submits an order, retrying transient venue failures.
func (c *Coordinator) place(ctx context.Context, o *Order) error {
	gw, ok := c.cfg.Gateways[o.Ref.Venue]
	if !ok {
		return fmt.Errorf("no gateway for venue %s", o.Ref.Venue)
	}

	err := venue.WithRetry(ctx, venue.RetryConfig{
		MaxAttempts:  c.cfg.GatewayMaxRetries,
		InitialDelay: c.cfg.GatewayRetryDelay,
		Logger:       c.logger,
	}, "submit-order", func(ctx context.Context) error {
		id, err := gw.SubmitOrder(ctx, venue.OrderRequest{
			MarketID: o.Ref.MarketID,
			Side:     o.Side,
			Buy:      o.Buy,
			Price:    o.Price,
			Size:     o.RequestedSize,
		})
		if err != nil {
			return err
		}
		o.ID = id
		return nil
	})
	if err != nil {
		return err
	}

	o.SubmittedAt = time.Now()
	return o.transition(types.OrderSubmitted)
}

// await polls the order until it reaches a terminal state or the order
// timeout passes. On timeout it cancels and then polls one final time: a
// fill that raced the cancel is always kept.
func (c *Coordinator) await(ctx context.Context, o *Order) {
	c.awaitWithin(ctx, o, c.cfg.OrderTimeout)
}

func (c *Coordinator) awaitWithin(ctx context.Context, o *Order, timeout time.Duration) {
	gw := c.cfg.Gateways[o.Ref.Venue]

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	poll := c.cfg.PollInterval
	for {
		select {
		case <-ctx.Done():
			c.cancelAndSettle(o, gw)
			return
		case <-deadline.C:
			c.cancelAndSettle(o, gw)
			return
		case <-time.After(poll):
		}

		status, err := gw.OrderStatus(ctx, o.ID)
		if err != nil {
			if errors.Is(err, venue.ErrOrderNotFound) {
				c.logger.Warn("order-vanished",
					zap.String("order-id", o.ID),
					zap.String("venue", string(o.Ref.Venue)))
				return
			}
			// Transient; keep polling until the deadline.
			poll = backoff(poll, c.cfg.PollInterval)
			continue
		}

		if err := o.applyStatus(status); err != nil {
			c.logger.Warn("order-status-rejected",
				zap.String("order-id", o.ID),
				zap.Error(err))
		}
		if o.State.Terminal() {
			return
		}

		poll = backoff(poll, c.cfg.PollInterval)
	}
}

func backoff(current, base time.Duration) time.Duration {
	next := current * 2
	if max := base * 10; next > max {
		return max
	}
	return next
}

// cancelAndSettle cancels a non-terminal order and reconciles the final
// venue-confirmed fill, covering the fill-beats-cancel race.
func (c *Coordinator) cancelAndSettle(o *Order, gw venue.OrderGateway) {
	if o.State.Terminal() {
		return
	}

	// Detached context: the attempt may be shutting down but the venue
	// still needs the cancel and we still need the final fill state.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := gw.CancelOrder(ctx, o.ID); err != nil {
		c.logger.Warn("order-cancel-failed",
			zap.String("order-id", o.ID),
			zap.Error(err))
	}

	status, err := gw.OrderStatus(ctx, o.ID)
	if err == nil {
		if applyErr := o.applyStatus(status); applyErr != nil {
			c.logger.Warn("order-settle-rejected",
				zap.String("order-id", o.ID),
				zap.Error(applyErr))
		}
	}

	if !o.State.Terminal() {
		if err := o.transition(types.OrderCancelled); err != nil {
			c.logger.Warn("order-cancel-transition-failed",
				zap.String("order-id", o.ID),
				zap.Error(err))
		}
	}
}

// applyFill books the order's confirmed quantity into the ledger. The ledger
// deduplicates by order ID, so calling this more than once is harmless.
func (c *Coordinator) applyFill(o *Order) {
	fill, ok := o.fill(time.Now())
	if !ok {
		return
	}
	c.cfg.Ledger.ApplyFill(fill)
}

// unwind closes the unhedged residual of the filled leg with up to
// UnwindMaxAttempts opposite orders, shading the price further on each try.
// A residual surviving all attempts flags the record for operator review.
func (c *Coordinator) unwind(ctx context.Context, rec *Record, filled *Order) {
	residual := rec.Residual
	perAttempt := c.cfg.OrderTimeout / time.Duration(c.cfg.UnwindMaxAttempts)

	for attempt := 1; attempt <= c.cfg.UnwindMaxAttempts && residual > 0; attempt++ {
		UnwindAttemptsTotal.Inc()

		price := c.unwindPrice(filled, attempt)
		o := newOrder(filled.Ref, filled.Side, !filled.Buy, price, residual)

		if err := c.place(ctx, o); err != nil {
			c.logger.Warn("unwind-submit-failed",
				zap.String("attempt-id", rec.ID),
				zap.Int("unwind-attempt", attempt),
				zap.Error(err))
			continue
		}
		rec.Unwinds = append(rec.Unwinds, o)

		c.awaitWithin(ctx, o, perAttempt)
		c.applyFill(o)
		residual -= o.FilledSize
	}

	rec.Residual = residual
	if residual > 0 {
		rec.Flagged = true
		UnwindResidualsTotal.Inc()
	}
}

// unwindPrice shades the exit price progressively toward the slippage
// ceiling: later attempts pay more to get flat.
func (c *Coordinator) unwindPrice(o *Order, attempt int) float64 {
	ref := o.AvgFillPrice
	if ref == 0 {
		ref = o.Price
	}
	if quote, ok := c.cfg.Quotes.Get(o.Ref.Venue, o.Ref.MarketID, o.Side); ok {
		if o.Buy && quote.BestBidPrice > 0 {
			ref = quote.BestBidPrice
		}
		if !o.Buy && quote.BestAskPrice > 0 {
			ref = quote.BestAskPrice
		}
	}

	shade := c.cfg.SlippageTolerance * float64(attempt) / float64(c.cfg.UnwindMaxAttempts)
	if o.Buy {
		// We hold inventory; sell cheaper each attempt.
		return clamp01(ref * (1 - shade))
	}
	// We are short; buy back dearer each attempt.
	return clamp01(ref * (1 + shade))
}

func clamp01(p float64) float64 {
	if p < 0.01 {
		return 0.01
	}
	if p > 0.99 {
		return 0.99
	}
	return p
}

// realizedEdge computes the locked per-contract spread on the hedged
// quantity at actual fill prices, net of taker fees.
func realizedEdge(opp *arbitrage.Opportunity, a, b *Order, hedged float64) float64 {
	if hedged <= 0 {
		return 0
	}

	priceA := a.AvgFillPrice
	if priceA == 0 {
		priceA = a.Price
	}
	priceB := b.AvgFillPrice
	if priceB == 0 {
		priceB = b.Price
	}

	var gross float64
	if opp.Direction == arbitrage.DirectionCrossBuy {
		gross = 1.0 - priceA - priceB
	} else {
		gross = priceA + priceB - 1.0
	}
	fees := priceA*feeForLeg(opp, a) + priceB*feeForLeg(opp, b)

	return (gross - fees) * hedged
}

func feeForLeg(opp *arbitrage.Opportunity, o *Order) float64 {
	if opp.LegA.Ref == o.Ref {
		return opp.LegA.Fee
	}
	return opp.LegB.Fee
}

func (c *Coordinator) abort(ctx context.Context, rec *Record, reason string) (*Record, error) {
	rec.State = AttemptAborted
	rec.Reason = reason
	rec.CompletedAt = time.Now()

	AttemptsTotal.WithLabelValues(string(AttemptAborted)).Inc()
	c.logger.Info("attempt-aborted",
		zap.String("attempt-id", rec.ID),
		zap.String("pair-id", rec.PairID),
		zap.String("reason", reason))

	c.save(ctx, rec)
	c.notifyTerminal(ctx, rec)
	return rec, nil
}

// finish completes a terminal attempt that committed capital: stamps the
// pair cooldown, persists the record and notifies the operator surface.
func (c *Coordinator) finish(ctx context.Context, rec *Record) (*Record, error) {
	rec.CompletedAt = time.Now()

	c.cfg.Pairs.SetCooldown(rec.PairID, rec.CompletedAt.Add(c.cfg.CooldownPeriod))

	AttemptsTotal.WithLabelValues(string(rec.State)).Inc()
	RealizedEdgeTotal.Add(rec.RealizedEdge)

	c.logger.Info("attempt-completed",
		zap.String("attempt-id", rec.ID),
		zap.String("pair-id", rec.PairID),
		zap.String("state", string(rec.State)),
		zap.Float64("hedged-size", rec.HedgedSize),
		zap.Float64("residual", rec.Residual),
		zap.Float64("realized-edge", rec.RealizedEdge),
		zap.Bool("flagged", rec.Flagged))

	c.save(ctx, rec)
	c.notifyTerminal(ctx, rec)
	return rec, nil
}

// notifyTerminal emits exactly one notification per terminal attempt. A
// flagged residual goes out high-severity; everything else is informational.
func (c *Coordinator) notifyTerminal(ctx context.Context, rec *Record) {
	severity := notify.SeverityInfo
	title := "execution " + string(rec.State)
	message := fmt.Sprintf("attempt %s on pair %s reached %s: hedged %.2f, residual %.2f, realized edge %.4f",
		rec.ID, rec.PairID, rec.State, rec.HedgedSize, rec.Residual, rec.RealizedEdge)

	switch {
	case rec.Flagged:
		severity = notify.SeverityHigh
		title = "unhedged residual"
		message = fmt.Sprintf("attempt %s on pair %s left %.2f unhedged after %d unwind attempts",
			rec.ID, rec.PairID, rec.Residual, c.cfg.UnwindMaxAttempts)
	case rec.State == AttemptAborted:
		message = fmt.Sprintf("attempt %s on pair %s aborted: %s", rec.ID, rec.PairID, rec.Reason)
	}

	c.alert(ctx, severity, title, message)
}

func (c *Coordinator) save(ctx context.Context, rec *Record) {
	if c.cfg.Storage == nil {
		return
	}
	if err := c.cfg.Storage.SaveExecution(ctx, rec); err != nil {
		c.logger.Error("execution-record-save-failed",
			zap.String("attempt-id", rec.ID),
			zap.Error(err))
	}
}

func (c *Coordinator) alert(ctx context.Context, severity notify.Severity, title, message string) {
	if c.cfg.Alerter == nil {
		return
	}
	if err := c.cfg.Alerter.Alert(ctx, severity, title, message); err != nil {
		c.logger.Error("alert-failed", zap.Error(err))
	}
}
