// Package scanner drives the engine: on every tick it refreshes quotes for
// all tradable pairs, evaluates them and hands qualifying opportunities to
// the execution coordinator.
package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/internal/notify"
	"github.com/crossvenue/arb/internal/venue"
	"github.com/crossvenue/arb/pkg/types"
)

// PairSource lists the pairs eligible for evaluation.
type PairSource interface {
	Tradable(now time.Time) []*types.VerifiedPair
}

// Evaluator scores one pair against cached quotes.
type Evaluator interface {
	Evaluate(pair *types.VerifiedPair) *arbitrage.Opportunity
}

// Executor runs an opportunity to a terminal attempt state.
type Executor interface {
	Execute(ctx context.Context, opp *arbitrage.Opportunity) (*execution.Record, error)
}

// QuoteSink receives refreshed quotes.
type QuoteSink interface {
	Put(quote *types.Quote)
	Wait()
}

// QuoteReader reads back cached quotes for mark-to-market.
type QuoteReader interface {
	Get(venue types.Venue, marketID string, side types.Side) (*types.Quote, bool)
}

// Marker revalues open positions at current prices.
type Marker interface {
	MarkToMarket(venue types.Venue, marketID string, yesPrice float64) float64
}

// PositionSource lists the current positions for snapshotting.
type PositionSource interface {
	Positions() []ledger.Position
}

// RecordSink persists scanner output: detected opportunities and the marked
// position book.
type RecordSink interface {
	SaveOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error
	SavePositions(ctx context.Context, positions []ledger.Position) error
}

// Alerter publishes opportunity-detected events to the operator surface.
type Alerter interface {
	Alert(ctx context.Context, severity notify.Severity, title, message string) error
}

// Config holds scanner configuration. Book and Store are optional; when both
// are set, every scan persists the marked position snapshot.
type Config struct {
	Sources   map[types.Venue]venue.QuoteSource
	Quotes    QuoteSink
	Reader    QuoteReader
	Pairs     PairSource
	Evaluator Evaluator
	Executor  Executor
	Ledger    Marker
	Book      PositionSource
	Store     RecordSink
	Alerter   Alerter
	Interval  time.Duration
	Logger    *zap.Logger
}

// Scanner is the periodic scan loop. One scan never overlaps the next; slow
// executions run detached and the coordinator's per-pair single-flight guard
// drops any overlap.
type Scanner struct {
	cfg    *Config
	logger *zap.Logger
	wg     sync.WaitGroup
}

// New creates a scanner.
func New(cfg *Config) *Scanner {
	return &Scanner{cfg: cfg, logger: cfg.Logger}
}

// Start launches the scan loop. It returns immediately; Close waits for
// in-flight work.
func (s *Scanner) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		s.logger.Info("scanner-started", zap.Duration("interval", s.cfg.Interval))

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scanner-stopped")
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	}()
}

// Close waits for the loop and any dispatched executions to finish.
func (s *Scanner) Close() {
	s.wg.Wait()
}

func (s *Scanner) scan(ctx context.Context) {
	started := time.Now()
	ScansTotal.Inc()

	pairs := s.cfg.Pairs.Tradable(started)
	if len(pairs) == 0 {
		return
	}

	refs := uniqueRefs(pairs)
	s.refresh(ctx, refs)

	for _, pair := range pairs {
		opp := s.cfg.Evaluator.Evaluate(pair)
		if opp == nil {
			continue
		}
		s.dispatch(ctx, opp)
	}

	s.markToMarket(refs)
	s.snapshotPositions(ctx)

	ScanDuration.Observe(time.Since(started).Seconds())
}

// refresh fetches quotes for every referenced market concurrently. A failed
// fetch leaves the old entry to age out; staleness handles the rest.
func (s *Scanner) refresh(ctx context.Context, refs []types.MarketRef) {
	g, gctx := errgroup.WithContext(ctx)

	for _, ref := range refs {
		ref := ref
		source, ok := s.cfg.Sources[ref.Venue]
		if !ok {
			continue
		}

		g.Go(func() error {
			fetched, err := source.FetchQuotes(gctx, ref.MarketID)
			if err != nil {
				QuoteRefreshErrorsTotal.WithLabelValues(string(ref.Venue)).Inc()
				s.logger.Warn("quote-refresh-failed",
					zap.String("venue", string(ref.Venue)),
					zap.String("market-id", ref.MarketID),
					zap.Error(err))
				return nil
			}
			for _, quote := range fetched {
				s.cfg.Quotes.Put(quote)
			}
			return nil
		})
	}

	_ = g.Wait()
	s.cfg.Quotes.Wait()
}

func (s *Scanner) dispatch(ctx context.Context, opp *arbitrage.Opportunity) {
	if s.cfg.Store != nil {
		if err := s.cfg.Store.SaveOpportunity(ctx, opp); err != nil {
			s.logger.Warn("opportunity-record-failed",
				zap.String("opportunity-id", opp.ID),
				zap.Error(err))
		}
	}

	if s.cfg.Alerter != nil {
		message := fmt.Sprintf("pair %s %s: net edge %.4f on size %.2f",
			opp.PairID, opp.Direction, opp.NetEdge, opp.MaxSize)
		if err := s.cfg.Alerter.Alert(ctx, notify.SeverityInfo, "opportunity detected", message); err != nil {
			s.logger.Warn("opportunity-alert-failed",
				zap.String("opportunity-id", opp.ID),
				zap.Error(err))
		}
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		_, err := s.cfg.Executor.Execute(ctx, opp)
		if err != nil {
			s.logger.Debug("execution-skipped",
				zap.String("opportunity-id", opp.ID),
				zap.Error(err))
		}
	}()
}

// markToMarket revalues every referenced market at the current YES mid.
func (s *Scanner) markToMarket(refs []types.MarketRef) {
	for _, ref := range refs {
		quote, ok := s.cfg.Reader.Get(ref.Venue, ref.MarketID, types.SideYes)
		if !ok {
			continue
		}
		mid := (quote.BestBidPrice + quote.BestAskPrice) / 2
		if mid <= 0 {
			continue
		}
		s.cfg.Ledger.MarkToMarket(ref.Venue, ref.MarketID, mid)
	}
}

// snapshotPositions persists the marked book. A failed write is logged and
// retried implicitly on the next scan.
func (s *Scanner) snapshotPositions(ctx context.Context) {
	if s.cfg.Book == nil || s.cfg.Store == nil {
		return
	}

	positions := s.cfg.Book.Positions()
	if len(positions) == 0 {
		return
	}

	if err := s.cfg.Store.SavePositions(ctx, positions); err != nil {
		s.logger.Warn("position-snapshot-failed", zap.Error(err))
	}
}

func uniqueRefs(pairs []*types.VerifiedPair) []types.MarketRef {
	seen := make(map[types.MarketRef]struct{}, len(pairs)*2)
	refs := make([]types.MarketRef, 0, len(pairs)*2)
	for _, pair := range pairs {
		for _, ref := range []types.MarketRef{pair.VenueA, pair.VenueB} {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}
