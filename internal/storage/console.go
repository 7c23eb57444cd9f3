package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
)

// ConsoleStorage logs records instead of persisting them. The default for
// paper trading and development.
type ConsoleStorage struct {
	logger *zap.Logger
}

// NewConsole creates a console storage.
func NewConsole(logger *zap.Logger) *ConsoleStorage {
	return &ConsoleStorage{logger: logger}
}

func (s *ConsoleStorage) SaveOpportunity(_ context.Context, opp *arbitrage.Opportunity) error {
	s.logger.Info("opportunity-recorded",
		zap.String("opportunity-id", opp.ID),
		zap.String("pair-id", opp.PairID),
		zap.String("direction", string(opp.Direction)),
		zap.Float64("net-edge", opp.NetEdge),
		zap.Float64("max-size", opp.MaxSize))
	return nil
}

func (s *ConsoleStorage) SaveExecution(_ context.Context, rec *execution.Record) error {
	s.logger.Info("execution-recorded",
		zap.String("attempt-id", rec.ID),
		zap.String("pair-id", rec.PairID),
		zap.String("state", string(rec.State)),
		zap.Float64("hedged-size", rec.HedgedSize),
		zap.Float64("residual", rec.Residual),
		zap.Float64("realized-edge", rec.RealizedEdge),
		zap.Bool("flagged", rec.Flagged))
	return nil
}

func (s *ConsoleStorage) SavePositions(_ context.Context, positions []ledger.Position) error {
	for _, pos := range positions {
		s.logger.Info("position-snapshot",
			zap.String("venue", string(pos.Venue)),
			zap.String("market-id", pos.MarketID),
			zap.Float64("net-size", pos.NetSize),
			zap.Float64("avg-cost", pos.AvgCost),
			zap.Float64("realized-pnl", pos.RealizedPnl),
			zap.Float64("unrealized-pnl", pos.UnrealizedPnl))
	}
	return nil
}

func (s *ConsoleStorage) Close() error { return nil }
