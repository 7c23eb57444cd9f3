package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	pair_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	combined REAL NOT NULL,
	net_edge REAL NOT NULL,
	edge_ratio REAL NOT NULL,
	max_size REAL NOT NULL,
	detected_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL,
	pair_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	state TEXT NOT NULL,
	hedged_size REAL NOT NULL,
	residual REAL NOT NULL,
	realized_edge REAL NOT NULL,
	flagged INTEGER NOT NULL,
	reason TEXT,
	legs TEXT,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_pair ON executions (pair_id);

CREATE TABLE IF NOT EXISTS positions (
	venue TEXT NOT NULL,
	market_id TEXT NOT NULL,
	net_size REAL NOT NULL,
	avg_cost REAL NOT NULL,
	realized_pnl REAL NOT NULL,
	unrealized_pnl REAL NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (venue, market_id)
);
`

// SQLiteStorage persists to a local sqlite file. Suited to single-host and
// paper-trading runs where postgres is overkill.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens or creates the database file and applies the schema.
func NewSQLite(path string, logger *zap.Logger) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// The driver serializes writes; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("sqlite-storage-ready", zap.String("path", path))

	return &SQLiteStorage{db: db, logger: logger}, nil
}

// SaveOpportunity records a detected opportunity. Duplicate IDs are ignored.
func (s *SQLiteStorage) SaveOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO opportunities (id, pair_id, direction, combined, net_edge, edge_ratio, max_size, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.ID, opp.PairID, string(opp.Direction),
		opp.Combined, opp.NetEdge, opp.EdgeRatio, opp.MaxSize, opp.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// SaveExecution records a terminal attempt.
func (s *SQLiteStorage) SaveExecution(ctx context.Context, rec *execution.Record) error {
	legs, err := marshalLegs(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO executions (id, opportunity_id, pair_id, direction, state, hedged_size, residual,
			realized_edge, flagged, reason, legs, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OpportunityID, rec.PairID, string(rec.Direction), string(rec.State),
		rec.HedgedSize, rec.Residual, rec.RealizedEdge, rec.Flagged, rec.Reason,
		string(legs), rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// SavePositions upserts one row per open position.
func (s *SQLiteStorage) SavePositions(ctx context.Context, positions []ledger.Position) error {
	for _, pos := range positions {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO positions (venue, market_id, net_size, avg_cost, realized_pnl, unrealized_pnl, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (venue, market_id) DO UPDATE SET
				net_size = excluded.net_size,
				avg_cost = excluded.avg_cost,
				realized_pnl = excluded.realized_pnl,
				unrealized_pnl = excluded.unrealized_pnl,
				updated_at = excluded.updated_at`,
			string(pos.Venue), pos.MarketID, pos.NetSize, pos.AvgCost,
			pos.RealizedPnl, pos.UnrealizedPnl, pos.LastUpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert position %s/%s: %w", pos.Venue, pos.MarketID, err)
		}
	}
	return nil
}

// Close closes the database file.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
