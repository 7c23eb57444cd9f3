package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS opportunities (
	id TEXT PRIMARY KEY,
	pair_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	combined DOUBLE PRECISION NOT NULL,
	net_edge DOUBLE PRECISION NOT NULL,
	edge_ratio DOUBLE PRECISION NOT NULL,
	max_size DOUBLE PRECISION NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS executions (
	id TEXT PRIMARY KEY,
	opportunity_id TEXT NOT NULL,
	pair_id TEXT NOT NULL,
	direction TEXT NOT NULL,
	state TEXT NOT NULL,
	hedged_size DOUBLE PRECISION NOT NULL,
	residual DOUBLE PRECISION NOT NULL,
	realized_edge DOUBLE PRECISION NOT NULL,
	flagged BOOLEAN NOT NULL,
	reason TEXT,
	legs JSONB,
	started_at TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_executions_pair ON executions (pair_id);
CREATE INDEX IF NOT EXISTS idx_executions_flagged ON executions (flagged) WHERE flagged;

CREATE TABLE IF NOT EXISTS positions (
	venue TEXT NOT NULL,
	market_id TEXT NOT NULL,
	net_size DOUBLE PRECISION NOT NULL,
	avg_cost DOUBLE PRECISION NOT NULL,
	realized_pnl DOUBLE PRECISION NOT NULL,
	unrealized_pnl DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (venue, market_id)
);
`

const (
	insertOpportunitySQL = `
		INSERT INTO opportunities (id, pair_id, direction, combined, net_edge, edge_ratio, max_size, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	insertExecutionSQL = `
		INSERT INTO executions (id, opportunity_id, pair_id, direction, state, hedged_size, residual,
			realized_edge, flagged, reason, legs, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`

	upsertPositionSQL = `
		INSERT INTO positions (venue, market_id, net_size, avg_cost, realized_pnl, unrealized_pnl, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (venue, market_id) DO UPDATE SET
			net_size = EXCLUDED.net_size,
			avg_cost = EXCLUDED.avg_cost,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			updated_at = EXCLUDED.updated_at`
)

// PostgresConfig holds postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// PostgresStorage persists to postgres over database/sql.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgres opens the database, verifies connectivity and applies the
// schema.
func NewPostgres(cfg *PostgresConfig) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStorage{db: db, logger: cfg.Logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("postgres-storage-ready",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return s, nil
}

// NewPostgresFromDB wraps an existing connection, used in tests.
func NewPostgresFromDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, postgresSchema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveOpportunity records a detected opportunity. Duplicate IDs are ignored.
func (s *PostgresStorage) SaveOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error {
	_, err := s.db.ExecContext(ctx, insertOpportunitySQL,
		opp.ID, opp.PairID, string(opp.Direction),
		opp.Combined, opp.NetEdge, opp.EdgeRatio, opp.MaxSize, opp.DetectedAt)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	return nil
}

// SaveExecution records a terminal attempt. Legs and unwinds are stored as a
// JSON document alongside the indexed columns.
func (s *PostgresStorage) SaveExecution(ctx context.Context, rec *execution.Record) error {
	legs, err := marshalLegs(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, insertExecutionSQL,
		rec.ID, rec.OpportunityID, rec.PairID, string(rec.Direction), string(rec.State),
		rec.HedgedSize, rec.Residual, rec.RealizedEdge, rec.Flagged, rec.Reason,
		legs, rec.StartedAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// SavePositions upserts one row per open position.
func (s *PostgresStorage) SavePositions(ctx context.Context, positions []ledger.Position) error {
	for _, pos := range positions {
		_, err := s.db.ExecContext(ctx, upsertPositionSQL,
			string(pos.Venue), pos.MarketID, pos.NetSize, pos.AvgCost,
			pos.RealizedPnl, pos.UnrealizedPnl, pos.LastUpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert position %s/%s: %w", pos.Venue, pos.MarketID, err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func marshalLegs(rec *execution.Record) ([]byte, error) {
	payload := struct {
		LegA    *execution.Order   `json:"leg_a,omitempty"`
		LegB    *execution.Order   `json:"leg_b,omitempty"`
		Unwinds []*execution.Order `json:"unwinds,omitempty"`
	}{rec.LegA, rec.LegB, rec.Unwinds}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal legs: %w", err)
	}
	return data, nil
}
