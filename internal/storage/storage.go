// Package storage persists opportunities, execution records and position
// snapshots. Three backends: postgres for deployments, sqlite for single-host
// runs, console for paper trading and development.
package storage

import (
	"context"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
)

// Storage persists engine output. Per-leg orders ride inside the execution
// record rather than a table of their own.
type Storage interface {
	// SaveOpportunity records a detected opportunity.
	SaveOpportunity(ctx context.Context, opp *arbitrage.Opportunity) error

	// SaveExecution records a terminal execution attempt.
	SaveExecution(ctx context.Context, rec *execution.Record) error

	// SavePositions upserts the current position per (venue, market).
	SavePositions(ctx context.Context, positions []ledger.Position) error

	// Close releases the backend.
	Close() error
}
