// Package app wires configuration, venues, the quote cache, the ledger, the
// evaluator, the coordinator and the scan loop into a runnable engine.
package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/internal/pairs"
	"github.com/crossvenue/arb/internal/quotes"
	"github.com/crossvenue/arb/internal/scanner"
	"github.com/crossvenue/arb/internal/storage"
	"github.com/crossvenue/arb/internal/venue"
	"github.com/crossvenue/arb/pkg/cache"
	"github.com/crossvenue/arb/pkg/config"
	"github.com/crossvenue/arb/pkg/healthprobe"
	"github.com/crossvenue/arb/pkg/httpserver"
	"github.com/crossvenue/arb/pkg/types"
)

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server

	store       cache.Cache
	quoteCache  *quotes.Cache
	registry    *pairs.Registry
	book        *ledger.Ledger
	coordinator *execution.Coordinator
	scan        *scanner.Scanner
	persistence storage.Storage
	stream      *venue.QuoteStream

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// PairSeed is a verified pair supplied at startup.
type PairSeed struct {
	VenueA types.MarketRef
	VenueB types.MarketRef
	Notes  string
}

// Options holds application options.
type Options struct {
	// Pairs are approved at startup, in addition to whatever the operator
	// adds at runtime.
	Pairs []PairSeed
}
