package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crossvenue/arb/internal/arbitrage"
	"github.com/crossvenue/arb/internal/execution"
	"github.com/crossvenue/arb/internal/ledger"
	"github.com/crossvenue/arb/internal/notify"
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

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	store, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	quoteCache := quotes.New(&quotes.Config{
		Store:     store,
		Freshness: cfg.QuoteFreshness,
		Logger:    logger,
	})

	registry := pairs.NewRegistry(logger)
	for _, seed := range opts.Pairs {
		registry.Add(seed.VenueA, seed.VenueB, "startup", seed.Notes)
	}

	book := ledger.New(&ledger.Config{
		MaxPositionPerMarket: cfg.MaxPositionPerMarket,
		Logger:               logger,
	})

	persistence, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	venueA := types.Venue(cfg.VenueA.Name)
	venueB := types.Venue(cfg.VenueB.Name)

	fees := map[types.Venue]float64{
		venueA: cfg.VenueA.TakerFee,
		venueB: cfg.VenueB.TakerFee,
	}

	sources := setupQuoteSources(cfg, logger, venueA, venueB)
	gateways := setupGateways(cfg, logger, venueA, venueB, sources)
	alerter := setupNotifier(cfg, logger)

	evaluator := arbitrage.New(&arbitrage.Config{
		Quotes: quoteCache,
		Ledger: book,
		FeeFor: func(v types.Venue) float64 { return fees[v] },
		Logger: logger,

		MinArbitrageThreshold: cfg.MinArbitrageThreshold,
		MaxTradeSize:          cfg.MaxTradeSize,
		SlippageTolerance:     cfg.SlippageTolerance,
		EnableCrossSell:       cfg.EnableCrossSell,
	})

	coordinator := execution.New(&execution.Config{
		Gateways:    gateways,
		Ledger:      book,
		Revalidator: evaluator,
		Pairs:       registry,
		Storage:     persistence,
		Alerter:     alerter,
		Quotes:      quoteCache,
		Logger:      logger,

		OrderTimeout:      cfg.OrderTimeout,
		CooldownPeriod:    cfg.CooldownPeriod,
		UnwindMaxAttempts: cfg.UnwindMaxAttempts,
		SlippageTolerance: cfg.SlippageTolerance,
		GatewayMaxRetries: cfg.GatewayMaxRetries,
		GatewayRetryDelay: cfg.GatewayRetryDelay,
	})

	scan := scanner.New(&scanner.Config{
		Sources:   sources,
		Quotes:    quoteCache,
		Reader:    quoteCache,
		Pairs:     registry,
		Evaluator: evaluator,
		Executor:  coordinator,
		Ledger:    book,
		Book:      book,
		Store:     persistence,
		Alerter:   alerter,
		Interval:  cfg.PriceFetchInterval,
		Logger:    logger,
	})

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Pairs:         registry,
		PairControl:   registry,
		Ledger:        book,
	})

	app := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		quoteCache:    quoteCache,
		registry:      registry,
		book:          book,
		coordinator:   coordinator,
		scan:          scan,
		persistence:   persistence,
		ctx:           ctx,
		cancel:        cancel,
	}

	app.stream = setupStream(cfg, logger, venueB, registry)

	return app, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageMode {
	case "postgres":
		return storage.NewPostgres(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
	case "sqlite":
		return storage.NewSQLite(cfg.SQLitePath, logger)
	default:
		return storage.NewConsole(logger), nil
	}
}

func setupNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.WebhookURL != "" {
		return notify.NewWebhook(cfg.WebhookURL, logger)
	}
	return notify.NewConsole(logger)
}

// setupQuoteSources builds REST clients for both venues. Paper mode still
// reads real quotes; only order flow is simulated.
func setupQuoteSources(cfg *config.Config, logger *zap.Logger, venueA, venueB types.Venue) map[types.Venue]venue.QuoteSource {
	return map[types.Venue]venue.QuoteSource{
		venueA: venue.NewHTTPClient(&venue.HTTPClientConfig{
			Venue:             venueA,
			BaseURL:           cfg.VenueA.BaseURL,
			APIKey:            cfg.VenueA.APIKey,
			RequestsPerSecond: cfg.VenueA.RequestsPerSecond,
			Logger:            logger,
		}),
		venueB: venue.NewHTTPClient(&venue.HTTPClientConfig{
			Venue:             venueB,
			BaseURL:           cfg.VenueB.BaseURL,
			APIKey:            cfg.VenueB.APIKey,
			RequestsPerSecond: cfg.VenueB.RequestsPerSecond,
			Logger:            logger,
		}),
	}
}

func setupGateways(cfg *config.Config, logger *zap.Logger, venueA, venueB types.Venue,
	sources map[types.Venue]venue.QuoteSource) map[types.Venue]venue.OrderGateway {

	if cfg.ExecutionMode == "paper" {
		gateways := make(map[types.Venue]venue.OrderGateway, 2)
		for _, v := range []types.Venue{venueA, venueB} {
			gateways[v] = venue.NewPaperGateway(&venue.PaperGatewayConfig{
				Venue:         v,
				FillDelay:     cfg.PaperFillDelay,
				PartialChance: cfg.PaperPartialChance,
				Logger:        logger,
			})
		}
		return gateways
	}

	// Live mode: the REST clients serve both quotes and orders.
	gateways := make(map[types.Venue]venue.OrderGateway, 2)
	for v, source := range sources {
		gateways[v] = source.(*venue.HTTPClient)
	}
	return gateways
}

// setupStream builds the venue B websocket stream when configured. Streamed
// quotes overwrite polled ones between scan ticks, tightening detection
// latency on the faster venue.
func setupStream(cfg *config.Config, logger *zap.Logger, venueB types.Venue, registry *pairs.Registry) *venue.QuoteStream {
	if cfg.VenueB.WSURL == "" {
		return nil
	}

	stream := venue.NewQuoteStream(&venue.QuoteStreamConfig{
		Venue:  venueB,
		URL:    cfg.VenueB.WSURL,
		Logger: logger,
	})

	for _, pair := range registry.Snapshot() {
		if pair.VenueB.Venue == venueB {
			stream.Subscribe(pair.VenueB.MarketID)
		}
	}

	return stream
}
