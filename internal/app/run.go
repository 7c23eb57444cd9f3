package app

import (
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.String("storage", a.cfg.StorageMode),
		zap.Float64("min-arbitrage-threshold", a.cfg.MinArbitrageThreshold),
		zap.Int("pairs", len(a.registry.Snapshot())))

	a.startComponents()

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort))

	return a.waitForShutdown()
}

func (a *App) startComponents() {
	a.wg.Add(1)
	go a.runHTTPServer()

	if a.stream != nil {
		a.stream.Start(a.ctx)
		a.wg.Add(1)
		go a.pumpStream()
	}

	a.scan.Start(a.ctx)
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()

	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

// pumpStream moves streamed quotes into the cache between scan ticks.
func (a *App) pumpStream() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case quote, ok := <-a.stream.Quotes():
			if !ok {
				return
			}
			a.quoteCache.Put(quote)
		}
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
