package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Scanner waits for in-flight executions; stop it before storage closes
	// so every terminal record still lands.
	a.scan.Close()

	if a.stream != nil {
		err = a.stream.Close()
		if err != nil {
			a.logger.Error("quote-stream-close-error", zap.Error(err))
		}
	}

	err = a.persistence.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	a.store.Close()
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
