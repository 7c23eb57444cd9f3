package venue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds retries of transient venue failures.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	BackoffMult  float64
	Logger       *zap.Logger
}

// WithRetry runs fn, retrying on ErrUnavailable with exponential backoff.
// Rejections and context cancellation are returned immediately. After the
// last attempt the final error is returned unchanged so callers can still
// classify it.
func WithRetry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	mult := cfg.BackoffMult
	if mult < 1 {
		mult = 2.0
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}

		if attempt == attempts {
			break
		}

		cfg.Logger.Warn("venue-call-retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * mult)
	}

	return err
}
