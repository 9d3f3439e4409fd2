package syncer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// maxRetryDelay caps the exponential backoff so long outages do not push
// the wait between attempts into the minutes.
const maxRetryDelay = 30 * time.Second

// withRetry runs fn up to maxRetries+1 times with doubling backoff,
// logging each failed attempt before sleeping. It returns nil on the first
// success, the last error once attempts are exhausted, or ctx.Err() when
// cancelled mid-wait.
func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, logger *zap.Logger, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		logger.Warn("retrying after failure",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}
