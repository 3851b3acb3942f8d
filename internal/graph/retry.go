package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Retry policy for transient persistence errors. Each network round-trip
// gets bounded attempts with exponential backoff before the batch is
// surfaced as failed.
const (
	defaultRetryAttempts = 4
	defaultRetryBase     = 100 * time.Millisecond
)

// withRetry runs fn, retrying on ErrTransient with exponential backoff up
// to attempts tries. Non-transient errors and context cancellation return
// immediately.
func withRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = defaultRetryAttempts
	}
	if base <= 0 {
		base = defaultRetryBase
	}

	var err error
	delay := base
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrTransient) {
			return err
		}
		if attempt == attempts {
			break
		}

		slog.Debug("retrying after transient store error",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
