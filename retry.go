package kvom

import (
	"context"
	"errors"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to 5 retries. Errors that
// ShouldRetry classifies as permanent abort immediately.
// If retries are exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.NewFibonacci(1 * time.Second)
	t := func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			if ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	}
	if err := retry.Do(ctx, retry.WithMaxRetries(5, b), t); err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known permanent failure).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Caller bugs and record invariant violations never heal on retry.
	if e, ok := err.(Error); ok {
		switch e.Code {
		case FutureNotReady, FutureReuse, MissingPrimaryKey, MissingRequiredField, CorruptColdEntry:
			return false
		}
	}
	return true
}
