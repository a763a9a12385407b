package util

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, doubling the wait between failures
// starting from baseDelay. The first nil return wins; otherwise the error of
// the final attempt comes back. Cancelling the context aborts the wait
// between attempts, not a call already in flight.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	delay := baseDelay

	for i := 0; i < attempts; i++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
