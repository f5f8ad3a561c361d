package util

import (
	"context"
	"fmt"
	"time"
)

const retryBaseDelay = 500 * time.Millisecond

// RetryWithBackoff calls fn up to maxRetries+1 times with exponential
// backoff starting at retryBaseDelay. fn receives the 0-indexed attempt
// number. If the context is cancelled, the context error is returned
// immediately.
func RetryWithBackoff(ctx context.Context, maxRetries int, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}

		// Don't wait after the last attempt
		if attempt == maxRetries {
			break
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		backoff := retryBaseDelay * time.Duration(1<<attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
