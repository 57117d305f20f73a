package showads

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Policy decides whether a failed attempt is retried and how long to back
// off. The same value object serves the auth and bulk send paths.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Delay returns the backoff after the given attempt (numbered from 1):
// BaseDelay * 2 * attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return time.Duration(2*attempt) * p.BaseDelay
}

// Do invokes fn until it succeeds, fails fatally, or the attempt budget is
// spent. Unauthorized failures retry without backoff but still consume an
// attempt from the shared budget. Unclassified errors surface immediately.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, op string, fn func(context.Context) error) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			return err
		}
		if !apiErr.Retryable() {
			return err
		}

		last = err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if apiErr.Class == ClassUnauthorized {
			// The next attempt only needs a forced token refresh.
			delay = 0
		}

		logger.Warn("showads.request_retry",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", p.MaxAttempts),
			zap.String("class", string(apiErr.Class)),
			zap.Duration("delay", delay),
			zap.Error(err))

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Last: last}
}
