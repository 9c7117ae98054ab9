package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"audiotube/internal/services"
)

const (
	locatorStep     = 5 * time.Second
	locatorMaxDelay = 20 * time.Second
	directMaxDelay  = 30 * time.Second
)

// locatorDelay is the linear backoff for URL resolution: 5s per attempt,
// capped at 20s.
func locatorDelay(attempt int) time.Duration {
	delay := time.Duration(attempt) * locatorStep
	if delay > locatorMaxDelay {
		return locatorMaxDelay
	}
	return delay
}

// directDelay is the exponential backoff for direct downloads: 2^attempt
// seconds, capped at 30s.
func directDelay(attempt int) time.Duration {
	if attempt >= 5 {
		return directMaxDelay
	}
	delay := time.Duration(1<<attempt) * time.Second
	if delay > directMaxDelay {
		return directMaxDelay
	}
	return delay
}

// retryTimeouts runs fn up to attempts times. Only timeout-classified errors
// are retried; anything else is returned at once. exhausted reports whether
// the budget ran out on timeouts.
func retryTimeouts(ctx context.Context, attempts int, delay func(int) time.Duration, sleep Sleeper, fn func(context.Context) error) (exhausted bool, err error) {
	if attempts < 1 {
		attempts = 1
	}
	if sleep == nil {
		sleep = SleepContext
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return false, nil
		}
		var stop permanentError
		if errors.As(err, &stop) {
			return false, stop.err
		}
		if !services.IsTimeout(err) || ctx.Err() != nil {
			return false, err
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleep(ctx, delay(attempt)); sleepErr != nil {
			return false, sleepErr
		}
	}
	return true, err
}

// resolveURL asks r for the file URL, retrying timeouts with linear backoff.
// Every failure is reported as ErrLocator.
func resolveURL(ctx context.Context, r Resolver, fileID string, attempts int, sleep Sleeper) (string, error) {
	var url string
	_, err := retryTimeouts(ctx, attempts, locatorDelay, sleep, func(ctx context.Context) error {
		resolved, err := r.FileURL(ctx, fileID)
		if err != nil {
			return err
		}
		url = resolved
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLocator, err)
	}
	return url, nil
}

// permanentError stops retryTimeouts even when the wrapped error is a timeout.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }

func (e permanentError) Unwrap() error { return e.err }
