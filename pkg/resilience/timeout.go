package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/sentence-search/pkg/errors"
)

// WithTimeout runs fn under a context cancelled after timeout and stops
// waiting for it at that point. An expired limit is reported as both
// apperrors.ErrTimeout and context.DeadlineExceeded; fn keeps running on
// its own goroutine until it notices the cancellation, so it must not write
// to state the caller reads afterwards. A non-positive timeout runs fn
// inline.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx)
	}()
	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-attemptCtx.Done():
	}
	if attemptCtx.Err() == nil {
		return err
	}
	if parentErr := ctx.Err(); parentErr != nil {
		return fmt.Errorf("%s: caller gave up: %w", name, parentErr)
	}
	return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
}
