// Package retry holds the bounded retry policy shared by every retrying caller.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is returned by Do when every attempt reported "not done".
var ErrExhausted = errors.New("retry attempts exhausted")

// Backoff returns the delay to wait after the given (1-based) failed attempt.
type Backoff func(attempt int) time.Duration

// Linear waits base, 2*base, 3*base, ...
func Linear(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// Exponential waits base, 2*base, 4*base, ... capped at maxDelay.
func Exponential(base, maxDelay time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		if attempt > 30 {
			return maxDelay
		}
		d := base * time.Duration(1<<(attempt-1))
		if d <= 0 || d > maxDelay {
			return maxDelay
		}
		return d
	}
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff

	// Sleep is replaced in tests; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do calls fn until it reports done, returns an error, or MaxAttempts is reached.
// Errors returned by fn are permanent and stop the loop immediately.
func (p Policy) Do(ctx context.Context, fn func(attempt int) (done bool, err error)) error {
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}

	for attempt := 1; attempt <= limit; attempt++ {
		done, err := fn(attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt == limit {
			break
		}
		if err := p.sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrExhausted, limit)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
