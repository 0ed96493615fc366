package oracle

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Retrier re-runs transient oracle failures with exponential backoff.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a Retrier. Attempts below one are raised to one.
func NewRetrier(maxAttempts int, base, maxDelay time.Duration) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if maxDelay < base {
		maxDelay = base
	}
	return &Retrier{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: maxDelay, sleep: sleepCtx}
}

// Do calls fn until it succeeds, fails permanently, exhausts the attempt
// budget or ctx ends. It returns the number of attempts made and the last error.
func (r *Retrier) Do(ctx context.Context, name string, fn func(ctx context.Context) error) (int, error) {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	attempt := 0
	for attempt < r.MaxAttempts {
		if ctxErr := ctx.Err(); ctxErr != nil {
			if err == nil {
				err = ctxErr
			}
			return attempt, err
		}
		attempt++
		err = fn(ctx)
		if err == nil || !IsRetryable(err) || attempt == r.MaxAttempts {
			return attempt, err
		}

		delay := r.backoff(attempt, err)
		zap.L().Debug("oracle: retrying",
			zap.String("company", name), zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return attempt, err
		}
	}
	return attempt, err
}

// backoff doubles BaseDelay per attempt up to MaxDelay. A provider's
// Retry-After wins when it is longer, still capped at MaxDelay.
func (r *Retrier) backoff(attempt int, err error) time.Duration {
	d := r.BaseDelay
	for i := 1; i < attempt && d < r.MaxDelay; i++ {
		d *= 2
	}
	var rl *RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > d {
		d = rl.RetryAfter
	}
	return min(d, r.MaxDelay)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
