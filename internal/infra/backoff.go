package infra

import (
	"context"
	"time"

	"shift_processor/internal/domain"
)

// Backoff paces startup retries. Request paths never retry.
type Backoff struct {
	Base time.Duration
	Max  time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultBackoff doubles from 1s up to 60s.
func DefaultBackoff() Backoff {
	return Backoff{Base: time.Second, Max: time.Minute}
}

// Delay returns Base * 2^attempt, capped at Max.
// A negative attempt returns Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}
	// 2^30 seconds is far past any sane cap
	if attempt > 30 {
		return b.Max
	}
	d := b.Base * time.Duration(1<<attempt)
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// Retry runs fn up to attempts times. Only upstream failures are retried;
// configuration and validation errors are returned at once.
func (b Backoff) Retry(ctx context.Context, attempts int, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	sleep := b.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if domain.KindOf(err) != domain.KindUpstream || attempt == attempts-1 {
			return err
		}
		delay := b.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
