// Package retry provides a bounded exponential-backoff retry policy with
// jitter and an injectable retryable-error predicate, shared by the
// translation engine (transport and parse failures) and the sheet write
// path (quota errors).
package retry

import (
	"context"
	"math/rand"
	"time"
)

type Policy struct {
	MaxAttempts int
	// BaseDelay is the wait before the second attempt; each further attempt
	// doubles it, capped at MaxDelay. A random jitter of up to half the
	// computed delay is added.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable reports whether an error is worth another attempt. nil
	// means every error is retryable.
	Retryable func(error) bool
}

// DefaultPolicy matches the translation transport policy: 5 attempts,
// 1s initial backoff, 15s ceiling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 15 * time.Second}
}

// Do runs fn until it succeeds, the attempt ceiling is reached, the error
// is not retryable, or ctx is done. The last error is returned unwrapped so
// callers can still classify it.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if werr := p.wait(ctx, attempt); werr != nil {
				return werr
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
	}
	return err
}

func (p Policy) wait(ctx context.Context, attempt int) error {
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
