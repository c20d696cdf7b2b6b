// Package retry provides an explicit retry policy for detection calls:
// bounded attempts, exponential backoff, and a one-way fallback to an
// alternate model when the configured one is unavailable. Keeping the policy
// a plain value makes the control flow testable without a network.
package retry

import (
	"context"
	"time"
)

// Policy describes how a failing call is retried. ShouldFallback, when set,
// inspects an attempt's error; the first time it returns true the remaining
// attempts switch to the fallback model permanently.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	ShouldFallback func(error) bool
}

// Default returns the standard policy: 3 attempts, backoff starting at 500ms
// and doubling each attempt.
func Default() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Do runs fn under the policy with a fixed model identifier.
func (p Policy) Do(ctx context.Context, model string, fn func(ctx context.Context, model string) error) error {
	return p.DoWithFallback(ctx, model, "", fn)
}

// DoWithFallback runs fn up to MaxAttempts times, sleeping between attempts
// with exponential backoff. When ShouldFallback matches an error and a
// fallback model is configured, the remaining attempts use the fallback
// model instead. The last error is returned after exhaustion; a context
// cancellation abandons any pending retry immediately.
func (p Policy) DoWithFallback(ctx context.Context, model, fallbackModel string, fn func(ctx context.Context, model string) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}

		lastErr = fn(ctx, model)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fallbackModel != "" && model != fallbackModel && p.ShouldFallback != nil && p.ShouldFallback(lastErr) {
			model = fallbackModel
		}
	}
	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
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
