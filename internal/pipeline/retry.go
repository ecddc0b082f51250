package pipeline

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/antinvestor/decider/internal/llm"
)

// RetryPolicy bounds per-stage retries. The zero value makes one attempt
// and never retries.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts per stage, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts.
	MaxDelay time.Duration

	// Multiplier grows the delay after each retry. Values below 1 are treated as 1.
	Multiplier float64

	// Jitter spreads delays by up to this fraction (0.0 to 1.0).
	Jitter float64
}

// NoRetry is the default policy.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// DefaultRetryPolicy retries transient failures twice with a short backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// attempts returns the number of attempts the policy allows.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialDelay <= 0 {
		return 0
	}

	multiplier := math.Max(p.Multiplier, 1)
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		jitterAmount := delay * math.Min(p.Jitter, 1)
		// Deterministic offset keyed on the attempt number.
		jitterOffset := float64(attempt%7) / 7.0 * jitterAmount
		delay = delay - jitterAmount/2 + jitterOffset
	}

	return time.Duration(delay)
}

// Retryable reports whether err is worth another attempt. Only transient
// provider failures qualify. Validation failures and cancellation never do.
func (p RetryPolicy) Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrResponseTooLarge) ||
		errors.Is(err, ErrHistorianOutputInvalid) {
		return false
	}
	return llm.IsTransient(err)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. onRetry, if set, is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, err error)) error {
	maxAttempts := p.attempts()

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == maxAttempts || !p.Retryable(err) || ctx.Err() != nil {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
