package executors

import (
	"context"
	"time"

	"botexecutor/src/connectors"
)

// RetryPolicy decides whether a failed broker submission is attempted again.
// MaxAttempts counts the initial attempt, so 3 means two retries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     []time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries transient broker errors twice, after 1s and 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{time.Second, 2 * time.Second},
		Retryable:   connectors.IsTransient,
	}
}

// NewRetryPolicy builds the policy from config, retrying transient errors only.
func NewRetryPolicy(config Config) RetryPolicy {
	policy := DefaultRetryPolicy()
	if config.RetryMaxAttempts > 0 {
		policy.MaxAttempts = config.RetryMaxAttempts
	}
	if len(config.RetryBackoff) > 0 {
		policy.Backoff = config.RetryBackoff
	}
	return policy
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// ShouldRetry reports whether another attempt follows a failed attempt number
// attempt (1-based).
func (p RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.attempts() {
		return false
	}
	if p.Retryable == nil {
		return connectors.IsTransient(err)
	}
	return p.Retryable(err)
}

// Delay is the wait before retry number retry (1-based). The last backoff
// step repeats when the schedule is shorter than the attempt budget.
func (p RetryPolicy) Delay(retry int) time.Duration {
	if len(p.Backoff) == 0 || retry < 1 {
		return 0
	}
	if retry > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[retry-1]
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
