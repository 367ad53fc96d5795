package connection

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultMaxAttempts bounds both connect attempts and write attempts.
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the wait after the first failed connect attempt.
	DefaultBackoffBase = time.Second
	// DefaultWriteRetryDelay is the pause before re-running a failed write.
	DefaultWriteRetryDelay = time.Second
	// DefaultConnectTimeout bounds a single transport connect call.
	DefaultConnectTimeout = 10 * time.Second
)

// RetryPolicy bounds connection and write retries.
type RetryPolicy struct {
	MaxAttempts     int
	BackoffBase     time.Duration
	WriteRetryDelay time.Duration
}

// DefaultRetryPolicy returns 3 attempts, 1s/2s/4s... backoff and a 1s write retry delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     DefaultMaxAttempts,
		BackoffBase:     DefaultBackoffBase,
		WriteRetryDelay: DefaultWriteRetryDelay,
	}
}

// Backoff returns the wait after zero-based failed attempt k: BackoffBase * 2^k.
func (p RetryPolicy) Backoff(k int) time.Duration {
	if k < 0 {
		k = 0
	}
	if k > 30 {
		k = 30
	}
	return p.BackoffBase << k
}

// withDefaults fills unset fields.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BackoffBase <= 0 {
		p.BackoffBase = DefaultBackoffBase
	}
	if p.WriteRetryDelay < 0 {
		p.WriteRetryDelay = 0
	}
	return p
}

// Wait blocks for d on clock, returning early with ctx.Err() if ctx ends first.
func Wait(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := clock.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
