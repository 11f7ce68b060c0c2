package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/core"
)

// RetryPolicy bounds how often a transfer is attempted. The wait before
// attempt n+1 is BaseDelay doubled n-1 times, capped at MaxDelay and
// spread by up to JitterFactor in either direction.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultRetryPolicy is used for Object Storage uploads.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		JitterFactor: 0.2,
	}
}

// RetryPolicyOption adjusts a policy built by NewRetryPolicy.
type RetryPolicyOption func(*RetryPolicy)

// WithMaxAttempts counts the first try; 1 disables retrying.
func WithMaxAttempts(n int) RetryPolicyOption {
	return func(p *RetryPolicy) { p.MaxAttempts = n }
}

func WithBaseDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) { p.BaseDelay = d }
}

func WithMaxDelay(d time.Duration) RetryPolicyOption {
	return func(p *RetryPolicy) { p.MaxDelay = d }
}

// WithJitter takes a fraction between 0 and 1.
func WithJitter(factor float64) RetryPolicyOption {
	return func(p *RetryPolicy) { p.JitterFactor = factor }
}

// NewRetryPolicy applies opts on top of DefaultRetryPolicy.
func NewRetryPolicy(opts ...RetryPolicyOption) *RetryPolicy {
	p := DefaultRetryPolicy()
	for _, opt := range opts {
		opt(p)
	}
	p.MaxAttempts = max(p.MaxAttempts, 1)
	return p
}

// RetryNotifyFunc observes a failed attempt before the policy sleeps.
type RetryNotifyFunc func(attempt int, err error, delay time.Duration)

// Execute calls fn until it returns nil or an error that is not
// core.IsRetryable. When every attempt failed with a retryable error the
// result is a *RetryExhaustedError, except for single-attempt policies
// which return the error unchanged. Cancelling ctx while waiting returns
// the last error fn produced.
func (p *RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error, notify RetryNotifyFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempt := 1
	for {
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case !core.IsRetryable(err):
			return err
		case attempt >= p.MaxAttempts:
			if p.MaxAttempts == 1 {
				return err
			}
			return &RetryExhaustedError{Attempts: attempt, LastErr: err}
		}

		delay := p.CalculateDelay(attempt)
		if notify != nil {
			notify(attempt, err, delay)
		}
		if !sleepCtx(ctx, delay) {
			return err
		}
		attempt++
	}
}

// CalculateDelay returns the wait after the given failed attempt.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt && (p.MaxDelay <= 0 || delay < p.MaxDelay); i++ {
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.JitterFactor <= 0 {
		return delay
	}
	spread := float64(delay) * p.JitterFactor
	return delay + time.Duration((rand.Float64()*2-1)*spread) // #nosec G404 -- jitter only
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RetryExhaustedError wraps the last failure once the attempts ran out.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastErr }
