package enrich

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds the retries of one inference call.
type Policy struct {
	MaxRetries  uint64
	Delay       time.Duration
	WarmupDelay time.Duration
	Retryable   func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		Delay:       time.Second,
		WarmupDelay: 2 * time.Second,
		Retryable:   IsRetryable,
	}
}

// policyBackOff waits the warm-up delay after a model-loading error and the
// plain delay after any other retryable error.
type policyBackOff struct {
	policy  Policy
	lastErr error
}

func (b *policyBackOff) NextBackOff() time.Duration {
	if errors.Is(b.lastErr, ErrModelLoading) {
		return b.policy.WarmupDelay
	}
	return b.policy.Delay
}

func (b *policyBackOff) Reset() {
	b.lastErr = nil
}

// retry runs op until it succeeds, fails terminally, exhausts the policy or
// ctx is done. At most MaxRetries+1 attempts are made.
func retry[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	b := &policyBackOff{policy: policy}
	attempt := 0

	return backoff.RetryNotifyWithData(func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		b.lastErr = err
		if !retryable(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx), func(err error, wait time.Duration) {
		slog.Debug("Retrying inference request", "attempt", attempt, "wait", wait, "error", err)
	})
}
