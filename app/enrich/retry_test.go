package enrich

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy() Policy {
	return Policy{
		MaxRetries:  3,
		Delay:       time.Millisecond,
		WarmupDelay: 2 * time.Millisecond,
		Retryable:   IsRetryable,
	}
}

func TestRetry_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), testPolicy(), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &APIError{StatusCode: 503, Message: "busy", Retryable: true}
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if got != "ok" || calls != 3 {
		t.Errorf("Expected ok after 3 calls, got %q after %d", got, calls)
	}
}

func TestRetry_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), testPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, &APIError{StatusCode: 429, Message: "slow down", Retryable: true}
	})

	if err == nil {
		t.Fatal("Expected an error")
	}
	if calls != 4 {
		t.Errorf("Expected 4 attempts, got %d", calls)
	}
}

func TestRetry_TerminalErrorIsNotRetried(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), testPolicy(), func(context.Context) (int, error) {
		calls++
		return 0, &APIError{StatusCode: 400, Message: "bad input"}
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Errorf("Expected the terminal APIError back, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}
}

func TestRetry_UsesWarmupDelay(t *testing.T) {
	policy := testPolicy()
	policy.Delay = time.Millisecond
	policy.WarmupDelay = 30 * time.Millisecond

	calls := 0
	start := time.Now()
	_, err := retry(context.Background(), policy, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, &APIError{StatusCode: 503, Message: "loading", Retryable: true, Loading: true}
		}
		return 1, nil
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < policy.WarmupDelay {
		t.Errorf("Expected to wait at least %v, waited %v", policy.WarmupDelay, elapsed)
	}
}

func TestRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := testPolicy()
	policy.Delay = time.Hour

	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := retry(ctx, policy, func(context.Context) (int, error) {
			calls++
			return 0, &APIError{Message: "network down", Retryable: true}
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Expected retry to stop after cancel")
	}
	if calls != 1 {
		t.Errorf("Expected 1 attempt, got %d", calls)
	}
}
