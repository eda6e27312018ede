package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	callCount := 0

	result, err := Retry(context.Background(), DefaultRetryConfig(), func() (string, error) {
		callCount++
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %s", result)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call, got %d", callCount)
	}
}

func TestRetry_SucceedsAfterRetry(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
	}
	callCount := 0

	result, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		if callCount < 3 {
			return "", errors.New("temporary error")
		}
		return "ok", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("expected 'ok', got %s", result)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_ExceedsMaxAttempts(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}
	callCount := 0
	testErr := errors.New("persistent error")

	_, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", testErr
	})

	if !errors.Is(err, testErr) {
		t.Errorf("expected testErr, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("expected 3 calls, got %d", callCount)
	}
}

func TestRetry_RespectsContext(t *testing.T) {
	cfg := RetryConfig{
		MaxAttempts:    10,
		InitialBackoff: 100 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	callCount := 0
	_, err := Retry(ctx, cfg, func() (string, error) {
		callCount++
		return "", errors.New("error")
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if callCount >= 10 {
		t.Errorf("expected fewer than 10 calls, got %d", callCount)
	}
}

func TestRetry_RetryIfFilter(t *testing.T) {
	fatal := errors.New("fatal")
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		RetryIf:        func(err error) bool { return !errors.Is(err, fatal) },
	}

	callCount := 0
	_, err := Retry(context.Background(), cfg, func() (string, error) {
		callCount++
		return "", fatal
	})

	if !errors.Is(err, fatal) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("expected 1 call for non-retryable error, got %d", callCount)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			attempts = append(attempts, attempt)
		},
	}

	_, _ = Retry(context.Background(), cfg, func() (int, error) {
		return 0, errors.New("nope")
	})

	// OnRetry fires before retries, not after the final attempt
	if len(attempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("expected attempts [1 2], got %v", attempts)
	}
}

func TestRetryFunc(t *testing.T) {
	callCount := 0
	err := RetryFunc(context.Background(), RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond}, func() error {
		callCount++
		if callCount == 1 {
			return errors.New("once")
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected success, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 calls, got %d", callCount)
	}
}

func TestBackoffFor_CapsAtMax(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		BackoffFactor:  10.0,
	}
	cfg.applyDefaults()

	d := backoffFor(5, cfg)
	if d > 2*time.Second {
		t.Errorf("expected backoff capped at 2s, got %v", d)
	}
}
