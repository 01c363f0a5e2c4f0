package errors

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		if attempts < 3 {
			return NetworkError("timeout", nil)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_NonRetryableFailsImmediately(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return EmbeddingError("model unavailable", nil)
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (embedding errors are not retried)", attempts)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetryConfig(), func() error {
		attempts++
		return NetworkError("still down", nil)
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 4 { // initial + 3 retries
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, fastRetryConfig(), func() error {
		return NetworkError("timeout", nil)
	})

	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRetryWithResult_ReturnsValue(t *testing.T) {
	attempts := 0
	got, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (int, error) {
		attempts++
		if attempts < 2 {
			return 0, NetworkError("timeout", nil)
		}
		return 42, nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got != 42 {
		t.Errorf("got %d, want 42", got)
	}
}

func TestRetryWithResult_ZeroValueOnPlainError(t *testing.T) {
	got, err := RetryWithResult(context.Background(), fastRetryConfig(), func() (string, error) {
		return "partial", fmt.Errorf("plain failure")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if got != "" {
		t.Errorf("got %q, want zero value", got)
	}
}
