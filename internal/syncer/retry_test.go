package syncer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryStopsAfterMaxRetries(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, nil, func(context.Context) error {
		attempts++
		return errors.New("always fails")
	})
	if err == nil {
		t.Fatalf("expected the final error to surface")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryReturnsOnFirstSuccess(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 5, time.Millisecond, nil, func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := withRetry(ctx, 5, time.Hour, nil, func(context.Context) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
