// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetryRetriesOnlyTransientErrors(t *testing.T) {
	attempts := 0
	cfg := retryConfig{Attempts: 3, Delay: time.Millisecond, Backoff: 2.0}

	_, err := withRetry(context.Background(), cfg, func() (map[string]any, error) {
		attempts++
		return nil, newUnavailable("op", errors.New("down"))
	})
	if err == nil {
		t.Fatal("expected final error after exhausting attempts")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetryDoesNotRetryInvalidQuery(t *testing.T) {
	attempts := 0
	cfg := retryConfig{Attempts: 3, Delay: time.Millisecond, Backoff: 2.0}

	_, err := withRetry(context.Background(), cfg, func() (map[string]any, error) {
		attempts++
		return nil, newInvalidQuery("op", errors.New("bad query"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected no retries for a non-transient error, got %d attempts", attempts)
	}
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	cfg := retryConfig{Attempts: 3, Delay: time.Millisecond, Backoff: 2.0}

	result, err := withRetry(context.Background(), cfg, func() (map[string]any, error) {
		attempts++
		if attempts < 2 {
			return nil, newTimeout("op", errors.New("slow"))
		}
		return map[string]any{"ok": true}, nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if result["ok"] != true {
		t.Fatalf("unexpected result: %+v", result)
	}
}
