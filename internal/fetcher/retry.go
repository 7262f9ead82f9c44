// Copyright 2025 James Ross
package fetcher

import (
	"context"
	"errors"
	"time"
)

// retryConfig mirrors the reference retry decorator's attempts/delay/backoff
// knobs (datasources/retry.py): exponential backoff between attempts,
// retried only on DataSourceUnavailable/QueryTimeout since an InvalidQuery
// will never succeed on resubmission.
type retryConfig struct {
	Attempts int
	Delay    time.Duration
	Backoff  float64
}

func retryable(err error) bool {
	var unavailable *DataSourceUnavailable
	var timeout *QueryTimeout
	return errors.As(err, &unavailable) || errors.As(err, &timeout)
}

func withRetry(ctx context.Context, cfg retryConfig, fn func() (map[string]any, error)) (map[string]any, error) {
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := cfg.Delay

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) || attempt == attempts-1 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * cfg.Backoff)
	}
	return nil, lastErr
}
