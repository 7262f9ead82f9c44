// Copyright 2025 James Ross
package obs

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// StoreHealth reports the tenant store's breaker state as an integer
// (0 Closed, 1 HalfOpen, 2 Open), mirroring internal/breaker.State.
type StoreHealth func() int

// StartStoreHealthSampler periodically samples the tenant store's circuit
// breaker state into StoreBreakerState, the same ticker-driven polling
// idiom the teacher used for queue depth sampling. Each transition into
// the open state (2) also bumps StoreFallbackActivations, since that is
// the moment operations start being served from the in-memory fallback.
func StartStoreHealthSampler(ctx context.Context, interval time.Duration, health StoreHealth, log *zap.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		prev := -1
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := health()
				StoreBreakerState.Set(float64(state))
				if state == 2 && prev != 2 {
					StoreFallbackActivations.Inc()
					log.Warn("tenant store circuit breaker opened, serving from in-memory fallback")
				}
				prev = state
			}
		}
	}()
}
