// Copyright 2025 James Ross
package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/beobservant/becertain/internal/causal"
	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.Store{
		Redis: config.Redis{
			Addr:        mr.Addr(),
			DialTimeout: time.Second,
			ReadTimeout: time.Second,
		},
		RetryCooldown:      time.Second,
		FallbackMaxItems:   1000,
		BaselineTTL:        time.Hour,
		GrangerTTL:         time.Hour,
		EventsTTL:          time.Hour,
		WeightsTTL:         time.Hour,
		OperationTimeout:   time.Second,
		MaxEventsPerTenant: 5,
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewClientWithRedis(cfg, rdb)
}

func TestClientSetGetDeleteRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "bc:acme:foo", "bar", time.Minute))
	val, ok, err := c.Get(ctx, "bc:acme:foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bar", val)

	require.NoError(t, c.Delete(ctx, "bc:acme:foo"))
	_, ok, err = c.Get(ctx, "bc:acme:foo")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClientFallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.Store{
		Redis:              config.Redis{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, ReadTimeout: 50 * time.Millisecond},
		RetryCooldown:      time.Minute,
		FallbackMaxItems:   100,
		OperationTimeout:   50 * time.Millisecond,
		MaxEventsPerTenant: 5,
	}
	c := NewClient(cfg)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "bc:acme:foo", "bar", 0))
	val, ok, err := c.Get(ctx, "bc:acme:foo")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "bar", val)
}

func TestBaselineBlendWeightsTowardFreshUntilWarm(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	fresh := rcamodel.Baseline{Mean: 100, Std: 10, Lower: 70, Upper: 130, SampleCount: 5}
	blended, err := c.BlendBaseline(ctx, "acme", "cpu_usage", fresh, 0.3)
	require.NoError(t, err)
	require.Equal(t, fresh.Mean, blended.Mean, "cold cache should return the fresh baseline unblended")

	warmCached := rcamodel.Baseline{Mean: 100, Std: 10, Lower: 70, Upper: 130, SampleCount: 25}
	require.NoError(t, c.SaveBaseline(ctx, "acme", "cpu_usage", warmCached))

	fresh2 := rcamodel.Baseline{Mean: 200, Std: 10, SampleCount: 5}
	blended2, err := c.BlendBaseline(ctx, "acme", "cpu_usage", fresh2, 0.3)
	require.NoError(t, err)
	require.InDelta(t, 130.0, blended2.Mean, 0.001, "warm cache should blend 70/30 toward fresh")
	require.Equal(t, 30, blended2.SampleCount)
}

func TestWeightsSaveLoadDelete(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	w := rcamodel.TenantSignalWeights{Metrics: 0.3, Logs: 0.4, Traces: 0.3, UpdateCount: 7}
	require.NoError(t, c.SaveWeights(ctx, "acme", w))

	loaded, err := c.LoadWeights(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, w, *loaded)

	require.NoError(t, c.DeleteWeights(ctx, "acme"))
	loaded, err = c.LoadWeights(ctx, "acme")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestGrangerMergeKeepsHigherStrength(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	first := []causal.GrangerResult{{CauseMetric: "cpu", EffectMetric: "latency", Strength: 0.4, IsCausal: true}}
	merged, err := c.SaveAndMergeGranger(ctx, "acme", "checkout", first)
	require.NoError(t, err)
	require.Len(t, merged, 1)

	weaker := []causal.GrangerResult{{CauseMetric: "cpu", EffectMetric: "latency", Strength: 0.1, IsCausal: true}}
	merged, err = c.SaveAndMergeGranger(ctx, "acme", "checkout", weaker)
	require.NoError(t, err)
	require.Len(t, merged, 1)
	require.Equal(t, 0.4, merged[0].Strength, "merge should keep the higher-strength result")

	stronger := []causal.GrangerResult{{CauseMetric: "mem", EffectMetric: "latency", Strength: 0.9, IsCausal: true}}
	merged, err = c.SaveAndMergeGranger(ctx, "acme", "checkout", stronger)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.Equal(t, "mem", merged[0].CauseMetric, "results should be sorted by descending strength")
}

func TestEventsAppendCapsAtMaxPerTenant(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, c.AppendEvent(ctx, "acme", rcamodel.DeploymentEvent{Service: "checkout", Timestamp: float64(i)}))
	}
	events, err := c.LoadEvents(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, events, 5, "log should be capped at MaxEventsPerTenant")
	require.Equal(t, float64(7), events[len(events)-1].Timestamp, "cap should drop the oldest entries first")
}
