// Copyright 2025 James Ross
package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	mr := miniredis.RunT(t)
	storeCfg := config.Store{
		Redis:              config.Redis{Addr: mr.Addr(), DialTimeout: time.Second, ReadTimeout: time.Second},
		RetryCooldown:      time.Second,
		FallbackMaxItems:   1000,
		BaselineTTL:        time.Hour,
		GrangerTTL:         time.Hour,
		EventsTTL:          time.Hour,
		WeightsTTL:         time.Hour,
		OperationTimeout:   time.Second,
		MaxEventsPerTenant: 100,
		RegistryAlpha:      0.2,
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := store.NewClientWithRedis(storeCfg, rdb)
	return NewRegistry(storeCfg, client)
}

func TestGetStateHydratesDefaultsOnFirstAccess(t *testing.T) {
	r := newTestRegistry(t)
	s, err := r.GetState(context.Background(), "acme")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	w := s.Weights()
	if w.Metrics != 0.30 || w.Logs != 0.35 || w.Traces != 0.35 {
		t.Fatalf("expected default weights, got %+v", w)
	}
}

func TestUpdateWeightRewardsCorrectSignalAndPersists(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := r.UpdateWeight(ctx, "acme", rcamodel.SignalLogs, true); err != nil {
			t.Fatalf("UpdateWeight: %v", err)
		}
	}
	s, err := r.GetState(ctx, "acme")
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	w := s.Weights()
	if w.Logs <= 0.35 {
		t.Fatalf("expected logs weight to grow with repeated correct signals, got %v", w.Logs)
	}
	if w.UpdateCount != 5 {
		t.Fatalf("expected update_count=5, got %d", w.UpdateCount)
	}

	// a second registry instance sharing the same store should see the
	// persisted weights rather than re-hydrating defaults.
	r2 := NewRegistry(r.cfg, r.store)
	s2, err := r2.GetState(ctx, "acme")
	if err != nil {
		t.Fatalf("GetState on fresh registry: %v", err)
	}
	if s2.Weights().Logs != w.Logs {
		t.Fatalf("expected persisted weights to survive a new registry instance: got %v want %v", s2.Weights().Logs, w.Logs)
	}
}

func TestResetWeightsRestoresDefaults(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if _, err := r.UpdateWeight(ctx, "acme", rcamodel.SignalTraces, true); err != nil {
		t.Fatalf("UpdateWeight: %v", err)
	}
	s, err := r.ResetWeights(ctx, "acme")
	if err != nil {
		t.Fatalf("ResetWeights: %v", err)
	}
	if s.Weights().Traces != 0.35 {
		t.Fatalf("expected reset to restore defaults, got %+v", s.Weights())
	}
}

func TestEventsRegisterAndWindow(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.RegisterEvent(ctx, "acme", rcamodel.DeploymentEvent{Service: "checkout", Timestamp: 100, Version: "1.0.0"}); err != nil {
		t.Fatalf("RegisterEvent: %v", err)
	}
	if err := r.RegisterEvent(ctx, "acme", rcamodel.DeploymentEvent{Service: "checkout", Timestamp: 1000, Version: "1.0.1"}); err != nil {
		t.Fatalf("RegisterEvent: %v", err)
	}

	inWindow, err := r.EventsInWindow(ctx, "acme", 0, 200)
	if err != nil {
		t.Fatalf("EventsInWindow: %v", err)
	}
	if len(inWindow) != 1 || inWindow[0].Version != "1.0.0" {
		t.Fatalf("expected one event in window, got %+v", inWindow)
	}

	if err := r.ClearEvents(ctx, "acme"); err != nil {
		t.Fatalf("ClearEvents: %v", err)
	}
	all, err := r.GetEvents(ctx, "acme")
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty event log after clear, got %+v", all)
	}
}

func TestWeightedConfidenceBlendsBySignalWeight(t *testing.T) {
	s := &State{weights: rcamodel.TenantSignalWeights{Metrics: 0.5, Logs: 0.3, Traces: 0.2}}
	conf := s.WeightedConfidence(1.0, 1.0, 0.0)
	if conf != 0.8 {
		t.Fatalf("expected 0.8, got %v", conf)
	}
}
