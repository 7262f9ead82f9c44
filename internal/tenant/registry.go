// Copyright 2025 James Ross
// Package tenant holds the per-tenant state an analysis run reads and
// writes: adaptive signal weights, the deployment-event log, learned
// baselines, and cached Granger-causality history (spec §4.6 multi-tenant
// isolation). Persistence is delegated to internal/store; this package
// owns the in-process cache and the domain rules on top of it (weight
// adaptation, weighted-confidence blending, event windowing).
package tenant

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/beobservant/becertain/internal/causal"
	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/events"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/store"
)

// State holds one tenant's adaptive weights and event log. It is not
// goroutine-safe on its own; Registry guards access to it.
type State struct {
	weights rcamodel.TenantSignalWeights
	events  *events.Registry
}

// Weights returns the current signal weights.
func (s *State) Weights() rcamodel.TenantSignalWeights {
	return s.weights
}

// Events returns the tenant's deployment-event registry.
func (s *State) Events() *events.Registry {
	return s.events
}

func defaultWeights() rcamodel.TenantSignalWeights {
	return rcamodel.TenantSignalWeights{Metrics: 0.30, Logs: 0.35, Traces: 0.35, UpdateCount: 0}
}

func (s *State) updateWeight(signal rcamodel.Signal, wasCorrect bool, alpha float64) {
	reward := 0.0
	if wasCorrect {
		reward = 1.0
	}
	current := s.weightFor(signal)
	updated := round4((1-alpha)*current + alpha*reward)
	s.setWeightFor(signal, updated)
	s.normalize()
	s.weights.UpdateCount++
}

func (s *State) weightFor(signal rcamodel.Signal) float64 {
	switch signal {
	case rcamodel.SignalMetrics:
		return s.weights.Metrics
	case rcamodel.SignalLogs:
		return s.weights.Logs
	case rcamodel.SignalTraces:
		return s.weights.Traces
	default:
		return 1.0 / 3
	}
}

func (s *State) setWeightFor(signal rcamodel.Signal, v float64) {
	switch signal {
	case rcamodel.SignalMetrics:
		s.weights.Metrics = v
	case rcamodel.SignalLogs:
		s.weights.Logs = v
	case rcamodel.SignalTraces:
		s.weights.Traces = v
	}
}

func (s *State) normalize() {
	total := s.weights.Metrics + s.weights.Logs + s.weights.Traces
	if total == 0 {
		total = 1.0
	}
	s.weights.Metrics = round4(s.weights.Metrics / total)
	s.weights.Logs = round4(s.weights.Logs / total)
	s.weights.Traces = round4(s.weights.Traces / total)
}

// WeightedConfidence blends the three per-signal scores using this
// tenant's adaptive weights (spec §4.6 adaptive signal weighting).
func (s *State) WeightedConfidence(metricScore, logScore, traceScore float64) float64 {
	return round3(s.weights.Metrics*metricScore + s.weights.Logs*logScore + s.weights.Traces*traceScore)
}

func (s *State) reset() {
	s.weights = defaultWeights()
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
func round3(v float64) float64 { return math.Round(v*1e3) / 1e3 }

// Registry caches per-tenant State, hydrating it from the backing store on
// first access and persisting mutations back (spec §4.6).
type Registry struct {
	cfg   config.Store
	store *store.Client

	mu     sync.Mutex
	states map[string]*State
}

func NewRegistry(cfg config.Store, client *store.Client) *Registry {
	return &Registry{cfg: cfg, store: client, states: make(map[string]*State)}
}

// GetState returns the cached state for tenantID, hydrating weights and
// the event log from the store on first access for this process.
func (r *Registry) GetState(ctx context.Context, tenantID string) (*State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.states[tenantID]; ok {
		return s, nil
	}

	s := &State{weights: defaultWeights(), events: events.NewRegistry()}
	if stored, err := r.store.LoadWeights(ctx, tenantID); err != nil {
		return nil, err
	} else if stored != nil {
		s.weights = *stored
	}
	if stored, err := r.store.LoadEvents(ctx, tenantID); err != nil {
		return nil, err
	} else if stored != nil {
		s.events.Replace(stored)
	}
	r.states[tenantID] = s
	return s, nil
}

// UpdateWeight applies one reinforcement update to tenantID's weight for
// signal and persists the result.
func (r *Registry) UpdateWeight(ctx context.Context, tenantID string, signal rcamodel.Signal, wasCorrect bool) (*State, error) {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	s.updateWeight(signal, wasCorrect, r.cfg.RegistryAlpha)
	r.mu.Unlock()
	if err := r.store.SaveWeights(ctx, tenantID, s.weights); err != nil {
		return nil, err
	}
	return s, nil
}

// ResetWeights restores tenantID's weights to the default distribution and
// clears the persisted state.
func (r *Registry) ResetWeights(ctx context.Context, tenantID string) (*State, error) {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	s.reset()
	r.mu.Unlock()
	if err := r.store.DeleteWeights(ctx, tenantID); err != nil {
		return nil, err
	}
	r.mu.Lock()
	delete(r.states, tenantID)
	r.mu.Unlock()
	return s, nil
}

// RegisterEvent appends a deployment event to tenantID's log, in-process
// and in the backing store.
func (r *Registry) RegisterEvent(ctx context.Context, tenantID string, event rcamodel.DeploymentEvent) error {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return err
	}
	s.events.Register(event)
	return r.store.AppendEvent(ctx, tenantID, event)
}

// GetEvents returns tenantID's deployment-event log.
func (r *Registry) GetEvents(ctx context.Context, tenantID string) ([]rcamodel.DeploymentEvent, error) {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.events.ListAll(), nil
}

// ClearEvents drops tenantID's deployment-event log, in-process and in the
// backing store.
func (r *Registry) ClearEvents(ctx context.Context, tenantID string) error {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return err
	}
	s.events.Clear()
	return r.store.ClearEvents(ctx, tenantID)
}

// EventsInWindow returns tenantID's events with start <= timestamp <= end.
func (r *Registry) EventsInWindow(ctx context.Context, tenantID string, start, end float64) ([]rcamodel.DeploymentEvent, error) {
	s, err := r.GetState(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.events.InWindow(start, end), nil
}

// LoadBaseline reads tenantID's learned baseline for metricName.
func (r *Registry) LoadBaseline(ctx context.Context, tenantID, metricName string) (*rcamodel.Baseline, error) {
	return r.store.LoadBaseline(ctx, tenantID, metricName)
}

// BlendBaseline merges a freshly computed baseline into tenantID's cached
// one (spec §4.2, §4.6) and persists the result.
func (r *Registry) BlendBaseline(ctx context.Context, tenantID, metricName string, fresh rcamodel.Baseline, alpha float64) (rcamodel.Baseline, error) {
	return r.store.BlendBaseline(ctx, tenantID, metricName, fresh, alpha)
}

// MergeGranger folds fresh Granger results for service into tenantID's
// cached history, keeping the higher-strength result per cause/effect pair.
func (r *Registry) MergeGranger(ctx context.Context, tenantID, service string, fresh []causal.GrangerResult) ([]causal.GrangerResult, error) {
	return r.store.SaveAndMergeGranger(ctx, tenantID, service, fresh)
}

// LoadAllGranger returns the merged Granger history for tenantID across
// every service named in services.
func (r *Registry) LoadAllGranger(ctx context.Context, tenantID string, services []string) ([]causal.GrangerResult, error) {
	return r.store.LoadAllGranger(ctx, tenantID, services)
}

// EvictExpiredEvents sweeps every currently cached tenant's in-process
// event log, dropping deployment events older than Store.EventsTTL, and
// reports how many were removed per tenant. Persisted state in
// internal/store already expires independently via its own TTL; this
// only bounds the in-process cache for long-lived processes (spec §4.6).
func (r *Registry) EvictExpiredEvents(now time.Time) map[string]int {
	cutoff := now.Add(-r.cfg.EventsTTL).Unix()

	r.mu.Lock()
	states := make(map[string]*State, len(r.states))
	for tenantID, s := range r.states {
		states[tenantID] = s
	}
	r.mu.Unlock()

	removed := make(map[string]int)
	for tenantID, s := range states {
		if n := s.events.EvictBefore(float64(cutoff)); n > 0 {
			removed[tenantID] = n
		}
	}
	return removed
}

// MaintenanceScheduler runs EvictExpiredEvents on the cron cadence named
// in config.Maintenance (spec §4.6 housekeeping, repurposing the
// teacher's robfig/cron requeue scheduler for tenant-state eviction
// instead of job reaping).
type MaintenanceScheduler struct {
	registry *Registry
	cronSpec string
	log      *zap.Logger
	c        *cron.Cron
}

func NewMaintenanceScheduler(registry *Registry, cronSpec string, log *zap.Logger) *MaintenanceScheduler {
	return &MaintenanceScheduler{registry: registry, cronSpec: cronSpec, log: log}
}

// Start schedules the eviction sweep and begins running it in the
// background. Returns an error if cronSpec cannot be parsed.
func (m *MaintenanceScheduler) Start() error {
	m.c = cron.New()
	_, err := m.c.AddFunc(m.cronSpec, func() {
		removed := m.registry.EvictExpiredEvents(time.Now())
		for tenantID, n := range removed {
			m.log.Info("evicted expired deployment events", zap.String("tenant_id", tenantID), zap.Int("count", n))
		}
	})
	if err != nil {
		return err
	}
	m.c.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (m *MaintenanceScheduler) Stop() {
	if m.c != nil {
		ctx := m.c.Stop()
		<-ctx.Done()
	}
}
