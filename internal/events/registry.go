// Copyright 2025 James Ross
// Package events holds an in-memory registry of deployment events used to
// correlate incidents against recent changes (spec §3, §4.7, §4.9). This
// package is deliberately unaware of persistence: internal/tenant wires a
// per-tenant instance to internal/store so state survives a restart.
package events

import (
	"sync"

	"github.com/beobservant/becertain/internal/rcamodel"
)

// Registry holds deployment events for a single tenant, in timestamp-arrival
// order, and answers the windowed/service-scoped queries the RCA stages need.
type Registry struct {
	mu     sync.RWMutex
	events []rcamodel.DeploymentEvent
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a single deployment event.
func (r *Registry) Register(event rcamodel.DeploymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// RegisterMany appends a batch of deployment events.
func (r *Registry) RegisterMany(evts []rcamodel.DeploymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evts...)
}

// InWindow returns every event with start <= timestamp <= end.
func (r *Registry) InWindow(start, end float64) []rcamodel.DeploymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rcamodel.DeploymentEvent
	for _, e := range r.events {
		if e.Timestamp >= start && e.Timestamp <= end {
			out = append(out, e)
		}
	}
	return out
}

// NearTimestamp returns events within windowSeconds of ts in either direction.
func (r *Registry) NearTimestamp(ts, windowSeconds float64) []rcamodel.DeploymentEvent {
	if windowSeconds <= 0 {
		windowSeconds = 300
	}
	return r.InWindow(ts-windowSeconds, ts+windowSeconds)
}

// ForService returns every event recorded against service.
func (r *Registry) ForService(service string) []rcamodel.DeploymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []rcamodel.DeploymentEvent
	for _, e := range r.events {
		if e.Service == service {
			out = append(out, e)
		}
	}
	return out
}

// MostRecent returns the latest-timestamped event for service, or nil.
func (r *Registry) MostRecent(service string) *rcamodel.DeploymentEvent {
	svcEvents := r.ForService(service)
	if len(svcEvents) == 0 {
		return nil
	}
	latest := svcEvents[0]
	for _, e := range svcEvents[1:] {
		if e.Timestamp > latest.Timestamp {
			latest = e
		}
	}
	return &latest
}

// ListAll returns a defensive copy of every registered event.
func (r *Registry) ListAll() []rcamodel.DeploymentEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rcamodel.DeploymentEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Clear drops every event.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Replace swaps the registry's contents wholesale, used by internal/tenant
// when hydrating from persisted state.
func (r *Registry) Replace(evts []rcamodel.DeploymentEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append([]rcamodel.DeploymentEvent(nil), evts...)
}

// EvictBefore drops every event with timestamp < cutoff and returns the
// number removed, used by internal/tenant's periodic retention sweep
// (spec §4.6, store.EventsTTL).
func (r *Registry) EvictBefore(cutoff float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	removed := 0
	for _, e := range r.events {
		if e.Timestamp < cutoff {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return removed
}
