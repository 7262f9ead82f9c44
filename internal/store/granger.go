// Copyright 2025 James Ross
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/beobservant/becertain/internal/causal"
)

func pairKey(cause, effect string) string {
	return cause + ">>>" + effect
}

// LoadGranger returns the cached Granger results for tenantID/service.
func (c *Client) LoadGranger(ctx context.Context, tenantID, service string) ([]causal.GrangerResult, error) {
	raw, ok, err := c.Get(ctx, GrangerKey(tenantID, service))
	if err != nil || !ok {
		return nil, err
	}
	var results []causal.GrangerResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("unmarshal granger %s/%s: %w", tenantID, service, err)
	}
	return results, nil
}

// SaveAndMergeGranger merges freshResults into whatever is cached for
// tenantID/service, keeping the higher-strength result per cause/effect
// pair, persists the merge, and returns it sorted by descending strength
// (spec §4.5 Granger causality store).
func (c *Client) SaveAndMergeGranger(ctx context.Context, tenantID, service string, freshResults []causal.GrangerResult) ([]causal.GrangerResult, error) {
	cached, err := c.LoadGranger(ctx, tenantID, service)
	if err != nil {
		return nil, err
	}

	merged := mergeGrangerResults(cached, freshResults)

	raw, err := json.Marshal(merged)
	if err != nil {
		return merged, fmt.Errorf("marshal granger %s/%s: %w", tenantID, service, err)
	}
	if err := c.Set(ctx, GrangerKey(tenantID, service), string(raw), c.cfg.GrangerTTL); err != nil {
		return merged, err
	}
	return merged, nil
}

// LoadAllGranger loads and merges the cached Granger results across every
// service in services, keeping the higher-strength result per pair.
func (c *Client) LoadAllGranger(ctx context.Context, tenantID string, services []string) ([]causal.GrangerResult, error) {
	var all []causal.GrangerResult
	for _, svc := range services {
		perService, err := c.LoadGranger(ctx, tenantID, svc)
		if err != nil {
			return nil, err
		}
		all = mergeGrangerResults(all, perService)
	}
	return all, nil
}

func mergeGrangerResults(base, fresh []causal.GrangerResult) []causal.GrangerResult {
	stored := make(map[string]causal.GrangerResult, len(base)+len(fresh))
	for _, r := range base {
		stored[pairKey(r.CauseMetric, r.EffectMetric)] = r
	}
	for _, r := range fresh {
		pk := pairKey(r.CauseMetric, r.EffectMetric)
		existing, ok := stored[pk]
		if !ok || r.Strength > existing.Strength {
			stored[pk] = r
		}
	}
	merged := make([]causal.GrangerResult, 0, len(stored))
	for _, r := range stored {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Strength > merged[j].Strength
	})
	return merged
}
