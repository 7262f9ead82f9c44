// Copyright 2025 James Ross
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beobservant/becertain/internal/rcamodel"
)

type weightsPayload struct {
	Weights     map[string]float64 `json:"weights"`
	UpdateCount int                `json:"update_count"`
}

// LoadWeights returns the persisted adaptive signal weights for tenantID,
// or nil if nothing has been stored yet.
func (c *Client) LoadWeights(ctx context.Context, tenantID string) (*rcamodel.TenantSignalWeights, error) {
	raw, ok, err := c.Get(ctx, WeightsKey(tenantID))
	if err != nil || !ok {
		return nil, err
	}
	var p weightsPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal weights %s: %w", tenantID, err)
	}
	return &rcamodel.TenantSignalWeights{
		Metrics:     p.Weights["metrics"],
		Logs:        p.Weights["logs"],
		Traces:      p.Weights["traces"],
		UpdateCount: p.UpdateCount,
	}, nil
}

// SaveWeights persists w for tenantID under WeightsTTL.
func (c *Client) SaveWeights(ctx context.Context, tenantID string, w rcamodel.TenantSignalWeights) error {
	payload := weightsPayload{
		Weights: map[string]float64{
			"metrics": w.Metrics,
			"logs":    w.Logs,
			"traces":  w.Traces,
		},
		UpdateCount: w.UpdateCount,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal weights %s: %w", tenantID, err)
	}
	return c.Set(ctx, WeightsKey(tenantID), string(raw), c.cfg.WeightsTTL)
}

// DeleteWeights removes any stored weights state for tenantID.
func (c *Client) DeleteWeights(ctx context.Context, tenantID string) error {
	return c.Delete(ctx, WeightsKey(tenantID))
}
