// Copyright 2025 James Ross
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/beobservant/becertain/internal/rcamodel"
)

// LoadBaseline returns the persisted baseline for tenantID/metricName, or
// nil if none is stored (spec §4.6).
func (c *Client) LoadBaseline(ctx context.Context, tenantID, metricName string) (*rcamodel.Baseline, error) {
	raw, ok, err := c.Get(ctx, BaselineKey(tenantID, metricName))
	if err != nil || !ok {
		return nil, err
	}
	var b rcamodel.Baseline
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("unmarshal baseline %s/%s: %w", tenantID, metricName, err)
	}
	return &b, nil
}

// SaveBaseline persists baseline for tenantID/metricName under BaselineTTL.
func (c *Client) SaveBaseline(ctx context.Context, tenantID, metricName string, baseline rcamodel.Baseline) error {
	raw, err := json.Marshal(baseline)
	if err != nil {
		return fmt.Errorf("marshal baseline %s/%s: %w", tenantID, metricName, err)
	}
	return c.Set(ctx, BaselineKey(tenantID, metricName), string(raw), c.cfg.BaselineTTL)
}

// BlendBaseline merges a freshly computed baseline with whatever is
// currently cached for this metric, weighted by StoreBlendAlpha towards the
// fresh value, so a single noisy window doesn't overwrite weeks of learned
// history (spec §4.2 "Baseline" + §4.6 store blend). The cached baseline is
// only trusted once it has accumulated at least 20 samples; before that the
// fresh computation wins outright. Returns the blended (or fresh) result
// after persisting it.
func (c *Client) BlendBaseline(ctx context.Context, tenantID, metricName string, fresh rcamodel.Baseline, alpha float64) (rcamodel.Baseline, error) {
	cached, err := c.LoadBaseline(ctx, tenantID, metricName)
	if err != nil {
		return rcamodel.Baseline{}, err
	}

	result := fresh
	if cached != nil && cached.SampleCount >= 20 {
		a := 1.0 - alpha
		blendedMean := a*cached.Mean + alpha*fresh.Mean
		blendedStd := math.Max(a*cached.Std+alpha*fresh.Std, 1e-9)
		seasonal := fresh.SeasonalMean
		if seasonal == nil {
			seasonal = cached.SeasonalMean
		}
		result = rcamodel.Baseline{
			Mean:         round6(blendedMean),
			Std:          round6(blendedStd),
			Lower:        round6(blendedMean - 3*blendedStd),
			Upper:        round6(blendedMean + 3*blendedStd),
			SeasonalMean: seasonal,
			SampleCount:  cached.SampleCount + fresh.SampleCount,
		}
	}

	if err := c.SaveBaseline(ctx, tenantID, metricName, result); err != nil {
		return rcamodel.Baseline{}, err
	}
	return result, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
