// Copyright 2025 James Ross
package analyzer

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/causal"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// runCausality implements spec §4.1 stage 8: Granger pairwise causality
// across the analysis window's richest series, persisted and merged into
// the tenant's rolling history, followed by a metric-level causal graph
// (kept for its topological root-cause view, grounded on
// original_source/engine/analyzer.py building CausalGraph purely as a
// side artifact) and a Bayesian posterior over RCA categories from five
// binary evidence flags.
func (a *Analyzer) runCausality(
	ctx context.Context,
	req rcamodel.AnalyzeRequest,
	seriesValues map[string][]float64,
	anomalies []rcamodel.MetricAnomaly,
	bursts []rcamodel.LogBurst,
	latencies []rcamodel.ServiceLatency,
	propagations []rcamodel.ErrorPropagation,
	hasDeploymentEvent bool,
	r *run,
) ([]causal.GrangerResult, []causal.BayesianScore) {
	selected := selectSeriesByVariance(seriesValues, a.cfg.Analyzer.GrangerMaxSeries, a.cfg.Analyzer.GrangerMinSamples)
	var freshGranger []causal.GrangerResult
	if len(selected) >= 2 {
		freshGranger = a.granger.MultiplePairs(selected)
	}

	if _, err := a.registry.MergeGranger(ctx, req.TenantID, targetService(req), freshGranger); err != nil {
		r.warn("granger history merge failed: %v", err)
	}

	graph := causal.NewGraph(a.cfg.Causal)
	graph.FromGrangerResults(freshGranger)
	if roots := graph.RootCauses(); len(roots) > 0 {
		a.log.Debug("causal graph root metrics", zap.Strings("roots", roots))
	}

	evidence := causal.Evidence{
		HasDeploymentEvent:  hasDeploymentEvent,
		HasMetricSpike:      hasSpike(anomalies),
		HasLogBurst:         len(bursts) > 0,
		HasLatencySpike:     hasLatencySpike(latencies),
		HasErrorPropagation: len(propagations) > 0,
	}
	bayesianScores := a.bayesian.Score(evidence)
	return freshGranger, bayesianScores
}

// selectSeriesByVariance picks up to maxSeries of the highest-variance
// finite-sample series, requiring at least minSamples finite points and a
// strictly positive variance (spec §4.1 stage 8, §4.5).
func selectSeriesByVariance(seriesValues map[string][]float64, maxSeries, minSamples int) map[string][]float64 {
	type candidate struct {
		name     string
		clean    []float64
		variance float64
	}
	var candidates []candidate
	for name, vals := range seriesValues {
		clean := finiteOnly(vals)
		if len(clean) < minSamples {
			continue
		}
		v := stat.Variance(clean, nil)
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		candidates = append(candidates, candidate{name: name, clean: clean, variance: v})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].variance > candidates[j].variance })
	if maxSeries > 0 && len(candidates) > maxSeries {
		candidates = candidates[:maxSeries]
	}
	out := make(map[string][]float64, len(candidates))
	for _, c := range candidates {
		out[c.name] = c.clean
	}
	return out
}

func hasSpike(anomalies []rcamodel.MetricAnomaly) bool {
	for _, a := range anomalies {
		if a.ChangeType == rcamodel.ChangeSpike {
			return true
		}
	}
	return len(anomalies) > 0
}

func hasLatencySpike(latencies []rcamodel.ServiceLatency) bool {
	for _, l := range latencies {
		if l.Severity.Weight() >= rcamodel.SeverityHigh.Weight() {
			return true
		}
	}
	return false
}

func toGrangerResults(in []causal.GrangerResult) []rcamodel.GrangerResult {
	out := make([]rcamodel.GrangerResult, len(in))
	for i, g := range in {
		out[i] = rcamodel.GrangerResult{
			CauseMetric:  g.CauseMetric,
			EffectMetric: g.EffectMetric,
			MaxLag:       g.MaxLag,
			FStatistic:   g.FStatistic,
			PValue:       g.PValue,
			IsCausal:     g.IsCausal,
			Strength:     g.Strength,
		}
	}
	return out
}

func toBayesianScores(in []causal.BayesianScore) []rcamodel.BayesianScore {
	out := make([]rcamodel.BayesianScore, len(in))
	for i, b := range in {
		out[i] = rcamodel.BayesianScore{
			Category:   b.Category,
			Posterior:  b.Posterior,
			Prior:      b.Prior,
			Likelihood: b.Likelihood,
		}
	}
	return out
}
