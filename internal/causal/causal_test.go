// Copyright 2025 James Ross
package causal

import (
	"math"
	"testing"

	"github.com/beobservant/becertain/internal/config"
)

func causalCfg() config.Causal {
	return config.Causal{
		GraphMaxDepth:              5,
		RoundPrecision:             4,
		GrangerMaxLag:              1,
		GrangerPThreshold:          0.05,
		GrangerStrengthScale:       10.0,
		BayesianDefaultFeatureProb: 0.5,
		BayesianPriors: map[string]float64{
			"deployment": 0.35, "resource_exhaustion": 0.20, "dependency_failure": 0.20,
			"traffic_surge": 0.10, "error_propagation": 0.10, "slo_burn": 0.03, "unknown": 0.02,
		},
		BayesianLikelihoods: map[string]map[string]float64{
			"deployment":          {"has_deployment_event": 0.95, "has_metric_spike": 0.70, "has_log_burst": 0.60, "has_latency_spike": 0.50, "has_error_propagation": 0.40},
			"resource_exhaustion": {"has_deployment_event": 0.15, "has_metric_spike": 0.90, "has_log_burst": 0.50, "has_latency_spike": 0.70, "has_error_propagation": 0.30},
			"dependency_failure":  {"has_deployment_event": 0.10, "has_metric_spike": 0.50, "has_log_burst": 0.70, "has_latency_spike": 0.95, "has_error_propagation": 0.80},
			"traffic_surge":       {"has_deployment_event": 0.05, "has_metric_spike": 0.95, "has_log_burst": 0.60, "has_latency_spike": 0.60, "has_error_propagation": 0.20},
			"error_propagation":   {"has_deployment_event": 0.10, "has_metric_spike": 0.60, "has_log_burst": 0.80, "has_latency_spike": 0.85, "has_error_propagation": 0.99},
			"slo_burn":            {"has_deployment_event": 0.20, "has_metric_spike": 0.80, "has_log_burst": 0.50, "has_latency_spike": 0.60, "has_error_propagation": 0.50},
			"unknown":             {"has_deployment_event": 0.05, "has_metric_spike": 0.30, "has_log_burst": 0.30, "has_latency_spike": 0.30, "has_error_propagation": 0.10},
		},
	}
}

func TestPairAnalysisDetectsLaggedCause(t *testing.T) {
	g := NewGrangerAnalyzer(causalCfg())
	cause := make([]float64, 15)
	effect := make([]float64, 15)
	for i := range cause {
		cause[i] = float64(i)
	}
	effect[0], effect[1] = 0, 0
	for i := 2; i < 15; i++ {
		effect[i] = float64(i - 2)
	}

	res := g.PairAnalysis("c", cause, "e", effect)
	if res == nil {
		t.Fatal("expected a Granger result for a clearly lagged relationship")
	}
	if res.CauseMetric != "c" || res.EffectMetric != "e" {
		t.Fatalf("unexpected metric labels: %+v", res)
	}
}

func TestPairAnalysisReturnsNilBelowMinLength(t *testing.T) {
	g := NewGrangerAnalyzer(causalCfg())
	cause := []float64{1, 2, 3}
	effect := []float64{1, 2, 3}
	if res := g.PairAnalysis("c", cause, "e", effect); res != nil {
		t.Fatalf("expected nil for too-short series, got %+v", res)
	}
}

func TestMultiplePairsOnlyKeepsCausal(t *testing.T) {
	g := NewGrangerAnalyzer(causalCfg())
	cause := make([]float64, 15)
	effect := make([]float64, 15)
	flat := make([]float64, 15)
	for i := range cause {
		cause[i] = float64(i)
		flat[i] = 5
	}
	effect[0], effect[1] = 0, 0
	for i := 2; i < 15; i++ {
		effect[i] = float64(i - 2)
	}

	results := g.MultiplePairs(map[string][]float64{"c": cause, "e": effect, "flat": flat})
	for _, r := range results {
		if !r.IsCausal {
			t.Fatalf("MultiplePairs returned a non-causal result: %+v", r)
		}
	}
}

func TestBayesianScoreSumsToOne(t *testing.T) {
	b := NewBayesianScorer(causalCfg())
	results := b.Score(Evidence{HasDeploymentEvent: true})
	var total float64
	for _, r := range results {
		total += r.Posterior
	}
	if math.Abs(total-1.0) > 1e-6 {
		t.Fatalf("expected posteriors to sum to 1, got %v", total)
	}
	if results[0].Category != "deployment" {
		t.Fatalf("expected deployment to top the posterior given a deployment event, got %s", results[0].Category)
	}
}

func TestGraphTopologicalSortAndRootCauses(t *testing.T) {
	g := NewGraph(causalCfg())
	g.AddEdge("a", "b", 0.5, 0)
	g.AddEdge("b", "c", 0.4, 0)

	order := g.TopologicalSort()
	if len(order) == 0 || order[0] != "a" {
		t.Fatalf("expected topological order to start with a, got %v", order)
	}
	roots := g.RootCauses()
	if len(roots) != 1 || roots[0] != "a" {
		t.Fatalf("expected root causes [a], got %v", roots)
	}
}

func TestGraphSimulateIntervention(t *testing.T) {
	g := NewGraph(causalCfg())
	g.AddEdge("a", "b", 0.5, 0)
	g.AddEdge("b", "c", 0.4, 0)

	result := g.SimulateIntervention("a", 2)
	if _, ok := result.ExpectedEffectOn["b"]; !ok {
		t.Fatalf("expected b in expected_effect_on, got %+v", result.ExpectedEffectOn)
	}
}

func TestGraphFindCommonCauses(t *testing.T) {
	g := NewGraph(causalCfg())
	g.AddEdge("a", "b", 0.5, 0)
	g.AddEdge("a", "c", 0.4, 0)

	common := g.FindCommonCauses("b", "c")
	if len(common) != 1 || common[0] != "a" {
		t.Fatalf("expected common causes [a], got %v", common)
	}
}
