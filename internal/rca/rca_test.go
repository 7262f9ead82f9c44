// Copyright 2025 James Ross
package rca

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/topology"
)

func rcaCfg() config.RCA {
	return config.RCA{
		WindowSeconds:            300,
		Weights:                  map[string]float64{"metrics": 0.25, "logs": 0.40, "traces": 0.35},
		DeployScoreCutoff:        0.65,
		ErrorPropagationMax:      0.95,
		MinConfidenceDisplay:     0.12,
		EventConfidenceThreshold: 0.3,
		DeployWindowSeconds:      300,
		ScoreCap:                 0.99,
		SliceLimit:               2,
		SeverityWeightThreshold:  3,
		LogPatternScore:          0.6,
	}
}

func TestGenerateProducesDeploymentHypothesis(t *testing.T) {
	g := NewGenerator(rcaCfg())
	graph := topology.NewDependencyGraph()

	events := []rcamodel.CorrelatedEvent{
		{
			Window:          rcamodel.Window{Start: 1000, End: 1060},
			MetricAnomalies: []rcamodel.MetricAnomaly{{MetricName: "cpu_usage", Timestamp: 1005}},
			LogBursts:       []rcamodel.LogBurst{{}},
			Confidence:      0.8,
		},
	}
	deployments := []rcamodel.DeploymentEvent{
		{Service: "checkout", Timestamp: 1000, Version: "1.2.3"},
	}

	causes := g.Generate(nil, nil, events, graph, deployments)
	if len(causes) == 0 {
		t.Fatal("expected at least one root cause")
	}
	if causes[0].Category != rcamodel.CategoryDeployment {
		t.Fatalf("expected deployment category given an adjacent deploy, got %s", causes[0].Category)
	}
	if causes[0].Deployment == nil {
		t.Fatal("expected the nearby deployment to be attached")
	}
}

func TestGenerateKeepsTopCauseWhenAllBelowThreshold(t *testing.T) {
	// The single event scores 0.25 (one metric anomaly at weight 0.25), so a
	// 0.5 display floor leaves every hypothesis below it.
	cfg := rcaCfg()
	cfg.MinConfidenceDisplay = 0.5
	g := NewGenerator(cfg)
	events := []rcamodel.CorrelatedEvent{
		{
			Window:          rcamodel.Window{Start: 1000, End: 1010},
			MetricAnomalies: []rcamodel.MetricAnomaly{{MetricName: "queue_depth", Timestamp: 1005}},
			Confidence:      0.31,
		},
	}
	causes := g.Generate(nil, nil, events, nil, nil)
	if len(causes) != 1 {
		t.Fatalf("expected exactly one low-confidence cause surfaced, got %d", len(causes))
	}
}

func TestGenerateErrorPropagationUsesUpstreamRoots(t *testing.T) {
	g := NewGenerator(rcaCfg())
	graph := topology.NewDependencyGraph()
	graph.AddCall("gateway", "checkout")
	graph.AddCall("checkout", "payments")

	propagation := []rcamodel.ErrorPropagation{
		{SourceService: "payments", AffectedServices: []string{"checkout"}, ErrorRate: 0.4},
	}
	causes := g.Generate(nil, propagation, nil, graph, nil)
	if len(causes) != 1 {
		t.Fatalf("expected one error-propagation cause, got %d", len(causes))
	}
	if causes[0].Category != rcamodel.CategoryErrorPropagation {
		t.Fatalf("expected error_propagation category, got %s", causes[0].Category)
	}
}

func TestCategorizeResourceExhaustionOnMemoryMetric(t *testing.T) {
	event := rcamodel.CorrelatedEvent{
		MetricAnomalies: []rcamodel.MetricAnomaly{{MetricName: "mem_used_pct"}},
	}
	cat := categorize(rcaCfg(), event, nil)
	if cat != rcamodel.CategoryResourceExhaustion {
		t.Fatalf("expected resource_exhaustion, got %s", cat)
	}
}
