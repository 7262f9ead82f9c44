// Copyright 2025 James Ross
package traces

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/topology"
)

func defaultCfg() config.Traces {
	return config.Traces{
		ErrorRateThreshold:    0.05,
		LatencyP99Critical:    5000,
		LatencyP99High:        2000,
		LatencyP99Medium:      500,
		LatencyErrorCritical:  0.25,
		LatencyErrorHigh:      0.10,
		LatencyErrorMedium:    0.02,
		ApdexPoor:             0.5,
		ApdexMarginal:         0.7,
		ApdexTMs:              500,
	}
}

func TestLatencyAnalyzeFlagsSlowErroringService(t *testing.T) {
	a := NewLatencyAnalyzer(defaultCfg())
	var traces []Trace
	for i := 0; i < 20; i++ {
		traces = append(traces, Trace{
			Service: "checkout", Operation: "submit", DurationMs: 6000,
			Spans: []Span{{HasError: true}},
		})
	}
	results := a.Analyze(traces)
	if len(results) != 1 {
		t.Fatalf("expected one finding, got %d", len(results))
	}
	if results[0].Severity != "critical" {
		t.Fatalf("expected critical severity, got %s", results[0].Severity)
	}
}

func TestLatencyAnalyzeDropsLowSeverity(t *testing.T) {
	a := NewLatencyAnalyzer(defaultCfg())
	var traces []Trace
	for i := 0; i < 20; i++ {
		traces = append(traces, Trace{Service: "checkout", Operation: "submit", DurationMs: 50})
	}
	results := a.Analyze(traces)
	if len(results) != 0 {
		t.Fatalf("expected fast error-free service to be dropped, got %v", results)
	}
}

func TestPropagationDetectUsesBlastRadius(t *testing.T) {
	d := NewPropagationDetector(defaultCfg())
	var traces []Trace
	for i := 0; i < 10; i++ {
		traces = append(traces, Trace{Service: "checkout", Spans: []Span{{HasError: true}}})
	}
	calls := []topology.CallEdge{
		{Caller: "checkout", Callee: "payments"},
		{Caller: "checkout", Callee: "inventory"},
	}
	results := d.Detect(traces, calls, 6)
	if len(results) != 1 {
		t.Fatalf("expected one propagation finding, got %d", len(results))
	}
	if len(results[0].AffectedServices) != 2 {
		t.Fatalf("expected 2 affected downstream services, got %v", results[0].AffectedServices)
	}
}

func TestPropagationDetectNoResultsBelowThreshold(t *testing.T) {
	d := NewPropagationDetector(defaultCfg())
	traces := []Trace{{Service: "checkout"}}
	results := d.Detect(traces, nil, 6)
	if results != nil {
		t.Fatalf("expected nil with no errors, got %v", results)
	}
}
