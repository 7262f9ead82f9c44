// Copyright 2025 James Ross
package correlation

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

func correlationCfg() config.Correlation {
	return config.Correlation{
		MaxLagSeconds:   120,
		WindowSeconds:   60,
		MetricUnitScore: 0.25,
		LogUnitScore:    0.35,
		TraceUnitScore:  0.1,
		TraceScoreCap:   0.35,
		ScoreMax:        1.0,
		MinSignalCount:  2,
	}
}

func TestCorrelateGroupsOverlappingSignals(t *testing.T) {
	c := NewCorrelator(correlationCfg())
	anomalies := []rcamodel.MetricAnomaly{
		{MetricName: "latency_p99", Timestamp: 1000},
		{MetricName: "error_rate", Timestamp: 1010},
	}
	bursts := []rcamodel.LogBurst{
		{Window: rcamodel.Window{Start: 990, End: 1020}},
	}
	events := c.Correlate(anomalies, bursts, nil)
	if len(events) != 1 {
		t.Fatalf("expected one correlated event, got %d", len(events))
	}
	if events[0].SignalCount != 3 {
		t.Fatalf("expected signal count 3, got %d", events[0].SignalCount)
	}
	if events[0].Confidence <= 0 {
		t.Fatalf("expected positive confidence, got %v", events[0].Confidence)
	}
}

func TestCorrelateDropsIsolatedSignal(t *testing.T) {
	c := NewCorrelator(correlationCfg())
	anomalies := []rcamodel.MetricAnomaly{
		{MetricName: "latency_p99", Timestamp: 1000},
	}
	events := c.Correlate(anomalies, nil, nil)
	if events != nil {
		t.Fatalf("expected no events for a single isolated signal, got %v", events)
	}
}

func TestCorrelateDoesNotDoubleCountAnchors(t *testing.T) {
	c := NewCorrelator(correlationCfg())
	anomalies := []rcamodel.MetricAnomaly{
		{MetricName: "a", Timestamp: 1000},
		{MetricName: "b", Timestamp: 1005},
		{MetricName: "c", Timestamp: 1900},
		{MetricName: "d", Timestamp: 1905},
	}
	events := c.Correlate(anomalies, nil, nil)
	total := 0
	for _, e := range events {
		total += len(e.MetricAnomalies)
	}
	if total != len(anomalies) {
		t.Fatalf("expected every anomaly counted exactly once across events, got %d of %d", total, len(anomalies))
	}
}

func TestLinkLogsToMetricsOrdersByStrength(t *testing.T) {
	l := NewSignalLinker(correlationCfg())
	anomalies := []rcamodel.MetricAnomaly{
		{MetricName: "error_rate", Timestamp: 1100},
	}
	bursts := []rcamodel.LogBurst{
		{Window: rcamodel.Window{Start: 1000}},
		{Window: rcamodel.Window{Start: 1090}},
	}
	links := l.LinkLogsToMetrics(anomalies, bursts, []string{"auth-svc", "checkout-svc"})
	if len(links) != 2 {
		t.Fatalf("expected two links, got %d", len(links))
	}
	if links[0].LogStream != "checkout-svc" {
		t.Fatalf("expected the closer burst (lower lag, higher strength) first, got %s", links[0].LogStream)
	}
	if links[0].Strength <= links[1].Strength {
		t.Fatalf("expected descending strength order, got %v then %v", links[0].Strength, links[1].Strength)
	}
}

func TestLinkLogsToMetricsIgnoresOutOfWindow(t *testing.T) {
	l := NewSignalLinker(correlationCfg())
	anomalies := []rcamodel.MetricAnomaly{
		{MetricName: "error_rate", Timestamp: 2000},
	}
	bursts := []rcamodel.LogBurst{
		{Window: rcamodel.Window{Start: 500}},
	}
	links := l.LinkLogsToMetrics(anomalies, bursts, []string{"auth-svc"})
	if links != nil {
		t.Fatalf("expected no links beyond max lag, got %v", links)
	}
}
