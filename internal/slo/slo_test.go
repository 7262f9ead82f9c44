// Copyright 2025 James Ross
package slo

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
)

func defaultCfg() config.SLO {
	return config.SLO{
		BurnWindows: []config.SLOBurnWindow{
			{Label: "1h", Seconds: 3600, Threshold: 14.4, Severity: "critical"},
			{Label: "6h", Seconds: 21600, Threshold: 6.0, Severity: "high"},
			{Label: "1d", Seconds: 86400, Threshold: 3.0, Severity: "medium"},
			{Label: "3d", Seconds: 259200, Threshold: 1.0, Severity: "low"},
		},
		MonthMinutes: 30 * 24 * 60,
	}
}

func TestEvaluateFlagsCriticalBurn(t *testing.T) {
	e := NewBurnEvaluator(defaultCfg())
	errorCounts := make([]float64, 40)
	totalCounts := make([]float64, 40)
	ts := make([]float64, 40)
	// 2% errors against a 0.1% allowance is a burn rate of 20, above the
	// 1h window's 14.4 threshold (1 error per 100 would only reach 10).
	for i := range errorCounts {
		errorCounts[i] = 2
		totalCounts[i] = 100
		ts[i] = float64(i) * (3600.0 / 40)
	}
	alerts := e.Evaluate("checkout", errorCounts, totalCounts, ts, 0.999)
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	if alerts[0].Severity != "critical" {
		t.Fatalf("expected critical severity, got %s", alerts[0].Severity)
	}
	if alerts[0].BurnRate < 14.4 {
		t.Fatalf("expected burn rate >= 14.4, got %v", alerts[0].BurnRate)
	}
}

func TestEvaluateNoAlertWithNoErrors(t *testing.T) {
	e := NewBurnEvaluator(defaultCfg())
	errorCounts := []float64{0, 0, 0}
	totalCounts := []float64{100, 100, 100}
	ts := []float64{0, 1800, 3600}
	alerts := e.Evaluate("checkout", errorCounts, totalCounts, ts, 0.999)
	if alerts != nil {
		t.Fatalf("expected no alerts with zero errors, got %v", alerts)
	}
}

func TestRemainingBudgetOnTrack(t *testing.T) {
	b := NewBudgetTracker(30 * 24 * 60)
	status := b.RemainingBudget("checkout", []float64{0}, []float64{1000}, 0.999)
	if !status.OnTrack {
		t.Fatal("expected on-track budget with zero errors")
	}
}

func TestRemainingBudgetZeroTotal(t *testing.T) {
	b := NewBudgetTracker(30 * 24 * 60)
	status := b.RemainingBudget("checkout", nil, nil, 0.999)
	if status.CurrentAvailability != 1.0 {
		t.Fatalf("expected full availability with no traffic, got %v", status.CurrentAvailability)
	}
}
