// Copyright 2025 James Ross
package forecast

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

func forecastCfg() config.Forecast {
	return config.Forecast{
		MinDegradationRate:        0.02,
		EMAAlpha:                  0.3,
		DegradationThreshCritical: 0.3,
		DegradationThreshHigh:     0.15,
		DegradationThreshMedium:   0.05,
		DegradationMinLength:      10,
		TrajectoryMinLength:       10,
		TrajectoryR2Threshold:     0.6,
		TrajectoryRatioThreshold:  0.2,
	}
}

func linSeries(n int, start, step float64) ([]float64, []float64) {
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i) * 10
		vals[i] = start + step*float64(i)
	}
	return ts, vals
}

func TestForecastProjectsBreachWithinHorizon(t *testing.T) {
	f := NewTrajectoryForecaster(forecastCfg())
	ts, vals := linSeries(20, 10, 5)
	got := f.Forecast("mem_used_pct", ts, vals, 200, 120)
	if got == nil {
		t.Fatal("expected a forecast for a clean rising trend")
	}
	if got.TimeToThresholdSeconds == nil {
		t.Fatal("expected a time-to-threshold estimate")
	}
	if got.Severity != rcamodel.SeverityCritical && got.Severity != rcamodel.SeverityHigh {
		t.Fatalf("expected an imminent-breach severity, got %s", got.Severity)
	}
}

func TestForecastReturnsNilBelowMinLength(t *testing.T) {
	f := NewTrajectoryForecaster(forecastCfg())
	ts, vals := linSeries(3, 10, 5)
	if got := f.Forecast("mem_used_pct", ts, vals, 200, 120); got != nil {
		t.Fatalf("expected nil below min length, got %+v", got)
	}
}

func TestForecastReturnsNilForFlatSeries(t *testing.T) {
	f := NewTrajectoryForecaster(forecastCfg())
	ts := make([]float64, 15)
	vals := make([]float64, 15)
	for i := range vals {
		ts[i] = float64(i) * 10
		vals[i] = 50
	}
	if got := f.Forecast("mem_used_pct", ts, vals, 200, 120); got != nil {
		t.Fatalf("expected nil for a flat series, got %+v", got)
	}
}

func TestDegradationAnalyzeFlagsAcceleratingTrend(t *testing.T) {
	a := NewDegradationAnalyzer(forecastCfg())
	n := 30
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i) * 10
		// quadratic growth: rate of change itself increases
		vals[i] = 10 + 0.02*float64(i*i)
	}
	got := a.Analyze("error_rate", ts, vals)
	if got == nil {
		t.Fatal("expected a degradation signal for an accelerating upward trend")
	}
	if got.Trend != "degrading" {
		t.Fatalf("expected degrading trend, got %s", got.Trend)
	}
	if !got.IsAccelerating {
		t.Fatal("expected is_accelerating to be true for quadratic growth")
	}
}

func TestDegradationAnalyzeReturnsNilBelowMinLength(t *testing.T) {
	a := NewDegradationAnalyzer(forecastCfg())
	ts, vals := linSeries(3, 10, 1)
	if got := a.Analyze("error_rate", ts, vals); got != nil {
		t.Fatalf("expected nil below min length, got %+v", got)
	}
}

func TestDegradationAnalyzeReturnsNilForFlatSeries(t *testing.T) {
	a := NewDegradationAnalyzer(forecastCfg())
	n := 20
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i) * 10
		vals[i] = 42
	}
	if got := a.Analyze("error_rate", ts, vals); got != nil {
		t.Fatalf("expected nil for a flat series, got %+v", got)
	}
}

func TestDegradationAnalyzeRecoveringTrend(t *testing.T) {
	a := NewDegradationAnalyzer(forecastCfg())
	ts, vals := linSeries(20, 100, -3)
	got := a.Analyze("queue_depth", ts, vals)
	if got == nil {
		t.Fatal("expected a degradation signal for a clean downward trend")
	}
	if got.Trend != "recovering" {
		t.Fatalf("expected recovering trend, got %s", got.Trend)
	}
}
