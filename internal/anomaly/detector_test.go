// Copyright 2025 James Ross
package anomaly

import (
	"math"
	"testing"

	"github.com/beobservant/becertain/internal/config"
)

func defaultCfg() config.AnomalyDetector {
	return config.AnomalyDetector{
		ZScoreThreshold:      3.0,
		MADThreshold:         4.0,
		CUSUMThreshold:       6.0,
		MinSamples:           8,
		MinSensitivity:       0.1,
		PercentileLow:        5,
		PercentileHigh:       95,
		MADScale:             0.6745,
		CUSUMK:               0.6,
		DriftSlopeThreshold:  0.15,
		ContaminationMin:     0.01,
		ContaminationMax:     0.5,
		IsoWeight:            0.10,
		ZThresholds: []config.ScoreTier{
			{Threshold: 4.5, Score: 0.5},
			{Threshold: 3.5, Score: 0.35},
			{Threshold: 3.0, Score: 0.2},
		},
		MADThresholds: []config.ScoreTier{
			{Threshold: 6.0, Score: 0.35},
			{Threshold: 4.5, Score: 0.25},
			{Threshold: 3.5, Score: 0.15},
		},
	}
}

func TestDetectFlagsSpike(t *testing.T) {
	d := New(defaultCfg())
	n := 30
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i)
		vals[i] = 10.0
	}
	vals[n-1] = 500.0 // obvious spike

	anomalies := d.Detect("cpu_usage", ts, vals, 3.5)
	if len(anomalies) == 0 {
		t.Fatal("expected at least one anomaly for an obvious spike")
	}
	last := anomalies[len(anomalies)-1]
	if last.ChangeType != "spike" {
		t.Fatalf("expected spike change type, got %s", last.ChangeType)
	}
	if last.Value != 500.0 {
		t.Fatalf("expected flagged value 500.0, got %v", last.Value)
	}
}

func TestDetectReturnsNoneBelowMinSamples(t *testing.T) {
	d := New(defaultCfg())
	anomalies := d.Detect("cpu_usage", []float64{1, 2, 3}, []float64{1, 2, 3}, 3.5)
	if anomalies != nil {
		t.Fatalf("expected nil for under-min-samples series, got %v", anomalies)
	}
}

func TestDetectHandlesZeroVariance(t *testing.T) {
	d := New(defaultCfg())
	n := 20
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := range vals {
		ts[i] = float64(i)
		vals[i] = 42.0
	}
	anomalies := d.Detect("flat_metric", ts, vals, 3.5)
	if anomalies != nil {
		t.Fatalf("expected no anomalies on a flat series, got %v", anomalies)
	}
}

func TestCusumFlagsDetectsSustainedShift(t *testing.T) {
	n := 40
	values := make([]float64, n)
	for i := 0; i < n/2; i++ {
		values[i] = 10.0
	}
	for i := n / 2; i < n; i++ {
		values[i] = 20.0
	}
	mean, sigma := 15.0, 5.0
	flags := cusumFlags(values, mean, sigma, 0.6, 6.0)
	found := false
	for _, f := range flags {
		if f {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected cusum to flag the sustained level shift")
	}
}

func TestMadScoresZeroMAD(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5}
	scores := madScores(values, 0.6745)
	for _, s := range scores {
		if s != 0 {
			t.Fatalf("expected zero MAD scores for constant series, got %v", s)
		}
	}
}

func TestSeverityMonotonic(t *testing.T) {
	d := New(defaultCfg())
	low := d.severity(3.1, 0, false)
	high := d.severity(5.0, 6.5, true)
	if low.Weight() >= high.Weight() {
		t.Fatalf("expected low severity weight < high, got low=%s high=%s", low, high)
	}
}

func TestRoundHelper(t *testing.T) {
	if got := round(1.23456, 3); math.Abs(got-1.235) > 1e-9 {
		t.Fatalf("expected 1.235, got %v", got)
	}
}
