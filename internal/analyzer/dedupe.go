// Copyright 2025 James Ross
package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/beobservant/becertain/internal/rcamodel"
)

// dedupeAnomalies collapses anomalies keyed by (metric, rounded timestamp,
// change type) to the single strongest reading, preferring higher
// severity then larger |z-score| (spec §4.1 stage 5).
func dedupeAnomalies(in []rcamodel.MetricAnomaly) []rcamodel.MetricAnomaly {
	best := map[string]rcamodel.MetricAnomaly{}
	var order []string
	for _, a := range in {
		key := fmt.Sprintf("%s|%d|%s", a.MetricName, int64(math.Round(a.Timestamp)), a.ChangeType)
		cur, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = a
			continue
		}
		if betterAnomaly(a, cur) {
			best[key] = a
		}
	}
	out := make([]rcamodel.MetricAnomaly, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func betterAnomaly(a, b rcamodel.MetricAnomaly) bool {
	if a.Severity.Weight() != b.Severity.Weight() {
		return a.Severity.Weight() > b.Severity.Weight()
	}
	return math.Abs(a.ZScore) > math.Abs(b.ZScore)
}

// dedupeChangePoints collapses change points keyed by (metric, rounded
// timestamp) to the largest-magnitude reading.
func dedupeChangePoints(in []rcamodel.ChangePoint) []rcamodel.ChangePoint {
	best := map[string]rcamodel.ChangePoint{}
	var order []string
	for _, c := range in {
		key := fmt.Sprintf("%s|%d", c.MetricName, int64(math.Round(c.Timestamp)))
		cur, ok := best[key]
		if !ok {
			order = append(order, key)
			best[key] = c
			continue
		}
		if c.Magnitude > cur.Magnitude {
			best[key] = c
		}
	}
	out := make([]rcamodel.ChangePoint, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// dedupeForecasts keeps the single highest-severity, then fastest-moving,
// trajectory forecast per metric.
func dedupeForecasts(in []rcamodel.TrajectoryForecast) []rcamodel.TrajectoryForecast {
	best := map[string]rcamodel.TrajectoryForecast{}
	var order []string
	for _, f := range in {
		cur, ok := best[f.MetricName]
		if !ok {
			order = append(order, f.MetricName)
			best[f.MetricName] = f
			continue
		}
		if f.Severity.Weight() > cur.Severity.Weight() ||
			(f.Severity.Weight() == cur.Severity.Weight() && math.Abs(f.SlopePerSecond) > math.Abs(cur.SlopePerSecond)) {
			best[f.MetricName] = f
		}
	}
	out := make([]rcamodel.TrajectoryForecast, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// dedupeDegradations keeps the single highest-severity, then fastest,
// degradation signal per metric.
func dedupeDegradations(in []rcamodel.DegradationSignal) []rcamodel.DegradationSignal {
	best := map[string]rcamodel.DegradationSignal{}
	var order []string
	for _, d := range in {
		cur, ok := best[d.MetricName]
		if !ok {
			order = append(order, d.MetricName)
			best[d.MetricName] = d
			continue
		}
		if d.Severity.Weight() > cur.Severity.Weight() ||
			(d.Severity.Weight() == cur.Severity.Weight() && math.Abs(d.DegradationRate) > math.Abs(cur.DegradationRate)) {
			best[d.MetricName] = d
		}
	}
	out := make([]rcamodel.DegradationSignal, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func capMetricAnomalies(in []rcamodel.MetricAnomaly, max int, r *run) []rcamodel.MetricAnomaly {
	if max <= 0 || len(in) <= max {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Severity.Weight() != in[j].Severity.Weight() {
			return in[i].Severity.Weight() > in[j].Severity.Weight()
		}
		return math.Abs(in[i].ZScore) > math.Abs(in[j].ZScore)
	})
	r.warn("truncated metric anomalies from %d to %d", len(in), max)
	return in[:max]
}

func capChangePoints(in []rcamodel.ChangePoint, max int, r *run) []rcamodel.ChangePoint {
	if max <= 0 || len(in) <= max {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Magnitude > in[j].Magnitude })
	r.warn("truncated change points from %d to %d", len(in), max)
	return in[:max]
}

func capClusters(in []rcamodel.AnomalyCluster, max int, r *run) []rcamodel.AnomalyCluster {
	if max <= 0 || len(in) <= max {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Size > in[j].Size })
	r.warn("truncated anomaly clusters from %d to %d", len(in), max)
	return in[:max]
}

func capGranger(in []rcamodel.GrangerResult, max int, r *run) []rcamodel.GrangerResult {
	if max <= 0 || len(in) <= max {
		return in
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Strength > in[j].Strength })
	r.warn("truncated granger pairs from %d to %d", len(in), max)
	return in[:max]
}
