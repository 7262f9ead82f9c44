// Copyright 2025 James Ross
package dedup

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// AnomalyGroup clusters near-duplicate anomalies behind a single
// representative, so the orchestrator doesn't emit one root cause per
// repeated blip (spec §4.8 dedup/suppression gate).
type AnomalyGroup struct {
	Representative rcamodel.MetricAnomaly
	Members        []rcamodel.MetricAnomaly
	Count          int
}

// Grouper merges anomalies that occur close together in time (and,
// optionally, against the same metric) into a single group led by the
// most severe member.
type Grouper struct {
	cfg config.Dedup
}

func NewGrouper(cfg config.Dedup) *Grouper {
	return &Grouper{cfg: cfg}
}

// GroupMetricAnomalies walks anomalies in timestamp order, growing the
// current group while the next anomaly stays within TimeWindow of the
// group's representative and (when byMetric is set) shares its metric
// name; otherwise it starts a new group.
func (g *Grouper) GroupMetricAnomalies(anomalies []rcamodel.MetricAnomaly, byMetric bool) []AnomalyGroup {
	if len(anomalies) == 0 {
		return nil
	}

	window := g.cfg.TimeWindow
	if window <= 0 {
		window = 120
	}

	sorted := make([]rcamodel.MetricAnomaly, len(anomalies))
	copy(sorted, anomalies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var groups []AnomalyGroup
	current := AnomalyGroup{Representative: sorted[0], Members: []rcamodel.MetricAnomaly{sorted[0]}, Count: 1}

	for _, a := range sorted[1:] {
		rep := current.Representative
		sameMetric := !byMetric || a.MetricName == rep.MetricName
		closeInTime := absFloat(a.Timestamp-rep.Timestamp) <= window

		if sameMetric && closeInTime {
			current.Members = append(current.Members, a)
			current.Count++
			if a.Severity.Weight() > rep.Severity.Weight() {
				current.Representative = a
			}
		} else {
			groups = append(groups, current)
			current = AnomalyGroup{Representative: a, Members: []rcamodel.MetricAnomaly{a}, Count: 1}
		}
	}
	groups = append(groups, current)
	return groups
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
