// Copyright 2025 James Ross
package correlation

import (
	"math"
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Correlator groups metric anomalies and log bursts that fall within the
// same sliding time window into corroborated events (spec §3
// CorrelatedEvent, §4.5). Service latency rows are attached whole to every
// window that holds at least one metric anomaly or log burst; their own
// windows and service names are not checked.
type Correlator struct {
	cfg config.Correlation
}

func NewCorrelator(cfg config.Correlation) *Correlator {
	return &Correlator{cfg: cfg}
}

// Correlate anchors a window around every anomaly timestamp and burst
// start, in chronological order, skipping anchors already absorbed by an
// earlier window. A window only becomes an event once at least
// MinSignalCount signals fall inside it. Events are returned most-confident
// first.
func (c *Correlator) Correlate(
	metricAnomalies []rcamodel.MetricAnomaly,
	logBursts []rcamodel.LogBurst,
	serviceLatencies []rcamodel.ServiceLatency,
) []rcamodel.CorrelatedEvent {
	window := c.cfg.WindowSeconds
	if window <= 0 {
		window = 60
	}

	anchors := make([]float64, 0, len(metricAnomalies)+len(logBursts))
	for _, a := range metricAnomalies {
		anchors = append(anchors, a.Timestamp)
	}
	for _, b := range logBursts {
		anchors = append(anchors, b.Window.Start)
	}
	if len(anchors) == 0 {
		return nil
	}
	sort.Float64s(anchors)

	used := make(map[float64]bool, len(anchors))
	var events []rcamodel.CorrelatedEvent

	for _, anchor := range anchors {
		if used[anchor] {
			continue
		}

		wStart := anchor - window
		wEnd := anchor + window

		var ma []rcamodel.MetricAnomaly
		for _, a := range metricAnomalies {
			if a.Timestamp >= wStart && a.Timestamp <= wEnd {
				ma = append(ma, a)
			}
		}
		var lb []rcamodel.LogBurst
		for _, b := range logBursts {
			if overlaps(wStart, wEnd, b.Window.Start, b.Window.End) {
				lb = append(lb, b)
			}
		}

		var sl []rcamodel.ServiceLatency
		if len(ma) > 0 || len(lb) > 0 {
			sl = serviceLatencies
		}

		signalCount := len(ma) + len(lb) + len(sl)
		if signalCount < c.cfg.MinSignalCount {
			continue
		}

		metricScore := math.Min(1.0, float64(len(ma))*c.cfg.MetricUnitScore)
		logScore := math.Min(1.0, float64(len(lb))*c.cfg.LogUnitScore)
		traceScore := math.Min(c.cfg.TraceScoreCap, float64(len(sl))*c.cfg.TraceUnitScore)
		confidence := math.Min(c.cfg.ScoreMax, metricScore+logScore+traceScore)

		events = append(events, rcamodel.CorrelatedEvent{
			Window:           rcamodel.Window{Start: wStart, End: wEnd},
			MetricAnomalies:  ma,
			LogBursts:        lb,
			ServiceLatencies: sl,
			SignalCount:      signalCount,
			Confidence:       round(confidence, 3),
		})

		for _, a := range anchors {
			if a >= wStart && a <= wEnd {
				used[a] = true
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Confidence > events[j].Confidence
	})
	return events
}

func overlaps(aStart, aEnd, bStart, bEnd float64) bool {
	return aStart <= bEnd && bStart <= aEnd
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
