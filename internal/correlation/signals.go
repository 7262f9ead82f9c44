// Copyright 2025 James Ross
package correlation

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// LogMetricLink pairs a metric anomaly with a log burst that preceded it
// closely enough in time to plausibly be its trigger (spec §4.5).
type LogMetricLink struct {
	MetricName     string  `json:"metric_name"`
	MetricTime     float64 `json:"metric_timestamp"`
	LogStream      string  `json:"log_stream"`
	LogBurstStart  float64 `json:"log_burst_start"`
	LagSeconds     float64 `json:"lag_seconds"`
	Strength       float64 `json:"strength"`
}

// SignalLinker finds log bursts that lead a metric anomaly by no more than
// MaxLagSeconds, scoring the link strength down linearly as the lag grows.
type SignalLinker struct {
	cfg config.Correlation
}

func NewSignalLinker(cfg config.Correlation) *SignalLinker {
	return &SignalLinker{cfg: cfg}
}

// LinkLogsToMetrics requires bursts to carry a stream label in
// Window-adjacent metadata; callers pass it alongside the burst slice
// since rcamodel.LogBurst has no stream field of its own.
func (s *SignalLinker) LinkLogsToMetrics(
	metricAnomalies []rcamodel.MetricAnomaly,
	bursts []rcamodel.LogBurst,
	burstStreams []string,
) []LogMetricLink {
	maxLag := s.cfg.MaxLagSeconds
	if maxLag <= 0 {
		maxLag = 120
	}

	var links []LogMetricLink
	for _, a := range metricAnomalies {
		for i, b := range bursts {
			lag := a.Timestamp - b.Window.Start
			if lag < 0 || lag > maxLag {
				continue
			}
			stream := ""
			if i < len(burstStreams) {
				stream = burstStreams[i]
			}
			strength := round(1.0-(lag/maxLag), 3)
			links = append(links, LogMetricLink{
				MetricName:    a.MetricName,
				MetricTime:    a.Timestamp,
				LogStream:     stream,
				LogBurstStart: b.Window.Start,
				LagSeconds:    round(lag, 1),
				Strength:      strength,
			})
		}
	}

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Strength > links[j].Strength
	})
	return links
}
