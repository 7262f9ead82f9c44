// Copyright 2025 James Ross
package traces

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Span is one observed call within a trace.
type Span struct {
	HasError bool
}

// Trace is a single root-to-leaf trace sample.
type Trace struct {
	Service     string
	Operation   string
	DurationMs  float64
	Spans       []Span
}

// LatencyAnalyzer summarizes per-service/operation latency percentiles,
// Apdex score, and error rate from a batch of traces (spec §3
// ServiceLatency, §4.4).
type LatencyAnalyzer struct {
	cfg config.Traces
}

func NewLatencyAnalyzer(cfg config.Traces) *LatencyAnalyzer {
	return &LatencyAnalyzer{cfg: cfg}
}

type latencyBucket struct {
	durations []float64
	errors    int
	total     int
	operation string
}

// Analyze groups traces by service::operation, computes p50/p95/p99 and
// Apdex per spec's (satisfied/tolerating/frustrated) definition, and
// returns only findings whose blended severity is above low.
func (a *LatencyAnalyzer) Analyze(tracesIn []Trace) []rcamodel.ServiceLatency {
	buckets := map[string]*latencyBucket{}
	services := map[string]string{}
	order := make([]string, 0)

	for _, tr := range tracesIn {
		key := tr.Service + "::" + tr.Operation
		b, ok := buckets[key]
		if !ok {
			b = &latencyBucket{operation: tr.Operation}
			buckets[key] = b
			services[key] = tr.Service
			order = append(order, key)
		}
		b.durations = append(b.durations, tr.DurationMs)
		b.total++
		for _, sp := range tr.Spans {
			if sp.HasError {
				b.errors++
			}
		}
	}

	results := make([]rcamodel.ServiceLatency, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		if len(b.durations) == 0 {
			continue
		}
		sorted := append([]float64(nil), b.durations...)
		sort.Float64s(sorted)
		data := stats.Float64Data(sorted)
		p50, _ := data.Percentile(50)
		p95, _ := data.Percentile(95)
		p99, _ := data.Percentile(99)
		errorRate := float64(b.errors) / float64(b.total)
		apdex := a.apdex(b.durations, a.cfg.ApdexTMs)
		sev := a.severity(p99, errorRate, apdex)
		if sev == rcamodel.SeverityLow {
			continue
		}
		results = append(results, rcamodel.ServiceLatency{
			Service:     services[key],
			Operation:   b.operation,
			P50Ms:       round(p50, 2),
			P95Ms:       round(p95, 2),
			P99Ms:       round(p99, 2),
			Apdex:       apdex,
			ErrorRate:   round(errorRate, 4),
			SampleCount: b.total,
			Severity:    sev,
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Severity.Weight() > results[j].Severity.Weight() })
	return results
}

// apdex scores a duration sample as satisfied (<=T), tolerating (<=4T, half
// credit), or frustrated (>4T), per the standard Apdex definition.
func (a *LatencyAnalyzer) apdex(durationsMs []float64, tMs float64) float64 {
	total := len(durationsMs)
	if total == 0 {
		return 1.0
	}
	var satisfied, tolerating int
	for _, d := range durationsMs {
		switch {
		case d <= tMs:
			satisfied++
		case d <= 4*tMs:
			tolerating++
		}
	}
	return round((float64(satisfied)+float64(tolerating)*0.5)/float64(total), 4)
}

func (a *LatencyAnalyzer) severity(p99, errorRate, apdex float64) rcamodel.Severity {
	score := 0.0
	switch {
	case p99 >= a.cfg.LatencyP99Critical:
		score += 0.5
	case p99 >= a.cfg.LatencyP99High:
		score += 0.35
	case p99 >= a.cfg.LatencyP99Medium:
		score += 0.2
	}
	switch {
	case errorRate >= a.cfg.LatencyErrorCritical:
		score += 0.4
	case errorRate >= a.cfg.LatencyErrorHigh:
		score += 0.25
	case errorRate >= a.cfg.LatencyErrorMedium:
		score += 0.1
	}
	if apdex < a.cfg.ApdexPoor {
		score += 0.1
	} else if apdex < a.cfg.ApdexMarginal {
		score += 0.05
	}
	if score > 1.0 {
		score = 1.0
	}
	return rcamodel.SeverityFromScore(score)
}

func round(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	r := v * scale
	if r >= 0 {
		r += 0.5
	} else {
		r -= 0.5
	}
	out := float64(int64(r)) / scale
	return out
}
