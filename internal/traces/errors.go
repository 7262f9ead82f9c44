// Copyright 2025 James Ross
package traces

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/topology"
)

// PropagationDetector identifies services with elevated error rates and
// their blast radius of affected downstream services, walking the
// dependency graph rather than the error co-occurrence proxy the
// distilled spec's reference implementation used (spec §3 ErrorPropagation
// invariant: "derived from dependency graph blast radius; no cycles
// counted twice").
type PropagationDetector struct {
	cfg config.Traces
}

func NewPropagationDetector(cfg config.Traces) *PropagationDetector {
	return &PropagationDetector{cfg: cfg}
}

// Detect builds a dependency graph from the observed call edges, computes
// each erroring service's error rate, and reports its blast-radius-derived
// affected services for every source whose error rate clears the
// threshold.
func (d *PropagationDetector) Detect(tracesIn []Trace, calls []topology.CallEdge, maxDepth int) []rcamodel.ErrorPropagation {
	graph := topology.NewDependencyGraph()
	for _, c := range calls {
		graph.AddCall(c.Caller, c.Callee)
	}

	serviceErrors := map[string]int{}
	serviceTotal := map[string]int{}
	for _, tr := range tracesIn {
		serviceTotal[tr.Service]++
		hasError := false
		for _, sp := range tr.Spans {
			if sp.HasError {
				hasError = true
				break
			}
		}
		if hasError {
			serviceErrors[tr.Service]++
		}
	}

	errorRates := map[string]float64{}
	for s, total := range serviceTotal {
		if total > 0 {
			errorRates[s] = float64(serviceErrors[s]) / float64(total)
		}
	}

	var sources []string
	for s, r := range errorRates {
		if r >= d.errorRateFloor() {
			sources = append(sources, s)
		}
	}
	sort.Strings(sources)
	if len(sources) == 0 {
		return nil
	}

	results := make([]rcamodel.ErrorPropagation, 0, len(sources))
	for _, source := range sources {
		blast := graph.BlastRadiusOf(source, maxDepth)
		affected := blast.AffectedDownstream
		if len(affected) == 0 {
			continue
		}
		rate := errorRates[source]
		results = append(results, rcamodel.ErrorPropagation{
			SourceService:    source,
			AffectedServices: affected,
			ErrorRate:        round(rate, 4),
			Severity:         severityForErrorRate(rate),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ErrorRate > results[j].ErrorRate })
	return results
}

func (d *PropagationDetector) errorRateFloor() float64 {
	if d.cfg.ErrorRateThreshold > 0 {
		return d.cfg.ErrorRateThreshold
	}
	return 0.05
}

func severityForErrorRate(rate float64) rcamodel.Severity {
	switch {
	case rate >= 0.25:
		return rcamodel.SeverityCritical
	case rate >= 0.10:
		return rcamodel.SeverityHigh
	default:
		return rcamodel.SeverityMedium
	}
}
