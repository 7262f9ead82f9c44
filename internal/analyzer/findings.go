// Copyright 2025 James Ross
package analyzer

import (
	"context"

	"github.com/beobservant/becertain/internal/fetcher"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/topology"
)

type logFindings struct {
	bursts   []rcamodel.LogBurst
	patterns []rcamodel.LogPattern
}

// analyzeLogs implements the logs half of spec §4.1 stage 6: burst and
// pattern detection both run over the same fetched entry set.
func (a *Analyzer) analyzeLogs(response map[string]any, fetchErr error, r *run) logFindings {
	if fetchErr != nil || response == nil {
		return logFindings{}
	}
	entries := fetcher.IterLogEntries(response)
	return logFindings{
		bursts:   a.burstDetector.DetectBursts(entries, a.cfg.Logs.FrequencyWindowSeconds),
		patterns: a.patternAnalyzer.Analyze(entries),
	}
}

type traceFindings struct {
	latencies    []rcamodel.ServiceLatency
	propagations []rcamodel.ErrorPropagation
	graph        *topology.DependencyGraph
}

// analyzeTraces implements the traces half of spec §4.1 stage 6: latency
// profiling, dependency-graph construction, and error-propagation blast
// radius all derive from the same fetched trace set. If the backend
// returned zero traces, a bounded fallback count query is issued purely
// to surface a warning distinguishing "no traces" from "fetch failed".
func (a *Analyzer) analyzeTraces(ctx context.Context, provider *fetcher.Provider, filters map[string]string, req rcamodel.AnalyzeRequest, response map[string]any, fetchErr error, r *run) traceFindings {
	graph := topology.NewDependencyGraph()
	if fetchErr != nil || response == nil {
		r.warn("trace fetch failed: %v", fetchErr)
		return traceFindings{graph: graph}
	}

	tracesIn := fetcher.ExtractTraces(response)
	callEdges := fetcher.ExtractCallEdges(response)
	for _, e := range callEdges {
		graph.AddCall(e.Caller, e.Callee)
	}

	if len(tracesIn) == 0 {
		count := countTraces(ctx, provider, filters, req)
		label := "0"
		if count >= 10000 {
			label = "10000+"
		} else if count > 0 {
			label = itoa(count)
		}
		r.warn("no traces returned for the analysis window (fallback count: %s)", label)
	}

	latencies := a.latencyAnalyzer.Analyze(tracesIn)
	propagations := a.propagationDetector.Detect(tracesIn, callEdges, a.cfg.SLO.TopologyMaxDepth)
	return traceFindings{latencies: latencies, propagations: propagations, graph: graph}
}

func countTraces(ctx context.Context, provider *fetcher.Provider, filters map[string]string, req rcamodel.AnalyzeRequest) int {
	resp, err := provider.QueryTraces(ctx, filters, int64(req.Start), int64(req.End), 10000)
	if err != nil {
		return 0
	}
	return len(fetcher.ExtractTraces(resp))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

// evaluateSLO implements the SLO half of spec §4.1 stage 6: the two
// fetched series (error count, total count) are zipped by index and fed
// to the burn-rate evaluator per spec §4.4. A length mismatch is trimmed
// to the shorter series and recorded as a warning rather than treated as
// fatal.
func (a *Analyzer) evaluateSLO(req rcamodel.AnalyzeRequest, errResp map[string]any, errErr error, totalResp map[string]any, totalErr error, r *run) []rcamodel.SloBurnAlert {
	if errErr != nil || totalErr != nil || errResp == nil || totalResp == nil {
		return nil
	}
	errSeries := fetcher.IterSeries(errResp)
	totalSeries := fetcher.IterSeries(totalResp)
	if len(errSeries) == 0 || len(totalSeries) == 0 {
		return nil
	}

	target := req.SloTarget
	if target <= 0 {
		target = a.cfg.SLO.DefaultTargetAvailability
	}

	var alerts []rcamodel.SloBurnAlert
	for i, es := range errSeries {
		if i >= len(totalSeries) {
			r.warn("SLO error/total series count mismatch: %d error series vs %d total series", len(errSeries), len(totalSeries))
			break
		}
		ts := totalSeries[i]
		n := min(len(es.Values), len(ts.Values))
		if len(es.Values) != len(ts.Values) {
			r.warn("SLO series %d length mismatch: %d error points vs %d total points, trimmed to %d", i, len(es.Values), len(ts.Values), n)
		}
		if n == 0 {
			continue
		}
		alerts = append(alerts, a.burnEvaluator.Evaluate(targetService(req), es.Values[:n], ts.Values[:n], es.Timestamps[:n], target)...)
	}
	return alerts
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
