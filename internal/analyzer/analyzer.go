// Copyright 2025 James Ross
// Package analyzer is the Root Cause Analysis orchestrator: it fans out to
// the tenant's logs/metrics/traces backends, runs every per-signal
// detector over the returned series, correlates and ranks the findings,
// and assembles a single AnalysisReport (spec §4.1). No stage failure is
// fatal; failures degrade to empty results plus an analysis_warnings
// entry, grounded on original_source/engine/analyzer.py's run().
package analyzer

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/beobservant/becertain/internal/anomaly"
	"github.com/beobservant/becertain/internal/causal"
	"github.com/beobservant/becertain/internal/changepoint"
	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/correlation"
	"github.com/beobservant/becertain/internal/dedup"
	"github.com/beobservant/becertain/internal/fetcher"
	"github.com/beobservant/becertain/internal/forecast"
	"github.com/beobservant/becertain/internal/logs"
	"github.com/beobservant/becertain/internal/ml"
	"github.com/beobservant/becertain/internal/obs"
	"github.com/beobservant/becertain/internal/rca"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/slo"
	"github.com/beobservant/becertain/internal/tenant"
	"github.com/beobservant/becertain/internal/topology"
	"github.com/beobservant/becertain/internal/traces"
)

// Analyzer wires together every detector package behind the single
// Analyze entrypoint. It is safe for concurrent use: all per-detector
// state is immutable configuration, and per-run mutable state lives on
// the stack of each Analyze call.
type Analyzer struct {
	cfg      *config.Config
	registry *tenant.Registry
	log      *zap.Logger

	anomalyDetector      *anomaly.Detector
	changepointDetector  *changepoint.Detector
	trajectoryForecaster *forecast.TrajectoryForecaster
	degradationAnalyzer  *forecast.DegradationAnalyzer
	burstDetector        *logs.BurstDetector
	patternAnalyzer      *logs.PatternAnalyzer
	latencyAnalyzer      *traces.LatencyAnalyzer
	propagationDetector  *traces.PropagationDetector
	burnEvaluator        *slo.BurnEvaluator
	correlator           *correlation.Correlator
	signalLinker         *correlation.SignalLinker
	clusterer            *ml.Clusterer
	granger              *causal.GrangerAnalyzer
	bayesian             *causal.BayesianScorer
	rcaGenerator         *rca.Generator
	ranker               *ml.Ranker
	grouper              *dedup.Grouper
}

// New builds an Analyzer from cfg, wiring one instance of every detector
// named in spec §4.1's stage list.
func New(cfg *config.Config, registry *tenant.Registry, log *zap.Logger) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		registry: registry,
		log:      log,

		anomalyDetector:      anomaly.New(cfg.AnomalyDetector),
		changepointDetector:  changepoint.New(cfg.Changepoint),
		trajectoryForecaster: forecast.NewTrajectoryForecaster(cfg.Forecast),
		degradationAnalyzer:  forecast.NewDegradationAnalyzer(cfg.Forecast),
		burstDetector:        logs.NewBurstDetector(cfg.Logs),
		patternAnalyzer:      logs.NewPatternAnalyzer(cfg.Logs),
		latencyAnalyzer:      traces.NewLatencyAnalyzer(cfg.Traces),
		propagationDetector:  traces.NewPropagationDetector(cfg.Traces),
		burnEvaluator:        slo.NewBurnEvaluator(cfg.SLO),
		correlator:           correlation.NewCorrelator(cfg.Correlation),
		signalLinker:         correlation.NewSignalLinker(cfg.Correlation),
		clusterer:            ml.NewClusterer(cfg.Dedup),
		granger:              causal.NewGrangerAnalyzer(cfg.Causal),
		bayesian:             causal.NewBayesianScorer(cfg.Causal),
		rcaGenerator:         rca.NewGenerator(cfg.RCA),
		ranker:               ml.NewRanker(cfg.Ranking),
		grouper:              dedup.NewGrouper(cfg.Dedup),
	}
}

// run accumulates the mutable, request-scoped state threaded through the
// 13 stages; it never crosses a request boundary (spec §9 "cyclic
// references... request-scoped value trees").
type run struct {
	tenantID string
	req      rcamodel.AnalyzeRequest
	warnings []string
}

func (r *run) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// stage runs one of the 13 orchestrator stages (spec §4.1) inside its own
// span and records its wall-clock duration, so a single trace plus
// becertain_stage_duration_seconds covers every step of the pipeline the
// same way spec §5 describes per-stage budgets.
func (a *Analyzer) stage(ctx context.Context, name, tenantID, requestID string, fn func(context.Context)) {
	spanCtx, span := obs.StageSpan(ctx, name, tenantID, requestID)
	defer span.End()
	start := time.Now()
	fn(spanCtx)
	obs.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	obs.SetSpanSuccess(spanCtx)
}

// Analyze runs the full orchestrator pipeline for one tenant-scoped
// request. It always returns a well-formed report; only a context
// cancellation before any work starts returns an error.
func (a *Analyzer) Analyze(ctx context.Context, provider *fetcher.Provider, req rcamodel.AnalyzeRequest) (*rcamodel.AnalysisReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := &run{tenantID: req.TenantID, req: req}
	requestID := fmt.Sprintf("%s-%.0f-%.0f", req.TenantID, req.Start, req.End)

	obs.AnalysesStarted.WithLabelValues(req.TenantID).Inc()
	obs.ActiveAnalyses.Inc()
	defer obs.ActiveAnalyses.Dec()

	// Stage 1: log selector construction.
	var logSelector string
	var traceFilters map[string]string
	a.stage(ctx, "log_selector", req.TenantID, requestID, func(context.Context) {
		logSelector = buildLogSelector(req)
		traceFilters = buildTraceFilters(req)
	})

	// Stage 2+3: fetch fan-out, with scrape fallback handled inside
	// fetchMetricsBounded/fetcher.FetchMetrics.
	var fetched fetchedData
	a.stage(ctx, "fetch", req.TenantID, requestID, func(spanCtx context.Context) {
		fetchCtx, cancel := context.WithTimeout(spanCtx, a.cfg.Analyzer.FetchTimeout)
		defer cancel()
		fetched = a.fetchAll(fetchCtx, provider, logSelector, traceFilters, req, r)
	})

	// Stage 4: per-series pipeline.
	var pipeline seriesPipelineResult
	a.stage(ctx, "series_pipeline", req.TenantID, requestID, func(spanCtx context.Context) {
		metricsCtx, cancelMetrics := context.WithTimeout(spanCtx, a.cfg.Analyzer.MetricsTimeout)
		defer cancelMetrics()
		pipeline = a.runSeriesPipeline(metricsCtx, fetched.metrics, req, r)
	})

	// Stage 5: deduplication.
	var anomalies []rcamodel.MetricAnomaly
	var changePoints []rcamodel.ChangePoint
	var forecasts []rcamodel.TrajectoryForecast
	var degradations []rcamodel.DegradationSignal
	a.stage(ctx, "dedup", req.TenantID, requestID, func(context.Context) {
		anomalies = dedupeAnomalies(pipeline.anomalies)
		changePoints = dedupeChangePoints(pipeline.changePoints)
		forecasts = dedupeForecasts(pipeline.forecasts)
		degradations = dedupeDegradations(pipeline.degradations)
	})
	for _, an := range anomalies {
		obs.AnomaliesDetected.WithLabelValues(req.TenantID, string(an.ChangeType)).Inc()
	}

	// Stage 6: log/trace/SLO analysis.
	var logResult logFindings
	var traceResult traceFindings
	var sloAlerts []rcamodel.SloBurnAlert
	a.stage(ctx, "log_trace_slo", req.TenantID, requestID, func(spanCtx context.Context) {
		logResult = a.analyzeLogs(fetched.logs, fetched.logsErr, r)
		traceResult = a.analyzeTraces(spanCtx, provider, traceFilters, req, fetched.traces, fetched.tracesErr, r)
		sloAlerts = a.evaluateSLO(req, fetched.sloErrors, fetched.sloErrorsErr, fetched.sloTotal, fetched.sloTotalErr, r)
	})

	// Stage 7: correlation.
	var correlatedEvents []rcamodel.CorrelatedEvent
	var logMetricLinks []correlation.LogMetricLink
	var anomalyClusters []ml.AnomalyCluster
	a.stage(ctx, "correlation", req.TenantID, requestID, func(context.Context) {
		correlatedEvents = a.correlate(req, anomalies, logResult.bursts, traceResult.latencies)
		logMetricLinks = a.signalLinker.LinkLogsToMetrics(anomalies, logResult.bursts, make([]string, len(logResult.bursts)))
		anomalyClusters = a.clusterer.Cluster(anomalies)
	})

	// Stage 8: causality.
	var grangerResults []causal.GrangerResult
	var bayesianScores []causal.BayesianScore
	var deployments []rcamodel.DeploymentEvent
	a.stage(ctx, "causality", req.TenantID, requestID, func(spanCtx context.Context) {
		var err error
		deployments, err = a.registry.EventsInWindow(spanCtx, req.TenantID, req.Start, req.End)
		if err != nil {
			r.warn("deployment event lookup failed: %v", err)
		}
		grangerResults, bayesianScores = a.runCausality(spanCtx, req, pipeline.seriesValues, anomalies, logResult.bursts,
			traceResult.latencies, traceResult.propagations, len(deployments) > 0, r)
	})
	obs.GrangerPairsEvaluated.WithLabelValues(req.TenantID).Add(float64(len(grangerResults)))

	// Stage 9: RCA generation & ranking.
	var rankedCauses []ml.RankedCause
	a.stage(ctx, "rca_ranking", req.TenantID, requestID, func(context.Context) {
		rootCauses := a.rcaGenerator.Generate(logResult.patterns, traceResult.propagations, correlatedEvents, traceResult.graph, deployments)
		rankedCauses = a.ranker.Rank(rootCauses, nil)
	})

	// Stage 10: output capping.
	a.stage(ctx, "capping", req.TenantID, requestID, func(context.Context) {
		anomalies = capMetricAnomalies(anomalies, a.cfg.Analyzer.MaxMetricAnomalies, r)
		changePoints = capChangePoints(changePoints, a.cfg.Analyzer.MaxChangePoints, r)
		rankedCauses = capRankedCauses(rankedCauses, a.cfg.Analyzer.MaxRootCauses, r)
		anomalyClusters = capClusters(anomalyClusters, a.cfg.Analyzer.MaxClusters, r)
		grangerResults = capGranger(grangerResults, a.cfg.Analyzer.MaxGrangerPairs, r)
	})
	for _, rc := range rankedCauses {
		obs.RootCausesEmitted.WithLabelValues(req.TenantID, string(rc.RootCause.Category)).Inc()
	}

	// Stage 11: precision quality gate.
	quality := rcamodel.AnalysisQuality{
		GatingProfile:                a.cfg.Quality.GatingProfile,
		ConfidenceCalibrationVersion: a.cfg.Quality.ConfidenceCalibrationVersion,
		SuppressionCounts:            map[string]int{},
	}
	a.stage(ctx, "quality_gate", req.TenantID, requestID, func(context.Context) {
		if strings.HasPrefix(a.cfg.Quality.GatingProfile, "precision") {
			anomalies = a.applyDensityCap(anomalies, req, &quality)
			rankedCauses = a.applyConfidenceGate(rankedCauses, &quality)
		}
		quality.AnomalyDensity = anomalyDensity(anomalies, req)
	})
	for reason, n := range quality.SuppressionCounts {
		obs.RootCausesSuppressed.WithLabelValues(req.TenantID, reason).Add(float64(n))
	}

	// Stage 12: severity rollup and summary.
	var overall rcamodel.Severity
	var rootCausesOut []rcamodel.RootCause
	a.stage(ctx, "severity_rollup", req.TenantID, requestID, func(context.Context) {
		overall = overallSeverity(anomalies, logResult.bursts, logResult.patterns, traceResult.latencies, sloAlerts, forecasts)
		actionable := len(anomalies)+len(logResult.bursts)+len(logResult.patterns)+len(traceResult.latencies)+
			len(traceResult.propagations)+len(sloAlerts)+len(rankedCauses) > 0
		predictiveOnly := len(forecasts)+len(degradations)+len(changePoints) > 0
		if !actionable && predictiveOnly {
			if overall.Weight() > rcamodel.SeverityMedium.Weight() {
				overall = rcamodel.SeverityMedium
			}
			r.warn("overall severity capped at medium: only predictive signals present")
		}

		rootCausesOut = make([]rcamodel.RootCause, len(rankedCauses))
		for i, rc := range rankedCauses {
			rootCausesOut[i] = rc.RootCause
		}
	})

	report := &rcamodel.AnalysisReport{
		TenantID:          req.TenantID,
		Start:             req.Start,
		End:               req.End,
		Duration:          req.Duration(),
		MetricAnomalies:   anomalies,
		ChangePoints:      changePoints,
		LogBursts:         logResult.bursts,
		LogPatterns:       logResult.patterns,
		ServiceLatencies:  traceResult.latencies,
		ErrorPropagations: traceResult.propagations,
		RootCauses:        rootCausesOut,
		RankedCauses:      toRankedCauses(rankedCauses),
		CorrelatedEvents:  correlatedEvents,
		SloBurnAlerts:     sloAlerts,
		LogMetricLinks:    toLogMetricLinks(logMetricLinks),
		AnomalyClusters:   toAnomalyClusters(anomalyClusters),
		GrangerResults:    toGrangerResults(grangerResults),
		BayesianScores:    toBayesianScores(bayesianScores),
		OverallSeverity:   overall,
		AnalysisWarnings:  r.warnings,
		Quality:           quality,
		GeneratedAt:       time.Now(),
	}
	report.Summary = a.buildSummary(report, forecasts, degradations)
	obs.AnalysesCompleted.WithLabelValues(req.TenantID, string(overall)).Inc()
	return report, nil
}

// buildLogSelector implements stage 1: a non-empty request log_query wins
// (with the backend's "match anything" escape hatch normalized so an
// empty-compatible regex doesn't get rejected); otherwise a selector is
// built from the requested services, falling back to "match everything".
func buildLogSelector(req rcamodel.AnalyzeRequest) string {
	if req.LogQuery != "" {
		return strings.ReplaceAll(req.LogQuery, `=~".*"`, `=~".+"`)
	}
	if len(req.Services) > 0 {
		escaped := make([]string, len(req.Services))
		for i, s := range req.Services {
			escaped[i] = regexp.QuoteMeta(s)
		}
		return fmt.Sprintf(`{service_name=~"%s"}`, strings.Join(escaped, "|"))
	}
	return `{service_name=~".+"}`
}

func buildTraceFilters(req rcamodel.AnalyzeRequest) map[string]string {
	if len(req.Services) > 0 {
		return map[string]string{"service.name": req.Services[0]}
	}
	return map[string]string{}
}

func targetService(req rcamodel.AnalyzeRequest) string {
	if len(req.Services) > 0 {
		return req.Services[0]
	}
	return "global"
}

// overallSeverity returns the most severe finding across every group
// named by spec §4.1 stage 12.
func overallSeverity(
	anomalies []rcamodel.MetricAnomaly,
	bursts []rcamodel.LogBurst,
	patterns []rcamodel.LogPattern,
	latencies []rcamodel.ServiceLatency,
	alerts []rcamodel.SloBurnAlert,
	forecasts []rcamodel.TrajectoryForecast,
) rcamodel.Severity {
	best := rcamodel.SeverityLow
	for _, a := range anomalies {
		best = best.Max(a.Severity)
	}
	for _, b := range bursts {
		best = best.Max(b.Severity)
	}
	for _, p := range patterns {
		best = best.Max(p.Severity)
	}
	for _, l := range latencies {
		best = best.Max(l.Severity)
	}
	for _, al := range alerts {
		best = best.Max(al.Severity)
	}
	for _, f := range forecasts {
		best = best.Max(f.Severity)
	}
	return best
}

func finiteOnly(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func dedupeQueries(primary, secondary []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]string, 0, len(primary)+len(secondary))
	for _, q := range append(append([]string{}, primary...), secondary...) {
		if _, ok := seen[q]; ok {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
	}
	return out
}
