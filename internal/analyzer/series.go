// Copyright 2025 James Ross
package analyzer

import (
	"context"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/fetcher"
	"github.com/beobservant/becertain/internal/obs"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// fetchedData holds every stage-2 fetch result, error-tolerant: a failed
// fetch leaves its field at its zero value and records a warning.
type fetchedData struct {
	logs         map[string]any
	logsErr      error
	traces       map[string]any
	tracesErr    error
	sloErrors    map[string]any
	sloErrorsErr error
	sloTotal     map[string]any
	sloTotalErr  error
	metrics      []fetcher.QueryResult
}

// fetchAll implements spec §4.1 stage 2: logs, traces, the two SLO
// series, and the metric fan-out are all issued concurrently. No single
// fetch failure aborts the run; each missing signal degrades to empty
// and is recorded as a warning.
func (a *Analyzer) fetchAll(ctx context.Context, provider *fetcher.Provider, logSelector string, traceFilters map[string]string, req rcamodel.AnalyzeRequest, r *run) fetchedData {
	start, end := int64(req.Start), int64(req.End)
	var out fetchedData

	type job func()
	done := make(chan struct{}, 5)

	go func() {
		out.logs, out.logsErr = provider.QueryLogs(ctx, logSelector, start, end, 5000)
		done <- struct{}{}
	}()
	go func() {
		out.traces, out.tracesErr = provider.QueryTraces(ctx, traceFilters, start, end, 200)
		done <- struct{}{}
	}()
	go func() {
		out.sloErrors, out.sloErrorsErr = provider.QueryMetrics(ctx, a.cfg.Analyzer.SLOErrorQuery, start, end, req.Step)
		done <- struct{}{}
	}()
	go func() {
		out.sloTotal, out.sloTotalErr = provider.QueryMetrics(ctx, a.cfg.Analyzer.SLOTotalQuery, start, end, req.Step)
		done <- struct{}{}
	}()
	go func() {
		queries := dedupeQueries(req.MetricQueries, a.cfg.Analyzer.DefaultMetricQueries)
		out.metrics = a.fetchMetricsBounded(ctx, provider, queries, start, end, req.Step)
		done <- struct{}{}
	}()
	for i := 0; i < 5; i++ {
		<-done
	}

	if out.logsErr != nil {
		r.warn("log fetch failed: %v", out.logsErr)
		obs.FetchErrors.WithLabelValues(req.TenantID, "logs").Inc()
	}
	if out.tracesErr != nil {
		r.warn("trace fetch failed: %v", out.tracesErr)
		obs.FetchErrors.WithLabelValues(req.TenantID, "traces").Inc()
	}
	if out.sloErrorsErr != nil {
		r.warn("SLO error-rate fetch failed: %v", out.sloErrorsErr)
		obs.FetchErrors.WithLabelValues(req.TenantID, "slo_errors").Inc()
	}
	if out.sloTotalErr != nil {
		r.warn("SLO total-rate fetch failed: %v", out.sloTotalErr)
		obs.FetchErrors.WithLabelValues(req.TenantID, "slo_total").Inc()
	}
	return out
}

// fetchMetricsBounded approximates the spec's bounded-concurrency metric
// fan-out (a semaphore of MaxParallelMetricQueries) by chunking the query
// list and calling fetcher.FetchMetrics once per chunk: FetchMetrics
// itself already fans every query in its argument out concurrently with
// no internal bound, so limiting chunk size limits in-flight queries.
func (a *Analyzer) fetchMetricsBounded(ctx context.Context, provider *fetcher.Provider, queries []string, start, end int64, step string) []fetcher.QueryResult {
	chunkSize := a.cfg.Analyzer.MaxParallelMetricQueries
	if chunkSize <= 0 {
		chunkSize = len(queries)
	}
	if chunkSize <= 0 {
		return nil
	}

	var out []fetcher.QueryResult
	for i := 0; i < len(queries); i += chunkSize {
		chunkEnd := i + chunkSize
		if chunkEnd > len(queries) {
			chunkEnd = len(queries)
		}
		chunk := queries[i:chunkEnd]
		out = append(out, fetcher.FetchMetrics(ctx, provider, chunk, start, end, step, a.log)...)
	}
	return out
}

// seriesPipelineResult accumulates every per-series stage-4 artifact.
type seriesPipelineResult struct {
	anomalies    []rcamodel.MetricAnomaly
	changePoints []rcamodel.ChangePoint
	forecasts    []rcamodel.TrajectoryForecast
	degradations []rcamodel.DegradationSignal
	seriesValues map[string][]float64
}

// runSeriesPipeline implements spec §4.1 stage 4: for every named series
// returned by every metric query, it blends the fresh baseline into the
// tenant's stored one, runs anomaly and change-point detection, and
// conditionally runs trajectory forecasting and degradation analysis.
// The whole stage is bounded by ctx's deadline; once it expires the loop
// stops early and a warning is recorded.
func (a *Analyzer) runSeriesPipeline(ctx context.Context, results []fetcher.QueryResult, req rcamodel.AnalyzeRequest, r *run) seriesPipelineResult {
	out := seriesPipelineResult{seriesValues: map[string][]float64{}}
	sensitivity := req.Sensitivity
	if sensitivity <= 0 {
		sensitivity = 1.0
	}
	windowSeconds := req.Duration()

	for _, res := range results {
		if err := ctx.Err(); err != nil {
			r.warn("per-series analysis stopped early: %v", err)
			break
		}
		for _, series := range fetcher.IterSeries(res.Response) {
			metricName := series.Label
			ts, vals := series.Timestamps, series.Values
			out.seriesValues[metricName] = vals

			fresh := computeBaseline(vals)
			if cached, err := a.registry.LoadBaseline(ctx, req.TenantID, metricName); err != nil {
				r.warn("baseline lookup failed for %s: %v", metricName, err)
			} else if cached != nil && cached.SampleCount >= 20 {
				obs.BaselineCacheHits.WithLabelValues(req.TenantID, "hit").Inc()
			} else {
				obs.BaselineCacheHits.WithLabelValues(req.TenantID, "miss").Inc()
			}
			if _, err := a.registry.BlendBaseline(ctx, req.TenantID, metricName, fresh, 0.1); err != nil {
				r.warn("baseline blend failed for %s: %v", metricName, err)
			}

			out.anomalies = append(out.anomalies, a.anomalyDetector.Detect(metricName, ts, vals, sensitivity)...)
			out.changePoints = append(out.changePoints, a.changepointDetector.Detect(metricName, ts, vals, a.cfg.AnomalyDetector.ZScoreThreshold)...)

			if windowSeconds >= a.cfg.Analyzer.ForecastMinWindowSeconds {
				if threshold, ok := forecastThreshold(a.cfg.Forecast.Thresholds, res.Query); ok {
					horizon := req.ForecastHorizonSeconds
					if horizon <= 0 {
						horizon = 3600
					}
					if f := a.trajectoryForecaster.Forecast(metricName, ts, vals, threshold, horizon); f != nil {
						out.forecasts = append(out.forecasts, *f)
					}
				}
			}
			if windowSeconds >= a.cfg.Analyzer.DegradationMinWindowSeconds {
				if d := a.degradationAnalyzer.Analyze(metricName, ts, vals); d != nil {
					out.degradations = append(out.degradations, *d)
				}
			}
		}
	}
	return out
}

// forecastThreshold looks up the breach threshold for a query by matching
// any configured metric-name substring against the raw query string
// (grounded on engine/forecast/trajectory.py's FORECAST_THRESHOLDS lookup).
func forecastThreshold(thresholds map[string]float64, query string) (float64, bool) {
	for name, threshold := range thresholds {
		if strings.Contains(query, name) {
			return threshold, true
		}
	}
	return 0, false
}

// computeBaseline derives a fresh Baseline from one series's raw values,
// using a 3-sigma band the same way store.BlendBaseline does for its
// cached side (spec §4.2, §4.6).
func computeBaseline(vals []float64) rcamodel.Baseline {
	clean := finiteOnly(vals)
	if len(clean) == 0 {
		return rcamodel.Baseline{Std: 1e-9}
	}
	mean, std := stat.MeanStdDev(clean, nil)
	if std <= 0 || math.IsNaN(std) {
		std = 1e-9
	}
	return rcamodel.Baseline{
		Mean:        mean,
		Std:         std,
		Lower:       mean - 3*std,
		Upper:       mean + 3*std,
		SampleCount: len(clean),
	}
}
