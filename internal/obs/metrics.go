// Copyright 2025 James Ross
package obs

import (
    "fmt"
    "net/http"

    "github.com/beobservant/becertain/internal/config"
    "github.com/prometheus/client_golang/prometheus"
    promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    AnalysesStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_analyses_started_total",
        Help: "Total number of analysis requests started",
    }, []string{"tenant"})
    AnalysesCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_analyses_completed_total",
        Help: "Total number of analysis requests completed",
    }, []string{"tenant", "severity"})
    AnalysesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_analyses_failed_total",
        Help: "Total number of analysis requests that errored",
    }, []string{"tenant", "stage"})
    StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
        Name:    "becertain_stage_duration_seconds",
        Help:    "Duration of each orchestrator stage",
        Buckets: prometheus.DefBuckets,
    }, []string{"stage"})
    AnomaliesDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_anomalies_detected_total",
        Help: "Total number of metric anomalies detected",
    }, []string{"tenant", "change_type"})
    RootCausesEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_root_causes_emitted_total",
        Help: "Total number of root causes emitted after ranking and capping",
    }, []string{"tenant", "category"})
    RootCausesSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_root_causes_suppressed_total",
        Help: "Total number of root causes dropped by the quality gate",
    }, []string{"tenant", "reason"})
    BaselineCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_baseline_cache_hits_total",
        Help: "Baseline lookups served from the tenant store versus recomputed",
    }, []string{"tenant", "result"})
    StoreFallbackActivations = prometheus.NewCounter(prometheus.CounterOpts{
        Name: "becertain_store_fallback_activations_total",
        Help: "Total number of times the store fell back to the in-memory tier",
    })
    StoreBreakerState = prometheus.NewGauge(prometheus.GaugeOpts{
        Name: "becertain_store_breaker_state",
        Help: "0 Closed, 1 HalfOpen, 2 Open",
    })
    FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_fetch_errors_total",
        Help: "Total number of data source fetch errors by signal",
    }, []string{"tenant", "signal"})
    GrangerPairsEvaluated = prometheus.NewCounterVec(prometheus.CounterOpts{
        Name: "becertain_granger_pairs_evaluated_total",
        Help: "Total number of Granger causality pairs evaluated",
    }, []string{"tenant"})
    ActiveAnalyses = prometheus.NewGauge(prometheus.GaugeOpts{
        Name: "becertain_active_analyses",
        Help: "Number of analyses currently in flight",
    })
)

func init() {
    prometheus.MustRegister(
        AnalysesStarted, AnalysesCompleted, AnalysesFailed, StageDuration,
        AnomaliesDetected, RootCausesEmitted, RootCausesSuppressed,
        BaselineCacheHits, StoreFallbackActivations, StoreBreakerState,
        FetchErrors, GrangerPairsEvaluated, ActiveAnalyses,
    )
}

// StartMetricsServer exposes /metrics and returns a server for controlled shutdown.
// StartMetricsServer is retained for compatibility but consider using StartHTTPServer
// which also registers health endpoints.
func StartMetricsServer(cfg *config.Config) *http.Server {
    mux := http.NewServeMux()
    mux.Handle("/metrics", promhttp.Handler())
    srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
    go func() { _ = srv.ListenAndServe() }()
    return srv
}
