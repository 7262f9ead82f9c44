// Copyright 2025 James Ross
package rcamodel

import "time"

// Range is an inclusive [Low, High] percentile or value band.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Window is an inclusive [Start, End] time span, in Unix seconds.
type Window struct {
	Start float64 `json:"window_start"`
	End   float64 `json:"window_end"`
}

// AnalyzeRequest is the tenant-scoped request driving one orchestrator run
// (spec §3, §6).
type AnalyzeRequest struct {
	TenantID               string   `json:"tenant_id"`
	Start                  float64  `json:"start"`
	End                    float64  `json:"end"`
	Step                   string   `json:"step"`
	Services               []string `json:"services,omitempty"`
	LogQuery               string   `json:"log_query,omitempty"`
	MetricQueries          []string `json:"metric_queries,omitempty"`
	Sensitivity            float64  `json:"sensitivity"`
	ApdexThresholdMs       float64  `json:"apdex_threshold_ms"`
	SloTarget              float64  `json:"slo_target"`
	CorrelationWindowSecs  float64  `json:"correlation_window_seconds"`
	ForecastHorizonSeconds float64  `json:"forecast_horizon_seconds"`
}

// Duration returns the requested analysis window length in seconds.
func (r AnalyzeRequest) Duration() float64 { return r.End - r.Start }

// MetricAnomaly is a single out-of-band sample flagged by the anomaly
// detector consensus (spec §3, §4.2).
type MetricAnomaly struct {
	MetricName      string     `json:"metric_name"`
	Timestamp       float64    `json:"timestamp"`
	Value           float64    `json:"value"`
	ChangeType      ChangeType `json:"change_type"`
	ZScore          float64    `json:"z_score"`
	MADScore        float64    `json:"mad_score"`
	IsolationScore  float64    `json:"isolation_score"`
	ExpectedRange   Range      `json:"expected_range"`
	Severity        Severity   `json:"severity"`
	Description     string     `json:"description"`
}

// ChangePoint is a CUSUM-detected shift in a metric's level (spec §3, §4.2).
type ChangePoint struct {
	Index        int        `json:"index"`
	Timestamp    float64    `json:"timestamp"`
	ValueBefore  float64    `json:"value_before"`
	ValueAfter   float64    `json:"value_after"`
	Magnitude    float64    `json:"magnitude"`
	ChangeType   ChangeType `json:"change_type"`
	MetricName   string     `json:"metric_name"`
}

// LogBurst is an interval where log volume rose well above its baseline
// rate (spec §3, §4.3).
type LogBurst struct {
	Window       Window   `json:"window"`
	RatePerSec   float64  `json:"rate_per_second"`
	BaselineRate float64  `json:"baseline_rate"`
	Ratio        float64  `json:"ratio"`
	Severity     Severity `json:"severity"`
}

// LogPattern is a normalized, frequency-ranked log template (spec §3, §4.3).
type LogPattern struct {
	Pattern       string   `json:"pattern"`
	Count         int      `json:"count"`
	FirstSeen     float64  `json:"first_seen"`
	LastSeen      float64  `json:"last_seen"`
	RatePerMinute float64  `json:"rate_per_minute"`
	Entropy       float64  `json:"entropy"`
	Severity      Severity `json:"severity"`
	Sample        string   `json:"sample"`
}

// ServiceLatency summarizes one service/operation's latency and error
// profile over the analysis window (spec §3, §4.4).
type ServiceLatency struct {
	Service     string   `json:"service"`
	Operation   string   `json:"operation"`
	P50Ms       float64  `json:"p50_ms"`
	P95Ms       float64  `json:"p95_ms"`
	P99Ms       float64  `json:"p99_ms"`
	Apdex       float64  `json:"apdex"`
	ErrorRate   float64  `json:"error_rate"`
	SampleCount int      `json:"sample_count"`
	Severity    Severity `json:"severity"`
	Window      *Window  `json:"window,omitempty"`
}

// ErrorPropagation describes a service's error blast radius across its
// dependency graph (spec §3, §4.5).
type ErrorPropagation struct {
	SourceService    string   `json:"source_service"`
	AffectedServices []string `json:"affected_services"`
	ErrorRate        float64 `json:"error_rate"`
	Severity         Severity `json:"severity"`
}

// RootCause is one ranked RCA hypothesis emitted by the orchestrator
// (spec §3, §4.7, §4.8).
type RootCause struct {
	Hypothesis               string             `json:"hypothesis"`
	Confidence               float64            `json:"confidence"`
	Severity                 Severity           `json:"severity"`
	Category                 RcaCategory        `json:"category"`
	Evidence                 []string           `json:"evidence"`
	ContributingSignals      []Signal           `json:"contributing_signals"`
	AffectedServices         []string           `json:"affected_services"`
	RecommendedAction        string             `json:"recommended_action"`
	CorroborationSummary     string             `json:"corroboration_summary"`
	SuppressionDiagnostics   []string           `json:"suppression_diagnostics,omitempty"`
	SelectionScoreComponents map[string]float64 `json:"selection_score_components"`
	Deployment               *DeploymentEvent   `json:"deployment,omitempty"`
}

// CorrelatedEvent groups findings that occurred within the same time
// window across at least two signals (spec §3, §4.5).
type CorrelatedEvent struct {
	Window          Window   `json:"window"`
	MetricAnomalies []MetricAnomaly `json:"metric_anomalies"`
	LogBursts       []LogBurst       `json:"log_bursts"`
	ServiceLatencies []ServiceLatency `json:"service_latencies"`
	SignalCount     int      `json:"signal_count"`
	Confidence      float64  `json:"confidence"`
}

// Baseline is a tenant's learned expected range for one metric series
// (spec §3, §4.2, §4.6).
type Baseline struct {
	Mean         float64  `json:"mean"`
	Std          float64  `json:"std"`
	Lower        float64  `json:"lower"`
	Upper        float64  `json:"upper"`
	SeasonalMean *float64 `json:"seasonal_mean,omitempty"`
	SampleCount  int      `json:"sample_count"`
}

// TenantSignalWeights is the adaptive per-tenant blend across metrics,
// logs, and traces (spec §3, §4.1, §4.6).
type TenantSignalWeights struct {
	Metrics     float64 `json:"metrics"`
	Logs        float64 `json:"logs"`
	Traces      float64 `json:"traces"`
	UpdateCount int     `json:"update_count"`
}

// DeploymentEvent is a recorded change to a service, used to correlate
// incidents against recent deploys (spec §3, §4.7, §4.9).
type DeploymentEvent struct {
	Service     string            `json:"service"`
	Timestamp   float64           `json:"timestamp"`
	Version     string            `json:"version"`
	Author      string            `json:"author"`
	Environment string            `json:"environment"`
	Source      string            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// BudgetStatus is a service's current error-budget consumption against its
// monthly SLO target (spec §4.4 SLO burn-rate detection, GLOSSARY "Burn rate").
type BudgetStatus struct {
	Service             string  `json:"service"`
	TargetAvailability  float64 `json:"target_availability"`
	CurrentAvailability float64 `json:"current_availability"`
	BudgetUsedPct       float64 `json:"budget_used_pct"`
	RemainingMinutes    float64 `json:"remaining_minutes"`
	OnTrack             bool    `json:"on_track"`
}

// SloBurnAlert fires when a service's short-window burn rate is consuming
// its error budget fast enough to exhaust it before the window elapses
// (spec §4.4, §8 scenario 4).
type SloBurnAlert struct {
	Service           string   `json:"service"`
	WindowLabel       string   `json:"window_label"`
	ErrorRate         float64  `json:"error_rate"`
	BurnRate          float64  `json:"burn_rate"`
	BudgetConsumedPct float64  `json:"budget_consumed_pct"`
	Severity          Severity `json:"severity"`
}

// AnalysisQuality summarizes the precision-oriented quality gate's view of
// one run (spec §4.1 stage 11, §9).
type AnalysisQuality struct {
	AnomalyDensity             float64        `json:"anomaly_density"`
	SuppressionCounts          map[string]int `json:"suppression_counts"`
	GatingProfile              string         `json:"gating_profile"`
	ConfidenceCalibrationVersion string       `json:"confidence_calibration_version"`
}

// TrajectoryForecast projects a metric's linear trend forward to the
// requested horizon and reports when (if ever) it will cross a breach
// threshold (spec §4.2 trajectory forecasting).
type TrajectoryForecast struct {
	MetricName               string   `json:"metric_name"`
	CurrentValue             float64  `json:"current_value"`
	SlopePerSecond           float64  `json:"slope_per_second"`
	PredictedValueAtHorizon  float64  `json:"predicted_value_at_horizon"`
	TimeToThresholdSeconds   *float64 `json:"time_to_threshold_seconds,omitempty"`
	BreachThreshold          float64  `json:"breach_threshold"`
	Confidence               float64  `json:"confidence"`
	Severity                 Severity `json:"severity"`
}

// DegradationSignal reports a metric's smoothed trend direction,
// volatility, and whether its rate of change is accelerating (spec §4.2
// degradation analysis).
type DegradationSignal struct {
	MetricName       string   `json:"metric_name"`
	DegradationRate  float64  `json:"degradation_rate"`
	Volatility       float64  `json:"volatility"`
	Trend            string   `json:"trend"`
	WindowSeconds    float64  `json:"window_seconds"`
	Severity         Severity `json:"severity"`
	IsAccelerating   bool     `json:"is_accelerating"`
}

// LogMetricLink pairs a metric anomaly with a log burst that preceded it
// closely enough in time to plausibly be its trigger (spec §4.1 stage 7,
// §4.4 log<->metric linker; SPEC_FULL.md report promotion).
type LogMetricLink struct {
	MetricName    string  `json:"metric_name"`
	MetricTime    float64 `json:"metric_timestamp"`
	LogStream     string  `json:"log_stream"`
	LogBurstStart float64 `json:"log_burst_start"`
	LagSeconds    float64 `json:"lag_seconds"`
	Strength      float64 `json:"strength"`
}

// AnomalyCluster groups metric anomalies that sit close together in
// normalized time/value space (spec §4.1 stage 7 DBSCAN clustering;
// SPEC_FULL.md report promotion).
type AnomalyCluster struct {
	ClusterID         int     `json:"cluster_id"`
	MetricNames       []string `json:"metric_names"`
	CentroidTimestamp float64 `json:"centroid_timestamp"`
	CentroidValue     float64 `json:"centroid_value"`
	Size              int     `json:"size"`
	IsNoise           bool    `json:"is_noise"`
}

// GrangerResult reports whether a cause metric's past values improve the
// prediction of an effect metric beyond the effect's own history (spec
// §4.1 stage 8, §4.5 Granger causality; SPEC_FULL.md report promotion).
type GrangerResult struct {
	CauseMetric  string  `json:"cause_metric"`
	EffectMetric string  `json:"effect_metric"`
	MaxLag       int     `json:"max_lag"`
	FStatistic   float64 `json:"f_statistic"`
	PValue       float64 `json:"p_value"`
	IsCausal     bool    `json:"is_causal"`
	Strength     float64 `json:"strength"`
}

// BayesianScore is one RCA category's posterior probability given the
// observed evidence features (spec §4.1 stage 8, §4.5 Bayesian scoring;
// SPEC_FULL.md report promotion).
type BayesianScore struct {
	Category   RcaCategory `json:"category"`
	Posterior  float64     `json:"posterior"`
	Prior      float64     `json:"prior"`
	Likelihood float64     `json:"likelihood"`
}

// RankedCause is a root cause augmented with the ML-assisted score the
// orchestrator blends into its final ranking (spec §4.1 stage 9, §4.8 ML
// ranker; SPEC_FULL.md report promotion).
type RankedCause struct {
	RootCause         RootCause          `json:"root_cause"`
	MLScore           float64            `json:"ml_score"`
	FinalScore        float64            `json:"final_score"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
}

// AnalysisReport is the complete output of one orchestrator run
// (spec §3, §4.1, §6).
type AnalysisReport struct {
	TenantID          string             `json:"tenant_id"`
	Start             float64            `json:"start"`
	End               float64            `json:"end"`
	Duration          float64            `json:"duration"`
	MetricAnomalies   []MetricAnomaly    `json:"metric_anomalies"`
	ChangePoints      []ChangePoint      `json:"change_points"`
	LogBursts         []LogBurst         `json:"log_bursts"`
	LogPatterns       []LogPattern       `json:"log_patterns"`
	ServiceLatencies  []ServiceLatency   `json:"service_latencies"`
	ErrorPropagations []ErrorPropagation `json:"error_propagations"`
	RootCauses        []RootCause        `json:"root_causes"`
	RankedCauses      []RankedCause      `json:"ranked_causes"`
	CorrelatedEvents  []CorrelatedEvent  `json:"correlated_events"`
	SloBurnAlerts     []SloBurnAlert     `json:"slo_burn_alerts"`
	LogMetricLinks    []LogMetricLink    `json:"log_metric_links"`
	AnomalyClusters   []AnomalyCluster   `json:"anomaly_clusters"`
	GrangerResults    []GrangerResult    `json:"granger_results"`
	BayesianScores    []BayesianScore    `json:"bayesian_scores"`
	OverallSeverity   Severity           `json:"overall_severity"`
	Summary           string             `json:"summary"`
	AnalysisWarnings  []string           `json:"analysis_warnings"`
	Quality           AnalysisQuality    `json:"quality"`
	GeneratedAt       time.Time          `json:"generated_at"`
}
