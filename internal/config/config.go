// Copyright 2025 James Ross
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Redis configures the primary tenant key-value store.
type Redis struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// Store holds the tenant-partitioned state store tuning (§4.6).
type Store struct {
	Redis                 Redis         `mapstructure:"redis"`
	RetryCooldown         time.Duration `mapstructure:"retry_cooldown"`
	FallbackMaxItems      int           `mapstructure:"fallback_max_items"`
	BaselineTTL           time.Duration `mapstructure:"baseline_ttl"`
	GrangerTTL            time.Duration `mapstructure:"granger_ttl"`
	EventsTTL             time.Duration `mapstructure:"events_ttl"`
	WeightsTTL            time.Duration `mapstructure:"weights_ttl"`
	OperationTimeout      time.Duration `mapstructure:"operation_timeout"`
	MaxEventsPerTenant    int           `mapstructure:"max_events_per_tenant"`
	RegistryAlpha         float64       `mapstructure:"registry_alpha"`
	EventsWindowSeconds   float64       `mapstructure:"events_window_seconds"`
}

// TracingConfig mirrors the teacher's OTLP exporter configuration.
type TracingConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Endpoint         string        `mapstructure:"endpoint"`
	Environment      string        `mapstructure:"environment"`
	SamplingStrategy string        `mapstructure:"sampling_strategy"`
	SamplingRate     float64       `mapstructure:"sampling_rate"`
	Insecure         bool          `mapstructure:"insecure"`
}

type Observability struct {
	MetricsPort int           `mapstructure:"metrics_port"`
	LogLevel    string        `mapstructure:"log_level"`
	LogFile     string        `mapstructure:"log_file"`
	Tracing     TracingConfig `mapstructure:"tracing"`
}

// AnomalyDetector tunes the z-score/MAD/CUSUM/isolation-forest consensus
// detector (spec §4.2).
type AnomalyDetector struct {
	ZScoreThreshold      float64 `mapstructure:"zscore_threshold"`
	MADThreshold         float64 `mapstructure:"mad_threshold"`
	CUSUMThreshold       float64 `mapstructure:"cusum_threshold"`
	MinSamples           int     `mapstructure:"min_samples"`
	DefaultSensitivity   float64 `mapstructure:"default_sensitivity"`
	MinSensitivity       float64 `mapstructure:"min_sensitivity"`
	PercentileLow        float64 `mapstructure:"percentile_low"`
	PercentileHigh       float64 `mapstructure:"percentile_high"`
	MADScale             float64 `mapstructure:"mad_scale"`
	CUSUMK               float64 `mapstructure:"cusum_k"`
	DriftSlopeThreshold  float64 `mapstructure:"drift_slope_threshold"`
	ContaminationMin     float64 `mapstructure:"contamination_min"`
	ContaminationMax     float64 `mapstructure:"contamination_max"`
	ContaminationDivisor float64 `mapstructure:"contamination_divisor"`
	IsoNEstimators       int     `mapstructure:"iso_n_estimators"`
	IsoRandomState       int64   `mapstructure:"iso_random_state"`
	IsoWeight            float64 `mapstructure:"iso_weight"`
	CompressRuns         bool    `mapstructure:"compress_runs"`
	RunGapMultiplier     float64 `mapstructure:"run_gap_multiplier"`
	RunKeepMax           int     `mapstructure:"run_keep_max"`
	ZThresholds          []ScoreTier `mapstructure:"z_thresholds"`
	MADThresholds        []ScoreTier `mapstructure:"mad_thresholds"`
}

// ScoreTier is a (threshold, score-increment) pair used for additive
// severity scoring (spec §4.2 step 6).
type ScoreTier struct {
	Threshold float64 `mapstructure:"threshold"`
	Score     float64 `mapstructure:"score"`
}

type Changepoint struct {
	K                        float64 `mapstructure:"k"`
	Window                   int     `mapstructure:"window"`
	RelativeCutoff           float64 `mapstructure:"relative_cutoff"`
	OscillationDensityCutoff float64 `mapstructure:"oscillation_density_cutoff"`
}

type Baseline struct {
	ZScoreThreshold      float64 `mapstructure:"zscore_threshold"`
	MinSamples           int     `mapstructure:"min_samples"`
	SeasonalMinSamples   int     `mapstructure:"seasonal_min_samples"`
	StoreBlendAlpha      float64 `mapstructure:"store_blend_alpha"`
}

type Correlation struct {
	MaxLagSeconds   float64 `mapstructure:"max_lag_seconds"`
	WindowSeconds   float64 `mapstructure:"window_seconds"`
	MetricUnitScore float64 `mapstructure:"metric_unit_score"`
	LogUnitScore    float64 `mapstructure:"log_unit_score"`
	TraceUnitScore  float64 `mapstructure:"trace_unit_score"`
	TraceScoreCap   float64 `mapstructure:"trace_score_cap"`
	ScoreMax        float64 `mapstructure:"score_max"`
	MinSignalCount  int     `mapstructure:"min_signal_count"`
}

type Forecast struct {
	MinDegradationRate       float64 `mapstructure:"min_degradation_rate"`
	EMAAlpha                 float64 `mapstructure:"ema_alpha"`
	DegradationThreshCritical float64 `mapstructure:"degradation_threshold_critical"`
	DegradationThreshHigh     float64 `mapstructure:"degradation_threshold_high"`
	DegradationThreshMedium   float64 `mapstructure:"degradation_threshold_medium"`
	DegradationMinLength      int     `mapstructure:"degradation_min_length"`
	TrajectoryMinLength       int     `mapstructure:"trajectory_min_length"`
	TrajectoryR2Threshold     float64 `mapstructure:"trajectory_r2_threshold"`
	TrajectoryRatioThreshold  float64 `mapstructure:"trajectory_ratio_threshold"`
	TrajectoryWindowSeconds   float64 `mapstructure:"trajectory_window_seconds"`
	TrajectoryHorizonCutoff   float64 `mapstructure:"trajectory_horizon_cutoff"`
	Thresholds                map[string]float64 `mapstructure:"thresholds"`
}

type Logs struct {
	NoiseRegex              string  `mapstructure:"noise_regex"`
	NormalizedLengthCutoff  int     `mapstructure:"normalized_length_cutoff"`
	SampleSnippet           int     `mapstructure:"sample_snippet"`
	TokenCap                int     `mapstructure:"token_cap"`
	ResultsLimit            int     `mapstructure:"results_limit"`
	MinDuration             float64 `mapstructure:"min_duration"`
	FrequencyWindowSeconds  float64 `mapstructure:"frequency_window_seconds"`
	BurstRatioThresholds    []BurstTier `mapstructure:"burst_ratio_thresholds"`
}

// BurstTier is a (ratio, severity-label) pair (spec GLOSSARY "Burn rate"
// adjacent; used for log burst severity, not SLO burn).
type BurstTier struct {
	Ratio    float64 `mapstructure:"ratio"`
	Severity string  `mapstructure:"severity"`
}

type Traces struct {
	ErrorRateThreshold    float64 `mapstructure:"error_rate_threshold"`
	ErrorSeverityHigh     float64 `mapstructure:"error_severity_high"`
	ErrorSeverityCritical float64 `mapstructure:"error_severity_critical"`
	LatencyP99Critical    float64 `mapstructure:"latency_p99_critical"`
	LatencyP99High        float64 `mapstructure:"latency_p99_high"`
	LatencyP99Medium      float64 `mapstructure:"latency_p99_medium"`
	LatencyErrorCritical  float64 `mapstructure:"latency_error_critical"`
	LatencyErrorHigh      float64 `mapstructure:"latency_error_high"`
	LatencyErrorMedium    float64 `mapstructure:"latency_error_medium"`
	ApdexPoor             float64 `mapstructure:"apdex_poor"`
	ApdexMarginal         float64 `mapstructure:"apdex_marginal"`
	ApdexTMs              float64 `mapstructure:"apdex_t_ms"`
}

type RCA struct {
	WindowSeconds             float64            `mapstructure:"window_seconds"`
	Weights                   map[string]float64 `mapstructure:"weights"`
	DeployScoreCutoff         float64            `mapstructure:"deploy_score_cutoff"`
	ErrorPropagationMax       float64            `mapstructure:"error_propagation_max"`
	BaselineBase              float64            `mapstructure:"baseline_base"`
	BaselineAffectedFactor    float64            `mapstructure:"baseline_affected_factor"`
	MinConfidenceDisplay      float64            `mapstructure:"min_confidence_display"`
	EventConfidenceThreshold  float64            `mapstructure:"event_confidence_threshold"`
	DeployWindowSeconds       float64            `mapstructure:"deploy_window_seconds"`
	ScoreCap                  float64            `mapstructure:"score_cap"`
	SliceLimit                int                `mapstructure:"slice_limit"`
	SeverityWeightThreshold   int                `mapstructure:"severity_weight_threshold"`
	LogPatternScore           float64            `mapstructure:"log_pattern_score"`
}

type Ranking struct {
	SeverityDivisor    float64 `mapstructure:"severity_divisor"`
	SignalDivisor      float64 `mapstructure:"signal_divisor"`
	EventCountDivisor  float64 `mapstructure:"event_count_divisor"`
	ConfidenceBlend    float64 `mapstructure:"confidence_blend"`
	MLBlend            float64 `mapstructure:"ml_blend"`
	RFEstimators       int     `mapstructure:"rf_estimators"`
	RFMaxDepth         int     `mapstructure:"rf_max_depth"`
	RFRandomState      int64   `mapstructure:"rf_random_state"`
	LabelThreshold     float64 `mapstructure:"label_threshold"`
}

type Causal struct {
	GraphMaxDepth            int     `mapstructure:"graph_max_depth"`
	RoundPrecision           int     `mapstructure:"round_precision"`
	GrangerMaxLag            int     `mapstructure:"granger_max_lag"`
	GrangerPThreshold        float64 `mapstructure:"granger_p_threshold"`
	GrangerStrengthScale     float64 `mapstructure:"granger_strength_scale"`
	BayesianDefaultFeatureProb float64 `mapstructure:"bayesian_default_feature_prob"`
	BayesianPriors           map[string]float64            `mapstructure:"bayesian_priors"`
	BayesianLikelihoods      map[string]map[string]float64 `mapstructure:"bayesian_likelihoods"`
}

type Dedup struct {
	TimeWindow     float64 `mapstructure:"time_window"`
	ClusterEps     float64 `mapstructure:"cluster_eps"`
	ClusterMinPts  int     `mapstructure:"cluster_min_pts"`
}

type SLOBurnWindow struct {
	Label     string  `mapstructure:"label"`
	Seconds   float64 `mapstructure:"seconds"`
	Threshold float64 `mapstructure:"threshold"`
	Severity  string  `mapstructure:"severity"`
}

type SLO struct {
	BurnWindows               []SLOBurnWindow `mapstructure:"burn_windows"`
	TopologyMaxDepth          int             `mapstructure:"topology_max_depth"`
	MonthMinutes              float64         `mapstructure:"month_minutes"`
	DefaultTargetAvailability float64         `mapstructure:"default_target_availability"`
}

// Quality tunes the precision-oriented quality gate (spec §4.1 stage 11).
type Quality struct {
	GatingProfile                      string  `mapstructure:"gating_profile"`
	MaxAnomalyDensityPerMetricPerHour  float64 `mapstructure:"max_anomaly_density_per_metric_per_hour"`
	MaxRootCausesWithoutMultisignal    int     `mapstructure:"max_root_causes_without_multisignal"`
	MinCorroborationSignals            int     `mapstructure:"min_corroboration_signals"`
	ConfidenceCalibrationVersion       string  `mapstructure:"confidence_calibration_version"`
}

// Analyzer tunes the orchestrator's stage timeouts and output caps
// (spec §4.1, §5).
type Analyzer struct {
	FetchTimeout                time.Duration `mapstructure:"fetch_timeout"`
	MetricsTimeout               time.Duration `mapstructure:"metrics_timeout"`
	CausalTimeout                time.Duration `mapstructure:"causal_timeout"`
	ForecastMinWindowSeconds     float64       `mapstructure:"forecast_min_window_seconds"`
	DegradationMinWindowSeconds  float64       `mapstructure:"degradation_min_window_seconds"`
	SensitivityFactor            float64       `mapstructure:"sensitivity_factor"`
	MaxParallelMetricQueries     int           `mapstructure:"max_parallel_metric_queries"`
	MaxParallelCPUTasks          int           `mapstructure:"max_parallel_cpu_tasks"`
	GrangerMaxSeries             int           `mapstructure:"granger_max_series"`
	GrangerMinSamples            int           `mapstructure:"granger_min_samples"`
	MaxConcurrency               int           `mapstructure:"max_concurrency"`
	RequestTimeout                time.Duration `mapstructure:"request_timeout"`
	MaxMetricAnomalies           int           `mapstructure:"max_metric_anomalies"`
	MaxChangePoints              int           `mapstructure:"max_change_points"`
	MaxGrangerPairs              int           `mapstructure:"max_granger_pairs"`
	MaxClusters                  int           `mapstructure:"max_clusters"`
	MaxRootCauses                int           `mapstructure:"max_root_causes"`
	DefaultMetricQueries         []string      `mapstructure:"default_metric_queries"`
	SLOErrorQuery                string        `mapstructure:"slo_error_query"`
	SLOTotalQuery                string        `mapstructure:"slo_total_query"`
}

// DataSources configures the observability-backend connectors the fetcher
// layer queries for raw logs/metrics/traces (spec §4.1 stage 1, §7
// provider abstraction).
type DataSources struct {
	LogsBackend         string        `mapstructure:"logs_backend"`
	MetricsBackend      string        `mapstructure:"metrics_backend"`
	TracesBackend       string        `mapstructure:"traces_backend"`
	LokiURL             string        `mapstructure:"loki_url"`
	MimirURL            string        `mapstructure:"mimir_url"`
	VictoriaMetricsURL  string        `mapstructure:"victoriametrics_url"`
	TempoURL            string        `mapstructure:"tempo_url"`
	ConnectorTimeout    time.Duration `mapstructure:"connector_timeout"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryDelay          time.Duration `mapstructure:"retry_delay"`
	RetryBackoff        float64       `mapstructure:"retry_backoff"`
}

// Events configures the deployment-event ingestion transport (spec §4.9,
// originally an in-process `store/events.py` write path; here promoted to
// an async bus so a CD pipeline can publish events without calling back
// into the analyzer process).
type Events struct {
	NATSURL    string `mapstructure:"nats_url"`
	Subject    string `mapstructure:"subject"`
	QueueGroup string `mapstructure:"queue_group"`
}

// Maintenance schedules periodic tenant-state housekeeping (spec §4.6:
// deployment events older than Store.EventsTTL are swept out of the
// in-process cache on this cadence so long-running processes don't grow
// the per-tenant event log unbounded between store reloads).
type Maintenance struct {
	EvictionCronSpec string `mapstructure:"eviction_cron_spec"`
}

// Severity weights used throughout the engine for comparison/ranking.
var SeverityWeights = map[string]int{
	"low": 1, "medium": 2, "high": 4, "critical": 8,
}

type Config struct {
	DefaultTenantID string          `mapstructure:"default_tenant_id"`
	Store           Store           `mapstructure:"store"`
	Observability   Observability   `mapstructure:"observability"`
	AnomalyDetector AnomalyDetector `mapstructure:"anomaly_detector"`
	Changepoint     Changepoint     `mapstructure:"changepoint"`
	Baseline        Baseline        `mapstructure:"baseline"`
	Correlation     Correlation     `mapstructure:"correlation"`
	Forecast        Forecast        `mapstructure:"forecast"`
	Logs            Logs            `mapstructure:"logs"`
	Traces          Traces          `mapstructure:"traces"`
	RCA             RCA             `mapstructure:"rca"`
	Ranking         Ranking         `mapstructure:"ranking"`
	Causal          Causal          `mapstructure:"causal"`
	Dedup           Dedup           `mapstructure:"dedup"`
	SLO             SLO             `mapstructure:"slo"`
	Quality         Quality         `mapstructure:"quality"`
	Analyzer        Analyzer        `mapstructure:"analyzer"`
	DataSources     DataSources     `mapstructure:"data_sources"`
	Events          Events          `mapstructure:"events"`
	Maintenance     Maintenance     `mapstructure:"maintenance"`
}

func defaultConfig() *Config {
	return &Config{
		DefaultTenantID: "default",
		Store: Store{
			Redis: Redis{
				Addr:         "localhost:6379",
				DialTimeout:  2 * time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
				MaxRetries:   1,
			},
			RetryCooldown:       10 * time.Second,
			FallbackMaxItems:    10_000,
			BaselineTTL:         24 * time.Hour,
			GrangerTTL:          7 * 24 * time.Hour,
			EventsTTL:           30 * 24 * time.Hour,
			WeightsTTL:          7 * 24 * time.Hour,
			OperationTimeout:    500 * time.Millisecond,
			MaxEventsPerTenant:  500,
			RegistryAlpha:       0.2,
			EventsWindowSeconds: 300,
		},
		Observability: Observability{
			MetricsPort: 9464,
			LogLevel:    "info",
			Tracing:     TracingConfig{Enabled: false, SamplingStrategy: "probabilistic", SamplingRate: 0.1},
		},
		AnomalyDetector: AnomalyDetector{
			ZScoreThreshold:      3.0,
			MADThreshold:         4.0,
			CUSUMThreshold:       6.0,
			MinSamples:           12,
			DefaultSensitivity:   3.5,
			MinSensitivity:       0.1,
			PercentileLow:        2.5,
			PercentileHigh:       97.5,
			MADScale:             0.6745,
			CUSUMK:               0.6,
			DriftSlopeThreshold:  0.15,
			ContaminationMin:     0.005,
			ContaminationMax:     0.2,
			ContaminationDivisor: 0.35,
			IsoNEstimators:       100,
			IsoRandomState:       42,
			IsoWeight:            0.15,
			CompressRuns:         true,
			RunGapMultiplier:     2.0,
			RunKeepMax:           3,
			ZThresholds: []ScoreTier{
				{Threshold: 4.0, Score: 0.5},
				{Threshold: 3.0, Score: 0.35},
				{Threshold: 2.5, Score: 0.2},
			},
			MADThresholds: []ScoreTier{
				{Threshold: 5.0, Score: 0.35},
				{Threshold: 3.5, Score: 0.25},
				{Threshold: 2.5, Score: 0.15},
			},
		},
		Changepoint: Changepoint{
			K:                        0.5,
			Window:                   10,
			RelativeCutoff:           0.6,
			OscillationDensityCutoff: 0.3,
		},
		Baseline: Baseline{
			ZScoreThreshold:    3.2,
			MinSamples:         6,
			SeasonalMinSamples: 24,
			StoreBlendAlpha:    0.3,
		},
		Correlation: Correlation{
			MaxLagSeconds:   120,
			WindowSeconds:   60,
			MetricUnitScore: 0.25,
			LogUnitScore:    0.35,
			TraceUnitScore:  0.1,
			TraceScoreCap:   0.35,
			ScoreMax:        1.0,
			MinSignalCount:  2,
		},
		Forecast: Forecast{
			MinDegradationRate:        0.01,
			EMAAlpha:                  0.3,
			DegradationThreshCritical: 0.3,
			DegradationThreshHigh:     0.15,
			DegradationThreshMedium:   0.1,
			DegradationMinLength:      10,
			TrajectoryMinLength:       8,
			TrajectoryR2Threshold:     0.2,
			TrajectoryRatioThreshold:  0.5,
			TrajectoryWindowSeconds:   300,
			TrajectoryHorizonCutoff:   300,
			Thresholds: map[string]float64{
				"system_memory_usage_bytes":             0.85,
				"system_filesystem_usage_bytes":         0.90,
				"traces_spanmetrics_latency":             2.0,
				"traces_service_graph_request_failed":    0.05,
			},
		},
		Logs: Logs{
			NoiseRegex:             `[0-9a-f]{8,}`,
			NormalizedLengthCutoff: 180,
			SampleSnippet:          300,
			TokenCap:               500,
			ResultsLimit:           100,
			MinDuration:            1.0,
			FrequencyWindowSeconds: 10,
			BurstRatioThresholds: []BurstTier{
				{Ratio: 10.0, Severity: "critical"},
				{Ratio: 5.0, Severity: "high"},
				{Ratio: 2.5, Severity: "medium"},
			},
		},
		Traces: Traces{
			ErrorRateThreshold:    0.08,
			ErrorSeverityHigh:     0.15,
			ErrorSeverityCritical: 0.30,
			LatencyP99Critical:    6000,
			LatencyP99High:        2500,
			LatencyP99Medium:      800,
			LatencyErrorCritical:  0.30,
			LatencyErrorHigh:      0.12,
			LatencyErrorMedium:    0.03,
			ApdexPoor:             0.45,
			ApdexMarginal:         0.65,
			ApdexTMs:              500,
		},
		RCA: RCA{
			WindowSeconds:            300,
			Weights:                  map[string]float64{"metrics": 0.25, "logs": 0.40, "traces": 0.35},
			DeployScoreCutoff:        0.65,
			ErrorPropagationMax:      0.95,
			BaselineBase:             0.5,
			BaselineAffectedFactor:   0.1,
			MinConfidenceDisplay:     0.12,
			EventConfidenceThreshold: 0.3,
			DeployWindowSeconds:      300,
			ScoreCap:                 0.99,
			SliceLimit:               2,
			SeverityWeightThreshold:  3,
			LogPatternScore:          0.6,
		},
		Ranking: Ranking{
			SeverityDivisor:   8.0,
			SignalDivisor:     10.0,
			EventCountDivisor: 5.0,
			ConfidenceBlend:   0.6,
			MLBlend:           0.4,
			RFEstimators:      50,
			RFMaxDepth:        4,
			RFRandomState:     42,
			LabelThreshold:    0.5,
		},
		Causal: Causal{
			GraphMaxDepth:              5,
			RoundPrecision:             4,
			GrangerMaxLag:              3,
			GrangerPThreshold:          0.05,
			GrangerStrengthScale:       10.0,
			BayesianDefaultFeatureProb: 0.5,
			BayesianPriors: map[string]float64{
				"deployment": 0.35, "resource_exhaustion": 0.20, "dependency_failure": 0.20,
				"traffic_surge": 0.10, "error_propagation": 0.10, "slo_burn": 0.03, "unknown": 0.02,
			},
			BayesianLikelihoods: map[string]map[string]float64{
				"deployment": {"has_deployment_event": 0.95, "has_metric_spike": 0.70, "has_log_burst": 0.60, "has_latency_spike": 0.50, "has_error_propagation": 0.40},
				"resource_exhaustion": {"has_deployment_event": 0.15, "has_metric_spike": 0.90, "has_log_burst": 0.50, "has_latency_spike": 0.70, "has_error_propagation": 0.30},
				"dependency_failure": {"has_deployment_event": 0.10, "has_metric_spike": 0.50, "has_log_burst": 0.70, "has_latency_spike": 0.95, "has_error_propagation": 0.80},
				"traffic_surge": {"has_deployment_event": 0.05, "has_metric_spike": 0.95, "has_log_burst": 0.60, "has_latency_spike": 0.60, "has_error_propagation": 0.20},
				"error_propagation": {"has_deployment_event": 0.10, "has_metric_spike": 0.60, "has_log_burst": 0.80, "has_latency_spike": 0.85, "has_error_propagation": 0.99},
				"slo_burn": {"has_deployment_event": 0.20, "has_metric_spike": 0.80, "has_log_burst": 0.50, "has_latency_spike": 0.60, "has_error_propagation": 0.50},
				"unknown": {"has_deployment_event": 0.05, "has_metric_spike": 0.30, "has_log_burst": 0.30, "has_latency_spike": 0.30, "has_error_propagation": 0.10},
			},
		},
		Dedup: Dedup{
			TimeWindow:    90,
			ClusterEps:    0.1,
			ClusterMinPts: 2,
		},
		SLO: SLO{
			BurnWindows: []SLOBurnWindow{
				{Label: "1h", Seconds: 3600, Threshold: 14.4, Severity: "critical"},
				{Label: "6h", Seconds: 21600, Threshold: 6.0, Severity: "high"},
				{Label: "1d", Seconds: 86400, Threshold: 3.0, Severity: "medium"},
				{Label: "3d", Seconds: 259200, Threshold: 1.0, Severity: "low"},
			},
			TopologyMaxDepth:          6,
			MonthMinutes:              30 * 24 * 60,
			DefaultTargetAvailability: 0.999,
		},
		Quality: Quality{
			GatingProfile:                     "precision_strict_v1",
			MaxAnomalyDensityPerMetricPerHour: 0.75,
			MaxRootCausesWithoutMultisignal:   1,
			MinCorroborationSignals:           2,
			ConfidenceCalibrationVersion:      "calib_2026_02_25_precision_default",
		},
		Analyzer: Analyzer{
			FetchTimeout:                10 * time.Second,
			MetricsTimeout:              15 * time.Second,
			CausalTimeout:               6 * time.Second,
			ForecastMinWindowSeconds:    900,
			DegradationMinWindowSeconds: 900,
			SensitivityFactor:           0.75,
			MaxParallelMetricQueries:    8,
			MaxParallelCPUTasks:         4,
			GrangerMaxSeries:            20,
			GrangerMinSamples:           20,
			MaxConcurrency:              2,
			RequestTimeout:              90 * time.Second,
			MaxMetricAnomalies:          180,
			MaxChangePoints:             140,
			MaxGrangerPairs:             60,
			MaxClusters:                 20,
			MaxRootCauses:               8,
			DefaultMetricQueries: []string{
				"sum(rate(traces_spanmetrics_calls_total[5m])) by (service)",
				"histogram_quantile(0.99, sum(rate(traces_spanmetrics_latency_bucket[5m])) by (le, service))",
				"sum(rate(traces_spanmetrics_calls_total{status_code='STATUS_CODE_ERROR'}[5m])) by (service)",
				"sum(rate(traces_service_graph_request_failed_total[5m])) by (client, server)",
				"sum(rate(traces_service_graph_request_total[5m])) by (client, server)",
				"sum(rate(system_cpu_time_seconds_total[5m])) by (cpu)",
				"system_memory_usage_bytes",
				"system_filesystem_usage_bytes",
			},
			SLOErrorQuery: `sum(rate(traces_spanmetrics_calls_total{status_code="STATUS_CODE_ERROR"}[5m]))`,
			SLOTotalQuery: `sum(rate(traces_spanmetrics_calls_total[5m]))`,
		},
		DataSources: DataSources{
			LogsBackend:        "loki",
			MetricsBackend:     "mimir",
			TracesBackend:      "tempo",
			LokiURL:            "http://loki:3100",
			MimirURL:           "http://mimir:9009",
			VictoriaMetricsURL: "http://victoriametrics:8428",
			TempoURL:           "http://tempo:3200",
			ConnectorTimeout:   30 * time.Second,
			RetryAttempts:      3,
			RetryDelay:         time.Second,
			RetryBackoff:       2.0,
		},
		Events: Events{
			NATSURL:    "nats://localhost:4222",
			Subject:    "becertain.deployments",
			QueueGroup: "becertain-analyzer",
		},
		Maintenance: Maintenance{
			EvictionCronSpec: "@every 10m",
		},
	}
}

// Load reads configuration from an optional YAML file layered under
// BECERTAIN_-prefixed environment overrides; defaults ship embedded so a
// missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BECERTAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultConfig()
	bindDefaults(v, def)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if _, err := os.Stat(path); err == nil {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := *def
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// bindDefaults registers the handful of values viper needs to know about
// for env-var binding even when no config file is present; the rest of the
// default struct is layered in afterwards by Unmarshal starting from def.
func bindDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("default_tenant_id", def.DefaultTenantID)
	v.SetDefault("store.redis.addr", def.Store.Redis.Addr)
	v.SetDefault("store.retry_cooldown", def.Store.RetryCooldown)
	v.SetDefault("observability.metrics_port", def.Observability.MetricsPort)
	v.SetDefault("observability.log_level", def.Observability.LogLevel)
	v.SetDefault("anomaly_detector.zscore_threshold", def.AnomalyDetector.ZScoreThreshold)
	v.SetDefault("anomaly_detector.mad_threshold", def.AnomalyDetector.MADThreshold)
	v.SetDefault("anomaly_detector.cusum_threshold", def.AnomalyDetector.CUSUMThreshold)
	v.SetDefault("anomaly_detector.min_samples", def.AnomalyDetector.MinSamples)
	v.SetDefault("quality.gating_profile", def.Quality.GatingProfile)
	v.SetDefault("quality.max_anomaly_density_per_metric_per_hour", def.Quality.MaxAnomalyDensityPerMetricPerHour)
	v.SetDefault("analyzer.fetch_timeout", def.Analyzer.FetchTimeout)
	v.SetDefault("analyzer.metrics_timeout", def.Analyzer.MetricsTimeout)
	v.SetDefault("analyzer.max_root_causes", def.Analyzer.MaxRootCauses)
}

// Validate checks config constraints and returns an error on invalid settings.
func Validate(cfg *Config) error {
	if cfg.DefaultTenantID == "" {
		return fmt.Errorf("default_tenant_id must be non-empty")
	}
	if cfg.AnomalyDetector.MinSamples < 1 {
		return fmt.Errorf("anomaly_detector.min_samples must be >= 1")
	}
	if cfg.Observability.MetricsPort <= 0 || cfg.Observability.MetricsPort > 65535 {
		return fmt.Errorf("observability.metrics_port must be 1..65535")
	}
	if cfg.Analyzer.MaxParallelMetricQueries < 1 {
		return fmt.Errorf("analyzer.max_parallel_metric_queries must be >= 1")
	}
	if cfg.Quality.MinCorroborationSignals < 1 {
		return fmt.Errorf("quality.min_corroboration_signals must be >= 1")
	}
	if cfg.DataSources.LogsBackend != "loki" {
		return fmt.Errorf("data_sources.logs_backend: unsupported backend %q", cfg.DataSources.LogsBackend)
	}
	if cfg.DataSources.MetricsBackend != "mimir" && cfg.DataSources.MetricsBackend != "victoriametrics" {
		return fmt.Errorf("data_sources.metrics_backend: unsupported backend %q", cfg.DataSources.MetricsBackend)
	}
	if cfg.DataSources.TracesBackend != "tempo" {
		return fmt.Errorf("data_sources.traces_backend: unsupported backend %q", cfg.DataSources.TracesBackend)
	}
	return nil
}
