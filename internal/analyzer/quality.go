// Copyright 2025 James Ross
package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/beobservant/becertain/internal/ml"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// applyDensityCap implements the first leg of spec §4.1 stage 11's
// precision quality gate: each metric may surface at most
// ceil(MaxAnomalyDensityPerMetricPerHour * window_hours) anomalies,
// keeping the highest-severity, highest-|z|, highest-|mad| readings and
// recording the total suppressed across all metrics under one key.
func (a *Analyzer) applyDensityCap(anomalies []rcamodel.MetricAnomaly, req rcamodel.AnalyzeRequest, quality *rcamodel.AnalysisQuality) []rcamodel.MetricAnomaly {
	hours := req.Duration() / 3600
	if hours <= 0 {
		hours = 1
	}
	perMetricCap := int(math.Ceil(a.cfg.Quality.MaxAnomalyDensityPerMetricPerHour * hours))
	if perMetricCap <= 0 {
		perMetricCap = 1
	}

	byMetric := map[string][]rcamodel.MetricAnomaly{}
	var order []string
	for _, an := range anomalies {
		if _, ok := byMetric[an.MetricName]; !ok {
			order = append(order, an.MetricName)
		}
		byMetric[an.MetricName] = append(byMetric[an.MetricName], an)
	}

	var out []rcamodel.MetricAnomaly
	suppressed := 0
	for _, metric := range order {
		group := byMetric[metric]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Severity.Weight() != group[j].Severity.Weight() {
				return group[i].Severity.Weight() > group[j].Severity.Weight()
			}
			if math.Abs(group[i].ZScore) != math.Abs(group[j].ZScore) {
				return math.Abs(group[i].ZScore) > math.Abs(group[j].ZScore)
			}
			return math.Abs(group[i].MADScore) > math.Abs(group[j].MADScore)
		})
		if len(group) > perMetricCap {
			suppressed += len(group) - perMetricCap
			group = group[:perMetricCap]
		}
		out = append(out, group...)
	}
	if suppressed > 0 {
		quality.SuppressionCounts["density_suppressed_metric_anomalies"] = suppressed
	}
	return out
}

// applyConfidenceGate implements the remaining two legs of spec §4.1
// stage 11: causes below the display confidence floor are dropped
// (unless doing so would empty the list), and if no surviving cause is
// corroborated by at least MinCorroborationSignals distinct signals, only
// the MaxRootCausesWithoutMultisignal highest-confidence causes survive.
// Every surviving cause is annotated with its corroboration summary,
// suppression diagnostics, and ranking score components.
func (a *Analyzer) applyConfidenceGate(in []ml.RankedCause, quality *rcamodel.AnalysisQuality) []ml.RankedCause {
	floor := math.Max(a.cfg.RCA.MinConfidenceDisplay, 0.10)

	filtered := make([]ml.RankedCause, 0, len(in))
	suppressedLowConfidence := 0
	for _, rc := range in {
		if rc.RootCause.Confidence < floor {
			suppressedLowConfidence++
			continue
		}
		filtered = append(filtered, rc)
	}
	if len(filtered) == 0 && len(in) > 0 {
		filtered = in
		suppressedLowConfidence = 0
	}
	if suppressedLowConfidence > 0 {
		quality.SuppressionCounts["low_confidence"] = suppressedLowConfidence
	}

	hasMultisignal := false
	for _, rc := range filtered {
		if len(distinctSignals(rc.RootCause.ContributingSignals)) >= a.cfg.Quality.MinCorroborationSignals {
			hasMultisignal = true
			break
		}
	}
	if !hasMultisignal && len(filtered) > a.cfg.Quality.MaxRootCausesWithoutMultisignal {
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].RootCause.Confidence > filtered[j].RootCause.Confidence })
		quality.SuppressionCounts["multisignal_requirement"] = len(filtered) - a.cfg.Quality.MaxRootCausesWithoutMultisignal
		filtered = filtered[:a.cfg.Quality.MaxRootCausesWithoutMultisignal]
	}

	for i := range filtered {
		rc := &filtered[i]
		signals := distinctSignals(rc.RootCause.ContributingSignals)
		rc.RootCause.CorroborationSummary = fmt.Sprintf("%d distinct signal(s): %v, ml_score=%.2f, final_score=%.2f", len(signals), signals, rc.MLScore, rc.FinalScore)
		rc.RootCause.SuppressionDiagnostics = []string{
			"gating_profile=" + a.cfg.Quality.GatingProfile,
			fmt.Sprintf("signal_count=%d", len(signals)),
			fmt.Sprintf("meets_min_corroboration_signals=%t", len(signals) >= a.cfg.Quality.MinCorroborationSignals),
		}
		components := map[string]float64{
			"rule_confidence": rc.RootCause.Confidence,
			"ml_score":        rc.MLScore,
			"final_score":     rc.FinalScore,
		}
		for name, v := range rc.FeatureImportance {
			components["feature_importance:"+name] = v
		}
		rc.RootCause.SelectionScoreComponents = components
	}
	return filtered
}

func distinctSignals(signals []rcamodel.Signal) []rcamodel.Signal {
	seen := map[rcamodel.Signal]struct{}{}
	var out []rcamodel.Signal
	for _, s := range signals {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// anomalyDensity reports the overall anomalies-per-metric-per-hour rate
// surfaced in the final report, independent of the per-metric cap applied
// above.
func anomalyDensity(anomalies []rcamodel.MetricAnomaly, req rcamodel.AnalyzeRequest) float64 {
	hours := req.Duration() / 3600
	if hours <= 0 {
		return 0
	}
	metrics := map[string]struct{}{}
	for _, a := range anomalies {
		metrics[a.MetricName] = struct{}{}
	}
	if len(metrics) == 0 {
		return 0
	}
	return round(float64(len(anomalies))/float64(len(metrics))/hours, 4)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
