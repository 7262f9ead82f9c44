// Copyright 2025 James Ross
package analyzer

import (
	"fmt"
	"strings"

	"github.com/beobservant/becertain/internal/rcamodel"
)

// buildSummary implements spec §4.1 stage 12's human-readable rollup,
// grounded on original_source/engine/analyzer.py's _summary(): it groups
// metric anomalies purely for a display count (the same grouping
// mechanism internal/dedup.Grouper uses for its time-windowed summaries),
// then lists every other non-empty finding category.
func (a *Analyzer) buildSummary(report *rcamodel.AnalysisReport, forecasts []rcamodel.TrajectoryForecast, degradations []rcamodel.DegradationSignal) string {
	groups := a.grouper.GroupMetricAnomalies(report.MetricAnomalies, true)

	var parts []string
	if len(groups) > 0 {
		parts = append(parts, fmt.Sprintf("%d metric anomaly group(s) across %d raw anomalies", len(groups), len(report.MetricAnomalies)))
	}
	if n := len(report.ChangePoints); n > 0 {
		parts = append(parts, fmt.Sprintf("%d change point(s)", n))
	}
	if n := len(report.LogBursts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d log burst(s)", n))
	}
	if n := len(report.LogPatterns); n > 0 {
		parts = append(parts, fmt.Sprintf("%d notable log pattern(s)", n))
	}
	if n := len(report.ServiceLatencies); n > 0 {
		parts = append(parts, fmt.Sprintf("%d service latency finding(s)", n))
	}
	if n := len(report.ErrorPropagations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d error propagation finding(s)", n))
	}
	if n := len(report.SloBurnAlerts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d SLO burn alert(s)", n))
	}
	if n := len(report.RankedCauses); n > 0 {
		parts = append(parts, fmt.Sprintf("%d ranked root cause(s)", n))
	}
	if n := len(forecasts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d trajectory forecast(s)", n))
	}
	if n := len(degradations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d degradation signal(s)", n))
	}

	if len(parts) == 0 {
		return fmt.Sprintf("no notable findings for tenant %s in the requested window", report.TenantID)
	}
	return fmt.Sprintf("tenant %s (%s severity): %s", report.TenantID, report.OverallSeverity, strings.Join(parts, "; "))
}
