// Copyright 2025 James Ross
package rca

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
	"github.com/beobservant/becertain/internal/topology"
)

var actionsByCategory = map[rcamodel.RcaCategory]string{
	rcamodel.CategoryDeployment:         "Rollback recent deployment for %s.",
	rcamodel.CategoryResourceExhaustion: "Check resource limits, scale horizontally or increase quotas.",
	rcamodel.CategoryDependencyFailure:  "Inspect downstream dependencies and circuit breakers.",
	rcamodel.CategoryTrafficSurge:       "Verify rate limits, auto-scaling triggers, and CDN caching.",
	rcamodel.CategoryErrorPropagation:   "Isolate %s and check recent changes.",
	rcamodel.CategorySloBurn:            "Immediate incident response; error budget critical.",
	rcamodel.CategoryUnknown:            "Review correlated signals and recent changes.",
}

func actionFor(category rcamodel.RcaCategory, service string) string {
	tmpl, ok := actionsByCategory[category]
	if !ok {
		return "Investigate correlated signals."
	}
	if service == "" {
		service = "affected service"
	}
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, service)
	}
	return tmpl
}

// Generator turns correlated events, error propagations, and log patterns
// into ranked root-cause hypotheses (spec §4.7 RCA hypothesis
// generation).
type Generator struct {
	cfg config.RCA
}

func NewGenerator(cfg config.RCA) *Generator {
	return &Generator{cfg: cfg}
}

// Generate builds one RootCause per qualifying correlated event, per
// error-propagation finding, and (at most) one aggregate hypothesis for
// high-severity log patterns; results are sorted by confidence, then
// filtered to min_confidence_display. If every hypothesis falls below the
// display floor, the single strongest one is still returned, flagged as
// low-confidence, so a run never reports zero causes when it found
// something (spec §4.7, §4.8).
func (g *Generator) Generate(
	logPatterns []rcamodel.LogPattern,
	errorPropagation []rcamodel.ErrorPropagation,
	correlatedEvents []rcamodel.CorrelatedEvent,
	graph *topology.DependencyGraph,
	deployments []rcamodel.DeploymentEvent,
) []rcamodel.RootCause {
	var causes []rcamodel.RootCause

	eventThreshold := g.cfg.EventConfidenceThreshold
	scoreCap := g.cfg.ScoreCap
	if scoreCap == 0 {
		scoreCap = 0.99
	}
	deployWindow := g.cfg.DeployWindowSeconds
	if deployWindow == 0 {
		deployWindow = 300
	}
	sliceLimit := g.cfg.SliceLimit
	if sliceLimit == 0 {
		sliceLimit = 2
	}

	for _, event := range correlatedEvents {
		if event.Confidence < eventThreshold {
			continue
		}

		category := categorize(g.cfg, event, deployments)
		baseScore := scoreCorrelatedEvent(g.cfg, event)
		deployScore := scoreDeploymentCorrelation(event.Window.Start, deployments, deployWindow)
		confidence := round(math.Min(scoreCap, baseScore+deployScore*0.2), 3)

		var deployEvent *rcamodel.DeploymentEvent
		var closestLag = math.MaxFloat64
		for i, d := range deployments {
			lag := math.Abs(d.Timestamp - event.Window.Start)
			if lag <= deployWindow && lag < closestLag {
				closestLag = lag
				deployEvent = &deployments[i]
			}
		}

		var affected []string
		rootSvc := ""
		if len(event.ServiceLatencies) > 0 && graph != nil {
			rootSvc = event.ServiceLatencies[0].Service
			blast := graph.BlastRadiusOf(rootSvc, g.cfg.SliceLimit+3)
			affected = blast.AffectedDownstream
		}

		metricNames := uniqueMetricNames(event.MetricAnomalies, sliceLimit)
		svcNames := uniqueServiceNames(event.ServiceLatencies, sliceLimit)

		var parts []string
		if deployEvent != nil {
			parts = append(parts, fmt.Sprintf("deployment of %s v%s", deployEvent.Service, deployEvent.Version))
		}
		if len(metricNames) > 0 {
			parts = append(parts, fmt.Sprintf("metric anomaly in %s", strings.Join(metricNames, ", ")))
		}
		if len(svcNames) > 0 {
			parts = append(parts, fmt.Sprintf("latency spike in %s", strings.Join(svcNames, ", ")))
		}
		if len(event.LogBursts) > 0 {
			parts = append(parts, fmt.Sprintf("%d log burst(s)", len(event.LogBursts)))
		}
		body := "multi-signal event"
		if len(parts) > 0 {
			body = strings.Join(parts, " + ")
		}

		causes = append(causes, rcamodel.RootCause{
			Hypothesis:        fmt.Sprintf("[%s] Correlated incident: %s", category, body),
			Confidence:        confidence,
			Severity:          rcamodel.SeverityFromScore(confidence),
			Category:          category,
			Evidence: []string{
				fmt.Sprintf("metrics=%d", len(event.MetricAnomalies)),
				fmt.Sprintf("log_bursts=%d", len(event.LogBursts)),
				fmt.Sprintf("latency_services=%d", len(event.ServiceLatencies)),
			},
			ContributingSignals: signalsFromEvent(event, sliceLimit),
			AffectedServices:    affected,
			RecommendedAction:   actionFor(category, rootSvc),
			Deployment:          deployEvent,
		})
	}

	for _, prop := range errorPropagation {
		conf := scoreErrorPropagation(g.cfg, []rcamodel.ErrorPropagation{prop})
		var upstream []string
		if graph != nil {
			upstream = graph.FindUpstreamRoots(prop.SourceService)
		}
		allAffected := uniqueStrings(append(append([]string{}, upstream...), prop.AffectedServices...))

		preview := prop.AffectedServices
		if len(preview) > 3 {
			preview = preview[:3]
		}
		causes = append(causes, rcamodel.RootCause{
			Hypothesis:          fmt.Sprintf("[error_propagation] Errors originating from %s, cascading to %s", prop.SourceService, strings.Join(preview, ", ")),
			Confidence:          conf,
			Severity:            rcamodel.SeverityHigh,
			Category:            rcamodel.CategoryErrorPropagation,
			ContributingSignals: []rcamodel.Signal{rcamodel.SignalTraces},
			AffectedServices:    allAffected,
			RecommendedAction:   actionFor(rcamodel.CategoryErrorPropagation, prop.SourceService),
		})
	}

	severityThreshold := g.cfg.SeverityWeightThreshold
	if severityThreshold == 0 {
		severityThreshold = 3
	}
	var critical []rcamodel.LogPattern
	for _, p := range logPatterns {
		if p.Severity.Weight() >= severityThreshold {
			critical = append(critical, p)
		}
	}
	if len(critical) > 0 {
		logPatternScore := g.cfg.LogPatternScore
		if logPatternScore == 0 {
			logPatternScore = 0.6
		}
		sample := critical[0].Pattern
		if len(sample) > 80 {
			sample = sample[:80]
		}
		var signals []rcamodel.Signal
		for i := 0; i < len(critical) && i < 3; i++ {
			signals = append(signals, rcamodel.SignalLogs)
		}
		causes = append(causes, rcamodel.RootCause{
			Hypothesis:          fmt.Sprintf("[log_pattern] %d critical pattern(s): %s", len(critical), sample),
			Confidence:          logPatternScore,
			Severity:            rcamodel.SeverityHigh,
			Category:            rcamodel.CategoryUnknown,
			ContributingSignals: signals,
			RecommendedAction:   "Review high-severity log patterns for error root cause.",
		})
	}

	sort.SliceStable(causes, func(i, j int) bool {
		return causes[i].Confidence > causes[j].Confidence
	})

	minConf := g.cfg.MinConfidenceDisplay
	var filtered []rcamodel.RootCause
	for _, c := range causes {
		if c.Confidence >= minConf {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}
	if len(causes) > 0 {
		top := causes[0]
		top.Hypothesis = "[low_confidence] " + top.Hypothesis
		return []rcamodel.RootCause{top}
	}
	return causes
}

func signalsFromEvent(event rcamodel.CorrelatedEvent, limit int) []rcamodel.Signal {
	var signals []rcamodel.Signal
	if len(uniqueMetricNames(event.MetricAnomalies, limit+1)) > 0 {
		signals = append(signals, rcamodel.SignalMetrics)
	}
	if len(event.LogBursts) > 0 {
		signals = append(signals, rcamodel.SignalLogs)
	}
	if len(event.ServiceLatencies) > 0 {
		signals = append(signals, rcamodel.SignalTraces)
	}
	if len(signals) == 0 {
		return []rcamodel.Signal{rcamodel.SignalMetrics}
	}
	return signals
}

func uniqueMetricNames(anomalies []rcamodel.MetricAnomaly, limit int) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range anomalies {
		if a.MetricName == "" {
			continue
		}
		if _, ok := seen[a.MetricName]; ok {
			continue
		}
		seen[a.MetricName] = struct{}{}
		names = append(names, a.MetricName)
		if len(names) >= limit {
			break
		}
	}
	return names
}

func uniqueServiceNames(latencies []rcamodel.ServiceLatency, limit int) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, l := range latencies {
		if l.Service == "" {
			continue
		}
		if _, ok := seen[l.Service]; ok {
			continue
		}
		seen[l.Service] = struct{}{}
		names = append(names, l.Service)
		if len(names) >= limit {
			break
		}
	}
	return names
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
