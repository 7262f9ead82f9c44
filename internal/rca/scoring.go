// Copyright 2025 James Ross
package rca

import (
	"math"
	"strings"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// scoreDeploymentCorrelation returns how strongly a nearby deployment
// correlates with an anomaly timestamp: 1.0 for a deploy at the same
// instant, decaying linearly to 0 at window_seconds lag (spec §4.7, §4.9).
func scoreDeploymentCorrelation(anomalyTS float64, deployments []rcamodel.DeploymentEvent, windowSeconds float64) float64 {
	var closestLag float64 = -1
	for _, d := range deployments {
		lag := math.Abs(d.Timestamp - anomalyTS)
		if lag <= windowSeconds && (closestLag < 0 || lag < closestLag) {
			closestLag = lag
		}
	}
	if closestLag < 0 {
		return 0.0
	}
	return round(math.Max(0.0, 1.0-closestLag/windowSeconds), 3)
}

// scoreErrorPropagation rewards hypotheses whose error cascade reaches
// more downstream services, capped at error_propagation_max.
func scoreErrorPropagation(cfg config.RCA, propagations []rcamodel.ErrorPropagation) float64 {
	if len(propagations) == 0 {
		return 0.0
	}
	var affected int
	for _, p := range propagations {
		affected += len(p.AffectedServices)
	}
	cap := cfg.ErrorPropagationMax
	if cap == 0 {
		cap = 0.95
	}
	return round(math.Min(cap, 0.5+float64(affected)*0.1), 3)
}

// scoreCorrelatedEvent blends a capped per-signal-type contribution into
// a single confidence-like score for the event.
func scoreCorrelatedEvent(cfg config.RCA, event rcamodel.CorrelatedEvent) float64 {
	weights := cfg.Weights
	metricWeight := weights["metrics"]
	logWeight := weights["logs"]
	traceWeight := weights["traces"]

	sum := metricWeight*math.Min(1.0, float64(len(event.MetricAnomalies))) +
		logWeight*math.Min(1.0, float64(len(event.LogBursts))) +
		traceWeight*math.Min(1.0, float64(len(event.ServiceLatencies)))
	return round(math.Min(1.0, sum), 3)
}

// categorize picks the RCA category that best explains a correlated
// event's signal composition, checking deployment correlation first, then
// the resource-exhaustion keyword heuristic over the involved metric names,
// then service-latency presence, then the traffic-surge keyword heuristic
// (spec §4.7).
func categorize(cfg config.RCA, event rcamodel.CorrelatedEvent, deployments []rcamodel.DeploymentEvent) rcamodel.RcaCategory {
	deployWindow := cfg.DeployWindowSeconds
	if deployWindow == 0 {
		deployWindow = 300
	}
	deployScore := 0.0
	if len(deployments) > 0 {
		deployScore = scoreDeploymentCorrelation(event.Window.Start, deployments, deployWindow)
	}
	cutoff := cfg.DeployScoreCutoff
	if cutoff == 0 {
		cutoff = 0.65
	}
	if deployScore > cutoff {
		return rcamodel.CategoryDeployment
	}

	var hasMemory, hasCPU, hasTraffic bool
	for _, a := range event.MetricAnomalies {
		name := strings.ToLower(a.MetricName)
		if strings.Contains(name, "memory") || strings.Contains(name, "mem") {
			hasMemory = true
		}
		if strings.Contains(name, "cpu") {
			hasCPU = true
		}
		if strings.Contains(name, "request") || strings.Contains(name, "rate") {
			hasTraffic = true
		}
	}
	if hasMemory || hasCPU {
		return rcamodel.CategoryResourceExhaustion
	}
	if len(event.ServiceLatencies) > 0 {
		return rcamodel.CategoryDependencyFailure
	}
	if hasTraffic {
		return rcamodel.CategoryTrafficSurge
	}
	return rcamodel.CategoryUnknown
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
