// Copyright 2025 James Ross
package ml

import (
	"math/rand"
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

var featureNames = []string{
	"rule_confidence", "severity_weight", "signal_count",
	"blast_radius", "has_deployment", "metric_anomaly_count",
	"log_burst_count", "latency_count", "correlation_confidence",
}

// RankedCause is a root cause augmented with the ML-assisted score the
// orchestrator blends into its final ranking (spec §4.7).
type RankedCause struct {
	RootCause         rcamodel.RootCause
	MLScore           float64
	FinalScore        float64
	FeatureImportance map[string]float64
}

// Ranker blends each hypothesis's rule-based confidence with a small
// random-forest score trained on the batch's own feature vectors, then
// sorts by the blended final score (spec §4.7 hypothesis ranking).
type Ranker struct {
	cfg config.Ranking
}

func NewRanker(cfg config.Ranking) *Ranker {
	return &Ranker{cfg: cfg}
}

// Rank ranks causes, optionally corroborated against a parallel slice of
// CorrelatedEvents (events[i] backs causes[i]; pass nil entries for
// causes with no matching correlated event).
func (r *Ranker) Rank(causes []rcamodel.RootCause, events []*rcamodel.CorrelatedEvent) []RankedCause {
	if len(causes) == 0 {
		return nil
	}

	features := make([][]float64, len(causes))
	for i, c := range causes {
		var ev *rcamodel.CorrelatedEvent
		if i < len(events) {
			ev = events[i]
		}
		features[i] = extractFeatures(r.cfg, c, ev)
	}

	mlScores, importances := r.scoreBatch(causes, features)

	confidenceBlend := r.cfg.ConfidenceBlend
	mlBlend := r.cfg.MLBlend
	if confidenceBlend == 0 && mlBlend == 0 {
		confidenceBlend, mlBlend = 0.6, 0.4
	}

	results := make([]RankedCause, len(causes))
	for i, c := range causes {
		final := round(confidenceBlend*c.Confidence+mlBlend*mlScores[i], 3)
		results[i] = RankedCause{
			RootCause:         c,
			MLScore:           round(mlScores[i], 3),
			FinalScore:        final,
			FeatureImportance: importances,
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
	return results
}

func extractFeatures(cfg config.Ranking, cause rcamodel.RootCause, ev *rcamodel.CorrelatedEvent) []float64 {
	severityDivisor := nonZero(cfg.SeverityDivisor, 8.0)
	signalDivisor := nonZero(cfg.SignalDivisor, 10.0)
	eventCountDivisor := nonZero(cfg.EventCountDivisor, 5.0)

	hasDeployment := 0.0
	if cause.Deployment != nil {
		hasDeployment = 1.0
	}

	var maCount, lbCount, slCount, evConfidence float64
	if ev != nil {
		maCount = float64(len(ev.MetricAnomalies)) / eventCountDivisor
		lbCount = float64(len(ev.LogBursts)) / eventCountDivisor
		slCount = float64(len(ev.ServiceLatencies)) / eventCountDivisor
		evConfidence = ev.Confidence
	}

	return []float64{
		cause.Confidence,
		float64(cause.Severity.Weight()) / severityDivisor,
		float64(len(cause.ContributingSignals)) / signalDivisor,
		float64(len(cause.AffectedServices)) / signalDivisor,
		hasDeployment,
		maCount,
		lbCount,
		slCount,
		evConfidence,
	}
}

// scoreBatch trains a random forest on the batch's own confidence-derived
// labels when there are enough rows and both classes are present,
// otherwise falls back to using rule confidence directly as the ML score
// (mirroring the reference's sklearn-unavailable / too-small-batch path).
func (r *Ranker) scoreBatch(causes []rcamodel.RootCause, features [][]float64) ([]float64, map[string]float64) {
	uniformImportance := make(map[string]float64, len(featureNames))
	for _, name := range featureNames {
		uniformImportance[name] = 1.0 / float64(len(featureNames))
	}

	if len(causes) < 4 {
		return fallbackScores(causes), uniformImportance
	}

	labelThreshold := r.cfg.LabelThreshold
	if labelThreshold == 0 {
		labelThreshold = 0.5
	}
	labels := make([]int, len(causes))
	classSeen := make(map[int]bool)
	for i, c := range causes {
		if c.Confidence >= labelThreshold {
			labels[i] = 1
		}
		classSeen[labels[i]] = true
	}
	if len(classSeen) < 2 {
		return fallbackScores(causes), uniformImportance
	}

	numTrees := r.cfg.RFEstimators
	if numTrees <= 0 {
		numTrees = 50
	}
	maxDepth := r.cfg.RFMaxDepth
	if maxDepth <= 0 {
		maxDepth = 4
	}
	rng := rand.New(rand.NewSource(r.cfg.RFRandomState))

	rf := trainRandomForest(features, labels, numTrees, maxDepth, rng)

	scores := make([]float64, len(causes))
	for i, f := range features {
		scores[i] = rf.predictProba(f)
	}

	var totalSplits int
	for _, c := range rf.featureCounts {
		totalSplits += c
	}
	importance := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		if totalSplits == 0 {
			importance[name] = 1.0 / float64(len(featureNames))
			continue
		}
		importance[name] = float64(rf.featureCounts[i]) / float64(totalSplits)
	}

	return scores, importance
}

func fallbackScores(causes []rcamodel.RootCause) []float64 {
	scores := make([]float64, len(causes))
	for i, c := range causes {
		scores[i] = c.Confidence
	}
	return scores
}

func nonZero(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func round(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	r := v * scale
	if r >= 0 {
		r += 0.5
	} else {
		r -= 0.5
	}
	return float64(int64(r)) / scale
}
