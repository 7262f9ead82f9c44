// Copyright 2025 James Ross
package causal

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// BayesianScore is one RCA category's posterior probability given the
// observed evidence features (spec §4.7 hypothesis scoring).
type BayesianScore struct {
	Category   rcamodel.RcaCategory `json:"category"`
	Posterior  float64              `json:"posterior"`
	Prior      float64              `json:"prior"`
	Likelihood float64              `json:"likelihood"`
}

// Evidence is the boolean feature vector a run's findings project onto,
// used to score each RCA category's posterior.
type Evidence struct {
	HasDeploymentEvent   bool
	HasMetricSpike       bool
	HasLogBurst          bool
	HasLatencySpike      bool
	HasErrorPropagation  bool
}

func (e Evidence) asMap() map[string]bool {
	return map[string]bool{
		"has_deployment_event":   e.HasDeploymentEvent,
		"has_metric_spike":       e.HasMetricSpike,
		"has_log_burst":          e.HasLogBurst,
		"has_latency_spike":      e.HasLatencySpike,
		"has_error_propagation":  e.HasErrorPropagation,
	}
}

// BayesianScorer computes a posterior distribution over RcaCategory given
// evidence, using tenant-agnostic priors and feature likelihoods from
// config (spec §4.7).
type BayesianScorer struct {
	cfg config.Causal
}

func NewBayesianScorer(cfg config.Causal) *BayesianScorer {
	return &BayesianScorer{cfg: cfg}
}

// Score returns a BayesianScore for every configured category, sorted by
// descending posterior.
func (b *BayesianScorer) Score(ev Evidence) []BayesianScore {
	evidence := ev.asMap()
	defaultProb := b.cfg.BayesianDefaultFeatureProb
	if defaultProb <= 0 {
		defaultProb = 0.5
	}

	categories := rcamodel.AllCategories()
	rawPosteriors := make(map[rcamodel.RcaCategory]float64, len(categories))

	for _, cat := range categories {
		prior, ok := b.cfg.BayesianPriors[string(cat)]
		if !ok {
			continue
		}
		likelihoods := b.cfg.BayesianLikelihoods[string(cat)]
		likelihood := 1.0
		for feature, present := range evidence {
			p, ok := likelihoods[feature]
			if !ok {
				p = defaultProb
			}
			if present {
				likelihood *= p
			} else {
				likelihood *= 1.0 - p
			}
		}
		rawPosteriors[cat] = prior * likelihood
	}

	var total float64
	for _, raw := range rawPosteriors {
		total += raw
	}
	if total == 0 {
		total = 1.0
	}

	results := make([]BayesianScore, 0, len(rawPosteriors))
	for cat, raw := range rawPosteriors {
		prior := b.cfg.BayesianPriors[string(cat)]
		likelihood := 0.0
		if prior != 0 {
			likelihood = raw / prior
		}
		results = append(results, BayesianScore{
			Category:   cat,
			Posterior:  round(raw/total, 4),
			Prior:      round(prior, 4),
			Likelihood: round(likelihood, 4),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Posterior > results[j].Posterior
	})
	return results
}
