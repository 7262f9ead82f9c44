// Copyright 2025 James Ross
package analyzer

import (
	"github.com/beobservant/becertain/internal/ml"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// capRankedCauses truncates ml.Ranker's already-sorted output to the
// configured cap (spec §4.1 stage 10); no re-sort needed since Rank
// returns results ordered by descending FinalScore.
func capRankedCauses(in []ml.RankedCause, max int, r *run) []ml.RankedCause {
	if max <= 0 || len(in) <= max {
		return in
	}
	r.warn("truncated ranked root causes from %d to %d", len(in), max)
	return in[:max]
}

func toRankedCauses(in []ml.RankedCause) []rcamodel.RankedCause {
	out := make([]rcamodel.RankedCause, len(in))
	for i, rc := range in {
		out[i] = rcamodel.RankedCause{
			RootCause:         rc.RootCause,
			MLScore:           rc.MLScore,
			FinalScore:        rc.FinalScore,
			FeatureImportance: rc.FeatureImportance,
		}
	}
	return out
}
