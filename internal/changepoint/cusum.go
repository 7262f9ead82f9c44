// Copyright 2025 James Ross
package changepoint

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Detector finds CUSUM-driven level shifts in a metric series and
// classifies each shift as a spike, drop, shift, drift, or oscillation
// (spec §4.2 change-point detection).
type Detector struct {
	cfg config.Changepoint
}

func New(cfg config.Changepoint) *Detector {
	return &Detector{cfg: cfg}
}

// Detect scans (timestamps, values) for CUSUM excursions beyond
// thresholdSigma standard deviations, resetting the running sums after
// each reported change point. Contract: the running statistics are always
// scaled by sigma (the sigma-multiplier contract, spec §9 Open Question),
// never compared against a raw unscaled baseline.
func (d *Detector) Detect(metric string, timestamps, values []float64, thresholdSigma float64) []rcamodel.ChangePoint {
	n := len(values)
	if n < d.cfg.Window {
		return nil
	}

	mu := stat.Mean(values, nil)
	sigma := stat.StdDev(values, nil)
	if sigma == 0 {
		return nil
	}

	oscillating := oscillationIndices(values, d.cfg.Window, d.cfg.OscillationDensityCutoff)

	k := d.cfg.K * sigma
	h := thresholdSigma * sigma
	var cusumPos, cusumNeg float64

	results := make([]rcamodel.ChangePoint, 0, 4)
	for i := 1; i < n; i++ {
		cusumPos = math.Max(0, cusumPos+values[i]-mu-k)
		cusumNeg = math.Max(0, cusumNeg-values[i]+mu-k)

		if cusumPos > h || cusumNeg > h {
			before := windowMean(values, max(0, i-5), i)
			after := windowMean(values, i, min(n, i+5))

			var ctype rcamodel.ChangeType
			if oscillating[i] {
				ctype = rcamodel.ChangeOscillation
			} else {
				ctype = classify(before, after, sigma, d.cfg.RelativeCutoff)
			}

			results = append(results, rcamodel.ChangePoint{
				Index:       i,
				Timestamp:   timestamps[i],
				ValueBefore: round(before, 4),
				ValueAfter:  round(after, 4),
				Magnitude:   round(math.Abs(after-before)/sigma, 3),
				ChangeType:  ctype,
				MetricName:  metric,
			})
			cusumPos, cusumNeg = 0, 0
		}
	}
	return results
}

func classify(before, after, sigma, relativeCutoff float64) rcamodel.ChangeType {
	delta := after - before
	relative := math.Abs(delta) / (math.Abs(before) + 1e-9)
	if relative > relativeCutoff {
		if delta > 0 {
			return rcamodel.ChangeSpike
		}
		return rcamodel.ChangeDrop
	}
	if math.Abs(delta) > 2*sigma {
		return rcamodel.ChangeShift
	}
	return rcamodel.ChangeDrift
}

// oscillationIndices flags indices where the series' first difference
// repeatedly flips sign within a dense window, indicating oscillation
// rather than a directional change.
func oscillationIndices(values []float64, window int, densityCutoff float64) map[int]bool {
	n := len(values)
	out := map[int]bool{}
	if n < 3 {
		return out
	}
	diffs := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		diffs[i] = values[i+1] - values[i]
	}
	var flips []int
	for i := 1; i < len(diffs); i++ {
		if math.Abs(sign(diffs[i])-sign(diffs[i-1])) > 1 {
			flips = append(flips, i)
		}
	}
	if len(flips) < window/2 {
		return out
	}
	density := float64(len(flips)) / float64(n)
	if density > densityCutoff {
		for _, idx := range flips {
			out[idx] = true
		}
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func windowMean(values []float64, lo, hi int) float64 {
	if hi <= lo {
		return 0
	}
	return stat.Mean(values[lo:hi], nil)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
