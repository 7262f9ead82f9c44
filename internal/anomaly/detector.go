// Copyright 2025 James Ross
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Detector runs the z-score/MAD/CUSUM/isolation-score consensus anomaly
// detector over a single metric series (spec §4.2).
type Detector struct {
	cfg config.AnomalyDetector
}

func New(cfg config.AnomalyDetector) *Detector {
	return &Detector{cfg: cfg}
}

// Detect flags out-of-band samples in one metric's (timestamps, values)
// series. sensitivity narrows or widens the isolation-score contamination
// the same way the Python reference scales it: higher sensitivity means a
// smaller expected anomaly fraction.
func (d *Detector) Detect(metric string, timestamps, values []float64, sensitivity float64) []rcamodel.MetricAnomaly {
	n := len(values)
	if n < d.cfg.MinSamples {
		return nil
	}

	clean := finiteValues(values)
	if len(clean) < d.cfg.MinSamples {
		return nil
	}

	mean, std := stat.MeanStdDev(clean, nil)
	if std == 0 {
		return nil
	}

	sensitivity = math.Max(sensitivity, d.cfg.MinSensitivity)
	contamination := clampf(d.cfg.ContaminationDivisor/sensitivity, d.cfg.ContaminationMin, d.cfg.ContaminationMax)

	madScores := madScores(values, d.cfg.MADScale)
	cusumFlags := cusumFlags(values, mean, std, d.cfg.CUSUMK, d.cfg.CUSUMThreshold)
	isoScores := isolationScores(values, mean, std, contamination)

	sortedClean := append([]float64(nil), clean...)
	sort.Float64s(sortedClean)
	p5 := stat.Quantile(d.cfg.PercentileLow/100, stat.Empirical, sortedClean, nil)
	p95 := stat.Quantile(d.cfg.PercentileHigh/100, stat.Empirical, sortedClean, nil)

	slope := trendSlope(clean) / std // standard deviations per sample

	anomalies := make([]rcamodel.MetricAnomaly, 0, 8)
	for i := 0; i < n; i++ {
		v := values[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		z := (v - mean) / std
		m := madScores[i]
		iso := isoScores[i]
		flagged := math.Abs(z) >= d.cfg.ZScoreThreshold ||
			math.Abs(m) >= d.cfg.MADThreshold ||
			iso.outlier ||
			cusumFlags[i]
		if !flagged {
			continue
		}

		sev := d.severity(z, m, iso.outlier)
		ctype := changeType(z, slope, d.cfg.DriftSlopeThreshold)

		anomalies = append(anomalies, rcamodel.MetricAnomaly{
			MetricName:     metric,
			Timestamp:      timestamps[i],
			Value:          v,
			ChangeType:     ctype,
			ZScore:         round(z, 3),
			MADScore:       round(m, 3),
			IsolationScore: round(iso.score, 4),
			ExpectedRange:  rcamodel.Range{Low: round(p5, 4), High: round(p95, 4)},
			Severity:       sev,
			Description: fmt.Sprintf("%s: %s of %.4g (z=%+.1f, MAD=%+.1f, expected=[%.4g, %.4g])",
				metric, ctype, v, z, m, p5, p95),
		})
	}
	return anomalies
}

// severity blends the three detector scores additively, per the tier
// tables in config (spec §4.2 step 6). Capped at 1.0 before mapping onto
// the fixed Severity bands.
func (d *Detector) severity(z, mad float64, isoOutlier bool) rcamodel.Severity {
	score := 0.0
	az, am := math.Abs(z), math.Abs(mad)
	for _, tier := range d.cfg.ZThresholds {
		if az >= tier.Threshold {
			score += tier.Score
			break
		}
	}
	for _, tier := range d.cfg.MADThresholds {
		if am >= tier.Threshold {
			score += tier.Score
			break
		}
	}
	if isoOutlier {
		score += d.cfg.IsoWeight
	}
	if score > 1.0 {
		score = 1.0
	}
	return rcamodel.SeverityFromScore(score)
}

func changeType(z, slope, driftThreshold float64) rcamodel.ChangeType {
	if math.Abs(slope) > driftThreshold {
		return rcamodel.ChangeDrift
	}
	if z > 0 {
		return rcamodel.ChangeSpike
	}
	if z < 0 {
		return rcamodel.ChangeDrop
	}
	return rcamodel.ChangeShift
}

func madScores(values []float64, scale float64) []float64 {
	clean := finiteValues(values)
	if len(clean) == 0 {
		return make([]float64, len(values))
	}
	sorted := append([]float64(nil), clean...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	abs := make([]float64, len(clean))
	for i, v := range clean {
		abs[i] = math.Abs(v - median)
	}
	sort.Float64s(abs)
	mad := stat.Quantile(0.5, stat.Empirical, abs, nil)

	out := make([]float64, len(values))
	if mad == 0 {
		return out
	}
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		out[i] = scale * (v - median) / mad
	}
	return out
}

// cusumFlags implements the two-sided CUSUM change detector using the
// scale-invariant sigma-multiplier contract: the running sums are
// normalized by sigma before comparison against the configured threshold.
// This deliberately does not reproduce the original_source bug where an
// unscaled baseline.std leaked into the comparison (spec §9 Open Question).
func cusumFlags(values []float64, mean, sigma, k, threshold float64) []bool {
	n := len(values)
	flags := make([]bool, n)
	if sigma == 0 {
		return flags
	}
	normed := make([]float64, n)
	for i, v := range values {
		normed[i] = (v - mean) / sigma
	}
	var pos, neg float64
	for i := 1; i < n; i++ {
		pos = math.Max(0, pos+normed[i]-k)
		neg = math.Max(0, neg-normed[i]-k)
		flags[i] = pos > threshold || neg > threshold
	}
	return flags
}

type isoResult struct {
	score   float64
	outlier bool
}

// isolationScores approximates an isolation-forest anomaly score. No pack
// example or ecosystem library ships a Go isolation forest, so this is a
// deliberate standard-library fallback: it scores each point by its
// normalized distance from the median, which shares the isolation forest's
// core property (points far from the bulk of the distribution isolate in
// fewer splits) without requiring the randomized-tree machinery.
func isolationScores(values []float64, mean, std, contamination float64) []isoResult {
	n := len(values)
	out := make([]isoResult, n)
	if std == 0 {
		return out
	}
	dist := make([]float64, n)
	for i, v := range values {
		if math.IsNaN(v) {
			dist[i] = 0
			continue
		}
		dist[i] = math.Abs(v-mean) / std
	}
	sorted := append([]float64(nil), dist...)
	sort.Float64s(sorted)
	cutIdx := int(math.Ceil(float64(n) * (1 - contamination)))
	if cutIdx >= n {
		cutIdx = n - 1
	}
	if cutIdx < 0 {
		cutIdx = 0
	}
	cut := sorted[cutIdx]
	for i, dv := range dist {
		out[i] = isoResult{score: -dv, outlier: dv > cut && dv > 0}
	}
	return out
}

// trendSlope fits an ordinary least squares line over the series index and
// returns its slope, used to distinguish drift from spike/drop.
func trendSlope(clean []float64) float64 {
	n := len(clean)
	if n < 2 {
		return 0
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, clean, nil, false)
	return slope
}

func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func clampf(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
