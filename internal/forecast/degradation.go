// Copyright 2025 James Ross
package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// DegradationAnalyzer smooths a metric series with an EMA, fits an overall
// trend slope, and reports whether the series is degrading or recovering
// and whether that trend is accelerating (spec §4.2).
type DegradationAnalyzer struct {
	cfg config.Forecast
}

func NewDegradationAnalyzer(cfg config.Forecast) *DegradationAnalyzer {
	return &DegradationAnalyzer{cfg: cfg}
}

// Analyze returns nil when the series is too short or its degradation
// rate doesn't clear min_degradation_rate.
func (a *DegradationAnalyzer) Analyze(metric string, ts, vals []float64) *rcamodel.DegradationSignal {
	if len(vals) < a.cfg.DegradationMinLength {
		return nil
	}

	smoothed := ema(vals, a.cfg.EMAAlpha)
	window := ts[len(ts)-1] - ts[0]

	xs := linspace(0, 1, len(smoothed))
	_, overallSlope := stat.LinearRegression(xs, smoothed, nil, false)

	meanAbs := meanAbsolute(vals)
	volatility := stat.StdDev(vals, nil) / (meanAbs + 1e-9)
	acceleration := accelerationOf(smoothed)

	rate := math.Abs(overallSlope) / (meanAbs + 1e-9)
	if rate < a.cfg.MinDegradationRate {
		return nil
	}

	trend := "recovering"
	if overallSlope > 0 {
		trend = "degrading"
	}

	var sev rcamodel.Severity
	switch {
	case rate > a.cfg.DegradationThreshCritical || (rate > a.cfg.DegradationThreshHigh/1.5 && acceleration > 0):
		sev = rcamodel.SeverityCritical
	case rate > a.cfg.DegradationThreshHigh:
		sev = rcamodel.SeverityHigh
	case rate > a.cfg.DegradationThreshMedium:
		sev = rcamodel.SeverityMedium
	default:
		sev = rcamodel.SeverityLow
	}

	return &rcamodel.DegradationSignal{
		MetricName:      metric,
		DegradationRate: round(rate, 4),
		Volatility:      round(volatility, 4),
		Trend:           trend,
		WindowSeconds:   round(window, 1),
		Severity:        sev,
		IsAccelerating:  acceleration > 0 && overallSlope > 0,
	}
}

// ema computes a simple exponential moving average, seeded by the first
// value (matching the reference: no warm-up bias correction).
func ema(vals []float64, alpha float64) []float64 {
	out := make([]float64, len(vals))
	if len(vals) == 0 {
		return out
	}
	out[0] = vals[0]
	for i := 1; i < len(vals); i++ {
		out[i] = alpha*vals[i] + (1-alpha)*out[i-1]
	}
	return out
}

// accelerationOf compares the mean first-difference of the first half of
// the series against the second half; a positive result means the rate of
// change itself is increasing.
func accelerationOf(vals []float64) float64 {
	n := len(vals)
	if n < 4 {
		return 0
	}
	mid := n / 2
	firstHalf := meanDiff(vals[:mid])
	secondHalf := meanDiff(vals[mid:])
	return secondHalf - firstHalf
}

func meanDiff(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(vals); i++ {
		sum += vals[i] - vals[i-1]
	}
	return sum / float64(len(vals)-1)
}

func meanAbsolute(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}

func linspace(start, end float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}
