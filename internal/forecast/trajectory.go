// Copyright 2025 James Ross
package forecast

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// TrajectoryForecaster fits a linear trend to a metric series and, when
// the fit is confident enough, projects when the metric will cross a
// breach threshold within the requested horizon (spec §4.2).
type TrajectoryForecaster struct {
	cfg config.Forecast
}

func NewTrajectoryForecaster(cfg config.Forecast) *TrajectoryForecaster {
	return &TrajectoryForecaster{cfg: cfg}
}

// Forecast returns nil when the series is too short, the linear fit is too
// weak (R² below threshold or zero slope), or the projected horizon value
// doesn't meaningfully approach the threshold.
func (f *TrajectoryForecaster) Forecast(metric string, ts, vals []float64, threshold, horizonSeconds float64) *rcamodel.TrajectoryForecast {
	if len(vals) < f.cfg.TrajectoryMinLength {
		return nil
	}

	t0 := ts[0]
	tNorm := make([]float64, len(ts))
	for i, t := range ts {
		tNorm[i] = t - t0
	}

	intercept, slope := stat.LinearRegression(tNorm, vals, nil, false)
	r2 := stat.RSquared(tNorm, vals, nil, slope, intercept)

	if r2 < f.cfg.TrajectoryR2Threshold || slope == 0 {
		return nil
	}

	nowOffset := ts[len(ts)-1] - t0
	current := slope*nowOffset + intercept
	predictedAtHorizon := slope*(nowOffset+horizonSeconds) + intercept

	var timeToThreshold *float64
	switch {
	case slope > 0 && current < threshold:
		v := (threshold - current) / slope
		timeToThreshold = &v
	case slope < 0 && current > threshold:
		v := (current - threshold) / math.Abs(slope)
		timeToThreshold = &v
	}

	willBreach := timeToThreshold != nil && *timeToThreshold <= horizonSeconds
	if !willBreach {
		relative := math.Abs(predictedAtHorizon-threshold) / (math.Abs(threshold) + 1e-9)
		if relative > f.cfg.TrajectoryRatioThreshold {
			return nil
		}
	}

	confidence := math.Min(0.99, r2*(1.0-math.Min(1.0, math.Abs(slope)/(math.Abs(current)+1e-9))))

	var sev rcamodel.Severity
	switch {
	case timeToThreshold != nil && *timeToThreshold < 300:
		sev = rcamodel.SeverityCritical
	case timeToThreshold != nil && *timeToThreshold < 900:
		sev = rcamodel.SeverityHigh
	case willBreach:
		sev = rcamodel.SeverityMedium
	default:
		sev = rcamodel.SeverityLow
	}

	var roundedTTT *float64
	if timeToThreshold != nil {
		v := round(*timeToThreshold, 1)
		roundedTTT = &v
	}

	return &rcamodel.TrajectoryForecast{
		MetricName:              metric,
		CurrentValue:            round(current, 4),
		SlopePerSecond:          round(slope, 6),
		PredictedValueAtHorizon: round(predictedAtHorizon, 4),
		TimeToThresholdSeconds:  roundedTTT,
		BreachThreshold:         threshold,
		Confidence:              round(confidence, 3),
		Severity:                sev,
	}
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
