// Copyright 2025 James Ross
package slo

import (
	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// BurnEvaluator checks a service's error/total counts against the
// configured burn-rate windows (1h/critical, 6h/high, 1d/medium,
// 3d/low), reporting the single highest-severity window whose burn rate
// clears its threshold (spec §4.4, §8 scenario 4).
type BurnEvaluator struct {
	cfg config.SLO
}

func NewBurnEvaluator(cfg config.SLO) *BurnEvaluator {
	return &BurnEvaluator{cfg: cfg}
}

// Evaluate computes the observed error rate over the full (errorCounts,
// totalCounts, ts) sample, converts it into a burn rate relative to the
// allowed error budget for targetAvailability, and returns an alert for
// the first (shortest, most severe) window whose duration coverage and
// burn-rate threshold are both satisfied.
func (e *BurnEvaluator) Evaluate(service string, errorCounts, totalCounts, ts []float64, targetAvailability float64) []rcamodel.SloBurnAlert {
	if len(errorCounts) == 0 || len(totalCounts) == 0 || len(ts) < 2 {
		return nil
	}

	duration := ts[len(ts)-1] - ts[0]
	var total, errors float64
	for _, v := range totalCounts {
		total += v
	}
	for _, v := range errorCounts {
		errors += v
	}
	if total == 0 {
		return nil
	}

	errorRate := errors / total
	allowedErrorRate := 1.0 - targetAvailability
	if allowedErrorRate <= 0 {
		return nil
	}
	burnRate := errorRate / allowedErrorRate

	monthSeconds := e.cfg.MonthMinutes * 60
	var alerts []rcamodel.SloBurnAlert
	for _, w := range e.cfg.BurnWindows {
		if duration < w.Seconds*0.5 {
			continue
		}
		if burnRate >= w.Threshold {
			consumed := min(100.0, (burnRate*duration)/monthSeconds*100)
			alerts = append(alerts, rcamodel.SloBurnAlert{
				Service:           service,
				WindowLabel:       w.Label,
				ErrorRate:         round(errorRate, 6),
				BurnRate:          round(burnRate, 3),
				BudgetConsumedPct: round(consumed, 2),
				Severity:          rcamodel.Severity(w.Severity),
			})
			break
		}
	}
	return alerts
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
