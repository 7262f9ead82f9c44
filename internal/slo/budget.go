// Copyright 2025 James Ross
package slo

import (
	"github.com/beobservant/becertain/internal/rcamodel"
)

// BudgetTracker reports a service's current error-budget consumption
// against its monthly SLO target (spec §4.4).
type BudgetTracker struct {
	monthMinutes float64
}

func NewBudgetTracker(monthMinutes float64) *BudgetTracker {
	return &BudgetTracker{monthMinutes: monthMinutes}
}

// RemainingBudget computes the service's current availability, the
// percentage of its monthly error budget already consumed, and the
// remaining allowed-downtime minutes.
func (b *BudgetTracker) RemainingBudget(service string, errorCounts, totalCounts []float64, targetAvailability float64) rcamodel.BudgetStatus {
	var total, errors float64
	for _, v := range totalCounts {
		total += v
	}
	for _, v := range errorCounts {
		errors += v
	}

	if total == 0 {
		return rcamodel.BudgetStatus{
			Service:             service,
			TargetAvailability:  targetAvailability,
			CurrentAvailability: 1.0,
			BudgetUsedPct:       0.0,
			RemainingMinutes:    round(b.monthMinutes*(1-targetAvailability), 1),
			OnTrack:             true,
		}
	}

	currentAvail := 1.0 - (errors / total)
	allowedDowntime := b.monthMinutes * (1.0 - targetAvailability)
	usedDowntime := b.monthMinutes * (errors / total)
	remaining := max(0.0, allowedDowntime-usedDowntime)
	budgetUsed := 100.0
	if allowedDowntime > 0 {
		budgetUsed = min(100.0, usedDowntime/allowedDowntime*100)
	}

	return rcamodel.BudgetStatus{
		Service:             service,
		TargetAvailability:  targetAvailability,
		CurrentAvailability: round(currentAvail, 6),
		BudgetUsedPct:       round(budgetUsed, 2),
		RemainingMinutes:    round(remaining, 1),
		OnTrack:             budgetUsed < 100.0,
	}
}
