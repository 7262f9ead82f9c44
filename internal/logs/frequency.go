// Copyright 2025 James Ross
package logs

import (
	"sort"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Entry is one log line with its Unix-second timestamp.
type Entry struct {
	Timestamp float64
	Line      string
}

// BurstDetector finds intervals where log volume rose well above its
// baseline rate over the analysis window (spec §4.3, §3 LogBurst).
type BurstDetector struct {
	cfg config.Logs
}

func NewBurstDetector(cfg config.Logs) *BurstDetector {
	return &BurstDetector{cfg: cfg}
}

// DetectBursts slides a fixed window_seconds window across entries
// (already sorted by timestamp) and flags windows whose rate exceeds the
// baseline rate by a configured ratio tier.
func (d *BurstDetector) DetectBursts(entries []Entry, windowSeconds float64) []rcamodel.LogBurst {
	if len(entries) < 2 {
		return nil
	}
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	start, end := sorted[0].Timestamp, sorted[len(sorted)-1].Timestamp
	totalDuration := end - start
	if totalDuration <= 0 {
		return nil
	}
	baselineRate := float64(len(sorted)) / totalDuration

	var bursts []rcamodel.LogBurst
	i := 0
	for i < len(sorted) {
		wStart := sorted[i].Timestamp
		wEnd := wStart + windowSeconds
		count := searchSortedLeft(sorted, wEnd) - i

		rate := float64(count) / windowSeconds
		ratio := 0.0
		if baselineRate > 0 {
			ratio = rate / baselineRate
		}
		severity, ok := severityForRatio(d.cfg.BurstRatioThresholds, ratio)
		if ok {
			bursts = append(bursts, rcamodel.LogBurst{
				Window:       rcamodel.Window{Start: wStart, End: wEnd},
				RatePerSec:   roundTo(rate, 3),
				BaselineRate: roundTo(baselineRate, 3),
				Ratio:        roundTo(ratio, 2),
				Severity:     severity,
			})
		}
		if count < 1 {
			count = 1
		}
		i += count
	}
	return bursts
}

func severityForRatio(tiers []config.BurstTier, ratio float64) (rcamodel.Severity, bool) {
	for _, tier := range tiers {
		if ratio >= tier.Ratio {
			return rcamodel.Severity(tier.Severity), true
		}
	}
	return "", false
}

func searchSortedLeft(entries []Entry, target float64) int {
	return sort.Search(len(entries), func(i int) bool { return entries[i].Timestamp >= target })
}

func roundTo(v float64, places int) float64 {
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
