// Copyright 2025 James Ross
package baseline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

// Computer builds a tenant's expected-range baseline for one metric series,
// optionally detrending by hour-of-day when enough samples exist to learn a
// seasonal pattern (spec §3 Baseline, §4.2, §4.6).
type Computer struct {
	cfg config.Baseline
}

func New(cfg config.Baseline) *Computer {
	return &Computer{cfg: cfg}
}

// Compute derives a Baseline from (timestamps, values). With fewer than 6
// samples it falls back to a plain mean/std band; with 24 or more it
// detrends by hour-of-day bucket and reports the bucket average as
// SeasonalMean.
func (c *Computer) Compute(timestamps, values []float64) rcamodel.Baseline {
	n := len(values)
	zThreshold := c.cfg.ZScoreThreshold

	if n < c.cfg.MinSamples {
		m := stat.Mean(values, nil)
		s := stat.StdDev(values, nil)
		if s == 0 {
			s = 1.0
		}
		return rcamodel.Baseline{
			Mean:        m,
			Std:         s,
			Lower:       m - zThreshold*s,
			Upper:       m + zThreshold*s,
			SampleCount: n,
		}
	}

	m := stat.Mean(values, nil)
	var s float64
	var seasonalMean *float64

	if n >= c.cfg.SeasonalMinSamples {
		buckets := hourBuckets(timestamps)
		bucketSums := map[int]float64{}
		bucketCounts := map[int]int{}
		for i, b := range buckets {
			bucketSums[b] += values[i]
			bucketCounts[b]++
		}
		hourAvgs := make(map[int]float64, len(bucketSums))
		for h, sum := range bucketSums {
			hourAvgs[h] = sum / float64(bucketCounts[h])
		}
		detrended := make([]float64, n)
		for i, b := range buckets {
			detrended[i] = values[i] - hourAvgs[b]
		}
		s = stat.StdDev(detrended, nil)
		if s == 0 {
			s = 1.0
		}
		avgs := make([]float64, 0, len(hourAvgs))
		for _, v := range hourAvgs {
			avgs = append(avgs, v)
		}
		sm := stat.Mean(avgs, nil)
		seasonalMean = &sm
	} else {
		s = stat.StdDev(values, nil)
		if s == 0 {
			s = 1.0
		}
	}

	return rcamodel.Baseline{
		Mean:         m,
		Std:          s,
		Lower:        m - zThreshold*s,
		Upper:        m + zThreshold*s,
		SeasonalMean: seasonalMean,
		SampleCount:  n,
	}
}

// hourBuckets maps each Unix-second timestamp to an hour-of-day bucket
// in [0,23], used to detrend daily seasonality before computing std.
func hourBuckets(timestamps []float64) []int {
	out := make([]int, len(timestamps))
	for i, t := range timestamps {
		secOfDay := int(t) % 86400
		if secOfDay < 0 {
			secOfDay += 86400
		}
		out[i] = secOfDay / 3600
	}
	return out
}

// Score reports whether val falls outside baseline's band and its
// magnitude in standard deviations.
func Score(val float64, b rcamodel.Baseline) (outOfBand bool, z float64) {
	if b.Std == 0 {
		return val < b.Lower || val > b.Upper, 0
	}
	z = math.Abs(val-b.Mean) / b.Std
	return val < b.Lower || val > b.Upper, math.Round(z*1000) / 1000
}

// Blend combines a freshly computed baseline with the tenant store's
// previously persisted one using an exponential moving average over the
// mean and std, the resolution for the "double-blend" ambiguity in
// original_source/store/baseline.py (spec §9 Open Question, §4.6).
func Blend(stored, fresh rcamodel.Baseline, alpha float64) rcamodel.Baseline {
	if stored.SampleCount == 0 {
		return fresh
	}
	blended := rcamodel.Baseline{
		Mean:        alpha*fresh.Mean + (1-alpha)*stored.Mean,
		Std:         alpha*fresh.Std + (1-alpha)*stored.Std,
		SampleCount: fresh.SampleCount,
	}
	blended.Lower = blended.Mean - (fresh.Mean-fresh.Lower)/maxf(fresh.Std, 1e-9)*blended.Std
	blended.Upper = blended.Mean + (fresh.Upper-fresh.Mean)/maxf(fresh.Std, 1e-9)*blended.Std
	if fresh.SeasonalMean != nil {
		blended.SeasonalMean = fresh.SeasonalMean
	} else {
		blended.SeasonalMean = stored.SeasonalMean
	}
	return blended
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
