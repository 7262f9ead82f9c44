// Copyright 2025 James Ross
package baseline

import (
	"testing"

	"github.com/beobservant/becertain/internal/config"
	"github.com/beobservant/becertain/internal/rcamodel"
)

func defaultCfg() config.Baseline {
	return config.Baseline{ZScoreThreshold: 3.0, MinSamples: 6, SeasonalMinSamples: 24, StoreBlendAlpha: 0.3}
}

func TestComputeSmallSample(t *testing.T) {
	c := New(defaultCfg())
	b := c.Compute([]float64{0, 1, 2}, []float64{10, 10, 10})
	if b.SampleCount != 3 {
		t.Fatalf("expected sample count 3, got %d", b.SampleCount)
	}
	if b.Lower > b.Mean || b.Mean > b.Upper {
		t.Fatalf("expected lower <= mean <= upper, got %+v", b)
	}
}

func TestComputeSeasonal(t *testing.T) {
	c := New(defaultCfg())
	n := 48
	ts := make([]float64, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		ts[i] = float64(i * 3600)
		vals[i] = 10.0
	}
	b := c.Compute(ts, vals)
	if b.SeasonalMean == nil {
		t.Fatal("expected seasonal mean for 48 hourly samples")
	}
}

func TestScoreOutOfBand(t *testing.T) {
	c := New(defaultCfg())
	b := c.Compute([]float64{0, 1, 2, 3, 4, 5}, []float64{10, 11, 9, 10, 11, 9})
	outOfBand, z := Score(100, b)
	if !outOfBand {
		t.Fatal("expected 100 to be out of band")
	}
	if z <= 0 {
		t.Fatalf("expected positive z score, got %v", z)
	}
}

func TestBlendFallsBackWhenNoStored(t *testing.T) {
	c := New(defaultCfg())
	fresh := c.Compute([]float64{0, 1, 2, 3, 4, 5}, []float64{10, 11, 9, 10, 11, 9})
	blended := Blend(rcamodel.Baseline{}, fresh, 0.3)
	if blended.Mean != fresh.Mean {
		t.Fatalf("expected blend to pass through fresh baseline when stored is empty")
	}
}
