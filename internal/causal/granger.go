// Copyright 2025 James Ross
package causal

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"

	"github.com/beobservant/becertain/internal/config"
)

// GrangerResult reports whether a cause metric's past values improve the
// prediction of an effect metric beyond the effect's own history (spec
// §4.5 Granger causality).
type GrangerResult struct {
	CauseMetric  string  `json:"cause_metric"`
	EffectMetric string  `json:"effect_metric"`
	MaxLag       int     `json:"max_lag"`
	FStatistic   float64 `json:"f_statistic"`
	PValue       float64 `json:"p_value"`
	IsCausal     bool    `json:"is_causal"`
	Strength     float64 `json:"strength"`
}

// GrangerAnalyzer runs pairwise Granger-causality F-tests across metric
// series, via a restricted/unrestricted OLS comparison.
type GrangerAnalyzer struct {
	cfg config.Causal
}

func NewGrangerAnalyzer(cfg config.Causal) *GrangerAnalyzer {
	return &GrangerAnalyzer{cfg: cfg}
}

// PairAnalysis tests whether causeVals Granger-causes effectVals at the
// configured lag. Returns nil when there isn't enough data for the lag, or
// when the unrestricted residual sum of squares degenerates to zero.
func (g *GrangerAnalyzer) PairAnalysis(causeName string, causeVals []float64, effectName string, effectVals []float64) *GrangerResult {
	maxLag := g.cfg.GrangerMaxLag
	if maxLag <= 0 {
		maxLag = 3
	}
	if len(causeVals) != len(effectVals) || len(causeVals) < maxLag+10 {
		return nil
	}

	n := len(effectVals) - maxLag
	y := mat.NewVecDense(n, effectVals[maxLag:])

	restricted := lagMatrix(effectVals, maxLag, n)
	_, ssRestricted := ols(restricted, y)

	unrestricted := augmentWithCauseLags(restricted, causeVals, maxLag, n)
	_, ssUnrestricted := ols(unrestricted, y)

	k := float64(maxLag)
	denomDF := float64(n - 2*maxLag - 1)
	if denomDF <= 0 || ssUnrestricted == 0 {
		return nil
	}

	fStat := ((ssRestricted - ssUnrestricted) / k) / (ssUnrestricted / denomDF)
	pValue := fCDFComplement(fStat, k, denomDF)

	pThreshold := g.cfg.GrangerPThreshold
	if pThreshold <= 0 {
		pThreshold = 0.05
	}
	isCausal := pValue < pThreshold && fStat > 1.0

	strengthScale := g.cfg.GrangerStrengthScale
	if strengthScale <= 0 {
		strengthScale = 10.0
	}
	strength := round(math.Max(0, 1.0-pValue)*math.Min(1.0, fStat/strengthScale), 3)

	return &GrangerResult{
		CauseMetric:  causeName,
		EffectMetric: effectName,
		MaxLag:       maxLag,
		FStatistic:   round(fStat, 4),
		PValue:       round(pValue, 6),
		IsCausal:     isCausal,
		Strength:     strength,
	}
}

// MultiplePairs tests every ordered pair of series in seriesMap and returns
// the causal ones, strongest first.
func (g *GrangerAnalyzer) MultiplePairs(seriesMap map[string][]float64) []GrangerResult {
	names := make([]string, 0, len(seriesMap))
	for name := range seriesMap {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []GrangerResult
	for _, cause := range names {
		for _, effect := range names {
			if cause == effect {
				continue
			}
			if r := g.PairAnalysis(cause, seriesMap[cause], effect, seriesMap[effect]); r != nil && r.IsCausal {
				results = append(results, *r)
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Strength > results[j].Strength
	})
	return results
}

// lagMatrix builds the [1, y(t-1), ..., y(t-maxLag)] design matrix used as
// the restricted model's regressors.
func lagMatrix(series []float64, maxLag, n int) *mat.Dense {
	m := mat.NewDense(n, maxLag+1, nil)
	for row := 0; row < n; row++ {
		m.Set(row, 0, 1.0)
		for lag := 1; lag <= maxLag; lag++ {
			m.Set(row, lag, series[maxLag-lag+row])
		}
	}
	return m
}

// augmentWithCauseLags appends the cause series' own lagged columns onto
// the restricted design matrix to form the unrestricted model.
func augmentWithCauseLags(restricted *mat.Dense, cause []float64, maxLag, n int) *mat.Dense {
	_, cols := restricted.Dims()
	out := mat.NewDense(n, cols+maxLag, nil)
	out.Copy(restricted)
	for row := 0; row < n; row++ {
		for lag := 1; lag <= maxLag; lag++ {
			out.Set(row, cols+lag-1, cause[maxLag-lag+row])
		}
	}
	return out
}

// ols fits y = X*beta by least squares and returns the fitted coefficients
// alongside the residual sum of squares.
func ols(x *mat.Dense, y *mat.VecDense) (*mat.VecDense, float64) {
	n, _ := x.Dims()
	var beta mat.VecDense
	if err := beta.SolveVec(x, y); err != nil {
		return &beta, 0
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	var ssRes float64
	for i := 0; i < n; i++ {
		diff := y.AtVec(i) - fitted.AtVec(i)
		ssRes += diff * diff
	}
	return &beta, ssRes
}

// fCDFComplement computes 1 - F(d1, d2).CDF(f) via the regularized
// incomplete beta function, the standard closed form for the F
// distribution's survival function.
func fCDFComplement(f, d1, d2 float64) float64 {
	if f <= 0 {
		return 1.0
	}
	x := d1 * f / (d1*f + d2)
	return 1.0 - mathext.RegIncBeta(d1/2, d2/2, x)
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
