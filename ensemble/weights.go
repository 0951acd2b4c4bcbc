package ensemble

import (
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// minFamilyWeight/maxFamilyWeight bound each family's ensemble weight
// during re-optimization.
const (
	minFamilyWeight = 0.1
	maxFamilyWeight = 0.6
)

// defaultWeights is the balanced starting point before any
// re-optimization has run.
func defaultWeights() [3]float64 {
	return [3]float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
}

// clipAndRenormalize clips each weight to [minFamilyWeight, maxFamilyWeight]
// then rescales so the three sum back to 1.
func clipAndRenormalize(w [3]float64) [3]float64 {
	var sum float64
	for i := range w {
		if w[i] < minFamilyWeight {
			w[i] = minFamilyWeight
		}
		if w[i] > maxFamilyWeight {
			w[i] = maxFamilyWeight
		}
		sum += w[i]
	}
	if sum == 0 {
		return defaultWeights()
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// OptimizeWeights re-fits the three family weights by minimizing Brier loss
// of the blended win-probability prediction over a calibration split.
// predictions[f][i] is family f's calibrated probability for calibration
// row i; labels[i] is that row's 0/1 outcome.
func OptimizeWeights(predictions [3][]float64, labels []float64) [3]float64 {
	n := len(labels)
	if n == 0 {
		return defaultWeights()
	}

	brier := func(raw []float64) float64 {
		w := clipAndRenormalize([3]float64{raw[0], raw[1], 1 - raw[0] - raw[1]})
		blended := make([]float64, n)
		for i := 0; i < n; i++ {
			blended[i] = w[0]*predictions[0][i] + w[1]*predictions[1][i] + w[2]*predictions[2][i]
		}
		var sq float64
		for i := 0; i < n; i++ {
			d := blended[i] - labels[i]
			sq += d * d
		}
		return sq / float64(n)
	}

	problem := optimize.Problem{Func: brier}
	start := defaultWeights()
	result, err := optimize.Minimize(problem, []float64{start[0], start[1]}, nil, &optimize.NelderMead{})
	if err != nil || result == nil {
		return start
	}
	return clipAndRenormalize([3]float64{result.X[0], result.X[1], 1 - result.X[0] - result.X[1]})
}

// brierScore is exposed for evaluation diagnostics,
// built on gonum/stat the way the pricing model computes its summary
// statistics rather than hand-rolling mean/variance again here.
func brierScore(predicted, actual []float64) float64 {
	if len(predicted) == 0 {
		return 0
	}
	diffs := make([]float64, len(predicted))
	for i := range predicted {
		d := predicted[i] - actual[i]
		diffs[i] = d * d
	}
	return stat.Mean(diffs, nil)
}
