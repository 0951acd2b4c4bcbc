package ensemble

import "github.com/keiba-predict/engine/models"

// calibrationBinCount is the fixed number of equal-width diagnostic bins
// computed during test-split evaluation.
const calibrationBinCount = 20

// calibrationBins buckets rows by their post-calibration probability into
// calibrationBinCount equal-width [0,1] bins and reports pre/post-cal mean,
// empirical outcome rate, and Brier score per bin.
func calibrationBins(task models.Task, preCal, postCal, labels []float64) []models.CalibrationBin {
	type acc struct {
		preSum, postSum, labelSum float64
		preSqErr, postSqErr       float64
		count                     int
	}
	accs := make([]acc, calibrationBinCount)

	for i := range postCal {
		bin := binIndex(postCal[i])
		a := &accs[bin]
		a.preSum += preCal[i]
		a.postSum += postCal[i]
		a.labelSum += labels[i]
		a.preSqErr += sq(preCal[i] - labels[i])
		a.postSqErr += sq(postCal[i] - labels[i])
		a.count++
	}

	bins := make([]models.CalibrationBin, 0, calibrationBinCount)
	for i, a := range accs {
		if a.count == 0 {
			continue
		}
		n := float64(a.count)
		bins = append(bins, models.CalibrationBin{
			Task:          task,
			BinIndex:      i,
			PreCalMean:    a.preSum / n,
			PostCalMean:   a.postSum / n,
			EmpiricalRate: a.labelSum / n,
			PreCalBrier:   a.preSqErr / n,
			PostCalBrier:  a.postSqErr / n,
			Count:         a.count,
		})
	}
	return bins
}

// CalibrationBinsFor exposes calibrationBins for the trainer's test-split
// evaluation pass, run against held-out rows the
// calibrator was never fit on.
func CalibrationBinsFor(task models.Task, preCal, postCal, labels []float64) []models.CalibrationBin {
	return calibrationBins(task, preCal, postCal, labels)
}

func binIndex(p float64) int {
	idx := int(p * float64(calibrationBinCount))
	if idx < 0 {
		return 0
	}
	if idx >= calibrationBinCount {
		return calibrationBinCount - 1
	}
	return idx
}

func sq(x float64) float64 { return x * x }
