package ensemble

import "github.com/keiba-predict/engine/models"

// Prediction is one feature row's raw ensemble output before the
// race-level normalization probability.Derive applies.
type Prediction struct {
	RankScore   float64
	PWin        float64
	PQuinella   float64
	HasQuinella bool
	PPlace      float64
}

// Ensemble is the full three-family blend plus its per-task calibrators and
// family weights.
type Ensemble struct {
	Families     map[models.BaseLearnerFamily]*family
	Weights      map[models.BaseLearnerFamily]float64
	Calibrators  map[models.Task]*Calibrator
	HasQuinella  bool
	HasRegressor bool
}

// familyStyles is the fixed family-to-GrowStyle mapping.
var familyStyles = map[models.BaseLearnerFamily]GrowStyle{
	models.FamilyHistogram:    GrowHistogram,
	models.FamilyLeafWise:     GrowLeafWise,
	models.FamilyOrderedBoost: GrowOrdered,
}

// New builds an untrained ensemble with all three families and balanced
// default weights.
func New() *Ensemble {
	families := make(map[models.BaseLearnerFamily]*family, len(models.AllFamilies))
	weights := make(map[models.BaseLearnerFamily]float64, len(models.AllFamilies))
	defaults := defaultWeights()
	for i, fam := range models.AllFamilies {
		families[fam] = newFamily(familyStyles[fam])
		weights[fam] = defaults[i]
	}
	return &Ensemble{
		Families:     families,
		Weights:      weights,
		Calibrators:  make(map[models.Task]*Calibrator, len(models.AllTasks)),
		HasQuinella:  true,
		HasRegressor: true,
	}
}

// HyperParams is the per-family tree-count/learning-rate pair the trainer's
// hyperparameter search tunes.
type HyperParams struct {
	NumTrees     int
	LearningRate float64
}

// NewTuned builds an untrained ensemble the same way New does, but with each
// family's tree count/learning rate overridden by params. A family missing
// from params keeps its default.
func NewTuned(params map[models.BaseLearnerFamily]HyperParams) *Ensemble {
	families := make(map[models.BaseLearnerFamily]*family, len(models.AllFamilies))
	weights := make(map[models.BaseLearnerFamily]float64, len(models.AllFamilies))
	defaults := defaultWeights()
	for i, fam := range models.AllFamilies {
		style := familyStyles[fam]
		if hp, ok := params[fam]; ok {
			families[fam] = newFamilyWithParams(style, hp.NumTrees, hp.LearningRate)
		} else {
			families[fam] = newFamily(style)
		}
		weights[fam] = defaults[i]
	}
	return &Ensemble{
		Families:     families,
		Weights:      weights,
		Calibrators:  make(map[models.Task]*Calibrator, len(models.AllTasks)),
		HasQuinella:  true,
		HasRegressor: true,
	}
}

// FitFamilies trains every family's regressor and classifiers on the
// training split, with no classifier class-imbalance
// correction.
func (e *Ensemble) FitFamilies(features [][]float64, regressionTarget []float64, labels map[models.Task][]float64) {
	e.FitFamiliesWeighted(features, regressionTarget, labels, nil)
}

// FitFamiliesWeighted is FitFamilies with each classifier's scale_pos_weight
// (neg/pos ratio) supplied explicitly.
func (e *Ensemble) FitFamiliesWeighted(features [][]float64, regressionTarget []float64, labels map[models.Task][]float64, posWeights map[models.Task]float64) {
	for _, fam := range e.Families {
		fam.fit(features, regressionTarget, labels, posWeights)
	}
}

// FitFamily trains a single named family, leaving every other family in e
// untouched -- used by the trainer's hyperparameter search to score a
// cheap single-family proxy instead of paying for all three.
func (e *Ensemble) FitFamily(fam models.BaseLearnerFamily, features [][]float64, regressionTarget []float64, labels map[models.Task][]float64, posWeights map[models.Task]float64) {
	e.Families[fam].fit(features, regressionTarget, labels, posWeights)
}

// rawPerFamily returns, for one task, each family's raw classifier output
// row-aligned with features, in models.AllFamilies order.
func (e *Ensemble) rawPerFamily(task models.Task, features [][]float64) [3][]float64 {
	var out [3][]float64
	for i, fam := range models.AllFamilies {
		col := make([]float64, len(features))
		f := e.Families[fam]
		for r, x := range features {
			_, raw := f.predict(x)
			col[r] = raw[task]
		}
		out[i] = col
	}
	return out
}

// blendRaw combines each family's raw classifier output for one row using
// the current ensemble weights.
func (e *Ensemble) blendRaw(task models.Task, x []float64) float64 {
	var sum float64
	for _, fam := range models.AllFamilies {
		_, raw := e.Families[fam].predict(x)
		sum += e.Weights[fam] * raw[task]
	}
	return sum
}

// FitCalibratorsAndWeights fits one calibrator per task over the
// calibration split. On the win task it first fits a calibrator against the
// blend under the current weights, re-optimizes the family weights by
// minimizing Brier loss of each family's calibrated win curve blended
// together, then refits the win calibrator against the re-weighted blend;
// the quinella and place calibrators are fit against that same final blend.
// Returns calibration-bin diagnostics for all three tasks.
func (e *Ensemble) FitCalibratorsAndWeights(features [][]float64, labels map[models.Task][]float64) []models.CalibrationBin {
	var bins []models.CalibrationBin

	for _, task := range models.AllTasks {
		y, ok := labels[task]
		if !ok {
			continue
		}

		rawBlend := make([]float64, len(features))
		for i, x := range features {
			rawBlend[i] = e.blendRaw(task, x)
		}
		calibrator := FitCalibrator(rawBlend, y)
		e.Calibrators[task] = calibrator

		if task == models.TaskWin {
			perFamily := e.rawPerFamily(task, features)
			var calibratedPerFamily [3][]float64
			for f := 0; f < 3; f++ {
				calibratedPerFamily[f] = make([]float64, len(perFamily[f]))
				for i, raw := range perFamily[f] {
					calibratedPerFamily[f][i] = calibrator.Apply(raw)
				}
			}
			newWeights := OptimizeWeights(calibratedPerFamily, y)
			for i, fam := range models.AllFamilies {
				e.Weights[fam] = newWeights[i]
			}
			for i, x := range features {
				rawBlend[i] = e.blendRaw(task, x)
			}
			calibrator = FitCalibrator(rawBlend, y)
			e.Calibrators[task] = calibrator
		}

		preCal := rawBlend
		postCal := make([]float64, len(rawBlend))
		for i, raw := range rawBlend {
			postCal[i] = calibrator.Apply(raw)
		}
		bins = append(bins, calibrationBins(task, preCal, postCal, y)...)
	}

	return bins
}

// PredictFamilyRaw returns one family's raw (uncalibrated) classifier
// output for one task, bypassing the blend -- used by the trainer's
// hyperparameter search to score a single-family proxy model cheaply.
func (e *Ensemble) PredictFamilyRaw(fam models.BaseLearnerFamily, x []float64, task models.Task) float64 {
	_, raw := e.Families[fam].predict(x)
	return raw[task]
}

// Predict applies every family, blends with the current weights, and
// calibrates each task's probability.
func (e *Ensemble) Predict(x []float64) Prediction {
	var rankScore float64
	rawByTask := make(map[models.Task]float64, len(models.AllTasks))
	for _, fam := range models.AllFamilies {
		w := e.Weights[fam]
		rank, raw := e.Families[fam].predict(x)
		rankScore += w * rank
		for _, task := range models.AllTasks {
			rawByTask[task] += w * raw[task]
		}
	}

	apply := func(task models.Task) float64 {
		cal := e.Calibrators[task]
		return cal.Apply(rawByTask[task])
	}

	return Prediction{
		RankScore:   rankScore,
		PWin:        apply(models.TaskWin),
		PQuinella:   apply(models.TaskQuinella),
		HasQuinella: e.HasQuinella,
		PPlace:      apply(models.TaskPlace),
	}
}
