package ensemble

import "github.com/keiba-predict/engine/models"

// family is one GBDT-style base-learner family: a regressor-or-ranker plus
// three binary classifiers (win/quinella/place), all grown with the same
// GrowStyle.
type family struct {
	Style       GrowStyle
	Regressor   *learner
	Classifiers map[models.Task]*learner
}

func newFamily(style GrowStyle) *family {
	return newFamilyWithParams(style, defaultNumTrees(style), 0.1)
}

func defaultNumTrees(style GrowStyle) int {
	if style == GrowLeafWise {
		return 80
	}
	return 100
}

func newFamilyWithParams(style GrowStyle, numTrees int, learningRate float64) *family {
	classifiers := make(map[models.Task]*learner, len(models.AllTasks))
	for _, task := range models.AllTasks {
		classifiers[task] = newLearnerWithParams(style, numTrees, learningRate)
	}
	return &family{
		Style:       style,
		Regressor:   newLearnerWithParams(style, numTrees, learningRate),
		Classifiers: classifiers,
	}
}

// fit trains the regressor against a continuous ranking target and each
// classifier against its own 0/1 label vector, all row-aligned with
// features. posWeights, when non-nil, gives each task's scale_pos_weight
// (neg/pos ratio); a task absent from posWeights fits unweighted.
func (f *family) fit(features [][]float64, regressionTarget []float64, labels map[models.Task][]float64, posWeights map[models.Task]float64) {
	f.Regressor.fit(features, regressionTarget)
	for _, task := range models.AllTasks {
		y, ok := labels[task]
		if !ok {
			continue
		}
		w := 1.0
		if posWeights != nil {
			if pw, ok := posWeights[task]; ok {
				w = pw
			}
		}
		f.Classifiers[task].fitClassifierWeighted(features, y, w)
	}
}

// predict returns this family's raw rank score and its three raw
// (uncalibrated) classifier probabilities for one feature vector.
func (f *family) predict(x []float64) (rankScore float64, raw map[models.Task]float64) {
	rankScore = f.Regressor.predict(x)
	raw = make(map[models.Task]float64, len(models.AllTasks))
	for _, task := range models.AllTasks {
		raw[task] = f.Classifiers[task].predictProba(x)
	}
	return rankScore, raw
}
