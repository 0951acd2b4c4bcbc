package ensemble

import "math"

// learner is one boosted ensemble of regression trees fit to a single
// target (a regressor, or the log-odds of one binary classifier),
// parameterized by GrowStyle so all three families share this one
// training/inference loop.
type learner struct {
	Style        GrowStyle
	Trees        []*treeNode
	LearningRate float64
	NumTrees     int
	cfg          treeConfig
}

func newLearner(style GrowStyle) *learner {
	numTrees := 100
	lr := 0.1
	if style == GrowLeafWise {
		// Leaf-wise trees are individually more expressive, so fewer of
		// them are needed to reach the same capacity.
		numTrees = 80
	}
	return newLearnerWithParams(style, numTrees, lr)
}

// newLearnerWithParams overrides the style's default tree count/learning
// rate, the knobs the hyperparameter search in the trainer tunes.
func newLearnerWithParams(style GrowStyle, numTrees int, learningRate float64) *learner {
	return &learner{
		Style:        style,
		LearningRate: learningRate,
		NumTrees:     numTrees,
		cfg:          newTreeConfig(style),
	}
}

// orderedFolds is how many sequential folds GrowOrdered splits training
// rows into: tree t is grown only on the rows of folds 0..(t mod
// orderedFolds), while the residuals of every row come from all trees grown
// so far -- a cheap stand-in for CatBoost-style ordered boosting.
const orderedFolds = 5

// fit boosts NumTrees regression trees against targets (already on the
// working scale: raw regression value, or log-odds residual for a binary
// task). features/targets are row-aligned with no held-out split; the
// caller is responsible for any train/test partitioning.
func (l *learner) fit(features [][]float64, targets []float64) {
	if l.Style == GrowOrdered {
		l.fitOrdered(features, targets)
		return
	}

	predictions := make([]float64, len(targets))
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}

	l.Trees = make([]*treeNode, 0, l.NumTrees)
	for t := 0; t < l.NumTrees; t++ {
		residuals := make([]float64, len(targets))
		for i := range targets {
			residuals[i] = targets[i] - predictions[i]
		}
		tree := buildTree(l.cfg, features, residuals, indices)
		l.Trees = append(l.Trees, tree)
		for i := range predictions {
			predictions[i] += l.LearningRate * predictTree(tree, features[i])
		}
	}
}

// fitOrdered grows each tree on a cyclically-growing subset of folds so
// early trees never see the full training set at once, approximating
// ordered boosting's avoidance of a sample shaping its own residual.
func (l *learner) fitOrdered(features [][]float64, targets []float64) {
	l.Trees = orderedBoost(l.cfg, l.LearningRate, l.NumTrees, features, targets, func(predictions []float64, i int) float64 {
		return targets[i] - predictions[i]
	})
}

// orderedBoost is shared by the regression and logistic ordered-boosting
// paths: tree t trains only on folds 0..(t%orderedFolds), so no tree is
// ever fit against the full-dataset residual from round 0.
func orderedBoost(cfg treeConfig, learningRate float64, numTrees int, features [][]float64, targets []float64, residualOf func(predictions []float64, i int) float64) []*treeNode {
	n := len(targets)
	foldOf := make([]int, n)
	for i := range foldOf {
		foldOf[i] = (i * orderedFolds) / max1(n)
	}

	predictions := make([]float64, n)
	trees := make([]*treeNode, 0, numTrees)

	for t := 0; t < numTrees; t++ {
		residuals := make([]float64, n)
		for i := 0; i < n; i++ {
			residuals[i] = residualOf(predictions, i)
		}

		activeFold := t % orderedFolds
		var trainIdx []int
		for i := 0; i < n; i++ {
			if foldOf[i] <= activeFold {
				trainIdx = append(trainIdx, i)
			}
		}
		if len(trainIdx) < 2 {
			trainIdx = append(trainIdx, 0)
		}

		tree := buildTree(cfg, features, residuals, trainIdx)
		trees = append(trees, tree)
		for i := 0; i < n; i++ {
			predictions[i] += learningRate * predictTree(tree, features[i])
		}
	}
	return trees
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// predict sums every tree's scaled output (raw regression value, or
// log-odds for a classifier before the caller applies a sigmoid).
func (l *learner) predict(features []float64) float64 {
	var out float64
	for _, tree := range l.Trees {
		out += l.LearningRate * predictTree(tree, features)
	}
	return out
}

// predictProba applies a sigmoid to predict's raw log-odds output, used by
// the three binary classification heads.
func (l *learner) predictProba(features []float64) float64 {
	return sigmoid(l.predict(features))
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// fitClassifier boosts log-odds residuals against a 0/1 label, the usual
// logistic-residual scheme for gradient-boosted classifiers.
func (l *learner) fitClassifier(features [][]float64, labels []float64) {
	l.fitLogisticWeighted(features, labels, 1.0)
}

// fitClassifierWeighted scales the positive-class residual by posWeight,
// the standard GBDT correction for a class-imbalanced binary head like
// win/quinella/place.
func (l *learner) fitClassifierWeighted(features [][]float64, labels []float64, posWeight float64) {
	l.fitLogisticWeighted(features, labels, posWeight)
}

func (l *learner) fitLogistic(features [][]float64, labels []float64) {
	l.fitLogisticWeighted(features, labels, 1.0)
}

func (l *learner) fitLogisticWeighted(features [][]float64, labels []float64, posWeight float64) {
	if l.Style == GrowOrdered {
		l.Trees = orderedBoost(l.cfg, l.LearningRate, l.NumTrees, features, labels, func(predictions []float64, i int) float64 {
			return weightedResidual(labels[i], predictions[i], posWeight)
		})
		return
	}
	predictions := make([]float64, len(labels))
	indices := make([]int, len(features))
	for i := range indices {
		indices[i] = i
	}
	l.Trees = make([]*treeNode, 0, l.NumTrees)
	for t := 0; t < l.NumTrees; t++ {
		residuals := make([]float64, len(labels))
		for i := range labels {
			residuals[i] = weightedResidual(labels[i], predictions[i], posWeight)
		}
		tree := buildTree(l.cfg, features, residuals, indices)
		l.Trees = append(l.Trees, tree)
		for i := range predictions {
			predictions[i] += l.LearningRate * predictTree(tree, features[i])
		}
	}
}

func weightedResidual(label, prediction, posWeight float64) float64 {
	residual := label - sigmoid(prediction)
	if label == 1 {
		return residual * posWeight
	}
	return residual
}
