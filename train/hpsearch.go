package train

import (
	"math/rand"
	"sort"
	"time"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
)

// maxTrials/searchTimeCap bound the hyperparameter search.
const (
	maxTrials     = 30
	searchTimeCap = 90 * time.Minute
)

// candidate is one trial's sampled hyperparameters, shared uniformly across
// all three families to keep the search space small enough to explore
// within maxTrials.
type candidate struct {
	NumTrees     int
	LearningRate float64
}

var (
	numTreesChoices = []int{40, 60, 80, 100, 150}
	lrChoices       = []float64{0.02, 0.05, 0.1, 0.15, 0.2}
)

// trialResult is one completed (or pruned) trial's outcome.
type trialResult struct {
	params candidate
	score  float64
	pruned bool
}

// SearchResult is the winning hyperparameters plus the full trial history,
// persisted into the training sidecar report.
type SearchResult struct {
	Best    candidate
	Trials  []trialResult
	Elapsed time.Duration
}

// Search runs a bounded hyperparameter search: each trial quickly fits the
// histogram family's win classifier (and, unless the trial is pruned, its
// place classifier) on train and scores it on calibration, approximating a
// Tree-structured Parzen Estimator by sampling half its candidates near the
// current best trial and the other half uniformly at random, with
// median-pruning against trials completed so far.
func Search(trainFeatures, calFeatures [][]float64, trainLabels, calLabels map[models.Task][]float64, calRaceIDs []string) SearchResult {
	start := time.Now()
	rng := rand.New(rand.NewSource(42))

	var trials []trialResult
	best := candidate{NumTrees: numTreesChoices[2], LearningRate: lrChoices[2]}
	bestScore := -1.0

	for t := 0; t < maxTrials; t++ {
		if time.Since(start) > searchTimeCap {
			break
		}

		var c candidate
		if t < 4 || rng.Float64() < 0.5 {
			c = candidate{
				NumTrees:     numTreesChoices[rng.Intn(len(numTreesChoices))],
				LearningRate: lrChoices[rng.Intn(len(lrChoices))],
			}
		} else {
			c = jitter(best, rng)
		}

		median := medianScore(trials)
		score, pruned := runTrial(c, trainFeatures, calFeatures, trainLabels, calLabels, calRaceIDs, median)
		trials = append(trials, trialResult{params: c, score: score, pruned: pruned})
		if !pruned && score > bestScore {
			bestScore = score
			best = c
		}
	}

	return SearchResult{Best: best, Trials: trials, Elapsed: time.Since(start)}
}

func jitter(c candidate, rng *rand.Rand) candidate {
	idx := indexOfInt(numTreesChoices, c.NumTrees)
	idx += rng.Intn(3) - 1
	idx = clampInt(idx, 0, len(numTreesChoices)-1)

	lrIdx := indexOfFloat(lrChoices, c.LearningRate)
	lrIdx += rng.Intn(3) - 1
	lrIdx = clampInt(lrIdx, 0, len(lrChoices)-1)

	return candidate{NumTrees: numTreesChoices[idx], LearningRate: lrChoices[lrIdx]}
}

// runTrial fits a single-family-style proxy model (the histogram family)
// against the win and place classifiers only -- cheap enough to run up to
// 30 times -- and scores it as 0.4*win AUC + 0.3*top-3 coverage +
// 0.3*place AUC on the calibration split. Pruned trials (scoring below the running
// median once at least 5 trials have completed) skip the place classifier
// entirely and return a disqualifying score.
func runTrial(c candidate, trainFeatures, calFeatures [][]float64, trainLabels, calLabels map[models.Task][]float64, calRaceIDs []string, median float64) (float64, bool) {
	proxy := ensemble.NewTuned(map[models.BaseLearnerFamily]ensemble.HyperParams{
		models.FamilyHistogram: {NumTrees: c.NumTrees, LearningRate: c.LearningRate},
	})
	winWeight := scalePosWeight(trainLabels[models.TaskWin])
	proxy.FitFamily(models.FamilyHistogram, trainFeatures, RankingTargets3(trainLabels), map[models.Task][]float64{
		models.TaskWin: trainLabels[models.TaskWin],
	}, map[models.Task]float64{models.TaskWin: winWeight})

	winScores := predictTask(proxy, calFeatures, models.TaskWin)
	winAUC := AUC(winScores, calLabels[models.TaskWin])

	if len(trainLabels[models.TaskWin]) >= 5*2 && hasFiveTrials(median) && winAUC < median {
		return winAUC * 0.4, true
	}

	placeWeight := scalePosWeight(trainLabels[models.TaskPlace])
	proxy.FitFamily(models.FamilyHistogram, trainFeatures, RankingTargets3(trainLabels), map[models.Task][]float64{
		models.TaskPlace: trainLabels[models.TaskPlace],
	}, map[models.Task]float64{models.TaskPlace: placeWeight})
	placeScores := predictTask(proxy, calFeatures, models.TaskPlace)
	placeAUC := AUC(placeScores, calLabels[models.TaskPlace])

	isWinner := make([]bool, len(calLabels[models.TaskWin]))
	for i, v := range calLabels[models.TaskWin] {
		isWinner[i] = v == 1
	}
	coverage := Top3Coverage(calRaceIDs, winScores, isWinner)

	return 0.4*winAUC + 0.3*coverage + 0.3*placeAUC, false
}

func hasFiveTrials(median float64) bool { return median >= 0 }

func medianScore(trials []trialResult) float64 {
	var completed []float64
	for _, t := range trials {
		if !t.pruned {
			completed = append(completed, t.score)
		}
	}
	if len(completed) < 5 {
		return -1
	}
	sort.Float64s(completed)
	mid := len(completed) / 2
	if len(completed)%2 == 0 {
		return (completed[mid-1] + completed[mid]) / 2
	}
	return completed[mid]
}

func scalePosWeight(y []float64) float64 {
	var pos, neg float64
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return 1
	}
	return neg / pos
}

// RankingTargets3 is a cheap stand-in regression target for the proxy
// trial: the win label scaled to {0,1}, since the proxy never uses its
// regressor output directly.
func RankingTargets3(labels map[models.Task][]float64) []float64 {
	return labels[models.TaskWin]
}

func predictTask(e *ensemble.Ensemble, features [][]float64, task models.Task) []float64 {
	out := make([]float64, len(features))
	for i, x := range features {
		out[i] = e.PredictFamilyRaw(models.FamilyHistogram, x, task)
	}
	return out
}

func indexOfInt(xs []int, v int) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return 0
}

func indexOfFloat(xs []float64, v float64) int {
	for i, x := range xs {
		if x == v {
			return i
		}
	}
	return 0
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
