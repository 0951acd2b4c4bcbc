// Package train implements the retrain pipeline: feature
// extraction across a multi-year window, a time-ordered train/calibration/
// test split, a bounded hyperparameter search, full base-learner training
// with class-imbalance correction, calibrator/weight fitting, and test-split
// evaluation. The split is chronological, never shuffled, matching this
// domain's no-look-ahead requirement.
package train

import "github.com/keiba-predict/engine/models"

// Split is a time-ordered partition of feature rows, in the exact order
// they were extracted (oldest race first). No row is ever reshuffled
// between partitions.
type Split struct {
	Train       []models.FeatureRow
	Calibration []models.FeatureRow
	Test        []models.FeatureRow
}

// trainFraction/calibrationFraction implement the 70/15/15 chronological
// split; the test split takes the remaining rows.
const (
	trainFraction       = 0.70
	calibrationFraction = 0.15
)

// SplitChronological partitions rows, which must already be in chronological
// order, into train/calibration/test without shuffling.
func SplitChronological(rows []models.FeatureRow) Split {
	n := len(rows)
	trainEnd := int(float64(n) * trainFraction)
	calEnd := trainEnd + int(float64(n)*calibrationFraction)
	if calEnd > n {
		calEnd = n
	}
	return Split{
		Train:       rows[:trainEnd],
		Calibration: rows[trainEnd:calEnd],
		Test:        rows[calEnd:],
	}
}

// GroupSizes run-length-encodes raceID, one count per consecutive run of
// identical race ids. Rows for the same
// race must already be contiguous, which extractFromBundle guarantees since
// it emits one race's starters together.
func GroupSizes(rows []models.FeatureRow) []int {
	var sizes []int
	var current string
	count := 0
	for i, r := range rows {
		if i == 0 || r.RaceID != current {
			if count > 0 {
				sizes = append(sizes, count)
			}
			current = r.RaceID
			count = 0
		}
		count++
	}
	if count > 0 {
		sizes = append(sizes, count)
	}
	return sizes
}

// MaxRankByRace returns, for each race id present in rows, the largest
// finishing position recorded among its starters -- the field size the
// ranking-target inversion needs.
func MaxRankByRace(rows []models.FeatureRow) map[string]int {
	out := make(map[string]int)
	for _, r := range rows {
		if r.Target > out[r.RaceID] {
			out[r.RaceID] = r.Target
		}
	}
	return out
}

// RankingTargets inverts finishing position into a ranking target where
// higher is better: y_rank = max_rank - y + 1, so the
// regressor the ensemble blends with classifier heads points the same
// direction the rank_score sum expects.
func RankingTargets(rows []models.FeatureRow) []float64 {
	maxRank := MaxRankByRace(rows)
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = float64(maxRank[r.RaceID] - r.Target + 1)
	}
	return out
}

// ClassLabels builds the three binary-task label vectors from each row's
// finishing position: win = 1st, quinella = top 2, place = top 3.
func ClassLabels(rows []models.FeatureRow) map[models.Task][]float64 {
	labels := make(map[models.Task][]float64, len(models.AllTasks))
	for _, task := range models.AllTasks {
		labels[task] = make([]float64, len(rows))
	}
	for i, r := range rows {
		if r.Target == 1 {
			labels[models.TaskWin][i] = 1
		}
		if r.Target >= 1 && r.Target <= 2 {
			labels[models.TaskQuinella][i] = 1
		}
		if r.Target >= 1 && r.Target <= 3 {
			labels[models.TaskPlace][i] = 1
		}
	}
	return labels
}

// FeatureMatrix projects every row onto its ordered numeric vector.
func FeatureMatrix(rows []models.FeatureRow) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Values()
	}
	return out
}

// ScalePosWeights computes each task's scale_pos_weight (neg/pos ratio),
// the class-imbalance correction applied to every classifier head. A task
// with zero positives falls back to weight 1.
func ScalePosWeights(labels map[models.Task][]float64) map[models.Task]float64 {
	out := make(map[models.Task]float64, len(labels))
	for task, y := range labels {
		var pos, neg float64
		for _, v := range y {
			if v == 1 {
				pos++
			} else {
				neg++
			}
		}
		if pos == 0 {
			out[task] = 1
			continue
		}
		out[task] = neg / pos
	}
	return out
}
