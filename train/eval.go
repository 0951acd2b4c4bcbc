package train

import "sort"

// AUC computes the area under the ROC curve via the Mann-Whitney U
// statistic (rank-sum formulation), avoiding a dependency on a specific
// curve-sweep API: AUC = (sum of positive-label ranks - pos*(pos+1)/2) /
// (pos*neg). Ties are handled with the standard average-rank correction.
func AUC(scores, labels []float64) float64 {
	n := len(scores)
	if n == 0 {
		return 0.5
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	for i := range scores {
		pairs[i] = pair{scores[i], labels[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && pairs[j+1].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[k] = avgRank
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, p := range pairs {
		if p.label == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

// AUC01 rescales AUC from [0.5, 1] to [0, 1], the form the model manager's
// composite promotion score uses * 2").
func AUC01(auc float64) float64 {
	v := (auc - 0.5) * 2
	if v < 0 {
		return 0
	}
	return v
}

// Brier is the mean squared error between predicted probabilities and 0/1
// outcomes.
func Brier(predicted, labels []float64) float64 {
	if len(predicted) == 0 {
		return 0
	}
	var sum float64
	for i := range predicted {
		d := predicted[i] - labels[i]
		sum += d * d
	}
	return sum / float64(len(predicted))
}

// Top3Coverage reports the fraction of races whose actual winner (the row
// with label=1 on the place task, restricted to Target==1) appears in the
// model's top-3 ranked finishers by win probability, grouped by raceID.
func Top3Coverage(raceIDs []string, winProbs []float64, isWinner []bool) float64 {
	type row struct {
		prob   float64
		winner bool
	}
	byRace := make(map[string][]row)
	for i, id := range raceIDs {
		byRace[id] = append(byRace[id], row{winProbs[i], isWinner[i]})
	}
	if len(byRace) == 0 {
		return 0
	}

	var covered, total int
	for _, rows := range byRace {
		total++
		sort.Slice(rows, func(i, j int) bool { return rows[i].prob > rows[j].prob })
		top := rows
		if len(top) > 3 {
			top = top[:3]
		}
		for _, r := range top {
			if r.winner {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(total)
}
