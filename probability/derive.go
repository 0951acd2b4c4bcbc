// Package probability implements the race-consistent probability
// derivation applied to a race's raw ensemble outputs: per-family
// normalization, win-descending ranking, position-distribution
// decomposition, and the auxiliary quinella/place/dark-horse rankings.
package probability

import (
	"math"
	"sort"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
)

// HorseInput pairs one starter's identity with its raw ensemble output.
type HorseInput struct {
	HorseNumber int
	HorseID     string
	Pred        ensemble.Prediction
}

// Derive builds the ranked, normalized set of HorsePrediction rows plus the
// auxiliary rankings for one race.
func Derive(inputs []HorseInput) []models.HorsePrediction {
	n := len(inputs)
	if n == 0 {
		return nil
	}

	hasQuinella := true
	for _, in := range inputs {
		if !in.Pred.HasQuinella {
			hasQuinella = false
			break
		}
	}

	winProbs := extractWin(inputs)
	normalizeToSum(winProbs, 1.0)

	var quinellaProbs, placeProbs []float64
	if hasQuinella {
		quinellaProbs = extract(inputs, func(p ensemble.Prediction) float64 { return p.PQuinella })
		normalizeToSum(quinellaProbs, math.Min(2, float64(n)))
		placeProbs = extract(inputs, func(p ensemble.Prediction) float64 { return p.PPlace })
		normalizeToSum(placeProbs, math.Min(3, float64(n)))
	}

	type scored struct {
		in       HorseInput
		win      float64
		quinella float64
		place    float64
	}
	rows := make([]scored, n)
	for i, in := range inputs {
		row := scored{in: in, win: winProbs[i]}
		if hasQuinella {
			row.quinella = quinellaProbs[i]
			row.place = placeProbs[i]
		}
		rows[i] = row
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].win > rows[j].win })

	out := make([]models.HorsePrediction, n)
	for i, r := range rows {
		var pos models.PositionDistribution
		if hasQuinella {
			pos = positionDistribution(r.win, r.quinella, r.place)
		} else {
			pos = rankDependentSplit(r.win, i+1)
		}

		var gap float64
		if i+1 < n {
			gap = r.win - rows[i+1].win
		}
		conf := 0.5
		if i+1 < n {
			conf = clip(0.5+5*gap, 0.1, 0.95)
		}

		out[i] = models.HorsePrediction{
			HorseNumber:         r.in.HorseNumber,
			HorseID:             r.in.HorseID,
			Rank:                i + 1,
			RankScore:           r.in.Pred.RankScore,
			WinProbability:      r.win,
			QuinellaProbability: r.quinella,
			PlaceProbability:    r.place,
			Position:            pos,
			Confidence:          conf,
		}
	}
	return out
}

// DeriveFromRankScores is the legacy fallback path when an artifact has no
// classifier heads at all, only raw regressor scores: win probabilities
// come from softmax(-rank_score) and quinella/place are skipped entirely.
func DeriveFromRankScores(numbers []int, horseIDs []string, rankScores []float64) []models.HorsePrediction {
	n := len(rankScores)
	if n == 0 {
		return nil
	}
	win := softmaxNegated(rankScores)

	type scored struct {
		number int
		id     string
		rank   float64
		win    float64
	}
	rows := make([]scored, n)
	for i := range rankScores {
		rows[i] = scored{number: numbers[i], id: horseIDs[i], rank: rankScores[i], win: win[i]}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].win > rows[j].win })

	out := make([]models.HorsePrediction, n)
	for i, r := range rows {
		var gap float64
		if i+1 < n {
			gap = r.win - rows[i+1].win
		}
		conf := 0.5
		if i+1 < n {
			conf = clip(0.5+5*gap, 0.1, 0.95)
		}
		out[i] = models.HorsePrediction{
			HorseNumber:    r.number,
			HorseID:        r.id,
			Rank:           i + 1,
			RankScore:      r.rank,
			WinProbability: r.win,
			Position:       models.PositionDistribution{First: r.win, OutOfPlace: 1 - r.win},
			Confidence:     conf,
		}
	}
	return out
}

// RaceConfidence derives the overall race-level confidence from the two
// leading win probabilities.
func RaceConfidence(ranked []models.HorsePrediction) float64 {
	if len(ranked) == 0 {
		return 0
	}
	top1 := ranked[0].WinProbability
	top2 := 0.0
	if len(ranked) > 1 {
		top2 = ranked[1].WinProbability
	}
	denom := math.Max(top1, 0.01)
	conf := 0.4 + 0.5*(top1-top2)/denom + top1
	return math.Min(conf, 0.95)
}

// TopByQuinella/TopByPlace/DarkHorses implement the auxiliary rankings
// emitted for the API.
func TopByQuinella(ranked []models.HorsePrediction) []models.HorsePrediction {
	return topN(ranked, 5, func(h models.HorsePrediction) float64 { return h.QuinellaProbability })
}

func TopByPlace(ranked []models.HorsePrediction) []models.HorsePrediction {
	return topN(ranked, 5, func(h models.HorsePrediction) float64 { return h.PlaceProbability })
}

func DarkHorses(ranked []models.HorsePrediction) []models.DarkHorse {
	var out []models.DarkHorse
	for _, h := range ranked {
		if h.PlaceProbability >= 0.20 && h.WinProbability < 0.10 {
			out = append(out, models.DarkHorse{
				HorseNumber:      h.HorseNumber,
				HorseID:          h.HorseID,
				PlaceProbability: h.PlaceProbability,
				WinProbability:   h.WinProbability,
			})
			if len(out) == 3 {
				break
			}
		}
	}
	return out
}

func topN(ranked []models.HorsePrediction, n int, key func(models.HorsePrediction) float64) []models.HorsePrediction {
	cp := append([]models.HorsePrediction(nil), ranked...)
	sort.SliceStable(cp, func(i, j int) bool { return key(cp[i]) > key(cp[j]) })
	if len(cp) > n {
		cp = cp[:n]
	}
	return cp
}

func positionDistribution(win, quinella, place float64) models.PositionDistribution {
	first := win
	second := math.Max(0, quinella-win)
	third := math.Max(0, place-quinella)
	outOfPlace := math.Max(0, 1-first-second-third)
	return models.PositionDistribution{First: first, Second: second, Third: third, OutOfPlace: outOfPlace}
}

// rankDependentSplit covers the legacy-model path where no quinella
// probability exists: the residual place mass is split between second and
// third with rank-dependent weights.
func rankDependentSplit(win float64, rank int) models.PositionDistribution {
	residual := math.Max(0, 1-win)
	var secondShare float64
	switch {
	case rank <= 3:
		secondShare = 0.55
	case rank <= 6:
		secondShare = 0.5
	default:
		secondShare = 0.45
	}
	return models.PositionDistribution{
		First:      win,
		Second:     residual * secondShare,
		Third:      residual * (1 - secondShare),
		OutOfPlace: 0,
	}
}

func extractWin(inputs []HorseInput) []float64 {
	return extract(inputs, func(p ensemble.Prediction) float64 { return p.PWin })
}

func extract(inputs []HorseInput, f func(ensemble.Prediction) float64) []float64 {
	out := make([]float64, len(inputs))
	for i, in := range inputs {
		out[i] = f(in.Pred)
	}
	return out
}

// normalizeToSum rescales xs in place so it sums to target, leaving an
// all-zero input untouched.
func normalizeToSum(xs []float64, target float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	if sum == 0 {
		return
	}
	scale := target / sum
	for i := range xs {
		xs[i] *= scale
	}
}

func softmaxNegated(scores []float64) []float64 {
	neg := make([]float64, len(scores))
	maxV := math.Inf(-1)
	for i, s := range scores {
		neg[i] = -s
		if neg[i] > maxV {
			maxV = neg[i]
		}
	}
	var sum float64
	exp := make([]float64, len(scores))
	for i, v := range neg {
		exp[i] = math.Exp(v - maxV)
		sum += exp[i]
	}
	if sum == 0 {
		return exp
	}
	for i := range exp {
		exp[i] /= sum
	}
	return exp
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
