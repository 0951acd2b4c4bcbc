package modelmanager

import (
	"context"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/features"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/probability"
	"github.com/keiba-predict/engine/store"
	"github.com/keiba-predict/engine/train"
)

// minEVThreshold is the minimum p_win*odds a horse must clear for the
// ev_return component to stake on it (a 100-unit stake returning 150 is
// break-even against a 2/3 hit rate; anything below is a losing bet long run).
const minEVThreshold = 1.5

// backtestScore is the composite promotion score plus its components.
type backtestScore struct {
	Composite float64
	Metrics   map[string]float64
}

// raceGroup is one race's feature rows plus the declared odds/payout record
// needed for the betting-return components of the composite score.
type raceGroup struct {
	RaceID string
	Rows   []models.FeatureRow
	Odds   map[int]float64
	Payout models.PayoutRecord
}

// runBacktest evaluates ens against every finalized race in year strictly
// outside the training window.
func runBacktest(ctx context.Context, s store.Store, ens *ensemble.Ensemble, year int, surfaceFilter *models.Surface) (backtestScore, error) {
	rows, err := features.ExtractYear(ctx, s, year, surfaceFilter)
	if err != nil {
		return backtestScore{}, err
	}
	if len(rows) == 0 {
		return backtestScore{}, models.ErrTrainingAborted
	}

	groups := groupByRace(rows)

	var winScores, winLabels, quinScores, quinLabels, placeScores, placeLabels []float64
	var raceIDs []string
	var winStake, winReturn, placeStake, placeReturn, evStake, evReturn float64

	for _, g := range groups {
		odds, err := s.GetDeclaredOdds(ctx, g.RaceID)
		if err != nil {
			odds = nil
		}
		payout, err := s.GetPayoutRecord(ctx, g.RaceID)
		hasPayout := err == nil

		var inputs []probability.HorseInput
		featureMatrix := make([][]float64, len(g.Rows))
		for i, r := range g.Rows {
			featureMatrix[i] = r.Values()
		}
		for i, r := range g.Rows {
			pred := ens.Predict(featureMatrix[i])
			inputs = append(inputs, probability.HorseInput{HorseNumber: r.HorseNumber, HorseID: r.HorseID, Pred: pred})

			raceIDs = append(raceIDs, g.RaceID)
			winScores = append(winScores, pred.PWin)
			winLabels = append(winLabels, boolF(r.Target == 1))
			quinScores = append(quinScores, pred.PQuinella)
			quinLabels = append(quinLabels, boolF(r.Target >= 1 && r.Target <= 2))
			placeScores = append(placeScores, pred.PPlace)
			placeLabels = append(placeLabels, boolF(r.Target >= 1 && r.Target <= 3))

			if hasPayout && odds != nil {
				if o, ok := odds[r.HorseNumber]; ok && evQualifies(pred.PWin, o) {
					evStake += 100
					if r.Target == 1 {
						if payoutAmt, ok := payout.WinPayout(r.HorseNumber); ok {
							evReturn += payoutAmt.InexactFloat64()
						}
					}
				}
			}
		}

		ranked := probability.Derive(inputs)
		if len(ranked) == 0 {
			continue
		}
		top := ranked[0]
		winStake += 100
		placeStake += 100
		if hasPayout {
			if payoutAmt, ok := payout.WinPayout(top.HorseNumber); ok {
				winReturn += payoutAmt.InexactFloat64()
			}
			if payoutAmt, ok := payout.PlacePayout(top.HorseNumber); ok {
				placeReturn += payoutAmt.InexactFloat64()
			}
		}
	}

	isWinner := make([]bool, len(winLabels))
	for i, v := range winLabels {
		isWinner[i] = v == 1
	}

	metrics := map[string]float64{
		"win_auc":       train.AUC(winScores, winLabels),
		"quinella_auc":  train.AUC(quinScores, quinLabels),
		"place_auc":     train.AUC(placeScores, placeLabels),
		"top3_coverage": train.Top3Coverage(raceIDs, winScores, isWinner),
		"win_return":    roi(winReturn, winStake),
		"place_return":  roi(placeReturn, placeStake),
		"ev_return":     roi(evReturn, evStake),
	}

	composite := 0.25*train.AUC01(metrics["win_auc"]) +
		0.15*train.AUC01(metrics["quinella_auc"]) +
		0.15*train.AUC01(metrics["place_auc"]) +
		0.20*metrics["top3_coverage"] +
		0.10*metrics["win_return"] +
		0.05*metrics["place_return"] +
		0.10*metrics["ev_return"]

	return backtestScore{Composite: composite, Metrics: metrics}, nil
}

func groupByRace(rows []models.FeatureRow) []raceGroup {
	index := make(map[string]int)
	var groups []raceGroup
	for _, r := range rows {
		if i, ok := index[r.RaceID]; ok {
			groups[i].Rows = append(groups[i].Rows, r)
			continue
		}
		index[r.RaceID] = len(groups)
		groups = append(groups, raceGroup{RaceID: r.RaceID, Rows: []models.FeatureRow{r}})
	}
	return groups
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// roi returns (return-stake)/stake, 0 if nothing was staked -- a neutral
// (not favorable, not punishing) baseline for an empty backtest window.
func roi(returned, staked float64) float64 {
	if staked == 0 {
		return 0
	}
	return (returned - staked) / staked
}

// evQualifies reports whether a stake at odds on a horse predicted to win
// with probability pWin clears the break-even threshold.
func evQualifies(pWin, odds float64) bool {
	return pWin*odds >= minEVThreshold
}
