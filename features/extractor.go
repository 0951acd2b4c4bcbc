// Package features turns a store.RaceBundle into the fixed-schema
// models.FeatureRow vectors the ensemble consumes. Every batched-lookup
// family it reads was already leak-filtered by the store at load time;
// this package only shapes and blends what it's given, never issues its
// own queries.
package features

import (
	"context"
	"math"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
	"github.com/keiba-predict/engine/utils"
)

// ExtractRace builds one feature row per declared starter in raceID, for
// inference.
func ExtractRace(ctx context.Context, s store.Store, raceID string) ([]models.FeatureRow, error) {
	bundle, err := s.LoadRaceBundle(ctx, raceID)
	if err != nil {
		return nil, err
	}
	rows := extractFromBundle(bundle, false)
	if len(rows) == 0 {
		return nil, models.ErrNoStarters
	}
	return rows, nil
}

// ExtractYear builds one feature row per finalized starter across every
// candidate race in year, for training/backtest. Races the store cannot load are skipped rather than
// aborting the whole year.
func ExtractYear(ctx context.Context, s store.Store, year int, surfaceFilter *models.Surface) ([]models.FeatureRow, error) {
	races, err := s.ListCandidateRaces(ctx, year, models.DataKindFinalized, surfaceFilter)
	if err != nil {
		return nil, err
	}
	var rows []models.FeatureRow
	for _, r := range races {
		bundle, err := s.LoadRaceBundle(ctx, r.RaceID)
		if err != nil {
			continue
		}
		rows = append(rows, extractFromBundle(bundle, true)...)
	}
	return rows, nil
}

// extractFromBundle is the shared core: it drops scratches, computes the
// race-level pace call from every starter's style, and builds one row per
// starter. training selects whether a finishing-position target is
// attached and whether unfinalized entries are skipped.
func extractFromBundle(b store.RaceBundle, training bool) []models.FeatureRow {
	styles := make(map[string]models.PaceStyle, len(b.Entries))
	for _, e := range b.Entries {
		if e.IsScratched() {
			continue
		}
		styles[e.HorseID] = paceStyleFor(b.Histories[e.HorseID])
	}
	racePace := racePaceFor(styles)

	rows := make([]models.FeatureRow, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.IsScratched() {
			continue
		}
		if training && (!e.Finalized() || e.FinishingPosition <= 0) {
			continue
		}
		row := buildRow(b, e, styles[e.HorseID], racePace)
		if training {
			row.Target = e.FinishingPosition
			row.HasTarget = true
		}
		rows = append(rows, row)
	}
	return rows
}

func buildRow(b store.RaceBundle, e models.Entry, style models.PaceStyle, racePace models.PacePrediction) models.FeatureRow {
	var row models.FeatureRow
	row.RaceID = e.RaceID
	row.HorseNumber = e.HorseNumber
	row.HorseID = e.HorseID

	row.Age = float64(e.Age)
	row.SexCode = sexOrdinal(e.SexCode)
	row.CarriedWeight10g = float64(e.CarriedWeight10g)
	row.BodyWeightKg = e.BodyWeightKg
	row.WeightDeltaKg = e.WeightDeltaKg
	row.DeclaredOdds = e.DeclaredOdds
	row.Post = float64(e.Post)
	row.Blinkers = boolToFloat(e.Blinkers)
	row.DistanceM = float64(b.Race.DistanceM)

	full := b.Histories[e.HorseID] // most-recent-first
	applyLast10(&row, full)
	applySplits(&row, full)
	applyTurnDirection(&row, full)
	applyConditionGrid(&row, full)
	applyRestBuckets(&row, full)
	applyPedigree(&row, b, e)
	applyVenueSurface(&row, b, e)
	applyPreviousAndTrend(&row, full)
	applyJockeyTrainer(&row, b, e)

	row.Style = float64(style)
	row.RacePace = float64(racePace)
	applySeason(&row, b.Race, e)

	return row
}

func applyLast10(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	n := len(full)
	if n > 10 {
		full = full[:10]
		n = 10
	}
	row.Last10Runs = float64(n)
	if n == 0 {
		row.Last10WinRate = priorWinRate
		row.Last10PlaceRate = priorPlaceRate
		row.Last10AvgFinishTime = priorFinishTime
		row.Last10AvgLast3F = priorLast3F
		row.Last10DecayWinRate = priorWinRate
		row.Last10DecayPlaceRate = priorPlaceRate
		row.Last10DecayAvgLast3F = priorLast3F
		return
	}

	const decay = 0.85
	var wins, places int
	var decayWinSum, decayPlaceSum, decayLast3FSum, decayWeight float64
	finishPositions := make([]float64, 0, n)
	times := make([]float64, 0, n)
	last3fs := make([]float64, 0, n)
	corners := make([]float64, 0, n)
	var cornerDeltas []float64

	for i, h := range full {
		w := math.Pow(decay, float64(i))
		if h.FinishingPosition == 1 {
			wins++
			decayWinSum += w
		}
		if h.FinishingPosition > 0 && h.FinishingPosition <= 3 {
			places++
			decayPlaceSum += w
		}
		decayLast3FSum += w * h.Last3FSeconds
		decayWeight += w

		finishPositions = append(finishPositions, float64(h.FinishingPosition))
		times = append(times, h.FinishTimeSeconds)
		last3fs = append(last3fs, h.Last3FSeconds)
		if len(h.CornerPositions) >= 4 {
			corners = append(corners, utils.Mean(intsToFloats(h.CornerPositions)))
			cornerDeltas = append(cornerDeltas, float64(h.CornerPositions[2]-h.CornerPositions[3]))
		}
	}

	row.Last10WinRate = float64(wins) / float64(n)
	row.Last10PlaceRate = float64(places) / float64(n)
	row.Last10AvgFinishTime = utils.Mean(times)
	row.Last10AvgLast3F = utils.Mean(last3fs)
	row.Last10AvgCorner = utils.Mean(corners)
	row.Last10BestFinish = minPositive(finishPositions)
	row.Last10DecayWinRate = decayWinSum / decayWeight
	row.Last10DecayPlaceRate = decayPlaceSum / decayWeight
	row.Last10DecayAvgLast3F = decayLast3FSum / decayWeight
	row.Last10Corner3to4Delta = utils.Mean(cornerDeltas)
	row.Last10FinishRankStdDev = utils.StdDev(finishPositions)
	row.Last10TimeStdDev = utils.StdDev(times)
	row.Last10Last3FStdDev = utils.StdDev(last3fs)
	row.LastJockeyID = float64(utils.BucketHash(full[0].JockeyID, sireHashBuckets))
}

func applySplits(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	var turfRuns, turfWins, turfPlace int
	var dirtRuns, dirtWins, dirtPlace int
	for _, h := range full {
		switch h.Surface {
		case models.SurfaceTurf:
			turfRuns++
			if h.FinishingPosition == 1 {
				turfWins++
			}
			if h.FinishingPosition > 0 && h.FinishingPosition <= 3 {
				turfPlace++
			}
		case models.SurfaceDirt:
			dirtRuns++
			if h.FinishingPosition == 1 {
				dirtWins++
			}
			if h.FinishingPosition > 0 && h.FinishingPosition <= 3 {
				dirtPlace++
			}
		}
	}
	row.TurfRuns = float64(turfRuns)
	row.TurfWinRate = rateOrPrior(turfWins, turfRuns, priorWinRate)
	row.TurfPlaceRate = rateOrPrior(turfPlace, turfRuns, priorPlaceRate)
	row.DirtRuns = float64(dirtRuns)
	row.DirtWinRate = rateOrPrior(dirtWins, dirtRuns, priorWinRate)
	row.DirtPlaceRate = rateOrPrior(dirtPlace, dirtRuns, priorPlaceRate)
}

func applyTurnDirection(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	var rightWins, rightN, leftWins, leftN int
	for _, h := range full {
		switch models.TurnDirectionForVenue(h.VenueCode) {
		case models.TurnRight:
			rightN++
			if h.FinishingPosition == 1 {
				rightWins++
			}
		case models.TurnLeft:
			leftN++
			if h.FinishingPosition == 1 {
				leftWins++
			}
		}
	}
	row.RightHandedWinRate = smoothedTurnRate(rightWins, rightN)
	row.LeftHandedWinRate = smoothedTurnRate(leftWins, leftN)
}

func smoothedTurnRate(wins, n int) float64 {
	if n >= 5 {
		return float64(wins) / float64(n)
	}
	return utils.BayesianSmooth(float64(wins), n, 0.25, turnDirectionSmoothK)
}

func applyConditionGrid(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	for i, surf := range conditionSurfaces {
		for j, cond := range conditionConditions {
			var wins, places, total int
			for _, h := range full {
				if h.Surface != surf || h.TrackCondition != cond {
					continue
				}
				total++
				if h.FinishingPosition == 1 {
					wins++
				}
				if h.FinishingPosition > 0 && h.FinishingPosition <= 3 {
					places++
				}
			}
			row.ConditionWinRate[i][j] = rateOrPrior(wins, total, priorWinRate)
			row.ConditionPlaceRate[i][j] = rateOrPrior(places, total, priorPlaceRate)
		}
	}
}

func applyRestBuckets(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	var wins, total [5]int
	for i := 0; i < len(full)-1; i++ {
		gapDays := int(full[i].RaceDate.Sub(full[i+1].RaceDate).Hours() / 24)
		bucket := models.RestBucketFor(gapDays)
		total[bucket]++
		if full[i].FinishingPosition == 1 {
			wins[bucket]++
		}
	}
	for b := range row.RestBucketWinRate {
		row.RestBucketWinRate[b] = rateOrPrior(wins[b], total[b], priorWinRate)
	}
}

func applyPedigree(row *models.FeatureRow, b store.RaceBundle, e models.Entry) {
	ped := b.Pedigrees[e.HorseID]
	row.SireBucket = float64(utils.BucketHash(ped.SireID, sireHashBuckets))
	row.BroodmareSireBucket = float64(utils.BucketHash(ped.BroodmareSireID, sireHashBuckets))

	turf := b.SireStatsTurf[ped.SireID]
	dirt := b.SireStatsDirt[ped.SireID]
	row.SireWinRateTurf = utils.Blend(turf.WinRate, priorWinRate, utils.LogConfidence(turf.Runs, sireConfidenceThreshold))
	row.SireWinRateDirt = utils.Blend(dirt.WinRate, priorWinRate, utils.LogConfidence(dirt.Runs, sireConfidenceThreshold))

	// The maiden variant and the single reported confidence follow the
	// surface of today's race, since that's the only one relevant to this
	// start.
	primary := turf
	if b.Race.Surface() == models.SurfaceDirt {
		primary = dirt
	}
	row.SireConfidence = utils.LogConfidence(primary.Runs, sireConfidenceThreshold)
	maidenConf := utils.LogConfidence(primary.MaidenRuns, sireMaidenConfidenceThreshold)
	row.SireMaidenWinRate = utils.Blend(primary.MaidenWinRate, priorWinRate, maidenConf)
	row.SireMaidenConfidence = maidenConf
}

func applyVenueSurface(row *models.FeatureRow, b store.RaceBundle, e models.Entry) {
	vs := b.VenueSurfaceStats[e.HorseID]
	row.VenueSurfaceRuns = float64(vs.Runs)
	if vs.Runs >= minVenueSurfaceRuns {
		row.VenueSurfaceWinRate = vs.WinRate
		row.VenueSurfacePlaceRate = vs.Top3Rate
	}
}

func applyPreviousAndTrend(row *models.FeatureRow, full []models.HistoricalRaceRecord) {
	n := len(full)
	if n > 5 {
		n = 5
	}
	prev := make([]models.PreviousRaceDetail, 0, n)
	for i := 0; i < n; i++ {
		h := full[i]
		prev = append(prev, models.PreviousRaceDetail{
			FinishingPosition: h.FinishingPosition,
			Popularity:        h.Popularity,
			Last3FSeconds:     h.Last3FSeconds,
			CornerPositions:   h.CornerPositions,
			VenueSmall:        venueIsSmall(h.VenueCode),
			// The store contract does not expose other starters' final-3f
			// times for a past race, so the field-relative rank is
			// approximated by that day's betting popularity rank.
			Last3FRank: h.Popularity,
		})
	}
	row.Previous = prev

	if len(prev) >= 2 {
		oldest := float64(prev[len(prev)-1].FinishingPosition)
		newest := float64(prev[0].FinishingPosition)
		row.RecentTrend = (oldest - newest) / float64(len(prev))
	}

	var pushes []float64
	for _, p := range prev {
		if len(p.CornerPositions) >= 4 {
			pushes = append(pushes, float64(p.CornerPositions[2]-p.CornerPositions[3]))
		}
	}
	row.LatePushTendency = utils.Mean(pushes)
}

func applyJockeyTrainer(row *models.FeatureRow, b store.RaceBundle, e models.Entry) {
	jAgg := b.JockeyAggregates[e.JockeyID]
	row.JockeyYearWinRate = blendedOrPrior(jAgg.WinRate, jAgg.Runs, priorWinRate)
	row.JockeyYearPlaceRate = blendedOrPrior(jAgg.PlaceRate, jAgg.Runs, priorPlaceRate)

	jMaiden := b.JockeyMaidenAgg[e.JockeyID]
	maidenConf := utils.LogConfidence(jMaiden.Runs, jockeyMaidenConfidenceThreshold)
	row.JockeyMaidenWinRate = utils.Blend(jMaiden.WinRate, priorWinRate, maidenConf)
	row.JockeyMaidenConfidence = maidenConf
	row.JockeyRecentConfidence = utils.LinearConfidence(jAgg.Runs, jockeyRecentConfidenceThreshold)

	trAgg := b.TrainerAggregates[e.TrainerID]
	row.TrainerYearWinRate = blendedOrPrior(trAgg.WinRate, trAgg.Runs, priorWinRate)
	row.TrainerYearPlaceRate = blendedOrPrior(trAgg.PlaceRate, trAgg.Runs, priorPlaceRate)

	combo := b.JockeyHorseRuns[store.ComboKey(e.JockeyID, e.HorseID)]
	if combo >= 3 {
		row.JockeyHorseRuns = math.Min(float64(combo), 20) / 20.0
	}
}

func applySeason(row *models.FeatureRow, race models.Race, e models.Entry) {
	month := race.MeetMonthDay / 100
	day := race.MeetMonthDay % 100
	row.MonthSin = math.Sin(2 * math.Pi * float64(month) / 12)
	row.MonthCos = math.Cos(2 * math.Pi * float64(month) / 12)
	row.MeetWeek = float64((day-1)/7 + 1)
	row.ThreeYearGrowth = boolToFloat(e.Age == 3 && month >= 3 && month <= 8)
	row.FourYearEarly = boolToFloat(e.Age == 4 && month >= 1 && month <= 6)
	row.Winter = boolToFloat(month == 12 || month == 1 || month == 2)
}
