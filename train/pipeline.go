package train

import (
	"context"
	"fmt"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/features"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

// DefaultTrainingYears is the default retrain window.
const DefaultTrainingYears = 3

// Result is everything one retrain run produces: the artifact ready for
// staging, the search/evaluation diagnostics persisted into the sidecar
// report, and the calibration bins
// also persisted via store.SaveCalibrationReport.
type Result struct {
	Artifact        models.ModelArtifact
	Search          SearchResult
	TestMetrics     map[string]float64
	CalibrationBins []models.CalibrationBin
	TrainRows       int
	CalibrationRows int
	TestRows        int
}

// Run executes the full retrain pipeline for one surface variant: extract endYear-years+1..endYear, split chronologically, search
// hyperparameters, fully train, fit calibrators/weights, evaluate on the
// held-out test split, and build the artifact. surfaceFilter nil means the
// mixed (all-surfaces) variant.
func Run(ctx context.Context, s store.Store, endYear int, years int, surfaceFilter *models.Surface, version string) (Result, error) {
	if years <= 0 {
		years = DefaultTrainingYears
	}

	var rows []models.FeatureRow
	for y := endYear - years + 1; y <= endYear; y++ {
		yearRows, err := features.ExtractYear(ctx, s, y, surfaceFilter)
		if err != nil {
			return Result{}, fmt.Errorf("train: extract year %d: %w", y, err)
		}
		rows = append(rows, yearRows...)
	}
	if len(rows) == 0 {
		return Result{}, models.ErrTrainingAborted
	}

	split := SplitChronological(rows)
	if len(split.Train) == 0 || len(split.Calibration) == 0 || len(split.Test) == 0 {
		return Result{}, models.ErrTrainingAborted
	}

	trainFeatures := FeatureMatrix(split.Train)
	trainTargets := RankingTargets(split.Train)
	trainLabels := ClassLabels(split.Train)
	posWeights := ScalePosWeights(trainLabels)

	calFeatures := FeatureMatrix(split.Calibration)
	calLabels := ClassLabels(split.Calibration)
	calRaceIDs := raceIDs(split.Calibration)

	search := Search(trainFeatures, calFeatures, trainLabels, calLabels, calRaceIDs)

	tuned := map[models.BaseLearnerFamily]ensemble.HyperParams{
		models.FamilyHistogram:    {NumTrees: search.Best.NumTrees, LearningRate: search.Best.LearningRate},
		models.FamilyLeafWise:     {NumTrees: search.Best.NumTrees, LearningRate: search.Best.LearningRate},
		models.FamilyOrderedBoost: {NumTrees: search.Best.NumTrees, LearningRate: search.Best.LearningRate},
	}
	ens := ensemble.NewTuned(tuned)
	ens.FitFamiliesWeighted(trainFeatures, trainTargets, trainLabels, posWeights)

	calBins := ens.FitCalibratorsAndWeights(calFeatures, calLabels)

	testFeatures := FeatureMatrix(split.Test)
	testLabels := ClassLabels(split.Test)
	testRaceIDs := raceIDs(split.Test)
	metrics, testBins := evaluate(ens, testFeatures, testLabels, testRaceIDs)

	surfaceFilterValue := models.SurfaceUnknown
	if surfaceFilter != nil {
		surfaceFilterValue = *surfaceFilter
	}
	artifact, err := ensemble.BuildArtifact(ens, version, len(split.Train), surfaceFilterValue, metrics)
	if err != nil {
		return Result{}, fmt.Errorf("train: build artifact: %w", err)
	}

	return Result{
		Artifact:        artifact,
		Search:          search,
		TestMetrics:     metrics,
		CalibrationBins: append(calBins, testBins...),
		TrainRows:       len(split.Train),
		CalibrationRows: len(split.Calibration),
		TestRows:        len(split.Test),
	}, nil
}

func raceIDs(rows []models.FeatureRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.RaceID
	}
	return out
}

// evaluate runs the fully-calibrated ensemble over the test split and
// reports per-task AUC/Brier, top-3 coverage, and 20-bin calibration
// diagnostics computed fresh against held-out rows.
func evaluate(ens *ensemble.Ensemble, testFeatures [][]float64, testLabels map[models.Task][]float64, testRaceIDs []string) (map[string]float64, []models.CalibrationBin) {
	metrics := make(map[string]float64)
	var bins []models.CalibrationBin

	var winProbs []float64
	for _, task := range models.AllTasks {
		y, ok := testLabels[task]
		if !ok {
			continue
		}
		preCal := make([]float64, len(testFeatures))
		postCal := make([]float64, len(testFeatures))
		for i, x := range testFeatures {
			var raw float64
			for _, fam := range models.AllFamilies {
				raw += ens.Weights[fam] * ens.PredictFamilyRaw(fam, x, task)
			}
			preCal[i] = raw
			postCal[i] = ens.Calibrators[task].Apply(raw)
		}
		metrics[string(task)+"_auc"] = AUC(postCal, y)
		metrics[string(task)+"_brier"] = Brier(postCal, y)
		bins = append(bins, ensemble.CalibrationBinsFor(task, preCal, postCal, y)...)
		if task == models.TaskWin {
			winProbs = postCal
		}
	}

	if winProbs != nil {
		isWinner := make([]bool, len(testLabels[models.TaskWin]))
		for i, v := range testLabels[models.TaskWin] {
			isWinner[i] = v == 1
		}
		metrics["top3_coverage"] = Top3Coverage(testRaceIDs, winProbs, isWinner)
	}

	return metrics, bins
}
