package train

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keiba-predict/engine/models"
)

func raceRows(raceID string, targets ...int) []models.FeatureRow {
	rows := make([]models.FeatureRow, len(targets))
	for i, tgt := range targets {
		rows[i] = models.FeatureRow{RaceID: raceID, HorseNumber: i + 1, Target: tgt}
	}
	return rows
}

func TestSplitChronologicalPreservesOrderAndFractions(t *testing.T) {
	var rows []models.FeatureRow
	for i := 0; i < 100; i++ {
		rows = append(rows, models.FeatureRow{RaceID: "r", HorseNumber: i})
	}
	split := SplitChronological(rows)
	assert.Len(t, split.Train, 70)
	assert.Len(t, split.Calibration, 15)
	assert.Len(t, split.Test, 15)
	assert.Equal(t, rows[0], split.Train[0])
	assert.Equal(t, rows[99], split.Test[len(split.Test)-1])
}

func TestGroupSizesRunLengthEncodesContiguousRaces(t *testing.T) {
	var rows []models.FeatureRow
	rows = append(rows, raceRows("r1", 1, 2, 3)...)
	rows = append(rows, raceRows("r2", 1, 2)...)
	rows = append(rows, raceRows("r3", 1)...)
	assert.Equal(t, []int{3, 2, 1}, GroupSizes(rows))
}

func TestMaxRankByRace(t *testing.T) {
	var rows []models.FeatureRow
	rows = append(rows, raceRows("r1", 1, 2, 7)...)
	rows = append(rows, raceRows("r2", 1, 3)...)
	got := MaxRankByRace(rows)
	assert.Equal(t, 7, got["r1"])
	assert.Equal(t, 3, got["r2"])
}

func TestRankingTargetsInvertsFinishingPosition(t *testing.T) {
	rows := raceRows("r1", 1, 2, 3) // max rank 3
	got := RankingTargets(rows)
	assert.Equal(t, []float64{3, 2, 1}, got) // 1st place -> highest ranking target
}

func TestClassLabelsThresholds(t *testing.T) {
	rows := raceRows("r1", 1, 2, 3, 4)
	labels := ClassLabels(rows)
	assert.Equal(t, []float64{1, 0, 0, 0}, labels[models.TaskWin])
	assert.Equal(t, []float64{1, 1, 0, 0}, labels[models.TaskQuinella])
	assert.Equal(t, []float64{1, 1, 1, 0}, labels[models.TaskPlace])
}

func TestScalePosWeightsNeutralWhenNoPositives(t *testing.T) {
	labels := map[models.Task][]float64{
		models.TaskWin: {0, 0, 0},
	}
	weights := ScalePosWeights(labels)
	assert.Equal(t, 1.0, weights[models.TaskWin])
}

func TestScalePosWeightsIsNegOverPosRatio(t *testing.T) {
	labels := map[models.Task][]float64{
		models.TaskWin: {1, 0, 0, 0},
	}
	weights := ScalePosWeights(labels)
	assert.Equal(t, 3.0, weights[models.TaskWin])
}

func TestFeatureMatrixProjectsValues(t *testing.T) {
	rows := []models.FeatureRow{{Age: 4}, {Age: 5}}
	matrix := FeatureMatrix(rows)
	assert.Len(t, matrix, 2)
	assert.Equal(t, 4.0, matrix[0][0])
	assert.Equal(t, 5.0, matrix[1][0])
}
