package train

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

// MockStore never finalizes any entry, so a retrain run against it always aborts rather than
// training on declared-only rows. This exercises the abort path faithfully
// without fabricating a finalized-results store.
func TestRunAbortsWhenNoFinalizedRowsExist(t *testing.T) {
	s := store.NewMockStore()
	_, err := Run(context.Background(), s, 2024, 1, nil, "v-test")
	assert.ErrorIs(t, err, models.ErrTrainingAborted)
}

func TestSearchPicksFromKnownChoicesWithinTrialBudget(t *testing.T) {
	features := [][]float64{{0}, {1}, {2}, {3}, {10}, {11}, {12}, {13}}
	labels := map[models.Task][]float64{
		models.TaskWin:   {0, 0, 0, 0, 1, 1, 1, 1},
		models.TaskPlace: {0, 0, 0, 1, 1, 1, 1, 1},
	}
	calRaceIDs := []string{"r1", "r1", "r2", "r2", "r3", "r3", "r4", "r4"}

	result := Search(features, features, labels, labels, calRaceIDs)

	assert.LessOrEqual(t, len(result.Trials), maxTrials)
	assert.Contains(t, numTreesChoices, result.Best.NumTrees)
	assert.Contains(t, lrChoices, result.Best.LearningRate)
}
