package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAUCPerfectSeparationIsOne(t *testing.T) {
	scores := []float64{0.1, 0.2, 0.8, 0.9}
	labels := []float64{0, 0, 1, 1}
	assert.InDelta(t, 1.0, AUC(scores, labels), 1e-9)
}

func TestAUCNoPositivesOrNegativesIsNeutral(t *testing.T) {
	assert.Equal(t, 0.5, AUC(nil, nil))
	assert.Equal(t, 0.5, AUC([]float64{0.1, 0.2}, []float64{0, 0}))
	assert.Equal(t, 0.5, AUC([]float64{0.1, 0.2}, []float64{1, 1}))
}

func TestAUC01RescalesAndClampsAtZero(t *testing.T) {
	assert.InDelta(t, 1.0, AUC01(1.0), 1e-9)
	assert.InDelta(t, 0.0, AUC01(0.5), 1e-9)
	assert.Equal(t, 0.0, AUC01(0.3), "below-chance AUC must clamp to 0, not go negative")
}

func TestBrierPerfectPredictionsIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Brier([]float64{0, 1, 1}, []float64{0, 1, 1}))
}

func TestTop3CoverageGroupsByRace(t *testing.T) {
	raceIDs := []string{"r1", "r1", "r1", "r2", "r2"}
	winProbs := []float64{0.1, 0.2, 0.7, 0.9, 0.1}
	isWinner := []bool{false, false, true, false, true}
	// r1: winner (prob 0.7) ranks 1st of 3 -> covered.
	// r2: winner (prob 0.1) ranks 2nd of 2 -> covered (top-3 includes all of a 2-horse race).
	assert.Equal(t, 1.0, Top3Coverage(raceIDs, winProbs, isWinner))
}

func TestTop3CoverageMissedWinnerLowersScore(t *testing.T) {
	raceIDs := []string{"r1", "r1", "r1", "r1"}
	winProbs := []float64{0.9, 0.8, 0.7, 0.6}
	isWinner := []bool{false, false, false, true} // actual winner ranked 4th, outside top 3
	assert.Equal(t, 0.0, Top3Coverage(raceIDs, winProbs, isWinner))
}
