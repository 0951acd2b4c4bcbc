package prediction_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/prediction"
	"github.com/keiba-predict/engine/store"
)

const scenarioRaceID = "2025012506010911"

func TestGeneratePredictionMockScenario(t *testing.T) {
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)

	resp, err := f.GeneratePrediction(context.Background(), scenarioRaceID, false, nil)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(resp.Horses), 5)

	var winSum float64
	for i, h := range resp.Horses {
		assert.Equal(t, i+1, h.Rank, "ranks must be sequential starting at 1")
		assert.GreaterOrEqual(t, h.WinProbability, 0.0)
		assert.LessOrEqual(t, h.WinProbability, 1.0)
		assert.NotZero(t, h.HorseNumber, "a scratched horse (number 0) must never appear")
		winSum += h.WinProbability
	}
	assert.InDelta(t, 1.0, winSum, 0.1)

	assert.Equal(t, resp.Horses[0].WinProbability, maxWinProb(resp.Horses), "rank 1 must carry the max win probability")
}

func TestGeneratePredictionUpsertIsIdempotentOnID(t *testing.T) {
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)
	ctx := context.Background()

	first, err := f.GeneratePrediction(ctx, scenarioRaceID, false, nil)
	require.NoError(t, err)

	rec1, err := s.GetPredictionByRace(ctx, scenarioRaceID, false)
	require.NoError(t, err)

	second, err := f.GeneratePrediction(ctx, scenarioRaceID, false, nil)
	require.NoError(t, err)
	assert.Equal(t, first.RaceID, second.RaceID)

	rec2, err := s.GetPredictionByRace(ctx, scenarioRaceID, false)
	require.NoError(t, err)
	assert.Equal(t, rec1.PredictionID, rec2.PredictionID, "re-predicting the same (race_id, is_final) must keep the same prediction id")
}

func TestGeneratePredictionIsFinalAndPreliminaryAreDistinctRecords(t *testing.T) {
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)
	ctx := context.Background()

	_, err := f.GeneratePrediction(ctx, scenarioRaceID, false, nil)
	require.NoError(t, err)
	_, err = f.GeneratePrediction(ctx, scenarioRaceID, true, nil)
	require.NoError(t, err)

	prelim, err := s.GetPredictionByRace(ctx, scenarioRaceID, false)
	require.NoError(t, err)
	final, err := s.GetPredictionByRace(ctx, scenarioRaceID, true)
	require.NoError(t, err)
	assert.NotEqual(t, prelim.PredictionID, final.PredictionID)
}

func TestGeneratePredictionUnknownRaceFails(t *testing.T) {
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)

	_, err := f.GeneratePrediction(context.Background(), "not-a-real-race-id", false, nil)
	assert.Error(t, err)
}

func TestGeneratePredictionQuinellaProbabilitySumsToMinTwoN(t *testing.T) {
	s := store.NewMockStore()
	mgr := newTestManager(t)
	f := prediction.New(s, mgr, nil, nil)

	resp, err := f.GeneratePrediction(context.Background(), scenarioRaceID, false, nil)
	require.NoError(t, err)

	var quinellaSum float64
	for _, h := range resp.Horses {
		quinellaSum += h.QuinellaProbability
	}
	assert.InDelta(t, math.Min(2, float64(len(resp.Horses))), quinellaSum, 1e-6)
}

func maxWinProb(horses []models.HorsePrediction) float64 {
	var max float64
	for _, h := range horses {
		if h.WinProbability > max {
			max = h.WinProbability
		}
	}
	return max
}
