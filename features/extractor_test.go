package features

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

func TestExtractRaceReturnsOneRowPerDeclaredStarter(t *testing.T) {
	s := store.NewMockStore()
	bundle, err := s.LoadRaceBundle(context.Background(), "2025012506010911")
	require.NoError(t, err)

	rows, err := ExtractRace(context.Background(), s, "2025012506010911")
	require.NoError(t, err)
	assert.Len(t, rows, len(bundle.Entries))
	assert.False(t, rows[0].HasTarget, "extract_race rows are for inference, never carry a finishing-position target")
}

func TestExtractRaceUnknownRaceIsRaceNotFound(t *testing.T) {
	s := store.NewMockStore()
	_, err := ExtractRace(context.Background(), s, "not-a-real-race")
	assert.ErrorIs(t, err, models.ErrRaceNotFound)
}

func TestExtractYearSkipsDeclaredOnlyEntries(t *testing.T) {
	// MockStore never marks an entry DataKindFinalized, so the training
	// path (which requires a finishing position) must yield nothing.
	s := store.NewMockStore()
	rows, err := ExtractYear(context.Background(), s, 2025, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSexOrdinalMapsKnownCodesDistinctly(t *testing.T) {
	assert.Equal(t, 0.0, sexOrdinal("1"))
	assert.Equal(t, 1.0, sexOrdinal("2"))
	assert.Equal(t, 2.0, sexOrdinal("anything-else"))
}

func TestRateOrPriorFallsBackWhenNoSamples(t *testing.T) {
	assert.Equal(t, 0.33, rateOrPrior(0, 0, 0.33))
	assert.Equal(t, 0.5, rateOrPrior(5, 10, 0.33))
}

func TestBlendedOrPriorFallsBackOnlyWhenRunsAreEmpty(t *testing.T) {
	assert.Equal(t, 0.2, blendedOrPrior(0.8, 0, 0.2))
	assert.Equal(t, 0.8, blendedOrPrior(0.8, 5, 0.2))
}
