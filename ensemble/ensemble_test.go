package ensemble

import (
	"testing"

	"github.com/keiba-predict/engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsotonicIsMonotone(t *testing.T) {
	x := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.9}
	y := []float64{0, 1, 0, 1, 1, 1}
	m := fitIsotonic(x, y)

	prev := -1.0
	for p := 0.0; p <= 1.0; p += 0.05 {
		got := m.predict(p)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestCalibratorClipsToUnitRange(t *testing.T) {
	c := FitCalibrator([]float64{0.1, 0.4, 0.7, 0.9}, []float64{0, 0, 1, 1})
	for _, raw := range []float64{-5, 0, 0.5, 1, 5} {
		got := c.Apply(raw)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestClipAndRenormalizeSumsToOne(t *testing.T) {
	w := clipAndRenormalize([3]float64{0.9, 0.05, 0.05})
	sum := w[0] + w[1] + w[2]
	assert.InDelta(t, 1.0, sum, 1e-9)
	// 0.9 clips to 0.6 and each 0.05 to 0.1 (sum 0.8); renormalizing then
	// rescales them to 0.75, 0.125, 0.125.
	assert.InDelta(t, 0.75, w[0], 1e-9)
	assert.InDelta(t, 0.125, w[1], 1e-9)
	assert.InDelta(t, 0.125, w[2], 1e-9)
}

func TestTreeFitsSeparableData(t *testing.T) {
	// 24 rows, so the root clears the histogram style's minimum leaf size
	// (8) and a 12/12 split is allowed.
	features := [][]float64{
		{0}, {1}, {2}, {3}, {0}, {1}, {2}, {3}, {0}, {1}, {2}, {3},
		{10}, {11}, {12}, {13}, {10}, {11}, {12}, {13}, {10}, {11}, {12}, {13},
	}
	targets := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

	l := newLearner(GrowHistogram)
	l.NumTrees = 20
	l.fit(features, targets)

	assert.Less(t, l.predict([]float64{1}), l.predict([]float64{12}))
}

func TestEnsembleRoundTripSerialize(t *testing.T) {
	e := New()
	features := [][]float64{{0, 1}, {1, 1}, {2, 0}, {3, 0}}
	regression := []float64{4, 3, 2, 1}
	labels := map[models.Task][]float64{
		models.TaskWin:      {0, 0, 1, 1},
		models.TaskQuinella: {0, 1, 1, 1},
		models.TaskPlace:    {1, 1, 1, 1},
	}
	e.FitFamilies(features, regression, labels)
	e.FitCalibratorsAndWeights(features, labels)

	data, err := e.Serialize()
	require.NoError(t, err)

	restored, err := Deserialize(data)
	require.NoError(t, err)

	want := e.Predict([]float64{2, 0})
	got := restored.Predict([]float64{2, 0})
	assert.InDelta(t, want.PWin, got.PWin, 1e-9)
	assert.InDelta(t, want.RankScore, got.RankScore, 1e-9)
}
