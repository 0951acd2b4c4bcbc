package prediction_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/modelmanager"
	"github.com/keiba-predict/engine/models"
)

// newTestManager builds a modelmanager.Manager backed by a fresh temp
// directory holding one trained-enough mixed-variant artifact, so the
// facade's Load(race.Surface()) call always falls back to it regardless of
// surface.
func newTestManager(t *testing.T) *modelmanager.Manager {
	t.Helper()

	width := len(models.FeatureNames())
	features := make([][]float64, 6)
	regression := make([]float64, 6)
	labels := map[models.Task][]float64{
		models.TaskWin:      {1, 0, 0, 0, 0, 0},
		models.TaskQuinella: {1, 1, 0, 0, 0, 0},
		models.TaskPlace:    {1, 1, 1, 0, 0, 0},
	}
	for i := range features {
		row := make([]float64, width)
		row[0] = float64(i) // vary one feature so trees have something to split on
		features[i] = row
		regression[i] = float64(6 - i)
	}

	e := ensemble.New()
	e.FitFamilies(features, regression, labels)
	e.FitCalibratorsAndWeights(features, labels)

	artifact, err := ensemble.BuildArtifact(e, "test-v1", len(features), models.SurfaceUnknown, map[string]float64{"auc": 0.5})
	require.NoError(t, err)

	dir := t.TempDir()
	data, err := json.Marshal(artifact)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ensemble_model_latest.mixed.json"), data, 0o644))

	return modelmanager.New(dir)
}
