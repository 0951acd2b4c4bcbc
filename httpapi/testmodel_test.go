package httpapi_test

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

// newTestManager builds a modelmanager.Manager over a temp directory
// holding one mixed-variant artifact, mirroring prediction package's own
// test fixture (duplicated here since the two are independent test binaries).
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
		row[0] = float64(i)
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
