package modelmanager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
)

func buildTestArtifact(t *testing.T, version string, featureNames []string) models.ModelArtifact {
	t.Helper()
	width := len(models.FeatureNames())
	features := [][]float64{{0}, {1}, {2}, {3}}
	for i := range features {
		row := make([]float64, width)
		row[0] = features[i][0]
		features[i] = row
	}
	labels := map[models.Task][]float64{
		models.TaskWin:      {1, 0, 0, 0},
		models.TaskQuinella: {1, 1, 0, 0},
		models.TaskPlace:    {1, 1, 1, 0},
	}
	e := ensemble.New()
	e.FitFamilies(features, []float64{4, 3, 2, 1}, labels)
	e.FitCalibratorsAndWeights(features, labels)

	artifact, err := ensemble.BuildArtifact(e, version, len(features), models.SurfaceUnknown, nil)
	require.NoError(t, err)
	if featureNames != nil {
		artifact.FeatureNames = featureNames
	}
	return artifact
}

func TestVariantForMapsSurfaces(t *testing.T) {
	assert.Equal(t, variantTurf, variantFor(models.SurfaceTurf))
	assert.Equal(t, variantDirt, variantFor(models.SurfaceDirt))
	assert.Equal(t, variantMixed, variantFor(models.SurfaceUnknown))
	assert.Equal(t, variantMixed, variantFor(models.SurfaceObstacle))
}

func TestLoadMissingArtifactReturnsErrArtifactMissing(t *testing.T) {
	m := New(t.TempDir())
	_, _, err := m.Load(models.SurfaceUnknown)
	assert.ErrorIs(t, err, models.ErrArtifactMissing)
}

func TestLoadSurfaceSpecificFallsBackToMixed(t *testing.T) {
	m := New(t.TempDir())
	artifact := buildTestArtifact(t, "mixed-v1", nil)
	require.NoError(t, m.adopt(variantMixed, artifact))

	// no turf-specific artifact written: Load(turf) must fall back to mixed.
	_, got, err := m.Load(models.SurfaceTurf)
	require.NoError(t, err)
	assert.Equal(t, "mixed-v1", got.Version)
}

func TestAdoptThenLoadRoundTrips(t *testing.T) {
	m := New(t.TempDir())
	artifact := buildTestArtifact(t, "v1", nil)
	require.NoError(t, m.adopt(variantMixed, artifact))

	e, got, err := m.Load(models.SurfaceUnknown)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version)
	assert.NotNil(t, e)
}

func TestReloadIsIdempotent(t *testing.T) {
	m := New(t.TempDir())
	artifact := buildTestArtifact(t, "v1", nil)
	require.NoError(t, m.adopt(variantMixed, artifact))

	require.NoError(t, m.Reload())
	require.NoError(t, m.Reload())

	_, got, err := m.Load(models.SurfaceUnknown)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Version)
}

func TestBeginRetrainExcludesConcurrentRetrain(t *testing.T) {
	m := New(t.TempDir())
	assert.True(t, m.BeginRetrain())
	assert.False(t, m.BeginRetrain(), "a second retrain must not start while one is in flight")
	m.EndRetrain()
	assert.True(t, m.BeginRetrain())
}

func TestSchemaDriftedDetectsMismatch(t *testing.T) {
	current := buildTestArtifact(t, "v1", nil)
	assert.False(t, schemaDrifted(current))

	drifted := buildTestArtifact(t, "v1", []string{"only_one_feature"})
	assert.True(t, schemaDrifted(drifted))
}
