package modelmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

// Promote backtests both candidate and active artifact before deciding;
// MockStore never finalizes an entry, so the
// backtest step itself fails here -- Promote must surface that error
// rather than promote blind.
func TestPromoteFailsWhenBacktestHasNoFinalizedRows(t *testing.T) {
	m := New(t.TempDir())
	s := store.NewMockStore()
	artifact := buildTestArtifact(t, "candidate-v1", nil)

	_, err := m.Promote(context.Background(), s, nil, artifact, 2024)
	assert.Error(t, err)
}

func TestSurfaceValueDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, models.SurfaceUnknown, surfaceValue(nil))
	turf := models.SurfaceTurf
	assert.Equal(t, models.SurfaceTurf, surfaceValue(&turf))
}
