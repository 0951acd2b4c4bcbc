package modelmanager

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

// PromotionResult reports what Promote decided and why, for the retrain
// command's log output and the sidecar report.
type PromotionResult struct {
	Promoted    bool
	Reason      string
	OldScore    float64
	NewScore    float64
	SchemaDrift bool
}

// Promote compares candidate against the currently active artifact for
// surfaceFilter's variant by backtesting both against backtestYear -- a
// year strictly outside the candidate's training window -- and promotes
// iff the candidate's composite score is higher, or unconditionally if the
// active artifact's feature schema no longer matches models.FeatureNames().
// Promotion copies the old artifact file to a timestamped backup
// directory, then writes the candidate as the new active file and
// atomically swaps the in-memory reference.
func (m *Manager) Promote(ctx context.Context, s store.Store, surfaceFilter *models.Surface, candidate models.ModelArtifact, backtestYear int) (PromotionResult, error) {
	v := variantFor(surfaceValue(surfaceFilter))

	candidateEnsemble, err := ensemble.LoadArtifact(candidate)
	if err != nil {
		return PromotionResult{}, fmt.Errorf("modelmanager: load candidate: %w", err)
	}
	newScore, err := runBacktest(ctx, s, candidateEnsemble, backtestYear, surfaceFilter)
	if err != nil {
		return PromotionResult{}, fmt.Errorf("modelmanager: backtest candidate: %w", err)
	}

	old := m.slot(v).Load()
	if old == nil {
		if l, err := m.readFromDisk(v); err == nil {
			m.slot(v).Store(l)
			old = l
		}
	}
	if old == nil {
		// No active artifact for this variant at all: first artifact ever
		// for this variant always gets adopted.
		if err := m.adopt(v, candidate); err != nil {
			return PromotionResult{}, err
		}
		return PromotionResult{Promoted: true, Reason: "no active artifact for variant", NewScore: newScore.Composite}, nil
	}

	if schemaDrifted(old.Artifact) {
		if err := m.backup(v); err != nil {
			return PromotionResult{}, err
		}
		if err := m.adopt(v, candidate); err != nil {
			return PromotionResult{}, err
		}
		return PromotionResult{Promoted: true, Reason: "active artifact has schema drift", NewScore: newScore.Composite, SchemaDrift: true}, nil
	}

	oldScore, err := runBacktest(ctx, s, old.Ensemble, backtestYear, surfaceFilter)
	if err != nil {
		return PromotionResult{}, fmt.Errorf("modelmanager: backtest active: %w", err)
	}

	if newScore.Composite <= oldScore.Composite {
		return PromotionResult{Promoted: false, Reason: "candidate did not beat active", OldScore: oldScore.Composite, NewScore: newScore.Composite}, nil
	}

	if err := m.backup(v); err != nil {
		return PromotionResult{}, err
	}
	if err := m.adopt(v, candidate); err != nil {
		return PromotionResult{}, err
	}
	return PromotionResult{Promoted: true, Reason: "candidate beat active", OldScore: oldScore.Composite, NewScore: newScore.Composite}, nil
}

func surfaceValue(s *models.Surface) models.Surface {
	if s == nil {
		return models.SurfaceUnknown
	}
	return *s
}

// schemaDrifted reports whether an artifact's persisted feature ordering no
// longer matches the extractor's current schema -- any mismatch means the
// artifact can never be safely applied to freshly extracted rows again.
func schemaDrifted(artifact models.ModelArtifact) bool {
	current := models.FeatureNames()
	if len(artifact.FeatureNames) != len(current) {
		return true
	}
	for i, name := range current {
		if artifact.FeatureNames[i] != name {
			return true
		}
	}
	return false
}

// backup copies the current active file for v into the timestamped backup
// directory before it gets overwritten.
func (m *Manager) backup(v variant) error {
	src := m.activePath(v)
	data, err := os.ReadFile(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	dst := m.backupPath(v, time.Now())
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// adopt persists artifact as v's active file and swaps the in-memory
// reference atomically; readers mid-Predict against the old pointer are
// unaffected.
func (m *Manager) adopt(v variant, artifact models.ModelArtifact) error {
	e, err := ensemble.LoadArtifact(artifact)
	if err != nil {
		return err
	}
	if err := m.writeActive(v, artifact); err != nil {
		return err
	}
	m.slot(v).Store(&loaded{Ensemble: e, Artifact: artifact})
	return nil
}
