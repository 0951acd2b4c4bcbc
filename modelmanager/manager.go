// Package modelmanager owns the one live artifact per surface variant
// (mixed/turf/dirt), loading and atomically swapping it, and decides
// whether a freshly retrained candidate should be promoted over it.
// State is scoped to a struct instance rather than package globals, since
// concurrent retrains and concurrent requests both need a well-defined
// lock boundary.
package modelmanager

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
)

// variant is the on-disk surface-filter tag a variant's artifact file is
// suffixed with.
type variant string

const (
	variantMixed variant = "mixed"
	variantTurf  variant = "turf"
	variantDirt  variant = "dirt"
)

func variantFor(s models.Surface) variant {
	switch s {
	case models.SurfaceTurf:
		return variantTurf
	case models.SurfaceDirt:
		return variantDirt
	default:
		return variantMixed
	}
}

// loaded pairs a runnable ensemble with the artifact metadata it was built
// from, the unit (re)loaded and atomically swapped per variant.
type loaded struct {
	Ensemble *ensemble.Ensemble
	Artifact models.ModelArtifact
}

// Manager holds the active artifact for each surface variant, backed by a
// directory of JSON files. Reads of the active reference never block on a
// retrain; retrains are serialized against each other by retrainMu.
type Manager struct {
	baseDir string

	active sync.Map // variant -> atomic.Pointer[loaded]

	retrainMu       sync.Mutex
	retrainInFlight bool
}

// New builds a Manager rooted at baseDir.
func New(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

func (m *Manager) slot(v variant) *atomic.Pointer[loaded] {
	actual, _ := m.active.LoadOrStore(v, &atomic.Pointer[loaded]{})
	return actual.(*atomic.Pointer[loaded])
}

func (m *Manager) activePath(v variant) string {
	return filepath.Join(m.baseDir, fmt.Sprintf("ensemble_model_latest.%s.json", v))
}

func (m *Manager) backupPath(v variant, at time.Time) string {
	return filepath.Join(m.baseDir, "backups", fmt.Sprintf("ensemble_model_%s_%s.json", v, at.UTC().Format("20060102T150405Z")))
}

// Load returns the runnable ensemble for surface, loading it from disk on
// first use and falling back to the mixed variant if a surface-specific
// artifact is absent"). ErrArtifactMissing is
// returned only if neither the surface-specific nor mixed artifact exists.
func (m *Manager) Load(surface models.Surface) (*ensemble.Ensemble, models.ModelArtifact, error) {
	v := variantFor(surface)
	if l := m.slot(v).Load(); l != nil {
		return l.Ensemble, l.Artifact, nil
	}

	l, err := m.readFromDisk(v)
	if err == nil {
		m.slot(v).Store(l)
		return l.Ensemble, l.Artifact, nil
	}
	if v == variantMixed {
		return nil, models.ModelArtifact{}, models.ErrArtifactMissing
	}

	// Surface-specific artifact missing: fall back to mixed, but don't
	// cache the fallback under the surface-specific slot -- a later
	// promotion of the surface variant must still take effect.
	if l := m.slot(variantMixed).Load(); l != nil {
		return l.Ensemble, l.Artifact, nil
	}
	l, err = m.readFromDisk(variantMixed)
	if err != nil {
		return nil, models.ModelArtifact{}, models.ErrArtifactMissing
	}
	m.slot(variantMixed).Store(l)
	return l.Ensemble, l.Artifact, nil
}

func (m *Manager) readFromDisk(v variant) (*loaded, error) {
	data, err := os.ReadFile(m.activePath(v))
	if err != nil {
		return nil, err
	}
	var artifact models.ModelArtifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("modelmanager: decode artifact %s: %w", v, err)
	}
	e, err := ensemble.LoadArtifact(artifact)
	if err != nil {
		return nil, fmt.Errorf("modelmanager: load artifact %s: %w", v, err)
	}
	return &loaded{Ensemble: e, Artifact: artifact}, nil
}

// Reload re-reads every variant's active artifact from disk. Idempotent:
// calling it when nothing changed on disk just re-parses the same bytes
// idempotent").
func (m *Manager) Reload() error {
	var firstErr error
	for _, v := range []variant{variantMixed, variantTurf, variantDirt} {
		l, err := m.readFromDisk(v)
		if err != nil {
			if v == variantMixed && firstErr == nil {
				firstErr = err
			}
			continue
		}
		m.slot(v).Store(l)
	}
	return firstErr
}

// BeginRetrain acquires the exclusive retrain lock, returning false if a
// retrain is already in flight.
func (m *Manager) BeginRetrain() bool {
	m.retrainMu.Lock()
	defer m.retrainMu.Unlock()
	if m.retrainInFlight {
		return false
	}
	m.retrainInFlight = true
	return true
}

// EndRetrain releases the retrain lock.
func (m *Manager) EndRetrain() {
	m.retrainMu.Lock()
	m.retrainInFlight = false
	m.retrainMu.Unlock()
}

// writeActive persists artifact as the active file for v, creating the
// directory if needed.
func (m *Manager) writeActive(v variant, artifact models.ModelArtifact) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return err
	}
	return os.WriteFile(m.activePath(v), data, 0o644)
}
