package ensemble

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/keiba-predict/engine/models"
)

// serializedNode/serializedLearner/serializedFamily are the on-disk JSON
// shape for a learner and a family, carrying a GrowStyle and the three
// per-family classifiers alongside the regressor.
type serializedNode struct {
	IsLeaf       bool            `json:"isLeaf"`
	Prediction   float64         `json:"prediction"`
	FeatureIndex int             `json:"featureIndex"`
	Threshold    float64         `json:"threshold"`
	Left         *serializedNode `json:"left,omitempty"`
	Right        *serializedNode `json:"right,omitempty"`
	SamplesCount int             `json:"samplesCount"`
}

func serializeNode(n *treeNode) *serializedNode {
	if n == nil {
		return nil
	}
	return &serializedNode{
		IsLeaf:       n.IsLeaf,
		Prediction:   n.Prediction,
		FeatureIndex: n.FeatureIndex,
		Threshold:    n.Threshold,
		SamplesCount: n.SamplesCount,
		Left:         serializeNode(n.Left),
		Right:        serializeNode(n.Right),
	}
}

func deserializeNode(n *serializedNode) *treeNode {
	if n == nil {
		return nil
	}
	return &treeNode{
		IsLeaf:       n.IsLeaf,
		Prediction:   n.Prediction,
		FeatureIndex: n.FeatureIndex,
		Threshold:    n.Threshold,
		SamplesCount: n.SamplesCount,
		Left:         deserializeNode(n.Left),
		Right:        deserializeNode(n.Right),
	}
}

type serializedLearner struct {
	Style        GrowStyle         `json:"style"`
	LearningRate float64           `json:"learningRate"`
	NumTrees     int               `json:"numTrees"`
	Trees        []*serializedNode `json:"trees"`
}

func serializeLearner(l *learner) serializedLearner {
	trees := make([]*serializedNode, len(l.Trees))
	for i, t := range l.Trees {
		trees[i] = serializeNode(t)
	}
	return serializedLearner{Style: l.Style, LearningRate: l.LearningRate, NumTrees: l.NumTrees, Trees: trees}
}

func deserializeLearner(s serializedLearner) *learner {
	l := &learner{Style: s.Style, LearningRate: s.LearningRate, NumTrees: s.NumTrees, cfg: newTreeConfig(s.Style)}
	l.Trees = make([]*treeNode, len(s.Trees))
	for i, t := range s.Trees {
		l.Trees[i] = deserializeNode(t)
	}
	return l
}

type serializedFamily struct {
	Style       GrowStyle                         `json:"style"`
	Regressor   serializedLearner                 `json:"regressor"`
	Classifiers map[models.Task]serializedLearner `json:"classifiers"`
}

type serializedCalibrator struct {
	IsotonicPoints []isotonicPoint `json:"isotonicPoints"`
	PlattA         float64         `json:"plattA"`
	PlattB         float64         `json:"plattB"`
	IsoWeight      float64         `json:"isoWeight"`
}

func serializeCalibrator(c *Calibrator) *serializedCalibrator {
	if c == nil {
		return nil
	}
	return &serializedCalibrator{
		IsotonicPoints: c.Isotonic.Points,
		PlattA:         c.Platt.A,
		PlattB:         c.Platt.B,
		IsoWeight:      c.IsoWeight,
	}
}

func deserializeCalibrator(s *serializedCalibrator) *Calibrator {
	if s == nil {
		return nil
	}
	return &Calibrator{
		Isotonic:  &isotonicModel{Points: s.IsotonicPoints},
		Platt:     &plattModel{A: s.PlattA, B: s.PlattB},
		IsoWeight: s.IsoWeight,
	}
}

// serializedEnsemble is the full on-disk payload persisted inside
// models.ModelArtifact.Payload.
type serializedEnsemble struct {
	Families     map[models.BaseLearnerFamily]serializedFamily `json:"families"`
	Weights      map[models.BaseLearnerFamily]float64          `json:"weights"`
	Calibrators  map[models.Task]*serializedCalibrator         `json:"calibrators"`
	HasQuinella  bool                                          `json:"hasQuinella"`
	HasRegressor bool                                          `json:"hasRegressor"`
}

// Serialize encodes e as JSON for on-disk persistence.
func (e *Ensemble) Serialize() ([]byte, error) {
	families := make(map[models.BaseLearnerFamily]serializedFamily, len(e.Families))
	for fam, f := range e.Families {
		classifiers := make(map[models.Task]serializedLearner, len(f.Classifiers))
		for task, l := range f.Classifiers {
			classifiers[task] = serializeLearner(l)
		}
		families[fam] = serializedFamily{Style: f.Style, Regressor: serializeLearner(f.Regressor), Classifiers: classifiers}
	}

	calibrators := make(map[models.Task]*serializedCalibrator, len(e.Calibrators))
	for task, c := range e.Calibrators {
		calibrators[task] = serializeCalibrator(c)
	}

	payload := serializedEnsemble{
		Families:     families,
		Weights:      e.Weights,
		Calibrators:  calibrators,
		HasQuinella:  e.HasQuinella,
		HasRegressor: e.HasRegressor,
	}
	return json.Marshal(payload)
}

// Deserialize decodes a payload produced by Serialize back into a runnable
// Ensemble.
func Deserialize(data []byte) (*Ensemble, error) {
	var payload serializedEnsemble
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("ensemble: decode payload: %w", err)
	}

	families := make(map[models.BaseLearnerFamily]*family, len(payload.Families))
	for fam, sf := range payload.Families {
		classifiers := make(map[models.Task]*learner, len(sf.Classifiers))
		for task, sl := range sf.Classifiers {
			classifiers[task] = deserializeLearner(sl)
		}
		families[fam] = &family{Style: sf.Style, Regressor: deserializeLearner(sf.Regressor), Classifiers: classifiers}
	}

	calibrators := make(map[models.Task]*Calibrator, len(payload.Calibrators))
	for task, sc := range payload.Calibrators {
		calibrators[task] = deserializeCalibrator(sc)
	}

	return &Ensemble{
		Families:     families,
		Weights:      payload.Weights,
		Calibrators:  calibrators,
		HasQuinella:  payload.HasQuinella,
		HasRegressor: payload.HasRegressor,
	}, nil
}

// BuildArtifact wraps e into a models.ModelArtifact ready for the Model
// Manager to persist.
func BuildArtifact(e *Ensemble, version string, samples int, surfaceFilter models.Surface, metrics map[string]float64) (models.ModelArtifact, error) {
	payload, err := e.Serialize()
	if err != nil {
		return models.ModelArtifact{}, err
	}
	return models.ModelArtifact{
		Version:      version,
		FeatureNames: models.FeatureNames(),
		Weights:      e.Weights,
		HasQuinella:  e.HasQuinella,
		HasRegressor: e.HasRegressor,
		Metadata: models.TrainingMetadata{
			Samples:       samples,
			TrainedAt:     time.Now(),
			Version:       version,
			SurfaceFilter: surfaceFilter,
			Metrics:       metrics,
		},
		Payload: payload,
	}, nil
}

// LoadArtifact reverses BuildArtifact, reconstructing a runnable Ensemble
// from a stored models.ModelArtifact.
func LoadArtifact(artifact models.ModelArtifact) (*Ensemble, error) {
	return Deserialize(artifact.Payload)
}
