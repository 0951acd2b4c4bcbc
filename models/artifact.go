package models

import "time"

// BaseLearnerFamily identifies which of the three GBDT-style tree families
// produced a given regressor/classifier.
type BaseLearnerFamily string

const (
	FamilyHistogram    BaseLearnerFamily = "histogram"     // histogram-split GBDT
	FamilyLeafWise     BaseLearnerFamily = "leaf_wise"     // leaf-wise growth GBDT
	FamilyOrderedBoost BaseLearnerFamily = "ordered_boost" // ordered-boosting GBDT
)

// AllFamilies is the canonical, fixed order families are evaluated and
// blended in; ensemble weights are positional against this order.
var AllFamilies = [3]BaseLearnerFamily{FamilyHistogram, FamilyLeafWise, FamilyOrderedBoost}

// Task identifies one of the three binary classification heads.
type Task string

const (
	TaskWin      Task = "win"
	TaskQuinella Task = "quinella" // top-2
	TaskPlace    Task = "place"    // top-3
)

var AllTasks = [3]Task{TaskWin, TaskQuinella, TaskPlace}

// TrainingMetadata records provenance for a ModelArtifact.
type TrainingMetadata struct {
	Samples       int
	TrainedAt     time.Time
	Version       string
	SurfaceFilter Surface // SurfaceUnknown means "mixed", no filter
	Metrics       map[string]float64
}

// ModelArtifact is the single versioned blob the prediction model consumes.
// Regressors/classifiers/calibrators are kept as opaque serializable values
// behind the ensemble package's own types; models.ModelArtifact only fixes
// the shape and the metadata that every consumer (trainer, model manager,
// prediction facade) needs without depending on ensemble's tree internals.
type ModelArtifact struct {
	Version      string
	FeatureNames []string                      // fixed ordering, must match models.FeatureNames() at build time
	Weights      map[BaseLearnerFamily]float64 // sums to 1
	HasQuinella  bool                          // false for legacy 2-model artifacts (no quinella classifier)
	HasRegressor bool                          // false means only raw scores are unavailable -> softmax fallback path
	Metadata     TrainingMetadata

	// Opaque payload, populated by ensemble.SerializeArtifact /
	// ensemble.DeserializeArtifact. Kept as []byte here so models has no
	// dependency on ensemble (avoids an import cycle: ensemble depends on
	// models for FeatureRow/Task/BaseLearnerFamily).
	Payload []byte
}

// CalibrationBin is one of the 20 equal-width diagnostic bins computed
// during test-split evaluation.
type CalibrationBin struct {
	Task          Task
	BinIndex      int
	PreCalMean    float64
	PostCalMean   float64
	EmpiricalRate float64
	PreCalBrier   float64
	PostCalBrier  float64
	Count         int
}
