package features

import "github.com/keiba-predict/engine/models"

// Prior fallback values a sub-aggregate degrades to when a horse has no
// qualifying history, so a thin data window never aborts extraction.
const (
	priorWinRate    = 0.08
	priorPlaceRate  = 0.25
	priorLast3F     = 35.0
	priorFinishTime = 90.0

	// confidence thresholds below which a rate blends toward its prior.
	sireConfidenceThreshold         = 50
	sireMaidenConfidenceThreshold   = 30
	jockeyMaidenConfidenceThreshold = 30
	jockeyRecentConfidenceThreshold = 10

	// sample-size minimums, turn-direction smoothing strength, and the
	// sire/jockey hash bucket count.
	minVenueSurfaceRuns   = 3
	minTrackConditionRuns = 2
	turnDirectionSmoothK  = 5.0
	sireHashBuckets       = 10000
)

// conditionSurfaces/conditionConditions drive the turf/dirt x
// {good,slightly_heavy,heavy,bad} cross product.
// models.FeatureRow.ConditionWinRate/ConditionPlaceRate are indexed in this
// same order, matching models.FeatureNames()'s unexported grid arrays.
var (
	conditionSurfaces   = [2]models.Surface{models.SurfaceTurf, models.SurfaceDirt}
	conditionConditions = [4]models.TrackCondition{
		models.ConditionGood, models.ConditionSlightlyHeavy, models.ConditionHeavy, models.ConditionBad,
	}
)
