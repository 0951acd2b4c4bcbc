package models

// RestBucket is one of the five rest-interval buckets derived by lag over
// a horse's race dates.
type RestBucket int

const (
	RestBackToBack RestBucket = iota // <=7d
	Rest8to14
	Rest15to21
	Rest22to28
	Rest29Plus
	restBucketCount
)

var restBucketNames = [restBucketCount]string{
	"rest_back_to_back", "rest_8_14", "rest_15_21", "rest_22_28", "rest_29_plus",
}

// RestBucketFor classifies a day gap into a RestBucket.
func RestBucketFor(daysSinceLastRace int) RestBucket {
	switch {
	case daysSinceLastRace <= 7:
		return RestBackToBack
	case daysSinceLastRace <= 14:
		return Rest8to14
	case daysSinceLastRace <= 21:
		return Rest15to21
	case daysSinceLastRace <= 28:
		return Rest22to28
	default:
		return Rest29Plus
	}
}

// conditionGrid indexes the turf/dirt x {good,slightly_heavy,heavy,bad}
// cross product.
var conditionGridSurfaces = [2]Surface{SurfaceTurf, SurfaceDirt}
var conditionGridConditions = [4]TrackCondition{ConditionGood, ConditionSlightlyHeavy, ConditionHeavy, ConditionBad}

// PaceStyle is a horse's running style bucket, derived from historical
// corner-3 average position.
type PaceStyle int

const (
	StyleFront PaceStyle = iota
	StyleStalker
	StyleCloser
	StyleDeepCloser
)

// PacePrediction is the per-race pace call derived by counting running
// styles across the field.
type PacePrediction int

const (
	PaceSlow PacePrediction = iota
	PaceMedium
	PaceFast
)

// PreviousRaceDetail captures one of up to 5 previous races for the
// "prior-race details" feature family.
type PreviousRaceDetail struct {
	FinishingPosition int
	Popularity        int
	Last3FSeconds     float64
	CornerPositions   []int
	VenueSmall        bool // small vs large venue classification
	Last3FRank        int  // rank within that race's field, 1 = fastest
}

// FeatureRow is the fixed-schema unit (81 numeric features) the model
// consumes, one per horse per race. Fields are
// grouped the way the extractor builds them; NumericFields()/FeatureNames() project
// this struct onto the ordered vector the ensemble and trainer operate on,
// and that ordering is exactly what gets persisted into a ModelArtifact.
type FeatureRow struct {
	// Identity/grouping, not part of the numeric vector.
	RaceID      string
	HorseNumber int
	HorseID     string
	Target      int // finishing position; 0 and HasTarget=false in inference mode
	HasTarget   bool

	// Basic info.
	Age              float64
	SexCode          float64 // ordinal encoding: 0 male, 1 female, 2 gelding
	CarriedWeight10g float64
	BodyWeightKg     float64
	WeightDeltaKg    float64
	DeclaredOdds     float64
	Post             float64
	Blinkers         float64
	DistanceM        float64

	// Last-10 aggregates.
	Last10Runs             float64
	Last10WinRate          float64
	Last10PlaceRate        float64
	Last10AvgFinishTime    float64
	Last10AvgLast3F        float64
	Last10AvgCorner        float64
	Last10BestFinish       float64
	Last10DecayWinRate     float64 // decay factor 0.85
	Last10DecayPlaceRate   float64
	Last10DecayAvgLast3F   float64
	Last10Corner3to4Delta  float64 // position-change between corner 3 and 4
	Last10FinishRankStdDev float64
	Last10TimeStdDev       float64
	Last10Last3FStdDev     float64
	LastJockeyID           float64 // bucketed hash, see utils.BucketHash

	// Turf/dirt splits.
	TurfRuns      float64
	TurfWinRate   float64
	TurfPlaceRate float64
	DirtRuns      float64
	DirtWinRate   float64
	DirtPlaceRate float64

	// Turn-direction rates, Bayesian-smoothed toward 0.25 when n<5.
	RightHandedWinRate float64
	LeftHandedWinRate  float64

	// Condition grid: [surface][condition] win rate and place rate.
	ConditionWinRate   [2][4]float64
	ConditionPlaceRate [2][4]float64

	// Rest-interval bucket rates.
	RestBucketWinRate [restBucketCount]float64

	// Pedigree.
	SireBucket           float64 // 0..9999 stable hash bucket
	BroodmareSireBucket  float64
	SireWinRateTurf      float64
	SireWinRateDirt      float64
	SireMaidenWinRate    float64
	SireConfidence       float64 // log-scale blend confidence, threshold 50
	SireMaidenConfidence float64 // threshold 30

	// Venue x surface.
	VenueSurfaceWinRate   float64
	VenueSurfacePlaceRate float64
	VenueSurfaceRuns      float64

	// Previous up-to-5 races and derived trend.
	Previous         []PreviousRaceDetail
	RecentTrend      float64 // positive = improving finishing position
	LatePushTendency float64 // average (corner3 - corner4) position gain

	// Jockey/trainer rates.
	JockeyYearWinRate      float64
	JockeyYearPlaceRate    float64
	JockeyMaidenWinRate    float64 // 3yr window, maiden races, threshold 30
	JockeyMaidenConfidence float64
	JockeyRecentConfidence float64 // linear capped confidence, threshold 10
	TrainerYearWinRate     float64
	TrainerYearPlaceRate   float64
	JockeyHorseRuns        float64 // jockey+horse combo run count, cliff at runs>=3 else 0

	// Pace/style signals.
	Style    float64 // PaceStyle as float
	RacePace float64 // PacePrediction as float

	// Seasonal encodings.
	MonthSin        float64
	MonthCos        float64
	MeetWeek        float64
	ThreeYearGrowth float64 // 3yo, months 3-8
	FourYearEarly   float64 // 4yo, months 1-6
	Winter          float64
}

// FeatureNames returns the canonical, fixed ordering of numeric feature
// names. A ModelArtifact persists exactly this list; Values() must return
// a vector in the same order. Changing this ordering changes the trained
// artifact's schema.
func FeatureNames() []string {
	names := []string{
		"age", "sex_code", "carried_weight_10g", "body_weight_kg", "weight_delta_kg",
		"declared_odds", "post", "blinkers", "distance_m",
		"last10_runs", "last10_win_rate", "last10_place_rate", "last10_avg_finish_time",
		"last10_avg_last3f", "last10_avg_corner", "last10_best_finish",
		"last10_decay_win_rate", "last10_decay_place_rate", "last10_decay_avg_last3f",
		"last10_corner3to4_delta", "last10_finish_rank_stddev", "last10_time_stddev",
		"last10_last3f_stddev", "last_jockey_id",
		"turf_runs", "turf_win_rate", "turf_place_rate",
		"dirt_runs", "dirt_win_rate", "dirt_place_rate",
		"right_handed_win_rate", "left_handed_win_rate",
	}
	for _, s := range conditionGridSurfaces {
		for _, c := range conditionGridConditions {
			names = append(names, string(s)+"_"+string(c)+"_win_rate")
		}
	}
	for _, s := range conditionGridSurfaces {
		for _, c := range conditionGridConditions {
			names = append(names, string(s)+"_"+string(c)+"_place_rate")
		}
	}
	for _, n := range restBucketNames {
		names = append(names, n+"_win_rate")
	}
	names = append(names,
		"sire_bucket", "broodmare_sire_bucket", "sire_win_rate_turf", "sire_win_rate_dirt",
		"sire_maiden_win_rate", "sire_confidence", "sire_maiden_confidence",
		"venue_surface_win_rate", "venue_surface_place_rate", "venue_surface_runs",
		"recent_trend", "late_push_tendency",
		"jockey_year_win_rate", "jockey_year_place_rate", "jockey_maiden_win_rate",
		"jockey_maiden_confidence", "jockey_recent_confidence",
		"trainer_year_win_rate", "trainer_year_place_rate", "jockey_horse_runs",
		"style", "race_pace",
		"month_sin", "month_cos", "meet_week", "three_year_growth", "four_year_early", "winter",
	)
	return names
}

// Values projects the struct onto the ordered numeric vector matching
// FeatureNames(). Training drops non-numeric/identifier columns (RaceID,
// HorseID, Target) before this point; Values()
// already excludes them.
func (f FeatureRow) Values() []float64 {
	v := make([]float64, 0, len(FeatureNames()))
	v = append(v,
		f.Age, f.SexCode, f.CarriedWeight10g, f.BodyWeightKg, f.WeightDeltaKg,
		f.DeclaredOdds, f.Post, f.Blinkers, f.DistanceM,
		f.Last10Runs, f.Last10WinRate, f.Last10PlaceRate, f.Last10AvgFinishTime,
		f.Last10AvgLast3F, f.Last10AvgCorner, f.Last10BestFinish,
		f.Last10DecayWinRate, f.Last10DecayPlaceRate, f.Last10DecayAvgLast3F,
		f.Last10Corner3to4Delta, f.Last10FinishRankStdDev, f.Last10TimeStdDev,
		f.Last10Last3FStdDev, f.LastJockeyID,
		f.TurfRuns, f.TurfWinRate, f.TurfPlaceRate,
		f.DirtRuns, f.DirtWinRate, f.DirtPlaceRate,
		f.RightHandedWinRate, f.LeftHandedWinRate,
	)
	for i := range conditionGridSurfaces {
		for j := range conditionGridConditions {
			v = append(v, f.ConditionWinRate[i][j])
		}
	}
	for i := range conditionGridSurfaces {
		for j := range conditionGridConditions {
			v = append(v, f.ConditionPlaceRate[i][j])
		}
	}
	for i := range f.RestBucketWinRate {
		v = append(v, f.RestBucketWinRate[i])
	}
	v = append(v,
		f.SireBucket, f.BroodmareSireBucket, f.SireWinRateTurf, f.SireWinRateDirt,
		f.SireMaidenWinRate, f.SireConfidence, f.SireMaidenConfidence,
		f.VenueSurfaceWinRate, f.VenueSurfacePlaceRate, f.VenueSurfaceRuns,
		f.RecentTrend, f.LatePushTendency,
		f.JockeyYearWinRate, f.JockeyYearPlaceRate, f.JockeyMaidenWinRate,
		f.JockeyMaidenConfidence, f.JockeyRecentConfidence,
		f.TrainerYearWinRate, f.TrainerYearPlaceRate, f.JockeyHorseRuns,
		f.Style, f.RacePace,
		f.MonthSin, f.MonthCos, f.MeetWeek, f.ThreeYearGrowth, f.FourYearEarly, f.Winter,
	)
	return v
}
