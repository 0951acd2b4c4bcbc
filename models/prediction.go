package models

import "time"

// PositionDistribution is a horse's probability mass over finishing
// buckets. The four fields sum to 1.
type PositionDistribution struct {
	First      float64
	Second     float64
	Third      float64
	OutOfPlace float64
}

// HorsePrediction is one ranked horse within a PredictionResponse.
type HorsePrediction struct {
	HorseNumber         int
	HorseID             string
	Rank                int // 1-based, ordered by WinProbability descending
	RankScore           float64
	WinProbability      float64
	QuinellaProbability float64
	PlaceProbability    float64
	Position            PositionDistribution
	Confidence          float64
}

// DarkHorse is an auxiliary callout: place probability is substantial but
// win probability is not.
type DarkHorse struct {
	HorseNumber      int
	HorseID          string
	PlaceProbability float64
	WinProbability   float64
}

// PredictionResponse is the full assembled output of the facade.
type PredictionResponse struct {
	RaceID         string
	IsFinal        bool
	GeneratedAt    time.Time
	ModelVersion   string
	Horses         []HorsePrediction // ordered by Rank ascending
	TopQuinella    []HorsePrediction // top-5 by QuinellaProbability
	TopPlace       []HorsePrediction // top-5 by PlaceProbability
	DarkHorses     []DarkHorse       // up to 3
	RaceConfidence float64
}

// PredictionRecord is the persisted row keyed by (RaceID, IsFinal). PredictionID is assigned on first insert and
// preserved across upserts so repeated calls keep returning the same id.
type PredictionRecord struct {
	PredictionID string
	RaceID       string
	RaceDate     time.Time
	IsFinal      bool
	Result       PredictionResponse
	PredictedAt  time.Time
}
