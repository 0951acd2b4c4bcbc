package models

import "time"

// Horse is the registry row for a single horse.
type Horse struct {
	HorseID    string
	Name       string
	BirthDate  time.Time
	SexCode    string
	CoatColor  string
	SireRegNum string
	DamRegNum  string
	Breeder    string
	Owner      string
	TrainerID  string
}

// HistoricalRaceRecord is a past (race, horse) tuple used to build
// past-performance aggregates. The store indexes these by
// horse id so a horse's last-N races can be fetched in one query.
type HistoricalRaceRecord struct {
	RaceID            string
	RaceDate          time.Time
	HorseID           string
	JockeyID          string
	FinishingPosition int
	FinishTimeSeconds float64
	CornerPositions   []int
	Last3FSeconds     float64
	Odds              float64
	VenueCode         string
	DistanceM         int
	Surface           Surface
	TrackCondition    TrackCondition
	Popularity        int // betting-favorite rank at that race, 1 = favorite
}

// Pedigree maps a horse to its sire and broodmare sire.
type Pedigree struct {
	HorseID         string
	SireID          string
	BroodmareSireID string
}

// SireStats are the past-3-years offspring aggregates for a sire, split by
// surface, plus a 5-year maiden-only variant.
type SireStats struct {
	SireID        string
	Surface       Surface
	Runs          int
	WinRate       float64
	PlaceRate     float64
	MaidenRuns    int // 5-year window, maiden races only
	MaidenWinRate float64
}

// JockeyAggregate is an annualized win/place rate, optionally restricted by
// surface, distance, venue, or to maiden races.
type JockeyAggregate struct {
	JockeyID   string
	Year       int
	Runs       int
	WinRate    float64
	PlaceRate  float64
	MaidenOnly bool
}

// TrainerAggregate mirrors JockeyAggregate for trainers.
type TrainerAggregate struct {
	TrainerID string
	Year      int
	Runs      int
	WinRate   float64
	PlaceRate float64
}
