// Package store defines the narrow query contract the core consumes from
// the relational race/horse/jockey/payout store. The core
// treats the backing schema as a set of opaque tables; concrete
// implementations live in this package (pgx-backed Postgres for
// DB_MODE=local, an in-memory deterministic one for DB_MODE=mock).
package store

import (
	"context"
	"time"

	"github.com/keiba-predict/engine/models"
)

// HorseRaceContext pairs a horse with the race whose features are being
// built for it. Every historical-aggregate lookup is driven by a batch of
// these so the leak-prevention filter `historical_race_id < current_race_id`
// is pushed into a single join-on-values SQL query rather than enforced by
// filtering an unbounded history pull in application code.
type HorseRaceContext struct {
	HorseID       string
	CurrentRaceID string
}

// RaceBundle is everything the Feature Extractor and Prediction Facade
// need for one race, loaded via a single aggregation call. Histories/SireStats/JockeyAggregates are already leak-filtered
// against each entry's race.
type RaceBundle struct {
	Race                models.Race
	Entries             []models.Entry
	Histories           map[string][]models.HistoricalRaceRecord // horseID -> past races, most-recent-first
	Pedigrees           map[string]models.Pedigree               // horseID -> pedigree
	SireStatsTurf       map[string]models.SireStats              // sireID -> turf stats
	SireStatsDirt       map[string]models.SireStats              // sireID -> dirt stats
	JockeyAggregates    map[string]models.JockeyAggregate        // jockeyID -> current-year rates
	JockeyMaidenAgg     map[string]models.JockeyAggregate        // jockeyID -> 3yr maiden-only rates
	TrainerAggregates   map[string]models.TrainerAggregate       // trainerID -> current-year rates
	VenueSurfaceStats   map[string]models.TrackConditionStats    // horseID -> venue x surface rates (Condition field unused)
	TrackConditionStats map[string]models.TrackConditionStats    // horseID -> exact surface/condition rates
	JockeyHorseRuns     map[string]int                           // "jockeyID|horseID" -> combo run count
}

// Store is the narrow read/write contract the engine depends on. Every
// method is a single round trip: no N+1 query patterns.
type Store interface {
	// GetRace returns race metadata, or models.ErrRaceNotFound.
	GetRace(ctx context.Context, raceID string) (models.Race, error)

	// ListCandidateRaces returns races for a year at the given data kind,
	// optionally restricted by surface.
	ListCandidateRaces(ctx context.Context, year int, kind models.DataKind, surfaceFilter *models.Surface) ([]models.Race, error)

	// ListRacesByDate returns every race declared for one calendar date,
	// backing GET /races/today and GET /races/date/{d}.
	ListRacesByDate(ctx context.Context, date time.Time) ([]models.Race, error)

	// ListUpcomingRaces returns races declared in [from, from+days), backing
	// GET /races/upcoming.
	ListUpcomingRaces(ctx context.Context, from time.Time, days int) ([]models.Race, error)

	// SearchRacesByName matches races whose name contains any of terms
	// (already alias-expanded by the caller via ExpandRaceNameQuery),
	// backing GET /races/search/name.
	SearchRacesByName(ctx context.Context, terms []string) ([]models.Race, error)

	// GetHorse returns registry metadata for one horse, or
	// models.ErrHorseNotFound.
	GetHorse(ctx context.Context, horseID string) (models.Horse, error)

	// LoadRaceBundle loads the full aggregation for one race.
	LoadRaceBundle(ctx context.Context, raceID string) (RaceBundle, error)

	// GetBiasSnapshot returns the bias snapshot for (date, venue), or nil
	// if none exists.
	GetBiasSnapshot(ctx context.Context, date time.Time, venueCode string) (*models.BiasSnapshot, error)

	// GetCurrentTrackCondition reads the most-recently-inserted condition
	// row for a race, truncating the race code to 14 chars as the source
	// schema does.
	GetCurrentTrackCondition(ctx context.Context, raceID string) (models.Surface, models.TrackCondition, error)

	// GetPayoutRecord returns the payout record for a finalized race, used
	// only by evaluation.
	GetPayoutRecord(ctx context.Context, raceID string) (models.PayoutRecord, error)

	// GetDeclaredOdds returns horseNumber -> declared win odds for a race,
	// used by the EV-return simulation.
	GetDeclaredOdds(ctx context.Context, raceID string) (map[int]float64, error)

	// UpsertPrediction writes rec, keyed by (RaceID, IsFinal); concurrent
	// writers resolve by last-writer-wins on PredictedAt.
	UpsertPrediction(ctx context.Context, rec *models.PredictionRecord) error

	// GetPredictionByID returns a previously saved prediction, or
	// models.ErrPredictionNotFound.
	GetPredictionByID(ctx context.Context, predictionID string) (models.PredictionRecord, error)

	// GetPredictionByRace returns the prediction for (raceID, isFinal), or
	// models.ErrPredictionNotFound.
	GetPredictionByRace(ctx context.Context, raceID string, isFinal bool) (models.PredictionRecord, error)

	// SaveCalibrationReport persists calibration bin diagnostics for a
	// model version.
	SaveCalibrationReport(ctx context.Context, modelVersion string, bins []models.CalibrationBin) error

	// SearchHorses / SearchJockeys back the search endpoints.
	SearchHorses(ctx context.Context, query string) ([]models.Horse, error)
	SearchJockeys(ctx context.Context, query string) ([]JockeySummary, error)

	// Close releases any pooled resources.
	Close()
}

// JockeySummary is the projection returned by jockey search.
type JockeySummary struct {
	JockeyID    string
	Name        string
	Affiliation string
}
