package models

import "errors"

// Error kinds surfaced by the store and feature/inference layers. The
// httpapi package is the only layer that translates these into the HTTP
// error envelope; every other layer just returns one of these wrapped
// with context.
var (
	// ErrRaceNotFound means the store has no race row for the given id.
	ErrRaceNotFound = errors.New("race not found")

	// ErrHorseNotFound means the store has no horse row for the given id.
	ErrHorseNotFound = errors.New("horse not found")

	// ErrPredictionNotFound means no prediction row exists for the lookup.
	ErrPredictionNotFound = errors.New("prediction not found")

	// ErrNoStarters means a race exists but has zero usable starter rows
	// (all scratched, or none declared yet). Distinct from ErrRaceNotFound:
	// the race is real, there's just nothing to predict.
	ErrNoStarters = errors.New("race has no starters")

	// ErrArtifactMissing means the active model artifact could not be
	// loaded. Hard error at startup; surfaced per-request otherwise.
	ErrArtifactMissing = errors.New("model artifact missing")

	// ErrFeatureMismatch means a loaded artifact's feature-name list does
	// not match what the extractor produced (schema drift).
	ErrFeatureMismatch = errors.New("feature schema mismatch")

	// ErrInvalidRequest covers malformed race-spec strings, unsupported
	// ticket types, and bad date parameters.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrTrainingAborted means the retrain pipeline could not produce a
	// usable artifact (no data in window, corrupt rows, search timeout).
	// The caller must leave the active artifact untouched.
	ErrTrainingAborted = errors.New("training aborted")
)
