package models

// EntryKey is the composite identity of a starter: (race, horse number).
type EntryKey struct {
	RaceID      string
	HorseNumber int
}

// Entry is a single horse's participation row for one race. Finishing fields are zero-valued until the race
// finalizes.
type Entry struct {
	EntryKey
	Post             int
	HorseID          string
	SexCode          string
	Age              int
	CarriedWeight10g int // carried weight in units of 10g, matches the source schema
	Blinkers         bool
	JockeyID         string
	TrainerID        string
	BodyWeightKg     float64
	WeightDeltaKg    float64
	DeclaredOdds     float64
	DataKind         DataKind

	// Populated once the race is finalized.
	FinishingPosition int
	FinishTimeSeconds float64
	CornerPositions   []int // one entry per timed corner, in race order
	Last3FSeconds     float64
}

// IsScratched reports whether this is a registration-only / scratched
// starter (nominal horse number 0), which must never enter the ranking or
// be extracted for inference.
func (e Entry) IsScratched() bool {
	return e.HorseNumber == 0
}

// Finalized reports whether this entry carries a result.
func (e Entry) Finalized() bool {
	return e.DataKind == DataKindFinalized
}
