package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/keiba-predict/engine/models"
)

// MockStore is a deterministic, in-memory Store used when DB_MODE=mock.
// It never touches a database; every field is synthesized from the race
// id so repeated calls for the same race produce identical bundles.
type MockStore struct {
	mu          sync.Mutex
	predictions map[string]models.PredictionRecord // key: raceID+"|"+isFinal
	byID        map[string]string                  // predictionID -> key
}

// NewMockStore constructs an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		predictions: make(map[string]models.PredictionRecord),
		byID:        make(map[string]string),
	}
}

func (m *MockStore) Close() {}

func deterministicFloat(seed string, lo, hi float64) float64 {
	h := xxhash.Sum64String(seed)
	frac := float64(h%1_000_000) / 1_000_000.0
	return lo + frac*(hi-lo)
}

func deterministicInt(seed string, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	h := xxhash.Sum64String(seed)
	return lo + int(h%uint64(hi-lo))
}

// mockStarterCount derives the number of starters (5..16) from the race
// id so a caller can always expect a plausible-sized field.
func mockStarterCount(raceID string) int {
	return deterministicInt(raceID+"|starters", 5, 17)
}

// parseMockRaceID decodes the 16-char race id as year(4) month(2) day(2)
// venue(2) race-number(2), trailing 4 chars opaque. Every field the mock
// store derives from a race id is a pure function of that id so repeated
// calls for the same id are bit-identical.
func parseMockRaceID(raceID string) (year, month, day int, venue string, raceNum int, ok bool) {
	if len(raceID) != 16 {
		return 0, 0, 0, "", 0, false
	}
	var y, mo, d, rn int
	if _, err := fmt.Sscanf(raceID[0:4], "%d", &y); err != nil {
		return 0, 0, 0, "", 0, false
	}
	if _, err := fmt.Sscanf(raceID[4:6], "%d", &mo); err != nil {
		return 0, 0, 0, "", 0, false
	}
	if _, err := fmt.Sscanf(raceID[6:8], "%d", &d); err != nil {
		return 0, 0, 0, "", 0, false
	}
	v := raceID[8:10]
	if _, err := fmt.Sscanf(raceID[10:12], "%d", &rn); err != nil {
		return 0, 0, 0, "", 0, false
	}
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return 0, 0, 0, "", 0, false
	}
	return y, mo, d, v, rn, true
}

func (m *MockStore) GetRace(ctx context.Context, raceID string) (models.Race, error) {
	year, month, day, venue, raceNum, ok := parseMockRaceID(raceID)
	if !ok {
		return models.Race{}, models.ErrRaceNotFound
	}
	declaredStart := time.Date(year, time.Month(month), day, 15, 40, 0, 0, time.UTC)
	return models.Race{
		RaceID:               raceID,
		MeetYear:             year,
		MeetMonthDay:         month*100 + day,
		VenueCode:            venue,
		RaceNumber:           raceNum,
		DistanceM:            1000 + 200*deterministicInt(raceID+"|dist", 0, 10),
		TrackCode:            fmt.Sprintf("%d0", deterministicInt(raceID+"|track", 1, 6)),
		GradeCode:            "G3",
		WeatherCode:          "sunny",
		SurfaceConditionCode: string(models.ConditionGood),
		CurrentConditionCode: string(models.ConditionGood),
		DeclaredStart:        declaredStart,
		DataKind:             models.DataKindDeclared,
	}, nil
}

func (m *MockStore) ListCandidateRaces(ctx context.Context, year int, kind models.DataKind, surfaceFilter *models.Surface) ([]models.Race, error) {
	var out []models.Race
	for day := 1; day <= 12; day++ {
		for num := 1; num <= 12; num++ {
			venue := fmt.Sprintf("%02d", 1+(day%5))
			raceID := fmt.Sprintf("%04d%02d%02d%s%02d0000", year, 1, day, venue, num)
			r, err := m.GetRace(ctx, raceID)
			if err != nil {
				continue
			}
			r.DataKind = kind
			if surfaceFilter != nil && r.Surface() != *surfaceFilter {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// mockRaceNames cycles a small pool of real G1 names across generated mock
// races so SearchRacesByName has something deterministic to match against.
var mockRaceNames = []string{"有馬記念", "日本ダービー", "天皇賞（秋）", "安田記念", "菊花賞"}

func (m *MockStore) ListRacesByDate(ctx context.Context, date time.Time) ([]models.Race, error) {
	var out []models.Race
	for num := 1; num <= 12; num++ {
		venue := fmt.Sprintf("%02d", 1+(num%5))
		raceID := fmt.Sprintf("%04d%02d%02d%s%02d0000", date.Year(), int(date.Month()), date.Day(), venue, num)
		r, err := m.GetRace(ctx, raceID)
		if err != nil {
			continue
		}
		r.RaceName = mockRaceNames[num%len(mockRaceNames)]
		out = append(out, r)
	}
	return out, nil
}

func (m *MockStore) ListUpcomingRaces(ctx context.Context, from time.Time, days int) ([]models.Race, error) {
	var out []models.Race
	for d := 0; d < days; d++ {
		races, err := m.ListRacesByDate(ctx, from.AddDate(0, 0, d))
		if err != nil {
			return nil, err
		}
		out = append(out, races...)
	}
	return out, nil
}

func (m *MockStore) SearchRacesByName(ctx context.Context, terms []string) ([]models.Race, error) {
	today := time.Now().UTC()
	all, err := m.ListUpcomingRaces(ctx, today, 7)
	if err != nil {
		return nil, err
	}
	var out []models.Race
	for _, r := range all {
		for _, t := range terms {
			if t != "" && r.RaceName == t {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (m *MockStore) GetHorse(ctx context.Context, horseID string) (models.Horse, error) {
	if horseID == "" {
		return models.Horse{}, models.ErrHorseNotFound
	}
	return models.Horse{
		HorseID:   horseID,
		Name:      horseID + " Star",
		BirthDate: time.Date(deterministicInt(horseID+"|birthyear", 2018, 2023), 1, 1, 0, 0, 0, 0, time.UTC),
		SexCode:   "M",
		TrainerID: "T" + horseID,
	}, nil
}

func (m *MockStore) LoadRaceBundle(ctx context.Context, raceID string) (RaceBundle, error) {
	race, err := m.GetRace(ctx, raceID)
	if err != nil {
		return RaceBundle{}, err
	}

	n := mockStarterCount(raceID)
	bundle := RaceBundle{
		Race:                race,
		Histories:           make(map[string][]models.HistoricalRaceRecord),
		Pedigrees:           make(map[string]models.Pedigree),
		SireStatsTurf:       make(map[string]models.SireStats),
		SireStatsDirt:       make(map[string]models.SireStats),
		JockeyAggregates:    make(map[string]models.JockeyAggregate),
		JockeyMaidenAgg:     make(map[string]models.JockeyAggregate),
		TrainerAggregates:   make(map[string]models.TrainerAggregate),
		VenueSurfaceStats:   make(map[string]models.TrackConditionStats),
		TrackConditionStats: make(map[string]models.TrackConditionStats),
		JockeyHorseRuns:     make(map[string]int),
	}

	for i := 1; i <= n; i++ {
		horseID := fmt.Sprintf("H%s-%02d", raceID, i)
		jockeyID := fmt.Sprintf("J%s-%02d", raceID, i%5)
		trainerID := fmt.Sprintf("T%s-%02d", raceID, i%4)
		sireID := fmt.Sprintf("S%s-%02d", raceID, i%7)

		entry := models.Entry{
			EntryKey:         models.EntryKey{RaceID: raceID, HorseNumber: i},
			Post:             i,
			HorseID:          horseID,
			SexCode:          "M",
			Age:              deterministicInt(horseID+"|age", 3, 7),
			CarriedWeight10g: 5500,
			JockeyID:         jockeyID,
			TrainerID:        trainerID,
			BodyWeightKg:     deterministicFloat(horseID+"|bw", 440, 520),
			WeightDeltaKg:    deterministicFloat(horseID+"|wd", -8, 8),
			DeclaredOdds:     deterministicFloat(horseID+"|odds", 1.5, 60),
			DataKind:         models.DataKindDeclared,
		}
		bundle.Entries = append(bundle.Entries, entry)

		bundle.Pedigrees[horseID] = models.Pedigree{HorseID: horseID, SireID: sireID, BroodmareSireID: sireID + "-bm"}

		numPast := deterministicInt(horseID+"|pastn", 2, 11)
		for j := 0; j < numPast; j++ {
			// j=0 is the most recent past race; histories are stored
			// most-recent-first to match the Postgres store's ORDER BY
			// race_id DESC (store.RaceBundle.Histories doc comment).
			past := race.DeclaredStart.AddDate(0, 0, -(j+1)*21)
			corners := []int{
				deterministicInt(fmt.Sprintf("%s|c1|%d", horseID, j), 1, 14),
				deterministicInt(fmt.Sprintf("%s|c2|%d", horseID, j), 1, 14),
				deterministicInt(fmt.Sprintf("%s|c3|%d", horseID, j), 1, 14),
				deterministicInt(fmt.Sprintf("%s|c4|%d", horseID, j), 1, 14),
			}
			bundle.Histories[horseID] = append(bundle.Histories[horseID], models.HistoricalRaceRecord{
				RaceID:            fmt.Sprintf("%04d%02d%02d%s%02d%04d", past.Year(), int(past.Month()), past.Day(), race.VenueCode, 1, j),
				RaceDate:          past,
				HorseID:           horseID,
				JockeyID:          jockeyID,
				FinishingPosition: deterministicInt(fmt.Sprintf("%s|fin%d", horseID, j), 1, 14),
				FinishTimeSeconds: deterministicFloat(fmt.Sprintf("%s|ft%d", horseID, j), 84, 100),
				CornerPositions:   corners,
				Last3FSeconds:     deterministicFloat(fmt.Sprintf("%s|3f%d", horseID, j), 33, 39),
				Odds:              deterministicFloat(fmt.Sprintf("%s|podds%d", horseID, j), 1.5, 60),
				VenueCode:         race.VenueCode,
				DistanceM:         race.DistanceM,
				Surface:           race.Surface(),
				TrackCondition:    models.ConditionGood,
				Popularity:        deterministicInt(fmt.Sprintf("%s|pop%d", horseID, j), 1, 14),
			})
		}
		bundle.JockeyHorseRuns[ComboKey(jockeyID, horseID)] = deterministicInt(jockeyID+"|"+horseID+"|combo", 0, 12)

		bundle.JockeyAggregates[jockeyID] = models.JockeyAggregate{
			JockeyID: jockeyID, Year: race.MeetYear,
			Runs:      deterministicInt(jockeyID+"|runs", 20, 300),
			WinRate:   deterministicFloat(jockeyID+"|wr", 0.05, 0.25),
			PlaceRate: deterministicFloat(jockeyID+"|pr", 0.15, 0.45),
		}
		bundle.JockeyMaidenAgg[jockeyID] = models.JockeyAggregate{
			JockeyID: jockeyID, Year: race.MeetYear, MaidenOnly: true,
			Runs:      deterministicInt(jockeyID+"|maiden_runs", 0, 40),
			WinRate:   deterministicFloat(jockeyID+"|maiden_wr", 0.05, 0.20),
			PlaceRate: deterministicFloat(jockeyID+"|maiden_pr", 0.15, 0.40),
		}
		bundle.SireStatsTurf[sireID] = models.SireStats{
			SireID: sireID, Surface: models.SurfaceTurf,
			Runs:          deterministicInt(sireID+"|turf_runs", 0, 200),
			WinRate:       deterministicFloat(sireID+"|turf_wr", 0.05, 0.20),
			PlaceRate:     deterministicFloat(sireID+"|turf_pr", 0.15, 0.40),
			MaidenRuns:    deterministicInt(sireID+"|turf_maiden_runs", 0, 60),
			MaidenWinRate: deterministicFloat(sireID+"|turf_maiden_wr", 0.05, 0.20),
		}
		bundle.SireStatsDirt[sireID] = models.SireStats{
			SireID: sireID, Surface: models.SurfaceDirt,
			Runs:          deterministicInt(sireID+"|dirt_runs", 0, 200),
			WinRate:       deterministicFloat(sireID+"|dirt_wr", 0.05, 0.20),
			PlaceRate:     deterministicFloat(sireID+"|dirt_pr", 0.15, 0.40),
			MaidenRuns:    deterministicInt(sireID+"|dirt_maiden_runs", 0, 60),
			MaidenWinRate: deterministicFloat(sireID+"|dirt_maiden_wr", 0.05, 0.20),
		}
		bundle.VenueSurfaceStats[horseID] = models.TrackConditionStats{
			HorseID: horseID, Surface: race.Surface(),
			Runs:     deterministicInt(horseID+"|vs_runs", 0, 10),
			WinRate:  deterministicFloat(horseID+"|vs_wr", 0.05, 0.25),
			Top3Rate: deterministicFloat(horseID+"|vs_top3", 0.15, 0.45),
		}
		bundle.TrackConditionStats[horseID] = models.TrackConditionStats{
			HorseID: horseID, Surface: race.Surface(), Condition: models.ConditionGood,
			Runs:     deterministicInt(horseID+"|tc_runs", 0, 10),
			WinRate:  deterministicFloat(horseID+"|tc_wr", 0.05, 0.25),
			Top3Rate: deterministicFloat(horseID+"|tc_top3", 0.15, 0.45),
		}
		bundle.TrainerAggregates[trainerID] = models.TrainerAggregate{
			TrainerID: trainerID, Year: race.MeetYear,
			Runs:      deterministicInt(trainerID+"|runs", 20, 300),
			WinRate:   deterministicFloat(trainerID+"|wr", 0.05, 0.20),
			PlaceRate: deterministicFloat(trainerID+"|pr", 0.15, 0.40),
		}
	}

	return bundle, nil
}

func (m *MockStore) GetBiasSnapshot(ctx context.Context, date time.Time, venueCode string) (*models.BiasSnapshot, error) {
	seed := date.Format("2006-01-02") + "|" + venueCode
	return &models.BiasSnapshot{
		Date:           date,
		VenueCode:      venueCode,
		PostBias:       deterministicFloat(seed+"|post", -1, 1),
		PaceBias:       deterministicFloat(seed+"|pace", -1, 1),
		JockeyTodayWin: map[string]float64{},
		JockeyToday3rd: map[string]float64{},
	}, nil
}

func (m *MockStore) GetCurrentTrackCondition(ctx context.Context, raceID string) (models.Surface, models.TrackCondition, error) {
	race, err := m.GetRace(ctx, raceID)
	if err != nil {
		return models.SurfaceUnknown, models.ConditionUnknown, nil
	}
	return race.Surface(), models.ConditionGood, nil
}

func (m *MockStore) GetPayoutRecord(ctx context.Context, raceID string) (models.PayoutRecord, error) {
	return models.PayoutRecord{RaceID: raceID, Combinations: map[models.TicketType][]models.PayoutCombination{}}, nil
}

func (m *MockStore) GetDeclaredOdds(ctx context.Context, raceID string) (map[int]float64, error) {
	n := mockStarterCount(raceID)
	out := make(map[int]float64, n)
	for i := 1; i <= n; i++ {
		out[i] = deterministicFloat(fmt.Sprintf("%s|%d|odds", raceID, i), 1.5, 60)
	}
	return out, nil
}

func (m *MockStore) UpsertPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := predictionKey(rec.RaceID, rec.IsFinal)
	if existing, ok := m.predictions[key]; ok {
		if existing.PredictedAt.After(rec.PredictedAt) {
			// last-writer-wins on timestamp: an older write loses.
			return nil
		}
		rec.PredictionID = existing.PredictionID
	}
	if rec.PredictionID == "" {
		rec.PredictionID = fmt.Sprintf("pred-%s-%v", rec.RaceID, rec.IsFinal)
	}
	m.predictions[key] = *rec
	m.byID[rec.PredictionID] = key
	return nil
}

func (m *MockStore) GetPredictionByID(ctx context.Context, predictionID string) (models.PredictionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.byID[predictionID]
	if !ok {
		return models.PredictionRecord{}, models.ErrPredictionNotFound
	}
	return m.predictions[key], nil
}

func (m *MockStore) GetPredictionByRace(ctx context.Context, raceID string, isFinal bool) (models.PredictionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.predictions[predictionKey(raceID, isFinal)]
	if !ok {
		return models.PredictionRecord{}, models.ErrPredictionNotFound
	}
	return rec, nil
}

func predictionKey(raceID string, isFinal bool) string {
	return fmt.Sprintf("%s|%v", raceID, isFinal)
}

func (m *MockStore) SaveCalibrationReport(ctx context.Context, modelVersion string, bins []models.CalibrationBin) error {
	return nil
}

func (m *MockStore) SearchHorses(ctx context.Context, query string) ([]models.Horse, error) {
	return []models.Horse{{HorseID: "H-MOCK-01", Name: query + " Star"}}, nil
}

func (m *MockStore) SearchJockeys(ctx context.Context, query string) ([]JockeySummary, error) {
	return []JockeySummary{{JockeyID: "J-MOCK-01", Name: query + " Rider"}}, nil
}
