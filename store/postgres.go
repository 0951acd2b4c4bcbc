package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/keiba-predict/engine/models"
)

// PostgresStore is the production Store backed by a pooled pgx connection.
// Connection bounds come from DB_POOL_MIN_SIZE/DB_POOL_MAX_SIZE.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

// PostgresConfig is the subset of config.Config the store needs, kept
// separate to avoid an import cycle between store and config.
type PostgresConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	PoolMin  int32
	PoolMax  int32
}

// NewPostgresStore opens a bounded connection pool against the given
// database. The pool is the only suspension point store methods introduce
// beyond the query round trip itself.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, log *zap.SugaredLogger) (*PostgresStore, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.MinConns = cfg.PoolMin
	poolCfg.MaxConns = cfg.PoolMax

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	log.Infow("postgres pool initialized", "host", cfg.Host, "db", cfg.Name, "min", cfg.PoolMin, "max", cfg.PoolMax)
	return &PostgresStore{pool: pool, log: log}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const raceSelectCols = `race_id, meet_year, meet_monthday, venue_code, race_number,
	       distance_m, track_code, grade_code, race_name, surface_condition_code,
	       weather_code, data_kind, declared_start`

func (s *PostgresStore) GetRace(ctx context.Context, raceID string) (models.Race, error) {
	q := fmt.Sprintf(`SELECT %s FROM race WHERE race_id = $1`, raceSelectCols)
	r, err := scanRace(s.pool.QueryRow(ctx, q, raceID))
	if err == pgx.ErrNoRows {
		return models.Race{}, models.ErrRaceNotFound
	}
	if err != nil {
		return models.Race{}, fmt.Errorf("get race %s: %w", raceID, err)
	}
	return r, nil
}

func (s *PostgresStore) ListCandidateRaces(ctx context.Context, year int, kind models.DataKind, surfaceFilter *models.Surface) ([]models.Race, error) {
	q := fmt.Sprintf(`SELECT %s FROM race WHERE meet_year = $1 AND data_kind = $2`, raceSelectCols)
	args := []any{year, kind}
	if surfaceFilter != nil {
		q += " AND track_code LIKE $3"
		args = append(args, surfacePrefixPattern(*surfaceFilter))
	}
	q += " ORDER BY race_id"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list candidate races year=%d: %w", year, err)
	}
	defer rows.Close()

	var out []models.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate race: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRace(row pgx.Row) (models.Race, error) {
	var r models.Race
	err := row.Scan(&r.RaceID, &r.MeetYear, &r.MeetMonthDay, &r.VenueCode, &r.RaceNumber,
		&r.DistanceM, &r.TrackCode, &r.GradeCode, &r.RaceName, &r.SurfaceConditionCode,
		&r.WeatherCode, &r.DataKind, &r.DeclaredStart)
	return r, err
}

// ListRacesByDate backs GET /races/today and GET /races/date/{d}.
func (s *PostgresStore) ListRacesByDate(ctx context.Context, date time.Time) ([]models.Race, error) {
	q := fmt.Sprintf(`SELECT %s FROM race WHERE meet_year = $1 AND meet_monthday = $2 ORDER BY race_number`, raceSelectCols)
	rows, err := s.pool.Query(ctx, q, date.Year(), int(date.Month())*100+date.Day())
	if err != nil {
		return nil, fmt.Errorf("list races by date %s: %w", date.Format("2006-01-02"), err)
	}
	defer rows.Close()
	var out []models.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListUpcomingRaces backs GET /races/upcoming, covering [from, from+days).
func (s *PostgresStore) ListUpcomingRaces(ctx context.Context, from time.Time, days int) ([]models.Race, error) {
	var out []models.Race
	for d := 0; d < days; d++ {
		races, err := s.ListRacesByDate(ctx, from.AddDate(0, 0, d))
		if err != nil {
			return nil, err
		}
		out = append(out, races...)
	}
	return out, nil
}

// SearchRacesByName backs GET /races/search/name; terms is already
// alias-expanded by the caller (store.ExpandRaceNameQuery).
func (s *PostgresStore) SearchRacesByName(ctx context.Context, terms []string) ([]models.Race, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM race WHERE race_name = ANY($1) ORDER BY declared_start DESC LIMIT 50`, raceSelectCols)
	rows, err := s.pool.Query(ctx, q, terms)
	if err != nil {
		return nil, fmt.Errorf("search races by name: %w", err)
	}
	defer rows.Close()
	var out []models.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan race: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetHorse backs GET /horses/{id}.
func (s *PostgresStore) GetHorse(ctx context.Context, horseID string) (models.Horse, error) {
	const q = `
		SELECT horse_id, name, birth_date, sex, coat_color, sire_reg_number,
		       dam_reg_number, breeder, owner, trainer_id
		FROM horse WHERE horse_id = $1`
	var h models.Horse
	row := s.pool.QueryRow(ctx, q, horseID)
	err := row.Scan(&h.HorseID, &h.Name, &h.BirthDate, &h.SexCode, &h.CoatColor,
		&h.SireRegNum, &h.DamRegNum, &h.Breeder, &h.Owner, &h.TrainerID)
	if err == pgx.ErrNoRows {
		return models.Horse{}, models.ErrHorseNotFound
	}
	if err != nil {
		return models.Horse{}, fmt.Errorf("get horse %s: %w", horseID, err)
	}
	return h, nil
}

func surfacePrefixPattern(s models.Surface) string {
	switch s {
	case models.SurfaceTurf:
		return "1%"
	case models.SurfaceDirt:
		return "3%"
	case models.SurfaceObstacle:
		return "5%"
	default:
		return "%"
	}
}

// LoadRaceBundle issues one statement per aggregate family, each of them a
// single join-on-values or GROUP BY over the entries of this race - never
// one query per horse. The leak-prevention filter
// `u.race_code < current_race_code` lives in the historical-performance
// query below, pushed into SQL rather than filtered in Go.
func (s *PostgresStore) LoadRaceBundle(ctx context.Context, raceID string) (RaceBundle, error) {
	race, err := s.GetRace(ctx, raceID)
	if err != nil {
		return RaceBundle{}, err
	}

	entries, err := s.loadEntries(ctx, raceID)
	if err != nil {
		return RaceBundle{}, err
	}
	if len(entries) == 0 {
		return RaceBundle{}, models.ErrNoStarters
	}

	horseIDs := make([]string, 0, len(entries))
	pairs := make([]HorseRaceContext, 0, len(entries))
	for _, e := range entries {
		if e.IsScratched() {
			continue
		}
		horseIDs = append(horseIDs, e.HorseID)
		pairs = append(pairs, HorseRaceContext{HorseID: e.HorseID, CurrentRaceID: raceID})
	}

	histories, err := s.loadHistoriesLeakFiltered(ctx, pairs)
	if err != nil {
		return RaceBundle{}, err
	}
	pedigrees, err := s.loadPedigrees(ctx, horseIDs)
	if err != nil {
		return RaceBundle{}, err
	}
	sireTurf, sireDirt, err := s.loadSireStats(ctx, pedigrees, raceID)
	if err != nil {
		return RaceBundle{}, err
	}
	jockeyIDs := uniqueJockeys(entries)
	jockeyAgg, jockeyMaiden, err := s.loadJockeyAggregates(ctx, jockeyIDs, race.MeetYear)
	if err != nil {
		return RaceBundle{}, err
	}
	trainerAgg, err := s.loadTrainerAggregates(ctx, entries, race.MeetYear)
	if err != nil {
		return RaceBundle{}, err
	}
	venueStats, err := s.loadVenueSurfaceStats(ctx, pairs, race.VenueCode, race.Surface())
	if err != nil {
		return RaceBundle{}, err
	}
	condStats, err := s.loadTrackConditionStats(ctx, pairs, race.Surface(), models.TrackCondition(race.CurrentConditionCode))
	if err != nil {
		return RaceBundle{}, err
	}
	comboRuns, err := s.loadJockeyHorseRuns(ctx, entries, raceID)
	if err != nil {
		return RaceBundle{}, err
	}

	return RaceBundle{
		Race:                race,
		Entries:             entries,
		Histories:           histories,
		Pedigrees:           pedigrees,
		SireStatsTurf:       sireTurf,
		SireStatsDirt:       sireDirt,
		JockeyAggregates:    jockeyAgg,
		JockeyMaidenAgg:     jockeyMaiden,
		TrainerAggregates:   trainerAgg,
		VenueSurfaceStats:   venueStats,
		TrackConditionStats: condStats,
		JockeyHorseRuns:     comboRuns,
	}, nil
}

func (s *PostgresStore) loadEntries(ctx context.Context, raceID string) ([]models.Entry, error) {
	const q = `
		SELECT race_id, horse_number, post, horse_id, sex_code, age,
		       carried_weight_10g, jockey_id, trainer_id, body_weight,
		       weight_delta, declared_odds, finishing_position, finish_time,
		       corner_positions, last_3f_time, data_kind
		FROM entry WHERE race_id = $1 ORDER BY horse_number`

	rows, err := s.pool.Query(ctx, q, raceID)
	if err != nil {
		return nil, fmt.Errorf("load entries for %s: %w", raceID, err)
	}
	defer rows.Close()

	var out []models.Entry
	for rows.Next() {
		var e models.Entry
		if err := rows.Scan(&e.RaceID, &e.HorseNumber, &e.Post, &e.HorseID, &e.SexCode, &e.Age,
			&e.CarriedWeight10g, &e.JockeyID, &e.TrainerID, &e.BodyWeightKg, &e.WeightDeltaKg,
			&e.DeclaredOdds, &e.FinishingPosition, &e.FinishTimeSeconds, &e.CornerPositions,
			&e.Last3FSeconds, &e.DataKind); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// loadHistoriesLeakFiltered is the canonical shape every batched-lookup
// family follows the same shape: build a VALUES table of (horse_id,
// current_race_id) pairs and join the history table against it so the
// `race_id < current_race_id` filter runs inside Postgres.
func (s *PostgresStore) loadHistoriesLeakFiltered(ctx context.Context, pairs []HorseRaceContext) (map[string][]models.HistoricalRaceRecord, error) {
	out := make(map[string][]models.HistoricalRaceRecord, len(pairs))
	if len(pairs) == 0 {
		return out, nil
	}

	horseIDs := make([]string, len(pairs))
	raceIDs := make([]string, len(pairs))
	for i, p := range pairs {
		horseIDs[i] = p.HorseID
		raceIDs[i] = p.CurrentRaceID
	}

	const q = `
		WITH ctx (horse_id, current_race_id) AS (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
		SELECT h.horse_id, h.race_id, h.race_date, h.jockey_id, h.finishing_position,
		       h.finish_time, h.corner_positions, h.last_3f_time, h.odds, h.venue_code,
		       h.distance_m, h.surface, h.track_condition, h.popularity
		FROM historical_race_record h
		JOIN ctx ON ctx.horse_id = h.horse_id
		WHERE h.race_id < ctx.current_race_id
		ORDER BY h.horse_id, h.race_id DESC
		LIMIT 5000`

	rows, err := s.pool.Query(ctx, q, horseIDs, raceIDs)
	if err != nil {
		return nil, fmt.Errorf("load leak-filtered histories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.HistoricalRaceRecord
		if err := rows.Scan(&h.HorseID, &h.RaceID, &h.RaceDate, &h.JockeyID, &h.FinishingPosition,
			&h.FinishTimeSeconds, &h.CornerPositions, &h.Last3FSeconds, &h.Odds, &h.VenueCode,
			&h.DistanceM, &h.Surface, &h.TrackCondition, &h.Popularity); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		out[h.HorseID] = append(out[h.HorseID], h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadPedigrees(ctx context.Context, horseIDs []string) (map[string]models.Pedigree, error) {
	out := make(map[string]models.Pedigree, len(horseIDs))
	if len(horseIDs) == 0 {
		return out, nil
	}
	const q = `SELECT horse_id, sire_id, broodmare_sire_id FROM pedigree WHERE horse_id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, horseIDs)
	if err != nil {
		return nil, fmt.Errorf("load pedigrees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Pedigree
		if err := rows.Scan(&p.HorseID, &p.SireID, &p.BroodmareSireID); err != nil {
			return nil, fmt.Errorf("scan pedigree: %w", err)
		}
		out[p.HorseID] = p
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadSireStats(ctx context.Context, pedigrees map[string]models.Pedigree, currentRaceID string) (turf, dirt map[string]models.SireStats, err error) {
	sireIDs := make([]string, 0, len(pedigrees))
	for _, p := range pedigrees {
		sireIDs = append(sireIDs, p.SireID)
	}
	turf = make(map[string]models.SireStats)
	dirt = make(map[string]models.SireStats)
	if len(sireIDs) == 0 {
		return turf, dirt, nil
	}

	const q = `
		SELECT s.sire_id, s.surface, s.runs, s.win_rate, s.place_rate,
		       s.maiden_runs, s.maiden_win_rate
		FROM sire_aggregate s
		WHERE s.sire_id = ANY($1) AND s.as_of_race_id < $2`

	rows, err := s.pool.Query(ctx, q, sireIDs, currentRaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load sire stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.SireStats
		if err := rows.Scan(&st.SireID, &st.Surface, &st.Runs, &st.WinRate, &st.PlaceRate,
			&st.MaidenRuns, &st.MaidenWinRate); err != nil {
			return nil, nil, fmt.Errorf("scan sire stats: %w", err)
		}
		switch st.Surface {
		case models.SurfaceTurf:
			turf[st.SireID] = st
		case models.SurfaceDirt:
			dirt[st.SireID] = st
		}
	}
	return turf, dirt, rows.Err()
}

func uniqueJockeys(entries []models.Entry) []string {
	seen := make(map[string]bool, len(entries))
	var out []string
	for _, e := range entries {
		if e.JockeyID != "" && !seen[e.JockeyID] {
			seen[e.JockeyID] = true
			out = append(out, e.JockeyID)
		}
	}
	return out
}

func (s *PostgresStore) loadJockeyAggregates(ctx context.Context, jockeyIDs []string, year int) (current, maiden map[string]models.JockeyAggregate, err error) {
	current = make(map[string]models.JockeyAggregate)
	maiden = make(map[string]models.JockeyAggregate)
	if len(jockeyIDs) == 0 {
		return current, maiden, nil
	}
	const q = `
		SELECT jockey_id, year, runs, win_rate, place_rate, maiden_only
		FROM jockey_aggregate
		WHERE jockey_id = ANY($1) AND ((NOT maiden_only AND year = $2) OR (maiden_only AND year >= $2 - 3))`

	rows, err := s.pool.Query(ctx, q, jockeyIDs, year)
	if err != nil {
		return nil, nil, fmt.Errorf("load jockey aggregates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.JockeyAggregate
		if err := rows.Scan(&a.JockeyID, &a.Year, &a.Runs, &a.WinRate, &a.PlaceRate, &a.MaidenOnly); err != nil {
			return nil, nil, fmt.Errorf("scan jockey aggregate: %w", err)
		}
		if a.MaidenOnly {
			maiden[a.JockeyID] = a
		} else {
			current[a.JockeyID] = a
		}
	}
	return current, maiden, rows.Err()
}

func (s *PostgresStore) loadTrainerAggregates(ctx context.Context, entries []models.Entry, year int) (map[string]models.TrainerAggregate, error) {
	out := make(map[string]models.TrainerAggregate)
	ids := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.TrainerID != "" && !seen[e.TrainerID] {
			seen[e.TrainerID] = true
			ids = append(ids, e.TrainerID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	const q = `SELECT trainer_id, year, runs, win_rate, place_rate FROM trainer_aggregate WHERE trainer_id = ANY($1) AND year = $2`
	rows, err := s.pool.Query(ctx, q, ids, year)
	if err != nil {
		return nil, fmt.Errorf("load trainer aggregates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a models.TrainerAggregate
		if err := rows.Scan(&a.TrainerID, &a.Year, &a.Runs, &a.WinRate, &a.PlaceRate); err != nil {
			return nil, fmt.Errorf("scan trainer aggregate: %w", err)
		}
		out[a.TrainerID] = a
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadVenueSurfaceStats(ctx context.Context, pairs []HorseRaceContext, venueCode string, surface models.Surface) (map[string]models.TrackConditionStats, error) {
	out := make(map[string]models.TrackConditionStats)
	if len(pairs) == 0 {
		return out, nil
	}
	horseIDs := make([]string, len(pairs))
	raceIDs := make([]string, len(pairs))
	for i, p := range pairs {
		horseIDs[i] = p.HorseID
		raceIDs[i] = p.CurrentRaceID
	}
	const q = `
		WITH ctx (horse_id, current_race_id) AS (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
		SELECT h.horse_id,
		       count(*) AS runs,
		       avg((h.finishing_position = 1)::int)::float8 AS win_rate,
		       avg((h.finishing_position <= 3)::int)::float8 AS place_rate
		FROM historical_race_record h
		JOIN ctx ON ctx.horse_id = h.horse_id
		WHERE h.race_id < ctx.current_race_id AND h.venue_code = $3 AND h.surface = $4
		GROUP BY h.horse_id
		HAVING count(*) >= 3`

	rows, err := s.pool.Query(ctx, q, horseIDs, raceIDs, venueCode, surface)
	if err != nil {
		return nil, fmt.Errorf("load venue/surface stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.TrackConditionStats
		if err := rows.Scan(&st.HorseID, &st.Runs, &st.WinRate, &st.Top3Rate); err != nil {
			return nil, fmt.Errorf("scan venue/surface stats: %w", err)
		}
		st.Surface = surface
		out[st.HorseID] = st
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadTrackConditionStats(ctx context.Context, pairs []HorseRaceContext, surface models.Surface, condition models.TrackCondition) (map[string]models.TrackConditionStats, error) {
	out := make(map[string]models.TrackConditionStats)
	if len(pairs) == 0 || condition == models.ConditionUnknown {
		return out, nil
	}
	horseIDs := make([]string, len(pairs))
	raceIDs := make([]string, len(pairs))
	for i, p := range pairs {
		horseIDs[i] = p.HorseID
		raceIDs[i] = p.CurrentRaceID
	}
	const q = `
		WITH ctx (horse_id, current_race_id) AS (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
		SELECT h.horse_id,
		       count(*) AS runs,
		       avg((h.finishing_position = 1)::int)::float8 AS win_rate,
		       avg((h.finishing_position <= 3)::int)::float8 AS top3_rate
		FROM historical_race_record h
		JOIN ctx ON ctx.horse_id = h.horse_id
		WHERE h.race_id < ctx.current_race_id AND h.surface = $3 AND h.track_condition = $4
		GROUP BY h.horse_id`

	rows, err := s.pool.Query(ctx, q, horseIDs, raceIDs, surface, condition)
	if err != nil {
		return nil, fmt.Errorf("load track condition stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st models.TrackConditionStats
		if err := rows.Scan(&st.HorseID, &st.Runs, &st.WinRate, &st.Top3Rate); err != nil {
			return nil, fmt.Errorf("scan track condition stats: %w", err)
		}
		st.Surface = surface
		st.Condition = condition
		out[st.HorseID] = st
	}
	return out, rows.Err()
}

func (s *PostgresStore) loadJockeyHorseRuns(ctx context.Context, entries []models.Entry, currentRaceID string) (map[string]int, error) {
	out := make(map[string]int)
	if len(entries) == 0 {
		return out, nil
	}
	jockeyIDs := make([]string, len(entries))
	horseIDs := make([]string, len(entries))
	for i, e := range entries {
		jockeyIDs[i] = e.JockeyID
		horseIDs[i] = e.HorseID
	}
	const q = `
		WITH ctx (jockey_id, horse_id) AS (
			SELECT * FROM unnest($1::text[], $2::text[])
		)
		SELECT h.jockey_id, h.horse_id, count(*)
		FROM historical_jockey_horse h
		JOIN ctx ON ctx.jockey_id = h.jockey_id AND ctx.horse_id = h.horse_id
		WHERE h.race_id < $3
		GROUP BY h.jockey_id, h.horse_id`

	rows, err := s.pool.Query(ctx, q, jockeyIDs, horseIDs, currentRaceID)
	if err != nil {
		return nil, fmt.Errorf("load jockey/horse combo runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var jockeyID, horseID string
		var runs int
		if err := rows.Scan(&jockeyID, &horseID, &runs); err != nil {
			return nil, fmt.Errorf("scan combo runs: %w", err)
		}
		out[ComboKey(jockeyID, horseID)] = runs
	}
	return out, rows.Err()
}

// ComboKey is the map key both store implementations use for
// RaceBundle.JockeyHorseRuns, exported so the feature extractor can look up
// the same map without guessing the format.
func ComboKey(jockeyID, horseID string) string {
	return jockeyID + "|" + horseID
}

func (s *PostgresStore) GetBiasSnapshot(ctx context.Context, date time.Time, venueCode string) (*models.BiasSnapshot, error) {
	const q = `
		SELECT post_bias, pace_bias, jockey_win_rates, jockey_top3_rates
		FROM bias_snapshot WHERE bias_date = $1 AND venue_code = $2`

	var b models.BiasSnapshot
	b.Date = date
	b.VenueCode = venueCode
	row := s.pool.QueryRow(ctx, q, date.Format("2006-01-02"), venueCode)
	err := row.Scan(&b.PostBias, &b.PaceBias, &b.JockeyTodayWin, &b.JockeyToday3rd)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bias snapshot %s/%s: %w", date.Format("2006-01-02"), venueCode, err)
	}
	return &b, nil
}

func (s *PostgresStore) GetCurrentTrackCondition(ctx context.Context, raceID string) (models.Surface, models.TrackCondition, error) {
	truncated := raceID
	if len(truncated) > 14 {
		truncated = truncated[:14]
	}
	const q = `
		SELECT surface, condition FROM condition
		WHERE race_id LIKE $1 || '%'
		ORDER BY recorded_at DESC LIMIT 1`

	var surface models.Surface
	var cond models.TrackCondition
	row := s.pool.QueryRow(ctx, q, truncated)
	err := row.Scan(&surface, &cond)
	if err == pgx.ErrNoRows {
		return models.SurfaceUnknown, models.ConditionUnknown, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("get current track condition %s: %w", raceID, err)
	}
	return surface, cond, nil
}

func (s *PostgresStore) GetPayoutRecord(ctx context.Context, raceID string) (models.PayoutRecord, error) {
	const q = `SELECT ticket_type, combination, payout FROM payout WHERE race_id = $1`
	rows, err := s.pool.Query(ctx, q, raceID)
	if err != nil {
		return models.PayoutRecord{}, fmt.Errorf("get payout %s: %w", raceID, err)
	}
	defer rows.Close()

	rec := models.PayoutRecord{RaceID: raceID, Combinations: make(map[models.TicketType][]models.PayoutCombination)}
	for rows.Next() {
		var ticketType models.TicketType
		var combination []int
		var payout float64
		if err := rows.Scan(&ticketType, &combination, &payout); err != nil {
			return models.PayoutRecord{}, fmt.Errorf("scan payout row: %w", err)
		}
		rec.Combinations[ticketType] = append(rec.Combinations[ticketType], models.PayoutCombination{
			Combination: combination,
			Payout:      decimal.NewFromFloat(payout),
		})
	}
	return rec, rows.Err()
}

func (s *PostgresStore) GetDeclaredOdds(ctx context.Context, raceID string) (map[int]float64, error) {
	const q = `SELECT horse_number, odds FROM odds_1 WHERE race_id = $1`
	rows, err := s.pool.Query(ctx, q, raceID)
	if err != nil {
		return nil, fmt.Errorf("get declared odds %s: %w", raceID, err)
	}
	defer rows.Close()
	out := make(map[int]float64)
	for rows.Next() {
		var horseNumber int
		var odds float64
		if err := rows.Scan(&horseNumber, &odds); err != nil {
			return nil, fmt.Errorf("scan odds row: %w", err)
		}
		out[horseNumber] = odds
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	const q = `
		INSERT INTO prediction (prediction_id, race_id, race_date, is_final, prediction_result, predicted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (race_id, is_final) DO UPDATE SET
			prediction_result = EXCLUDED.prediction_result,
			predicted_at = EXCLUDED.predicted_at
		WHERE prediction.predicted_at <= EXCLUDED.predicted_at
		RETURNING prediction_id`

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("marshal prediction result: %w", err)
	}

	row := s.pool.QueryRow(ctx, q, rec.PredictionID, rec.RaceID, rec.RaceDate, rec.IsFinal, resultJSON, rec.PredictedAt)
	if err := row.Scan(&rec.PredictionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// WHERE clause rejected a stale concurrent write: not an error,
			// a newer prediction already won (store.go's last-writer-wins
			// contract).
			return nil
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetPredictionByID(ctx context.Context, predictionID string) (models.PredictionRecord, error) {
	const q = `
		SELECT prediction_id, race_id, race_date, is_final, prediction_result, predicted_at
		FROM prediction WHERE prediction_id = $1`
	return s.scanPrediction(ctx, q, predictionID)
}

func (s *PostgresStore) GetPredictionByRace(ctx context.Context, raceID string, isFinal bool) (models.PredictionRecord, error) {
	const q = `
		SELECT prediction_id, race_id, race_date, is_final, prediction_result, predicted_at
		FROM prediction WHERE race_id = $1 AND is_final = $2`
	return s.scanPrediction(ctx, q, raceID, isFinal)
}

func (s *PostgresStore) scanPrediction(ctx context.Context, q string, args ...any) (models.PredictionRecord, error) {
	var rec models.PredictionRecord
	var resultJSON []byte
	row := s.pool.QueryRow(ctx, q, args...)
	err := row.Scan(&rec.PredictionID, &rec.RaceID, &rec.RaceDate, &rec.IsFinal, &resultJSON, &rec.PredictedAt)
	if err == pgx.ErrNoRows {
		return models.PredictionRecord{}, models.ErrPredictionNotFound
	}
	if err != nil {
		return models.PredictionRecord{}, fmt.Errorf("scan prediction: %w", err)
	}
	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return models.PredictionRecord{}, fmt.Errorf("unmarshal prediction result: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) SaveCalibrationReport(ctx context.Context, modelVersion string, bins []models.CalibrationBin) error {
	const q = `
		INSERT INTO model_calibration (model_version, calibration_data, created_at, is_active)
		VALUES ($1, $2, now(), true)`
	binsJSON, err := json.Marshal(bins)
	if err != nil {
		return fmt.Errorf("marshal calibration bins: %w", err)
	}
	if _, err := s.pool.Exec(ctx, q, modelVersion, binsJSON); err != nil {
		return fmt.Errorf("save calibration report for %s: %w", modelVersion, err)
	}
	return nil
}

func (s *PostgresStore) SearchHorses(ctx context.Context, query string) ([]models.Horse, error) {
	const q = `
		SELECT horse_id, name, birth_date, sex, coat_color, sire_reg_number,
		       dam_reg_number, breeder, owner, trainer_id
		FROM horse WHERE name ILIKE '%' || $1 || '%' ORDER BY name LIMIT 50`
	rows, err := s.pool.Query(ctx, q, query)
	if err != nil {
		return nil, fmt.Errorf("search horses %q: %w", query, err)
	}
	defer rows.Close()
	var out []models.Horse
	for rows.Next() {
		var h models.Horse
		if err := rows.Scan(&h.HorseID, &h.Name, &h.BirthDate, &h.SexCode, &h.CoatColor,
			&h.SireRegNum, &h.DamRegNum, &h.Breeder, &h.Owner, &h.TrainerID); err != nil {
			return nil, fmt.Errorf("scan horse: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SearchJockeys(ctx context.Context, query string) ([]JockeySummary, error) {
	const q = `SELECT jockey_id, name, affiliation FROM jockey WHERE name ILIKE '%' || $1 || '%' ORDER BY name LIMIT 50`
	rows, err := s.pool.Query(ctx, q, query)
	if err != nil {
		return nil, fmt.Errorf("search jockeys %q: %w", query, err)
	}
	defer rows.Close()
	var out []JockeySummary
	for rows.Next() {
		var j JockeySummary
		if err := rows.Scan(&j.JockeyID, &j.Name, &j.Affiliation); err != nil {
			return nil, fmt.Errorf("scan jockey: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
