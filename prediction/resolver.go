package prediction

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/store"
)

var (
	raceIDPattern     = regexp.MustCompile(`^\d{16}$`)
	raceSpecPattern   = regexp.MustCompile(`^(.+?)(\d{1,2})[rR]$`)
	isoDatePattern    = regexp.MustCompile(`^(\d{4})[-/](\d{1,2})[-/](\d{1,2})$`)
	shortDatePattern  = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	mmddPattern       = regexp.MustCompile(`^(\d{2})(\d{2})$`)
	yearPrefixPattern = regexp.MustCompile(`^(\d{4})\s*(.+)$`)
)

// ResolveRaceSpec resolves raceSpec to a canonical race id, using now as the
// anchor for relative date parsing and venue/race-number lookups. Returns
// models.ErrInvalidRequest (wrapped with detail) for any spec that cannot
// be parsed or that resolves to zero or ambiguously many races.
func ResolveRaceSpec(ctx context.Context, s store.Store, raceSpec string, now time.Time) (string, error) {
	raceSpec = strings.TrimSpace(raceSpec)
	if raceSpec == "" {
		return "", fmt.Errorf("%w: empty race spec", models.ErrInvalidRequest)
	}

	if raceIDPattern.MatchString(raceSpec) {
		return raceSpec, nil
	}

	if d, ok := parseDateInput(raceSpec, now); ok {
		races, err := s.ListRacesByDate(ctx, d)
		if err != nil {
			return "", fmt.Errorf("prediction: resolve race spec: %w", err)
		}
		return pickSingleRace(races, fmt.Sprintf("date %s", d.Format("2006-01-02")))
	}

	if m := raceSpecPattern.FindStringSubmatch(raceSpec); m != nil {
		return resolveVenueRaceNumber(ctx, s, m[1], m[2], now)
	}

	return resolveByName(ctx, s, raceSpec)
}

func resolveVenueRaceNumber(ctx context.Context, s store.Store, venueInput, raceNumInput string, now time.Time) (string, error) {
	venueName := store.VenueAliases(strings.TrimSpace(venueInput))
	venueCode := store.VenueCodeForName(venueName)
	if venueCode == "" {
		return "", fmt.Errorf("%w: unknown venue %q", models.ErrInvalidRequest, venueInput)
	}
	raceNum, err := strconv.Atoi(raceNumInput)
	if err != nil || raceNum < 1 || raceNum > 12 {
		return "", fmt.Errorf("%w: invalid race number %q", models.ErrInvalidRequest, raceNumInput)
	}

	races, err := s.ListRacesByDate(ctx, now)
	if err != nil {
		return "", fmt.Errorf("prediction: resolve race spec: %w", err)
	}
	for _, r := range races {
		if r.VenueCode == venueCode && r.RaceNumber == raceNum {
			return r.RaceID, nil
		}
	}
	return "", fmt.Errorf("%w: %s%dR not found today; specify a date (YYYY-MM-DD) if it's upcoming or past", models.ErrInvalidRequest, venueName, raceNum)
}

func resolveByName(ctx context.Context, s store.Store, raceSpec string) (string, error) {
	year, name := extractYearPrefix(raceSpec)
	terms := store.ExpandRaceNameQuery(name)

	races, err := s.SearchRacesByName(ctx, terms)
	if err != nil {
		return "", fmt.Errorf("prediction: resolve race spec: %w", err)
	}
	if year != 0 {
		filtered := races[:0]
		for _, r := range races {
			if r.MeetYear == year {
				filtered = append(filtered, r)
			}
		}
		races = filtered
	}
	if len(races) == 0 {
		return "", fmt.Errorf("%w: no race matching %q", models.ErrInvalidRequest, raceSpec)
	}

	sort.Slice(races, func(i, j int) bool { return races[i].DeclaredStart.After(races[j].DeclaredStart) })
	return races[0].RaceID, nil
}

func pickSingleRace(races []models.Race, context string) (string, error) {
	switch len(races) {
	case 0:
		return "", fmt.Errorf("%w: no races for %s", models.ErrInvalidRequest, context)
	case 1:
		return races[0].RaceID, nil
	default:
		return "", fmt.Errorf("%w: %d races for %s, specify venue+race-number (e.g. 京都2r)", models.ErrInvalidRequest, len(races), context)
	}
}

// extractYearPrefix splits a leading "YYYY " or "YYYY" year out of a race
// name query, within the plausible range the source uses (1980-2030).
func extractYearPrefix(raceInput string) (int, string) {
	m := yearPrefixPattern.FindStringSubmatch(raceInput)
	if m == nil {
		return 0, raceInput
	}
	year, err := strconv.Atoi(m[1])
	if err != nil || year < 1980 || year > 2030 {
		return 0, raceInput
	}
	return year, strings.TrimSpace(m[2])
}

// parseDateInput supports YYYY-MM-DD, YYYY/MM/DD, MM/DD, and MMDD, mirroring
// race_resolver.py's parse_date_input. MM/DD and MMDD resolve to the next
// occurrence of that month/day on or after now.
func parseDateInput(input string, now time.Time) (time.Time, bool) {
	input = strings.TrimSpace(input)

	if m := isoDatePattern.FindStringSubmatch(input); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return safeDate(y, mo, d)
	}

	if m := shortDatePattern.FindStringSubmatch(input); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		return nextOccurrence(mo, d, now)
	}

	if m := mmddPattern.FindStringSubmatch(input); m != nil {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		return nextOccurrence(mo, d, now)
	}

	return time.Time{}, false
}

func nextOccurrence(month, day int, now time.Time) (time.Time, bool) {
	target, ok := safeDate(now.Year(), month, day)
	if !ok {
		return time.Time{}, false
	}
	if target.Before(truncateToDate(now)) {
		target, ok = safeDate(now.Year()+1, month, day)
	}
	return target, ok
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func safeDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
