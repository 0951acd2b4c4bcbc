package models

import "time"

// BiasSnapshot is the per-date, per-venue set of within-meeting signals
// applied to later races at the same venue.
type BiasSnapshot struct {
	Date           time.Time
	VenueCode      string
	PostBias       float64 // waku_bias, positive favors inner posts
	PaceBias       float64
	JockeyTodayWin map[string]float64 // jockey id -> within-day win rate
	JockeyToday3rd map[string]float64 // jockey id -> within-day top-3 rate
}

// JockeyRates looks up a jockey's within-day win/top-3 rate, defaulting to
// zero for jockeys with no runs recorded yet today.
func (b BiasSnapshot) JockeyRates(jockeyID string) (winRate, top3Rate float64) {
	return b.JockeyTodayWin[jockeyID], b.JockeyToday3rd[jockeyID]
}

// TrackConditionStats is a horse's run count, win rate and top-3 rate on an
// exact surface/condition combination.
type TrackConditionStats struct {
	HorseID   string
	Surface   Surface
	Condition TrackCondition
	Runs      int
	WinRate   float64
	Top3Rate  float64
}
