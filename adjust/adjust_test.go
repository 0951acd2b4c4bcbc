package adjust

import (
	"testing"
	"time"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
	"github.com/stretchr/testify/assert"
)

func TestApplyBiasNilSnapshotNoOp(t *testing.T) {
	in := []Input{{HorseNumber: 1, Pred: ensemble.Prediction{PWin: 0.3}}}
	out := ApplyBias(in, nil)
	assert.Equal(t, in, out)
}

func TestApplyBiasInnerPostFavored(t *testing.T) {
	snapshot := &models.BiasSnapshot{
		PostBias:       1.0,
		JockeyTodayWin: map[string]float64{},
		JockeyToday3rd: map[string]float64{},
	}
	inner := []Input{{HorseNumber: 1, Post: 1, Pred: ensemble.Prediction{PWin: 0.2, RankScore: 1}}}
	outer := []Input{{HorseNumber: 9, Post: 9, Pred: ensemble.Prediction{PWin: 0.2, RankScore: 1}}}

	innerOut := ApplyBias(inner, snapshot)
	outerOut := ApplyBias(outer, snapshot)

	assert.Greater(t, innerOut[0].Pred.PWin, outerOut[0].Pred.PWin)
	assert.Less(t, innerOut[0].Pred.RankScore, outerOut[0].Pred.RankScore)
}

func TestApplyTrackConditionSkippedWhenGood(t *testing.T) {
	in := []Input{{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.3}}}
	out := ApplyTrackCondition(in, models.ConditionGood, nil)
	assert.Equal(t, in, out)
}

func TestApplyTrackConditionUnprovenPenalized(t *testing.T) {
	in := []Input{{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.3, RankScore: 1}}}
	stats := map[string]models.TrackConditionStats{"h1": {HorseID: "h1", Runs: 0}}
	out := ApplyTrackCondition(in, models.ConditionHeavy, stats)
	assert.Less(t, out[0].Pred.PWin, in[0].Pred.PWin)
}

func TestResolveBiasDateSundayFallsBackToSaturday(t *testing.T) {
	sunday := time.Date(2026, 1, 4, 15, 0, 0, 0, time.UTC)
	got := ResolveBiasDate(nil, nil, sunday)
	assert.Equal(t, time.Saturday, got.Weekday())
}

func TestResolveBiasDateExplicitWins(t *testing.T) {
	sunday := time.Date(2026, 1, 4, 15, 0, 0, 0, time.UTC)
	explicit := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	got := ResolveBiasDate(&explicit, nil, sunday)
	assert.Equal(t, explicit, got)
}
