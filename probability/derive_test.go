package probability

import (
	"math"
	"testing"

	"github.com/keiba-predict/engine/ensemble"
	"github.com/stretchr/testify/assert"
)

func sumWin(t *testing.T, inputs []HorseInput) float64 {
	t.Helper()
	ranked := Derive(inputs)
	var sum float64
	for _, h := range ranked {
		sum += h.WinProbability
	}
	return sum
}

func TestDeriveWinProbabilitiesSumToOne(t *testing.T) {
	inputs := []HorseInput{
		{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.1, PQuinella: 0.2, PPlace: 0.3, HasQuinella: true}},
		{HorseNumber: 2, HorseID: "h2", Pred: ensemble.Prediction{PWin: 0.4, PQuinella: 0.5, PPlace: 0.6, HasQuinella: true}},
		{HorseNumber: 3, HorseID: "h3", Pred: ensemble.Prediction{PWin: 0.05, PQuinella: 0.1, PPlace: 0.2, HasQuinella: true}},
	}
	assert.InDelta(t, 1.0, sumWin(t, inputs), 1e-9)
}

func TestDeriveRanksByWinDescending(t *testing.T) {
	inputs := []HorseInput{
		{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.1, HasQuinella: true}},
		{HorseNumber: 2, HorseID: "h2", Pred: ensemble.Prediction{PWin: 0.6, HasQuinella: true}},
		{HorseNumber: 3, HorseID: "h3", Pred: ensemble.Prediction{PWin: 0.3, HasQuinella: true}},
	}
	ranked := Derive(inputs)
	assert.Equal(t, 2, ranked[0].HorseNumber)
	assert.Equal(t, 3, ranked[1].HorseNumber)
	assert.Equal(t, 1, ranked[2].HorseNumber)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestQuinellaSumMatchesMinTwoN(t *testing.T) {
	inputs := []HorseInput{
		{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.3, PQuinella: 0.4, PPlace: 0.5, HasQuinella: true}},
		{HorseNumber: 2, HorseID: "h2", Pred: ensemble.Prediction{PWin: 0.7, PQuinella: 0.6, PPlace: 0.9, HasQuinella: true}},
	}
	ranked := Derive(inputs)
	var sum float64
	for _, h := range ranked {
		sum += h.QuinellaProbability
	}
	assert.InDelta(t, math.Min(2, float64(len(inputs))), sum, 1e-9)
}

func TestDeriveSingleStarterWinsOutright(t *testing.T) {
	inputs := []HorseInput{
		{HorseNumber: 7, HorseID: "solo", Pred: ensemble.Prediction{PWin: 0.2, PQuinella: 0.3, PPlace: 0.4, HasQuinella: true}},
	}
	ranked := Derive(inputs)
	assert.Len(t, ranked, 1)
	assert.Equal(t, 1.0, ranked[0].WinProbability)
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestDeriveLegacyArtifactSkipsQuinellaButFillsPlace(t *testing.T) {
	inputs := []HorseInput{
		{HorseNumber: 1, HorseID: "h1", Pred: ensemble.Prediction{PWin: 0.1, HasQuinella: false}},
		{HorseNumber: 2, HorseID: "h2", Pred: ensemble.Prediction{PWin: 0.6, HasQuinella: false}},
		{HorseNumber: 3, HorseID: "h3", Pred: ensemble.Prediction{PWin: 0.3, HasQuinella: false}},
	}
	ranked := Derive(inputs)
	for _, h := range ranked {
		assert.Zero(t, h.QuinellaProbability)
		assert.Greater(t, h.Position.Second+h.Position.Third, 0.0)
	}
}

func TestDeriveFromRankScoresFallbackSkipsQuinella(t *testing.T) {
	out := DeriveFromRankScores([]int{1, 2}, []string{"h1", "h2"}, []float64{1.0, -1.0})
	for _, h := range out {
		assert.Zero(t, h.QuinellaProbability)
	}
}
