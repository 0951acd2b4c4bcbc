package betting

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keiba-predict/engine/models"
)

func samplePrediction(n int) models.PredictionResponse {
	horses := make([]models.HorsePrediction, n)
	for i := 0; i < n; i++ {
		horses[i] = models.HorsePrediction{
			HorseNumber:    i + 1,
			HorseID:        "H" + string(rune('A'+i)),
			Rank:           i + 1,
			WinProbability: 1.0 / float64(i+2),
		}
	}
	return models.PredictionResponse{RaceID: "test-race", Horses: horses}
}

func TestOptimizeTicketsRejectsBudgetOutOfRange(t *testing.T) {
	resp := samplePrediction(8)
	_, err := OptimizeTickets(TicketWin, MinBudgetYen-1, resp, nil)
	assert.Error(t, err)

	_, err = OptimizeTickets(TicketWin, MaxBudgetYen+1, resp, nil)
	assert.Error(t, err)
}

func TestOptimizeTicketsRejectsUnknownType(t *testing.T) {
	_, err := OptimizeTickets(TicketType("nonsense"), 1000, samplePrediction(8), nil)
	assert.Error(t, err)
}

func TestOptimizeTicketsInsufficientHorses(t *testing.T) {
	alloc, err := OptimizeTickets(TicketTrifecta, 1000, samplePrediction(2), nil)
	require.NoError(t, err)
	assert.Empty(t, alloc.Tickets)
	assert.Contains(t, alloc.Message, "need at least")
}

func TestOptimizeTicketsWinSpendsWithinBudget(t *testing.T) {
	resp := samplePrediction(8)
	alloc, err := OptimizeTickets(TicketWin, 1000, resp, nil)
	require.NoError(t, err)
	require.NotEmpty(t, alloc.Tickets)
	assert.LessOrEqual(t, alloc.TotalCostYen, 1000)
	for _, tk := range alloc.Tickets {
		assert.Equal(t, 0, tk.AmountYen%UnitAmountYen, "amount %d must be a multiple of the betting unit", tk.AmountYen)
		assert.GreaterOrEqual(t, tk.AmountYen, UnitAmountYen)
		assert.Len(t, tk.Numbers, 1)
	}
}

func TestOptimizeTicketsUsesDeclaredOddsOverDefault(t *testing.T) {
	resp := samplePrediction(8)
	odds := map[int]float64{1: 2.5}
	alloc, err := OptimizeTickets(TicketWin, 1000, resp, odds)
	require.NoError(t, err)
	require.NotEmpty(t, alloc.Tickets)

	var found bool
	for _, tk := range alloc.Tickets {
		if len(tk.Numbers) == 1 && tk.Numbers[0] == 1 {
			found = true
			want := decimal.NewFromInt(int64(tk.AmountYen)).Mul(decimal.NewFromFloat(2.5))
			assert.True(t, tk.ExpectedPayout.Equal(want), "expected payout %s, got %s", want, tk.ExpectedPayout)
		}
	}
	assert.True(t, found, "expected a ticket on horse 1")
}

func TestOptimizeTicketsQuinellaCapsAtMaxCombinations(t *testing.T) {
	// 5 candidates -> C(5,2) = 10 == MaxCombinations, not capped further.
	resp := samplePrediction(8)
	alloc, err := OptimizeTickets(TicketQuinella, 10000, resp, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(alloc.Tickets), MaxCombinations)
	for _, tk := range alloc.Tickets {
		assert.Len(t, tk.Numbers, 2)
	}
}

func TestOptimizeTicketsTrifectaProducesTriples(t *testing.T) {
	resp := samplePrediction(8)
	alloc, err := OptimizeTickets(TicketTrifecta, 10000, resp, nil)
	require.NoError(t, err)
	require.NotEmpty(t, alloc.Tickets)
	assert.LessOrEqual(t, len(alloc.Tickets), MaxCombinations)
	for _, tk := range alloc.Tickets {
		assert.Len(t, tk.Numbers, 3)
	}
}

func TestOptimizeTicketsOnlyConsidersTopHorses(t *testing.T) {
	resp := samplePrediction(12)
	alloc, err := OptimizeTickets(TicketWin, 1000, resp, nil)
	require.NoError(t, err)
	for _, tk := range alloc.Tickets {
		assert.LessOrEqual(t, tk.Numbers[0], TopHorsesCount)
	}
}
