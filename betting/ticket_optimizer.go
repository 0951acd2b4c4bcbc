// Package betting proposes ticket allocations within a budget from an
// already-generated prediction. It is a pure diagnostic: nothing here ever
// places a bet; it only estimates how a fixed budget might be spread
// across combinations.
package betting

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/keiba-predict/engine/models"
)

// TicketType names one of the seven wagering shapes the optimizer supports.
type TicketType string

const (
	TicketWin      TicketType = "単勝"
	TicketPlace    TicketType = "複勝"
	TicketQuinella TicketType = "馬連"
	TicketWide     TicketType = "ワイド"
	TicketExacta   TicketType = "馬単"
	TicketTrio     TicketType = "3連複"
	TicketTrifecta TicketType = "3連単"
)

var minHorsesForTicket = map[TicketType]int{
	TicketWin: 1, TicketPlace: 1,
	TicketQuinella: 2, TicketWide: 2, TicketExacta: 2,
	TicketTrio: 3, TicketTrifecta: 3,
}

// Budget and combination bounds, reconstructed from typical JRA ticket
// pricing: the 100-yen unit, a conservative upper budget, and a cap on
// how many combinations one allocation call will ever propose.
const (
	MinBudgetYen    = 100
	MaxBudgetYen    = 1_000_000
	UnitAmountYen   = 100
	MaxCombinations = 10
	TopHorsesCount  = 6
	MinConfidence   = 0.05
)

type candidate struct {
	HorseNumber int
	Confidence  float64
	Odds        decimal.Decimal
}

// Ticket is one proposed buy: a set of horse numbers, a yen amount rounded
// to the betting unit, and a rough expected payout.
type Ticket struct {
	Numbers        []int
	AmountYen      int
	ExpectedPayout decimal.Decimal
}

// Allocation is the full result of one Optimize call.
type Allocation struct {
	TicketType     TicketType
	BudgetYen      int
	Tickets        []Ticket
	TotalCostYen   int
	ExpectedReturn decimal.Decimal
	ExpectedROIPct float64
	Message        string
}

// OptimizeTickets proposes a ticket allocation for ticketType within
// budgetYen, using resp's ranked horses and declaredOdds (horseNumber ->
// win odds, store.GetDeclaredOdds; missing entries fall back to a
// rank-based default). It is diagnostic only and never executes a wager.
func OptimizeTickets(ticketType TicketType, budgetYen int, resp models.PredictionResponse, declaredOdds map[int]float64) (Allocation, error) {
	required, ok := minHorsesForTicket[ticketType]
	if !ok {
		return Allocation{}, fmt.Errorf("betting: unsupported ticket type %q", ticketType)
	}
	if budgetYen < MinBudgetYen {
		return Allocation{}, fmt.Errorf("betting: budget %d yen below minimum %d", budgetYen, MinBudgetYen)
	}
	if budgetYen > MaxBudgetYen {
		return Allocation{}, fmt.Errorf("betting: budget %d yen exceeds maximum %d", budgetYen, MaxBudgetYen)
	}

	top := extractTopHorses(resp, declaredOdds)
	if len(top) == 0 {
		return Allocation{TicketType: ticketType, BudgetYen: budgetYen, Message: "prediction has no usable horses"}, nil
	}
	if len(top) < required {
		return Allocation{TicketType: ticketType, BudgetYen: budgetYen,
			Message: fmt.Sprintf("need at least %d horses, have %d", required, len(top))}, nil
	}

	var tickets []Ticket
	switch ticketType {
	case TicketWin, TicketPlace:
		tickets = winTickets(top, budgetYen)
	case TicketQuinella, TicketWide:
		tickets = quinellaTickets(top, budgetYen)
	case TicketExacta:
		tickets = exactaTickets(top, budgetYen)
	case TicketTrio:
		tickets = trioTickets(top, budgetYen)
	case TicketTrifecta:
		tickets = trifectaTickets(top, budgetYen)
	}

	totalCost := 0
	for _, t := range tickets {
		totalCost += t.AmountYen
	}
	expectedReturn := expectedReturnOf(tickets, top)

	var roi float64
	if totalCost > 0 {
		roi, _ = expectedReturn.Div(decimal.NewFromInt(int64(totalCost))).Mul(decimal.NewFromInt(100)).Float64()
	}

	return Allocation{
		TicketType:     ticketType,
		BudgetYen:      budgetYen,
		Tickets:        tickets,
		TotalCostYen:   totalCost,
		ExpectedReturn: expectedReturn,
		ExpectedROIPct: roi,
		Message:        fmt.Sprintf("generated %d ticket(s)", len(tickets)),
	}, nil
}

// extractTopHorses turns the top TopHorsesCount ranked horses into betting
// candidates, confidence = 1/rank as in the source, filtered by
// MinConfidence. Odds fall back to a rank-based default when declaredOdds
// has no entry for a horse (mirrors the source's expected_odds defaults of
// 5.0 for the podium, 10.0 beyond it).
func extractTopHorses(resp models.PredictionResponse, declaredOdds map[int]float64) []candidate {
	var out []candidate
	for _, h := range resp.Horses {
		if h.Rank > TopHorsesCount {
			continue
		}
		confidence := 1.0 / float64(h.Rank)
		if confidence < MinConfidence {
			continue
		}
		odds, ok := declaredOdds[h.HorseNumber]
		if !ok {
			odds = defaultOdds(h.Rank)
		}
		out = append(out, candidate{HorseNumber: h.HorseNumber, Confidence: confidence, Odds: decimal.NewFromFloat(odds)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out
}

func defaultOdds(rank int) float64 {
	if rank <= 3 {
		return 5.0
	}
	return 10.0
}

func roundDownToUnit(amountYen int) int {
	return (amountYen / UnitAmountYen) * UnitAmountYen
}

// winTickets splits the budget across the top 3 candidates proportional to
// confidence; doubles as placeTickets (the source uses the same logic for
// both since place payouts are simply lower).
func winTickets(top []candidate, budgetYen int) []Ticket {
	pool := top
	if len(pool) > 3 {
		pool = pool[:3]
	}
	var totalConfidence float64
	for _, c := range pool {
		totalConfidence += c.Confidence
	}
	if totalConfidence == 0 {
		return nil
	}

	var tickets []Ticket
	for _, c := range pool {
		amount := roundDownToUnit(int(float64(budgetYen) * (c.Confidence / totalConfidence)))
		if amount < UnitAmountYen {
			continue
		}
		payout := decimal.NewFromInt(int64(amount)).Mul(c.Odds)
		tickets = append(tickets, Ticket{Numbers: []int{c.HorseNumber}, AmountYen: amount, ExpectedPayout: payout})
	}
	return tickets
}

func evenSplit(budgetYen, n int) int {
	if n == 0 {
		return 0
	}
	amount := roundDownToUnit(budgetYen / n)
	if amount < UnitAmountYen {
		return UnitAmountYen
	}
	return amount
}

func quinellaTickets(top []candidate, budgetYen int) []Ticket {
	pool := top
	if len(pool) > 5 {
		pool = pool[:5]
	}
	combos := combinations2(pool)
	if len(combos) == 0 {
		return nil
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i][0].Confidence*combos[i][1].Confidence > combos[j][0].Confidence*combos[j][1].Confidence
	})
	if len(combos) > MaxCombinations {
		combos = combos[:MaxCombinations]
	}

	amount := evenSplit(budgetYen, len(combos))
	tickets := make([]Ticket, 0, len(combos))
	for _, c := range combos {
		minOdds := c[0].Odds
		if c[1].Odds.LessThan(minOdds) {
			minOdds = c[1].Odds
		}
		payout := decimal.NewFromInt(int64(amount)).Mul(minOdds).Mul(decimal.NewFromFloat(0.7))
		tickets = append(tickets, Ticket{
			Numbers:        []int{c[0].HorseNumber, c[1].HorseNumber},
			AmountYen:      amount,
			ExpectedPayout: payout,
		})
	}
	return tickets
}

func exactaTickets(top []candidate, budgetYen int) []Ticket {
	pool := top
	if len(pool) > 5 {
		pool = pool[:5]
	}
	perms := permutations2(pool)
	if len(perms) == 0 {
		return nil
	}
	sort.SliceStable(perms, func(i, j int) bool {
		return perms[i][0].Confidence*2+perms[i][1].Confidence > perms[j][0].Confidence*2+perms[j][1].Confidence
	})
	if len(perms) > MaxCombinations {
		perms = perms[:MaxCombinations]
	}

	amount := evenSplit(budgetYen, len(perms))
	tickets := make([]Ticket, 0, len(perms))
	for _, p := range perms {
		payout := decimal.NewFromInt(int64(amount)).Mul(p[0].Odds).Mul(p[1].Odds).Mul(decimal.NewFromFloat(0.5))
		tickets = append(tickets, Ticket{
			Numbers:        []int{p[0].HorseNumber, p[1].HorseNumber},
			AmountYen:      amount,
			ExpectedPayout: payout,
		})
	}
	return tickets
}

func trioTickets(top []candidate, budgetYen int) []Ticket {
	pool := top
	if len(pool) > 6 {
		pool = pool[:6]
	}
	combos := combinations3(pool)
	if len(combos) == 0 {
		return nil
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i][0].Confidence*combos[i][1].Confidence*combos[i][2].Confidence >
			combos[j][0].Confidence*combos[j][1].Confidence*combos[j][2].Confidence
	})
	if len(combos) > MaxCombinations {
		combos = combos[:MaxCombinations]
	}

	amount := evenSplit(budgetYen, len(combos))
	tickets := make([]Ticket, 0, len(combos))
	for _, c := range combos {
		minOdds := c[0].Odds
		if c[1].Odds.LessThan(minOdds) {
			minOdds = c[1].Odds
		}
		payout := decimal.NewFromInt(int64(amount)).Mul(minOdds).Mul(decimal.NewFromInt(5))
		tickets = append(tickets, Ticket{
			Numbers:        []int{c[0].HorseNumber, c[1].HorseNumber, c[2].HorseNumber},
			AmountYen:      amount,
			ExpectedPayout: payout,
		})
	}
	return tickets
}

func trifectaTickets(top []candidate, budgetYen int) []Ticket {
	pool := top
	if len(pool) > 5 {
		pool = pool[:5]
	}
	perms := permutations3(pool)
	if len(perms) == 0 {
		return nil
	}
	sort.SliceStable(perms, func(i, j int) bool {
		wi := perms[i][0].Confidence*3 + perms[i][1].Confidence*2 + perms[i][2].Confidence
		wj := perms[j][0].Confidence*3 + perms[j][1].Confidence*2 + perms[j][2].Confidence
		return wi > wj
	})
	if len(perms) > MaxCombinations {
		perms = perms[:MaxCombinations]
	}

	amount := evenSplit(budgetYen, len(perms))
	tickets := make([]Ticket, 0, len(perms))
	for _, p := range perms {
		payout := decimal.NewFromInt(int64(amount)).Mul(p[0].Odds).Mul(p[1].Odds).Mul(decimal.NewFromFloat(0.3))
		tickets = append(tickets, Ticket{
			Numbers:        []int{p[0].HorseNumber, p[1].HorseNumber, p[2].HorseNumber},
			AmountYen:      amount,
			ExpectedPayout: payout,
		})
	}
	return tickets
}

// expectedReturnOf sums each ticket's expected payout then scales by the
// average confidence of the top 3 candidates, approximating the hit
// probability.
func expectedReturnOf(tickets []Ticket, top []candidate) decimal.Decimal {
	total := decimal.Zero
	for _, t := range tickets {
		total = total.Add(t.ExpectedPayout)
	}
	if len(top) == 0 {
		return total
	}
	n := len(top)
	if n > 3 {
		n = 3
	}
	var sumConfidence float64
	for _, c := range top[:n] {
		sumConfidence += c.Confidence
	}
	avgConfidence := sumConfidence / float64(n)
	return total.Mul(decimal.NewFromFloat(avgConfidence))
}

func combinations2(items []candidate) [][2]candidate {
	var out [][2]candidate
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			out = append(out, [2]candidate{items[i], items[j]})
		}
	}
	return out
}

func combinations3(items []candidate) [][3]candidate {
	var out [][3]candidate
	for i := 0; i < len(items); i++ {
		for j := i + 1; j < len(items); j++ {
			for k := j + 1; k < len(items); k++ {
				out = append(out, [3]candidate{items[i], items[j], items[k]})
			}
		}
	}
	return out
}

func permutations2(items []candidate) [][2]candidate {
	var out [][2]candidate
	for i := 0; i < len(items); i++ {
		for j := 0; j < len(items); j++ {
			if i == j {
				continue
			}
			out = append(out, [2]candidate{items[i], items[j]})
		}
	}
	return out
}

func permutations3(items []candidate) [][3]candidate {
	var out [][3]candidate
	for i := 0; i < len(items); i++ {
		for j := 0; j < len(items); j++ {
			if j == i {
				continue
			}
			for k := 0; k < len(items); k++ {
				if k == i || k == j {
					continue
				}
				out = append(out, [3]candidate{items[i], items[j], items[k]})
			}
		}
	}
	return out
}
