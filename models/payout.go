package models

import "github.com/shopspring/decimal"

// TicketType enumerates the wagering ticket types a payout record or odds
// table can carry.
type TicketType string

const (
	TicketWin      TicketType = "win"
	TicketPlace    TicketType = "place"
	TicketQuinella TicketType = "quinella"
	TicketExacta   TicketType = "exacta"
	TicketTrifecta TicketType = "trifecta"
	TicketWide     TicketType = "wide"
)

// PayoutCombination is a single winning combination and its payout for one
// ticket type (e.g. horse 3 wins, pays 1230 per 100 stake).
type PayoutCombination struct {
	Combination []int           // horse numbers, order-sensitive for exacta/trifecta
	Payout      decimal.Decimal // per 100-unit stake
}

// PayoutRecord holds every ticket type's winning combinations and payouts
// for one race. Consumed only by evaluation.
type PayoutRecord struct {
	RaceID       string
	Combinations map[TicketType][]PayoutCombination
}

// WinPayout returns the win-ticket payout for horseNumber, or a zero
// decimal and false if that horse did not win.
func (p PayoutRecord) WinPayout(horseNumber int) (decimal.Decimal, bool) {
	for _, c := range p.Combinations[TicketWin] {
		if len(c.Combination) == 1 && c.Combination[0] == horseNumber {
			return c.Payout, true
		}
	}
	return decimal.Zero, false
}

// PlacePayout returns the place-ticket payout for horseNumber, or a zero
// decimal and false if that horse did not place.
func (p PayoutRecord) PlacePayout(horseNumber int) (decimal.Decimal, bool) {
	for _, c := range p.Combinations[TicketPlace] {
		if len(c.Combination) == 1 && c.Combination[0] == horseNumber {
			return c.Payout, true
		}
	}
	return decimal.Zero, false
}
