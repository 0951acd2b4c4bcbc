package adjust

import (
	"github.com/keiba-predict/engine/ensemble"
	"github.com/keiba-predict/engine/models"
)

// Input is one starter's identity plus its raw (already-calibrated)
// ensemble output, the unit both adjusters in this package mutate in
// place and probability.Derive later normalizes.
type Input struct {
	HorseNumber int
	HorseID     string
	Post        int
	JockeyID    string
	Pred        ensemble.Prediction
}

const innerPostLimit = 4

// ApplyBias applies the daily bias adjustment to every horse. snapshot nil means no bias data was loaded for this date/venue,
// in which case every input is returned unchanged.
func ApplyBias(inputs []Input, snapshot *models.BiasSnapshot) []Input {
	if snapshot == nil {
		return inputs
	}
	out := make([]Input, len(inputs))
	for i, in := range inputs {
		delta := biasDelta(in, snapshot)
		out[i] = applyDelta(in, delta, 2, 2, 2)
	}
	return out
}

func biasDelta(in Input, snapshot *models.BiasSnapshot) float64 {
	var delta float64
	if in.Post >= 1 && in.Post <= innerPostLimit {
		delta += snapshot.PostBias * 0.02
	} else if in.Post >= innerPostLimit+1 {
		delta -= snapshot.PostBias * 0.02
	}

	winRate, top3Rate := snapshot.JockeyRates(in.JockeyID)
	delta += winRate*0.03 + top3Rate*0.01
	return delta
}

// applyDelta implements the shared "rank_score -= delta; probabilities
// scaled by (1 + k*delta), clipped" rule both adjusters use, with
// each probability field allowed its own multiplier k (daily bias uses 2
// for all three; track condition uses 3/2.5/2 for win/quinella/place).
func applyDelta(in Input, delta float64, kWin, kQuinella, kPlace float64) Input {
	out := in
	out.Pred.RankScore -= delta
	out.Pred.PWin = clip(in.Pred.PWin*(1+kWin*delta), 0.001, 0.99)
	if in.Pred.HasQuinella {
		out.Pred.PQuinella = clip(in.Pred.PQuinella*(1+kQuinella*delta), 0.001, 0.99)
		out.Pred.PPlace = clip(in.Pred.PPlace*(1+kPlace*delta), 0.001, 0.99)
	}
	return out
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
