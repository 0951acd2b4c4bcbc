package adjust

import "github.com/keiba-predict/engine/models"

// ApplyTrackCondition applies the final-predictions-only track-condition
// adjustment. stats maps horseID to that horse's run
// count/win rate/top-3 rate on today's exact surface/condition combination;
// a horse absent from stats is treated as zero runs.
func ApplyTrackCondition(inputs []Input, condition models.TrackCondition, stats map[string]models.TrackConditionStats) []Input {
	if !condition.AtLeastSlightlyHeavy() {
		return inputs
	}
	out := make([]Input, len(inputs))
	for i, in := range inputs {
		s := stats[in.HorseID]
		delta := trackConditionDelta(s)
		out[i] = applyDelta(in, delta, 3, 2.5, 2)
	}
	return out
}

func trackConditionDelta(s models.TrackConditionStats) float64 {
	if s.Runs == 0 {
		return -0.02
	}
	if s.Runs < 2 {
		return 0
	}

	var delta float64
	switch {
	case s.WinRate > 0.15:
		delta += 0.03
	case s.WinRate > 0.05:
		delta += 0.01
	}
	switch {
	case s.Top3Rate > 0.4:
		delta += 0.02
	case s.Top3Rate > 0.2:
		delta += 0.01
	}
	if s.Runs >= 5 {
		delta += 0.01
	}
	return delta
}
