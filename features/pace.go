package features

import (
	"github.com/keiba-predict/engine/models"
	"github.com/keiba-predict/engine/utils"
)

// paceStyleCornerWindow caps how many recent races inform a horse's running
// style so a stale tendency from years back doesn't dominate.
const paceStyleCornerWindow = 5

// paceStyleFor buckets a horse's historical corner-3 average position into
// a running style. history is most-recent-first; a horse with no timed
// corner data defaults to Stalker, the neutral middle bucket.
func paceStyleFor(history []models.HistoricalRaceRecord) models.PaceStyle {
	n := len(history)
	if n > paceStyleCornerWindow {
		n = paceStyleCornerWindow
	}
	var positions []float64
	for i := 0; i < n; i++ {
		cp := history[i].CornerPositions
		if len(cp) >= 3 {
			positions = append(positions, float64(cp[2]))
		}
	}
	if len(positions) == 0 {
		return models.StyleStalker
	}
	avg := utils.Mean(positions)
	switch {
	case avg <= 3:
		return models.StyleFront
	case avg <= 6:
		return models.StyleStalker
	case avg <= 9:
		return models.StyleCloser
	default:
		return models.StyleDeepCloser
	}
}

// racePaceFor derives the field-level pace call from every runner's style:
// two or more front-runners makes for a fast pace, none makes for a slow
// one, anything in between is medium.
func racePaceFor(styles map[string]models.PaceStyle) models.PacePrediction {
	fronts := 0
	for _, s := range styles {
		if s == models.StyleFront {
			fronts++
		}
	}
	switch {
	case fronts >= 2:
		return models.PaceFast
	case fronts == 0:
		return models.PaceSlow
	default:
		return models.PaceMedium
	}
}
