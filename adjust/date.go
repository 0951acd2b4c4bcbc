// Package adjust implements the daily bias and track-condition adjusters,
// applied to each horse's raw ensemble output after calibration and
// before probability.Derive's race-level normalization.
package adjust

import "time"

// ResolveBiasDate picks the bias snapshot date to query: an explicit
// parameter wins if set, then an environment override, then auto-detection
// from the race's declared start — with Sunday races falling back to the
// previous Saturday, since JRA within-meeting bias carries across a
// Sat/Sun card but Monday starts a new one.
func ResolveBiasDate(explicit *time.Time, envOverride *time.Time, raceDeclaredStart time.Time) time.Time {
	if explicit != nil {
		return *explicit
	}
	if envOverride != nil {
		return *envOverride
	}
	if raceDeclaredStart.Weekday() == time.Sunday {
		return raceDeclaredStart.AddDate(0, 0, -1)
	}
	return raceDeclaredStart
}
