package progress

import "math"

// Percent share of duration covered by position, rounded to the nearest integer and
// clamped to [0,100]. A non-positive duration reads as 0.
func Percent(position, duration float64) int {
	if duration <= 0 || math.IsNaN(duration) || math.IsNaN(position) || math.IsInf(duration, 0) {
		return 0
	}
	if position <= 0 {
		return 0
	}
	p := math.Round(position / duration * 100)
	if p >= 100 {
		return 100
	}
	return int(p)
}
