package domain

import "math"

// ClampRating rounds f and clamps it into [1,5].
func ClampRating(f float64) int {
	if math.IsNaN(f) {
		return DefaultRating
	}
	r := math.Round(f)
	if r > 5 {
		return 5
	}
	if r < 1 {
		return 1
	}
	return int(r)
}
