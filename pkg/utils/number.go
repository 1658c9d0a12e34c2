package utils

import "math"

// RoundWithFourDecimalPlace rounds ratio metrics (CTR, match rate) the way
// they are displayed in alert summaries.
func RoundWithFourDecimalPlace(f float64) float64 {
	if f == 0 {
		return 0
	}

	return math.Round(f*10000) / 10000
}
