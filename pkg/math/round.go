package math

import (
	"math"
	"strconv"
)

// maxScaled is the magnitude above which a float64 has no fractional digits
// left to round.
const maxScaled = 1e16

// Round rounds v to the given number of decimal digits, resolving ties to
// the even neighbour. Values of magnitude 1e16 or more are returned as is.
func Round(v float64, digits int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) >= maxScaled {
		return v
	}
	p := math.Pow10(digits)
	r := math.RoundToEven(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// FormatRounded renders v rounded to digits decimals using the shortest
// representation, e.g. 1 -> "1", 0.70710678 -> "0.707".
func FormatRounded(v float64, digits int) string {
	return strconv.FormatFloat(Round(v, digits), 'f', -1, 64)
}
