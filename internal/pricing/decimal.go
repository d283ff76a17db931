package pricing

import "strconv"

// ToFixed rounds v to the given number of decimal places. Going through a
// fixed-point string also normalizes values that float formatting would
// otherwise render in exponential notation (e.g. 7e-7).
func ToFixed(v float64, places int) float64 {
	s := strconv.FormatFloat(v, 'f', places, 64)
	out, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return v
	}
	return out
}

// FormatFixed renders v with exactly the given number of decimal places,
// never in exponential notation.
func FormatFixed(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}
