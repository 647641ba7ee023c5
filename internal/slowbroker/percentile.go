package slowbroker

import "sort"

// percentile computes the p-th percentile of values using the same linear
// interpolation method as Apache Commons Math's legacy Percentile
// estimation type. values is copied and sorted; the input slice is left
// untouched.
//
// For n samples and percentile p in [0, 100]:
//
//	pos = p * (n+1) / 100
//	pos <  1 -> smallest value
//	pos >= n -> largest value
//	otherwise -> linear interpolation between the two bracketing order
//	             statistics
func percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := p * float64(n+1) / 100.0
	if pos < 1 {
		return sorted[0]
	}
	if pos >= float64(n) {
		return sorted[n-1]
	}

	lowerIdx := int(pos)
	frac := pos - float64(lowerIdx)
	lower := sorted[lowerIdx-1]
	upper := sorted[lowerIdx]
	return lower + frac*(upper-lower)
}

// hasSufficientData implements the data-sufficiency guard shared by the
// history test and the peer test: the requested percentile
// must be statistically meaningful given the sample size.
func hasSufficientData(n int, p float64) bool {
	fn := float64(n)
	return fn*p/100.0 >= 1 && fn*(100.0-p)/100.0 >= 1
}
