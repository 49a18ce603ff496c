package indicator

import "math"

// bollinger computes Bollinger Bands over the last period closes:
// middle = period SMA, band width = mult standard deviations of the same
// window. Uses the sample standard deviation (n-1 divisor).
// The caller guarantees len(closes) >= period.
func bollinger(closes []float64, period int, mult float64) (middle, upper, lower float64) {
	window := closes[len(closes)-period:]

	middle = sma(closes, period)

	var ss float64
	for _, v := range window {
		d := v - middle
		ss += d * d
	}
	std := math.Sqrt(ss / float64(period-1))

	width := mult * std
	return middle, middle + width, middle - width
}
