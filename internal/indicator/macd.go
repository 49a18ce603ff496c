package indicator

// macd computes the MACD line (fast EMA − slow EMA), its signal line
// (signalSpan EMA of the MACD series) and the histogram, over the full
// history window. EMAs use α = 2/(span+1) seeded by the first value in the
// series — no simple-average warm-up — so values are exact for a full
// window and converge as a refilling window grows.
func macd(closes []float64, fastSpan, slowSpan, signalSpan int) (line, signal, hist float64) {
	fast := emaSeries(closes, fastSpan)
	slow := emaSeries(closes, slowSpan)

	diff := make([]float64, len(closes))
	for i := range closes {
		diff[i] = fast[i] - slow[i]
	}
	sig := emaSeries(diff, signalSpan)

	last := len(closes) - 1
	return diff[last], sig[last], diff[last] - sig[last]
}

// emaSeries returns the exponential moving average series of values with
// smoothing span, seeded by the first element.
func emaSeries(values []float64, span int) []float64 {
	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}
