package indicator

// rsi computes the Relative Strength Index over the last period consecutive
// close-to-close differences, using plain averages of the floored gains and
// losses (no Wilder smoothing — the window is recomputed from history each
// call). The caller guarantees len(closes) >= period+1.
//
// When the average loss is zero the value clamps to 100: a window with no
// losses is maximal strength, not an unavailable indicator.
func rsi(closes []float64, period int) float64 {
	window := closes[len(closes)-period-1:]

	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs)
}
