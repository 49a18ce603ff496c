package indicator

import (
	"math"

	"strategy-systemv1/internal/model"
)

// sma returns the simple moving average of the last window closes.
// The caller guarantees len(closes) >= window.
func sma(closes []float64, window int) float64 {
	sum := 0.0
	for _, v := range closes[len(closes)-window:] {
		sum += v
	}
	return sum / float64(window)
}

// setFinite stores an indicator value, dropping non-finite results so a
// numeric edge case degrades to a partial snapshot instead of a fault.
func setFinite(snap model.Snapshot, name string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	snap[name] = v
}
