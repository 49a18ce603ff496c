// Package strategy provides the pluggable decision component of the
// pipeline. A Strategy consumes a candle plus its indicator snapshot and
// emits a trading signal, keeping minimal per-symbol state across calls for
// edge detection (crossovers).
package strategy

import (
	"fmt"

	"strategy-systemv1/internal/model"
)

// Strategy is the interface all trading strategies implement.
type Strategy interface {
	// Name returns the strategy's registered name.
	Name() string

	// CalculateIndicators returns the strategy-local view of indicators for
	// a candle. The pipeline computes the shared snapshot in the indicator
	// engine; this exists for strategies carrying their own derivations.
	CalculateIndicators(candle model.Candle) model.Snapshot

	// Decide evaluates one candle with its indicator snapshot.
	// Returns nil when no signal fires.
	Decide(candle model.Candle, indicators model.Snapshot) *model.Signal
}

// Params carries strategy construction parameters.
type Params struct {
	FastWindow int // default 5
	SlowWindow int // default 20
}

// New constructs the strategy registered under name. An unknown name is an
// error — the caller treats it as a fatal configuration fault at startup.
func New(name string, p Params) (Strategy, error) {
	switch name {
	case "moving_average_cross":
		return NewMACross(p), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}
