package strategy

import (
	"log"
	"strconv"

	"strategy-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// crossConfidence is the fixed confidence attached to crossover signals.
var crossConfidence = decimal.RequireFromString("0.7")

// MACross is the moving-average crossover strategy.
//
// Golden cross (fast MA crosses above slow MA) → enter_long.
// Dead cross (fast MA crosses below slow MA) → exit.
//
// Detection needs two consecutive evaluations per symbol, so the first call
// for a symbol only records state and never signals.
type MACross struct {
	fastWindow int
	slowWindow int

	// Previous MA values per symbol, for crossover edge detection.
	// Owned exclusively by this instance.
	prevFast map[string]float64
	prevSlow map[string]float64
}

// NewMACross creates the strategy with the given windows (defaults 5/20).
func NewMACross(p Params) *MACross {
	fast := p.FastWindow
	if fast <= 0 {
		fast = 5
	}
	slow := p.SlowWindow
	if slow <= 0 {
		slow = 20
	}
	return &MACross{
		fastWindow: fast,
		slowWindow: slow,
		prevFast:   make(map[string]float64),
		prevSlow:   make(map[string]float64),
	}
}

func (s *MACross) Name() string { return "moving_average_cross" }

// CalculateIndicators returns the last recorded MA pair for the symbol,
// falling back to the candle close before any evaluation has happened.
// The shared snapshot from the indicator engine is authoritative; this is
// only the strategy-local view.
func (s *MACross) CalculateIndicators(candle model.Candle) model.Snapshot {
	closeVal := candle.Close.InexactFloat64()
	snap := model.Snapshot{"ma_fast": closeVal, "ma_slow": closeVal}
	if v, ok := s.prevFast[candle.Symbol]; ok {
		snap["ma_fast"] = v
	}
	if v, ok := s.prevSlow[candle.Symbol]; ok {
		snap["ma_slow"] = v
	}
	return snap
}

// Decide detects a crossover between the previous and current MA pair.
// Missing MAs return nil without touching state. Present MAs always
// overwrite the stored pair, even when no signal fires, so state reflects
// the latest evaluation.
func (s *MACross) Decide(candle model.Candle, indicators model.Snapshot) *model.Signal {
	fast, ok := lookupMA(indicators, "ma_fast", s.fastWindow)
	if !ok {
		return nil
	}
	slow, ok := lookupMA(indicators, "ma_slow", s.slowWindow)
	if !ok {
		return nil
	}

	symbol := candle.Symbol
	pf, hadPrev := s.prevFast[symbol]
	ps := s.prevSlow[symbol]

	s.prevFast[symbol] = fast
	s.prevSlow[symbol] = slow

	if !hadPrev {
		// First evaluation for this symbol — nothing to cross against.
		return nil
	}

	var action model.Action
	switch {
	case pf <= ps && fast > slow:
		action = model.ActionEnterLong
		log.Printf("[strategy] golden cross: symbol=%s fast_ma=%.2f slow_ma=%.2f", symbol, fast, slow)
	case pf >= ps && fast < slow:
		action = model.ActionExit
		log.Printf("[strategy] dead cross: symbol=%s fast_ma=%.2f slow_ma=%.2f", symbol, fast, slow)
	default:
		return nil
	}

	return &model.Signal{
		Exchange:   candle.Exchange,
		Symbol:     symbol,
		Strategy:   s.Name(),
		Action:     action,
		Confidence: crossConfidence,
		PriceRef:   candle.Close,
		Indicators: indicators,
		Meta: map[string]any{
			"fast_window": s.fastWindow,
			"slow_window": s.slowWindow,
			"fast_ma":     fast,
			"slow_ma":     slow,
		},
		TS: candle.TS,
	}
}

// lookupMA reads a moving average from the snapshot by its generic key
// ("ma_fast"/"ma_slow") or its window-specific key ("ma_5", "ma_20").
func lookupMA(snap model.Snapshot, generic string, window int) (float64, bool) {
	if v, ok := snap[generic]; ok {
		return v, true
	}
	v, ok := snap["ma_"+strconv.Itoa(window)]
	return v, ok
}
