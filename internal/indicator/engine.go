// Package indicator computes a fixed set of technical indicators over a
// bounded rolling history of candles per symbol.
//
// The engine owns all per-symbol history exclusively and is designed for
// single-goroutine usage — no locks needed. History is in-memory only and
// rebuilt from scratch on restart; indicator values are approximate until
// the window refills.
package indicator

import (
	"strconv"

	"strategy-systemv1/internal/model"
)

// DefaultCapacity is the per-symbol history bound.
const DefaultCapacity = 200

// Warm-up requirements per indicator. MACD needs the slow EMA span plus the
// signal span before any of its keys appear.
const (
	rsiPeriod    = 14
	bbPeriod     = 20
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	macdRequired = macdSlow + macdSignal
)

var smaWindows = []int{5, 20, 50}

// Engine maintains per-symbol candle history and computes indicator
// snapshots. State is keyed by symbol and injected at construction — no
// ambient storage, so parallel instances stay independent.
type Engine struct {
	capacity int
	history  map[string][]model.Candle
}

// NewEngine creates an engine with the given history capacity per symbol.
// capacity <= 0 uses DefaultCapacity.
func NewEngine(capacity int) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Engine{
		capacity: capacity,
		history:  make(map[string][]model.Candle),
	}
}

// Compute appends the candle to its symbol's history (FIFO eviction at
// capacity) and returns the indicator snapshot for the new window.
// Fewer than 2 history points yields an empty snapshot. Each indicator is
// computed independently and only when its own window is filled; non-finite
// results are dropped, never propagated.
func (e *Engine) Compute(c model.Candle) model.Snapshot {
	h := append(e.history[c.Symbol], c)
	if len(h) > e.capacity {
		h = h[len(h)-e.capacity:]
	}
	e.history[c.Symbol] = h

	snap := model.Snapshot{}
	if len(h) < 2 {
		return snap
	}

	closes := make([]float64, len(h))
	for i := range h {
		closes[i] = h[i].Close.InexactFloat64()
	}

	for _, w := range smaWindows {
		if len(closes) >= w {
			setFinite(snap, "ma_"+strconv.Itoa(w), sma(closes, w))
		}
	}

	if len(closes) >= rsiPeriod+1 {
		setFinite(snap, "rsi", rsi(closes, rsiPeriod))
	}

	if len(closes) >= bbPeriod {
		mid, upper, lower := bollinger(closes, bbPeriod, 2.0)
		setFinite(snap, "bb_middle", mid)
		setFinite(snap, "bb_upper", upper)
		setFinite(snap, "bb_lower", lower)
	}

	if len(closes) >= macdRequired {
		line, signal, hist := macd(closes, macdFast, macdSlow, macdSignal)
		setFinite(snap, "macd", line)
		setFinite(snap, "macd_signal", signal)
		setFinite(snap, "macd_hist", hist)
	}

	return snap
}

// HistoryLen returns the retained history length for a symbol.
func (e *Engine) HistoryLen(symbol string) int {
	return len(e.history[symbol])
}
