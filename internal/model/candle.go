// Package model defines the domain types shared across the pipeline:
// market event envelopes, OHLCV candles, indicator snapshots, and signals.
// All price and volume quantities are decimal.Decimal to avoid float drift
// in aggregation and storage.
package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Candle represents a fixed-interval OHLCV candle for one (exchange, symbol).
// Immutable once emitted by the aggregator. The natural key is
// (exchange, symbol, interval, ts) — at most one persisted row per tuple.
type Candle struct {
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"` // "1s", "1m", "5m"
	TS       time.Time       `json:"ts"`       // candle open / representative time (UTC)
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// Key returns "exchange:symbol".
func (c *Candle) Key() string {
	return c.Exchange + ":" + c.Symbol
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Snapshot maps indicator name (e.g. "ma_5", "rsi", "bb_upper") to its value
// for one candle evaluation. Indicators with insufficient history are absent —
// no interpolation, no defaults.
type Snapshot map[string]float64
