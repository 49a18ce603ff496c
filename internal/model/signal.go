package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Action is the trading action carried by a signal.
type Action string

const (
	ActionEnterLong  Action = "enter_long"
	ActionExit       Action = "exit"
	ActionEnterShort Action = "enter_short"
	ActionHold       Action = "hold"
)

// Signal is a strategy decision for one candle evaluation. Immutable once
// created — each decision is a new independent record, there is no update path.
type Signal struct {
	Exchange   string          `json:"exchange"`
	Symbol     string          `json:"symbol"`
	Strategy   string          `json:"strategy"`
	Action     Action          `json:"action"`
	Confidence decimal.Decimal `json:"confidence"` // 0.00 - 1.00
	PriceRef   decimal.Decimal `json:"price_ref"`  // triggering candle close
	Indicators Snapshot        `json:"indicators,omitempty"`
	Meta       map[string]any  `json:"meta,omitempty"`
	TS         time.Time       `json:"timestamp"`
}

// StreamName returns the Redis stream the signal is published to:
// "signal:<exchange>:<symbol>".
func (s *Signal) StreamName() string {
	return "signal:" + s.Exchange + ":" + s.Symbol
}

// JSON returns the JSON-encoded signal.
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
