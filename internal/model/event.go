package model

import "strings"

// EventKind classifies a raw market event by its originating stream.
type EventKind string

const (
	KindTicker    EventKind = "ticker"
	KindTrade     EventKind = "trade"
	KindOrderbook EventKind = "orderbook"
	KindUnknown   EventKind = ""
)

// MarketEvent is the transport-level envelope read off a Redis Stream.
// It is transient: never persisted, only carried from the consumer to the
// aggregator. Field extraction is lenient — a message with missing fields
// still produces an event so the pipeline can acknowledge it.
type MarketEvent struct {
	Stream   string `json:"stream"`
	ID       string `json:"id"` // Redis message ID, e.g. "1734123456789-0"
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	TS       int64  `json:"ts"`   // event timestamp, ms epoch
	Data     string `json:"data"` // raw JSON payload, kind-specific
}

// Kind derives the event kind from the stream name (md:ticker, md:trade, ...).
func (e *MarketEvent) Kind() EventKind {
	switch {
	case strings.Contains(e.Stream, "ticker"):
		return KindTicker
	case strings.Contains(e.Stream, "trade"):
		return KindTrade
	case strings.Contains(e.Stream, "orderbook"):
		return KindOrderbook
	default:
		return KindUnknown
	}
}
