package collector

import (
	"encoding/json"
	"fmt"
	"time"
)

// Market-data stream names, one per GMO channel.
const (
	StreamTicker    = "md:ticker"
	StreamTrade     = "md:trade"
	StreamOrderbook = "md:orderbook"
)

// gmoMessage is the union of the public GMO Coin websocket payloads we
// subscribe to. Prices and sizes stay as strings end to end — the
// aggregator parses them into decimals.
type gmoMessage struct {
	Channel   string `json:"channel"`
	Symbol    string `json:"symbol"`
	Timestamp string `json:"timestamp"`

	// ticker
	Last   string `json:"last"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Volume string `json:"volume"`

	// trades
	Price string `json:"price"`
	Size  string `json:"size"`
	Side  string `json:"side"`

	// orderbooks
	Bids []gmoLevel `json:"bids"`
	Asks []gmoLevel `json:"asks"`
}

type gmoLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// normalized is one market event ready for XADD.
type normalized struct {
	Stream string
	Fields map[string]any
}

// normalize maps a raw websocket frame to its stream entry. Non-data
// frames (subscription acks, errors) and unknown channels return ok=false.
func normalize(raw []byte) (normalized, bool, error) {
	var msg gmoMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return normalized{}, false, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Channel == "" || msg.Symbol == "" {
		return normalized{}, false, nil
	}

	ts, err := parseTimestamp(msg.Timestamp)
	if err != nil {
		return normalized{}, false, fmt.Errorf("%s %s: %w", msg.Channel, msg.Symbol, err)
	}

	var stream string
	var data map[string]any
	switch msg.Channel {
	case "ticker":
		stream = StreamTicker
		data = map[string]any{
			"last":   msg.Last,
			"bid":    msg.Bid,
			"ask":    msg.Ask,
			"high":   msg.High,
			"low":    msg.Low,
			"volume": msg.Volume,
		}
	case "trades":
		stream = StreamTrade
		data = map[string]any{
			"price": msg.Price,
			"size":  msg.Size,
			"side":  msg.Side,
		}
	case "orderbooks":
		stream = StreamOrderbook
		data = map[string]any{
			"bids": msg.Bids,
			"asks": msg.Asks,
		}
	default:
		return normalized{}, false, nil
	}

	return normalized{
		Stream: stream,
		Fields: map[string]any{
			"exchange": "gmo",
			"symbol":   msg.Symbol,
			"ts":       ts.UnixMilli(),
			"data":     data,
		},
	}, true, nil
}

// parseTimestamp reads GMO's RFC3339 timestamps (millisecond precision).
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t, nil
}
