// Package aggregate converts raw market events (ticker/trade) into
// fixed-interval OHLCV candles per (exchange, symbol).
//
// The baseline "1s" policy is tick-synchronous: every priced sample closes
// the interval immediately and emits a degenerate single-point candle
// carrying that sample's volume. Coarser intervals ("1m", "5m") buffer
// samples and emit on event-time bucket rollover.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"strategy-systemv1/internal/model"

	"github.com/shopspring/decimal"
)

// sample is one price/volume observation extracted from a raw event.
type sample struct {
	ts     int64 // event timestamp, ms epoch
	price  decimal.Decimal
	volume decimal.Decimal
}

// Config configures the aggregator.
type Config struct {
	Interval string // "1s" (default), "1m", "5m", ...
}

// Aggregator builds OHLCV candles from raw market events.
// Single-goroutine usage — no locks. All per-symbol state lives in maps
// owned by this instance; nothing is shared or ambient.
type Aggregator struct {
	interval   string
	intervalMs int64

	// Coarse-interval state only; the 1s tick-synchronous path never buffers.
	tickerBuf map[string][]sample // symbol → ticker-derived samples in the open bucket
	tradeBuf  map[string][]sample // symbol → trade-derived samples in the open bucket
	buckets   map[string]int64    // symbol → open bucket start (ms)
}

// New creates an aggregator for the given interval label.
// Returns an error for labels it cannot parse — invalid configuration is a
// startup fault, not a runtime one.
func New(cfg Config) (*Aggregator, error) {
	label := cfg.Interval
	if label == "" {
		label = "1s"
	}
	ms, err := intervalMillis(label)
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		interval:   label,
		intervalMs: ms,
		tickerBuf:  make(map[string][]sample),
		tradeBuf:   make(map[string][]sample),
		buckets:    make(map[string]int64),
	}, nil
}

// Interval returns the configured interval label.
func (a *Aggregator) Interval() string { return a.interval }

// Aggregate incorporates one raw event and returns the candle it completes,
// or nil. Malformed or unrecognized events return nil with no state change;
// parse failures are absorbed here so the caller can always acknowledge.
func (a *Aggregator) Aggregate(ev model.MarketEvent) *model.Candle {
	kind := ev.Kind()
	if kind == model.KindUnknown || kind == model.KindOrderbook || ev.Symbol == "" {
		// Orderbook events carry no price sample for candle purposes.
		return nil
	}

	s, ok := parseSample(kind, ev)
	if !ok {
		return nil
	}

	if a.intervalMs <= 1000 {
		return a.aggregateTick(ev, s)
	}
	return a.aggregateBucket(kind, ev, s)
}

// aggregateTick implements the tick-synchronous 1s policy: every priced
// sample closes the interval immediately, so the candle is the sample
// itself — degenerate OHLC at its price, the sample's own volume, its
// event timestamp. No buffering happens on this path.
func (a *Aggregator) aggregateTick(ev model.MarketEvent, s sample) *model.Candle {
	return &model.Candle{
		Exchange: ev.Exchange,
		Symbol:   ev.Symbol,
		Interval: a.interval,
		TS:       time.UnixMilli(s.ts).UTC(),
		Open:     s.price,
		High:     s.price,
		Low:      s.price,
		Close:    s.price,
		Volume:   s.volume,
	}
}

// aggregateBucket implements true event-time bucketing for coarse intervals:
// samples accumulate until one lands past the open bucket, which then closes.
func (a *Aggregator) aggregateBucket(kind model.EventKind, ev model.MarketEvent, s sample) *model.Candle {
	bucket := s.ts - s.ts%a.intervalMs
	open, exists := a.buckets[ev.Symbol]

	if !exists {
		a.buckets[ev.Symbol] = bucket
		a.append(kind, ev.Symbol, s)
		return nil
	}

	if bucket <= open {
		// Same bucket (or a late sample — folded in rather than dropped).
		a.append(kind, ev.Symbol, s)
		return nil
	}

	candle := a.closeBucket(ev.Exchange, ev.Symbol, open)
	a.buckets[ev.Symbol] = bucket
	a.append(kind, ev.Symbol, s)
	return candle
}

// closeBucket builds the OHLCV candle from all buffered samples and clears
// the symbol's buffers.
func (a *Aggregator) closeBucket(exchange, symbol string, bucketMs int64) *model.Candle {
	combined := append(append([]sample{}, a.tickerBuf[symbol]...), a.tradeBuf[symbol]...)
	delete(a.tickerBuf, symbol)
	delete(a.tradeBuf, symbol)
	if len(combined) == 0 {
		return nil
	}

	sort.Slice(combined, func(i, j int) bool { return combined[i].ts < combined[j].ts })

	c := &model.Candle{
		Exchange: exchange,
		Symbol:   symbol,
		Interval: a.interval,
		TS:       time.UnixMilli(bucketMs).UTC(),
		Open:     combined[0].price,
		High:     combined[0].price,
		Low:      combined[0].price,
		Close:    combined[len(combined)-1].price,
		Volume:   decimal.Zero,
	}
	for _, s := range combined {
		if s.price.GreaterThan(c.High) {
			c.High = s.price
		}
		if s.price.LessThan(c.Low) {
			c.Low = s.price
		}
		c.Volume = c.Volume.Add(s.volume)
	}
	return c
}

func (a *Aggregator) append(kind model.EventKind, symbol string, s sample) {
	if kind == model.KindTrade {
		a.tradeBuf[symbol] = append(a.tradeBuf[symbol], s)
	} else {
		a.tickerBuf[symbol] = append(a.tickerBuf[symbol], s)
	}
}

// parseSample extracts price and volume from the event payload.
// Ticker: price from "last" (falling back to "close"), volume from "volume".
// Trade: price from "price", volume from "size".
// Missing or non-numeric price means the event is malformed.
func parseSample(kind model.EventKind, ev model.MarketEvent) (sample, bool) {
	dec := json.NewDecoder(strings.NewReader(ev.Data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return sample{}, false
	}

	var price, volume decimal.Decimal
	var ok bool
	switch kind {
	case model.KindTicker:
		if price, ok = toDecimal(payload["last"]); !ok {
			if price, ok = toDecimal(payload["close"]); !ok {
				return sample{}, false
			}
		}
		volume, _ = toDecimal(payload["volume"])
	case model.KindTrade:
		if price, ok = toDecimal(payload["price"]); !ok {
			return sample{}, false
		}
		volume, _ = toDecimal(payload["size"])
	default:
		return sample{}, false
	}

	return sample{ts: ev.TS, price: price, volume: volume}, true
}

// toDecimal converts a decoded JSON value (json.Number or numeric string)
// to a decimal without a float round-trip.
func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(t)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// intervalMillis parses an interval label like "1s", "1m", "5m" into ms.
func intervalMillis(label string) (int64, error) {
	d, err := time.ParseDuration(label)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid interval %q", label)
	}
	return d.Milliseconds(), nil
}
