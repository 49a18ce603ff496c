package aggregate

import (
	"testing"
	"time"

	"strategy-systemv1/internal/model"
)

func tickerEvent(symbol string, ts int64, data string) model.MarketEvent {
	return model.MarketEvent{
		Stream:   "md:ticker",
		ID:       "1-0",
		Exchange: "gmo",
		Symbol:   symbol,
		TS:       ts,
		Data:     data,
	}
}

func tradeEvent(symbol string, ts int64, data string) model.MarketEvent {
	ev := tickerEvent(symbol, ts, data)
	ev.Stream = "md:trade"
	return ev
}

func TestAggregate_TickerProducesDegenerateCandle(t *testing.T) {
	agg, err := New(Config{Interval: "1s"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := int64(1700000000123)
	c := agg.Aggregate(tickerEvent("BTC_JPY", ts, `{"last":"6123456","volume":"1.5"}`))
	if c == nil {
		t.Fatal("expected a candle")
	}

	if c.Exchange != "gmo" || c.Symbol != "BTC_JPY" || c.Interval != "1s" {
		t.Errorf("unexpected identity: %+v", c)
	}
	if !c.TS.Equal(time.UnixMilli(ts).UTC()) {
		t.Errorf("expected ts %v, got %v", time.UnixMilli(ts).UTC(), c.TS)
	}
	for name, v := range map[string]string{
		"open": c.Open.String(), "high": c.High.String(),
		"low": c.Low.String(), "close": c.Close.String(),
	} {
		if v != "6123456" {
			t.Errorf("%s = %s, want 6123456", name, v)
		}
	}
	if c.Volume.String() != "1.5" {
		t.Errorf("volume = %s, want 1.5", c.Volume)
	}
}

func TestAggregate_TickerFallsBackToClose(t *testing.T) {
	agg, _ := New(Config{})

	c := agg.Aggregate(tickerEvent("BTC_JPY", 1000, `{"close":"42.5"}`))
	if c == nil {
		t.Fatal("expected a candle")
	}
	if c.Close.String() != "42.5" {
		t.Errorf("close = %s, want 42.5", c.Close)
	}
	if !c.Volume.IsZero() {
		t.Errorf("volume = %s, want 0", c.Volume)
	}
}

func TestAggregate_TradeUsesPriceAndSize(t *testing.T) {
	agg, _ := New(Config{Interval: "1s"})

	c := agg.Aggregate(tradeEvent("ETH_JPY", 2000, `{"price":"350000","size":"0.25","side":"BUY"}`))
	if c == nil {
		t.Fatal("expected a candle")
	}
	if c.Close.String() != "350000" {
		t.Errorf("close = %s, want 350000", c.Close)
	}
	if c.Volume.String() != "0.25" {
		t.Errorf("volume = %s, want 0.25", c.Volume)
	}
}

func TestAggregate_SkipsNonPricedEvents(t *testing.T) {
	agg, _ := New(Config{Interval: "1s"})

	cases := []model.MarketEvent{
		{Stream: "md:orderbook", Symbol: "BTC_JPY", TS: 1, Data: `{"bids":[],"asks":[]}`},
		{Stream: "md:something", Symbol: "BTC_JPY", TS: 1, Data: `{}`},
		tickerEvent("", 1, `{"last":"1"}`),
		tickerEvent("BTC_JPY", 1, `not json`),
		tickerEvent("BTC_JPY", 1, `{"volume":"2"}`),
		tickerEvent("BTC_JPY", 1, `{"last":"abc"}`),
	}
	for i, ev := range cases {
		if c := agg.Aggregate(ev); c != nil {
			t.Errorf("case %d: expected nil, got %+v", i, c)
		}
	}
}

func TestAggregate_TickVolumeNotCarriedOver(t *testing.T) {
	agg, _ := New(Config{Interval: "1s"})

	c1 := agg.Aggregate(tickerEvent("BTC_JPY", 1000, `{"last":"100","volume":"2"}`))
	c2 := agg.Aggregate(tickerEvent("BTC_JPY", 1100, `{"last":"101","volume":"3"}`))
	if c1 == nil || c2 == nil {
		t.Fatal("expected a candle per priced event")
	}
	if c1.Volume.String() != "2" {
		t.Errorf("first volume = %s, want 2", c1.Volume)
	}
	if c2.Volume.String() != "3" {
		t.Errorf("second volume = %s, want 3 (own sample only)", c2.Volume)
	}
	if c2.Close.String() != "101" {
		t.Errorf("second close = %s, want 101", c2.Close)
	}
}

func TestAggregate_CoarseBucketEmitsOnRollover(t *testing.T) {
	agg, err := New(Config{Interval: "1m"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	base := int64(1700000040000) // aligned inside some minute bucket
	bucket := base - base%60000

	// Three samples inside the open bucket, out of order.
	if c := agg.Aggregate(tradeEvent("BTC_JPY", bucket+10000, `{"price":"105","size":"1"}`)); c != nil {
		t.Fatalf("unexpected early candle: %+v", c)
	}
	if c := agg.Aggregate(tradeEvent("BTC_JPY", bucket+5000, `{"price":"90","size":"2"}`)); c != nil {
		t.Fatalf("unexpected early candle: %+v", c)
	}
	if c := agg.Aggregate(tradeEvent("BTC_JPY", bucket+50000, `{"price":"110","size":"1"}`)); c != nil {
		t.Fatalf("unexpected early candle: %+v", c)
	}

	// A sample in the next bucket closes the previous one.
	c := agg.Aggregate(tradeEvent("BTC_JPY", bucket+60000+100, `{"price":"120","size":"3"}`))
	if c == nil {
		t.Fatal("expected bucket rollover candle")
	}
	if !c.TS.Equal(time.UnixMilli(bucket).UTC()) {
		t.Errorf("candle ts = %v, want bucket start %v", c.TS, time.UnixMilli(bucket).UTC())
	}
	if c.Open.String() != "90" || c.High.String() != "110" || c.Low.String() != "90" || c.Close.String() != "110" {
		t.Errorf("OHLC = %s/%s/%s/%s, want 90/110/90/110", c.Open, c.High, c.Low, c.Close)
	}
	if c.Volume.String() != "4" {
		t.Errorf("volume = %s, want 4", c.Volume)
	}
}

func TestAggregate_SymbolsAreIndependent(t *testing.T) {
	agg, _ := New(Config{Interval: "1m"})

	agg.Aggregate(tradeEvent("BTC_JPY", 10000, `{"price":"100","size":"1"}`))
	agg.Aggregate(tradeEvent("ETH_JPY", 20000, `{"price":"200","size":"1"}`))

	// BTC rolls over; ETH must be untouched.
	c := agg.Aggregate(tradeEvent("BTC_JPY", 70000, `{"price":"101","size":"1"}`))
	if c == nil || c.Symbol != "BTC_JPY" {
		t.Fatalf("expected BTC_JPY candle, got %+v", c)
	}
	if c.Close.String() != "100" {
		t.Errorf("close = %s, want 100", c.Close)
	}
}

func TestNew_RejectsInvalidInterval(t *testing.T) {
	for _, label := range []string{"bogus", "-1s", "0s"} {
		if _, err := New(Config{Interval: label}); err == nil {
			t.Errorf("expected error for interval %q", label)
		}
	}
}
