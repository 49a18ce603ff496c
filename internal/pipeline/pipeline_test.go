package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"strategy-systemv1/internal/aggregate"
	"strategy-systemv1/internal/indicator"
	"strategy-systemv1/internal/model"
	"strategy-systemv1/internal/strategy"
)

type fakeAcker struct {
	acked []string
	err   error
}

func (f *fakeAcker) Ack(ctx context.Context, stream, id string) error {
	if f.err != nil {
		return f.err
	}
	f.acked = append(f.acked, stream+"/"+id)
	return nil
}

type fakePublisher struct {
	published []*model.Signal
	err       error
}

func (f *fakePublisher) PublishSignal(ctx context.Context, sig *model.Signal) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.published = append(f.published, sig)
	return "1-0", nil
}

type fakeStore struct {
	candles []model.Candle
	signals []model.Signal
	err     error
}

func (f *fakeStore) SaveCandle(ctx context.Context, c model.Candle) error {
	if f.err != nil {
		return f.err
	}
	f.candles = append(f.candles, c)
	return nil
}

func (f *fakeStore) SaveSignal(ctx context.Context, s model.Signal) error {
	if f.err != nil {
		return f.err
	}
	f.signals = append(f.signals, s)
	return nil
}

// panicStrategy blows up on every decision.
type panicStrategy struct{}

func (panicStrategy) Name() string                                      { return "panic" }
func (panicStrategy) CalculateIndicators(model.Candle) model.Snapshot   { return nil }
func (panicStrategy) Decide(model.Candle, model.Snapshot) *model.Signal { panic("boom") }

func newTestPipeline(t *testing.T, acker *fakeAcker, pub *fakePublisher, store *fakeStore, cfg Config) *Pipeline {
	t.Helper()
	agg, err := aggregate.New(aggregate.Config{Interval: "1s"})
	if err != nil {
		t.Fatalf("aggregator: %v", err)
	}
	strat, err := strategy.New("moving_average_cross", strategy.Params{FastWindow: 5, SlowWindow: 20})
	if err != nil {
		t.Fatalf("strategy: %v", err)
	}
	var candles CandleStore
	var signals SignalStore
	if store != nil {
		candles, signals = store, store
	}
	return New(agg, indicator.NewEngine(0), strat, acker, pub, candles, signals, nil, cfg)
}

func tickerEvent(id string, ts int64, price float64) model.MarketEvent {
	return model.MarketEvent{
		Stream:   "md:ticker",
		ID:       id,
		Exchange: "gmo",
		Symbol:   "BTC_JPY",
		TS:       ts,
		Data:     fmt.Sprintf(`{"last":"%g","volume":"1"}`, price),
	}
}

// crossEvents is 21 ticker events: 20 falling closes then a jump, which
// produces exactly one golden cross on the final event.
func crossEvents() []model.MarketEvent {
	evs := make([]model.MarketEvent, 0, 21)
	for i := 0; i < 20; i++ {
		evs = append(evs, tickerEvent(fmt.Sprintf("%d-0", i+1), int64(1000*(i+1)), float64(120-i)))
	}
	evs = append(evs, tickerEvent("21-0", 21000, 200))
	return evs
}

func TestHandle_NoCandleStillAcks(t *testing.T) {
	acker := &fakeAcker{}
	pub := &fakePublisher{}
	p := newTestPipeline(t, acker, pub, nil, Config{AckOnError: true})

	p.Handle(context.Background(), model.MarketEvent{
		Stream: "md:orderbook",
		ID:     "5-0",
		Symbol: "BTC_JPY",
		TS:     1000,
		Data:   `{"bids":[],"asks":[]}`,
	})

	if len(acker.acked) != 1 || acker.acked[0] != "md:orderbook/5-0" {
		t.Fatalf("acked = %v", acker.acked)
	}
	if len(pub.published) != 0 {
		t.Errorf("unexpected publishes: %v", pub.published)
	}
}

func TestHandle_GoldenCrossEndToEnd(t *testing.T) {
	acker := &fakeAcker{}
	pub := &fakePublisher{}
	store := &fakeStore{}
	p := newTestPipeline(t, acker, pub, store, Config{AckOnError: true})

	ctx := context.Background()
	for _, ev := range crossEvents() {
		p.Handle(ctx, ev)
	}

	if len(pub.published) != 1 {
		t.Fatalf("published %d signals, want 1", len(pub.published))
	}
	sig := pub.published[0]
	if sig.Action != model.ActionEnterLong {
		t.Errorf("action = %s, want %s", sig.Action, model.ActionEnterLong)
	}
	if sig.Symbol != "BTC_JPY" || sig.Exchange != "gmo" {
		t.Errorf("identity = %s/%s", sig.Exchange, sig.Symbol)
	}
	if sig.PriceRef.String() != "200" {
		t.Errorf("price_ref = %s, want 200", sig.PriceRef)
	}

	if len(acker.acked) != 21 {
		t.Errorf("acked %d messages, want 21", len(acker.acked))
	}
	if len(store.candles) != 21 {
		t.Errorf("saved %d candles, want 21", len(store.candles))
	}
	if len(store.signals) != 1 {
		t.Errorf("saved %d signals, want 1", len(store.signals))
	}
}

func TestHandle_PublishFailureAckPolicy(t *testing.T) {
	for _, ackOnError := range []bool{true, false} {
		acker := &fakeAcker{}
		pub := &fakePublisher{err: errors.New("redis down")}
		p := newTestPipeline(t, acker, pub, nil, Config{AckOnError: ackOnError})

		ctx := context.Background()
		for _, ev := range crossEvents() {
			p.Handle(ctx, ev)
		}

		// Only the final event publishes; the first 20 always ack.
		want := 20
		if ackOnError {
			want = 21
		}
		if len(acker.acked) != want {
			t.Errorf("ackOnError=%v: acked %d, want %d", ackOnError, len(acker.acked), want)
		}
	}
}

func TestHandle_StoreErrorsAreBestEffort(t *testing.T) {
	acker := &fakeAcker{}
	pub := &fakePublisher{}
	store := &fakeStore{err: errors.New("pg down")}
	p := newTestPipeline(t, acker, pub, store, Config{AckOnError: false})

	ctx := context.Background()
	for _, ev := range crossEvents() {
		p.Handle(ctx, ev)
	}

	// Persistence failed throughout, yet everything acked and published.
	if len(acker.acked) != 21 {
		t.Errorf("acked %d, want 21", len(acker.acked))
	}
	if len(pub.published) != 1 {
		t.Errorf("published %d, want 1", len(pub.published))
	}
}

func TestHandle_StrategyPanicRecovered(t *testing.T) {
	acker := &fakeAcker{}
	pub := &fakePublisher{}
	agg, _ := aggregate.New(aggregate.Config{Interval: "1s"})
	p := New(agg, indicator.NewEngine(0), panicStrategy{}, acker, pub, nil, nil, nil, Config{AckOnError: true})

	p.Handle(context.Background(), tickerEvent("1-0", 1000, 100))

	// Panic became a processing error; AckOnError still acknowledges.
	if len(acker.acked) != 1 {
		t.Fatalf("acked = %v", acker.acked)
	}
}

func TestRun_StopsWhenChannelCloses(t *testing.T) {
	acker := &fakeAcker{}
	pub := &fakePublisher{}
	p := newTestPipeline(t, acker, pub, nil, Config{AckOnError: true})

	events := make(chan model.MarketEvent, 2)
	events <- tickerEvent("1-0", 1000, 100)
	events <- tickerEvent("2-0", 2000, 101)
	close(events)

	if err := p.Run(context.Background(), events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(acker.acked) != 2 {
		t.Errorf("acked %d, want 2", len(acker.acked))
	}
}
