// Package pipeline wires the per-message processing chain: aggregate the
// event into a candle, compute indicators, run the strategy, publish and
// persist the outcome, then acknowledge the message. Processing is strictly
// sequential — one worker owns the whole chain, which is what keeps the
// indicator history and strategy state lock-free.
package pipeline

import (
	"context"
	"fmt"
	"log"

	"strategy-systemv1/internal/aggregate"
	"strategy-systemv1/internal/indicator"
	"strategy-systemv1/internal/metrics"
	"strategy-systemv1/internal/model"
	"strategy-systemv1/internal/strategy"

	"github.com/prometheus/client_golang/prometheus"
)

// Acker acknowledges a processed stream message.
type Acker interface {
	Ack(ctx context.Context, stream, messageID string) error
}

// SignalPublisher publishes a signal to its output stream.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, sig *model.Signal) (string, error)
}

// CandleStore persists candles. Saves are best-effort: errors are logged
// and counted, never escalated.
type CandleStore interface {
	SaveCandle(ctx context.Context, candle model.Candle) error
}

// SignalStore persists emitted signals, also best-effort.
type SignalStore interface {
	SaveSignal(ctx context.Context, sig model.Signal) error
}

// Config tunes pipeline failure behavior.
type Config struct {
	// AckOnError acknowledges messages whose processing failed, trading
	// potential data loss for liveness. Without it a poison message is
	// redelivered forever.
	AckOnError bool
}

// Pipeline processes market events one at a time.
type Pipeline struct {
	agg       *aggregate.Aggregator
	engine    *indicator.Engine
	strat     strategy.Strategy
	acker     Acker
	publisher SignalPublisher

	// Optional persistence; either may be nil.
	candles CandleStore
	signals SignalStore

	metrics *metrics.Metrics
	cfg     Config
}

// New assembles a pipeline. acker and publisher are required; candle and
// signal stores may be nil when persistence is disabled.
func New(agg *aggregate.Aggregator, engine *indicator.Engine, strat strategy.Strategy,
	acker Acker, publisher SignalPublisher, candles CandleStore, signals SignalStore,
	m *metrics.Metrics, cfg Config) *Pipeline {
	if m == nil {
		m = metrics.Nop()
	}
	return &Pipeline{
		agg:       agg,
		engine:    engine,
		strat:     strat,
		acker:     acker,
		publisher: publisher,
		candles:   candles,
		signals:   signals,
		metrics:   m,
		cfg:       cfg,
	}
}

// Run consumes events until the channel closes or ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, events <-chan model.MarketEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle processes one event end to end and acknowledges it. The message
// is acknowledged only after publish succeeds (or there was nothing to
// publish); a processing error acknowledges or redelivers per AckOnError.
func (p *Pipeline) Handle(ctx context.Context, ev model.MarketEvent) {
	p.metrics.EventsTotal.WithLabelValues(ev.Stream).Inc()

	candle := p.agg.Aggregate(ev)
	if candle == nil {
		// Nothing priced in this event (orderbook, malformed payload).
		p.ack(ctx, ev)
		return
	}
	p.metrics.CandlesTotal.Inc()

	if p.candles != nil {
		if err := p.candles.SaveCandle(ctx, *candle); err != nil {
			p.metrics.PersistErrors.WithLabelValues("candle").Inc()
			log.Printf("[pipeline] candle save failed (continuing): %v", err)
		}
	}

	if err := p.decide(ctx, *candle); err != nil {
		log.Printf("[pipeline] processing %s %s: %v", ev.Stream, ev.ID, err)
		p.metrics.ProcessErrors.Inc()
		if p.cfg.AckOnError {
			p.ack(ctx, ev)
		}
		return
	}

	p.ack(ctx, ev)
}

// decide runs indicators, the strategy and the signal side effects for one
// candle. A strategy panic is recovered into an error so one bad symbol
// cannot take the worker down.
func (p *Pipeline) decide(ctx context.Context, candle model.Candle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panic: %v", r)
		}
	}()

	timer := prometheus.NewTimer(p.metrics.DecideDuration)
	snap := p.engine.Compute(candle)
	sig := p.strat.Decide(candle, snap)
	timer.ObserveDuration()

	if sig == nil {
		return nil
	}
	p.metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()

	if _, err := p.publisher.PublishSignal(ctx, sig); err != nil {
		return fmt.Errorf("publish signal: %w", err)
	}

	if p.signals != nil {
		if err := p.signals.SaveSignal(ctx, *sig); err != nil {
			p.metrics.PersistErrors.WithLabelValues("signal").Inc()
			log.Printf("[pipeline] signal save failed (continuing): %v", err)
		}
	}
	return nil
}

func (p *Pipeline) ack(ctx context.Context, ev model.MarketEvent) {
	if err := p.acker.Ack(ctx, ev.Stream, ev.ID); err != nil {
		p.metrics.AckFailures.Inc()
		log.Printf("[pipeline] ack %s %s failed: %v", ev.Stream, ev.ID, err)
	}
}
