package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strategy-systemv1/config"
	"strategy-systemv1/internal/aggregate"
	"strategy-systemv1/internal/indicator"
	"strategy-systemv1/internal/logger"
	"strategy-systemv1/internal/metrics"
	"strategy-systemv1/internal/model"
	"strategy-systemv1/internal/pipeline"
	"strategy-systemv1/internal/store/postgres"
	"strategy-systemv1/internal/strategy"
	"strategy-systemv1/internal/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("strategy", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[strategy] streams=%v group=%s consumer=%s strategy=%s interval=%s",
		cfg.Streams, cfg.ConsumerGroup, cfg.ConsumerName, cfg.StrategyName, cfg.Interval)

	consumer, err := stream.NewConsumer(stream.ConsumerConfig{
		URL:       cfg.RedisURL,
		Group:     cfg.ConsumerGroup,
		Consumer:  cfg.ConsumerName,
		BlockMs:   cfg.BlockMs,
		BatchSize: cfg.BatchSize,
	})
	if err != nil {
		log.Fatalf("[strategy] consumer init: %v", err)
	}
	defer consumer.Close()

	publisher, err := stream.NewPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[strategy] publisher init: %v", err)
	}
	defer publisher.Close()

	var candles pipeline.CandleStore
	var signals pipeline.SignalStore
	var pg *postgres.Client
	if cfg.DatabaseURL != "" {
		pg, err = postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("[strategy] postgres init: %v", err)
		}
		defer pg.Close()
		candles, signals = pg, pg
	} else {
		log.Printf("[strategy] DATABASE_URL not set, persistence disabled")
	}

	agg, err := aggregate.New(aggregate.Config{Interval: cfg.Interval})
	if err != nil {
		log.Fatalf("[strategy] aggregator init: %v", err)
	}

	strat, err := strategy.New(cfg.StrategyName, strategy.Params{
		FastWindow: cfg.FastWindow,
		SlowWindow: cfg.SlowWindow,
	})
	if err != nil {
		log.Fatalf("[strategy] strategy init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.EnsureGroup(ctx, cfg.Streams, "$"); err != nil {
		log.Fatalf("[strategy] group setup: %v", err)
	}

	m := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	health.Register("redis", consumer.Healthy)
	if pg != nil {
		health.Register("postgres", pg.Healthy)
	}
	health.StartChecker(ctx, 15*time.Second)

	srv := metrics.NewServer(cfg.MetricsAddr, health)
	srv.Start()

	pipe := pipeline.New(agg, indicator.NewEngine(indicator.DefaultCapacity), strat,
		consumer, publisher, candles, signals, m, pipeline.Config{AckOnError: cfg.AckOnError})

	events := make(chan model.MarketEvent, int(cfg.BatchSize))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[strategy] shutdown requested")
		consumer.Stop()
		cancel()
	}()

	go func() {
		defer close(events)
		if err := consumer.RecoverPending(ctx, cfg.Streams, events); err != nil {
			log.Printf("[strategy] pending recovery: %v", err)
		}
		if err := consumer.Consume(ctx, cfg.Streams, events); err != nil && ctx.Err() == nil {
			log.Printf("[strategy] consume: %v", err)
		}
	}()

	if err := pipe.Run(ctx, events); err != nil && err != context.Canceled {
		log.Fatalf("[strategy] fatal: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Stop(shutdownCtx)
	log.Printf("[strategy] stopped")
}
