package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"strategy-systemv1/config"
	"strategy-systemv1/internal/collector"
	"strategy-systemv1/internal/logger"
	"strategy-systemv1/internal/stream"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	cfg := config.Load()
	logger.Init("collector", logger.ParseLevel(cfg.LogLevel))
	log.Printf("[collector] symbols=%v", cfg.Symbols)

	publisher, err := stream.NewPublisher(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[collector] publisher init: %v", err)
	}
	defer publisher.Close()

	col, err := collector.New(collector.Config{Symbols: cfg.Symbols}, publisher)
	if err != nil {
		log.Fatalf("[collector] init: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("[collector] shutdown requested")
		cancel()
	}()

	if err := col.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("[collector] fatal: %v", err)
	}
	log.Printf("[collector] stopped")
}
