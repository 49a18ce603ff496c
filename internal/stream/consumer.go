// Package stream provides the Redis Streams collaborators of the pipeline:
// a consumer-group reader with acknowledgment deferred to the caller, and a
// publisher for signal streams.
package stream

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"strategy-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// ConsumerConfig configures the Redis stream consumer.
type ConsumerConfig struct {
	URL       string // e.g. "redis://localhost:6379/0"
	Group     string // consumer group name, e.g. "strategy"
	Consumer  string // unique consumer name, e.g. "strategy-1"
	BlockMs   int64  // XREADGROUP block, default 1000
	BatchSize int64  // XREADGROUP count, default 10
}

// Consumer reads market events from Redis Streams via a consumer group.
// It never acknowledges on its own: the pipeline calls Ack after the
// message's side effects are complete, which is what ties delivery to
// successful processing.
type Consumer struct {
	client    *goredis.Client
	group     string
	consumer  string
	blockMs   int64
	batchSize int64
	stopCh    chan struct{}
}

// NewConsumer parses the connection URL, connects and pings the server.
// A malformed URL is returned as an error for the caller to treat as fatal.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	group := cfg.Group
	if group == "" {
		group = "strategy"
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "strategy-1"
	}
	blockMs := cfg.BlockMs
	if blockMs <= 0 {
		blockMs = 1000
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}

	log.Printf("[consumer] connected to %s (group=%s, consumer=%s)", opts.Addr, group, consumer)
	return &Consumer{
		client:    client,
		group:     group,
		consumer:  consumer,
		blockMs:   blockMs,
		batchSize: batch,
		stopCh:    make(chan struct{}),
	}, nil
}

// EnsureGroup creates the consumer group on each stream if it does not
// exist, starting at startID ("$" = only new messages). A pre-existing
// group (BUSYGROUP) is not an error.
func (c *Consumer) EnsureGroup(ctx context.Context, streams []string, startID string) error {
	if startID == "" {
		startID = "$"
	}
	for _, stream := range streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.group, startID).Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", stream, err)
		}
	}
	return nil
}

// Consume reads batches via XREADGROUP and sends each message as a
// MarketEvent on out, strictly in delivery order. Field extraction never
// fails — missing fields default to zero values so the pipeline can still
// acknowledge the message. Blocks until ctx is cancelled or Stop is called.
func (c *Consumer) Consume(ctx context.Context, streams []string, out chan<- model.MarketEvent) error {
	args := make([]string, len(streams)*2)
	for i, s := range streams {
		args[i] = s
		args[len(streams)+i] = ">"
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return nil
		default:
		}

		results, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.consumer,
			Streams:  args,
			Count:    c.batchSize,
			Block:    time.Duration(c.blockMs) * time.Millisecond,
		}).Result()
		if err != nil {
			if err == goredis.Nil || ctx.Err() != nil {
				continue
			}
			log.Printf("[consumer] xreadgroup error: %v", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range results {
			for _, msg := range stream.Messages {
				select {
				case out <- toEvent(stream.Stream, msg):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// fetchFunc reads one batch of this consumer's pending entries with IDs
// past cursor.
type fetchFunc func(ctx context.Context, cursor string) ([]goredis.XMessage, error)

// RecoverPending replays this consumer's own pending entries (delivered
// before a crash, never acknowledged) on out. It reads the consumer's
// history via XREADGROUP with an explicit ID cursor — "0" first, then past
// the last replayed entry — so it never touches other group members'
// deliveries and never replays an entry twice within one pass, even though
// acknowledgment happens asynchronously downstream. Run once at startup,
// before Consume.
func (c *Consumer) RecoverPending(ctx context.Context, streams []string, out chan<- model.MarketEvent) error {
	for _, stream := range streams {
		stream := stream
		fetch := func(ctx context.Context, cursor string) ([]goredis.XMessage, error) {
			return c.readPending(ctx, stream, cursor)
		}
		if err := replayPending(ctx, stream, fetch, out); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Printf("[consumer] pending replay on %s: %v", stream, err)
		}
	}
	return nil
}

// readPending fetches one batch of this consumer's history after cursor.
func (c *Consumer) readPending(ctx context.Context, stream, cursor string) ([]goredis.XMessage, error) {
	results, err := c.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{stream, cursor},
		Count:    c.batchSize,
		Block:    -1, // history reads never block
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup history %s: %w", stream, err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Messages, nil
}

// replayPending drains fetch into out, advancing the cursor past each
// delivered batch. The pending list itself may not shrink during the pass
// (acks land later); the cursor, not the list, is what guarantees each
// entry goes out at most once.
func replayPending(ctx context.Context, stream string, fetch fetchFunc, out chan<- model.MarketEvent) error {
	cursor := "0"
	for {
		msgs, err := fetch(ctx, cursor)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		for _, msg := range msgs {
			select {
			case out <- toEvent(stream, msg):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		cursor = msgs[len(msgs)-1].ID
	}
}

// Ack acknowledges one message against its stream and this consumer group.
func (c *Consumer) Ack(ctx context.Context, stream, messageID string) error {
	return c.client.XAck(ctx, stream, c.group, messageID).Err()
}

// Healthy pings the Redis connection, for health probes.
func (c *Consumer) Healthy(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}

// Stop makes Consume return after the in-flight batch.
func (c *Consumer) Stop() {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
}

// Close closes the Redis client.
func (c *Consumer) Close() error {
	return c.client.Close()
}

// toEvent converts a raw stream entry into the transport envelope.
func toEvent(stream string, msg goredis.XMessage) model.MarketEvent {
	ts, _ := strconv.ParseInt(stringField(msg.Values, "ts"), 10, 64)
	data := stringField(msg.Values, "data")
	if data == "" {
		data = "{}"
	}
	return model.MarketEvent{
		Stream:   stream,
		ID:       msg.ID,
		Exchange: stringField(msg.Values, "exchange"),
		Symbol:   stringField(msg.Values, "symbol"),
		TS:       ts,
		Data:     data,
	}
}

func stringField(values map[string]interface{}, key string) string {
	if v, ok := values[key].(string); ok {
		return v
	}
	return ""
}
