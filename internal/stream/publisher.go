package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"time"

	"strategy-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

// signalStreamMaxLen bounds signal streams (approximate trim).
const signalStreamMaxLen = 10000

// Publisher writes messages to Redis Streams via XADD.
type Publisher struct {
	client *goredis.Client
}

// NewPublisher parses the connection URL, connects and pings the server.
func NewPublisher(url string) (*Publisher, error) {
	opts, err := goredis.ParseURL(url)
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

	log.Printf("[publisher] connected to %s", opts.Addr)
	return &Publisher{client: client}, nil
}

// Publish XADDs the fields to the stream and returns the new message ID.
// Non-scalar values are JSON-encoded; scalars are stringified.
func (p *Publisher) Publish(ctx context.Context, stream string, fields map[string]any) (string, error) {
	id, err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: stream,
		MaxLen: signalStreamMaxLen,
		Approx: true,
		Values: encodeFields(fields),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}

// PublishSignal publishes a signal to its derived stream
// ("signal:<exchange>:<symbol>").
func (p *Publisher) PublishSignal(ctx context.Context, sig *model.Signal) (string, error) {
	fields := map[string]any{
		"exchange":   sig.Exchange,
		"symbol":     sig.Symbol,
		"strategy":   sig.Strategy,
		"action":     string(sig.Action),
		"confidence": sig.Confidence,
		"price_ref":  sig.PriceRef,
		"timestamp":  sig.TS.UTC().Format(time.RFC3339Nano),
	}
	if sig.Indicators != nil {
		fields["indicators"] = sig.Indicators
	}
	if sig.Meta != nil {
		fields["meta"] = sig.Meta
	}
	return p.Publish(ctx, sig.StreamName(), fields)
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

// encodeFields converts field values to the string form XADD expects:
// maps, slices and structs become JSON, decimals keep their exact text
// form, everything else is fmt.Sprint-ed.
func encodeFields(fields map[string]any) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = encodeValue(v)
	}
	return out
}

func encodeValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case []byte:
		return string(t)
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
