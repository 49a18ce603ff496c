// Package collector ingests the GMO Coin public websocket feed and
// republishes each message to the market-data Redis Streams. It is the
// upstream producer of everything the strategy worker consumes.
package collector

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultEndpoint is GMO Coin's public websocket API.
const DefaultEndpoint = "wss://api.coin.z.com/ws/public/v1"

// subscribeDelay paces subscription requests; GMO rate-limits them to
// one per second.
const subscribeDelay = 1100 * time.Millisecond

// maxBackoff caps the reconnect delay.
const maxBackoff = 30 * time.Second

// Publisher is the XADD sink for normalized events.
type Publisher interface {
	Publish(ctx context.Context, stream string, fields map[string]any) (string, error)
}

// Config configures the collector.
type Config struct {
	Endpoint string   // defaults to DefaultEndpoint
	Symbols  []string // e.g. ["BTC_JPY", "ETH_JPY"]
	Channels []string // defaults to ticker+trades
}

// Collector maintains one websocket connection and pumps normalized
// events into Redis. It reconnects with exponential backoff and
// resubscribes after every reconnect.
type Collector struct {
	endpoint string
	symbols  []string
	channels []string
	pub      Publisher
}

// New creates a collector. At least one symbol is required.
func New(cfg Config, pub Publisher) (*Collector, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("collector: no symbols configured")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	channels := cfg.Channels
	if len(channels) == 0 {
		channels = []string{"ticker", "trades"}
	}
	return &Collector{
		endpoint: endpoint,
		symbols:  cfg.Symbols,
		channels: channels,
		pub:      pub,
	}, nil
}

// Run connects and pumps events until ctx is cancelled. Connection
// failures are retried with exponential backoff; a successful session
// resets the backoff.
func (c *Collector) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[collector] session ended: %v (reconnecting in %s)", err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session dials, subscribes and reads frames until the connection drops.
func (c *Collector) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.endpoint, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	defer conn.Close()
	log.Printf("[collector] connected to %s", c.endpoint)

	// Close the socket when ctx ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := c.subscribe(ctx, conn); err != nil {
		return err
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handle(ctx, raw)
	}
}

// subscribe requests every channel/symbol pair, paced to the API's
// subscription rate limit.
func (c *Collector) subscribe(ctx context.Context, conn *websocket.Conn) error {
	first := true
	for _, ch := range c.channels {
		for _, sym := range c.symbols {
			if !first {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(subscribeDelay):
				}
			}
			first = false

			req := map[string]string{
				"command": "subscribe",
				"channel": ch,
				"symbol":  sym,
			}
			if err := conn.WriteJSON(req); err != nil {
				return fmt.Errorf("subscribe %s %s: %w", ch, sym, err)
			}
			log.Printf("[collector] subscribed channel=%s symbol=%s", ch, sym)
		}
	}
	return nil
}

// handle normalizes one frame and publishes it. Malformed or non-data
// frames are logged and dropped; a publish error is logged and the
// message lost — the feed is a firehose, not a queue.
func (c *Collector) handle(ctx context.Context, raw []byte) {
	ev, ok, err := normalize(raw)
	if err != nil {
		log.Printf("[collector] dropping frame: %v", err)
		return
	}
	if !ok {
		return
	}
	if _, err := c.pub.Publish(ctx, ev.Stream, ev.Fields); err != nil {
		log.Printf("[collector] publish to %s failed: %v", ev.Stream, err)
	}
}
