package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"

	"github.com/fangwater/feedrace/internal/config"
	"github.com/fangwater/feedrace/internal/engine"
)

const (
	// Initial-dial retry policy: a handful of quick attempts before the
	// outer backoff loop takes over.
	dialRetries   = 5
	dialRetryWait = time.Second

	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0

	writeTimeout = 10 * time.Second
)

// Stats is the feed client's side channel to the reporter: connection state
// and the non-fatal decode-error indicator required at the reporting
// boundary.
type Stats struct {
	Name           string `json:"name"`
	Connected      bool   `json:"connected"`
	Messages       uint64 `json:"messages"`
	DecodeFailures uint64 `json:"decode_failures"`
	Reconnects     uint64 `json:"reconnects"`
}

// dialFunc opens a websocket connection. Abstracted so tests can inject an
// in-process httptest server or a stub.
type dialFunc func(ctx context.Context, url string) (*websocket.Conn, error)

// Client reads one feed and forwards normalized arrivals into the engine.
type Client struct {
	cfg     config.FeedConfig
	source  engine.Source
	adapter *Adapter
	eng     *engine.Engine
	dial    dialFunc

	connected      atomic.Bool
	messages       atomic.Uint64
	decodeFailures atomic.Uint64
	reconnects     atomic.Uint64
}

// New creates a Client for one configured feed.
func New(cfg config.FeedConfig, source engine.Source, eng *engine.Engine) *Client {
	return &Client{
		cfg:     cfg,
		source:  source,
		adapter: NewAdapter(cfg),
		eng:     eng,
		dial:    defaultDial,
	}
}

// Stats returns a point-in-time copy of the client's counters.
func (c *Client) Stats() Stats {
	return Stats{
		Name:           c.cfg.Name,
		Connected:      c.connected.Load(),
		Messages:       c.messages.Load(),
		DecodeFailures: c.decodeFailures.Load(),
		Reconnects:     c.reconnects.Load(),
	}
}

// Run connects, subscribes, and pumps messages into the engine until ctx is
// cancelled. Transport drops are not fatal: the client reconnects with
// exponential backoff and resumes.
func (c *Client) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.connect(ctx)
		if err != nil {
			wait := bo.next()
			slog.Error("feed: connect failed, will retry",
				"feed", c.cfg.Name, "url", c.cfg.URL, "err", err, "retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("feed: connected", "feed", c.cfg.Name, "url", c.cfg.URL)
		c.connected.Store(true)
		bo.reset()

		err = c.pump(ctx, conn)
		c.connected.Store(false)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		c.reconnects.Add(1)
		wait := bo.next()
		slog.Warn("feed: connection lost, will reconnect",
			"feed", c.cfg.Name, "err", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// connect dials with a bounded quick-retry loop and sends the subscribe
// request once the socket is up.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	var conn *websocket.Conn
	var err error
	for attempt := 1; attempt <= dialRetries; attempt++ {
		conn, err = c.dial(ctx, c.cfg.URL)
		if err == nil {
			break
		}
		if attempt == dialRetries {
			return nil, fmt.Errorf("dial after %d attempts: %w", dialRetries, err)
		}
		slog.Debug("feed: dial failed, retrying",
			"feed", c.cfg.Name, "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryWait):
		}
	}

	if len(c.cfg.Subscribe) > 0 {
		msg, err := sonnet.Marshal(c.cfg.Subscribe)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("marshal subscribe request: %w", err)
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("send subscribe request: %w", err)
		}
		slog.Debug("feed: subscribe request sent", "feed", c.cfg.Name)
	}
	return conn, nil
}

// pump reads messages until the connection fails or ctx is cancelled. Each
// message is stamped with the local receive time before decoding, so the
// arrival timestamp measures delivery, not parsing.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		at := time.Now()
		c.messages.Add(1)

		key, ok, err := c.adapter.Decode(payload)
		if err != nil {
			c.decodeFailures.Add(1)
			slog.Warn("feed: decode failure, message dropped",
				"feed", c.cfg.Name, "err", err)
			continue
		}
		if !ok {
			slog.Debug("feed: non-data message ignored", "feed", c.cfg.Name)
			continue
		}

		if err := c.eng.Ingest(ctx, engine.Event{Key: key, At: at, Source: c.source}); err != nil {
			return nil // ctx cancelled while enqueueing
		}
	}
}

func defaultDial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

// backoff produces exponentially increasing wait times with ±25 % jitter,
// capped at backoffMax.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}
	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
