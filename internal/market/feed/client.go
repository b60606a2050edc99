// Package feed implements the live tick feed: a websocket client that keeps
// one session alive with exponential-backoff reconnection, replays its
// subscriptions after every reconnect, and pushes parsed ticks into the
// engine.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"github.com/goccy/go-json"

	"github.com/coachpo/folio/errs"
	"github.com/coachpo/folio/internal/schema"
)

const (
	maxReconnectInterval = 30 * time.Second
	writeTimeout         = 5 * time.Second
	readLimit            = 1024 * 1024
	readyTimeout         = 10 * time.Second
)

// TickSink receives parsed ticks from the feed.
type TickSink interface {
	OnTick(tick schema.TickData)
}

// Client maintains a websocket session against the tick feed. It implements
// market.Subscriber.
type Client struct {
	url  string
	sink TickSink

	ctx    context.Context
	cancel context.CancelFunc

	conn   *websocket.Conn
	connMu sync.RWMutex

	subs   map[string]struct{}
	subsMu sync.Mutex

	ready     chan struct{}
	readyOnce sync.Once

	errorChan chan<- error
}

type subscribeRequest struct {
	Op          string   `json:"op"`
	Instruments []string `json:"instruments"`
}

type tickMessage struct {
	Type       string  `json:"type"`
	Instrument string  `json:"instrument"`
	Timestamp  int64   `json:"timestamp"`
	Last       float64 `json:"last"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	Volume     int64   `json:"volume"`
}

// NewClient constructs the feed client. errorChan, when non-nil, receives
// transport errors asynchronously.
func NewClient(ctx context.Context, url string, sink TickSink, errorChan chan<- error) *Client {
	clientCtx, cancel := context.WithCancel(ctx)
	return &Client{
		url:       url,
		sink:      sink,
		ctx:       clientCtx,
		cancel:    cancel,
		subs:      make(map[string]struct{}),
		ready:     make(chan struct{}),
		errorChan: errorChan,
	}
}

// SetSink installs the tick receiver. Must be called before Start.
func (c *Client) SetSink(sink TickSink) { c.sink = sink }

// Start dials in the background and waits for the first connection.
func (c *Client) Start() error {
	go func() {
		if err := c.connect(); err != nil && !errors.Is(err, context.Canceled) {
			c.reportError(fmt.Errorf("feed connection failed: %w", err))
		}
	}()

	select {
	case <-c.ready:
		return nil
	case <-time.After(readyTimeout):
		return errs.New("feed/start", errs.CodeNetwork, errs.WithMessage("timeout waiting for feed connection"))
	case <-c.ctx.Done():
		return errs.New("feed/start", errs.CodeNetwork, errs.WithCause(c.ctx.Err()))
	}
}

// Stop closes the session and stops reconnecting.
func (c *Client) Stop() {
	c.cancel()
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "shutdown")
		c.conn = nil
	}
	c.connMu.Unlock()
}

// Subscribe registers interest in an instrument and, when connected, sends
// the subscription immediately. Subscriptions persist across reconnects.
func (c *Client) Subscribe(instrument string) error {
	c.subsMu.Lock()
	if _, exists := c.subs[instrument]; exists {
		c.subsMu.Unlock()
		return nil
	}
	c.subs[instrument] = struct{}{}
	c.subsMu.Unlock()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil
	}
	return c.send(conn, subscribeRequest{Op: "subscribe", Instruments: []string{instrument}})
}

// connect keeps one session alive until the context terminates: dial, replay
// subscriptions, read until failure, back off, repeat.
func (c *Client) connect() error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.MaxInterval = maxReconnectInterval

	for {
		select {
		case <-c.ctx.Done():
			return context.Canceled
		default:
		}

		conn, _, err := websocket.Dial(c.ctx, c.url, nil)
		if err != nil {
			c.reportError(fmt.Errorf("dial %s: %w", c.url, err))
			if !c.sleep(backoffCfg) {
				return context.Canceled
			}
			continue
		}
		conn.SetReadLimit(readLimit)

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()

		c.readyOnce.Do(func() { close(c.ready) })
		backoffCfg.Reset()

		if err := c.subscribeAll(conn); err != nil {
			c.reportError(fmt.Errorf("resubscribe after reconnect: %w", err))
		}

		readErr := c.readLoop(conn)

		c.connMu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")

		if readErr != nil && !errors.Is(readErr, context.Canceled) {
			c.reportError(fmt.Errorf("feed read loop: %w", readErr))
		}

		if !c.sleep(backoffCfg) {
			return context.Canceled
		}
	}
}

func (c *Client) sleep(backoffCfg *backoff.ExponentialBackOff) bool {
	interval := backoffCfg.NextBackOff()
	if interval == backoff.Stop {
		interval = maxReconnectInterval
	}
	select {
	case <-c.ctx.Done():
		return false
	case <-time.After(interval):
		return true
	}
}

func (c *Client) subscribeAll(conn *websocket.Conn) error {
	c.subsMu.Lock()
	instruments := make([]string, 0, len(c.subs))
	for instrument := range c.subs {
		instruments = append(instruments, instrument)
	}
	c.subsMu.Unlock()
	if len(instruments) == 0 {
		return nil
	}
	return c.send(conn, subscribeRequest{Op: "subscribe", Instruments: instruments})
}

func (c *Client) send(conn *websocket.Conn, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errs.New("feed/send", errs.CodeInvalid, errs.WithCause(err))
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return errs.New("feed/send", errs.CodeNetwork, errs.WithCause(err))
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			return err
		}
		if tick, ok := ParseTick(data); ok {
			c.sink.OnTick(tick)
		}
	}
}

// ParseTick decodes a feed message, reporting false for non-tick payloads.
func ParseTick(data []byte) (schema.TickData, bool) {
	var msg tickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return schema.TickData{}, false
	}
	if msg.Type != "tick" || msg.Instrument == "" {
		return schema.TickData{}, false
	}
	return schema.TickData{
		Instrument: msg.Instrument,
		Timestamp:  time.UnixMilli(msg.Timestamp),
		LastPrice:  msg.Last,
		BidPrice:   msg.Bid,
		AskPrice:   msg.Ask,
		Volume:     msg.Volume,
	}, true
}

func (c *Client) reportError(err error) {
	if c.errorChan == nil {
		return
	}
	select {
	case c.errorChan <- err:
	default:
	}
}
