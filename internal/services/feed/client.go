package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/hyperdash/internal/domain"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod keeps the connection alive; the exchange drops sockets idle
	// for 60 seconds, so the application-level ping must come well before.
	pingPeriod = 30 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

type subscriptionPayload struct {
	Type     string `json:"type"`
	Coin     string `json:"coin,omitempty"`
	Interval string `json:"interval,omitempty"`
}

func (p subscriptionPayload) key() string {
	k := p.Type
	if p.Coin != "" {
		k += ":" + p.Coin
	}
	if p.Interval != "" {
		k += ":" + p.Interval
	}
	return k
}

type wsCommand struct {
	Method       string               `json:"method"`
	Subscription *subscriptionPayload `json:"subscription,omitempty"`
}

type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// Subscription a live stream registration. Cancel unsubscribes; a selection
// change must cancel the previous handles before creating new ones so stale
// callbacks can never fire into the wrong view state.
type Subscription struct {
	id      string
	payload subscriptionPayload
	client  *Client
	handler func(json.RawMessage)
}

// Cancel removes the subscription and tells the exchange to stop the stream.
func (s *Subscription) Cancel() error {
	return s.client.unsubscribe(s)
}

// Client is a WebSocket client for the Hyperliquid real-time data feed. It
// manages the connection lifecycle, subscriptions, and dispatches messages to
// registered handlers; on reconnect it restores every active subscription.
type Client struct {
	url    string
	logger *zap.Logger

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool
	// subs key (channel[:coin[:interval]]) -> id -> subscription
	subs      map[string]map[string]*Subscription
	connected bool

	writeMu sync.Mutex
	done    chan struct{}
}

// NewClient creates a client for the given WebSocket endpoint, e.g.
// "wss://api.hyperliquid.xyz/ws".
func NewClient(wsURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    wsURL,
		logger: logger,
		subs:   make(map[string]map[string]*Subscription),
		done:   make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and ping
// loops. Active subscriptions are restored after a reconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("feed: client closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return errors.Wrap(err, "feed: connect")
	}

	c.conn = conn
	c.connected = true

	go c.readLoop(conn)
	go c.pingLoop(conn)

	for _, byID := range c.subs {
		for _, sub := range byID {
			payload := sub.payload
			if err := c.send(wsCommand{Method: "subscribe", Subscription: &payload}); err != nil {
				return errors.Wrap(err, "feed: restore subscription")
			}
		}
	}
	return nil
}

// Close shuts the client down permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected reports whether the feed socket is currently up. A false value
// means the UI should show a disconnected state while keeping the last
// rendered data.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SubscribeBook registers a handler for depth snapshots of one coin.
func (c *Client) SubscribeBook(coin string, h func(BookUpdate)) (*Subscription, error) {
	logger := c.logger
	return c.subscribe(subscriptionPayload{Type: "l2Book", Coin: coin}, func(data json.RawMessage) {
		upd, err := ParseBookUpdate(data, logger)
		if err != nil {
			logger.Warn("bad l2Book payload", zap.String("coin", coin), zap.Error(err))
			return
		}
		h(upd)
	})
}

// SubscribeTrades registers a handler for public trades of one coin.
func (c *Client) SubscribeTrades(coin string, h func([]domain.Trade)) (*Subscription, error) {
	logger := c.logger
	return c.subscribe(subscriptionPayload{Type: "trades", Coin: coin}, func(data json.RawMessage) {
		trades, err := ParseTrades(data, logger)
		if err != nil {
			logger.Warn("bad trades payload", zap.String("coin", coin), zap.Error(err))
			return
		}
		if len(trades) > 0 {
			h(trades)
		}
	})
}

// SubscribeCandles registers a handler for live candle ticks of one
// (coin, interval) pair. Each tick may describe the still-open bucket or a
// freshly closed one.
func (c *Client) SubscribeCandles(coin string, interval domain.Interval, h func(domain.Candle)) (*Subscription, error) {
	logger := c.logger
	return c.subscribe(subscriptionPayload{Type: "candle", Coin: coin, Interval: interval.String()}, func(data json.RawMessage) {
		candle, err := ParseCandle(data)
		if err != nil {
			logger.Warn("bad candle payload", zap.String("coin", coin), zap.Error(err))
			return
		}
		h(candle)
	})
}

// SubscribeAllMids registers a handler for the per-symbol mid price map.
func (c *Client) SubscribeAllMids(h func(map[string]decimal.Decimal)) (*Subscription, error) {
	logger := c.logger
	return c.subscribe(subscriptionPayload{Type: "allMids"}, func(data json.RawMessage) {
		mids, err := ParseAllMids(data, logger)
		if err != nil {
			logger.Warn("bad allMids payload", zap.Error(err))
			return
		}
		h(mids)
	})
}

func (c *Client) subscribe(payload subscriptionPayload, handler func(json.RawMessage)) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("feed: client closed")
	}
	if c.conn == nil {
		return nil, errors.New("feed: not connected")
	}

	sub := &Subscription{
		id:      uuid.New().String(),
		payload: payload,
		client:  c,
		handler: handler,
	}

	key := payload.key()
	first := len(c.subs[key]) == 0
	if c.subs[key] == nil {
		c.subs[key] = make(map[string]*Subscription)
	}
	c.subs[key][sub.id] = sub

	if first {
		if err := c.send(wsCommand{Method: "subscribe", Subscription: &payload}); err != nil {
			delete(c.subs[key], sub.id)
			return nil, errors.Wrapf(err, "feed: subscribe %s", key)
		}
	}
	return sub, nil
}

func (c *Client) unsubscribe(sub *Subscription) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := sub.payload.key()
	byID := c.subs[key]
	if byID == nil {
		return nil
	}
	if _, ok := byID[sub.id]; !ok {
		return nil
	}
	delete(byID, sub.id)
	if len(byID) > 0 || c.conn == nil || c.closed {
		return nil
	}

	delete(c.subs, key)
	payload := sub.payload
	if err := c.send(wsCommand{Method: "unsubscribe", Subscription: &payload}); err != nil {
		return errors.Wrapf(err, "feed: unsubscribe %s", key)
	}
	return nil
}

// send writes a command; callers hold c.mu.
func (c *Client) send(cmd wsCommand) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return errors.New("feed: not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(cmd)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.mu.Lock()
			closed := c.closed
			c.connected = false
			// drop the dead socket so subscribe attempts during the outage
			// report not-connected instead of writing into it
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			if closed {
				return
			}
			c.logger.Warn("feed read failed, reconnecting", zap.Error(err))
			c.reconnect()
			return
		}
		c.dispatch(message)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteJSON(wsCommand{Method: "ping"})
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the client
// is closed. Connect restores the active subscriptions.
func (c *Client) reconnect() {
	delay := reconnectDelay
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		err := c.Connect(ctx)
		cancel()
		if err == nil {
			c.logger.Info("feed reconnected")
			return
		}
		c.logger.Warn("feed reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (c *Client) dispatch(message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.logger.Debug("unparseable feed message", zap.Error(err))
		return
	}

	switch env.Channel {
	case "pong", "subscriptionResponse":
		return
	case "error":
		c.logger.Warn("feed error message", zap.ByteString("data", env.Data))
		return
	}

	key, ok := c.routingKey(env)
	if !ok {
		return
	}

	c.mu.RLock()
	targets := make([]*Subscription, 0, len(c.subs[key]))
	for _, sub := range c.subs[key] {
		targets = append(targets, sub)
	}
	c.mu.RUnlock()

	for _, sub := range targets {
		sub.handler(env.Data)
	}
}

// routingKey recovers the subscription key from a pushed message by peeking
// at the payload's identifying fields.
func (c *Client) routingKey(env envelope) (string, bool) {
	switch env.Channel {
	case "allMids":
		return "allMids", true
	case "l2Book":
		var peek struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(env.Data, &peek); err != nil || peek.Coin == "" {
			return "", false
		}
		return "l2Book:" + peek.Coin, true
	case "trades":
		var peek []struct {
			Coin string `json:"coin"`
		}
		if err := json.Unmarshal(env.Data, &peek); err != nil || len(peek) == 0 {
			return "", false
		}
		return "trades:" + peek[0].Coin, true
	case "candle":
		var peek struct {
			Coin     string `json:"s"`
			Interval string `json:"i"`
		}
		if err := json.Unmarshal(env.Data, &peek); err != nil || peek.Coin == "" {
			return "", false
		}
		return "candle:" + peek.Coin + ":" + peek.Interval, true
	default:
		c.logger.Debug("unhandled feed channel", zap.String("channel", env.Channel))
		return "", false
	}
}
