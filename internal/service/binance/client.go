package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"PulseScan/internal/domain/models"
	drepo "PulseScan/internal/domain/repository"
	"PulseScan/pkg/logger"
)

// AllMarketMiniTickers is the stream carrying every symbol's 24h mini ticker once per second.
const AllMarketMiniTickers = "!miniTicker@arr"

// Option configures Client.
type Option func(*Client)

// WithSymbols restricts the stream to the given symbols.
func WithSymbols(symbols []string) Option {
	return func(c *Client) {
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				c.symbols[s] = struct{}{}
			}
		}
	}
}

// WithQuoteAsset keeps only symbols quoted in asset, e.g. USDT.
func WithQuoteAsset(asset string) Option {
	return func(c *Client) { c.quote = strings.ToUpper(asset) }
}

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.reconnectDelay = d
		}
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// Client implements a MarketStream over the Binance all-market mini ticker WebSocket.
type Client struct {
	url            string
	symbols        map[string]struct{}
	quote          string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	nextID    atomic.Int64
}

// New creates a Binance MarketStream. url is the raw /ws endpoint.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		symbols:        make(map[string]struct{}),
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		log:            logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("binance connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("binance stream connected", logger.String("url", c.url))
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Subscribe asks for the all-market mini ticker stream.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil || !c.connected.Load() {
		return fmt.Errorf("binance not connected")
	}
	req := subscribeRequest{Method: "SUBSCRIBE", Params: []string{AllMarketMiniTickers}, ID: c.nextID.Add(1)}
	b, err := sonic.Marshal(req)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("subscribe %s: %w", AllMarketMiniTickers, err)
	}
	c.log.Info("binance stream subscribed", logger.String("stream", AllMarketMiniTickers))
	return nil
}

// miniTicker is one element of the !miniTicker@arr frame. Prices are decimal strings.
type miniTicker struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	QuoteVolume string `json:"q"`
}

// Read streams raw ticks and errors for the current connection. Both
// channels close when the connection fails or ctx ends.
func (c *Client) Read(ctx context.Context) (<-chan *models.RawTick, <-chan error) {
	ticks := make(chan *models.RawTick, 1024)
	errs := make(chan error, 1)
	conn := c.current()

	done := make(chan struct{})
	go c.pingLoop(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("binance conn nil")
			return
		}

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(3 * c.pingInterval))
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("binance read: %w", err)
				}
				return
			}
			for _, t := range c.decode(b) {
				select {
				case ticks <- t:
				case <-ctx.Done():
					return
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	if conn == nil {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				c.log.Debug("binance ping failed", logger.Error(err))
			}
		}
	}
}

// decode turns one frame into raw ticks. Subscription acks and other
// non-array frames yield nothing.
func (c *Client) decode(b []byte) []*models.RawTick {
	if len(b) == 0 || b[0] != '[' {
		return nil
	}
	var frame []miniTicker
	if err := sonic.ConfigFastest.Unmarshal(b, &frame); err != nil {
		c.log.Debug("binance frame ignored", logger.Error(err))
		return nil
	}
	out := make([]*models.RawTick, 0, len(frame))
	for _, m := range frame {
		if !c.accepts(m.Symbol) {
			continue
		}
		out = append(out, &models.RawTick{
			Symbol:      m.Symbol,
			Price:       m.Close,
			QuoteVolume: m.QuoteVolume,
			Timestamp:   m.EventTime,
		})
	}
	return out
}

func (c *Client) accepts(symbol string) bool {
	if c.quote != "" && !strings.HasSuffix(symbol, c.quote) {
		return false
	}
	if len(c.symbols) == 0 {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// Reconnect closes, waits the reconnect delay and dials again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

var _ drepo.MarketStream = (*Client)(nil)
