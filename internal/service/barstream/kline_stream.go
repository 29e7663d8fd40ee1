package barstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"PlanSentry/internal/domain/models"
	drepo "PlanSentry/internal/domain/repository"
	applogger "PlanSentry/pkg/logger"
	"PlanSentry/pkg/util"
)

// Config of the kline websocket feed.
type Config struct {
	URL            string
	Symbols        []string
	Interval       string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
}

// Client implements BarStream over a kline websocket. Only closed klines are
// emitted as bars.
type Client struct {
	cfg Config
	log *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a kline stream client.
func New(cfg Config, log *applogger.Logger) drepo.BarStream {
	if cfg.Interval == "" {
		cfg.Interval = "1m"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, log: log.With(applogger.String("component", "bar_stream"))}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("bar stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("bar stream connected", applogger.String("url", c.cfg.URL))
	return nil
}

// StreamNames builds "<symbol>@kline_<interval>" names.
func StreamNames(symbols []string, interval string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, fmt.Sprintf("%s@kline_%s", strings.ToLower(s), interval))
	}
	return out
}

type subscribeMsg struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// Subscribe subscribes to configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return errors.New("bar stream not connected")
	}
	msg := subscribeMsg{Method: "SUBSCRIBE", Params: StreamNames(c.cfg.Symbols, c.cfg.Interval), ID: time.Now().UnixNano()}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("bar stream subscribed", applogger.Strings("streams", msg.Params))
	return nil
}

type klineEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Kline     struct {
		StartTime int64       `json:"t"`
		Open      interface{} `json:"o"`
		High      interface{} `json:"h"`
		Low       interface{} `json:"l"`
		Close     interface{} `json:"c"`
		Volume    interface{} `json:"v"`
		IsFinal   bool        `json:"x"`
	} `json:"k"`
}

type combinedFrame struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// DecodeFrame turns a raw or combined-stream kline frame into a bar. It
// returns nil without error for frames that are not closed klines.
func DecodeFrame(b []byte) (*models.Bar, error) {
	var wrapped combinedFrame
	if err := json.Unmarshal(b, &wrapped); err == nil && len(wrapped.Data) > 0 {
		b = wrapped.Data
	}
	var ev klineEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return nil, fmt.Errorf("decode kline frame: %w", err)
	}
	if ev.EventType != "kline" || !ev.Kline.IsFinal {
		return nil, nil
	}
	bar := &models.Bar{
		Symbol:    util.NormalizeSymbol(ev.Symbol),
		Timestamp: time.UnixMilli(ev.Kline.StartTime).UTC(),
		Open:      toFloat64(ev.Kline.Open),
		High:      toFloat64(ev.Kline.High),
		Low:       toFloat64(ev.Kline.Low),
		Close:     toFloat64(ev.Kline.Close),
		Volume:    toFloat64(ev.Kline.Volume),
	}
	return bar, nil
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	case float64:
		return val
	default:
		return 0
	}
}

// Read streams closed-kline bars and errors until ctx is done or the
// connection fails.
func (c *Client) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 256)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.mu.Lock()
				if c.conn != nil {
					_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	go func() {
		defer close(bars)
		defer close(errs)
		if conn == nil {
			errs <- errors.New("bar stream conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("bar stream read: %w", err)
				return
			}
			bar, err := DecodeFrame(b)
			if err != nil || bar == nil {
				continue
			}
			select {
			case bars <- bar:
			case <-ctx.Done():
				return
			default:
				c.log.Warn("bar stream backpressure, dropping bar", applogger.String("symbol", bar.Symbol))
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and reconnects after the configured delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ReconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
