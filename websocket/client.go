package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval is how often the client sends ping control frames. The
	// read deadline is refreshed on every pong; missing one full interval
	// closes the connection locally.
	PingInterval = 30 * time.Second

	writeTimeout = 10 * time.Second
)

// Client represents a single multiplexed WebSocket connection to the
// exchange market-data endpoint.
type Client struct {
	url        string
	conn       *websocket.Conn
	header     http.Header
	log        *zap.Logger
	writeMu    sync.Mutex
	pingCancel context.CancelFunc

	reqMu  sync.Mutex
	nextID int64
}

// subscribeRequest is the exchange's stream control frame.
type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// NewClient creates a new WebSocket client
func NewClient(url string, log *zap.Logger) *Client {
	header := make(http.Header)
	header.Set("User-Agent", "Mozilla/5.0")

	return &Client{
		url:    url,
		header: header,
		log:    log.Named("ws"),
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, c.header)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * PingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * PingInterval))
	})

	c.conn = conn
	c.log.Info("connected", zap.String("url", c.url))
	return nil
}

func (c *Client) reqID() int64 {
	c.reqMu.Lock()
	defer c.reqMu.Unlock()
	c.nextID++
	return c.nextID
}

// Subscribe sends a SUBSCRIBE control frame for the given streams.
func (c *Client) Subscribe(streams []string) error {
	if len(streams) == 0 {
		return nil
	}
	if err := c.writeJSON(subscribeRequest{Method: "SUBSCRIBE", Params: streams, ID: c.reqID()}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("subscribed", zap.Int("streams", len(streams)))
	return nil
}

// Unsubscribe sends an UNSUBSCRIBE control frame for the given streams.
func (c *Client) Unsubscribe(streams []string) error {
	if len(streams) == 0 {
		return nil
	}
	if err := c.writeJSON(subscribeRequest{Method: "UNSUBSCRIBE", Params: streams, ID: c.reqID()}); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// StartPing starts periodic ping control frames to keep the connection
// alive. Stopped by Close.
func (c *Client) StartPing(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.pingCancel = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.writeControl(websocket.PingMessage); err != nil {
					c.log.Warn("ping failed", zap.Error(err))
					return
				}
			}
		}
	}()
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *Client) writeControl(messageType int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return c.conn.WriteControl(messageType, nil, time.Now().Add(writeTimeout))
}

// ReadMessage reads one raw frame from the connection.
func (c *Client) ReadMessage() ([]byte, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("connection is nil")
	}
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close closes the WebSocket connection and stops the pinger.
func (c *Client) Close() error {
	if c.pingCancel != nil {
		c.pingCancel()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
