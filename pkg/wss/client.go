// Package wss provides the reconnecting WebSocket client feed adapters
// build on. It owns the dial/read/write/ping loops and exponential backoff
// reconnection, and reports its lifecycle as a feed.Status so adapters can
// surface connection state directly.
package wss

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oddsync/oddsync/pkg/feed"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("wss: client closed")

// Config holds connection settings.
type Config struct {
	URL     string
	Headers http.Header

	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration

	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// DefaultConfig returns sensible defaults for a live feed connection.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ReconnectMinDelay: time.Second,
		ReconnectMaxDelay: 30 * time.Second,
		PingInterval:      25 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Handlers are the adapter-side callbacks.
type Handlers struct {
	// OnConnect fires after every successful dial, including reconnects.
	// Adapters typically resubscribe here.
	OnConnect func()

	// OnMessage receives every text/binary frame.
	OnMessage func(data []byte)

	// OnDisconnect fires when an established connection drops.
	OnDisconnect func(err error)

	// OnStatus fires on every lifecycle transition.
	OnStatus func(s feed.Status)
}

// Client is a WebSocket connection that keeps itself alive.
type Client struct {
	cfg      Config
	handlers Handlers

	status int32 // atomic feed.Status

	mu   sync.Mutex
	conn *websocket.Conn

	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewClient builds a client; call Run to connect.
func NewClient(cfg Config, handlers Handlers) *Client {
	if cfg.ReconnectMinDelay <= 0 {
		cfg.ReconnectMinDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}
	return &Client{
		cfg:      cfg,
		handlers: handlers,
		status:   int32(feed.StatusIdle),
		closeCh:  make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (c *Client) Status() feed.Status {
	return feed.Status(atomic.LoadInt32(&c.status))
}

// Run dials and pumps the connection until ctx is canceled or Close is
// called, reconnecting with exponential backoff on every drop. It blocks;
// adapters run it in their own goroutine.
func (c *Client) Run(ctx context.Context) error {
	delay := c.cfg.ReconnectMinDelay
	first := true

	for {
		if c.closed() || ctx.Err() != nil {
			c.setStatus(feed.StatusStopped)
			return ctx.Err()
		}

		if first {
			c.setStatus(feed.StatusConnecting)
		} else {
			c.setStatus(feed.StatusReconnecting)
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.setStatus(feed.StatusError)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				c.setStatus(feed.StatusStopped)
				return ctx.Err()
			case <-c.closeCh:
				c.setStatus(feed.StatusStopped)
				return nil
			}
			if delay *= 2; delay > c.cfg.ReconnectMaxDelay {
				delay = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		first = false
		delay = c.cfg.ReconnectMinDelay
		c.setStatus(feed.StatusConnected)
		if c.handlers.OnConnect != nil {
			c.handlers.OnConnect()
		}

		err = c.pump(ctx, conn)
		conn.Close()
		if c.handlers.OnDisconnect != nil {
			c.handlers.OnDisconnect(err)
		}
	}
}

// Send marshals v and writes it as a text frame.
func (c *Client) Send(v any) error {
	if c.closed() {
		return ErrClosed
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("wss: not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down permanently. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return conn, nil
}

// pump reads frames until the connection drops, keeping the read deadline
// fresh and pinging on an interval.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	if c.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		})
	}

	done := make(chan struct{})
	defer close(done)

	if c.cfg.PingInterval > 0 {
		go func() {
			ticker := time.NewTicker(c.cfg.PingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.mu.Lock()
					conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
					err := conn.WriteMessage(websocket.PingMessage, nil)
					c.mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				case <-ctx.Done():
					return
				case <-c.closeCh:
					return
				}
			}
		}()
	}

	for {
		if ctx.Err() != nil || c.closed() {
			return nil
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if c.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		}
		if c.handlers.OnMessage != nil {
			c.handlers.OnMessage(data)
		}
	}
}

func (c *Client) closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Client) setStatus(s feed.Status) {
	old := feed.Status(atomic.SwapInt32(&c.status, int32(s)))
	if old != s && c.handlers.OnStatus != nil {
		c.handlers.OnStatus(s)
	}
}
