// Package wsconn provides a WebSocket client with reconnection, built on
// coder/websocket.
package wsconn

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/liquidity-engine/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	Name           string // used in errors
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
	PingTimeout    time.Duration
	ReadTimeout    time.Duration // 0 = no idle limit
	WriteTimeout   time.Duration
	MaxMessageSize int64 // 0 = library default
	AutoReconnect  bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		PingInterval:   30 * time.Second,
		PingTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 4 << 20,
		AutoReconnect:  true,
	}
}

// MessageHandler receives every data frame read from the connection.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler is notified on every state transition. err carries the
// failure that caused it, if any.
type StateHandler func(state State, err error)

// Client is a WebSocket client that redials with exponential backoff after
// the connection drops.
type Client struct {
	config Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	onMessage  MessageHandler
	onState    StateHandler
	handlersMu sync.RWMutex

	life   context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates a new WebSocket client.
func New(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("wsconn: empty URL"))
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = time.Second
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = config.InitialBackoff
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = 10 * time.Second
	}

	life, cancel := context.WithCancel(context.Background())
	return &Client{
		config: config,
		state:  StateDisconnected,
		life:   life,
		cancel: cancel,
	}, nil
}

// OnMessage registers the handler for incoming messages.
func (c *Client) OnMessage(h MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = h
	c.handlersMu.Unlock()
}

// OnStateChange registers the handler for state transitions.
func (c *Client) OnStateChange(h StateHandler) {
	c.handlersMu.Lock()
	c.onState = h
	c.handlersMu.Unlock()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the connection is usable.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials once. On failure the client is left disconnected.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return c.closedErr()
	}

	c.setState(StateConnecting, nil)
	if err := c.dial(ctx); err != nil {
		c.setState(StateDisconnected, err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s: dial %s", c.config.Name, c.config.URL)))
	}
	return nil
}

// ConnectWithRetry dials until it succeeds, ctx ends or MaxReconnects
// attempts have failed.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.life.Done():
			return c.closedErr()
		case <-time.After(backoff):
		}
		backoff = c.nextBackoff(backoff)
	}
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || !c.IsConnected() {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(fmt.Sprintf("%s: not connected", c.config.Name)))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return c.Send(ctx, data)
}

// Close shuts the connection down and stops reconnecting. It is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn != nil {
		// The peer may already be gone; a failed close handshake is not
		// actionable here.
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}

	c.cancel()
	c.wg.Wait()
	c.setState(StateClosed, nil)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		return err
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	c.connMu.Lock()
	if c.closed.Load() {
		c.connMu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return c.closedErr()
	}
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateConnected, nil)

	c.wg.Add(1)
	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop(conn)
	}
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	for {
		ctx := c.life
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.life, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			c.dropped(conn, err)
			return
		}

		c.handlersMu.RLock()
		h := c.onMessage
		c.handlersMu.RUnlock()
		if h != nil {
			h(c.life, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.life.Done():
			return
		case <-ticker.C:
			c.connMu.RLock()
			current := c.conn == conn
			c.connMu.RUnlock()
			if !current {
				return
			}

			ctx, cancel := context.WithTimeout(c.life, c.config.PingTimeout)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				// Closing unblocks readLoop, which owns reconnection.
				_ = conn.Close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}

// dropped handles a read failure on conn.
func (c *Client) dropped(conn *websocket.Conn, cause error) {
	if c.closed.Load() {
		return
	}

	c.connMu.Lock()
	if c.conn != conn {
		c.connMu.Unlock()
		return
	}
	c.conn = nil
	c.connMu.Unlock()

	_ = conn.CloseNow()

	if !c.config.AutoReconnect {
		c.setState(StateDisconnected, cause)
		return
	}

	c.setState(StateReconnecting, cause)
	c.wg.Add(1)
	go c.reconnect(cause)
}

func (c *Client) reconnect(cause error) {
	defer c.wg.Done()

	backoff := c.config.InitialBackoff
	for attempt := 1; ; attempt++ {
		select {
		case <-c.life.Done():
			return
		case <-time.After(backoff):
		}

		ctx, cancel := context.WithTimeout(c.life, c.config.MaxBackoff)
		err := c.dial(ctx)
		cancel()
		if err == nil {
			return
		}
		cause = err

		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			c.setState(StateDisconnected, cause)
			return
		}
		backoff = c.nextBackoff(backoff)
	}
}

func (c *Client) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > c.config.MaxBackoff {
		return c.config.MaxBackoff
	}
	return next
}

func (c *Client) setState(s State, err error) {
	c.stateMu.Lock()
	if c.state == StateClosed || c.state == s {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.stateMu.Unlock()

	c.handlersMu.RLock()
	h := c.onState
	c.handlersMu.RUnlock()
	if h != nil {
		h(s, err)
	}
}

func (c *Client) closedErr() error {
	return apperror.New(apperror.CodeWebSocketClosed,
		apperror.WithContext(c.config.Name))
}
