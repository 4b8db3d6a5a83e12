package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/logger"
	"github.com/fd1az/liquidity-engine/internal/wsconn"
)

const (
	tracerName = "xrpl"
	meterName  = "xrpl"

	// Public endpoints
	DefaultWSURL   = "wss://xrplcluster.com"
	DefaultHTTPURL = "https://xrplcluster.com"

	requestTimeout = 10 * time.Second
)

// ErrNotConnected is returned when a request is made without a live
// WebSocket.
var ErrNotConnected = errors.New("xrpl: websocket not connected")

// ClientConfig holds configuration for the WebSocket client.
type ClientConfig struct {
	URL            string
	RequestTimeout time.Duration
	MaxReconnects  int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		URL:            DefaultWSURL,
		RequestTimeout: requestTimeout,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

type clientMetrics struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	latency     metric.Float64Histogram
	parseErrors metric.Int64Counter
}

// Client issues ledger commands over a single WebSocket and matches
// responses to requests by id.
type Client struct {
	config ClientConfig
	logger logger.LoggerInterface

	conn   *wsconn.Client
	connMu sync.RWMutex

	pending   map[int64]chan wsResponse
	pendingMu sync.Mutex
	nextID    atomic.Int64

	tracer  trace.Tracer
	metrics *clientMetrics
}

// NewClient creates a new WebSocket client. Call Connect before Request.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultWSURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = requestTimeout
	}

	c := &Client{
		config:  cfg,
		logger:  log,
		pending: make(map[int64]chan wsResponse),
		tracer:  otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.requests, err = meter.Int64Counter(
		"xrpl_ws_requests_total",
		metric.WithDescription("Commands sent over the WebSocket"),
	)
	if err != nil {
		return err
	}

	c.metrics.errors, err = meter.Int64Counter(
		"xrpl_ws_errors_total",
		metric.WithDescription("Commands that failed or returned an error status"),
	)
	if err != nil {
		return err
	}

	c.metrics.latency, err = meter.Float64Histogram(
		"xrpl_ws_request_latency_ms",
		metric.WithDescription("Round trip time of a command"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	c.metrics.parseErrors, err = meter.Int64Counter(
		"xrpl_ws_parse_errors_total",
		metric.WithDescription("Messages that could not be decoded"),
	)
	return err
}

// Connect dials the endpoint, retrying with backoff until ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "xrpl.connect",
		trace.WithAttributes(attribute.String("url", c.config.URL)),
	)
	defer span.End()

	wsCfg := wsconn.DefaultConfig(c.config.URL, "xrpl")
	wsCfg.MaxReconnects = c.config.MaxReconnects
	if c.config.InitialBackoff > 0 {
		wsCfg.InitialBackoff = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		wsCfg.MaxBackoff = c.config.MaxBackoff
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return apperror.New(apperror.CodeXRPLConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}

	conn.OnMessage(c.handleMessage)
	conn.OnStateChange(func(state wsconn.State, cause error) {
		if state != wsconn.StateConnected {
			c.failPending(cause)
		}
		c.logger.Debug(context.Background(), "xrpl websocket state", "state", string(state), "error", cause)
	})

	if err := conn.ConnectWithRetry(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		_ = conn.Close()
		return apperror.New(apperror.CodeXRPLConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to "+c.config.URL))
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info(ctx, "xrpl websocket connected", "url", c.config.URL)
	return nil
}

// Request sends command with params and decodes the result into result.
// A ledger error status is returned as *RPCError.
func (c *Client) Request(ctx context.Context, command string, params, result any) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	id := c.nextID.Add(1)
	ch := make(chan wsResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	attrs := metric.WithAttributes(attribute.String("command", command))
	c.metrics.requests.Add(ctx, 1, attrs)
	start := time.Now()

	if err := conn.SendJSON(ctx, wsRequest{ID: id, Command: command, Params: params}); err != nil {
		c.metrics.errors.Add(ctx, 1, attrs)
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}

	var resp wsResponse
	select {
	case <-ctx.Done():
		c.metrics.errors.Add(ctx, 1, attrs)
		return apperror.New(apperror.CodeServiceTimeout,
			apperror.WithCause(ctx.Err()),
			apperror.WithContext(command))
	case resp = <-ch:
	}

	c.metrics.latency.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)

	if resp.Type == responseDropped {
		c.metrics.errors.Add(ctx, 1, attrs)
		return apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext(command+": "+resp.ErrorMessage))
	}
	if resp.Status != "success" {
		c.metrics.errors.Add(ctx, 1, attrs)
		return &RPCError{Code: resp.Error, Message: resp.ErrorMessage}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		c.metrics.parseErrors.Add(ctx, 1, attrs)
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}
	return nil
}

// responseDropped marks a synthetic response for a request whose
// connection went away.
const responseDropped = "dropped"

func (c *Client) handleMessage(ctx context.Context, data []byte) {
	var resp wsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.metrics.parseErrors.Add(ctx, 1)
		c.logger.Debug(ctx, "failed to parse message", "error", err, "data", string(data[:min(len(data), 200)]))
		return
	}
	if resp.ID == nil {
		// stream messages; nothing subscribes
		return
	}

	c.pendingMu.Lock()
	ch, ok := c.pending[*resp.ID]
	if ok {
		delete(c.pending, *resp.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- resp
	}
}

// failPending releases every waiting request.
func (c *Client) failPending(cause error) {
	msg := "connection lost"
	if cause != nil {
		msg = cause.Error()
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for id, ch := range c.pending {
		ch <- wsResponse{Type: responseDropped, ErrorMessage: msg}
		delete(c.pending, id)
	}
}

// IsConnected reports whether the WebSocket is usable.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the connection and fails outstanding requests.
func (c *Client) Close() error {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.failPending(nil)
	return err
}
