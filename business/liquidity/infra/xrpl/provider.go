package xrpl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/fd1az/liquidity-engine/internal/circuitbreaker"
	"github.com/fd1az/liquidity-engine/internal/logger"
	"github.com/fd1az/liquidity-engine/internal/ratelimit"
)

var (
	_ app.BookSource = (*Provider)(nil)
	_ app.PoolSource = (*Provider)(nil)
)

// requester issues one ledger command.
type requester interface {
	Request(ctx context.Context, command string, params, result any) error
}

// ProviderConfig holds configuration for the XRPL provider.
type ProviderConfig struct {
	WebSocketURL      string // empty = no WebSocket, HTTP only
	HTTPURL           string // empty = default
	RequestTimeout    time.Duration
	RequestsPerMinute int
	MaxReconnects     int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	EnableFallback    bool
}

// DefaultProviderConfig returns sensible defaults.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		WebSocketURL:      DefaultWSURL,
		HTTPURL:           DefaultHTTPURL,
		RequestTimeout:    requestTimeout,
		RequestsPerMinute: 600,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
		EnableFallback:    true,
	}
}

// Provider reads order books and AMM pools from the ledger.
type Provider struct {
	config  ProviderConfig
	logger  logger.LoggerInterface
	ws      *Client
	http    requester
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[*RPCError]
	tracer  trace.Tracer
}

// NewProvider creates a new XRPL provider.
func NewProvider(cfg ProviderConfig, log logger.LoggerInterface) (*Provider, error) {
	var ws *Client
	if cfg.WebSocketURL != "" {
		var err error
		ws, err = NewClient(ClientConfig{
			URL:            cfg.WebSocketURL,
			RequestTimeout: cfg.RequestTimeout,
			MaxReconnects:  cfg.MaxReconnects,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
		}, log)
		if err != nil {
			return nil, err
		}
	}

	var httpClient requester
	if cfg.EnableFallback || ws == nil {
		hc, err := NewHTTPClient(HTTPClientConfig{BaseURL: cfg.HTTPURL, Timeout: cfg.RequestTimeout}, log)
		if err != nil {
			if ws == nil {
				return nil, err
			}
			log.Warn(context.Background(), "failed to create HTTP fallback client", "error", err)
		} else {
			httpClient = hc
		}
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 600
	}

	cbCfg := circuitbreaker.DefaultConfig("xrpl")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"name", name,
			"from", from.String(),
			"to", to.String())
	}

	return &Provider{
		config:  cfg,
		logger:  log,
		ws:      ws,
		http:    httpClient,
		limiter: ratelimit.New(rpm),
		cb:      circuitbreaker.New[*RPCError](cbCfg),
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Connect opens the WebSocket. Without one configured it is a no-op.
func (p *Provider) Connect(ctx context.Context) error {
	if p.ws == nil {
		return nil
	}
	return p.ws.Connect(ctx)
}

// HasFallback reports whether HTTP can serve requests without the WebSocket.
func (p *Provider) HasFallback() bool {
	return p.http != nil
}

// IsConnected reports whether the WebSocket is live.
func (p *Provider) IsConnected() bool {
	return p.ws != nil && p.ws.IsConnected()
}

// Close closes the provider.
func (p *Provider) Close() error {
	if p.ws == nil {
		return nil
	}
	return p.ws.Close()
}

// BookOffers returns offers giving takerGets for takerPays, best first.
func (p *Provider) BookOffers(ctx context.Context, takerGets, takerPays asset.Issue, limit int) ([]domain.BookEntry, error) {
	ctx, span := p.tracer.Start(ctx, "xrpl.book_offers",
		trace.WithAttributes(
			attribute.String("taker_gets", takerGets.String()),
			attribute.String("taker_pays", takerPays.String()),
			attribute.Int("limit", limit),
		),
	)
	defer span.End()

	req := BookOffersRequest{
		TakerGets:   NewIssueJSON(takerGets),
		TakerPays:   NewIssueJSON(takerPays),
		Limit:       limit,
		LedgerIndex: "validated",
	}

	var result BookOffersResult
	if err := p.call(ctx, "book_offers", req, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "book_offers failed")
		return nil, err
	}

	entries := make([]domain.BookEntry, 0, len(result.Offers))
	skipped := 0
	for _, o := range result.Offers {
		entry, err := o.ToBookEntry()
		if err != nil {
			skipped++
			p.logger.Debug(ctx, "skipping malformed offer", "account", o.Account, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if skipped > 0 {
		p.logger.Warn(ctx, "malformed offers skipped",
			"taker_gets", takerGets.String(),
			"taker_pays", takerPays.String(),
			"skipped", skipped)
	}

	span.SetAttributes(
		attribute.Int("offers", len(entries)),
		attribute.Int("skipped", skipped),
	)
	return entries, nil
}

// PoolSnapshot returns the AMM pool for base/quote, or nil when none exists.
func (p *Provider) PoolSnapshot(ctx context.Context, base, quote asset.Issue) (*domain.AmmPool, error) {
	ctx, span := p.tracer.Start(ctx, "xrpl.amm_info",
		trace.WithAttributes(
			attribute.String("base", base.String()),
			attribute.String("quote", quote.String()),
		),
	)
	defer span.End()

	req := AMMInfoRequest{
		Asset:       NewIssueJSON(base),
		Asset2:      NewIssueJSON(quote),
		LedgerIndex: "validated",
	}

	var result AMMInfoResult
	err := p.call(ctx, "amm_info", req, &result)
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == errActNotFound {
		span.SetAttributes(attribute.Bool("pool_found", false))
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "amm_info failed")
		return nil, err
	}

	pool, err := result.AMM.ToPool(base)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidPool,
			apperror.WithCause(err),
			apperror.WithContext("amm_info"))
	}

	span.SetAttributes(
		attribute.Bool("pool_found", true),
		attribute.String("base_reserves", pool.BaseReserves.String()),
		attribute.String("quote_reserves", pool.QuoteReserves.String()),
		attribute.String("fee", pool.FeeRate.String()),
	)
	return pool, nil
}

// call rate limits, then runs command through the breaker. Ledger error
// statuses pass through the breaker as results so they do not trip it.
func (p *Provider) call(ctx context.Context, command string, params, result any) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}

	rpcErr, err := p.cb.Execute(func() (*RPCError, error) {
		err := p.roundTrip(ctx, command, params, result)
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return rpcErr, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	if rpcErr != nil {
		return rpcErr
	}
	return nil
}

// roundTrip prefers the WebSocket and falls back to HTTP when the socket is
// down or the request fails in transport.
func (p *Provider) roundTrip(ctx context.Context, command string, params, result any) error {
	if p.ws != nil && p.ws.IsConnected() {
		err := p.ws.Request(ctx, command, params, result)
		var rpcErr *RPCError
		if err == nil || errors.As(err, &rpcErr) || p.http == nil {
			return err
		}
		p.logger.Warn(ctx, "websocket request failed, using HTTP fallback",
			"command", command,
			"error", err)
	}

	if p.http == nil {
		return apperror.New(apperror.CodeXRPLConnectionFailed,
			apperror.WithCause(ErrNotConnected),
			apperror.WithContext(fmt.Sprintf("%s: no transport available", command)))
	}
	return p.http.Request(ctx, command, params, result)
}
