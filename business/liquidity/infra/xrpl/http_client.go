package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/httpclient"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

// maxTracedBody bounds the JSON-RPC bodies attached to spans; book_offers
// replies run to hundreds of kilobytes.
const maxTracedBody = 8 << 10

// HTTPClientConfig holds configuration for the JSON-RPC client.
type HTTPClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// HTTPClient issues ledger commands as JSON-RPC over HTTP. It backs the
// WebSocket when that is unavailable.
type HTTPClient struct {
	client *httpclient.InstrumentedClient
	logger logger.LoggerInterface
	tracer trace.Tracer
}

// NewHTTPClient creates a new JSON-RPC client.
func NewHTTPClient(cfg HTTPClientConfig, log logger.LoggerInterface) (*HTTPClient, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultHTTPURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = requestTimeout
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("xrpl"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithTraceOptions(tracer, maxTracedBody, httpclient.TraceRequest, httpclient.TraceResponse),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &HTTPClient{client: client, logger: log, tracer: tracer}, nil
}

// Request sends command with params and decodes the result into result.
func (c *HTTPClient) Request(ctx context.Context, command string, params, result any) error {
	ctx, span := c.tracer.Start(ctx, "xrpl.http."+command)
	defer span.End()

	body := rpcRequest{Method: command, Params: []any{params}}
	if params == nil {
		body.Params = []any{struct{}{}}
	}

	var env rpcEnvelope
	_, err := c.client.NewRequest(
		httpclient.WithLabels(attribute.String("command", command)),
		httpclient.WithResponseErrorHandler(rpcErrorHandler),
	).
		SetBody(body).
		SetResult(&env).
		Post(ctx, "/")
	if errors.Is(err, httpclient.ErrDecode) {
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}
	if err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeXRPLRequestFailed,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}

	var status rpcStatus
	if err := json.Unmarshal(env.Result, &status); err != nil {
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}
	if status.Status != "success" {
		span.SetAttributes(attribute.String("xrpl.error", status.Error))
		return &RPCError{Code: status.Error, Message: status.ErrorMessage}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, result); err != nil {
		return apperror.New(apperror.CodeInvalidFormat,
			apperror.WithCause(err),
			apperror.WithContext(command))
	}
	return nil
}

func rpcErrorHandler(statusCode int, body []byte) error {
	if statusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", statusCode, string(body[:min(len(body), 200)]))
	}
	return nil
}
