package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/liquidity-engine/internal/logger"
)

type Provider string

const (
	ZipkinProvider  Provider = "zipkin"
	OTLPProvider    Provider = "otlp"
	ConsoleProvider Provider = "console"
	EmptyProvider   Provider = "none"
)

// ParseProvider maps a configured exporter name to a Provider. Unknown names
// map to EmptyProvider.
func ParseProvider(name string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case ZipkinProvider, OTLPProvider, ConsoleProvider:
		return p
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

// Config selects and configures the span exporter.
type Config struct {
	Provider    Provider
	ServiceName string
	Endpoint    string
	// Headers are "k1=v1,k2=v2" pairs sent by the OTLP exporter.
	Headers string
	// Protocol is "grpc" (default) or "http/protobuf" for OTLP.
	Protocol string
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

// NewEmptyTraceProvider returns a provider that exports nothing.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

// NewTraceProvider builds the exporter named by cfg, installs the global
// tracer provider and propagator, and returns a handle to flush on exit.
func NewTraceProvider(log logger.LoggerInterface, cfg Config) (TraceProvider, error) {
	exp, err := newExporter(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s exporter: %w", cfg.Provider, err)
	}
	if exp == nil {
		log.Warn(context.Background(), "tracing disabled", "provider", string(cfg.Provider))
		return NewEmptyTraceProvider(), nil
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
			attribute.String("otel.provider", string(cfg.Provider)),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(context.Background(), "tracing initialized",
		"provider", string(cfg.Provider),
		"endpoint", cfg.Endpoint)

	return &traceProvider{tp}, nil
}

func newExporter(cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Provider {
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case OTLPProvider:
		headers, err := ParseHeaders(cfg.Headers)
		if err != nil {
			return nil, err
		}
		if cfg.Protocol == "http/protobuf" {
			return otlptracehttp.New(
				context.Background(),
				otlptracehttp.WithEndpointURL(cfg.Endpoint),
				otlptracehttp.WithHeaders(headers),
			)
		}
		return otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpointURL(cfg.Endpoint),
			otlptracegrpc.WithHeaders(headers),
		)
	default:
		return nil, nil
	}
}

// ParseHeaders parses "k1=v1,k2=v2". Empty input gives no headers.
func ParseHeaders(s string) (map[string]string, error) {
	headers := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", pair)
		}
		headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return headers, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
