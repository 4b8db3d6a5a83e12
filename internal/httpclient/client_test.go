package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type echoReply struct {
	Method string `json:"method"`
	Agent  string `json:"agent"`
}

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(echoReply{
				Method: in["method"] + "/" + r.Header.Get("Content-Type"),
				Agent:  r.Header.Get("X-Agent"),
			})
		case "/garbage":
			_, _ = io.WriteString(w, "<html>")
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequest_PostJSON(t *testing.T) {
	srv := newEchoServer(t)
	reader := sdkmetric.NewManualReader()

	c, err := NewInstrumentedClient(
		WithBaseURL(srv.URL),
		WithProviderName("test"),
		WithHeaders(map[string]string{"X-Agent": "liquidity"}),
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))),
	)
	require.NoError(t, err)

	var out echoReply
	resp, err := c.NewRequest(WithLabels(attribute.String("command", "echo"))).
		SetBody(map[string]string{"method": "book_offers"}).
		SetResult(&out).
		Post(context.Background(), "/echo")
	require.NoError(t, err)

	assert.False(t, resp.IsError())
	assert.Equal(t, "book_offers/application/json", out.Method)
	assert.Equal(t, "liquidity", out.Agent)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	assert.True(t, names[metricRequestCounter])
	assert.True(t, names[metricRequestLatency])
}

func TestRequest_DecodeError(t *testing.T) {
	srv := newEchoServer(t)
	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var out echoReply
	resp, err := c.NewRequest().SetResult(&out).Get(context.Background(), "/garbage")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	assert.Equal(t, "<html>", resp.String())
}

func TestRequest_ErrorHandler(t *testing.T) {
	srv := newEchoServer(t)
	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	handler := func(status int, body []byte) error {
		if status >= 400 {
			return fmt.Errorf("HTTP %d: %s", status, body)
		}
		return nil
	}

	var out echoReply
	resp, err := c.NewRequest(WithResponseErrorHandler(handler)).
		SetResult(&out).
		Get(context.Background(), "/missing")
	require.EqualError(t, err, "HTTP 502: upstream down")
	assert.True(t, resp.IsError())
	assert.False(t, errors.Is(err, ErrDecode))
}

func TestRequest_ErrorStatusSkipsDecode(t *testing.T) {
	srv := newEchoServer(t)
	c, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var out echoReply
	resp, err := c.NewRequest().SetResult(&out).Get(context.Background(), "/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestClip(t *testing.T) {
	c, err := NewInstrumentedClient(WithTraceOptions(nil, 4, TraceRequest))
	require.NoError(t, err)
	r := c.NewRequest().(*requestBuilder)

	assert.Equal(t, "abcd", r.clip([]byte("abcd")))
	assert.Equal(t, "abcd...(truncated)", r.clip([]byte("abcdef")))
}
