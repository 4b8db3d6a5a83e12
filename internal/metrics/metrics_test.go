package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewMetricProvider_Prometheus(t *testing.T) {
	mp, err := NewMetricProvider(
		WithServiceName("liquidity-engine-test"),
		WithProviderConfig(ProviderCfg{Provider: PrometheusProvider}),
	)
	require.NoError(t, err)
	defer mp.Shutdown(context.Background())

	counter, err := otel.Meter("test").Int64Counter("liquidity_test_estimates_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	srv := httptest.NewServer(NewPromServer().Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "liquidity_test_estimates_total")
}

func TestNewMetricProvider_UnknownProvider(t *testing.T) {
	_, err := NewMetricProvider(WithProviderConfig(ProviderCfg{Provider: "statsd"}))
	assert.Error(t, err)
}

func TestPromServer_StopWithoutStart(t *testing.T) {
	s := NewPromServer(WithPort("0"))
	assert.NoError(t, s.Stop(context.Background()))
}
