package xrpl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any) {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any) {
	m.mu.Lock()
	m.warns = append(m.warns, msg)
	m.mu.Unlock()
}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func (m *mockLogger) warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warns...)
}

var _ logger.LoggerInterface = (*mockLogger)(nil)

var usd = asset.NewIssue("USD", bitstamp)

// fakeLedger answers book_offers and amm_info for XRP/USD.
type fakeLedger struct {
	poolMissing atomic.Bool
	lastParams  atomic.Value // map[string]any
}

func (f *fakeLedger) answer(method string, params map[string]any) map[string]any {
	f.lastParams.Store(params)
	switch method {
	case "book_offers":
		gets, _ := params["taker_gets"].(map[string]any)
		if gets["currency"] == "XRP" {
			return map[string]any{
				"status": "success",
				"offers": []any{
					map[string]any{"Account": "rAsk1", "TakerGets": "100000000", "TakerPays": map[string]any{"currency": "USD", "issuer": bitstamp, "value": "50"}},
					map[string]any{"Account": "rBad", "TakerGets": "1", "TakerPays": map[string]any{"currency": "USD", "issuer": bitstamp, "value": "n/a"}},
				},
			}
		}
		return map[string]any{
			"status": "success",
			"offers": []any{
				map[string]any{"Account": "rBid1", "TakerGets": map[string]any{"currency": "USD", "issuer": bitstamp, "value": "45"}, "TakerPays": "100000000"},
			},
		}
	case "amm_info":
		if f.poolMissing.Load() {
			return map[string]any{"status": "error", "error": "actNotFound", "error_message": "Account not found."}
		}
		return map[string]any{
			"status": "success",
			"amm": map[string]any{
				"account":     "rPool",
				"amount":      "2000000000",
				"amount2":     map[string]any{"currency": "USD", "issuer": bitstamp, "value": "1000"},
				"trading_fee": 300,
			},
		}
	}
	return map[string]any{"status": "error", "error": "unknownCmd"}
}

func (f *fakeLedger) params() map[string]any {
	p, _ := f.lastParams.Load().(map[string]any)
	return p
}

// rpcServer serves the fake ledger as JSON-RPC.
func rpcServer(t *testing.T, ledger *fakeLedger) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string           `json:"method"`
			Params []map[string]any `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Params) != 1 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": ledger.answer(req.Method, req.Params[0])})
	}))
}

// wsServer serves the fake ledger over a WebSocket. Requests are answered
// unless silent is set.
func wsServer(t *testing.T, ledger *fakeLedger, silent *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := context.Background()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if silent != nil && silent.Load() {
				continue
			}

			var req map[string]any
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			result := ledger.answer(req["command"].(string), req)
			resp := map[string]any{"id": req["id"], "type": "response", "status": result["status"], "result": result}
			if result["status"] == "error" {
				resp["error"] = result["error"]
				resp["error_message"] = result["error_message"]
			}
			out, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, out); err != nil {
				return
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func httpOnlyProvider(t *testing.T, url string, log *mockLogger) *Provider {
	t.Helper()
	cfg := DefaultProviderConfig()
	cfg.WebSocketURL = ""
	cfg.HTTPURL = url
	cfg.RequestsPerMinute = 6000

	p, err := NewProvider(cfg, log)
	require.NoError(t, err)
	return p
}

func TestProvider_BookOffersOverHTTP(t *testing.T) {
	ledger := &fakeLedger{}
	server := rpcServer(t, ledger)
	defer server.Close()

	log := &mockLogger{}
	p := httpOnlyProvider(t, server.URL, log)
	assert.False(t, p.IsConnected())
	assert.True(t, p.HasFallback())

	entries, err := p.BookOffers(context.Background(), asset.XRP(), usd, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1, "malformed offer must be skipped")
	assert.Equal(t, "rAsk1", entries[0].Account)
	assert.True(t, entries[0].TakerGets.Value.Equal(decimal.NewFromInt(100)))
	assert.Contains(t, log.warnings(), "malformed offers skipped")

	params := ledger.params()
	assert.Equal(t, "validated", params["ledger_index"])
	assert.Equal(t, float64(50), params["limit"])
	assert.Equal(t, map[string]any{"currency": "USD", "issuer": bitstamp}, params["taker_pays"])
}

func TestProvider_PoolSnapshot(t *testing.T) {
	ledger := &fakeLedger{}
	server := rpcServer(t, ledger)
	defer server.Close()

	p := httpOnlyProvider(t, server.URL, &mockLogger{})

	pool, err := p.PoolSnapshot(context.Background(), asset.XRP(), usd)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.True(t, pool.BaseReserves.Equal(decimal.NewFromInt(2000)))
	assert.True(t, pool.QuoteReserves.Equal(decimal.NewFromInt(1000)))
	assert.True(t, pool.FeeRate.Equal(decimal.RequireFromString("0.003")))

	inverted, err := p.PoolSnapshot(context.Background(), usd, asset.XRP())
	require.NoError(t, err)
	assert.True(t, inverted.BaseReserves.Equal(decimal.NewFromInt(1000)))
}

func TestProvider_PoolSnapshotMissingPool(t *testing.T) {
	ledger := &fakeLedger{}
	ledger.poolMissing.Store(true)
	server := rpcServer(t, ledger)
	defer server.Close()

	p := httpOnlyProvider(t, server.URL, &mockLogger{})

	// Repeated misses are answers, not failures, so the breaker stays closed.
	for i := 0; i < 8; i++ {
		pool, err := p.PoolSnapshot(context.Background(), asset.XRP(), usd)
		require.NoError(t, err)
		assert.Nil(t, pool)
	}
}

func TestProvider_LedgerErrorIsReturned(t *testing.T) {
	server := rpcServer(t, &fakeLedger{})
	defer server.Close()

	p := httpOnlyProvider(t, server.URL, &mockLogger{})

	err := p.call(context.Background(), "ledger_closed", nil, nil)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, "unknownCmd", rpcErr.Code)
}

func TestProvider_CircuitOpensOnTransportFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	p := httpOnlyProvider(t, server.URL, &mockLogger{})

	for i := 0; i < 5; i++ {
		_, err := p.BookOffers(context.Background(), asset.XRP(), usd, 10)
		require.Error(t, err)
		assert.Equal(t, apperror.CodeXRPLRequestFailed, apperror.GetCode(err))
	}

	_, err := p.BookOffers(context.Background(), asset.XRP(), usd, 10)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeCircuitOpen, apperror.GetCode(err))
	assert.Equal(t, int32(5), hits.Load(), "open breaker must not reach the server")
}

func TestProvider_WebSocket(t *testing.T) {
	ledger := &fakeLedger{}
	ws := wsServer(t, ledger, nil)
	defer ws.Close()

	cfg := DefaultProviderConfig()
	cfg.WebSocketURL = wsURL(ws)
	cfg.EnableFallback = false
	cfg.RequestsPerMinute = 6000

	p, err := NewProvider(cfg, &mockLogger{})
	require.NoError(t, err)
	defer p.Close()
	assert.False(t, p.HasFallback())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Connect(ctx))
	assert.True(t, p.IsConnected())

	bids, err := p.BookOffers(ctx, usd, asset.XRP(), 10)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "rBid1", bids[0].Account)

	pool, err := p.PoolSnapshot(ctx, asset.XRP(), usd)
	require.NoError(t, err)
	require.NotNil(t, pool)
	assert.True(t, pool.SpotPrice().Equal(decimal.RequireFromString("0.5")))

	ledger.poolMissing.Store(true)
	pool, err = p.PoolSnapshot(ctx, asset.XRP(), usd)
	require.NoError(t, err)
	assert.Nil(t, pool)
}

func TestProvider_FallsBackToHTTPWhenSocketIsSilent(t *testing.T) {
	ledger := &fakeLedger{}
	var silent atomic.Bool
	silent.Store(true)
	ws := wsServer(t, ledger, &silent)
	defer ws.Close()
	rpc := rpcServer(t, ledger)
	defer rpc.Close()

	cfg := DefaultProviderConfig()
	cfg.WebSocketURL = wsURL(ws)
	cfg.HTTPURL = rpc.URL
	cfg.RequestTimeout = 200 * time.Millisecond
	cfg.RequestsPerMinute = 6000

	log := &mockLogger{}
	p, err := NewProvider(cfg, log)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Connect(ctx))

	asks, err := p.BookOffers(ctx, asset.XRP(), usd, 10)
	require.NoError(t, err)
	require.Len(t, asks, 1)
	assert.Contains(t, log.warnings(), "websocket request failed, using HTTP fallback")
}

func TestClient_RequestWithoutConnection(t *testing.T) {
	c, err := NewClient(DefaultClientConfig(), &mockLogger{})
	require.NoError(t, err)

	err = c.Request(context.Background(), "server_info", nil, nil)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, c.Close())
}
