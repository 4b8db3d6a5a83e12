package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, AMMSourceXRPL, cfg.AMM.Source)
	assert.Equal(t, 50, cfg.XRPL.BookLimit)
	assert.Equal(t, 15*time.Second, cfg.Estimator.Interval)
	assert.True(t, cfg.Market.BaseIssue().IsNative())
	assert.Equal(t, "USD", cfg.Market.QuoteIssue().Currency)

	amount, err := cfg.Estimator.AmountDecimal()
	require.NoError(t, err)
	assert.Equal(t, "1000", amount.String())

	mid, err := cfg.Estimator.MidPriceDecimal()
	require.NoError(t, err)
	assert.False(t, mid.Valid)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
market:
  base_currency: XRP
  quote_currency: EUR
  quote_issuer: rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq
estimator:
  side: sell
  amount: "250.5"
  mid_price: "0.52"
`)
	t.Setenv("LIQ_AMOUNT", "99")
	t.Setenv("LIQ_XRPL_BOOK_LIMIT", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Market.QuoteCurrency)
	assert.Equal(t, "sell", cfg.Estimator.Side)
	assert.Equal(t, "99", cfg.Estimator.Amount, "env overrides file")
	assert.Equal(t, 10, cfg.XRPL.BookLimit)

	mid, err := cfg.Estimator.MidPriceDecimal()
	require.NoError(t, err)
	assert.True(t, mid.Valid)
	assert.Equal(t, "0.52", mid.Decimal.String())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			XRPL:      XRPLConfig{WebSocketURL: "wss://example", BookLimit: 20},
			AMM:       AMMConfig{Source: AMMSourceXRPL},
			Market:    MarketConfig{BaseCurrency: "XRP", QuoteCurrency: "USD", QuoteIssuer: "rIssuer"},
			Estimator: EstimatorConfig{Side: "buy", Amount: "10", Interval: time.Second},
			Uniswap:   UniswapConfig{FeeRate: "0.003"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no_xrpl_endpoint", mutate: func(c *Config) { c.XRPL.WebSocketURL = "" }, wantErr: true},
		{name: "missing_quote_issuer", mutate: func(c *Config) { c.Market.QuoteIssuer = "" }, wantErr: true},
		{name: "same_asset", mutate: func(c *Config) { c.Market.QuoteCurrency = "XRP" }, wantErr: true},
		{name: "bad_side", mutate: func(c *Config) { c.Estimator.Side = "hold" }, wantErr: true},
		{name: "zero_amount", mutate: func(c *Config) { c.Estimator.Amount = "0" }, wantErr: true},
		{name: "nan_amount", mutate: func(c *Config) { c.Estimator.Amount = "NaN" }, wantErr: true},
		{name: "bad_mid", mutate: func(c *Config) { c.Estimator.MidPrice = "abc" }, wantErr: true},
		{name: "tui_output", mutate: func(c *Config) { c.Estimator.Output = OutputTUI }},
		{name: "bad_output", mutate: func(c *Config) { c.Estimator.Output = "html" }, wantErr: true},
		{name: "unknown_amm_source", mutate: func(c *Config) { c.AMM.Source = "curve" }, wantErr: true},
		{name: "uniswap_without_rpc", mutate: func(c *Config) { c.AMM.Source = AMMSourceUniswapV2 }, wantErr: true},
		{
			name: "uniswap_complete",
			mutate: func(c *Config) {
				c.AMM.Source = AMMSourceUniswapV2
				c.Uniswap.RPCURL = "http://localhost:8545"
				c.Uniswap.PairAddress = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
				c.Uniswap.BaseToken = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
			},
		},
		{
			name: "uniswap_bad_fee",
			mutate: func(c *Config) {
				c.AMM.Source = AMMSourceUniswapV2
				c.Uniswap.RPCURL = "http://localhost:8545"
				c.Uniswap.PairAddress = "0xB4e16d0168e52d35CaCD2c6185b44281Ec28C9Dc"
				c.Uniswap.BaseToken = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
				c.Uniswap.FeeRate = "1"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
