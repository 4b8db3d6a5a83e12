// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fd1az/liquidity-engine/internal/asset"
)

// Estimate outputs.
const (
	OutputConsole = "console"
	OutputTUI     = "tui"
)

// Pool sources.
const (
	AMMSourceXRPL      = "xrpl"
	AMMSourceUniswapV2 = "uniswap_v2"
	AMMSourceNone      = "none"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	XRPL      XRPLConfig      `mapstructure:"xrpl"`
	AMM       AMMConfig       `mapstructure:"amm"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
	Market    MarketConfig    `mapstructure:"market"`
	Estimator EstimatorConfig `mapstructure:"estimator"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// XRPLConfig holds XRP Ledger node configuration.
type XRPLConfig struct {
	WebSocketURL      string        `mapstructure:"websocket_url"`
	HTTPURL           string        `mapstructure:"http_url"` // JSON-RPC fallback
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	BookLimit         int           `mapstructure:"book_limit"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxReconnects     int           `mapstructure:"max_reconnects"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
}

// AMMConfig selects where the pool snapshot comes from.
type AMMConfig struct {
	Source string `mapstructure:"source"` // xrpl, uniswap_v2 or none
}

// UniswapConfig holds the Uniswap V2 pair used as pool source.
type UniswapConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	PairAddress   string `mapstructure:"pair_address"`
	BaseToken     string `mapstructure:"base_token"`
	BaseDecimals  int32  `mapstructure:"base_decimals"`
	QuoteDecimals int32  `mapstructure:"quote_decimals"`
	FeeRate       string `mapstructure:"fee_rate"`
}

// PairAddressHex returns the pair address as common.Address.
func (c *UniswapConfig) PairAddressHex() common.Address {
	return common.HexToAddress(c.PairAddress)
}

// BaseTokenHex returns the base token address as common.Address.
func (c *UniswapConfig) BaseTokenHex() common.Address {
	return common.HexToAddress(c.BaseToken)
}

// FeeRateDecimal returns the pool fee as a fraction.
func (c *UniswapConfig) FeeRateDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(c.FeeRate)
}

// MarketConfig names the traded pair. The issuer is ignored for XRP.
type MarketConfig struct {
	BaseCurrency  string `mapstructure:"base_currency"`
	BaseIssuer    string `mapstructure:"base_issuer"`
	QuoteCurrency string `mapstructure:"quote_currency"`
	QuoteIssuer   string `mapstructure:"quote_issuer"`
}

// BaseIssue returns the base asset.
func (c *MarketConfig) BaseIssue() asset.Issue {
	return asset.NewIssue(c.BaseCurrency, c.BaseIssuer)
}

// QuoteIssue returns the quote asset.
func (c *MarketConfig) QuoteIssue() asset.Issue {
	return asset.NewIssue(c.QuoteCurrency, c.QuoteIssuer)
}

// EstimatorConfig holds the trade to estimate.
type EstimatorConfig struct {
	Side     string        `mapstructure:"side"`
	Amount   string        `mapstructure:"amount"`
	MidPrice string        `mapstructure:"mid_price"` // optional, derived from the book when empty
	Interval time.Duration `mapstructure:"interval"`  // watch mode period
	Timeout  time.Duration `mapstructure:"timeout"`   // per estimate
	Output   string        `mapstructure:"output"`    // console or tui
}

// AmountDecimal parses the configured trade size.
func (c *EstimatorConfig) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(c.Amount))
}

// MidPriceDecimal parses the configured mid price. Valid is false when unset.
func (c *EstimatorConfig) MidPriceDecimal() (decimal.NullDecimal, error) {
	if strings.TrimSpace(c.MidPrice) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(c.MidPrice))
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ServiceName   string `mapstructure:"service_name"`
	TraceProvider string `mapstructure:"trace_provider"` // zipkin, otlp, console or none
	// TraceEndpoint is the zipkin collector URL or the OTLP endpoint.
	TraceEndpoint  string `mapstructure:"trace_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	MetricsOTLPURL string `mapstructure:"metrics_otlp_url"` // optional metric push target
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health endpoint configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
	// MaxStaleness is how old the last successful estimate may be before the
	// service reports unhealthy in watch mode.
	MaxStaleness time.Duration `mapstructure:"max_staleness"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LIQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "LIQ_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "LIQ_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "LIQ_LOG_LEVEL", "LOG_LEVEL")

	// XRPL
	v.BindEnv("xrpl.websocket_url", "LIQ_XRPL_WS_URL", "XRPL_WS_URL")
	v.BindEnv("xrpl.http_url", "LIQ_XRPL_HTTP_URL", "XRPL_HTTP_URL")

	// AMM / Uniswap
	v.BindEnv("amm.source", "LIQ_AMM_SOURCE")
	v.BindEnv("uniswap.rpc_url", "LIQ_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("uniswap.pair_address", "LIQ_UNISWAP_PAIR")
	v.BindEnv("uniswap.base_token", "LIQ_UNISWAP_BASE_TOKEN")

	// Market
	v.BindEnv("market.base_currency", "LIQ_BASE_CURRENCY")
	v.BindEnv("market.base_issuer", "LIQ_BASE_ISSUER")
	v.BindEnv("market.quote_currency", "LIQ_QUOTE_CURRENCY")
	v.BindEnv("market.quote_issuer", "LIQ_QUOTE_ISSUER")

	// Estimator
	v.BindEnv("estimator.side", "LIQ_SIDE")
	v.BindEnv("estimator.amount", "LIQ_AMOUNT")
	v.BindEnv("estimator.mid_price", "LIQ_MID_PRICE")
	v.BindEnv("estimator.interval", "LIQ_INTERVAL")
	v.BindEnv("estimator.output", "LIQ_OUTPUT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "LIQ_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "LIQ_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.trace_provider", "LIQ_TRACE_PROVIDER")
	v.BindEnv("telemetry.trace_endpoint", "LIQ_TRACE_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "LIQ_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.otlp_protocol", "LIQ_OTEL_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "liquidity-engine")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// XRPL public cluster
	v.SetDefault("xrpl.websocket_url", "wss://xrplcluster.com")
	v.SetDefault("xrpl.http_url", "https://xrplcluster.com")
	v.SetDefault("xrpl.request_timeout", "10s")
	v.SetDefault("xrpl.book_limit", 50)
	v.SetDefault("xrpl.requests_per_minute", 120)
	v.SetDefault("xrpl.max_reconnects", 0) // infinite
	v.SetDefault("xrpl.initial_backoff", "1s")
	v.SetDefault("xrpl.max_backoff", "30s")

	v.SetDefault("amm.source", AMMSourceXRPL)

	// Uniswap V2
	v.SetDefault("uniswap.base_decimals", 18)
	v.SetDefault("uniswap.quote_decimals", 6)
	v.SetDefault("uniswap.fee_rate", "0.003")

	// XRP/USD against Bitstamp
	v.SetDefault("market.base_currency", asset.NativeCurrency)
	v.SetDefault("market.quote_currency", "USD")
	v.SetDefault("market.quote_issuer", "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B")

	v.SetDefault("estimator.side", "buy")
	v.SetDefault("estimator.amount", "1000")
	v.SetDefault("estimator.interval", "15s")
	v.SetDefault("estimator.timeout", "20s")
	v.SetDefault("estimator.output", OutputConsole)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "liquidity-engine")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.trace_endpoint", "http://localhost:9411/api/v2/spans")
	v.SetDefault("telemetry.otlp_protocol", "grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
	v.SetDefault("health.max_staleness", "2m")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.XRPL.WebSocketURL == "" && c.XRPL.HTTPURL == "" {
		return fmt.Errorf("xrpl.websocket_url or xrpl.http_url is required")
	}
	if c.XRPL.BookLimit <= 0 {
		return fmt.Errorf("xrpl.book_limit must be positive")
	}

	if err := c.Market.validate(); err != nil {
		return err
	}

	switch c.AMM.Source {
	case AMMSourceXRPL, AMMSourceNone:
	case AMMSourceUniswapV2:
		if c.Uniswap.RPCURL == "" {
			return fmt.Errorf("uniswap.rpc_url is required for amm.source=%s", AMMSourceUniswapV2)
		}
		if !common.IsHexAddress(c.Uniswap.PairAddress) {
			return fmt.Errorf("invalid uniswap.pair_address: %s", c.Uniswap.PairAddress)
		}
		if !common.IsHexAddress(c.Uniswap.BaseToken) {
			return fmt.Errorf("invalid uniswap.base_token: %s", c.Uniswap.BaseToken)
		}
		fee, err := c.Uniswap.FeeRateDecimal()
		if err != nil || fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("invalid uniswap.fee_rate: %s", c.Uniswap.FeeRate)
		}
	default:
		return fmt.Errorf("invalid amm.source: %q", c.AMM.Source)
	}

	switch strings.ToLower(strings.TrimSpace(c.Estimator.Side)) {
	case "buy", "sell":
	default:
		return fmt.Errorf("invalid estimator.side: %q", c.Estimator.Side)
	}

	amount, err := c.Estimator.AmountDecimal()
	if err != nil || !amount.IsPositive() {
		return fmt.Errorf("estimator.amount must be a positive number, got %q", c.Estimator.Amount)
	}
	if _, err := c.Estimator.MidPriceDecimal(); err != nil {
		return fmt.Errorf("invalid estimator.mid_price: %w", err)
	}
	if c.Estimator.Interval <= 0 {
		return fmt.Errorf("estimator.interval must be positive")
	}
	switch c.Estimator.Output {
	case "", OutputConsole, OutputTUI:
	default:
		return fmt.Errorf("invalid estimator.output: %q", c.Estimator.Output)
	}

	return nil
}

func (c *MarketConfig) validate() error {
	if c.BaseCurrency == "" || c.QuoteCurrency == "" {
		return fmt.Errorf("market.base_currency and market.quote_currency are required")
	}
	if !asset.IsNative(c.BaseCurrency) && c.BaseIssuer == "" {
		return fmt.Errorf("market.base_issuer is required for %s", c.BaseCurrency)
	}
	if !asset.IsNative(c.QuoteCurrency) && c.QuoteIssuer == "" {
		return fmt.Errorf("market.quote_issuer is required for %s", c.QuoteCurrency)
	}
	if c.BaseIssue().Equal(c.QuoteIssue()) {
		return fmt.Errorf("market base and quote must differ")
	}
	return nil
}
