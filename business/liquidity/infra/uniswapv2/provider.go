// Package uniswapv2 reads constant-product pool snapshots from a Uniswap V2
// pair contract.
package uniswapv2

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/fd1az/liquidity-engine/internal/circuitbreaker"
	"github.com/fd1az/liquidity-engine/internal/config"
	"github.com/fd1az/liquidity-engine/internal/logger"
)

const (
	tracerName = "uniswapv2"
	meterName  = "uniswapv2"
)

// Ensure Provider implements PoolSource.
var _ app.PoolSource = (*Provider)(nil)

type providerMetrics struct {
	snapshots metric.Int64Counter
	latency   metric.Float64Histogram
	errors    metric.Int64Counter
}

// Provider implements PoolSource for one configured V2 pair.
type Provider struct {
	client    ethereum.ContractCaller
	pair      common.Address
	baseToken common.Address
	pairABI   abi.ABI

	baseDecimals  int32
	quoteDecimals int32
	fee           decimal.Decimal

	token0   common.Address
	token0OK bool
	token0Mu sync.Mutex

	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *providerMetrics
}

// NewProvider creates a new Uniswap V2 provider reading through client.
func NewProvider(client ethereum.ContractCaller, cfg config.UniswapConfig, log logger.LoggerInterface) (*Provider, error) {
	parsedABI, err := abi.JSON(strings.NewReader(PairABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pair ABI: %w", err)
	}

	if cfg.FeeRate == "" {
		cfg.FeeRate = DefaultFeeRate
	}
	fee, err := cfg.FeeRateDecimal()
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("uniswap fee_rate"))
	}

	p := &Provider{
		client:        client,
		pair:          cfg.PairAddressHex(),
		baseToken:     cfg.BaseTokenHex(),
		pairABI:       parsedABI,
		baseDecimals:  cfg.BaseDecimals,
		quoteDecimals: cfg.QuoteDecimals,
		fee:           fee,
		logger:        log,
		tracer:        otel.Tracer(tracerName),
	}

	cbCfg := circuitbreaker.DefaultConfig("uniswap-v2-pair")
	cbCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state change",
			"name", name,
			"from", from.String(),
			"to", to.String())
	}
	p.cb = circuitbreaker.New[[]byte](cbCfg)

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.snapshots, err = meter.Int64Counter(
		"uniswap_v2_snapshots_total",
		metric.WithDescription("Pool snapshot requests"),
	)
	if err != nil {
		return err
	}

	p.metrics.latency, err = meter.Float64Histogram(
		"uniswap_v2_snapshot_latency_ms",
		metric.WithDescription("Pool snapshot latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	p.metrics.errors, err = meter.Int64Counter(
		"uniswap_v2_snapshot_errors_total",
		metric.WithDescription("Failed pool snapshots"),
	)
	return err
}

// PoolSnapshot reads the configured pair. base and quote only label the
// request; orientation follows the configured base token.
func (p *Provider) PoolSnapshot(ctx context.Context, base, quote asset.Issue) (*domain.AmmPool, error) {
	ctx, span := p.tracer.Start(ctx, "uniswapv2.pool_snapshot",
		trace.WithAttributes(
			attribute.String("pair", p.pair.Hex()),
			attribute.String("base", base.String()),
			attribute.String("quote", quote.String()),
		),
	)
	defer span.End()

	start := time.Now()
	p.metrics.snapshots.Add(ctx, 1)

	pool, err := p.snapshot(ctx)
	p.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		p.metrics.errors.Add(ctx, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("base_reserves", pool.BaseReserves.String()),
		attribute.String("quote_reserves", pool.QuoteReserves.String()),
	)

	p.logger.Debug(ctx, "uniswap v2 snapshot",
		"pair", p.pair.Hex(),
		"base_reserves", pool.BaseReserves.String(),
		"quote_reserves", pool.QuoteReserves.String(),
	)
	return pool, nil
}

func (p *Provider) snapshot(ctx context.Context) (*domain.AmmPool, error) {
	token0, err := p.readToken0(ctx)
	if err != nil {
		return nil, err
	}

	data, err := p.call(ctx, "getReserves")
	if err != nil {
		return nil, err
	}
	reserves, err := decodeReserves(p.pairABI, data)
	if err != nil {
		return nil, apperror.New(apperror.CodeUniswapReservesFailed,
			apperror.WithCause(err))
	}

	return orient(reserves, token0 == p.baseToken, p.baseDecimals, p.quoteDecimals, p.fee)
}

// orient builds the pool with the base token's reserve as BaseReserves.
func orient(r *Reserves, baseIsToken0 bool, baseDecimals, quoteDecimals int32, fee decimal.Decimal) (*domain.AmmPool, error) {
	baseRaw, quoteRaw := r.Reserve0, r.Reserve1
	if !baseIsToken0 {
		baseRaw, quoteRaw = r.Reserve1, r.Reserve0
	}

	baseReserves, err := asset.FromRaw(baseRaw, baseDecimals)
	if err != nil {
		return nil, apperror.New(apperror.CodeUniswapReservesFailed, apperror.WithCause(err))
	}
	quoteReserves, err := asset.FromRaw(quoteRaw, quoteDecimals)
	if err != nil {
		return nil, apperror.New(apperror.CodeUniswapReservesFailed, apperror.WithCause(err))
	}

	return &domain.AmmPool{
		BaseReserves:  baseReserves,
		QuoteReserves: quoteReserves,
		FeeRate:       fee,
	}, nil
}

// readToken0 returns the pair's token0, which never changes once read.
func (p *Provider) readToken0(ctx context.Context) (common.Address, error) {
	p.token0Mu.Lock()
	defer p.token0Mu.Unlock()

	if p.token0OK {
		return p.token0, nil
	}

	data, err := p.call(ctx, "token0")
	if err != nil {
		return common.Address{}, err
	}
	addr, err := decodeToken0(p.pairABI, data)
	if err != nil {
		return common.Address{}, apperror.New(apperror.CodeContractCallFailed, apperror.WithCause(err))
	}

	if addr != p.baseToken {
		p.logger.Debug(ctx, "base token is token1", "pair", p.pair.Hex(), "token0", addr.Hex())
	}
	p.token0, p.token0OK = addr, true
	return addr, nil
}

func (p *Provider) call(ctx context.Context, method string) ([]byte, error) {
	callData, err := p.pairABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", method, err)
	}

	result, err := p.cb.Execute(func() ([]byte, error) {
		return p.client.CallContract(ctx, ethereum.CallMsg{
			To:   &p.pair,
			Data: callData,
		}, nil)
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(method))
	}
	return result, nil
}
