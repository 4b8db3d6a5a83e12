// Package liquidity implements the liquidity bounded context: order book and
// AMM snapshots, depth and fill estimation.
package liquidity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	liquidityDI "github.com/fd1az/liquidity-engine/business/liquidity/di"
	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/business/liquidity/infra"
	"github.com/fd1az/liquidity-engine/business/liquidity/infra/uniswapv2"
	"github.com/fd1az/liquidity-engine/business/liquidity/infra/xrpl"
	"github.com/fd1az/liquidity-engine/internal/apperror"
	"github.com/fd1az/liquidity-engine/internal/config"
	"github.com/fd1az/liquidity-engine/internal/di"
	"github.com/fd1az/liquidity-engine/internal/logger"
	"github.com/fd1az/liquidity-engine/internal/monolith"
	"github.com/fd1az/liquidity-engine/pkg/ui"
)

const connectTimeout = 10 * time.Second

// Module implements the liquidity bounded context.
type Module struct{}

// RegisterServices registers all liquidity services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// XRPL provider - private, serves books and optionally the pool
	di.RegisterToken(c, liquidityDI.XRPLProvider, func(sr di.ServiceRegistry) *xrpl.Provider {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		provider, err := xrpl.NewProvider(xrpl.ProviderConfig{
			WebSocketURL:      cfg.XRPL.WebSocketURL,
			HTTPURL:           cfg.XRPL.HTTPURL,
			RequestTimeout:    cfg.XRPL.RequestTimeout,
			RequestsPerMinute: cfg.XRPL.RequestsPerMinute,
			MaxReconnects:     cfg.XRPL.MaxReconnects,
			InitialBackoff:    cfg.XRPL.InitialBackoff,
			MaxBackoff:        cfg.XRPL.MaxBackoff,
			EnableFallback:    cfg.XRPL.HTTPURL != "",
		}, log)
		if err != nil {
			panic("failed to create xrpl provider: " + err.Error())
		}
		return provider
	})

	di.RegisterToken(c, liquidityDI.EthClient, func(sr di.ServiceRegistry) *ethclient.Client {
		cfg := sr.Get("config").(*config.Config)

		client, err := ethclient.Dial(cfg.Uniswap.RPCURL)
		if err != nil {
			panic("failed to dial ethereum node: " + err.Error())
		}
		return client
	})

	di.RegisterToken(c, liquidityDI.BookSource, func(sr di.ServiceRegistry) app.BookSource {
		return liquidityDI.GetXRPLProvider(sr)
	})

	di.RegisterToken(c, liquidityDI.PoolSource, func(sr di.ServiceRegistry) app.PoolSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		switch cfg.AMM.Source {
		case config.AMMSourceXRPL:
			return liquidityDI.GetXRPLProvider(sr)
		case config.AMMSourceUniswapV2:
			provider, err := uniswapv2.NewProvider(liquidityDI.GetEthClient(sr), cfg.Uniswap, log)
			if err != nil {
				panic("failed to create uniswap v2 provider: " + err.Error())
			}
			return provider
		default:
			return nil
		}
	})

	di.RegisterToken(c, liquidityDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Estimator.Output != config.OutputTUI {
			return infra.NewConsoleReporter()
		}
		return infra.NewTUIReporter(ui.Options{
			Title: fmt.Sprintf("%s %s %s",
				strings.ToUpper(cfg.Estimator.Side),
				cfg.Estimator.Amount,
				domain.Pair{Base: cfg.Market.BaseIssue(), Quote: cfg.Market.QuoteIssue()}),
			Interval: cfg.Estimator.Interval,
		})
	})

	// EstimatorService (public - exposed to other modules)
	di.RegisterToken(c, liquidityDI.EstimatorService, func(sr di.ServiceRegistry) *app.EstimatorService {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		svc, err := app.NewEstimatorService(
			liquidityDI.GetBookSource(sr),
			liquidityDI.GetPoolSource(sr),
			app.ServiceConfig{BookLimit: cfg.XRPL.BookLimit},
			log,
		)
		if err != nil {
			panic("failed to create estimator service: " + err.Error())
		}
		return svc
	})

	di.RegisterToken(c, liquidityDI.Watcher, func(sr di.ServiceRegistry) *app.Watcher {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		req, err := RequestFromConfig(cfg)
		if err != nil {
			panic("invalid estimator config: " + err.Error())
		}
		return app.NewWatcher(
			liquidityDI.GetEstimatorService(sr),
			liquidityDI.GetReporter(sr),
			req,
			app.WatcherConfig{Interval: cfg.Estimator.Interval, Timeout: cfg.Estimator.Timeout},
			log,
		)
	})

	return nil
}

// Startup connects the ledger WebSocket and registers cleanup.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	provider := liquidityDI.GetXRPLProvider(mono.Services())
	mono.OnClose(provider.Close)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := provider.Connect(connectCtx); err != nil {
		if !provider.HasFallback() {
			return apperror.New(apperror.CodeXRPLConnectionFailed,
				apperror.WithCause(err),
				apperror.WithContext("websocket unavailable and no HTTP fallback configured"))
		}
		log.Warn(ctx, "xrpl websocket unavailable, using HTTP", "error", err)
	}

	if cfg.AMM.Source == config.AMMSourceUniswapV2 {
		client := liquidityDI.GetEthClient(mono.Services())
		mono.OnClose(func() error {
			client.Close()
			return nil
		})
	}

	log.Info(ctx, "liquidity module started",
		"pair", cfg.Market.BaseIssue().String()+"/"+cfg.Market.QuoteIssue().String(),
		"amm_source", cfg.AMM.Source,
		"websocket", provider.IsConnected())
	return nil
}

// RequestFromConfig builds the estimate request described by cfg.
func RequestFromConfig(cfg *config.Config) (app.EstimateRequest, error) {
	side, err := domain.ParseSide(cfg.Estimator.Side)
	if err != nil {
		return app.EstimateRequest{}, err
	}

	amount, ok := domain.ParseTradeAmount(cfg.Estimator.Amount)
	if !ok {
		return app.EstimateRequest{}, fmt.Errorf("amount %q is not a positive number", cfg.Estimator.Amount)
	}

	mid, err := cfg.Estimator.MidPriceDecimal()
	if err != nil {
		return app.EstimateRequest{}, fmt.Errorf("mid_price: %w", err)
	}

	return app.EstimateRequest{
		Pair:     domain.Pair{Base: cfg.Market.BaseIssue(), Quote: cfg.Market.QuoteIssue()},
		Side:     side,
		Amount:   amount,
		MidPrice: mid,
	}, nil
}
