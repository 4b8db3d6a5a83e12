// Package di contains dependency injection tokens for the liquidity context.
package di

import (
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
	"github.com/fd1az/liquidity-engine/business/liquidity/infra/xrpl"
	"github.com/fd1az/liquidity-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	EstimatorService = di.NewToken[*app.EstimatorService]("liquidity.EstimatorService")
	Watcher          = di.NewToken[*app.Watcher]("liquidity.Watcher")
)

// Private dependency tokens - internal to liquidity module
var (
	XRPLProvider = di.NewToken[*xrpl.Provider]("liquidity:xrplProvider")
	EthClient    = di.NewToken[*ethclient.Client]("liquidity:ethClient")
	BookSource   = di.NewToken[app.BookSource]("liquidity:bookSource")
	PoolSource   = di.NewToken[app.PoolSource]("liquidity:poolSource")
	Reporter     = di.NewToken[app.Reporter]("liquidity:reporter")
)

// Helper functions for type-safe access
func GetEstimatorService(c di.ServiceRegistry) *app.EstimatorService {
	return di.GetToken(c, EstimatorService)
}

func GetWatcher(c di.ServiceRegistry) *app.Watcher {
	return di.GetToken(c, Watcher)
}

func GetXRPLProvider(c di.ServiceRegistry) *xrpl.Provider {
	return di.GetToken(c, XRPLProvider)
}

func GetEthClient(c di.ServiceRegistry) *ethclient.Client {
	return di.GetToken(c, EthClient)
}

func GetBookSource(c di.ServiceRegistry) app.BookSource {
	return di.GetToken(c, BookSource)
}

func GetPoolSource(c di.ServiceRegistry) app.PoolSource {
	return di.GetToken(c, PoolSource)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
