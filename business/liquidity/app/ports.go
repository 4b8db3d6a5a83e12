// Package app contains application services and port definitions for the liquidity context.
package app

import (
	"context"

	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/internal/asset"
)

// BookSource provides order book offers for one direction of a market.
type BookSource interface {
	// BookOffers returns offers whose owners give takerGets in exchange for
	// takerPays, best quality first, at most limit entries.
	BookOffers(ctx context.Context, takerGets, takerPays asset.Issue, limit int) ([]domain.BookEntry, error)
}

// PoolSource provides constant-product pool snapshots.
type PoolSource interface {
	// PoolSnapshot returns the pool for base/quote oriented so BaseReserves
	// holds base. A nil pool with a nil error means no pool exists.
	PoolSnapshot(ctx context.Context, base, quote asset.Issue) (*domain.AmmPool, error)
}

// Estimator produces fill estimates.
type Estimator interface {
	Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error)
}

// Reporter defines the interface for presenting estimates.
type Reporter interface {
	// Report renders one estimate.
	Report(ctx context.Context, est *Estimate) error
}

// ErrorReporter is implemented by reporters that also show failed estimates.
type ErrorReporter interface {
	ReportError(ctx context.Context, err error)
}
