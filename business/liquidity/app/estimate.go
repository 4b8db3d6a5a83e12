package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
)

// Outcomes recorded for an estimate.
const (
	OutcomeFull    = "full"
	OutcomePartial = "partial"
	OutcomeNone    = "none"
)

// EstimateRequest describes the trade to estimate.
type EstimateRequest struct {
	Pair   domain.Pair
	Side   domain.Side
	Amount decimal.Decimal
	// MidPrice overrides the book-derived mid when Valid.
	MidPrice decimal.NullDecimal
}

// Estimate is one snapshot of market liquidity and the fill it allows.
type Estimate struct {
	ID       string
	Request  EstimateRequest
	Asks     []domain.PricedLevel // descending, as built
	Bids     []domain.PricedLevel // descending, best first
	Depth    domain.Depth
	MidPrice decimal.NullDecimal
	Pool     *domain.AmmPool
	// PoolSkipped explains why a configured pool was left out, if it was.
	PoolSkipped string
	// Fill is nil when nothing could be filled.
	Fill      *domain.FillResult
	Duration  time.Duration
	CreatedAt time.Time
}

// Outcome classifies the fill.
func (e *Estimate) Outcome() string {
	switch {
	case e.Fill == nil:
		return OutcomeNone
	case e.Fill.FullFill:
		return OutcomeFull
	default:
		return OutcomePartial
	}
}

// FillRatio is the filled share of the requested amount, in [0, 1].
func (e *Estimate) FillRatio() decimal.Decimal {
	if e.Fill == nil || !e.Request.Amount.IsPositive() {
		return decimal.Zero
	}
	return decimal.Min(decimal.NewFromInt(1), e.Fill.FilledAmount.DivRound(e.Request.Amount, 18))
}

// Shortfall is the requested amount left unfilled.
func (e *Estimate) Shortfall() decimal.Decimal {
	return e.Fill.Shortfall(e.Request.Amount)
}
