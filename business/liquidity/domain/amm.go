package domain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// sqrtPrecision is the number of decimal places kept by sqrt.
const sqrtPrecision int32 = 24

// ErrInvalidPool is returned by AmmPool.Validate.
var ErrInvalidPool = errors.New("liquidity: invalid amm pool")

var one = decimal.NewFromInt(1)

// AmmPool is an immutable snapshot of a constant-product pool.
//
// Reserves are in base and quote units. FeeRate is a fraction in [0, 1)
// charged on the input leg of every swap.
type AmmPool struct {
	BaseReserves  decimal.Decimal
	QuoteReserves decimal.Decimal
	FeeRate       decimal.Decimal
}

// Validate checks that reserves are positive and the fee is in [0, 1).
func (p AmmPool) Validate() error {
	if !p.BaseReserves.IsPositive() {
		return fmt.Errorf("%w: base reserves %s", ErrInvalidPool, p.BaseReserves)
	}
	if !p.QuoteReserves.IsPositive() {
		return fmt.Errorf("%w: quote reserves %s", ErrInvalidPool, p.QuoteReserves)
	}
	if p.FeeRate.IsNegative() || p.FeeRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: fee rate %s", ErrInvalidPool, p.FeeRate)
	}
	return nil
}

// SpotPrice is the fee-free quote-per-base price at current reserves.
func (p AmmPool) SpotPrice() decimal.Decimal {
	return p.QuoteReserves.DivRound(p.BaseReserves, divPrecision)
}

func (p AmmPool) invariant() decimal.Decimal {
	return p.BaseReserves.Mul(p.QuoteReserves)
}

func (p AmmPool) feeFactor() decimal.Decimal {
	return one.Sub(p.FeeRate)
}

// The functions below take the original snapshot plus the base amount already
// traded against it in the current estimation. Buy offsets must stay below
// BaseReserves.

// MarginalBuyPrice is the price of the next unit of base after bought has been
// taken out of the pool: k / ((x-b)^2 (1-f)).
func MarginalBuyPrice(pool AmmPool, bought decimal.Decimal) decimal.Decimal {
	left := pool.BaseReserves.Sub(bought)
	denom := left.Mul(left).Mul(pool.feeFactor())
	return pool.invariant().DivRound(denom, divPrecision)
}

// MarginalSellPrice is the price received for the next unit of base after sold
// has been added to the pool: k (1-f) / (x + s(1-f))^2.
func MarginalSellPrice(pool AmmPool, sold decimal.Decimal) decimal.Decimal {
	effective := pool.BaseReserves.Add(sold.Mul(pool.feeFactor()))
	num := pool.invariant().Mul(pool.feeFactor())
	return num.DivRound(effective.Mul(effective), divPrecision)
}

// MaxBuyBeforePrice is the cumulative base that can be bought before the
// marginal buy price exceeds threshold: x - sqrt(k / (P (1-f))), floored at zero.
func MaxBuyBeforePrice(pool AmmPool, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() {
		return decimal.Zero
	}
	target := pool.invariant().DivRound(threshold.Mul(pool.feeFactor()), divPrecision)
	return nonNegative(pool.BaseReserves.Sub(sqrt(target)))
}

// MaxSellBeforePrice is the cumulative base that can be sold before the
// marginal sell price drops below threshold: (sqrt(k (1-f) / P) - x) / (1-f),
// floored at zero.
func MaxSellBeforePrice(pool AmmPool, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() {
		return decimal.Zero
	}
	target := pool.invariant().Mul(pool.feeFactor()).DivRound(threshold, divPrecision)
	gross := sqrt(target).Sub(pool.BaseReserves)
	return nonNegative(gross.DivRound(pool.feeFactor(), divPrecision))
}

// BuyCost is the quote paid for amount base starting at offset bought:
// k a / ((1-f) (x-b) (x-b-a)).
func BuyCost(pool AmmPool, amount, bought decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	before := pool.BaseReserves.Sub(bought)
	after := before.Sub(amount)
	denom := pool.feeFactor().Mul(before).Mul(after)
	return pool.invariant().Mul(amount).DivRound(denom, divPrecision)
}

// SellProceeds is the quote received for amount base starting at offset sold:
// k a (1-f) / ((x + s(1-f)) (x + (s+a)(1-f))).
func SellProceeds(pool AmmPool, amount, sold decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	f := pool.feeFactor()
	before := pool.BaseReserves.Add(sold.Mul(f))
	after := pool.BaseReserves.Add(sold.Add(amount).Mul(f))
	num := pool.invariant().Mul(amount).Mul(f)
	return num.DivRound(before.Mul(after), divPrecision)
}

// marginalPrice dispatches on side.
func marginalPrice(pool AmmPool, side Side, offset decimal.Decimal) decimal.Decimal {
	if side == SideBuy {
		return MarginalBuyPrice(pool, offset)
	}
	return MarginalSellPrice(pool, offset)
}

// maxBeforePrice dispatches on side.
func maxBeforePrice(pool AmmPool, side Side, threshold decimal.Decimal) decimal.Decimal {
	if side == SideBuy {
		return MaxBuyBeforePrice(pool, threshold)
	}
	return MaxSellBeforePrice(pool, threshold)
}

// tradeValue dispatches on side.
func tradeValue(pool AmmPool, side Side, amount, offset decimal.Decimal) decimal.Decimal {
	if side == SideBuy {
		return BuyCost(pool, amount, offset)
	}
	return SellProceeds(pool, amount, offset)
}

// sqrt is the floor square root of d to sqrtPrecision places, computed on
// integers so no binary floating point is involved.
func sqrt(d decimal.Decimal) decimal.Decimal {
	if !d.IsPositive() {
		return decimal.Zero
	}
	scaled := d.Shift(2 * sqrtPrecision).BigInt()
	root := new(big.Int).Sqrt(scaled)
	return decimal.NewFromBigInt(root, -sqrtPrecision)
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
