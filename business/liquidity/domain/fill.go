package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// AmmReserveCap is the share of BaseReserves one estimation may take from a pool.
var AmmReserveCap = decimal.RequireFromString("0.99")

// chunkPrecision truncates AMM chunks bounded by a book level, so rounding
// residue below it cannot produce an extra AMM step at the same level.
const chunkPrecision int32 = 18

var hundred = decimal.NewFromInt(100)

// FillResult is the outcome of walking liquidity for a requested base amount.
//
// FilledAmount is always ClobFilled + AmmFilled and is positive; an estimate
// that fills nothing is reported as a nil *FillResult.
type FillResult struct {
	AvgPrice        decimal.Decimal
	WorstPrice      decimal.Decimal
	SlippagePercent decimal.NullDecimal
	FilledAmount    decimal.Decimal
	TotalCost       decimal.Decimal
	FullFill        bool
	ClobFilled      decimal.Decimal
	AmmFilled       decimal.Decimal
}

// AmmShare is the fraction of the filled amount taken from the pool.
func (r *FillResult) AmmShare() decimal.Decimal {
	if r == nil || !r.FilledAmount.IsPositive() {
		return decimal.Zero
	}
	return r.AmmFilled.DivRound(r.FilledAmount, divPrecision)
}

// Shortfall is the part of requested left unfilled.
func (r *FillResult) Shortfall(requested decimal.Decimal) decimal.Decimal {
	if r == nil {
		return nonNegative(requested)
	}
	return nonNegative(requested.Sub(r.FilledAmount))
}

// EstimateFill walks levels in the given order (best first) and reports the
// execution of amount base against them. It returns nil for a non-positive
// amount or when there are no levels.
func EstimateFill(levels []PricedLevel, amount decimal.Decimal, mid decimal.NullDecimal) *FillResult {
	if !amount.IsPositive() || len(levels) == 0 {
		return nil
	}

	remaining := amount
	filled := decimal.Zero
	totalCost := decimal.Zero
	worst := decimal.Zero

	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}
		fill := decimal.Min(remaining, level.Amount)
		totalCost = totalCost.Add(fill.Mul(level.Price))
		filled = filled.Add(fill)
		remaining = remaining.Sub(fill)
		worst = level.Price
	}

	return newFillResult(filled, decimal.Zero, totalCost, worst, remaining, mid)
}

// EstimateFillCombined interleaves the book walk with consumption of pool,
// always taking the cheaper (buy) or richer (sell) source next.
//
// Levels must be best first for side. A nil pool gives the same result as
// EstimateFill. Pool consumption is capped at AmmReserveCap of BaseReserves.
// On equal prices the book level is taken first. The pool must satisfy
// AmmPool.Validate.
func EstimateFillCombined(levels []PricedLevel, amount decimal.Decimal, mid decimal.NullDecimal, pool *AmmPool, side Side) *FillResult {
	if !amount.IsPositive() {
		return nil
	}
	if pool == nil {
		res := EstimateFill(levels, amount, mid)
		if res != nil {
			res.ClobFilled = res.FilledAmount
			res.AmmFilled = decimal.Zero
		}
		return res
	}

	ammMax := pool.BaseReserves.Mul(AmmReserveCap)

	remaining := amount
	clobFilled := decimal.Zero
	ammFilled := decimal.Zero
	totalCost := decimal.Zero
	worst := decimal.Zero
	idx := 0

	// Each level is crossed by at most one AMM chunk and one book step, plus a
	// final AMM chunk once levels run out.
	for guard := 2*len(levels) + 2; guard > 0 && remaining.IsPositive(); guard-- {
		hasLevel := idx < len(levels)
		hasAmm := ammFilled.LessThan(ammMax)

		if !hasLevel && !hasAmm {
			break
		}

		if hasAmm && !hasLevel {
			chunk := decimal.Min(remaining, ammMax.Sub(ammFilled))
			totalCost = totalCost.Add(tradeValue(*pool, side, chunk, ammFilled))
			ammFilled = ammFilled.Add(chunk)
			remaining = remaining.Sub(chunk)
			worst = marginalPrice(*pool, side, ammFilled)
			continue
		}

		level := levels[idx]

		if hasAmm && side.Better(marginalPrice(*pool, side, ammFilled), level.Price) {
			chunk := maxBeforePrice(*pool, side, level.Price).Sub(ammFilled).Truncate(chunkPrecision)
			chunk = decimal.Min(chunk, remaining, ammMax.Sub(ammFilled))
			if chunk.IsPositive() {
				totalCost = totalCost.Add(tradeValue(*pool, side, chunk, ammFilled))
				ammFilled = ammFilled.Add(chunk)
				remaining = remaining.Sub(chunk)
				worst = marginalPrice(*pool, side, ammFilled)
				continue
			}
		}

		fill := decimal.Min(remaining, level.Amount)
		totalCost = totalCost.Add(fill.Mul(level.Price))
		clobFilled = clobFilled.Add(fill)
		remaining = remaining.Sub(fill)
		worst = level.Price
		idx++
	}

	return newFillResult(clobFilled, ammFilled, totalCost, worst, remaining, mid)
}

func newFillResult(clobFilled, ammFilled, totalCost, worst, remaining decimal.Decimal, mid decimal.NullDecimal) *FillResult {
	filled := clobFilled.Add(ammFilled)
	if !filled.IsPositive() {
		return nil
	}

	avg := totalCost.DivRound(filled, divPrecision)
	res := &FillResult{
		AvgPrice:     avg,
		WorstPrice:   worst,
		FilledAmount: filled,
		TotalCost:    totalCost,
		FullFill:     !remaining.IsPositive(),
		ClobFilled:   clobFilled,
		AmmFilled:    ammFilled,
	}
	if mid.Valid && mid.Decimal.IsPositive() {
		slip := avg.Sub(mid.Decimal).Abs().DivRound(mid.Decimal, divPrecision).Mul(hundred)
		res.SlippagePercent = decimal.NewNullDecimal(slip)
	}
	return res
}

// ParseTradeAmount parses a requested trade size. It reports false for
// anything that is not a finite positive number.
func ParseTradeAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// TradeAmountFromFloat converts a float trade size from an outer surface.
// NaN, infinities and non-positive values are rejected.
func TradeAmountFromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}
