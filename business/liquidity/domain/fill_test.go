package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mid(s string) decimal.NullDecimal { return decimal.NewNullDecimal(d(s)) }

func stairs() []PricedLevel {
	return []PricedLevel{lvl("10", "10"), lvl("11", "20"), lvl("12", "30")}
}

func assertInvariants(t *testing.T, res *FillResult) {
	t.Helper()
	require.NotNil(t, res)
	assert.True(t, res.FilledAmount.Equal(res.ClobFilled.Add(res.AmmFilled)), "filled != clob + amm")
	assert.True(t, res.FilledAmount.IsPositive(), "a result always fills something")
	assertClose(t, res.TotalCost, res.AvgPrice.Mul(res.FilledAmount), "1e-16", "avg * filled != total")
}

func TestEstimateFill_Stairs(t *testing.T) {
	res := EstimateFill(stairs(), d("25"), mid("10.5"))

	assertInvariants(t, res)
	assert.True(t, res.FilledAmount.Equal(d("25")))
	assert.True(t, res.TotalCost.Equal(d("265")))
	assert.True(t, res.AvgPrice.Equal(d("10.6")))
	assert.True(t, res.WorstPrice.Equal(d("11")))
	assert.True(t, res.FullFill)

	require.True(t, res.SlippagePercent.Valid)
	// |10.6 - 10.5| / 10.5 * 100
	assertClose(t, d("0.1").DivRound(d("10.5"), 24).Mul(d("100")), res.SlippagePercent.Decimal, "1e-20")
}

func TestEstimateFill_PartialFill(t *testing.T) {
	res := EstimateFill(stairs(), d("100"), decimal.NullDecimal{})

	assertInvariants(t, res)
	assert.True(t, res.FilledAmount.Equal(d("60")))
	assert.True(t, res.TotalCost.Equal(d("680")))
	assert.True(t, res.WorstPrice.Equal(d("12")))
	assert.False(t, res.FullFill)
	assert.False(t, res.SlippagePercent.Valid, "no mid means no slippage")
	assert.True(t, res.Shortfall(d("100")).Equal(d("40")))
}

func TestEstimateFill_Absent(t *testing.T) {
	tests := []struct {
		name   string
		levels []PricedLevel
		amount decimal.Decimal
	}{
		{name: "zero_amount", levels: stairs(), amount: decimal.Zero},
		{name: "negative_amount", levels: stairs(), amount: d("-5")},
		{name: "no_levels", levels: nil, amount: d("5")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, EstimateFill(tt.levels, tt.amount, mid("10")))
			assert.Nil(t, EstimateFillCombined(tt.levels, tt.amount, mid("10"), nil, SideBuy))
		})
	}
}

func TestEstimateFill_SlippageNeedsPositiveMid(t *testing.T) {
	res := EstimateFill(stairs(), d("5"), mid("0"))
	require.NotNil(t, res)
	assert.False(t, res.SlippagePercent.Valid)

	res = EstimateFill(stairs(), d("5"), mid("-1"))
	require.NotNil(t, res)
	assert.False(t, res.SlippagePercent.Valid)
}

func TestEstimateFillCombined_NoPoolMatchesClob(t *testing.T) {
	for _, amount := range []string{"0.5", "10", "25", "60", "1000"} {
		clob := EstimateFill(stairs(), d(amount), mid("10.5"))
		combined := EstimateFillCombined(stairs(), d(amount), mid("10.5"), nil, SideBuy)

		assertInvariants(t, combined)
		assert.True(t, clob.AvgPrice.Equal(combined.AvgPrice), "avg for %s", amount)
		assert.True(t, clob.WorstPrice.Equal(combined.WorstPrice), "worst for %s", amount)
		assert.True(t, clob.TotalCost.Equal(combined.TotalCost), "total for %s", amount)
		assert.True(t, clob.FilledAmount.Equal(combined.FilledAmount), "filled for %s", amount)
		assert.Equal(t, clob.FullFill, combined.FullFill)
		assert.True(t, combined.ClobFilled.Equal(combined.FilledAmount))
		assert.True(t, combined.AmmFilled.IsZero())
		assert.True(t, clob.SlippagePercent.Decimal.Equal(combined.SlippagePercent.Decimal))
	}
}

func TestEstimateFillCombined_AmmOnlyWithFee(t *testing.T) {
	p := pool("1000", "10000", "0.01")
	res := EstimateFillCombined(nil, d("10"), decimal.NullDecimal{}, &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.AmmFilled.Equal(d("10")))
	assert.True(t, res.ClobFilled.IsZero())
	assert.True(t, res.AvgPrice.GreaterThan(d("10")), "fee and curve push avg above spot, got %s", res.AvgPrice)
	assert.True(t, res.FullFill)
	assert.True(t, res.WorstPrice.GreaterThan(res.AvgPrice))
	assert.True(t, res.AmmShare().Equal(d("1")))
}

func TestEstimateFillCombined_ReserveCap(t *testing.T) {
	p := pool("100", "1000", "0")
	res := EstimateFillCombined(nil, d("200"), decimal.NullDecimal{}, &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.AmmFilled.Equal(d("99")))
	assert.True(t, res.TotalCost.Equal(d("99000")))
	assert.False(t, res.FullFill)
}

func TestEstimateFillCombined_CapHoldsForAnySize(t *testing.T) {
	pools := []AmmPool{
		pool("100", "1000", "0"),
		pool("1000", "10000", "0.01"),
		pool("0.5", "2", "0.003"),
	}
	for _, p := range pools {
		limit := p.BaseReserves.Mul(AmmReserveCap)
		for _, side := range []Side{SideBuy, SideSell} {
			for _, amount := range []string{"1", "1000", "1000000000"} {
				res := EstimateFillCombined(nil, d(amount), decimal.NullDecimal{}, &p, side)
				assertInvariants(t, res)
				assert.True(t, res.AmmFilled.LessThanOrEqual(limit), "%s %s on %+v took %s", side, amount, p, res.AmmFilled)
				assert.Equal(t, res.FilledAmount.GreaterThanOrEqual(d(amount)), res.FullFill)
			}
		}
	}
}

func TestEstimateFillCombined_InterleavesBuy(t *testing.T) {
	p := pool("1000", "10000", "0")
	levels := []PricedLevel{lvl("10.5", "5"), lvl("11", "100")}

	res := EstimateFillCombined(levels, d("40"), mid("10"), &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.FullFill)
	assert.True(t, res.FilledAmount.Equal(d("40")))
	// The 10.5 level is fully taken once the pool reaches 10.5, and the pool
	// stays cheaper than the 11 level for the rest.
	assert.True(t, res.ClobFilled.Equal(d("5")), "clob filled %s", res.ClobFilled)
	assertClose(t, d("35"), res.AmmFilled, "1e-17")
	assert.True(t, res.WorstPrice.LessThan(d("11")))
	assert.True(t, res.WorstPrice.Equal(MarginalBuyPrice(p, res.AmmFilled)))
	assert.True(t, res.AvgPrice.GreaterThan(d("10")))
	assert.True(t, res.AvgPrice.LessThan(d("11")))

	clobOnly := EstimateFill(levels, d("40"), mid("10"))
	assert.True(t, res.TotalCost.LessThan(clobOnly.TotalCost), "pool liquidity should improve the fill")
}

func TestEstimateFillCombined_InterleavesSell(t *testing.T) {
	p := pool("1000", "10000", "0")

	t.Run("pool_richer_than_bids", func(t *testing.T) {
		bids := []PricedLevel{lvl("9.5", "5")}
		res := EstimateFillCombined(bids, d("20"), decimal.NullDecimal{}, &p, SideSell)

		assertInvariants(t, res)
		assert.True(t, res.AmmFilled.Equal(d("20")))
		assert.True(t, res.ClobFilled.IsZero())
		// 1e7*20 / (1000*1020)
		assertClose(t, d("200000").DivRound(d("1020"), 24), res.TotalCost, "1e-20")
		assert.True(t, res.AvgPrice.LessThan(d("10")))
	})

	t.Run("bids_richer_than_pool", func(t *testing.T) {
		bids := []PricedLevel{lvl("11", "5")}
		res := EstimateFillCombined(bids, d("8"), decimal.NullDecimal{}, &p, SideSell)

		assertInvariants(t, res)
		assert.True(t, res.ClobFilled.Equal(d("5")))
		assert.True(t, res.AmmFilled.Equal(d("3")))
		assert.True(t, res.FullFill)
	})
}

func TestEstimateFillCombined_TieGoesToBook(t *testing.T) {
	p := pool("1000", "10000", "0")
	levels := []PricedLevel{lvl("10", "1")}

	res := EstimateFillCombined(levels, d("1"), decimal.NullDecimal{}, &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.ClobFilled.Equal(d("1")))
	assert.True(t, res.AmmFilled.IsZero())
}

func TestEstimateFillCombined_ZeroChunkFallsThroughToBook(t *testing.T) {
	p := pool("1000", "10000", "0")
	// The pool is cheaper, but only by far less than one chunk unit.
	levels := []PricedLevel{lvl("10.0000000000000000000001", "1")}

	res := EstimateFillCombined(levels, d("1"), decimal.NullDecimal{}, &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.ClobFilled.Equal(d("1")))
	assert.True(t, res.AmmFilled.IsZero())
}

func TestEstimateFillCombined_DeepBookTerminates(t *testing.T) {
	p := pool("5000", "2500", "0.003")
	levels := make([]PricedLevel, 0, 200)
	price := d("0.49")
	for i := 0; i < 200; i++ {
		levels = append(levels, NewPricedLevel(price, d("3"), ""))
		price = price.Add(d("0.001"))
	}

	res := EstimateFillCombined(levels, d("2000"), mid("0.5"), &p, SideBuy)

	assertInvariants(t, res)
	assert.True(t, res.ClobFilled.IsPositive(), "book levels below pool price must be taken")
	assert.True(t, res.AmmFilled.IsPositive())
	assert.True(t, res.SlippagePercent.Valid)
}

func TestParseTradeAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{in: "25", want: "25", wantOK: true},
		{in: " 0.000001 ", want: "0.000001", wantOK: true},
		{in: "1e3", want: "1000", wantOK: true},
		{in: "0"},
		{in: "-1"},
		{in: "NaN"},
		{in: "Inf"},
		{in: "-infinity"},
		{in: "abc"},
		{in: ""},
	}
	for _, tt := range tests {
		got, ok := ParseTradeAmount(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ParseTradeAmount(%q)", tt.in)
		if tt.wantOK {
			assert.True(t, got.Equal(d(tt.want)), "ParseTradeAmount(%q) = %s", tt.in, got)
		}
	}
}

func TestTradeAmountFromFloat(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 0, -3} {
		_, ok := TradeAmountFromFloat(f)
		assert.False(t, ok, "expected %v to be rejected", f)
	}

	got, ok := TradeAmountFromFloat(2.5)
	require.True(t, ok)
	assert.True(t, got.Equal(d("2.5")))
}
