package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pool(base, quote, fee string) AmmPool {
	return AmmPool{BaseReserves: d(base), QuoteReserves: d(quote), FeeRate: d(fee)}
}

func assertClose(t *testing.T, want, got decimal.Decimal, tolerance string, context ...string) {
	t.Helper()
	diff := want.Sub(got).Abs()
	assert.True(t, diff.LessThanOrEqual(d(tolerance)),
		"want %s got %s (diff %s) %s", want, got, diff, strings.Join(context, " "))
}

func TestAmmPool_Validate(t *testing.T) {
	tests := []struct {
		name    string
		pool    AmmPool
		wantErr bool
	}{
		{name: "valid", pool: pool("1000", "10000", "0.003")},
		{name: "zero_fee", pool: pool("1", "1", "0")},
		{name: "zero_base", pool: pool("0", "10", "0"), wantErr: true},
		{name: "negative_quote", pool: pool("10", "-1", "0"), wantErr: true},
		{name: "fee_one", pool: pool("10", "10", "1"), wantErr: true},
		{name: "negative_fee", pool: pool("10", "10", "-0.01"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pool.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidPool), "expected ErrInvalidPool, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMarginalPrices_AtSpot(t *testing.T) {
	p := pool("1000", "10000", "0.01")

	assert.True(t, p.SpotPrice().Equal(d("10")))

	// k / (x^2 (1-f)) = 10 / 0.99
	assertClose(t, d("10").DivRound(d("0.99"), 24), MarginalBuyPrice(p, decimal.Zero), "1e-20")
	// k (1-f) / x^2 = 9.9
	assert.True(t, MarginalSellPrice(p, decimal.Zero).Equal(d("9.9")))
}

func TestMarginalPrices_Monotonic(t *testing.T) {
	p := pool("1000", "10000", "0.003")

	prevBuy := MarginalBuyPrice(p, decimal.Zero)
	prevSell := MarginalSellPrice(p, decimal.Zero)
	for _, off := range []string{"1", "10", "100", "500", "900"} {
		buy := MarginalBuyPrice(p, d(off))
		sell := MarginalSellPrice(p, d(off))
		assert.True(t, buy.GreaterThan(prevBuy), "buy price must rise with offset %s", off)
		assert.True(t, sell.LessThan(prevSell), "sell price must fall with offset %s", off)
		prevBuy, prevSell = buy, sell
	}
}

func TestMaxBeforePrice_InvertsMarginal(t *testing.T) {
	pools := []AmmPool{
		pool("1000", "10000", "0"),
		pool("1000", "10000", "0.01"),
		pool("2500000", "1250000", "0.003"),
	}
	for _, p := range pools {
		for _, off := range []string{"0.5", "50", "400"} {
			offset := d(off)

			buyAt := MarginalBuyPrice(p, offset)
			assertClose(t, offset, MaxBuyBeforePrice(p, buyAt), "1e-12", fmt.Sprintf("buy inversion pool %+v", p))

			sellAt := MarginalSellPrice(p, offset)
			assertClose(t, offset, MaxSellBeforePrice(p, sellAt), "1e-12", fmt.Sprintf("sell inversion pool %+v", p))
		}
	}
}

func TestMaxBeforePrice_ThresholdBeyondSpot(t *testing.T) {
	p := pool("1000", "10000", "0.01")

	assert.True(t, MaxBuyBeforePrice(p, d("9")).IsZero(), "no buy below spot")
	assert.True(t, MaxSellBeforePrice(p, d("11")).IsZero(), "no sell above spot")
	assert.True(t, MaxBuyBeforePrice(p, decimal.Zero).IsZero())
	assert.True(t, MaxSellBeforePrice(p, d("-1")).IsZero())
}

func TestBuyCost(t *testing.T) {
	p := pool("100", "1000", "0")

	// k/(x-a) - k/x = 100000/1 - 100000/100
	assert.True(t, BuyCost(p, d("99"), decimal.Zero).Equal(d("99000")))
	assert.True(t, BuyCost(p, decimal.Zero, decimal.Zero).IsZero())

	fee := pool("1000", "10000", "0.01")
	whole := BuyCost(fee, d("30"), decimal.Zero)
	split := BuyCost(fee, d("10"), decimal.Zero).Add(BuyCost(fee, d("20"), d("10")))
	assertClose(t, whole, split, "1e-18", "buy cost must be additive over offsets")

	assert.True(t, whole.GreaterThan(d("30").Mul(fee.SpotPrice())), "cost exceeds spot value")
}

func TestSellProceeds(t *testing.T) {
	p := pool("100", "1000", "0")

	// y - k/(x+a) = 1000 - 100000/200
	assert.True(t, SellProceeds(p, d("100"), decimal.Zero).Equal(d("500")))

	fee := pool("1000", "10000", "0.003")
	whole := SellProceeds(fee, d("75"), decimal.Zero)
	split := SellProceeds(fee, d("25"), decimal.Zero).Add(SellProceeds(fee, d("50"), d("25")))
	assertClose(t, whole, split, "1e-18", "sell proceeds must be additive over offsets")

	assert.True(t, whole.LessThan(d("75").Mul(fee.SpotPrice())), "proceeds below spot value")
}

func TestCurve_DoesNotMutateSnapshot(t *testing.T) {
	p := pool("1000", "10000", "0.01")
	before := p

	_ = BuyCost(p, d("10"), d("5"))
	_ = SellProceeds(p, d("10"), d("5"))
	_ = MaxBuyBeforePrice(p, d("12"))

	require.True(t, p.BaseReserves.Equal(before.BaseReserves))
	require.True(t, p.QuoteReserves.Equal(before.QuoteReserves))
	require.True(t, p.FeeRate.Equal(before.FeeRate))
}

func TestSqrt(t *testing.T) {
	assert.True(t, sqrt(d("16")).Equal(d("4")))
	assert.True(t, sqrt(d("0.0001")).Equal(d("0.01")))
	assert.True(t, sqrt(d("2")).Equal(d("1.414213562373095048801688")))
	assert.True(t, sqrt(decimal.Zero).IsZero())
	assert.True(t, sqrt(d("-4")).IsZero())
}
