package domain

import "github.com/shopspring/decimal"

// Depth summarizes executable volume on each side of the book.
type Depth struct {
	BidVolume decimal.Decimal
	BidLevels int
	AskVolume decimal.Decimal
	AskLevels int
}

// AggregateDepth sums base volume per side, counting only levels with positive volume.
func AggregateDepth(bids, asks []PricedLevel) Depth {
	var d Depth
	d.BidVolume, d.BidLevels = sumVolume(bids)
	d.AskVolume, d.AskLevels = sumVolume(asks)
	return d
}

// TotalVolume returns bid plus ask volume.
func (d Depth) TotalVolume() decimal.Decimal {
	return d.BidVolume.Add(d.AskVolume)
}

func sumVolume(levels []PricedLevel) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range levels {
		if !l.Amount.IsPositive() {
			continue
		}
		total = total.Add(l.Amount)
		count++
	}
	return total, count
}

// MidPrice returns the midpoint of the best bid and best ask.
// It is absent when either side has no valid level.
func MidPrice(bids, asks []PricedLevel) decimal.NullDecimal {
	bestBid, okBid := bestPrice(bids, SideSell)
	bestAsk, okAsk := bestPrice(asks, SideBuy)
	if !okBid || !okAsk {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(bestBid.Add(bestAsk).Div(decimal.NewFromInt(2)))
}

// bestPrice scans rather than trusting order so callers may pass either orientation.
func bestPrice(levels []PricedLevel, side Side) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, l := range levels {
		if !l.Valid() {
			continue
		}
		if !found || side.Better(l.Price, best) {
			best = l.Price
			found = true
		}
	}
	return best, found
}
