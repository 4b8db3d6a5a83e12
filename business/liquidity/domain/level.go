package domain

import (
	"slices"
	"sort"

	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/shopspring/decimal"
)

// divPrecision is the number of decimal places kept by engine divisions.
const divPrecision int32 = 24

// BookEntry is a raw resting offer as reported by the ledger.
//
// TakerGets is what the offer owner gives (what a taker receives) and
// TakerPays is what the owner wants in return. The funded fields, when set,
// hold the part of the offer its owner can currently honor.
type BookEntry struct {
	Account         string
	TakerGets       asset.Amount
	TakerPays       asset.Amount
	TakerGetsFunded *asset.Amount
	TakerPaysFunded *asset.Amount
}

func (e BookEntry) executableGets() asset.Amount {
	if e.TakerGetsFunded != nil {
		return *e.TakerGetsFunded
	}
	return e.TakerGets
}

func (e BookEntry) executablePays() asset.Amount {
	if e.TakerPaysFunded != nil {
		return *e.TakerPaysFunded
	}
	return e.TakerPays
}

// PricedLevel is a single executable level, priced in quote per base.
type PricedLevel struct {
	Price   decimal.Decimal
	Amount  decimal.Decimal
	Total   decimal.Decimal
	Account string
}

// NewPricedLevel creates a level with Total = Price × Amount.
func NewPricedLevel(price, amount decimal.Decimal, account string) PricedLevel {
	return PricedLevel{
		Price:   price,
		Amount:  amount,
		Total:   price.Mul(amount),
		Account: account,
	}
}

// Valid reports whether both price and amount are positive.
func (l PricedLevel) Valid() bool {
	return l.Price.IsPositive() && l.Amount.IsPositive()
}

// BuildAsks returns the entries offering base, sorted by price descending.
// Price is requested/offered and the amount is the offered base.
func BuildAsks(entries []BookEntry, base asset.Issue) []PricedLevel {
	levels := make([]PricedLevel, 0, len(entries))
	for _, e := range entries {
		gets, pays := e.executableGets(), e.executablePays()
		if !asset.Matches(gets, base.Currency, base.Issuer) {
			continue
		}
		if !gets.Value.IsPositive() {
			continue
		}

		level := NewPricedLevel(pays.Value.DivRound(gets.Value, divPrecision), gets.Value, e.Account)
		if level.Valid() {
			levels = append(levels, level)
		}
	}
	sortDescending(levels)
	return levels
}

// BuildBids returns the entries requesting base, sorted by price descending.
// Price is offered/requested and the amount is the requested base.
func BuildBids(entries []BookEntry, base asset.Issue) []PricedLevel {
	levels := make([]PricedLevel, 0, len(entries))
	for _, e := range entries {
		gets, pays := e.executableGets(), e.executablePays()
		if !asset.Matches(pays, base.Currency, base.Issuer) {
			continue
		}
		if !pays.Value.IsPositive() {
			continue
		}

		level := NewPricedLevel(gets.Value.DivRound(pays.Value, divPrecision), pays.Value, e.Account)
		if level.Valid() {
			levels = append(levels, level)
		}
	}
	sortDescending(levels)
	return levels
}

// AsksBestFirst returns a reversed copy of descending asks, cheapest first.
func AsksBestFirst(asks []PricedLevel) []PricedLevel {
	out := slices.Clone(asks)
	slices.Reverse(out)
	return out
}

// LevelsFor returns the levels a taker on side walks, best price first.
// Buyers lift asks and sellers hit bids. Both inputs are descending.
func LevelsFor(side Side, asks, bids []PricedLevel) []PricedLevel {
	if side == SideBuy {
		return AsksBestFirst(asks)
	}
	return slices.Clone(bids)
}

func sortDescending(levels []PricedLevel) {
	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
}
