package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilRaw         = errors.New("asset: nil raw value")
	ErrNegativeAmount = errors.New("asset: negative amount")
	ErrIssueMismatch  = errors.New("asset: cannot operate on different issues")
)

// Amount is an immutable quantity of a currency held with an issuer.
// Native amounts have an empty Issuer.
type Amount struct {
	Currency string
	Issuer   string
	Value    decimal.Decimal
}

// NewAmount creates an Amount for the given issue.
func NewAmount(issue Issue, value decimal.Decimal) Amount {
	issue = NewIssue(issue.Currency, issue.Issuer)
	return Amount{Currency: issue.Currency, Issuer: issue.Issuer, Value: value}
}

// Zero creates a zero Amount for the given issue.
func Zero(issue Issue) Amount {
	return NewAmount(issue, decimal.Zero)
}

// Issue returns the currency/issuer pair of the amount.
func (a Amount) Issue() Issue {
	return NewIssue(a.Currency, a.Issuer)
}

// IsNative reports whether the amount is in the native asset.
func (a Amount) IsNative() bool {
	return IsNative(DecodeCurrency(a.Currency))
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool {
	return a.Value.IsPositive()
}

// SameIssue reports whether two amounts can be compared or combined.
func (a Amount) SameIssue(b Amount) bool {
	return Matches(b, DecodeCurrency(a.Currency), a.Issuer)
}

// Add adds two amounts of the same issue.
func (a Amount) Add(b Amount) (Amount, error) {
	if !a.SameIssue(b) {
		return Amount{}, fmt.Errorf("%w: %s vs %s", ErrIssueMismatch, a.Issue(), b.Issue())
	}
	return Amount{Currency: a.Currency, Issuer: a.Issuer, Value: a.Value.Add(b.Value)}, nil
}

// String returns a human-readable representation (e.g., "1.5 USD").
func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Value.String(), DecodeCurrency(a.Currency))
}

// StringFixed returns a string with fixed decimal places.
func (a Amount) StringFixed(places int32) string {
	return fmt.Sprintf("%s %s", a.Value.StringFixed(places), DecodeCurrency(a.Currency))
}

// FromRaw converts an integer quantity in the smallest unit to a decimal.
func FromRaw(raw *big.Int, decimals int32) (decimal.Decimal, error) {
	if raw == nil {
		return decimal.Zero, ErrNilRaw
	}
	if raw.Sign() < 0 {
		return decimal.Zero, ErrNegativeAmount
	}
	return decimal.NewFromBigInt(raw, -decimals), nil
}
