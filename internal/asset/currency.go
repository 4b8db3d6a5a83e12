// Package asset models ledger currencies, issues and amounts.
package asset

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// NativeCurrency is the ledger's native asset. It never carries an issuer.
const NativeCurrency = "XRP"

// encodedCurrencyLen is the hex length of a 160-bit currency code.
const encodedCurrencyLen = 40

// Issue identifies one side of a market: a currency and, unless native, its issuer.
type Issue struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// XRP returns the native issue.
func XRP() Issue {
	return Issue{Currency: NativeCurrency}
}

// NewIssue creates an Issue. The issuer is dropped for the native currency.
func NewIssue(currency, issuer string) Issue {
	if IsNative(currency) {
		return XRP()
	}
	return Issue{Currency: currency, Issuer: issuer}
}

// IsNative reports whether the issue is the native asset.
func (i Issue) IsNative() bool {
	return IsNative(i.Currency)
}

// Code returns the human-readable currency code.
func (i Issue) Code() string {
	return DecodeCurrency(i.Currency)
}

// String returns "CODE" for the native asset and "CODE.issuer" otherwise.
func (i Issue) String() string {
	if i.IsNative() {
		return NativeCurrency
	}
	return i.Code() + "." + i.Issuer
}

// Equal compares two issues by decoded code and issuer.
func (i Issue) Equal(o Issue) bool {
	return Matches(Amount{Currency: o.Currency, Issuer: o.Issuer}, i.Currency, i.Issuer)
}

// IsNative reports whether a currency code denotes the native asset.
func IsNative(currency string) bool {
	return currency == NativeCurrency
}

// DecodeCurrency returns the readable form of a currency code.
//
// Short codes are returned unchanged. A 40-hex code is decoded as a standard
// code (zero first byte, ASCII at bytes 12..14) or as a non-standard ASCII
// name with trailing NULs trimmed. Anything else is returned as given.
func DecodeCurrency(code string) string {
	if len(code) != encodedCurrencyLen {
		return code
	}
	raw, err := hex.DecodeString(code)
	if err != nil {
		return code
	}

	if raw[0] == 0 {
		std := bytes.TrimRight(raw[12:15], "\x00")
		if len(std) > 0 && isPrintableASCII(std) {
			return string(std)
		}
		return code
	}

	name := bytes.TrimRight(raw, "\x00")
	if isPrintableASCII(name) {
		return string(name)
	}
	return code
}

// Matches reports whether amount is denominated in currency/issuer.
//
// The amount's currency is decoded before comparison; a literal match against
// an already-encoded target is accepted too. The native asset matches on code
// alone. Issued currencies also require the exact issuer.
func Matches(amount Amount, currency, issuer string) bool {
	decoded := DecodeCurrency(amount.Currency)
	if decoded != currency && !strings.EqualFold(amount.Currency, currency) && decoded != DecodeCurrency(currency) {
		return false
	}
	if IsNative(decoded) {
		return true
	}
	return amount.Issuer == issuer
}

func isPrintableASCII(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
