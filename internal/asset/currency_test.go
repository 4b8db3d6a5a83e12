package asset_test

import (
	"testing"

	"github.com/fd1az/liquidity-engine/internal/asset"
	"github.com/shopspring/decimal"
)

const (
	issuerA = "rvYAfWj5gh67oV6fW32ZzP3Aw4Eubs59B"
	issuerB = "rhub8VRN55s94qWKDv6jmDy1pUykJzF3wq"

	usdHex  = "0000000000000000000000005553440000000000"
	soloHex = "534F4C4F00000000000000000000000000000000"
)

func TestDecodeCurrency(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{name: "short_code_unchanged", code: "USD", want: "USD"},
		{name: "native", code: "XRP", want: "XRP"},
		{name: "standard_hex", code: usdHex, want: "USD"},
		{name: "standard_hex_lowercase", code: "0000000000000000000000005553440000000000", want: "USD"},
		{name: "nonstandard_ascii", code: soloHex, want: "SOLO"},
		{name: "binary_hex_kept", code: "01FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF", want: "01FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF"},
		{name: "not_hex_kept", code: "ZZ00000000000000000000000000000000000000", want: "ZZ00000000000000000000000000000000000000"},
		{name: "empty", code: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asset.DecodeCurrency(tt.code); got != tt.want {
				t.Errorf("DecodeCurrency(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	one := decimal.NewFromInt(1)

	tests := []struct {
		name     string
		amount   asset.Amount
		currency string
		issuer   string
		want     bool
	}{
		{
			name:     "short_code_same_issuer",
			amount:   asset.Amount{Currency: "USD", Issuer: issuerA, Value: one},
			currency: "USD",
			issuer:   issuerA,
			want:     true,
		},
		{
			name:     "short_code_other_issuer",
			amount:   asset.Amount{Currency: "USD", Issuer: issuerB, Value: one},
			currency: "USD",
			issuer:   issuerA,
			want:     false,
		},
		{
			name:     "encoded_amount_decoded_target",
			amount:   asset.Amount{Currency: usdHex, Issuer: issuerA, Value: one},
			currency: "USD",
			issuer:   issuerA,
			want:     true,
		},
		{
			name:     "encoded_literal_target",
			amount:   asset.Amount{Currency: soloHex, Issuer: issuerA, Value: one},
			currency: soloHex,
			issuer:   issuerA,
			want:     true,
		},
		{
			name:     "native_ignores_issuer",
			amount:   asset.Amount{Currency: "XRP", Value: one},
			currency: "XRP",
			issuer:   issuerA,
			want:     true,
		},
		{
			name:     "native_vs_issued",
			amount:   asset.Amount{Currency: "XRP", Value: one},
			currency: "USD",
			issuer:   issuerA,
			want:     false,
		},
		{
			name:     "different_code",
			amount:   asset.Amount{Currency: "EUR", Issuer: issuerA, Value: one},
			currency: "USD",
			issuer:   issuerA,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asset.Matches(tt.amount, tt.currency, tt.issuer); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIssue(t *testing.T) {
	xrp := asset.NewIssue("XRP", issuerA)
	if xrp.Issuer != "" {
		t.Errorf("native issue kept issuer %q", xrp.Issuer)
	}
	if xrp.String() != "XRP" {
		t.Errorf("expected XRP, got %s", xrp.String())
	}

	usd := asset.NewIssue(usdHex, issuerA)
	if usd.Code() != "USD" {
		t.Errorf("expected decoded code USD, got %s", usd.Code())
	}
	if !usd.Equal(asset.NewIssue("USD", issuerA)) {
		t.Error("expected encoded and short issues to be equal")
	}
	if usd.Equal(asset.NewIssue("USD", issuerB)) {
		t.Error("expected issues with different issuers to differ")
	}
}
