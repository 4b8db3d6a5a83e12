package xrpl

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/liquidity-engine/business/liquidity/domain"
	"github.com/fd1az/liquidity-engine/internal/asset"
)

// dropsPerXRP converts native amounts, which the ledger reports in drops.
var dropsPerXRP = decimal.NewFromInt(1_000_000)

// Amount is a ledger amount: a drops string for XRP, an object for issued
// currencies.
type Amount struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
	Value    string `json:"value"`
}

// UnmarshalJSON accepts both the drops string and the object form.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var drops string
		if err := json.Unmarshal(data, &drops); err != nil {
			return err
		}
		*a = Amount{Currency: asset.NativeCurrency, Value: drops}
		return nil
	}

	type plain Amount
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = Amount(p)
	return nil
}

// IsNative reports whether a is an XRP drops amount.
func (a Amount) IsNative() bool {
	return a.Currency == asset.NativeCurrency && a.Issuer == ""
}

// ToAsset converts a to a domain amount, scaling drops to XRP.
func (a Amount) ToAsset() (asset.Amount, error) {
	v, err := decimal.NewFromString(a.Value)
	if err != nil {
		return asset.Amount{}, fmt.Errorf("amount %q: %w", a.Value, err)
	}
	if a.IsNative() {
		return asset.NewAmount(asset.XRP(), v.Div(dropsPerXRP)), nil
	}
	return asset.Amount{Currency: a.Currency, Issuer: a.Issuer, Value: v}, nil
}

// IssueJSON is the request form of an asset.
type IssueJSON struct {
	Currency string `json:"currency"`
	Issuer   string `json:"issuer,omitempty"`
}

// NewIssueJSON encodes i for a request. Codes that are neither three
// characters nor 40 hex digits are sent in the 160-bit hex form.
func NewIssueJSON(i asset.Issue) IssueJSON {
	if i.IsNative() {
		return IssueJSON{Currency: asset.NativeCurrency}
	}
	return IssueJSON{Currency: encodeCurrency(i.Currency), Issuer: i.Issuer}
}

func encodeCurrency(code string) string {
	if len(code) == 3 || len(code) == 40 {
		return code
	}
	buf := make([]byte, 20)
	copy(buf, code)
	return strings.ToUpper(hex.EncodeToString(buf))
}

// BookOffersRequest is the book_offers command.
type BookOffersRequest struct {
	TakerGets   IssueJSON `json:"taker_gets"`
	TakerPays   IssueJSON `json:"taker_pays"`
	Limit       int       `json:"limit,omitempty"`
	LedgerIndex string    `json:"ledger_index,omitempty"`
}

// BookOffersResult is the book_offers result.
type BookOffersResult struct {
	LedgerIndex uint32  `json:"ledger_index,omitempty"`
	Offers      []Offer `json:"offers"`
}

// Offer is one order book entry.
type Offer struct {
	Account         string  `json:"Account"`
	TakerGets       Amount  `json:"TakerGets"`
	TakerPays       Amount  `json:"TakerPays"`
	TakerGetsFunded *Amount `json:"taker_gets_funded,omitempty"`
	TakerPaysFunded *Amount `json:"taker_pays_funded,omitempty"`
	Quality         string  `json:"quality,omitempty"`
	Sequence        uint32  `json:"Sequence,omitempty"`
}

// ToBookEntry converts o to the domain form.
func (o Offer) ToBookEntry() (domain.BookEntry, error) {
	gets, err := o.TakerGets.ToAsset()
	if err != nil {
		return domain.BookEntry{}, fmt.Errorf("TakerGets: %w", err)
	}
	pays, err := o.TakerPays.ToAsset()
	if err != nil {
		return domain.BookEntry{}, fmt.Errorf("TakerPays: %w", err)
	}

	entry := domain.BookEntry{Account: o.Account, TakerGets: gets, TakerPays: pays}

	if o.TakerGetsFunded != nil {
		funded, err := o.TakerGetsFunded.ToAsset()
		if err != nil {
			return domain.BookEntry{}, fmt.Errorf("taker_gets_funded: %w", err)
		}
		entry.TakerGetsFunded = &funded
	}
	if o.TakerPaysFunded != nil {
		funded, err := o.TakerPaysFunded.ToAsset()
		if err != nil {
			return domain.BookEntry{}, fmt.Errorf("taker_pays_funded: %w", err)
		}
		entry.TakerPaysFunded = &funded
	}
	return entry, nil
}

// AMMInfoRequest is the amm_info command.
type AMMInfoRequest struct {
	Asset       IssueJSON `json:"asset"`
	Asset2      IssueJSON `json:"asset2"`
	LedgerIndex string    `json:"ledger_index,omitempty"`
}

// AMMInfoResult is the amm_info result.
type AMMInfoResult struct {
	AMM AMMDescription `json:"amm"`
}

// AMMDescription describes one pool.
type AMMDescription struct {
	Account    string `json:"account"`
	Amount     Amount `json:"amount"`
	Amount2    Amount `json:"amount2"`
	TradingFee uint32 `json:"trading_fee"` // units of 1/100,000
}

// tradingFeeUnit is the denominator of AMMDescription.TradingFee.
var tradingFeeUnit = decimal.NewFromInt(100_000)

// ToPool converts d to a pool oriented so base is on BaseReserves.
func (d AMMDescription) ToPool(base asset.Issue) (*domain.AmmPool, error) {
	first, err := d.Amount.ToAsset()
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	second, err := d.Amount2.ToAsset()
	if err != nil {
		return nil, fmt.Errorf("amount2: %w", err)
	}

	baseAmt, quoteAmt := first, second
	if !asset.Matches(first, base.Currency, base.Issuer) {
		if !asset.Matches(second, base.Currency, base.Issuer) {
			return nil, fmt.Errorf("pool %s holds neither side as %s", d.Account, base)
		}
		baseAmt, quoteAmt = second, first
	}

	return &domain.AmmPool{
		BaseReserves:  baseAmt.Value,
		QuoteReserves: quoteAmt.Value,
		FeeRate:       decimal.NewFromInt(int64(d.TradingFee)).Div(tradingFeeUnit),
	}, nil
}

// wsRequest is a command sent over the WebSocket. Params are flattened into
// the top-level object next to id and command.
type wsRequest struct {
	ID      int64
	Command string
	Params  any
}

func (r wsRequest) MarshalJSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if r.Params != nil {
		raw, err := json.Marshal(r.Params)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("params must encode as an object: %w", err)
		}
	}

	id, _ := json.Marshal(r.ID)
	cmd, _ := json.Marshal(r.Command)
	fields["id"] = id
	fields["command"] = cmd
	return json.Marshal(fields)
}

// wsResponse is any message received over the WebSocket.
type wsResponse struct {
	ID           *int64          `json:"id,omitempty"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// rpcRequest is a JSON-RPC call over HTTP.
type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// rpcEnvelope wraps every JSON-RPC response.
type rpcEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// rpcStatus is embedded in JSON-RPC results.
type rpcStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Ledger error codes handled explicitly.
const (
	errActNotFound = "actNotFound"
)

// RPCError is an error status returned by the ledger.
type RPCError struct {
	Code    string
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return "xrpl error " + e.Code
	}
	return fmt.Sprintf("xrpl error %s: %s", e.Code, e.Message)
}
