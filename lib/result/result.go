// Package result holds the report of a custody script run.
package result

import (
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

type Report struct {
	Custody    string     `json:"custody"`
	Settlement string     `json:"decrease_settlement"`
	Steps      []Step     `json:"steps"`
	Events     []Event    `json:"events"`
	Balances   []Balance  `json:"balances"`
	Positions  []Position `json:"positions"`
	Mismatches int        `json:"mismatches"`
}

type Step struct {
	Index    int               `json:"index"`
	Type     string            `json:"type"`
	Caller   string            `json:"caller,omitempty"`
	Outcome  string            `json:"outcome"`
	Expected string            `json:"expected"`
	Error    string            `json:"error,omitempty"`
	Position uint64            `json:"position,omitempty"`
	Amounts  map[string]string `json:"amounts,omitempty"`
}

// Matched reports whether the step ended as the script expected.
func (s Step) Matched() bool { return s.Outcome == s.Expected }

type Event struct {
	Kind      string `json:"kind"`
	Unit      string `json:"unit"`
	Position  uint64 `json:"position,omitempty"`
	Caller    string `json:"caller"`
	Liquidity string `json:"liquidity,omitempty"`
	Amount0   string `json:"amount0,omitempty"`
	Amount1   string `json:"amount1,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	AmountOut string `json:"amount_out,omitempty"`
	Time      int64  `json:"time"`
}

type Balance struct {
	Account string `json:"account"`
	Token   string `json:"token"`
	Amount  string `json:"amount"`
	Raw     string `json:"raw"`
}

type Position struct {
	ID        uint64 `json:"id"`
	Label     string `json:"label,omitempty"`
	Owner     string `json:"owner"`
	Liquidity string `json:"liquidity"`
	AssetLow  string `json:"asset_low"`
	AssetHigh string `json:"asset_high"`
	CreatedAt int64  `json:"created_at"`
}

// FormatAmount renders a base-unit amount in whole tokens.
func FormatAmount(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}

// Raw renders a base-unit amount, empty for nil.
func Raw(v *uint256.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
