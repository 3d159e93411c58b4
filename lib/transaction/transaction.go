// Package transaction is the JSON format of a custody script: a list of steps
// that set up tokens, accounts and pools and then drive the custodian.
package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ui "github.com/holiman/uint256"
)

type Type string

const (
	Token           Type = "Token"
	Fund            Type = "Fund"
	Pool            Type = "Pool"
	Mint            Type = "Mint"
	Collect         Type = "Collect"
	Increase        Type = "Increase"
	Decrease        Type = "Decrease"
	SwapExactInput  Type = "SwapExactInput"
	SwapExactOutput Type = "SwapExactOutput"
	Reconcile       Type = "Reconcile"
	Advance         Type = "Advance"
)

// All is the liquidity value that decreases a position's whole recorded
// liquidity.
const All = "all"

var ErrInvalidStep = errors.New("transaction: invalid step")

// TransactionInput is one step as written in a script. Amounts are base-unit
// integers in decimal. Swap paths are always listed in trade order, input
// token first.
type TransactionInput struct {
	Type         string   `json:"type"`
	Caller       string   `json:"caller,omitempty"`
	Symbol       string   `json:"symbol,omitempty"`
	Decimals     uint8    `json:"decimals,omitempty"`
	Account      string   `json:"account,omitempty"`
	TokenA       string   `json:"tokenA,omitempty"`
	TokenB       string   `json:"tokenB,omitempty"`
	Fee          uint32   `json:"fee,omitempty"`
	SqrtPriceX96 string   `json:"sqrtPriceX96,omitempty"`
	Amount       string   `json:"amount,omitempty"`
	Amount0      string   `json:"amount0,omitempty"`
	Amount1      string   `json:"amount1,omitempty"`
	Limit        string   `json:"limit,omitempty"`
	TickLower    *int     `json:"tickLower,omitempty"`
	TickUpper    *int     `json:"tickUpper,omitempty"`
	Path         []string `json:"path,omitempty"`
	Fees         []uint32 `json:"fees,omitempty"`
	Position     string   `json:"position,omitempty"`
	Label        string   `json:"label,omitempty"`
	Seconds      int64    `json:"seconds,omitempty"`
	Expect       string   `json:"expect,omitempty"`
}

// Transaction is a parsed step. Which fields matter depends on Type:
//
//	Token            Symbol, Decimals
//	Fund             Account, Symbol, Amount
//	Pool             TokenA, TokenB, Fee, SqrtPriceX96 (defaults to price 1)
//	Mint             Caller, TokenA, TokenB, Fee, Amount0, Amount1, ticks, Label
//	Collect          Caller, Position
//	Increase         Caller, Position, Amount0, Amount1
//	Decrease         Caller, Position, Amount (nil with AllLiquidity)
//	SwapExactInput   Caller, Path, Fees, Amount, Limit (minimum out)
//	SwapExactOutput  Caller, Path, Fees, Amount, Limit (maximum in)
//	Reconcile        Position
//	Advance          Seconds
//
// Mint without ticks uses the full usable range of the fee tier. Expect is the
// outcome class the step should end with; empty means success.
type Transaction struct {
	Type         Type
	Caller       string
	Symbol       string
	Decimals     uint8
	Account      string
	TokenA       string
	TokenB       string
	Fee          uint32
	SqrtPriceX96 *ui.Int
	Amount       *ui.Int
	AllLiquidity bool
	Amount0      *ui.Int
	Amount1      *ui.Int
	Limit        *ui.Int
	TickLower    *int
	TickUpper    *int
	Path         []string
	Fees         []uint32
	Position     string
	Label        string
	Seconds      int64
	Expect       string
}

// Parse decodes a script.
func Parse(data []byte) ([]Transaction, error) {
	var inputs []TransactionInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("transaction: decode script: %w", err)
	}
	out := make([]Transaction, 0, len(inputs))
	for i, in := range inputs {
		t, err := in.Transaction()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Transaction converts and checks one input step.
func (in TransactionInput) Transaction() (Transaction, error) {
	t := Transaction{
		Type:      Type(in.Type),
		Caller:    in.Caller,
		Symbol:    in.Symbol,
		Decimals:  in.Decimals,
		Account:   in.Account,
		TokenA:    in.TokenA,
		TokenB:    in.TokenB,
		Fee:       in.Fee,
		TickLower: in.TickLower,
		TickUpper: in.TickUpper,
		Path:      in.Path,
		Fees:      in.Fees,
		Position:  in.Position,
		Label:     in.Label,
		Seconds:   in.Seconds,
		Expect:    in.Expect,
	}
	var err error
	if t.SqrtPriceX96, err = optional(in.SqrtPriceX96); err != nil {
		return Transaction{}, err
	}
	if strings.EqualFold(in.Amount, All) {
		t.AllLiquidity = true
	} else if t.Amount, err = optional(in.Amount); err != nil {
		return Transaction{}, err
	}
	if t.Amount0, err = optional(in.Amount0); err != nil {
		return Transaction{}, err
	}
	if t.Amount1, err = optional(in.Amount1); err != nil {
		return Transaction{}, err
	}
	if t.Limit, err = optional(in.Limit); err != nil {
		return Transaction{}, err
	}
	return t, t.Validate()
}

// Validate checks that the fields Type needs are present.
func (t Transaction) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: %s needs %s", ErrInvalidStep, t.Type, field)
	}
	switch t.Type {
	case Token:
		if t.Symbol == "" {
			return missing("symbol")
		}
	case Fund:
		if t.Account == "" || t.Symbol == "" || t.Amount == nil {
			return missing("account, symbol and amount")
		}
	case Pool:
		if t.TokenA == "" || t.TokenB == "" || t.Fee == 0 {
			return missing("tokenA, tokenB and fee")
		}
	case Mint:
		if t.Caller == "" || t.TokenA == "" || t.TokenB == "" || t.Fee == 0 || t.Amount0 == nil || t.Amount1 == nil {
			return missing("caller, tokenA, tokenB, fee, amount0 and amount1")
		}
		if (t.TickLower == nil) != (t.TickUpper == nil) {
			return missing("both ticks or neither")
		}
	case Collect:
		if t.Caller == "" || t.Position == "" {
			return missing("caller and position")
		}
	case Increase:
		if t.Caller == "" || t.Position == "" || t.Amount0 == nil || t.Amount1 == nil {
			return missing("caller, position, amount0 and amount1")
		}
	case Decrease:
		if t.Caller == "" || t.Position == "" || (t.Amount == nil && !t.AllLiquidity) {
			return missing("caller, position and amount")
		}
	case SwapExactInput, SwapExactOutput:
		if t.Caller == "" || t.Amount == nil || len(t.Path) < 2 || len(t.Fees) != len(t.Path)-1 {
			return missing("caller, amount, a path and one fee per hop")
		}
	case Reconcile:
		if t.Position == "" {
			return missing("position")
		}
	case Advance:
		if t.Seconds <= 0 {
			return missing("positive seconds")
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidStep, t.Type)
	}
	return nil
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	in := TransactionInput{
		Type:         string(t.Type),
		Caller:       t.Caller,
		Symbol:       t.Symbol,
		Decimals:     t.Decimals,
		Account:      t.Account,
		TokenA:       t.TokenA,
		TokenB:       t.TokenB,
		Fee:          t.Fee,
		SqrtPriceX96: str(t.SqrtPriceX96),
		Amount:       str(t.Amount),
		Amount0:      str(t.Amount0),
		Amount1:      str(t.Amount1),
		Limit:        str(t.Limit),
		TickLower:    t.TickLower,
		TickUpper:    t.TickUpper,
		Path:         t.Path,
		Fees:         t.Fees,
		Position:     t.Position,
		Label:        t.Label,
		Seconds:      t.Seconds,
		Expect:       t.Expect,
	}
	if t.AllLiquidity {
		in.Amount = All
	}
	return json.Marshal(&in)
}

func optional(s string) (*ui.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, err := ui.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %w", ErrInvalidStep, s, err)
	}
	return v, nil
}

func str(v *ui.Int) string {
	if v == nil {
		return ""
	}
	return v.Dec()
}
