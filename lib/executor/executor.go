// Package executor replays a custody script against a bootstrapped
// environment and reports what happened.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ftchann/uniswap-custody/lib/app"
	"github.com/ftchann/uniswap-custody/lib/chain"
	cons "github.com/ftchann/uniswap-custody/lib/constants"
	"github.com/ftchann/uniswap-custody/lib/custody"
	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/result"
	"github.com/ftchann/uniswap-custody/lib/tickmath"
	ent "github.com/ftchann/uniswap-custody/lib/transaction"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrSetup             = errors.New("executor: setup step failed")
	ErrUnexpectedOutcome = errors.New("executor: steps ended with unexpected outcomes")
	ErrUnknownName       = errors.New("executor: unknown name")
)

type Execution struct {
	env *app.Env

	tokens   map[string]common.Address
	symbols  []string
	accounts map[string]common.Address
	names    []string
	labels   map[string]periphery.PositionID
}

func CreateExecution(env *app.Env) *Execution {
	return &Execution{
		env:      env,
		tokens:   make(map[string]common.Address),
		accounts: make(map[string]common.Address),
		labels:   make(map[string]periphery.PositionID),
	}
}

// Run executes the steps in order. Setup steps (Token, Fund, Pool, Advance)
// must succeed; custody steps are compared against their expected outcome and
// a mismatch is reported, not fatal. The report is returned in every case.
func (e *Execution) Run(ctx context.Context, steps []ent.Transaction) (*result.Report, error) {
	report := &result.Report{
		Custody:    e.env.Account.Hex(),
		Settlement: e.env.Custodian.Policy().DecreaseSettlement.String(),
	}
	for i, step := range steps {
		rec, err := e.apply(ctx, step)
		rec.Index = i
		rec.Type = string(step.Type)
		rec.Caller = step.Caller
		rec.Expected = step.Expect
		if rec.Expected == "" {
			rec.Expected = custody.OutcomeOK
		}
		rec.Outcome = custody.Classify(err)
		if err != nil {
			rec.Error = err.Error()
		}
		report.Steps = append(report.Steps, rec)

		if err != nil && setup(step.Type) {
			return report, fmt.Errorf("%w: step %d (%s): %w", ErrSetup, i, step.Type, err)
		}
		if !rec.Matched() {
			report.Mismatches++
			e.env.Logger.Warn("unexpected step outcome", "step", i, "type", step.Type, "expected", rec.Expected, "outcome", rec.Outcome, "err", err)
		}
	}

	report.Events = e.events()
	var err error
	if report.Balances, err = e.balances(); err != nil {
		return report, err
	}
	if report.Positions, err = e.positions(ctx); err != nil {
		return report, err
	}
	if report.Mismatches > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrUnexpectedOutcome, report.Mismatches, len(steps))
	}
	return report, nil
}

func setup(t ent.Type) bool {
	switch t {
	case ent.Token, ent.Fund, ent.Pool, ent.Advance:
		return true
	}
	return false
}

func (e *Execution) apply(ctx context.Context, step ent.Transaction) (result.Step, error) {
	if err := step.Validate(); err != nil {
		return result.Step{}, fmt.Errorf("%w: %w", custody.ErrInvalidRequest, err)
	}
	c := e.env.Chain
	custodian := e.env.Custodian

	switch step.Type {
	case ent.Token:
		addr, err := c.DeployToken(step.Symbol, step.Decimals)
		if err != nil {
			return result.Step{}, err
		}
		e.tokens[step.Symbol] = addr
		e.symbols = append(e.symbols, step.Symbol)
		return result.Step{Amounts: map[string]string{"address": addr.Hex()}}, nil

	case ent.Fund:
		token, err := e.token(step.Symbol)
		if err != nil {
			return result.Step{}, err
		}
		account := e.account(step.Account)
		if err := c.Mint(token, account, step.Amount); err != nil {
			return result.Step{}, err
		}
		return result.Step{}, c.Approve(token, account, e.env.Account, new(ui.Int).SetAllOne())

	case ent.Pool:
		a, b, err := e.pair(step.TokenA, step.TokenB)
		if err != nil {
			return result.Step{}, err
		}
		price := step.SqrtPriceX96
		if price == nil {
			price = cons.Q96
		}
		pool, err := e.env.Registry.CreatePool(ctx, a, b, step.Fee, price)
		if err != nil {
			return result.Step{}, err
		}
		return result.Step{Amounts: map[string]string{"handle": pool.Handle.Hex()}}, nil

	case ent.Advance:
		c.Advance(time.Duration(step.Seconds) * time.Second)
		return result.Step{}, nil

	case ent.Mint:
		a, b, err := e.pair(step.TokenA, step.TokenB)
		if err != nil {
			return result.Step{}, err
		}
		lower, upper, err := ticks(step)
		if err != nil {
			return result.Step{}, err
		}
		receipt, err := custodian.Mint(ctx, e.account(step.Caller), custody.MintRequest{
			AssetA:    a,
			AssetB:    b,
			Fee:       step.Fee,
			AmountA:   step.Amount0,
			AmountB:   step.Amount1,
			TickLower: lower,
			TickUpper: upper,
		})
		if err != nil {
			return result.Step{}, err
		}
		if step.Label != "" {
			e.labels[step.Label] = receipt.Position
		}
		return result.Step{Position: uint64(receipt.Position), Amounts: amounts(
			"liquidity", receipt.Liquidity,
			"amount0", receipt.Amount0, "amount1", receipt.Amount1,
			"refund0", receipt.Refund0, "refund1", receipt.Refund1,
		)}, nil

	case ent.Collect:
		id, err := e.position(step.Position)
		if err != nil {
			return result.Step{}, err
		}
		receipt, err := custodian.CollectAllFees(ctx, e.account(step.Caller), id)
		if err != nil {
			return result.Step{Position: uint64(id)}, err
		}
		return result.Step{Position: uint64(id), Amounts: amounts("amount0", receipt.Amount0, "amount1", receipt.Amount1)}, nil

	case ent.Increase:
		id, err := e.position(step.Position)
		if err != nil {
			return result.Step{}, err
		}
		receipt, err := custodian.IncreaseLiquidity(ctx, e.account(step.Caller), id, step.Amount0, step.Amount1)
		if err != nil {
			return result.Step{Position: uint64(id)}, err
		}
		return result.Step{Position: uint64(id), Amounts: amounts(
			"liquidity", receipt.Liquidity,
			"amount0", receipt.Amount0, "amount1", receipt.Amount1,
			"refund0", receipt.Refund0, "refund1", receipt.Refund1,
		)}, nil

	case ent.Decrease:
		id, err := e.position(step.Position)
		if err != nil {
			return result.Step{}, err
		}
		liquidity := step.Amount
		if step.AllLiquidity {
			pos, err := custodian.Position(ctx, id)
			if err != nil {
				return result.Step{Position: uint64(id)}, err
			}
			liquidity = pos.Liquidity
		}
		receipt, err := custodian.DecreaseLiquidity(ctx, e.account(step.Caller), id, liquidity)
		if err != nil {
			return result.Step{Position: uint64(id)}, err
		}
		return result.Step{Position: uint64(id), Amounts: amounts(
			"liquidity", receipt.Liquidity,
			"amount0", receipt.Amount0, "amount1", receipt.Amount1,
			"forwarded0", receipt.Forwarded0, "forwarded1", receipt.Forwarded1,
		)}, nil

	case ent.SwapExactInput, ent.SwapExactOutput:
		path, assetIn, err := e.path(step)
		if err != nil {
			return result.Step{}, err
		}
		caller := e.account(step.Caller)
		var receipt custody.SwapReceipt
		if step.Type == ent.SwapExactInput {
			receipt, err = custodian.SwapExactInput(ctx, caller, assetIn, step.Amount, step.Limit, path)
		} else {
			receipt, err = custodian.SwapExactOutput(ctx, caller, assetIn, step.Amount, step.Limit, path)
		}
		if err != nil {
			return result.Step{}, err
		}
		return result.Step{Amounts: amounts("amount_in", receipt.AmountIn, "amount_out", receipt.AmountOut, "refund", receipt.Refund)}, nil

	case ent.Reconcile:
		id, err := e.position(step.Position)
		if err != nil {
			return result.Step{}, err
		}
		receipt, err := custodian.Reconcile(ctx, id)
		if err != nil {
			return result.Step{Position: uint64(id)}, err
		}
		return result.Step{Position: uint64(id), Amounts: amounts("previous", receipt.Previous, "current", receipt.Current)}, nil
	}
	return result.Step{}, fmt.Errorf("%w: %s", ent.ErrInvalidStep, step.Type)
}

// account returns the address of a named account, registering the name.
func (e *Execution) account(name string) common.Address {
	if addr, ok := e.accounts[name]; ok {
		return addr
	}
	addr := chain.AddressOf(name)
	e.accounts[name] = addr
	e.names = append(e.names, name)
	return addr
}

func (e *Execution) token(symbol string) (common.Address, error) {
	addr, ok := e.tokens[symbol]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: token %q", ErrUnknownName, symbol)
	}
	return addr, nil
}

func (e *Execution) pair(a, b string) (common.Address, common.Address, error) {
	tokenA, err := e.token(a)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	tokenB, err := e.token(b)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return tokenA, tokenB, nil
}

func (e *Execution) position(label string) (periphery.PositionID, error) {
	id, ok := e.labels[label]
	if !ok {
		return 0, fmt.Errorf("%w: label %q", custody.ErrPositionNotFound, label)
	}
	return id, nil
}

// path encodes a trade-order path the way the router expects it: as is for
// exact input, reversed for exact output.
func (e *Execution) path(step ent.Transaction) (periphery.Path, common.Address, error) {
	tokens := make([]common.Address, len(step.Path))
	for i, symbol := range step.Path {
		addr, err := e.token(symbol)
		if err != nil {
			return nil, common.Address{}, err
		}
		tokens[i] = addr
	}
	assetIn := tokens[0]
	fees := append([]uint32(nil), step.Fees...)
	if step.Type == ent.SwapExactOutput {
		for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
			tokens[i], tokens[j] = tokens[j], tokens[i]
		}
		for i, j := 0, len(fees)-1; i < j; i, j = i+1, j-1 {
			fees[i], fees[j] = fees[j], fees[i]
		}
	}
	path, err := periphery.EncodePath(tokens, fees)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: %w", custody.ErrInvalidRequest, err)
	}
	return path, assetIn, nil
}

func ticks(step ent.Transaction) (int, int, error) {
	if step.TickLower != nil {
		return *step.TickLower, *step.TickUpper, nil
	}
	spacing, ok := periphery.TickSpacing(step.Fee)
	if !ok {
		return 0, 0, fmt.Errorf("%w: no tick spacing for fee %d", custody.ErrInvalidRequest, step.Fee)
	}
	return tickmath.MinUsableTick(spacing), tickmath.MaxUsableTick(spacing), nil
}

func (e *Execution) events() []result.Event {
	var out []result.Event
	for _, ev := range e.env.Events.Events() {
		out = append(out, result.Event{
			Kind:      string(ev.Kind),
			Unit:      ev.Unit,
			Position:  uint64(ev.Position),
			Caller:    e.name(ev.Caller),
			Liquidity: result.Raw(ev.Liquidity),
			Amount0:   result.Raw(ev.Amount0),
			Amount1:   result.Raw(ev.Amount1),
			AmountIn:  result.Raw(ev.AmountIn),
			AmountOut: result.Raw(ev.AmountOut),
			Time:      ev.Time.Unix(),
		})
	}
	return out
}

func (e *Execution) balances() ([]result.Balance, error) {
	names := append([]string(nil), e.names...)
	if _, ok := e.accounts[e.env.Config.Custody.Account]; !ok {
		names = append(names, e.env.Config.Custody.Account)
	}
	var out []result.Balance
	for _, name := range names {
		addr := e.account(name)
		for _, symbol := range e.symbols {
			token, err := e.env.Chain.Token(e.tokens[symbol])
			if err != nil {
				return nil, err
			}
			amount := token.BalanceOf(addr)
			out = append(out, result.Balance{
				Account: name,
				Token:   symbol,
				Amount:  result.FormatAmount(amount, token.Decimals),
				Raw:     amount.Dec(),
			})
		}
	}
	return out, nil
}

func (e *Execution) positions(ctx context.Context) ([]result.Position, error) {
	labels := make(map[periphery.PositionID]string, len(e.labels))
	for label, id := range e.labels {
		labels[id] = label
	}
	var all []ledger.Position
	for _, name := range e.names {
		owned, err := e.env.Custodian.PositionsOf(ctx, e.accounts[name])
		if err != nil {
			return nil, err
		}
		all = append(all, owned...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out := make([]result.Position, 0, len(all))
	for _, p := range all {
		out = append(out, result.Position{
			ID:        uint64(p.ID),
			Label:     labels[p.ID],
			Owner:     e.name(p.Owner),
			Liquidity: p.Liquidity.Dec(),
			AssetLow:  e.symbol(p.AssetLow),
			AssetHigh: e.symbol(p.AssetHigh),
			CreatedAt: p.CreatedAt.Unix(),
		})
	}
	return out, nil
}

func (e *Execution) name(addr common.Address) string {
	for name, a := range e.accounts {
		if a == addr {
			return name
		}
	}
	return addr.Hex()
}

func (e *Execution) symbol(addr common.Address) string {
	for symbol, a := range e.tokens {
		if a == addr {
			return symbol
		}
	}
	return addr.Hex()
}

// amounts pairs names with values, skipping nil values.
func amounts(kv ...any) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if v, ok := kv[i+1].(*ui.Int); ok && v != nil {
			out[kv[i].(string)] = v.Dec()
		}
	}
	return out
}
