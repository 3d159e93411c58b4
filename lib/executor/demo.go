package executor

import (
	"github.com/ftchann/uniswap-custody/lib/custody"
	ent "github.com/ftchann/uniswap-custody/lib/transaction"

	ui "github.com/holiman/uint256"
)

const demoFee = 3000

// DemoScript mints a full-range position for alice, shows that bob cannot
// collect its fees, trades through the pool, lets alice collect and then
// walks the position through increase, decrease and reconciliation.
func DemoScript() []ent.Transaction {
	n := ui.NewInt
	swap := func(kind ent.Type, from, to string, amount, limit uint64) ent.Transaction {
		return ent.Transaction{
			Type:   kind,
			Caller: "bob",
			Path:   []string{from, to},
			Fees:   []uint32{demoFee},
			Amount: n(amount),
			Limit:  n(limit),
		}
	}
	return []ent.Transaction{
		{Type: ent.Token, Symbol: "USDC", Decimals: 6},
		{Type: ent.Token, Symbol: "WETH", Decimals: 18},
		{Type: ent.Fund, Account: "alice", Symbol: "USDC", Amount: n(1_000_000_000)},
		{Type: ent.Fund, Account: "alice", Symbol: "WETH", Amount: n(1_000_000_000)},
		{Type: ent.Fund, Account: "bob", Symbol: "USDC", Amount: n(1_000_000_000)},
		{Type: ent.Fund, Account: "bob", Symbol: "WETH", Amount: n(1_000_000_000)},
		{Type: ent.Pool, TokenA: "USDC", TokenB: "WETH", Fee: demoFee},

		{Type: ent.Mint, Caller: "alice", TokenA: "USDC", TokenB: "WETH", Fee: demoFee, Amount0: n(1000), Amount1: n(1000), Label: "lp"},
		{Type: ent.Collect, Caller: "bob", Position: "lp", Expect: custody.OutcomeNotOwner},
		swap(ent.SwapExactInput, "USDC", "WETH", 500, 0),
		swap(ent.SwapExactInput, "WETH", "USDC", 500, 0),
		{Type: ent.Advance, Seconds: 3600},
		{Type: ent.Collect, Caller: "alice", Position: "lp"},

		{Type: ent.Increase, Caller: "bob", Position: "lp", Amount0: n(1000), Amount1: n(1000)},
		{Type: ent.Decrease, Caller: "bob", Position: "lp", Amount: n(1), Expect: custody.OutcomeNotOwner},
		{Type: ent.Decrease, Caller: "alice", Position: "lp", Amount: n(5000), Expect: custody.OutcomeInsufficientLiquidity},
		{Type: ent.Decrease, Caller: "alice", Position: "lp", Amount: n(500)},
		{Type: ent.Reconcile, Position: "lp"},
		swap(ent.SwapExactOutput, "USDC", "WETH", 100, 1000),
		{Type: ent.Decrease, Caller: "alice", Position: "lp", AllLiquidity: true},
		{Type: ent.Collect, Caller: "alice", Position: "lp"},
	}
}
