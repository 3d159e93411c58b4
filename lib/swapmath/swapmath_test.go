package swapmath

import (
	"testing"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	ui "github.com/holiman/uint256"
)

func TestComputeSwapStepPartialExactIn(t *testing.T) {
	current := ui.MustFromDecimal("1344919684864506912172695223877090")
	target := ui.MustFromDecimal("1346938477169594858818217023321238")
	liquidity := ui.MustFromDecimal("731344820973715931")
	amountRemaining := ui.MustFromDecimal("26412237337162431364")

	next, amountIn, amountOut, feeAmount, err := ComputeSwapStep(current, target, liquidity, amountRemaining, 500)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Gt(current) || next.Gt(target) {
		t.Fatalf("next price %v outside (%v, %v]", next, current, target)
	}
	if amountOut.IsZero() {
		t.Fatalf("expected output")
	}
	spent := new(ui.Int).Add(amountIn, feeAmount)
	if spent.Gt(amountRemaining) {
		t.Fatalf("spent %v exceeds remaining %v", spent, amountRemaining)
	}
}

func TestComputeSwapStepReachesTarget(t *testing.T) {
	price := cons.Q96.Clone()
	target := new(ui.Int).Sub(price, new(ui.Int).Rsh(price, 10)) // slightly below
	liquidity := ui.NewInt(2_000_000_000_000_000_000)
	amount := ui.NewInt(1_000_000_000_000_000_000)

	next, amountIn, _, feeAmount, err := ComputeSwapStep(price, target, liquidity, amount, 3000)
	if err != nil {
		t.Fatal(err)
	}
	if !next.Eq(target) {
		t.Fatalf("expected to stop at target, got %v", next)
	}
	if feeAmount.IsZero() || amountIn.IsZero() {
		t.Fatalf("expected non zero in=%v fee=%v", amountIn, feeAmount)
	}
}

func TestComputeSwapStepExactOutCapped(t *testing.T) {
	price := cons.Q96.Clone()
	target := new(ui.Int).Add(price, new(ui.Int).Rsh(price, 4))
	liquidity := ui.NewInt(1_000_000_000_000)
	want := ui.NewInt(1000)
	amountRemaining := new(ui.Int).Neg(want)

	_, amountIn, amountOut, _, err := ComputeSwapStep(price, target, liquidity, amountRemaining, 3000)
	if err != nil {
		t.Fatal(err)
	}
	if amountOut.Gt(want) {
		t.Fatalf("output %v exceeds requested %v", amountOut, want)
	}
	if !amountIn.Gt(cons.Zero) {
		t.Fatalf("expected input for output")
	}
}
