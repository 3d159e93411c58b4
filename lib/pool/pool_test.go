package pool

import (
	"errors"
	"testing"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	token0 = common.HexToAddress("0x01")
	token1 = common.HexToAddress("0x02")
	lp     = common.HexToAddress("0xaa")
	other  = common.HexToAddress("0xbb")
)

func newPool(t *testing.T) *Pool {
	t.Helper()
	p, err := NewPool(token0, token1, 3000, cons.Q96)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func e18(n uint64) *ui.Int {
	return new(ui.Int).Mul(ui.NewInt(n), ui.NewInt(1_000_000_000_000_000_000))
}

func TestNewPoolUnsupportedFee(t *testing.T) {
	if _, err := NewPool(token0, token1, 42, cons.Q96); !errors.Is(err, ErrUnsupportedFee) {
		t.Fatalf("expected ErrUnsupportedFee, got %v", err)
	}
}

func TestCheckTicks(t *testing.T) {
	p := newPool(t)
	tests := []struct {
		name         string
		lower, upper int
	}{
		{name: "inverted", lower: 60, upper: -60},
		{name: "equal", lower: 60, upper: 60},
		{name: "off spacing", lower: -61, upper: 60},
		{name: "below min", lower: -887280, upper: 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := p.Mint(lp, tt.lower, tt.upper, ui.NewInt(1000)); !errors.Is(err, ErrInvalidTicks) {
				t.Fatalf("expected ErrInvalidTicks, got %v", err)
			}
		})
	}
}

func TestMintBurnCollect(t *testing.T) {
	p := newPool(t)
	liquidity := e18(1)
	amount0, amount1, err := p.Mint(lp, -600, 600, liquidity)
	if err != nil {
		t.Fatal(err)
	}
	if amount0.IsZero() || amount1.IsZero() {
		t.Fatalf("in range mint should take both tokens: %v %v", amount0, amount1)
	}
	if !p.Liquidity.Eq(liquidity) {
		t.Fatalf("active liquidity = %v", p.Liquidity)
	}

	burn0, burn1, err := p.Burn(lp, -600, 600, liquidity)
	if err != nil {
		t.Fatal(err)
	}
	if burn0.Gt(amount0) || burn1.Gt(amount1) {
		t.Fatalf("burn returned more than minted: %v %v vs %v %v", burn0, burn1, amount0, amount1)
	}
	if !p.Liquidity.IsZero() || p.TickData.Len() != 0 {
		t.Fatalf("pool should be empty, liquidity=%v ticks=%d", p.Liquidity, p.TickData.Len())
	}

	got0, got1, err := p.Collect(lp, -600, 600, cons.MaxUint128, cons.MaxUint128)
	if err != nil {
		t.Fatal(err)
	}
	if !got0.Eq(burn0) || !got1.Eq(burn1) {
		t.Fatalf("collected %v %v, want %v %v", got0, got1, burn0, burn1)
	}
	pos, _ := p.Position(lp, -600, 600)
	if !pos.TokensOwed0.IsZero() || !pos.TokensOwed1.IsZero() {
		t.Fatalf("owed not cleared")
	}

	if _, _, err := p.Burn(other, -600, 600, ui.NewInt(1)); !errors.Is(err, ErrPositionNotFound) {
		t.Fatalf("expected ErrPositionNotFound, got %v", err)
	}
	if _, _, err := p.Burn(lp, -600, 600, ui.NewInt(1)); !errors.Is(err, ErrInsufficient) {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
}

func TestSwapExactInputAccruesFees(t *testing.T) {
	p := newPool(t)
	if _, _, err := p.Mint(lp, -6000, 6000, e18(1)); err != nil {
		t.Fatal(err)
	}
	amountIn := ui.NewInt(1_000_000_000_000_000)
	amount0, amount1, err := p.Swap(true, amountIn, new(ui.Int))
	if err != nil {
		t.Fatal(err)
	}
	if !amount0.Eq(amountIn) {
		t.Fatalf("pool should take the full input, got %v", amount0)
	}
	if amount1.Sign() >= 0 {
		t.Fatalf("pool should pay out token1, got %v", amount1)
	}
	if !p.SqrtRatioX96.Lt(cons.Q96) || p.FeeGrowthGlobal0X128.IsZero() {
		t.Fatalf("price %v fee growth %v", p.SqrtRatioX96, p.FeeGrowthGlobal0X128)
	}

	if _, _, err := p.Burn(lp, -6000, 6000, new(ui.Int)); err != nil {
		t.Fatal(err)
	}
	pos, _ := p.Position(lp, -6000, 6000)
	// 0.3% of the input less rounding
	if pos.TokensOwed0.Uint64() < 2_999_999_999_000 || pos.TokensOwed0.Uint64() > 3_000_000_001_000 {
		t.Fatalf("owed0 = %v", pos.TokensOwed0)
	}
	if !pos.TokensOwed1.IsZero() {
		t.Fatalf("owed1 = %v", pos.TokensOwed1)
	}
}

func TestSwapExactOutput(t *testing.T) {
	p := newPool(t)
	if _, _, err := p.Mint(lp, -6000, 6000, e18(1)); err != nil {
		t.Fatal(err)
	}
	want := ui.NewInt(1000)
	amount0, amount1, err := p.Swap(false, new(ui.Int).Neg(want), new(ui.Int))
	if err != nil {
		t.Fatal(err)
	}
	if !new(ui.Int).Neg(amount0).Eq(want) {
		t.Fatalf("paid out %v, want %v", new(ui.Int).Neg(amount0), want)
	}
	if amount1.Sign() <= 0 {
		t.Fatalf("pool should receive token1, got %v", amount1)
	}
}

func TestSwapCrossesTicks(t *testing.T) {
	p := newPool(t)
	if _, _, err := p.Mint(lp, -60, 60, e18(1)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := p.Mint(other, -887220, 887220, e18(1)); err != nil {
		t.Fatal(err)
	}
	if !p.Liquidity.Eq(e18(2)) {
		t.Fatalf("liquidity = %v", p.Liquidity)
	}
	if _, _, err := p.Swap(true, new(ui.Int).Div(e18(1), ui.NewInt(10)), new(ui.Int)); err != nil {
		t.Fatal(err)
	}
	if p.TickCurrent >= -60 {
		t.Fatalf("tick %d should be below the narrow range", p.TickCurrent)
	}
	if !p.Liquidity.Eq(e18(1)) {
		t.Fatalf("liquidity after crossing = %v", p.Liquidity)
	}
}

func TestSwapInvalidLimit(t *testing.T) {
	p := newPool(t)
	above := new(ui.Int).Add(cons.Q96, cons.One)
	if _, _, err := p.Swap(true, ui.NewInt(1), above); !errors.Is(err, ErrInvalidLimit) {
		t.Fatalf("expected ErrInvalidLimit, got %v", err)
	}
	if _, _, err := p.Swap(true, new(ui.Int), new(ui.Int)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	p := newPool(t)
	if _, _, err := p.Mint(lp, -60, 60, e18(1)); err != nil {
		t.Fatal(err)
	}
	c := p.Clone()
	if _, _, err := c.Swap(true, ui.NewInt(1_000_000), new(ui.Int)); err != nil {
		t.Fatal(err)
	}
	if !p.SqrtRatioX96.Eq(cons.Q96) || !p.FeeGrowthGlobal0X128.IsZero() {
		t.Fatal("swap on clone leaked into original")
	}
}
