package position

import (
	"errors"

	cons "github.com/ftchann/uniswap-custody/lib/constants"
	"github.com/ftchann/uniswap-custody/lib/fullmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrNoLiquidity        = errors.New("position: poke of empty position")
	ErrLiquidityUnderflow = errors.New("position: liquidity underflow")
)

// Key identifies a pool level position.
type Key struct {
	Owner     common.Address
	TickLower int
	TickUpper int
}

type Info struct {
	Liquidity                *ui.Int
	FeeGrowthInside0LastX128 *ui.Int
	FeeGrowthInside1LastX128 *ui.Int
	TokensOwed0              *ui.Int
	TokensOwed1              *ui.Int
}

func NewPosition() *Info {
	return &Info{
		Liquidity:                new(ui.Int),
		FeeGrowthInside0LastX128: new(ui.Int),
		FeeGrowthInside1LastX128: new(ui.Int),
		TokensOwed0:              new(ui.Int),
		TokensOwed1:              new(ui.Int),
	}
}

func (i *Info) Clone() *Info {
	return &Info{
		Liquidity:                i.Liquidity.Clone(),
		FeeGrowthInside0LastX128: i.FeeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: i.FeeGrowthInside1LastX128.Clone(),
		TokensOwed0:              i.TokensOwed0.Clone(),
		TokensOwed1:              i.TokensOwed1.Clone(),
	}
}

// Update credits the fees earned since the last update and applies a signed
// liquidity delta. A zero delta on an empty position is rejected.
func (i *Info) Update(liquidityDelta, feeGrowthInside0X128, feeGrowthInside1X128 *ui.Int) error {
	if liquidityDelta.IsZero() && i.Liquidity.IsZero() {
		return ErrNoLiquidity
	}
	liquidityNext := new(ui.Int).Add(i.Liquidity, liquidityDelta)
	if liquidityDelta.Sign() < 0 && liquidityNext.Gt(i.Liquidity) {
		return ErrLiquidityUnderflow
	}

	owed0, err := fullmath.MulDiv(new(ui.Int).Sub(feeGrowthInside0X128, i.FeeGrowthInside0LastX128), i.Liquidity, cons.Q128)
	if err != nil {
		return err
	}
	owed1, err := fullmath.MulDiv(new(ui.Int).Sub(feeGrowthInside1X128, i.FeeGrowthInside1LastX128), i.Liquidity, cons.Q128)
	if err != nil {
		return err
	}

	i.Liquidity = liquidityNext
	i.FeeGrowthInside0LastX128 = feeGrowthInside0X128.Clone()
	i.FeeGrowthInside1LastX128 = feeGrowthInside1X128.Clone()
	// overflow is acceptable, owed amounts must be collected before 2^128
	i.TokensOwed0 = new(ui.Int).Add(i.TokensOwed0, owed0)
	i.TokensOwed1 = new(ui.Int).Add(i.TokensOwed1, owed1)
	return nil
}
