package pool

import (
	"errors"
	"fmt"

	cons "github.com/ftchann/uniswap-custody/lib/constants"
	"github.com/ftchann/uniswap-custody/lib/fullmath"
	"github.com/ftchann/uniswap-custody/lib/position"
	"github.com/ftchann/uniswap-custody/lib/sqrtprice_math"
	"github.com/ftchann/uniswap-custody/lib/swapmath"
	td "github.com/ftchann/uniswap-custody/lib/tickdata"
	"github.com/ftchann/uniswap-custody/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrUnsupportedFee   = errors.New("pool: unsupported fee tier")
	ErrInvalidTicks     = errors.New("pool: invalid tick range")
	ErrZeroAmount       = errors.New("pool: amount must be non zero")
	ErrInvalidLimit     = errors.New("pool: invalid sqrt price limit")
	ErrPositionNotFound = errors.New("pool: position not found")
	ErrInsufficient     = errors.New("pool: insufficient position liquidity")
)

type stepComputations struct {
	sqrtPriceStartX96 *ui.Int
	tickNext          int
	initialized       bool
	sqrtPriceNextX96  *ui.Int
	amountIn          *ui.Int
	amountOut         *ui.Int
	feeAmount         *ui.Int
}

type swapState struct {
	amountSpecifiedRemaining *ui.Int
	amountCalculated         *ui.Int
	sqrtPriceX96             *ui.Int
	tick                     int
	feeGrowthGlobalX128      *ui.Int
	liquidity                *ui.Int
}

// Pool is a concentrated liquidity pool for one token pair and fee tier.
// Signed amounts use two's complement.
type Pool struct {
	Token0               common.Address
	Token1               common.Address
	Fee                  uint32
	SqrtRatioX96         *ui.Int
	Liquidity            *ui.Int
	FeeGrowthGlobal0X128 *ui.Int
	FeeGrowthGlobal1X128 *ui.Int
	TickSpacing          int
	TickCurrent          int
	TickData             *td.TickData
	Positions            map[position.Key]*position.Info
}

func NewPool(token0, token1 common.Address, fee uint32, sqrtRatioX96 *ui.Int) (*Pool, error) {
	tickSpacing, ok := cons.TickSpaces[fee]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedFee, fee)
	}
	tickCurrent, err := tickmath.GetTickAtSqrtRatio(sqrtRatioX96)
	if err != nil {
		return nil, err
	}
	return &Pool{
		Token0:               token0,
		Token1:               token1,
		Fee:                  fee,
		SqrtRatioX96:         sqrtRatioX96.Clone(),
		Liquidity:            new(ui.Int),
		FeeGrowthGlobal0X128: new(ui.Int),
		FeeGrowthGlobal1X128: new(ui.Int),
		TickSpacing:          tickSpacing,
		TickCurrent:          tickCurrent,
		TickData:             td.NewTickData(tickSpacing),
		Positions:            make(map[position.Key]*position.Info),
	}, nil
}

func (p *Pool) Clone() *Pool {
	positions := make(map[position.Key]*position.Info, len(p.Positions))
	for k, v := range p.Positions {
		positions[k] = v.Clone()
	}
	return &Pool{
		Token0:               p.Token0,
		Token1:               p.Token1,
		Fee:                  p.Fee,
		SqrtRatioX96:         p.SqrtRatioX96.Clone(),
		Liquidity:            p.Liquidity.Clone(),
		FeeGrowthGlobal0X128: p.FeeGrowthGlobal0X128.Clone(),
		FeeGrowthGlobal1X128: p.FeeGrowthGlobal1X128.Clone(),
		TickSpacing:          p.TickSpacing,
		TickCurrent:          p.TickCurrent,
		TickData:             p.TickData.Clone(),
		Positions:            positions,
	}
}

// Position returns a copy of the position owned by owner in [lower, upper).
func (p *Pool) Position(owner common.Address, lower, upper int) (*position.Info, bool) {
	pos, ok := p.Positions[position.Key{Owner: owner, TickLower: lower, TickUpper: upper}]
	if !ok {
		return nil, false
	}
	return pos.Clone(), true
}

// FeeGrowthInside returns the current fee growth inside [lower, upper).
func (p *Pool) FeeGrowthInside(lower, upper int) (*ui.Int, *ui.Int) {
	return p.TickData.FeeGrowthInside(lower, upper, p.TickCurrent, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128)
}

func (p *Pool) checkTicks(lower, upper int) error {
	switch {
	case lower >= upper:
		return fmt.Errorf("%w: lower %d not below upper %d", ErrInvalidTicks, lower, upper)
	case lower < tickmath.MinTick || upper > tickmath.MaxTick:
		return fmt.Errorf("%w: [%d, %d] outside price bounds", ErrInvalidTicks, lower, upper)
	case lower%p.TickSpacing != 0 || upper%p.TickSpacing != 0:
		return fmt.Errorf("%w: [%d, %d] not multiples of spacing %d", ErrInvalidTicks, lower, upper, p.TickSpacing)
	}
	return nil
}

// Mint adds liquidity for owner and returns the amounts the owner must pay.
func (p *Pool) Mint(owner common.Address, lower, upper int, amount *ui.Int) (*ui.Int, *ui.Int, error) {
	if amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	return p.modifyPosition(owner, lower, upper, amount)
}

// Burn removes liquidity and credits the released amounts to the position's
// owed balances. A zero amount only pokes the position to accrue fees.
func (p *Pool) Burn(owner common.Address, lower, upper int, amount *ui.Int) (*ui.Int, *ui.Int, error) {
	amount0, amount1, err := p.modifyPosition(owner, lower, upper, new(ui.Int).Neg(amount))
	if err != nil {
		return nil, nil, err
	}
	amount0.Neg(amount0)
	amount1.Neg(amount1)

	pos := p.Positions[position.Key{Owner: owner, TickLower: lower, TickUpper: upper}]
	if !amount0.IsZero() || !amount1.IsZero() {
		pos.TokensOwed0 = new(ui.Int).Add(pos.TokensOwed0, amount0)
		pos.TokensOwed1 = new(ui.Int).Add(pos.TokensOwed1, amount1)
	}
	return amount0, amount1, nil
}

// Collect withdraws up to the requested amounts from the owed balances.
func (p *Pool) Collect(owner common.Address, lower, upper int, amount0Requested, amount1Requested *ui.Int) (*ui.Int, *ui.Int, error) {
	pos, ok := p.Positions[position.Key{Owner: owner, TickLower: lower, TickUpper: upper}]
	if !ok {
		return nil, nil, ErrPositionNotFound
	}
	amount0 := amount0Requested.Clone()
	if amount0.Gt(pos.TokensOwed0) {
		amount0.Set(pos.TokensOwed0)
	}
	amount1 := amount1Requested.Clone()
	if amount1.Gt(pos.TokensOwed1) {
		amount1.Set(pos.TokensOwed1)
	}
	pos.TokensOwed0 = new(ui.Int).Sub(pos.TokensOwed0, amount0)
	pos.TokensOwed1 = new(ui.Int).Sub(pos.TokensOwed1, amount1)
	return amount0, amount1, nil
}

func (p *Pool) modifyPosition(owner common.Address, lower, upper int, liquidityDelta *ui.Int) (amount0, amount1 *ui.Int, err error) {
	if err := p.checkTicks(lower, upper); err != nil {
		return nil, nil, err
	}
	key := position.Key{Owner: owner, TickLower: lower, TickUpper: upper}
	pos, ok := p.Positions[key]
	if !ok {
		if liquidityDelta.Sign() <= 0 {
			return nil, nil, ErrPositionNotFound
		}
		pos = position.NewPosition()
	}
	if liquidityDelta.Sign() < 0 && new(ui.Int).Neg(liquidityDelta).Gt(pos.Liquidity) {
		return nil, nil, ErrInsufficient
	}
	if liquidityDelta.IsZero() && pos.Liquidity.IsZero() {
		return nil, nil, position.ErrNoLiquidity
	}

	if err := p.updatePosition(key, pos, liquidityDelta); err != nil {
		return nil, nil, err
	}

	sqrtLower, err := tickmath.GetSqrtRatioAtTick(lower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := tickmath.GetSqrtRatioAtTick(upper)
	if err != nil {
		return nil, nil, err
	}

	amount0, amount1 = new(ui.Int), new(ui.Int)
	if liquidityDelta.IsZero() {
		return amount0, amount1, nil
	}
	switch {
	case p.TickCurrent < lower:
		amount0, err = sqrtprice_math.GetAmount0DeltaRounded(sqrtLower, sqrtUpper, liquidityDelta)
	case p.TickCurrent < upper:
		if amount0, err = sqrtprice_math.GetAmount0DeltaRounded(p.SqrtRatioX96, sqrtUpper, liquidityDelta); err != nil {
			return nil, nil, err
		}
		amount1, err = sqrtprice_math.GetAmount1DeltaRounded(sqrtLower, p.SqrtRatioX96, liquidityDelta)
		p.Liquidity = new(ui.Int).Add(p.Liquidity, liquidityDelta)
	default:
		amount1, err = sqrtprice_math.GetAmount1DeltaRounded(sqrtLower, sqrtUpper, liquidityDelta)
	}
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

func (p *Pool) updatePosition(key position.Key, pos *position.Info, liquidityDelta *ui.Int) error {
	var flippedLower, flippedUpper bool
	if !liquidityDelta.IsZero() {
		var err error
		flippedLower, err = p.TickData.Update(key.TickLower, p.TickCurrent, liquidityDelta, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, false)
		if err != nil {
			return err
		}
		flippedUpper, err = p.TickData.Update(key.TickUpper, p.TickCurrent, liquidityDelta, p.FeeGrowthGlobal0X128, p.FeeGrowthGlobal1X128, true)
		if err != nil {
			return err
		}
	}

	inside0, inside1 := p.FeeGrowthInside(key.TickLower, key.TickUpper)
	if err := pos.Update(liquidityDelta, inside0, inside1); err != nil {
		return err
	}
	p.Positions[key] = pos

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.TickData.Clear(key.TickLower)
		}
		if flippedUpper {
			p.TickData.Clear(key.TickUpper)
		}
	}
	return nil
}

// Swap trades against the pool. A positive amountSpecified is an exact input,
// a negative one an exact output. The returned deltas are from the pool's
// side: positive amounts are owed to the pool, negative ones paid out.
func (p *Pool) Swap(zeroForOne bool, amountSpecified, sqrtPriceLimitX96 *ui.Int) (*ui.Int, *ui.Int, error) {
	if amountSpecified.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	limit := sqrtPriceLimitX96.Clone()
	if limit.IsZero() {
		if zeroForOne {
			limit.Add(tickmath.MinSqrtRatio, cons.One)
		} else {
			limit.Sub(tickmath.MaxSqrtRatio, cons.One)
		}
	}
	if zeroForOne {
		if !limit.Lt(p.SqrtRatioX96) || !limit.Gt(tickmath.MinSqrtRatio) {
			return nil, nil, ErrInvalidLimit
		}
	} else if !limit.Gt(p.SqrtRatioX96) || !limit.Lt(tickmath.MaxSqrtRatio) {
		return nil, nil, ErrInvalidLimit
	}

	exactInput := amountSpecified.Sign() >= 0

	var feeGrowthGlobalX128 *ui.Int
	if zeroForOne {
		feeGrowthGlobalX128 = p.FeeGrowthGlobal0X128.Clone()
	} else {
		feeGrowthGlobalX128 = p.FeeGrowthGlobal1X128.Clone()
	}
	state := swapState{
		amountSpecifiedRemaining: amountSpecified.Clone(),
		amountCalculated:         new(ui.Int),
		sqrtPriceX96:             p.SqrtRatioX96.Clone(),
		tick:                     p.TickCurrent,
		feeGrowthGlobalX128:      feeGrowthGlobalX128,
		liquidity:                p.Liquidity.Clone(),
	}

	for !state.amountSpecifiedRemaining.IsZero() && !state.sqrtPriceX96.Eq(limit) {
		var step stepComputations
		var err error
		step.sqrtPriceStartX96 = state.sqrtPriceX96
		step.tickNext, step.initialized = p.TickData.NextInitialized(state.tick, zeroForOne)

		if step.sqrtPriceNextX96, err = tickmath.GetSqrtRatioAtTick(step.tickNext); err != nil {
			return nil, nil, err
		}
		target := step.sqrtPriceNextX96
		if zeroForOne && target.Lt(limit) || !zeroForOne && target.Gt(limit) {
			target = limit
		}

		state.sqrtPriceX96, step.amountIn, step.amountOut, step.feeAmount, err =
			swapmath.ComputeSwapStep(state.sqrtPriceX96, target, state.liquidity, state.amountSpecifiedRemaining, p.Fee)
		if err != nil {
			return nil, nil, err
		}

		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, new(ui.Int).Add(step.amountIn, step.feeAmount))
			state.amountCalculated.Sub(state.amountCalculated, step.amountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, step.amountOut)
			state.amountCalculated.Add(state.amountCalculated, new(ui.Int).Add(step.amountIn, step.feeAmount))
		}

		if !state.liquidity.IsZero() {
			fee, err := fullmath.MulDiv(step.feeAmount, cons.Q128, state.liquidity)
			if err != nil {
				return nil, nil, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, fee)
		}

		if state.sqrtPriceX96.Eq(step.sqrtPriceNextX96) {
			if step.initialized {
				feeGrowthGlobal0X128, feeGrowthGlobal1X128 := p.FeeGrowthGlobal0X128, state.feeGrowthGlobalX128
				if zeroForOne {
					feeGrowthGlobal0X128, feeGrowthGlobal1X128 = state.feeGrowthGlobalX128, p.FeeGrowthGlobal1X128
				}
				liquidityNet := p.TickData.Cross(step.tickNext, feeGrowthGlobal0X128, feeGrowthGlobal1X128)
				if zeroForOne {
					state.liquidity.Sub(state.liquidity, liquidityNet)
				} else {
					state.liquidity.Add(state.liquidity, liquidityNet)
				}
			}
			if zeroForOne {
				state.tick = step.tickNext - 1
			} else {
				state.tick = step.tickNext
			}
		} else if !state.sqrtPriceX96.Eq(step.sqrtPriceStartX96) {
			if state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96); err != nil {
				return nil, nil, err
			}
		}
	}

	p.TickCurrent = state.tick
	p.Liquidity = state.liquidity
	p.SqrtRatioX96 = state.sqrtPriceX96
	if zeroForOne {
		p.FeeGrowthGlobal0X128 = state.feeGrowthGlobalX128
	} else {
		p.FeeGrowthGlobal1X128 = state.feeGrowthGlobalX128
	}

	amount0, amount1 := new(ui.Int), new(ui.Int)
	if zeroForOne == exactInput {
		amount0.Sub(amountSpecified, state.amountSpecifiedRemaining)
		amount1.Set(state.amountCalculated)
	} else {
		amount0.Set(state.amountCalculated)
		amount1.Sub(amountSpecified, state.amountSpecifiedRemaining)
	}
	return amount0, amount1, nil
}
