package swapmath

import (
	cons "github.com/ftchann/uniswap-custody/lib/constants"
	fm "github.com/ftchann/uniswap-custody/lib/fullmath"
	sqrtmath "github.com/ftchann/uniswap-custody/lib/sqrtprice_math"

	ui "github.com/holiman/uint256"
)

var MaxFee = ui.NewInt(cons.FeeDenominator)

// ComputeSwapStep moves the price from current toward target within one
// initialized tick range. amountRemaining is signed: positive for exact input,
// negative (two's complement) for exact output.
func ComputeSwapStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *ui.Int, feePips uint32) (sqrtRatioNextX96, amountIn, amountOut, feeAmount *ui.Int, err error) {
	zeroForOne := !sqrtRatioCurrentX96.Lt(sqrtRatioTargetX96)
	exactIn := amountRemaining.Sign() >= 0
	fee := ui.NewInt(uint64(feePips))
	feeComplement := new(ui.Int).Sub(MaxFee, fee)

	if exactIn {
		amountRemainingLessFee, err := fm.MulDiv(amountRemaining, feeComplement, MaxFee)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if zeroForOne {
			amountIn, err = sqrtmath.GetAmount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
		} else {
			amountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if !amountRemainingLessFee.Lt(amountIn) {
			sqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else if sqrtRatioNextX96, err = sqrtmath.GetNextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne); err != nil {
			return nil, nil, nil, nil, err
		}
	} else {
		wanted := new(ui.Int).Neg(amountRemaining)
		if zeroForOne {
			amountOut, err = sqrtmath.GetAmount1Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, false)
		} else {
			amountOut, err = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, false)
		}
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if !wanted.Lt(amountOut) {
			sqrtRatioNextX96 = sqrtRatioTargetX96.Clone()
		} else if sqrtRatioNextX96, err = sqrtmath.GetNextSqrtPriceFromOutput(sqrtRatioCurrentX96, liquidity, wanted, zeroForOne); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	max := sqrtRatioTargetX96.Eq(sqrtRatioNextX96)

	if zeroForOne {
		if !(max && exactIn) {
			if amountIn, err = sqrtmath.GetAmount0Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, true); err != nil {
				return nil, nil, nil, nil, err
			}
		}
		if !(max && !exactIn) {
			if amountOut, err = sqrtmath.GetAmount1Delta(sqrtRatioNextX96, sqrtRatioCurrentX96, liquidity, false); err != nil {
				return nil, nil, nil, nil, err
			}
		}
	} else {
		if !(max && exactIn) {
			if amountIn, err = sqrtmath.GetAmount1Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, true); err != nil {
				return nil, nil, nil, nil, err
			}
		}
		if !(max && !exactIn) {
			if amountOut, err = sqrtmath.GetAmount0Delta(sqrtRatioCurrentX96, sqrtRatioNextX96, liquidity, false); err != nil {
				return nil, nil, nil, nil, err
			}
		}
	}

	// cap the output amount to not exceed the remaining output amount
	if !exactIn {
		if wanted := new(ui.Int).Neg(amountRemaining); amountOut.Gt(wanted) {
			amountOut = wanted
		}
	}

	if exactIn && !sqrtRatioNextX96.Eq(sqrtRatioTargetX96) {
		// we didn't reach the target, so take the remainder of the maximum input as fee
		feeAmount = new(ui.Int).Sub(amountRemaining, amountIn)
	} else if feeAmount, err = fm.MulDivRoundingUp(amountIn, fee, feeComplement); err != nil {
		return nil, nil, nil, nil, err
	}
	return sqrtRatioNextX96, amountIn, amountOut, feeAmount, nil
}
