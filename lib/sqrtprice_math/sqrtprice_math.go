package sqrtprice_math

import (
	"errors"

	cons "github.com/ftchann/uniswap-custody/lib/constants"
	fm "github.com/ftchann/uniswap-custody/lib/fullmath"

	ui "github.com/holiman/uint256"
)

var (
	ErrZeroPrice     = errors.New("sqrtprice_math: sqrt price is zero")
	ErrZeroLiquidity = errors.New("sqrtprice_math: liquidity is zero")
	ErrPriceOverflow = errors.New("sqrtprice_math: next sqrt price out of bounds")
)

func sorted(a, b *ui.Int) (*ui.Int, *ui.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// GetAmount0Delta returns liquidity / sqrt(lower) - liquidity / sqrt(upper).
func GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	if sqrtRatioAX96.IsZero() {
		return nil, ErrZeroPrice
	}

	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	numerator2 := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		res, err := fm.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return fm.DivRoundingUp(res, sqrtRatioAX96)
	}
	res, err := fm.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return res.Div(res, sqrtRatioAX96), nil
}

// GetAmount1Delta returns liquidity * (sqrt(upper) - sqrt(lower)).
func GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int, roundUp bool) (*ui.Int, error) {
	sqrtRatioAX96, sqrtRatioBX96 = sorted(sqrtRatioAX96, sqrtRatioBX96)
	diff := new(ui.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fm.MulDivRoundingUp(liquidity, diff, cons.Q96)
	}
	return fm.MulDiv(liquidity, diff, cons.Q96)
}

// GetAmount0DeltaRounded takes a signed (two's complement) liquidity delta.
// Added liquidity rounds up, removed liquidity rounds down and comes back negative.
func GetAmount0DeltaRounded(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		amount, err := GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	return GetAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

// GetAmount1DeltaRounded is the token1 counterpart of GetAmount0DeltaRounded.
func GetAmount1DeltaRounded(sqrtRatioAX96, sqrtRatioBX96, liquidity *ui.Int) (*ui.Int, error) {
	if liquidity.Sign() < 0 {
		amount, err := GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, new(ui.Int).Neg(liquidity), false)
		if err != nil {
			return nil, err
		}
		return amount.Neg(amount), nil
	}
	return GetAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity, true)
}

func GetNextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn, true)
	}
	return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn, true)
}

func GetNextSqrtPriceFromOutput(sqrtPX96, liquidity, amountOut *ui.Int, zeroForOne bool) (*ui.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroPrice
	}
	if liquidity.IsZero() {
		return nil, ErrZeroLiquidity
	}
	if zeroForOne {
		return getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountOut, false)
	}
	return getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountOut, false)
}

func getNextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if amount.IsZero() {
		return sqrtPX96.Clone(), nil
	}
	numerator1 := new(ui.Int).Lsh(liquidity, 96)
	product, overflow := new(ui.Int).MulOverflow(amount, sqrtPX96)

	if add {
		if !overflow {
			denominator, carry := new(ui.Int).AddOverflow(numerator1, product)
			if !carry {
				return fm.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
			}
		}
		denominator := new(ui.Int).Div(numerator1, sqrtPX96)
		if _, carry := denominator.AddOverflow(denominator, amount); carry {
			return nil, ErrPriceOverflow
		}
		return fm.DivRoundingUp(numerator1, denominator)
	}

	if overflow || !numerator1.Gt(product) {
		return nil, ErrPriceOverflow
	}
	next, err := fm.MulDivRoundingUp(numerator1, sqrtPX96, new(ui.Int).Sub(numerator1, product))
	if err != nil {
		return nil, err
	}
	if next.Gt(cons.MaxUint160) {
		return nil, ErrPriceOverflow
	}
	return next, nil
}

func getNextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *ui.Int, add bool) (*ui.Int, error) {
	if add {
		var quotient *ui.Int
		if !amount.Gt(cons.MaxUint160) {
			quotient = new(ui.Int).Div(new(ui.Int).Lsh(amount, 96), liquidity)
		} else {
			var err error
			if quotient, err = fm.MulDiv(amount, cons.Q96, liquidity); err != nil {
				return nil, err
			}
		}
		next := new(ui.Int).Add(sqrtPX96, quotient)
		if next.Gt(cons.MaxUint160) {
			return nil, ErrPriceOverflow
		}
		return next, nil
	}

	var (
		quotient *ui.Int
		err      error
	)
	if !amount.Gt(cons.MaxUint160) {
		quotient, err = fm.DivRoundingUp(new(ui.Int).Lsh(amount, 96), liquidity)
	} else {
		quotient, err = fm.MulDivRoundingUp(amount, cons.Q96, liquidity)
	}
	if err != nil {
		return nil, err
	}
	if !sqrtPX96.Gt(quotient) {
		return nil, ErrPriceOverflow
	}
	return new(ui.Int).Sub(sqrtPX96, quotient), nil
}
