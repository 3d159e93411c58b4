package fullmath

import (
	"errors"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	ui "github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("fullmath: result overflows uint256")
	ErrDivisionByZero = errors.New("fullmath: division by zero")
)

// MulDiv computes floor(a*b/denominator) with a 512 bit intermediate product.
func MulDiv(a, b, denominator *ui.Int) (*ui.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}
	result, overflow := new(ui.Int).MulDivOverflow(a, b, denominator)
	if overflow {
		return nil, ErrOverflow
	}
	return result, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator).
func MulDivRoundingUp(a, b, denominator *ui.Int) (*ui.Int, error) {
	result, err := MulDiv(a, b, denominator)
	if err != nil {
		return nil, err
	}
	if new(ui.Int).MulMod(a, b, denominator).IsZero() {
		return result, nil
	}
	if result.Eq(cons.MaxUint256) {
		return nil, ErrOverflow
	}
	return result.AddUint64(result, 1), nil
}

// DivRoundingUp computes ceil(x/y).
func DivRoundingUp(x, y *ui.Int) (*ui.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisionByZero
	}
	quotient := new(ui.Int).Div(x, y)
	if !new(ui.Int).Mod(x, y).IsZero() {
		quotient.AddUint64(quotient, 1)
	}
	return quotient, nil
}
