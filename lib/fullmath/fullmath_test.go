package fullmath

import (
	"errors"
	"fmt"
	"testing"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	ui "github.com/holiman/uint256"
)

func TestMulDivRoundingUp(t *testing.T) {
	tests := [][]uint64{
		{0, 500, 1000000, 0},
		{1, 500, 1000000, 1},
		{1000000, 1, 1000000, 1},
		{1000001, 1, 1000000, 2},
	}
	for _, arg := range tests {
		t.Run(fmt.Sprint(arg), func(t *testing.T) {
			result, err := MulDivRoundingUp(ui.NewInt(arg[0]), ui.NewInt(arg[1]), ui.NewInt(arg[2]))
			if err != nil {
				t.Fatal(err)
			}
			if ui.NewInt(arg[3]).Cmp(result) != 0 {
				t.Fatalf("want=%v result=%v", arg[3], result)
			}
		})
	}
}

func TestMulDivFullPrecision(t *testing.T) {
	// 2^255 * 2 overflows a single word, the quotient does not
	half := new(ui.Int).Lsh(cons.One, 255)
	result, err := MulDiv(half, ui.NewInt(2), ui.NewInt(4))
	if err != nil {
		t.Fatal(err)
	}
	if want := new(ui.Int).Lsh(cons.One, 254); !result.Eq(want) {
		t.Fatalf("want=%v result=%v", want, result)
	}
}

func TestMulDivErrors(t *testing.T) {
	if _, err := MulDiv(cons.One, cons.One, cons.Zero); !errors.Is(err, ErrDivisionByZero) {
		t.Fatalf("expected division by zero, got %v", err)
	}
	if _, err := MulDiv(cons.MaxUint256, ui.NewInt(2), cons.One); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := MulDivRoundingUp(cons.MaxUint256, cons.MaxUint256, new(ui.Int).Sub(cons.MaxUint256, cons.One)); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
}

func TestDivRoundingUp(t *testing.T) {
	tests := [][]uint64{
		{0, 3, 0},
		{3, 3, 1},
		{4, 3, 2},
		{7, 2, 4},
	}
	for _, arg := range tests {
		result, err := DivRoundingUp(ui.NewInt(arg[0]), ui.NewInt(arg[1]))
		if err != nil {
			t.Fatal(err)
		}
		if result.Uint64() != arg[2] {
			t.Errorf("DivRoundingUp(%d, %d) = %d, want %d", arg[0], arg[1], result.Uint64(), arg[2])
		}
	}
}
