package tickmath

import (
	"errors"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	ui "github.com/holiman/uint256"
)

const (
	MinTick int = -887272  // The minimum tick that can be used on any pool.
	MaxTick int = -MinTick // The maximum tick that can be used on any pool.
)

var (
	ErrTickOutOfRange       = errors.New("tickmath: tick out of range")
	ErrSqrtRatioOutOfRange  = errors.New("tickmath: sqrt ratio out of range")
	MinSqrtRatio            = ui.NewInt(4295128739) // The sqrt ratio corresponding to the minimum tick that could be used on any pool.
	MaxSqrtRatio            = ui.MustFromDecimal("1461446703485210103287273052203988822378723970342")
	q32                     = ui.NewInt(1 << 32)
	oddTickRatio            = ui.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001")
	tickBitRatios           = mustHexes(
		"0xfff97272373d413259a46990580e213a",
		"0xfff2e50f5f656932ef12357cf3c7fdcc",
		"0xffe5caca7e10e4e61c3624eaa0941cd0",
		"0xffcb9843d60f6159c9db58835c926644",
		"0xff973b41fa98c081472e6896dfb254c0",
		"0xff2ea16466c96a3843ec78b326b52861",
		"0xfe5dee046a99a2a811c461f1969c3053",
		"0xfcbe86c7900a88aedcffc83b479aa3a4",
		"0xf987a7253ac413176f2b074cf7815e54",
		"0xf3392b0822b70005940c7a398e4b70f3",
		"0xe7159475a2c29b7443b29c7fa6e889d9",
		"0xd097f3bdfd2022b8845ad8f792aa5825",
		"0xa9f746462d870fdf8a65dc1f90e061e5",
		"0x70d869a156d2a1b890bb3df62baf32f7",
		"0x31be135f97d08fd981231505542fcfa6",
		"0x9aa508b5b7a84e1c677de54f3e99bc9",
		"0x5d6af8dedb81196699c329225ee604",
		"0x2216e584f5fa1ea926041bedfe98",
		"0x48a170391f7dc42444e8fa2",
	)
)

func mustHexes(hexes ...string) []*ui.Int {
	out := make([]*ui.Int, len(hexes))
	for i, h := range hexes {
		out[i] = ui.MustFromHex(h)
	}
	return out
}

// GetSqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96.
func GetSqrtRatioAtTick(tick int) (*ui.Int, error) {
	absTick := tick
	if tick < 0 {
		absTick = -tick
	}
	if absTick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	var ratio *ui.Int
	if absTick&0x1 != 0 {
		ratio = oddTickRatio.Clone()
	} else {
		ratio = new(ui.Int).Set(cons.Q128)
	}
	for i, mul := range tickBitRatios {
		if absTick&(0x2<<i) != 0 {
			ratio.Rsh(ratio.Mul(ratio, mul), 128)
		}
	}
	if tick > 0 {
		ratio = new(ui.Int).Div(cons.MaxUint256, ratio)
	}

	// back to Q96, rounding up so the result is never below the true price
	sqrtRatio := new(ui.Int).Rsh(ratio, 32)
	if !new(ui.Int).Mod(ratio, q32).IsZero() {
		sqrtRatio.AddUint64(sqrtRatio, 1)
	}
	return sqrtRatio, nil
}

// GetTickAtSqrtRatio returns the greatest tick whose sqrt ratio is <= sqrtRatioX96.
func GetTickAtSqrtRatio(sqrtRatioX96 *ui.Int) (int, error) {
	if sqrtRatioX96.Lt(MinSqrtRatio) || !sqrtRatioX96.Lt(MaxSqrtRatio) {
		return 0, ErrSqrtRatioOutOfRange
	}
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := GetSqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Gt(sqrtRatioX96) {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return lo, nil
}

// Floor rounds tick down to a multiple of spacing.
func Floor(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// Ceil rounds tick up to a multiple of spacing.
func Ceil(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick > 0 {
		q++
	}
	return q * spacing
}

// MinUsableTick and MaxUsableTick bound a full range position for spacing.
func MinUsableTick(spacing int) int { return Ceil(MinTick, spacing) }

func MaxUsableTick(spacing int) int { return Floor(MaxTick, spacing) }
