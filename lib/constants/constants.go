package constants

import (
	ui "github.com/holiman/uint256"
)

var (
	Zero       = new(ui.Int)
	One        = new(ui.Int).SetOne()
	MaxUint256 = ui.MustFromHex("0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	MaxUint160 = new(ui.Int).Sub(new(ui.Int).Lsh(One, 160), One)
	MaxUint128 = new(ui.Int).Sub(new(ui.Int).Lsh(One, 128), One)
	// fixed point scales used in liquidity and fee growth math
	Q96  = new(ui.Int).Lsh(One, 96)
	Q128 = new(ui.Int).Lsh(One, 128)
	Q192 = new(ui.Int).Lsh(One, 192)
)

// FeeDenominator is the fee unit: fees are expressed in hundredths of a bip.
const FeeDenominator uint64 = 1_000_000

var TickSpaces = map[uint32]int{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}
