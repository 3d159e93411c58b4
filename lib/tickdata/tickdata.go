package tickdata

import (
	"errors"
	"sort"

	"github.com/ftchann/uniswap-custody/lib/tickmath"

	ui "github.com/holiman/uint256"
)

var ErrLiquidityUnderflow = errors.New("tickdata: gross liquidity underflow")

// Tick is an initialized tick. LiquidityNet is signed (two's complement).
type Tick struct {
	Index                 int
	LiquidityNet          *ui.Int
	LiquidityGross        *ui.Int
	FeeGrowthOutside0X128 *ui.Int
	FeeGrowthOutside1X128 *ui.Int
}

func (t Tick) clone() Tick {
	return Tick{
		Index:                 t.Index,
		LiquidityNet:          t.LiquidityNet.Clone(),
		LiquidityGross:        t.LiquidityGross.Clone(),
		FeeGrowthOutside0X128: t.FeeGrowthOutside0X128.Clone(),
		FeeGrowthOutside1X128: t.FeeGrowthOutside1X128.Clone(),
	}
}

// TickData keeps the initialized ticks of a pool sorted by index.
type TickData struct {
	ticks       []Tick
	tickSpacing int
}

func NewTickData(tickSpacing int) *TickData {
	return &TickData{tickSpacing: tickSpacing}
}

func (t *TickData) Clone() *TickData {
	ticks := make([]Tick, len(t.ticks))
	for i, tick := range t.ticks {
		ticks[i] = tick.clone()
	}
	return &TickData{ticks: ticks, tickSpacing: t.tickSpacing}
}

func (t *TickData) TickSpacing() int { return t.tickSpacing }

func (t *TickData) Len() int { return len(t.ticks) }

// search returns the position of index, or where it would be inserted.
func (t *TickData) search(index int) (int, bool) {
	i := sort.Search(len(t.ticks), func(i int) bool { return t.ticks[i].Index >= index })
	return i, i < len(t.ticks) && t.ticks[i].Index == index
}

func (t *TickData) Get(index int) (Tick, bool) {
	i, ok := t.search(index)
	if !ok {
		return Tick{}, false
	}
	return t.ticks[i], true
}

// Update applies a signed liquidity delta to the tick and reports whether the
// tick flipped between initialized and uninitialized. A tick at or below the
// current tick starts with all growth counted as outside.
func (t *TickData) Update(index, tickCurrent int, liquidityDelta, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int, upper bool) (bool, error) {
	i, ok := t.search(index)
	if !ok {
		if liquidityDelta.IsZero() {
			return false, nil
		}
		if liquidityDelta.Sign() < 0 {
			return false, ErrLiquidityUnderflow
		}
		tick := Tick{
			Index:                 index,
			LiquidityNet:          new(ui.Int),
			LiquidityGross:        new(ui.Int),
			FeeGrowthOutside0X128: new(ui.Int),
			FeeGrowthOutside1X128: new(ui.Int),
		}
		if index <= tickCurrent {
			tick.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			tick.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
		}
		t.ticks = append(t.ticks, Tick{})
		copy(t.ticks[i+1:], t.ticks[i:])
		t.ticks[i] = tick
	}

	tick := &t.ticks[i]
	grossBefore := tick.LiquidityGross.Clone()
	grossAfter := new(ui.Int).Add(grossBefore, liquidityDelta)
	if liquidityDelta.Sign() < 0 && grossAfter.Gt(grossBefore) {
		return false, ErrLiquidityUnderflow
	}
	tick.LiquidityGross = grossAfter
	tick.LiquidityNet = tick.LiquidityNet.Clone()

	if upper {
		tick.LiquidityNet.Sub(tick.LiquidityNet, liquidityDelta)
	} else {
		tick.LiquidityNet.Add(tick.LiquidityNet, liquidityDelta)
	}
	return grossBefore.IsZero() != grossAfter.IsZero(), nil
}

// Clear drops a tick whose gross liquidity went to zero.
func (t *TickData) Clear(index int) {
	if i, ok := t.search(index); ok {
		t.ticks = append(t.ticks[:i], t.ticks[i+1:]...)
	}
}

// Cross flips the outside fee growth of a tick the price moves across and
// returns its net liquidity.
func (t *TickData) Cross(index int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) *ui.Int {
	i, ok := t.search(index)
	if !ok {
		return new(ui.Int)
	}
	tick := &t.ticks[i]
	tick.FeeGrowthOutside0X128 = new(ui.Int).Sub(feeGrowthGlobal0X128, tick.FeeGrowthOutside0X128)
	tick.FeeGrowthOutside1X128 = new(ui.Int).Sub(feeGrowthGlobal1X128, tick.FeeGrowthOutside1X128)
	return tick.LiquidityNet.Clone()
}

// FeeGrowthInside returns the fee growth per unit of liquidity accumulated
// inside [lower, upper). All arithmetic wraps modulo 2^256.
func (t *TickData) FeeGrowthInside(lower, upper, tickCurrent int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *ui.Int) (*ui.Int, *ui.Int) {
	outside := func(index int) (*ui.Int, *ui.Int) {
		if tick, ok := t.Get(index); ok {
			return tick.FeeGrowthOutside0X128, tick.FeeGrowthOutside1X128
		}
		return new(ui.Int), new(ui.Int)
	}
	lower0, lower1 := outside(lower)
	upper0, upper1 := outside(upper)

	var below0, below1 *ui.Int
	if tickCurrent >= lower {
		below0, below1 = lower0, lower1
	} else {
		below0 = new(ui.Int).Sub(feeGrowthGlobal0X128, lower0)
		below1 = new(ui.Int).Sub(feeGrowthGlobal1X128, lower1)
	}
	var above0, above1 *ui.Int
	if tickCurrent < upper {
		above0, above1 = upper0, upper1
	} else {
		above0 = new(ui.Int).Sub(feeGrowthGlobal0X128, upper0)
		above1 = new(ui.Int).Sub(feeGrowthGlobal1X128, upper1)
	}

	inside0 := new(ui.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(ui.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// NextInitialized returns the next initialized tick at or below tick when lte
// is set, else strictly above it. Without one it returns the price bound.
func (t *TickData) NextInitialized(tick int, lte bool) (int, bool) {
	if lte {
		i := sort.Search(len(t.ticks), func(i int) bool { return t.ticks[i].Index > tick })
		if i == 0 {
			return tickmath.MinTick, false
		}
		return t.ticks[i-1].Index, true
	}
	i := sort.Search(len(t.ticks), func(i int) bool { return t.ticks[i].Index > tick })
	if i == len(t.ticks) {
		return tickmath.MaxTick, false
	}
	return t.ticks[i].Index, true
}
