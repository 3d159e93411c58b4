// Package periphery holds the position manager and swap router surface of the
// AMM: pool keys, call parameters, results and packed swap paths.
package periphery

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	cons "github.com/ftchann/uniswap-custody/lib/constants"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/zeebo/blake3"
)

var ErrIdenticalTokens = errors.New("periphery: identical tokens")

// MaxUint128 is the collect ceiling that drains everything owed.
var MaxUint128 = cons.MaxUint128

// PositionID is the id of a position NFT.
type PositionID uint64

// PoolKey identifies a pool. Token0 sorts before Token1.
type PoolKey struct {
	Token0 common.Address
	Token1 common.Address
	Fee    uint32
}

// ID derives the pool handle from the key.
func (k PoolKey) ID() common.Hash {
	var buf [common.AddressLength*2 + 3]byte
	copy(buf[:], k.Token0.Bytes())
	copy(buf[common.AddressLength:], k.Token1.Bytes())
	buf[40] = byte(k.Fee >> 16)
	buf[41] = byte(k.Fee >> 8)
	buf[42] = byte(k.Fee)
	return common.Hash(blake3.Sum256(buf[:]))
}

// SortTokens orders two tokens by address bytes.
func SortTokens(a, b common.Address) (common.Address, common.Address, error) {
	switch c := bytes.Compare(a.Bytes(), b.Bytes()); {
	case c == 0:
		return common.Address{}, common.Address{}, ErrIdenticalTokens
	case c < 0:
		return a, b, nil
	default:
		return b, a, nil
	}
}

// TickSpacing returns the tick spacing of an enabled fee tier.
func TickSpacing(fee uint32) (int, bool) {
	spacing, ok := cons.TickSpaces[fee]
	return spacing, ok
}

type MintParams struct {
	Token0         common.Address
	Token1         common.Address
	Fee            uint32
	TickLower      int
	TickUpper      int
	Amount0Desired *ui.Int
	Amount1Desired *ui.Int
	Amount0Min     *ui.Int
	Amount1Min     *ui.Int
	Recipient      common.Address
	Deadline       time.Time
}

type MintResult struct {
	TokenID   PositionID
	Liquidity *ui.Int
	Amount0   *ui.Int
	Amount1   *ui.Int
}

type IncreaseLiquidityParams struct {
	TokenID        PositionID
	Amount0Desired *ui.Int
	Amount1Desired *ui.Int
	Amount0Min     *ui.Int
	Amount1Min     *ui.Int
	Deadline       time.Time
}

type IncreaseLiquidityResult struct {
	Liquidity *ui.Int
	Amount0   *ui.Int
	Amount1   *ui.Int
}

type DecreaseLiquidityParams struct {
	TokenID    PositionID
	Liquidity  *ui.Int
	Amount0Min *ui.Int
	Amount1Min *ui.Int
	Deadline   time.Time
}

type CollectParams struct {
	TokenID    PositionID
	Recipient  common.Address
	Amount0Max *ui.Int
	Amount1Max *ui.Int
}

// PositionInfo is what the position manager reports for an NFT.
type PositionInfo struct {
	Operator                 common.Address
	Token0                   common.Address
	Token1                   common.Address
	Fee                      uint32
	TickLower                int
	TickUpper                int
	Liquidity                *ui.Int
	FeeGrowthInside0LastX128 *ui.Int
	FeeGrowthInside1LastX128 *ui.Int
	TokensOwed0              *ui.Int
	TokensOwed1              *ui.Int
}

type ExactInputParams struct {
	Path             Path
	Recipient        common.Address
	Deadline         time.Time
	AmountIn         *ui.Int
	AmountOutMinimum *ui.Int
}

// ExactOutputParams carries a path encoded output token first.
type ExactOutputParams struct {
	Path            Path
	Recipient       common.Address
	Deadline        time.Time
	AmountOut       *ui.Int
	AmountInMaximum *ui.Int
}

const (
	feeSize    = 3
	hopOffset  = common.AddressLength + feeSize
	minPathLen = hopOffset + common.AddressLength
)

var ErrInvalidPath = errors.New("periphery: invalid path")

// Path is a packed swap path: token | fee | token | fee | token ...
type Path []byte

// Hop is one pool traversal of a path.
type Hop struct {
	TokenIn  common.Address
	TokenOut common.Address
	Fee      uint32
}

// EncodePath packs tokens and the fees between them.
func EncodePath(tokens []common.Address, fees []uint32) (Path, error) {
	if len(tokens) < 2 || len(fees) != len(tokens)-1 {
		return nil, ErrInvalidPath
	}
	out := make([]byte, 0, len(tokens)*common.AddressLength+len(fees)*feeSize)
	for i, token := range tokens {
		out = append(out, token.Bytes()...)
		if i < len(fees) {
			var fee [4]byte
			binary.BigEndian.PutUint32(fee[:], fees[i])
			out = append(out, fee[1:]...)
		}
	}
	return out, nil
}

func (p Path) valid() bool {
	return len(p) >= minPathLen && (len(p)-common.AddressLength)%hopOffset == 0
}

// Hops decodes the path in encoding order.
func (p Path) Hops() ([]Hop, error) {
	if !p.valid() {
		return nil, ErrInvalidPath
	}
	hops := make([]Hop, 0, (len(p)-common.AddressLength)/hopOffset)
	for off := 0; off+minPathLen <= len(p); off += hopOffset {
		hops = append(hops, Hop{
			TokenIn:  common.BytesToAddress(p[off : off+common.AddressLength]),
			Fee:      uint32(p[off+20])<<16 | uint32(p[off+21])<<8 | uint32(p[off+22]),
			TokenOut: common.BytesToAddress(p[off+hopOffset : off+minPathLen]),
		})
	}
	return hops, nil
}

// First returns the first token of the path.
func (p Path) First() (common.Address, error) {
	if !p.valid() {
		return common.Address{}, ErrInvalidPath
	}
	return common.BytesToAddress(p[:common.AddressLength]), nil
}

// Last returns the last token of the path.
func (p Path) Last() (common.Address, error) {
	if !p.valid() {
		return common.Address{}, ErrInvalidPath
	}
	return common.BytesToAddress(p[len(p)-common.AddressLength:]), nil
}
