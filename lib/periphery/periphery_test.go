package periphery

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	tokenC = common.HexToAddress("0x00000000000000000000000000000000000000cc")
)

func TestSortTokens(t *testing.T) {
	low, high, err := SortTokens(tokenB, tokenA)
	require.NoError(t, err)
	assert.Equal(t, tokenA, low)
	assert.Equal(t, tokenB, high)

	_, _, err = SortTokens(tokenA, tokenA)
	assert.ErrorIs(t, err, ErrIdenticalTokens)
}

func TestPoolKeyID(t *testing.T) {
	k := PoolKey{Token0: tokenA, Token1: tokenB, Fee: 3000}
	assert.Equal(t, k.ID(), PoolKey{Token0: tokenA, Token1: tokenB, Fee: 3000}.ID())
	assert.NotEqual(t, k.ID(), PoolKey{Token0: tokenA, Token1: tokenB, Fee: 500}.ID())
	assert.NotEqual(t, k.ID(), PoolKey{Token0: tokenA, Token1: tokenC, Fee: 3000}.ID())
}

func TestPathRoundTrip(t *testing.T) {
	path, err := EncodePath([]common.Address{tokenA, tokenB, tokenC}, []uint32{3000, 500})
	require.NoError(t, err)
	require.Len(t, path, 20+3+20+3+20)

	hops, err := path.Hops()
	require.NoError(t, err)
	assert.Equal(t, []Hop{
		{TokenIn: tokenA, TokenOut: tokenB, Fee: 3000},
		{TokenIn: tokenB, TokenOut: tokenC, Fee: 500},
	}, hops)

	first, err := path.First()
	require.NoError(t, err)
	assert.Equal(t, tokenA, first)
	last, err := path.Last()
	require.NoError(t, err)
	assert.Equal(t, tokenC, last)
}

func TestPathInvalid(t *testing.T) {
	_, err := EncodePath([]common.Address{tokenA}, nil)
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Path(tokenA.Bytes()).Hops()
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = Path(append(tokenA.Bytes(), 0, 0)).First()
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestTickSpacing(t *testing.T) {
	spacing, ok := TickSpacing(3000)
	assert.True(t, ok)
	assert.Equal(t, 60, spacing)
	_, ok = TickSpacing(1234)
	assert.False(t, ok)
}
