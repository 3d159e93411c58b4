// Package ledgertest is a conformance suite every ledger.Store must pass.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	Alice  = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	Bob    = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	AssetA = common.HexToAddress("0x0000000000000000000000000000000000000001")
	AssetB = common.HexToAddress("0x0000000000000000000000000000000000000002")
)

// NewPosition builds a valid record for tests.
func NewPosition(id periphery.PositionID, owner common.Address, liquidity uint64) ledger.Position {
	return ledger.Position{
		ID:        id,
		Owner:     owner,
		Liquidity: ui.NewInt(liquidity),
		AssetLow:  AssetA,
		AssetHigh: AssetB,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Run exercises a store produced by newStore.
func Run(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Run("InsertAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var cs ledger.ChangeSet
		cs.Insert(NewPosition(7, Alice, 1000))
		require.NoError(t, s.Commit(ctx, cs))

		got, err := s.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, Alice, got.Owner)
		assert.Equal(t, AssetA, got.AssetLow)
		assert.Equal(t, AssetB, got.AssetHigh)
		assert.Equal(t, uint64(1000), got.Liquidity.Uint64())
		assert.True(t, got.CreatedAt.Equal(NewPosition(7, Alice, 0).CreatedAt))

		_, err = s.Get(ctx, 8)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
	})

	t.Run("LargeLiquidity", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		p := NewPosition(1, Alice, 0)
		p.Liquidity = new(ui.Int).Lsh(ui.NewInt(1), 127)
		var cs ledger.ChangeSet
		cs.Insert(p)
		require.NoError(t, s.Commit(ctx, cs))
		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.True(t, got.Liquidity.Eq(p.Liquidity))
	})

	t.Run("UpdateLiquidity", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var cs ledger.ChangeSet
		cs.Insert(NewPosition(1, Alice, 1000))
		require.NoError(t, s.Commit(ctx, cs))

		var upd ledger.ChangeSet
		upd.SetLiquidity(1, ui.NewInt(400))
		require.NoError(t, s.Commit(ctx, upd))
		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(400), got.Liquidity.Uint64())
		assert.Equal(t, Alice, got.Owner)
	})

	t.Run("CommitIsAtomic", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var cs ledger.ChangeSet
		cs.Insert(NewPosition(1, Alice, 1000))
		require.NoError(t, s.Commit(ctx, cs))

		var bad ledger.ChangeSet
		bad.Insert(NewPosition(2, Bob, 10))
		bad.SetLiquidity(1, ui.NewInt(1))
		bad.SetLiquidity(99, ui.NewInt(1))
		assert.ErrorIs(t, s.Commit(ctx, bad), ledger.ErrNotFound)

		_, err := s.Get(ctx, 2)
		assert.ErrorIs(t, err, ledger.ErrNotFound)
		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), got.Liquidity.Uint64())
	})

	t.Run("RejectsDuplicatesAndInvalid", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var cs ledger.ChangeSet
		cs.Insert(NewPosition(1, Alice, 1000))
		require.NoError(t, s.Commit(ctx, cs))
		assert.ErrorIs(t, s.Commit(ctx, cs), ledger.ErrAlreadyExists)

		noOwner := NewPosition(2, common.Address{}, 1)
		var invalid ledger.ChangeSet
		invalid.Insert(noOwner)
		assert.ErrorIs(t, s.Commit(ctx, invalid), ledger.ErrInvalidPosition)

		reversed := NewPosition(3, Alice, 1)
		reversed.AssetLow, reversed.AssetHigh = AssetB, AssetA
		invalid = ledger.ChangeSet{}
		invalid.Insert(reversed)
		assert.ErrorIs(t, s.Commit(ctx, invalid), ledger.ErrInvalidPosition)
	})

	t.Run("ListByOwner", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		var cs ledger.ChangeSet
		cs.Insert(NewPosition(3, Alice, 1))
		cs.Insert(NewPosition(1, Alice, 1))
		cs.Insert(NewPosition(2, Bob, 1))
		require.NoError(t, s.Commit(ctx, cs))
		n, err = s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := s.ListByOwner(ctx, Alice)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, periphery.PositionID(1), got[0].ID)
		assert.Equal(t, periphery.PositionID(3), got[1].ID)

		none, err := s.ListByOwner(ctx, common.HexToAddress("0xdead"))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("ReturnsCopies", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		var cs ledger.ChangeSet
		cs.Insert(NewPosition(1, Alice, 1000))
		require.NoError(t, s.Commit(ctx, cs))
		got, err := s.Get(ctx, 1)
		require.NoError(t, err)
		got.Liquidity.SetUint64(0)
		again, err := s.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), again.Liquidity.Uint64())
	})
}
