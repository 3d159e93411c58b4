package chain

import (
	"context"
	"testing"
	"time"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var genesis = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestAddressOfDeterministic(t *testing.T) {
	assert.Equal(t, AddressOf("alice"), AddressOf("alice"))
	assert.NotEqual(t, AddressOf("alice"), AddressOf("bob"))
}

func TestTransfers(t *testing.T) {
	c := New(genesis)
	token, err := c.DeployToken("USDC", 6)
	require.NoError(t, err)
	_, err = c.DeployToken("USDC", 6)
	require.ErrorIs(t, err, ErrTokenExists)

	alice, bob := AddressOf("alice"), AddressOf("bob")
	require.NoError(t, c.Mint(token, alice, ui.NewInt(100)))

	require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(40)))
	balance, err := c.BalanceOf(token, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(60), balance.Uint64())

	err = c.Transfer(token, alice, bob, ui.NewInt(61))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	err = c.TransferFrom(token, bob, alice, bob, ui.NewInt(1))
	assert.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, c.Approve(token, alice, bob, ui.NewInt(10)))
	require.NoError(t, c.TransferFrom(token, bob, alice, bob, ui.NewInt(4)))
	allowance, err := c.Allowance(token, alice, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), allowance.Uint64())

	_, err = c.BalanceOf(AddressOf("nothing"), alice)
	assert.ErrorIs(t, err, ErrUnknownToken)
}

func TestSnapshotRevert(t *testing.T) {
	c := New(genesis)
	token, err := c.DeployToken("WETH", 18)
	require.NoError(t, err)
	alice, bob := AddressOf("alice"), AddressOf("bob")
	require.NoError(t, c.Mint(token, alice, ui.NewInt(100)))

	outer := c.Snapshot()
	require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(10)))
	inner := c.Snapshot()
	require.NoError(t, c.Approve(token, alice, bob, ui.NewInt(5)))
	require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(20)))

	c.RevertToSnapshot(inner)
	balance, _ := c.BalanceOf(token, bob)
	assert.Equal(t, uint64(10), balance.Uint64())
	allowance, _ := c.Allowance(token, alice, bob)
	assert.True(t, allowance.IsZero())

	c.RevertToSnapshot(outer)
	balance, _ = c.BalanceOf(token, alice)
	assert.Equal(t, uint64(100), balance.Uint64())
	balance, _ = c.BalanceOf(token, bob)
	assert.True(t, balance.IsZero())

	assert.ErrorIs(t, c.RevertTo(inner), ErrUnknownSnapshot)
}

func TestDiscardSnapshot(t *testing.T) {
	c := New(genesis)
	token, err := c.DeployToken("WBTC", 8)
	require.NoError(t, err)
	alice, bob := AddressOf("alice"), AddressOf("bob")
	require.NoError(t, c.Mint(token, alice, ui.NewInt(100)))
	assert.Empty(t, c.journal)

	outer := c.Snapshot()
	require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(10)))
	inner := c.Snapshot()
	require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(20)))
	c.DiscardSnapshot(inner)
	assert.NotEmpty(t, c.journal)
	assert.ErrorIs(t, c.RevertTo(inner), ErrUnknownSnapshot)

	// the outer snapshot still undoes what the discarded one kept
	c.RevertToSnapshot(outer)
	balance, _ := c.BalanceOf(token, bob)
	assert.True(t, balance.IsZero())

	for i := 0; i < 5; i++ {
		id := c.Snapshot()
		require.NoError(t, c.Transfer(token, alice, bob, ui.NewInt(1)))
		c.DiscardSnapshot(id)
	}
	assert.Empty(t, c.journal)
	assert.Empty(t, c.validRevisions)
	balance, _ = c.BalanceOf(token, bob)
	assert.Equal(t, uint64(5), balance.Uint64())
}

func TestAtomic(t *testing.T) {
	c := New(genesis)
	token, err := c.DeployToken("DAI", 18)
	require.NoError(t, err)
	alice, bob := AddressOf("alice"), AddressOf("bob")
	require.NoError(t, c.Mint(token, alice, ui.NewInt(50)))

	err = c.Atomic(func() error {
		if err := c.Transfer(token, alice, bob, ui.NewInt(30)); err != nil {
			return err
		}
		return c.Transfer(token, alice, bob, ui.NewInt(30))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	balance, _ := c.BalanceOf(token, alice)
	assert.Equal(t, uint64(50), balance.Uint64())

	require.NoError(t, c.Atomic(func() error { return c.Transfer(token, alice, bob, ui.NewInt(30)) }))
	assert.Empty(t, c.journal)
	assert.Empty(t, c.validRevisions)
}

func TestMover(t *testing.T) {
	ctx := context.Background()
	c := New(genesis)
	token, err := c.DeployToken("DAI", 18)
	require.NoError(t, err)
	custody, alice, spender := AddressOf("custody"), AddressOf("alice"), AddressOf("router")
	require.NoError(t, c.Mint(token, alice, ui.NewInt(50)))

	m := c.Mover(custody)
	assert.ErrorIs(t, m.Pull(ctx, token, alice, custody, ui.NewInt(10)), ErrInsufficientAllowance)

	require.NoError(t, c.Approve(token, alice, custody, ui.NewInt(10)))
	require.NoError(t, m.Pull(ctx, token, alice, custody, ui.NewInt(10)))
	require.NoError(t, m.SetAllowance(ctx, token, spender, ui.NewInt(7)))
	allowance, _ := c.Allowance(token, custody, spender)
	assert.Equal(t, uint64(7), allowance.Uint64())
	require.NoError(t, m.Push(ctx, token, alice, ui.NewInt(10)))
	balance, _ := c.BalanceOf(token, alice)
	assert.Equal(t, uint64(50), balance.Uint64())
}

func TestAdvance(t *testing.T) {
	c := New(genesis)
	c.Advance(time.Hour)
	c.Advance(-time.Minute)
	assert.Equal(t, genesis.Add(time.Hour), c.Now())
}
