package amm

import (
	"context"
	"testing"
	"time"

	"github.com/ftchann/uniswap-custody/lib/chain"
	cons "github.com/ftchann/uniswap-custody/lib/constants"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	chain   *chain.Chain
	factory *Factory
	manager *PositionManager
	router  *Router
	token0  common.Address
	token1  common.Address
	token2  common.Address
	alice   common.Address
	bob     common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := chain.New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	f := NewFactory(c)
	fx := &fixture{
		chain:   c,
		factory: f,
		manager: NewPositionManager(c, f),
		router:  NewRouter(c, f),
		alice:   chain.AddressOf("alice"),
		bob:     chain.AddressOf("bob"),
	}
	var tokens []common.Address
	for _, symbol := range []string{"AAA", "BBB", "CCC"} {
		addr, err := c.DeployToken(symbol, 18)
		require.NoError(t, err)
		tokens = append(tokens, addr)
		for _, account := range []common.Address{fx.alice, fx.bob} {
			require.NoError(t, c.Mint(addr, account, ui.NewInt(1_000_000_000)))
			require.NoError(t, c.Approve(addr, account, fx.manager.Address(), new(ui.Int).SetAllOne()))
			require.NoError(t, c.Approve(addr, account, fx.router.Address(), new(ui.Int).SetAllOne()))
		}
	}
	fx.token0, fx.token1, _ = periphery.SortTokens(tokens[0], tokens[1])
	fx.token2 = tokens[2]
	return fx
}

func (fx *fixture) createPool(t *testing.T, a, b common.Address) common.Hash {
	t.Helper()
	token0, token1, err := periphery.SortTokens(a, b)
	require.NoError(t, err)
	id, err := fx.manager.CreateAndInitializePoolIfNecessary(context.Background(), token0, token1, 3000, cons.Q96)
	require.NoError(t, err)
	return id
}

func (fx *fixture) mintFullRange(t *testing.T, owner, a, b common.Address, amount uint64) periphery.MintResult {
	t.Helper()
	token0, token1, err := periphery.SortTokens(a, b)
	require.NoError(t, err)
	res, err := fx.manager.Mint(context.Background(), owner, periphery.MintParams{
		Token0:         token0,
		Token1:         token1,
		Fee:            3000,
		TickLower:      tickmath.MinUsableTick(60),
		TickUpper:      tickmath.MaxUsableTick(60),
		Amount0Desired: ui.NewInt(amount),
		Amount1Desired: ui.NewInt(amount),
		Recipient:      owner,
		Deadline:       fx.chain.Now(),
	})
	require.NoError(t, err)
	return res
}

func balance(t *testing.T, c *chain.Chain, token, account common.Address) uint64 {
	t.Helper()
	b, err := c.BalanceOf(token, account)
	require.NoError(t, err)
	return b.Uint64()
}

func TestCreateAndInitializeIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	first := fx.createPool(t, fx.token0, fx.token1)
	again, err := fx.manager.CreateAndInitializePoolIfNecessary(ctx, fx.token0, fx.token1, 3000, new(ui.Int).Lsh(cons.Q96, 1))
	require.NoError(t, err)
	assert.Equal(t, first, again)

	p, err := fx.factory.Pool(first)
	require.NoError(t, err)
	assert.True(t, p.SqrtRatioX96.Eq(cons.Q96), "existing pool must keep its price")

	_, err = fx.manager.CreateAndInitializePoolIfNecessary(ctx, fx.token1, fx.token0, 500, cons.Q96)
	assert.ErrorIs(t, err, ErrUnsortedTokens)
}

func TestMintPaysFromSender(t *testing.T) {
	fx := newFixture(t)
	fx.createPool(t, fx.token0, fx.token1)
	res := fx.mintFullRange(t, fx.alice, fx.token0, fx.token1, 1000)

	assert.Equal(t, periphery.PositionID(1), res.TokenID)
	assert.False(t, res.Liquidity.IsZero())
	assert.LessOrEqual(t, res.Amount0.Uint64(), uint64(1000))
	assert.Equal(t, 1_000_000_000-res.Amount0.Uint64(), balance(t, fx.chain, fx.token0, fx.alice))

	owner, err := fx.manager.OwnerOf(res.TokenID)
	require.NoError(t, err)
	assert.Equal(t, fx.alice, owner)

	info, err := fx.manager.Positions(context.Background(), res.TokenID)
	require.NoError(t, err)
	assert.True(t, info.Liquidity.Eq(res.Liquidity))
	assert.Equal(t, fx.token0, info.Token0)
}

func TestMintDeadlineAndMissingPool(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	params := periphery.MintParams{
		Token0: fx.token0, Token1: fx.token1, Fee: 3000,
		TickLower: -60, TickUpper: 60,
		Amount0Desired: ui.NewInt(10), Amount1Desired: ui.NewInt(10),
		Recipient: fx.alice, Deadline: fx.chain.Now(),
	}
	_, err := fx.manager.Mint(ctx, fx.alice, params)
	assert.ErrorIs(t, err, ErrPoolNotFound)

	fx.createPool(t, fx.token0, fx.token1)
	params.Deadline = fx.chain.Now().Add(-time.Second)
	_, err = fx.manager.Mint(ctx, fx.alice, params)
	assert.ErrorIs(t, err, ErrTransactionTooOld)
}

func TestMintRevertsOnUnfundedSender(t *testing.T) {
	fx := newFixture(t)
	fx.createPool(t, fx.token0, fx.token1)
	poor := chain.AddressOf("poor")
	_, err := fx.manager.Mint(context.Background(), poor, periphery.MintParams{
		Token0: fx.token0, Token1: fx.token1, Fee: 3000,
		TickLower: -60, TickUpper: 60,
		Amount0Desired: ui.NewInt(10_000), Amount1Desired: ui.NewInt(10_000),
		Recipient: poor, Deadline: fx.chain.Now(),
	})
	require.ErrorIs(t, err, chain.ErrInsufficientAllowance)

	_, err = fx.manager.Positions(context.Background(), 1)
	assert.ErrorIs(t, err, ErrInvalidTokenID, "failed mint must not leave an NFT behind")
	id, _ := fx.factory.Lookup(periphery.PoolKey{Token0: fx.token0, Token1: fx.token1, Fee: 3000})
	p, err := fx.factory.Pool(id)
	require.NoError(t, err)
	assert.True(t, p.Liquidity.IsZero())
}

func TestSwapAccruesCollectableFees(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.createPool(t, fx.token0, fx.token1)
	res := fx.mintFullRange(t, fx.alice, fx.token0, fx.token1, 1_000_000)

	path, err := periphery.EncodePath([]common.Address{fx.token0, fx.token1}, []uint32{3000})
	require.NoError(t, err)
	out, err := fx.router.ExactInput(ctx, fx.bob, periphery.ExactInputParams{
		Path: path, Recipient: fx.bob, Deadline: fx.chain.Now(), AmountIn: ui.NewInt(10_000),
	})
	require.NoError(t, err)
	assert.False(t, out.IsZero())
	assert.Equal(t, 1_000_000_000+out.Uint64(), balance(t, fx.chain, fx.token1, fx.bob))

	_, _, err = fx.manager.Collect(ctx, fx.bob, periphery.CollectParams{
		TokenID: res.TokenID, Recipient: fx.bob, Amount0Max: periphery.MaxUint128, Amount1Max: periphery.MaxUint128,
	})
	assert.ErrorIs(t, err, ErrNotApproved)

	before := balance(t, fx.chain, fx.token0, fx.alice)
	amount0, amount1, err := fx.manager.Collect(ctx, fx.alice, periphery.CollectParams{
		TokenID: res.TokenID, Recipient: fx.alice, Amount0Max: periphery.MaxUint128, Amount1Max: periphery.MaxUint128,
	})
	require.NoError(t, err)
	assert.Greater(t, amount0.Uint64(), uint64(0))
	assert.True(t, amount1.IsZero())
	assert.Equal(t, before+amount0.Uint64(), balance(t, fx.chain, fx.token0, fx.alice))
}

func TestDecreaseThenCollect(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.createPool(t, fx.token0, fx.token1)
	res := fx.mintFullRange(t, fx.alice, fx.token0, fx.token1, 1_000_000)

	_, _, err := fx.manager.DecreaseLiquidity(ctx, fx.alice, periphery.DecreaseLiquidityParams{
		TokenID: res.TokenID, Liquidity: new(ui.Int).AddUint64(res.Liquidity, 1), Deadline: fx.chain.Now(),
	})
	assert.Error(t, err)

	half := new(ui.Int).Rsh(res.Liquidity, 1)
	amount0, amount1, err := fx.manager.DecreaseLiquidity(ctx, fx.alice, periphery.DecreaseLiquidityParams{
		TokenID: res.TokenID, Liquidity: half, Deadline: fx.chain.Now(),
	})
	require.NoError(t, err)
	assert.False(t, amount0.IsZero())

	info, err := fx.manager.Positions(ctx, res.TokenID)
	require.NoError(t, err)
	assert.True(t, info.TokensOwed0.Eq(amount0))
	assert.True(t, info.TokensOwed1.Eq(amount1))
	assert.True(t, info.Liquidity.Eq(new(ui.Int).Sub(res.Liquidity, half)))

	got0, got1, err := fx.manager.Collect(ctx, fx.alice, periphery.CollectParams{
		TokenID: res.TokenID, Recipient: fx.alice, Amount0Max: amount0, Amount1Max: amount1,
	})
	require.NoError(t, err)
	assert.True(t, got0.Eq(amount0))
	assert.True(t, got1.Eq(amount1))
}

func TestExactOutputMultiHop(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.createPool(t, fx.token0, fx.token1)
	fx.createPool(t, fx.token1, fx.token2)
	fx.mintFullRange(t, fx.alice, fx.token0, fx.token1, 1_000_000)
	fx.mintFullRange(t, fx.alice, fx.token1, fx.token2, 1_000_000)

	// output first: receive token2, pay token0
	path, err := periphery.EncodePath([]common.Address{fx.token2, fx.token1, fx.token0}, []uint32{3000, 3000})
	require.NoError(t, err)
	before0 := balance(t, fx.chain, fx.token0, fx.bob)
	before2 := balance(t, fx.chain, fx.token2, fx.bob)

	spent, err := fx.router.ExactOutput(ctx, fx.bob, periphery.ExactOutputParams{
		Path: path, Recipient: fx.bob, Deadline: fx.chain.Now(),
		AmountOut: ui.NewInt(1000), AmountInMaximum: ui.NewInt(2000),
	})
	require.NoError(t, err)
	assert.Greater(t, spent.Uint64(), uint64(1000))
	assert.Equal(t, before0-spent.Uint64(), balance(t, fx.chain, fx.token0, fx.bob))
	assert.Equal(t, before2+1000, balance(t, fx.chain, fx.token2, fx.bob))

	_, err = fx.router.ExactOutput(ctx, fx.bob, periphery.ExactOutputParams{
		Path: path, Recipient: fx.bob, Deadline: fx.chain.Now(),
		AmountOut: ui.NewInt(1000), AmountInMaximum: ui.NewInt(1000),
	})
	assert.ErrorIs(t, err, ErrTooMuchRequested)
	assert.Equal(t, before2+1000, balance(t, fx.chain, fx.token2, fx.bob), "failed swap must not move funds")
}

func TestExactInputMinimum(t *testing.T) {
	fx := newFixture(t)
	fx.createPool(t, fx.token0, fx.token1)
	fx.mintFullRange(t, fx.alice, fx.token0, fx.token1, 1_000_000)
	path, err := periphery.EncodePath([]common.Address{fx.token1, fx.token0}, []uint32{3000})
	require.NoError(t, err)
	_, err = fx.router.ExactInput(context.Background(), fx.bob, periphery.ExactInputParams{
		Path: path, Recipient: fx.bob, Deadline: fx.chain.Now(),
		AmountIn: ui.NewInt(1000), AmountOutMinimum: ui.NewInt(1000),
	})
	assert.ErrorIs(t, err, ErrTooLittleReceived)
	assert.Equal(t, uint64(1_000_000_000), balance(t, fx.chain, fx.token1, fx.bob))
}
