package amm

import (
	"context"
	"fmt"
	"time"

	"github.com/ftchann/uniswap-custody/lib/chain"
	cons "github.com/ftchann/uniswap-custody/lib/constants"
	"github.com/ftchann/uniswap-custody/lib/fullmath"
	la "github.com/ftchann/uniswap-custody/lib/liquidity_amounts"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/pool"
	"github.com/ftchann/uniswap-custody/lib/tickmath"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type nft struct {
	owner                    common.Address
	poolID                   common.Hash
	key                      periphery.PoolKey
	tickLower                int
	tickUpper                int
	liquidity                *ui.Int
	feeGrowthInside0LastX128 *ui.Int
	feeGrowthInside1LastX128 *ui.Int
	tokensOwed0              *ui.Int
	tokensOwed1              *ui.Int
}

func (n *nft) clone() *nft {
	c := *n
	c.liquidity = n.liquidity.Clone()
	c.feeGrowthInside0LastX128 = n.feeGrowthInside0LastX128.Clone()
	c.feeGrowthInside1LastX128 = n.feeGrowthInside1LastX128.Clone()
	c.tokensOwed0 = n.tokensOwed0.Clone()
	c.tokensOwed1 = n.tokensOwed1.Clone()
	return &c
}

// accrue credits fees earned since the last checkpoint at the pool's current
// fee growth inside the range.
func (n *nft) accrue(p *pool.Pool) error {
	inside0, inside1 := p.FeeGrowthInside(n.tickLower, n.tickUpper)
	owed0, err := fullmath.MulDiv(new(ui.Int).Sub(inside0, n.feeGrowthInside0LastX128), n.liquidity, cons.Q128)
	if err != nil {
		return err
	}
	owed1, err := fullmath.MulDiv(new(ui.Int).Sub(inside1, n.feeGrowthInside1LastX128), n.liquidity, cons.Q128)
	if err != nil {
		return err
	}
	n.tokensOwed0.Add(n.tokensOwed0, owed0)
	n.tokensOwed1.Add(n.tokensOwed1, owed1)
	n.feeGrowthInside0LastX128 = inside0
	n.feeGrowthInside1LastX128 = inside1
	return nil
}

// PositionManager wraps pool positions in non-fungible tokens. All pool level
// positions are owned by the manager's address.
type PositionManager struct {
	chain   *chain.Chain
	factory *Factory
	address common.Address
	nextID  periphery.PositionID
	tokens  map[periphery.PositionID]*nft
}

func NewPositionManager(c *chain.Chain, f *Factory) *PositionManager {
	return &PositionManager{
		chain:   c,
		factory: f,
		address: chain.AddressOf("nonfungible-position-manager"),
		nextID:  1,
		tokens:  make(map[periphery.PositionID]*nft),
	}
}

func (m *PositionManager) Address() common.Address { return m.address }

func (m *PositionManager) checkDeadline(deadline time.Time) error {
	if now := m.chain.Now(); now.After(deadline) {
		return fmt.Errorf("%w: deadline %s before block time %s", ErrTransactionTooOld, deadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

func (m *PositionManager) setToken(id periphery.PositionID, n *nft) {
	prev, had := m.tokens[id]
	m.chain.Record(func() {
		if had {
			m.tokens[id] = prev
		} else {
			delete(m.tokens, id)
		}
	})
	m.tokens[id] = n
}

func (m *PositionManager) token(id periphery.PositionID) (*nft, error) {
	n, ok := m.tokens[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTokenID, id)
	}
	return n, nil
}

func (m *PositionManager) authorized(sender common.Address, id periphery.PositionID) (*nft, error) {
	n, err := m.token(id)
	if err != nil {
		return nil, err
	}
	if n.owner != sender {
		return nil, fmt.Errorf("%w: %s for token %d", ErrNotApproved, sender.Hex(), id)
	}
	return n, nil
}

// OwnerOf returns the holder of a position NFT.
func (m *PositionManager) OwnerOf(id periphery.PositionID) (common.Address, error) {
	n, err := m.token(id)
	if err != nil {
		return common.Address{}, err
	}
	return n.owner, nil
}

// CreateAndInitializePoolIfNecessary returns the existing pool for the key or
// creates one at the given price. The price is ignored for existing pools.
func (m *PositionManager) CreateAndInitializePoolIfNecessary(ctx context.Context, token0, token1 common.Address, fee uint32, sqrtPriceX96 *ui.Int) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	key := periphery.PoolKey{Token0: token0, Token1: token1, Fee: fee}
	if id, ok := m.factory.Lookup(key); ok {
		return id, nil
	}
	var id common.Hash
	err := m.chain.Atomic(func() error {
		var err error
		id, err = m.factory.CreatePool(key, sqrtPriceX96)
		return err
	})
	return id, err
}

// addLiquidity mints liquidity for amounts paid by payer and returns the pool
// position's fee growth checkpoint.
func (m *PositionManager) addLiquidity(payer common.Address, poolID common.Hash, key periphery.PoolKey, lower, upper int, amount0Desired, amount1Desired, amount0Min, amount1Min *ui.Int) (liquidity, amount0, amount1, inside0, inside1 *ui.Int, err error) {
	account, err := m.factory.Account(poolID)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	err = m.factory.mutate(poolID, func(p *pool.Pool) error {
		sqrtLower, err := tickmath.GetSqrtRatioAtTick(lower)
		if err != nil {
			return err
		}
		sqrtUpper, err := tickmath.GetSqrtRatioAtTick(upper)
		if err != nil {
			return err
		}
		liquidity, err = la.GetLiquidityForAmounts(p.SqrtRatioX96, sqrtLower, sqrtUpper, amount0Desired, amount1Desired)
		if err != nil {
			return err
		}
		if liquidity.IsZero() {
			return ErrZeroLiquidity
		}
		if amount0, amount1, err = p.Mint(m.address, lower, upper, liquidity); err != nil {
			return err
		}
		if amount0.Lt(amount0Min) || amount1.Lt(amount1Min) {
			return fmt.Errorf("%w: got (%s, %s), minimum (%s, %s)", ErrPriceSlippage, amount0, amount1, amount0Min, amount1Min)
		}
		pos, _ := p.Position(m.address, lower, upper)
		inside0, inside1 = pos.FeeGrowthInside0LastX128, pos.FeeGrowthInside1LastX128
		return nil
	})
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if err := m.chain.TransferFrom(key.Token0, m.address, payer, account, amount0); err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if err := m.chain.TransferFrom(key.Token1, m.address, payer, account, amount1); err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return liquidity, amount0, amount1, inside0, inside1, nil
}

// Mint creates a new position NFT for params.Recipient, paid by sender.
func (m *PositionManager) Mint(ctx context.Context, sender common.Address, params periphery.MintParams) (periphery.MintResult, error) {
	if err := ctx.Err(); err != nil {
		return periphery.MintResult{}, err
	}
	if err := m.checkDeadline(params.Deadline); err != nil {
		return periphery.MintResult{}, err
	}
	key := periphery.PoolKey{Token0: params.Token0, Token1: params.Token1, Fee: params.Fee}
	poolID, ok := m.factory.Lookup(key)
	if !ok {
		return periphery.MintResult{}, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, key.Token0.Hex(), key.Token1.Hex(), key.Fee)
	}

	var result periphery.MintResult
	err := m.chain.Atomic(func() error {
		liquidity, amount0, amount1, inside0, inside1, err := m.addLiquidity(sender, poolID, key, params.TickLower, params.TickUpper,
			params.Amount0Desired, params.Amount1Desired, orZero(params.Amount0Min), orZero(params.Amount1Min))
		if err != nil {
			return err
		}
		id := m.nextID
		m.nextID++
		m.chain.Record(func() { m.nextID = id })
		m.setToken(id, &nft{
			owner:                    params.Recipient,
			poolID:                   poolID,
			key:                      key,
			tickLower:                params.TickLower,
			tickUpper:                params.TickUpper,
			liquidity:                liquidity.Clone(),
			feeGrowthInside0LastX128: inside0,
			feeGrowthInside1LastX128: inside1,
			tokensOwed0:              new(ui.Int),
			tokensOwed1:              new(ui.Int),
		})
		result = periphery.MintResult{TokenID: id, Liquidity: liquidity, Amount0: amount0, Amount1: amount1}
		return nil
	})
	return result, err
}

// IncreaseLiquidity adds liquidity to an existing NFT. Anyone may pay for it.
func (m *PositionManager) IncreaseLiquidity(ctx context.Context, sender common.Address, params periphery.IncreaseLiquidityParams) (periphery.IncreaseLiquidityResult, error) {
	if err := ctx.Err(); err != nil {
		return periphery.IncreaseLiquidityResult{}, err
	}
	if err := m.checkDeadline(params.Deadline); err != nil {
		return periphery.IncreaseLiquidityResult{}, err
	}
	current, err := m.token(params.TokenID)
	if err != nil {
		return periphery.IncreaseLiquidityResult{}, err
	}

	var result periphery.IncreaseLiquidityResult
	err = m.chain.Atomic(func() error {
		liquidity, amount0, amount1, inside0, inside1, err := m.addLiquidity(sender, current.poolID, current.key, current.tickLower, current.tickUpper,
			params.Amount0Desired, params.Amount1Desired, orZero(params.Amount0Min), orZero(params.Amount1Min))
		if err != nil {
			return err
		}
		n := current.clone()
		owed0, err := fullmath.MulDiv(new(ui.Int).Sub(inside0, n.feeGrowthInside0LastX128), n.liquidity, cons.Q128)
		if err != nil {
			return err
		}
		owed1, err := fullmath.MulDiv(new(ui.Int).Sub(inside1, n.feeGrowthInside1LastX128), n.liquidity, cons.Q128)
		if err != nil {
			return err
		}
		n.tokensOwed0.Add(n.tokensOwed0, owed0)
		n.tokensOwed1.Add(n.tokensOwed1, owed1)
		n.feeGrowthInside0LastX128, n.feeGrowthInside1LastX128 = inside0, inside1
		n.liquidity.Add(n.liquidity, liquidity)
		m.setToken(params.TokenID, n)
		result = periphery.IncreaseLiquidityResult{Liquidity: liquidity, Amount0: amount0, Amount1: amount1}
		return nil
	})
	return result, err
}

// DecreaseLiquidity burns liquidity and credits the released amounts to the
// NFT's owed balances. Nothing is transferred until Collect.
func (m *PositionManager) DecreaseLiquidity(ctx context.Context, sender common.Address, params periphery.DecreaseLiquidityParams) (*ui.Int, *ui.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := m.checkDeadline(params.Deadline); err != nil {
		return nil, nil, err
	}
	current, err := m.authorized(sender, params.TokenID)
	if err != nil {
		return nil, nil, err
	}
	if params.Liquidity == nil || params.Liquidity.IsZero() {
		return nil, nil, ErrZeroLiquidity
	}
	if params.Liquidity.Gt(current.liquidity) {
		return nil, nil, fmt.Errorf("%w: burn %s of %s", pool.ErrInsufficient, params.Liquidity, current.liquidity)
	}

	var amount0, amount1 *ui.Int
	err = m.chain.Atomic(func() error {
		n := current.clone()
		err := m.factory.mutate(n.poolID, func(p *pool.Pool) error {
			var err error
			if amount0, amount1, err = p.Burn(m.address, n.tickLower, n.tickUpper, params.Liquidity); err != nil {
				return err
			}
			if amount0.Lt(orZero(params.Amount0Min)) || amount1.Lt(orZero(params.Amount1Min)) {
				return fmt.Errorf("%w: got (%s, %s)", ErrPriceSlippage, amount0, amount1)
			}
			return n.accrue(p)
		})
		if err != nil {
			return err
		}
		n.tokensOwed0.Add(n.tokensOwed0, amount0)
		n.tokensOwed1.Add(n.tokensOwed1, amount1)
		n.liquidity.Sub(n.liquidity, params.Liquidity)
		m.setToken(params.TokenID, n)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Collect transfers up to the requested owed amounts to params.Recipient.
func (m *PositionManager) Collect(ctx context.Context, sender common.Address, params periphery.CollectParams) (*ui.Int, *ui.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	current, err := m.authorized(sender, params.TokenID)
	if err != nil {
		return nil, nil, err
	}
	max0, max1 := orZero(params.Amount0Max), orZero(params.Amount1Max)
	if max0.IsZero() && max1.IsZero() {
		return nil, nil, ErrNothingToCollect
	}
	recipient := params.Recipient
	if recipient == (common.Address{}) {
		recipient = m.address
	}
	account, err := m.factory.Account(current.poolID)
	if err != nil {
		return nil, nil, err
	}

	var amount0, amount1 *ui.Int
	err = m.chain.Atomic(func() error {
		n := current.clone()
		err := m.factory.mutate(n.poolID, func(p *pool.Pool) error {
			if !n.liquidity.IsZero() {
				if _, _, err := p.Burn(m.address, n.tickLower, n.tickUpper, new(ui.Int)); err != nil {
					return err
				}
				if err := n.accrue(p); err != nil {
					return err
				}
			}
			amount0 = minOf(max0, n.tokensOwed0)
			amount1 = minOf(max1, n.tokensOwed1)
			_, _, err := p.Collect(m.address, n.tickLower, n.tickUpper, amount0, amount1)
			return err
		})
		if err != nil {
			return err
		}
		n.tokensOwed0.Sub(n.tokensOwed0, amount0)
		n.tokensOwed1.Sub(n.tokensOwed1, amount1)
		m.setToken(params.TokenID, n)
		if err := m.chain.Transfer(n.key.Token0, account, recipient, amount0); err != nil {
			return err
		}
		return m.chain.Transfer(n.key.Token1, account, recipient, amount1)
	})
	if err != nil {
		return nil, nil, err
	}
	return amount0, amount1, nil
}

// Positions reports an NFT's position. Owed amounts are as of the last
// interaction, like the on-chain getter.
func (m *PositionManager) Positions(ctx context.Context, id periphery.PositionID) (periphery.PositionInfo, error) {
	if err := ctx.Err(); err != nil {
		return periphery.PositionInfo{}, err
	}
	n, err := m.token(id)
	if err != nil {
		return periphery.PositionInfo{}, err
	}
	return periphery.PositionInfo{
		Token0:                   n.key.Token0,
		Token1:                   n.key.Token1,
		Fee:                      n.key.Fee,
		TickLower:                n.tickLower,
		TickUpper:                n.tickUpper,
		Liquidity:                n.liquidity.Clone(),
		FeeGrowthInside0LastX128: n.feeGrowthInside0LastX128.Clone(),
		FeeGrowthInside1LastX128: n.feeGrowthInside1LastX128.Clone(),
		TokensOwed0:              n.tokensOwed0.Clone(),
		TokensOwed1:              n.tokensOwed1.Clone(),
	}, nil
}

func orZero(v *ui.Int) *ui.Int {
	if v == nil {
		return new(ui.Int)
	}
	return v
}

func minOf(a, b *ui.Int) *ui.Int {
	if a.Lt(b) {
		return a.Clone()
	}
	return b.Clone()
}
