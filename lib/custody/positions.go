package custody

import (
	"context"
	"errors"
	"fmt"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/registry"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// MintRequest opens a position. Assets may be given in either order; the
// amounts follow the order of the assets.
type MintRequest struct {
	AssetA    common.Address
	AssetB    common.Address
	Fee       uint32
	AmountA   *ui.Int
	AmountB   *ui.Int
	TickLower int
	TickUpper int
}

// MintReceipt reports amounts in canonical asset order.
type MintReceipt struct {
	Position  periphery.PositionID
	Liquidity *ui.Int
	AssetLow  common.Address
	AssetHigh common.Address
	Amount0   *ui.Int
	Amount1   *ui.Int
	Refund0   *ui.Int
	Refund1   *ui.Int
}

type CollectReceipt struct {
	Position periphery.PositionID
	Owner    common.Address
	Amount0  *ui.Int
	Amount1  *ui.Int
}

type DecreaseReceipt struct {
	Position   periphery.PositionID
	Liquidity  *ui.Int
	Amount0    *ui.Int
	Amount1    *ui.Int
	Settlement Settlement
	// Forwarded0 and Forwarded1 are what reached the owner under SettleForward.
	Forwarded0 *ui.Int
	Forwarded1 *ui.Int
}

type IncreaseReceipt struct {
	Position  periphery.PositionID
	Liquidity *ui.Int
	Amount0   *ui.Int
	Amount1   *ui.Int
	Refund0   *ui.Int
	Refund1   *ui.Int
}

// Mint pulls the desired amounts from caller, mints a position held by the
// custody account, records caller as its owner and returns whatever the
// position manager did not consume.
func (c *Custodian) Mint(ctx context.Context, caller common.Address, req MintRequest) (MintReceipt, error) {
	var receipt MintReceipt
	err := c.run(ctx, OpMint, caller, func(u *unit) error {
		if req.AmountA == nil || req.AmountB == nil {
			return fmt.Errorf("%w: missing desired amount", ErrInvalidRequest)
		}
		if req.TickLower >= req.TickUpper {
			return fmt.Errorf("%w: tick range [%d, %d]", ErrInvalidRequest, req.TickLower, req.TickUpper)
		}
		low, high, swapped, err := registry.Canonicalize(req.AssetA, req.AssetB)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		desired0, desired1 := registry.CanonicalAmounts(swapped, req.AmountA, req.AmountB)

		if err := c.pull(ctx, low, caller, desired0); err != nil {
			return err
		}
		if err := c.pull(ctx, high, caller, desired1); err != nil {
			return err
		}
		manager := c.positions.Address()
		if err := c.approve(ctx, low, manager, desired0); err != nil {
			return err
		}
		if err := c.approve(ctx, high, manager, desired1); err != nil {
			return err
		}

		res, err := c.positions.Mint(ctx, periphery.MintParams{
			Token0:         low,
			Token1:         high,
			Fee:            req.Fee,
			TickLower:      req.TickLower,
			TickUpper:      req.TickUpper,
			Amount0Desired: desired0,
			Amount1Desired: desired1,
			Amount0Min:     new(ui.Int),
			Amount1Min:     new(ui.Int),
			Recipient:      c.self,
			Deadline:       c.now(),
		})
		if err != nil {
			return upstream(err, "mint")
		}
		u.position = res.TokenID

		u.changes.Insert(ledger.Position{
			ID:        res.TokenID,
			Owner:     caller,
			Liquidity: res.Liquidity,
			AssetLow:  low,
			AssetHigh: high,
			CreatedAt: c.now(),
		})
		u.emit(Event{Kind: EventMinted, Liquidity: res.Liquidity, Amount0: res.Amount0, Amount1: res.Amount1})

		refund0, err := c.refund(ctx, u, low, manager, desired0, res.Amount0)
		if err != nil {
			return err
		}
		refund1, err := c.refund(ctx, u, high, manager, desired1, res.Amount1)
		if err != nil {
			return err
		}
		receipt = MintReceipt{
			Position:  res.TokenID,
			Liquidity: res.Liquidity,
			AssetLow:  low,
			AssetHigh: high,
			Amount0:   res.Amount0,
			Amount1:   res.Amount1,
			Refund0:   refund0,
			Refund1:   refund1,
		}
		return nil
	})
	return receipt, err
}

// CollectAllFees collects everything the position manager owes the position
// and forwards it to the recorded owner. Recorded liquidity is unchanged.
func (c *Custodian) CollectAllFees(ctx context.Context, caller common.Address, id periphery.PositionID) (CollectReceipt, error) {
	var receipt CollectReceipt
	err := c.run(ctx, OpCollect, caller, func(u *unit) error {
		pos, err := c.load(ctx, u, id)
		if err != nil {
			return err
		}
		amount0, amount1, err := c.positions.Collect(ctx, periphery.CollectParams{
			TokenID:    id,
			Recipient:  c.self,
			Amount0Max: periphery.MaxUint128.Clone(),
			Amount1Max: periphery.MaxUint128.Clone(),
		})
		if err != nil {
			return upstream(err, "collect position %d", id)
		}
		amount0, amount1 = orZero(amount0), orZero(amount1)
		u.emit(Event{Kind: EventFeesCollected, Amount0: amount0, Amount1: amount1})

		if err := c.push(ctx, pos.AssetLow, pos.Owner, amount0); err != nil {
			return err
		}
		if err := c.push(ctx, pos.AssetHigh, pos.Owner, amount1); err != nil {
			return err
		}
		receipt = CollectReceipt{Position: id, Owner: pos.Owner, Amount0: amount0, Amount1: amount1}
		return nil
	})
	return receipt, err
}

// DecreaseLiquidity removes liquidity from a position. The recorded liquidity
// drops by exactly the requested amount; the released assets are settled
// according to the policy.
func (c *Custodian) DecreaseLiquidity(ctx context.Context, caller common.Address, id periphery.PositionID, liquidity *ui.Int) (DecreaseReceipt, error) {
	var receipt DecreaseReceipt
	err := c.run(ctx, OpDecrease, caller, func(u *unit) error {
		pos, err := c.load(ctx, u, id)
		if err != nil {
			return err
		}
		if liquidity == nil || liquidity.IsZero() {
			return fmt.Errorf("%w: zero liquidity", ErrInvalidRequest)
		}
		if liquidity.Gt(pos.Liquidity) {
			return fmt.Errorf("%w: position %d holds %s, requested %s", ErrInsufficientLiquidity, id, pos.Liquidity, liquidity)
		}

		amount0, amount1, err := c.positions.DecreaseLiquidity(ctx, periphery.DecreaseLiquidityParams{
			TokenID:    id,
			Liquidity:  liquidity,
			Amount0Min: new(ui.Int),
			Amount1Min: new(ui.Int),
			Deadline:   c.now(),
		})
		if err != nil {
			return upstream(err, "decrease position %d", id)
		}
		amount0, amount1 = orZero(amount0), orZero(amount1)
		u.changes.SetLiquidity(id, new(ui.Int).Sub(pos.Liquidity, liquidity))

		receipt = DecreaseReceipt{
			Position:   id,
			Liquidity:  liquidity.Clone(),
			Amount0:    amount0,
			Amount1:    amount1,
			Settlement: c.policy.DecreaseSettlement,
			Forwarded0: new(ui.Int),
			Forwarded1: new(ui.Int),
		}
		if c.policy.DecreaseSettlement == SettleForward && !(amount0.IsZero() && amount1.IsZero()) {
			got0, got1, err := c.positions.Collect(ctx, periphery.CollectParams{
				TokenID:    id,
				Recipient:  c.self,
				Amount0Max: amount0,
				Amount1Max: amount1,
			})
			if err != nil {
				return upstream(err, "collect decreased amounts of position %d", id)
			}
			got0, got1 = orZero(got0), orZero(got1)
			if err := c.push(ctx, pos.AssetLow, pos.Owner, got0); err != nil {
				return err
			}
			if err := c.push(ctx, pos.AssetHigh, pos.Owner, got1); err != nil {
				return err
			}
			receipt.Forwarded0, receipt.Forwarded1 = got0, got1
		}
		u.emit(Event{Kind: EventLiquidityDecreased, Liquidity: liquidity.Clone(), Amount0: amount0, Amount1: amount1})
		return nil
	})
	return receipt, err
}

// IncreaseLiquidity adds the caller's assets to an existing position. The
// recorded liquidity is left as is; Reconcile brings it back in line with the
// position manager.
func (c *Custodian) IncreaseLiquidity(ctx context.Context, caller common.Address, id periphery.PositionID, amount0, amount1 *ui.Int) (IncreaseReceipt, error) {
	var receipt IncreaseReceipt
	err := c.run(ctx, OpIncrease, caller, func(u *unit) error {
		pos, err := c.load(ctx, u, id)
		if err != nil {
			return err
		}
		if amount0 == nil || amount1 == nil {
			return fmt.Errorf("%w: missing desired amount", ErrInvalidRequest)
		}
		if err := c.pull(ctx, pos.AssetLow, caller, amount0); err != nil {
			return err
		}
		if err := c.pull(ctx, pos.AssetHigh, caller, amount1); err != nil {
			return err
		}
		manager := c.positions.Address()
		if err := c.approve(ctx, pos.AssetLow, manager, amount0); err != nil {
			return err
		}
		if err := c.approve(ctx, pos.AssetHigh, manager, amount1); err != nil {
			return err
		}

		res, err := c.positions.IncreaseLiquidity(ctx, periphery.IncreaseLiquidityParams{
			TokenID:        id,
			Amount0Desired: amount0,
			Amount1Desired: amount1,
			Amount0Min:     new(ui.Int),
			Amount1Min:     new(ui.Int),
			Deadline:       c.now(),
		})
		if err != nil {
			return upstream(err, "increase position %d", id)
		}
		c.logger.Warn("recorded liquidity not updated after increase",
			"unit", u.id, "position", id, "recorded", pos.Liquidity, "added", res.Liquidity)
		u.emit(Event{Kind: EventLiquidityIncreased, Liquidity: res.Liquidity, Amount0: res.Amount0, Amount1: res.Amount1})

		refund0, err := c.refund(ctx, u, pos.AssetLow, manager, amount0, res.Amount0)
		if err != nil {
			return err
		}
		refund1, err := c.refund(ctx, u, pos.AssetHigh, manager, amount1, res.Amount1)
		if err != nil {
			return err
		}
		receipt = IncreaseReceipt{
			Position:  id,
			Liquidity: res.Liquidity,
			Amount0:   res.Amount0,
			Amount1:   res.Amount1,
			Refund0:   refund0,
			Refund1:   refund1,
		}
		return nil
	})
	return receipt, err
}

// Position returns the recorded position.
func (c *Custodian) Position(ctx context.Context, id periphery.PositionID) (ledger.Position, error) {
	pos, err := c.store.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Position{}, fmt.Errorf("%w: %d", ErrPositionNotFound, id)
	}
	return pos, err
}

func (c *Custodian) PositionsOf(ctx context.Context, owner common.Address) ([]ledger.Position, error) {
	return c.store.ListByOwner(ctx, owner)
}

type ReconcileReceipt struct {
	Position periphery.PositionID
	Previous *ui.Int
	Current  *ui.Int
}

// Reconcile sets the recorded liquidity of a position to what the position
// manager holds for it.
func (c *Custodian) Reconcile(ctx context.Context, id periphery.PositionID) (ReconcileReceipt, error) {
	var receipt ReconcileReceipt
	err := c.run(ctx, OpReconcile, c.self, func(u *unit) error {
		pos, err := c.load(ctx, u, id)
		if err != nil {
			return err
		}
		info, err := c.positions.Positions(ctx, id)
		if err != nil {
			return upstream(err, "read position %d", id)
		}
		current := orZero(info.Liquidity)
		receipt = ReconcileReceipt{Position: id, Previous: pos.Liquidity, Current: current}
		if current.Eq(pos.Liquidity) {
			return nil
		}
		u.changes.SetLiquidity(id, current)
		u.emit(Event{Kind: EventReconciled, Liquidity: current})
		return nil
	})
	return receipt, err
}
