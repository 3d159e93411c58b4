package custody

import (
	"context"
	"fmt"

	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type SwapReceipt struct {
	AssetIn   common.Address
	AssetOut  common.Address
	AmountIn  *ui.Int
	AmountOut *ui.Int
	Refund    *ui.Int
}

// SwapExactInput swaps exactly amountIn of assetIn along path, which must
// start at assetIn. The output goes straight to caller.
func (c *Custodian) SwapExactInput(ctx context.Context, caller, assetIn common.Address, amountIn, minOut *ui.Int, path periphery.Path) (SwapReceipt, error) {
	var receipt SwapReceipt
	err := c.run(ctx, OpSwapExactInput, caller, func(u *unit) error {
		if amountIn == nil || amountIn.IsZero() {
			return fmt.Errorf("%w: zero input amount", ErrInvalidRequest)
		}
		first, last, err := endpoints(path)
		if err != nil {
			return err
		}
		if first != assetIn {
			return fmt.Errorf("%w: path starts at %s, not %s", ErrInvalidRequest, first.Hex(), assetIn.Hex())
		}
		if err := c.pull(ctx, assetIn, caller, amountIn); err != nil {
			return err
		}
		if err := c.approve(ctx, assetIn, c.swaps.Address(), amountIn); err != nil {
			return err
		}
		out, err := c.swaps.ExactInput(ctx, periphery.ExactInputParams{
			Path:             path,
			Recipient:        caller,
			Deadline:         c.now(),
			AmountIn:         amountIn,
			AmountOutMinimum: orZero(minOut),
		})
		if err != nil {
			return upstream(err, "exact input swap")
		}
		u.emit(Event{Kind: EventSwapExecuted, AmountIn: amountIn.Clone(), AmountOut: out})
		receipt = SwapReceipt{AssetIn: assetIn, AssetOut: last, AmountIn: amountIn.Clone(), AmountOut: out, Refund: new(ui.Int)}
		return nil
	})
	return receipt, err
}

// SwapExactOutput buys exactly amountOut for at most maxIn of assetIn. The
// path is encoded output asset first and must end at assetIn. The caller
// receives the output and whatever part of maxIn was not spent.
func (c *Custodian) SwapExactOutput(ctx context.Context, caller, assetIn common.Address, amountOut, maxIn *ui.Int, path periphery.Path) (SwapReceipt, error) {
	var receipt SwapReceipt
	err := c.run(ctx, OpSwapExactOutput, caller, func(u *unit) error {
		if amountOut == nil || amountOut.IsZero() {
			return fmt.Errorf("%w: zero output amount", ErrInvalidRequest)
		}
		if maxIn == nil || maxIn.IsZero() {
			return fmt.Errorf("%w: zero input bound", ErrInvalidRequest)
		}
		assetOut, last, err := endpoints(path)
		if err != nil {
			return err
		}
		if last != assetIn {
			return fmt.Errorf("%w: path ends at %s, not %s", ErrInvalidRequest, last.Hex(), assetIn.Hex())
		}
		router := c.swaps.Address()
		if err := c.pull(ctx, assetIn, caller, maxIn); err != nil {
			return err
		}
		if err := c.approve(ctx, assetIn, router, maxIn); err != nil {
			return err
		}
		spent, err := c.swaps.ExactOutput(ctx, periphery.ExactOutputParams{
			Path:            path,
			Recipient:       caller,
			Deadline:        c.now(),
			AmountOut:       amountOut,
			AmountInMaximum: maxIn,
		})
		if err != nil {
			return upstream(err, "exact output swap")
		}
		refund, err := c.refund(ctx, u, assetIn, router, maxIn, spent)
		if err != nil {
			return err
		}
		u.emit(Event{Kind: EventSwapExecuted, AmountIn: spent, AmountOut: amountOut.Clone()})
		receipt = SwapReceipt{AssetIn: assetIn, AssetOut: assetOut, AmountIn: spent, AmountOut: amountOut.Clone(), Refund: refund}
		return nil
	})
	return receipt, err
}

func endpoints(path periphery.Path) (first, last common.Address, err error) {
	if first, err = path.First(); err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if last, err = path.Last(); err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return first, last, nil
}
