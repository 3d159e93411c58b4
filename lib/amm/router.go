package amm

import (
	"context"
	"fmt"
	"time"

	"github.com/ftchann/uniswap-custody/lib/chain"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/pool"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Router executes swaps along packed paths.
type Router struct {
	chain   *chain.Chain
	factory *Factory
	address common.Address
}

func NewRouter(c *chain.Chain, f *Factory) *Router {
	return &Router{chain: c, factory: f, address: chain.AddressOf("swap-router")}
}

func (r *Router) Address() common.Address { return r.address }

func (r *Router) checkDeadline(deadline time.Time) error {
	if now := r.chain.Now(); now.After(deadline) {
		return fmt.Errorf("%w: deadline %s before block time %s", ErrTransactionTooOld, deadline.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	return nil
}

// swap runs one hop against a pool and returns (amountIn, amountOut).
// amount is positive for exact input and negative for exact output.
func (r *Router) swap(tokenIn, tokenOut common.Address, fee uint32, amount *ui.Int) (common.Address, *ui.Int, *ui.Int, error) {
	token0, token1, err := periphery.SortTokens(tokenIn, tokenOut)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	id, ok := r.factory.Lookup(periphery.PoolKey{Token0: token0, Token1: token1, Fee: fee})
	if !ok {
		return common.Address{}, nil, nil, fmt.Errorf("%w: %s/%s fee %d", ErrPoolNotFound, token0.Hex(), token1.Hex(), fee)
	}
	account, err := r.factory.Account(id)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	zeroForOne := tokenIn == token0

	var amountIn, amountOut *ui.Int
	err = r.factory.mutate(id, func(p *pool.Pool) error {
		amount0, amount1, err := p.Swap(zeroForOne, amount, new(ui.Int))
		if err != nil {
			return err
		}
		if zeroForOne {
			amountIn, amountOut = amount0, new(ui.Int).Neg(amount1)
		} else {
			amountIn, amountOut = amount1, new(ui.Int).Neg(amount0)
		}
		return nil
	})
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return account, amountIn, amountOut, nil
}

func (r *Router) pay(token, payer, to common.Address, amount *ui.Int) error {
	if payer == r.address {
		return r.chain.Transfer(token, r.address, to, amount)
	}
	return r.chain.TransferFrom(token, r.address, payer, to, amount)
}

// ExactInput swaps params.AmountIn of the path's first token for as much of
// the last token as possible.
func (r *Router) ExactInput(ctx context.Context, sender common.Address, params periphery.ExactInputParams) (*ui.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}
	hops, err := params.Path.Hops()
	if err != nil {
		return nil, err
	}

	var amountOut *ui.Int
	err = r.chain.Atomic(func() error {
		payer, amount := sender, params.AmountIn.Clone()
		for i, hop := range hops {
			recipient := r.address
			if i == len(hops)-1 {
				recipient = params.Recipient
			}
			account, in, out, err := r.swap(hop.TokenIn, hop.TokenOut, hop.Fee, amount)
			if err != nil {
				return err
			}
			if !in.Eq(amount) {
				return fmt.Errorf("%w: pool took %s of %s", ErrPartialFill, in, amount)
			}
			if err := r.pay(hop.TokenIn, payer, account, in); err != nil {
				return err
			}
			if err := r.chain.Transfer(hop.TokenOut, account, recipient, out); err != nil {
				return err
			}
			payer, amount = r.address, out
		}
		if amount.Lt(orZero(params.AmountOutMinimum)) {
			return fmt.Errorf("%w: %s below %s", ErrTooLittleReceived, amount, params.AmountOutMinimum)
		}
		amountOut = amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amountOut, nil
}

// ExactOutput swaps as little as possible of the path's last token for
// exactly params.AmountOut of its first token.
func (r *Router) ExactOutput(ctx context.Context, sender common.Address, params periphery.ExactOutputParams) (*ui.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.checkDeadline(params.Deadline); err != nil {
		return nil, err
	}
	hops, err := params.Path.Hops()
	if err != nil {
		return nil, err
	}

	var amountIn *ui.Int
	err = r.chain.Atomic(func() error {
		// each pool pays its output to the recipient or to the pool before it
		recipient, wanted := params.Recipient, params.AmountOut.Clone()
		for _, hop := range hops {
			tokenOut, tokenIn := hop.TokenIn, hop.TokenOut
			account, in, out, err := r.swap(tokenIn, tokenOut, hop.Fee, new(ui.Int).Neg(wanted))
			if err != nil {
				return err
			}
			if !out.Eq(wanted) {
				return fmt.Errorf("%w: got %s of %s", ErrPartialFill, out, wanted)
			}
			if err := r.chain.Transfer(tokenOut, account, recipient, out); err != nil {
				return err
			}
			recipient, wanted = account, in
		}
		if maxIn := params.AmountInMaximum; maxIn != nil && wanted.Gt(maxIn) {
			return fmt.Errorf("%w: %s above %s", ErrTooMuchRequested, wanted, maxIn)
		}
		last := hops[len(hops)-1].TokenOut
		if err := r.pay(last, sender, recipient, wanted); err != nil {
			return err
		}
		amountIn = wanted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return amountIn, nil
}
