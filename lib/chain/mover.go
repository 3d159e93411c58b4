package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// Mover moves tokens for one account, the way a contract moves tokens with
// safeTransferFrom, safeApprove and safeTransfer.
type Mover struct {
	chain   *Chain
	account common.Address
}

func (c *Chain) Mover(account common.Address) *Mover {
	return &Mover{chain: c, account: account}
}

func (m *Mover) Account() common.Address { return m.account }

// Pull transfers amount from an account that approved the mover's account.
func (m *Mover) Pull(ctx context.Context, asset, from, to common.Address, amount *ui.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.chain.TransferFrom(asset, m.account, from, to, amount)
}

func (m *Mover) SetAllowance(ctx context.Context, asset, spender common.Address, amount *ui.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.chain.Approve(asset, m.account, spender, amount)
}

func (m *Mover) Push(ctx context.Context, asset, to common.Address, amount *ui.Int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.chain.Transfer(asset, m.account, to, amount)
}
