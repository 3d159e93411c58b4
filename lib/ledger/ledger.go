// Package ledger defines the custody position table: which caller owns which
// externally minted position, its last known liquidity and its two assets.
package ledger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrNotFound        = errors.New("ledger: position not found")
	ErrAlreadyExists   = errors.New("ledger: position already exists")
	ErrInvalidPosition = errors.New("ledger: invalid position")
)

// Position is a custody record. Owner and assets are fixed at creation and
// only Liquidity changes afterwards.
type Position struct {
	ID        periphery.PositionID
	Owner     common.Address
	Liquidity *ui.Int
	AssetLow  common.Address
	AssetHigh common.Address
	CreatedAt time.Time
}

// Validate checks the record invariants: a non-empty owner and two distinct
// assets stored in canonical order.
func (p Position) Validate() error {
	switch {
	case p.Owner == (common.Address{}):
		return fmt.Errorf("%w: position %d has no owner", ErrInvalidPosition, p.ID)
	case p.Liquidity == nil:
		return fmt.Errorf("%w: position %d has no liquidity value", ErrInvalidPosition, p.ID)
	case bytes.Compare(p.AssetLow.Bytes(), p.AssetHigh.Bytes()) >= 0:
		return fmt.Errorf("%w: position %d assets %s, %s not in canonical order", ErrInvalidPosition, p.ID, p.AssetLow.Hex(), p.AssetHigh.Hex())
	}
	return nil
}

// Clone returns a deep copy.
func (p Position) Clone() Position {
	c := p
	if p.Liquidity != nil {
		c.Liquidity = p.Liquidity.Clone()
	}
	return c
}

// LiquidityUpdate replaces the recorded liquidity of an existing position.
type LiquidityUpdate struct {
	ID        periphery.PositionID
	Liquidity *ui.Int
}

// ChangeSet is the set of writes staged by one unit of work.
type ChangeSet struct {
	Inserts []Position
	Updates []LiquidityUpdate
}

func (c *ChangeSet) Insert(p Position) {
	c.Inserts = append(c.Inserts, p.Clone())
}

func (c *ChangeSet) SetLiquidity(id periphery.PositionID, liquidity *ui.Int) {
	c.Updates = append(c.Updates, LiquidityUpdate{ID: id, Liquidity: liquidity.Clone()})
}

func (c *ChangeSet) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0
}

// Store persists positions. Commit applies a change set atomically: either
// every insert and update lands or none does. There is no delete.
type Store interface {
	Get(ctx context.Context, id periphery.PositionID) (Position, error)
	ListByOwner(ctx context.Context, owner common.Address) ([]Position, error)
	Count(ctx context.Context) (int, error)
	Commit(ctx context.Context, changes ChangeSet) error
	Close() error
}
