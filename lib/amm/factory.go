// Package amm simulates the AMM periphery the custody core talks to: a pool
// factory, a non-fungible position manager and a swap router. Every mutating
// call is atomic against the chain journal.
package amm

import (
	"errors"
	"fmt"

	"github.com/ftchann/uniswap-custody/lib/chain"
	"github.com/ftchann/uniswap-custody/lib/periphery"
	"github.com/ftchann/uniswap-custody/lib/pool"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrPoolExists        = errors.New("amm: pool already exists")
	ErrPoolNotFound      = errors.New("amm: pool not found")
	ErrUnsortedTokens    = errors.New("amm: tokens not sorted")
	ErrTransactionTooOld = errors.New("amm: transaction too old")
	ErrNotApproved       = errors.New("amm: not approved")
	ErrInvalidTokenID    = errors.New("amm: invalid token id")
	ErrPriceSlippage     = errors.New("amm: price slippage check")
	ErrZeroLiquidity     = errors.New("amm: zero liquidity")
	ErrNothingToCollect  = errors.New("amm: nothing to collect")
	ErrTooLittleReceived = errors.New("amm: too little received")
	ErrTooMuchRequested  = errors.New("amm: too much requested")
	ErrPartialFill       = errors.New("amm: pool ran out of liquidity before the swap completed")
)

type poolEntry struct {
	key     periphery.PoolKey
	account common.Address
	state   *pool.Pool
}

// Factory owns every pool. Each pool holds its reserves in its own account.
type Factory struct {
	chain *chain.Chain
	pools map[common.Hash]*poolEntry
}

func NewFactory(c *chain.Chain) *Factory {
	return &Factory{chain: c, pools: make(map[common.Hash]*poolEntry)}
}

// CreatePool deploys and initializes a pool for a sorted key.
func (f *Factory) CreatePool(key periphery.PoolKey, sqrtPriceX96 *ui.Int) (common.Hash, error) {
	if low, _, err := periphery.SortTokens(key.Token0, key.Token1); err != nil {
		return common.Hash{}, err
	} else if low != key.Token0 {
		return common.Hash{}, ErrUnsortedTokens
	}
	for _, token := range []common.Address{key.Token0, key.Token1} {
		if _, err := f.chain.Token(token); err != nil {
			return common.Hash{}, err
		}
	}
	id := key.ID()
	if _, ok := f.pools[id]; ok {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrPoolExists, id.Hex())
	}
	state, err := pool.NewPool(key.Token0, key.Token1, key.Fee, sqrtPriceX96)
	if err != nil {
		return common.Hash{}, err
	}
	f.pools[id] = &poolEntry{key: key, account: chain.AddressOf("pool:" + id.Hex()), state: state}
	f.chain.Record(func() { delete(f.pools, id) })
	return id, nil
}

// Lookup returns the handle of an existing pool.
func (f *Factory) Lookup(key periphery.PoolKey) (common.Hash, bool) {
	id := key.ID()
	_, ok := f.pools[id]
	return id, ok
}

// Pool returns a copy of the pool state.
func (f *Factory) Pool(id common.Hash) (*pool.Pool, error) {
	entry, err := f.entry(id)
	if err != nil {
		return nil, err
	}
	return entry.state.Clone(), nil
}

// Account returns the address holding the pool's reserves.
func (f *Factory) Account(id common.Hash) (common.Address, error) {
	entry, err := f.entry(id)
	if err != nil {
		return common.Address{}, err
	}
	return entry.account, nil
}

func (f *Factory) entry(id common.Hash) (*poolEntry, error) {
	entry, ok := f.pools[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, id.Hex())
	}
	return entry, nil
}

// mutate applies fn to a copy of the pool and swaps it in on success, so a
// failed call leaves the pool untouched and a revert restores the old state.
func (f *Factory) mutate(id common.Hash, fn func(p *pool.Pool) error) error {
	entry, err := f.entry(id)
	if err != nil {
		return err
	}
	prev := entry.state
	next := prev.Clone()
	if err := fn(next); err != nil {
		return err
	}
	entry.state = next
	f.chain.Record(func() { entry.state = prev })
	return nil
}
