// Package registry canonicalizes asset pairs into pools and initializes each
// (pair, fee) pool exactly once through the external position manager.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var (
	ErrIdenticalAssets = errors.New("registry: identical assets")
	ErrInitialize      = errors.New("registry: pool initialization failed")
)

// Canonicalize orders two assets by address. swapped reports whether the
// inputs came in reverse order.
func Canonicalize(a, b common.Address) (low, high common.Address, swapped bool, err error) {
	low, high, err = periphery.SortTokens(a, b)
	if err != nil {
		return common.Address{}, common.Address{}, false, fmt.Errorf("%w: %s", ErrIdenticalAssets, a.Hex())
	}
	return low, high, low != a, nil
}

// CanonicalAmounts reorders amounts given for (a, b) to match Canonicalize.
func CanonicalAmounts(swapped bool, amountA, amountB *ui.Int) (*ui.Int, *ui.Int) {
	if swapped {
		return amountB, amountA
	}
	return amountA, amountB
}

// Initializer creates and initializes a pool unless it already exists.
type Initializer interface {
	CreateAndInitializePoolIfNecessary(ctx context.Context, token0, token1 common.Address, fee uint32, sqrtPriceX96 *ui.Int) (common.Hash, error)
}

// Pool is a registered pool.
type Pool struct {
	Key    periphery.PoolKey
	Handle common.Hash
}

type Registry struct {
	initializer Initializer
	logger      *slog.Logger
}

func New(initializer Initializer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{initializer: initializer, logger: logger}
}

// CreatePool returns the pool for the canonical (a, b, fee) triple, creating
// it at sqrtPriceX96 if necessary. Repeat calls in either asset order return
// the same handle and never re-initialize.
func (r *Registry) CreatePool(ctx context.Context, a, b common.Address, fee uint32, sqrtPriceX96 *ui.Int) (Pool, error) {
	low, high, _, err := Canonicalize(a, b)
	if err != nil {
		return Pool{}, err
	}
	key := periphery.PoolKey{Token0: low, Token1: high, Fee: fee}
	handle, err := r.initializer.CreateAndInitializePoolIfNecessary(ctx, low, high, fee, sqrtPriceX96)
	if err != nil {
		return Pool{}, fmt.Errorf("%w: %s/%s fee %d: %w", ErrInitialize, low.Hex(), high.Hex(), fee, err)
	}
	r.logger.Debug("pool ready", "pool", handle.Hex(), "asset_low", low.Hex(), "asset_high", high.Hex(), "fee", fee)
	return Pool{Key: key, Handle: handle}, nil
}
