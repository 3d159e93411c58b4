package amm

import (
	"context"

	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

// ManagerSession is a PositionManager bound to one caller.
type ManagerSession struct {
	manager *PositionManager
	sender  common.Address
}

func (m *PositionManager) Session(sender common.Address) *ManagerSession {
	return &ManagerSession{manager: m, sender: sender}
}

func (s *ManagerSession) Address() common.Address { return s.manager.address }

func (s *ManagerSession) CreateAndInitializePoolIfNecessary(ctx context.Context, token0, token1 common.Address, fee uint32, sqrtPriceX96 *ui.Int) (common.Hash, error) {
	return s.manager.CreateAndInitializePoolIfNecessary(ctx, token0, token1, fee, sqrtPriceX96)
}

func (s *ManagerSession) Mint(ctx context.Context, params periphery.MintParams) (periphery.MintResult, error) {
	return s.manager.Mint(ctx, s.sender, params)
}

func (s *ManagerSession) IncreaseLiquidity(ctx context.Context, params periphery.IncreaseLiquidityParams) (periphery.IncreaseLiquidityResult, error) {
	return s.manager.IncreaseLiquidity(ctx, s.sender, params)
}

func (s *ManagerSession) DecreaseLiquidity(ctx context.Context, params periphery.DecreaseLiquidityParams) (*ui.Int, *ui.Int, error) {
	return s.manager.DecreaseLiquidity(ctx, s.sender, params)
}

func (s *ManagerSession) Collect(ctx context.Context, params periphery.CollectParams) (*ui.Int, *ui.Int, error) {
	return s.manager.Collect(ctx, s.sender, params)
}

func (s *ManagerSession) Positions(ctx context.Context, id periphery.PositionID) (periphery.PositionInfo, error) {
	return s.manager.Positions(ctx, id)
}

// RouterSession is a Router bound to one caller.
type RouterSession struct {
	router *Router
	sender common.Address
}

func (r *Router) Session(sender common.Address) *RouterSession {
	return &RouterSession{router: r, sender: sender}
}

func (s *RouterSession) Address() common.Address { return s.router.address }

func (s *RouterSession) ExactInput(ctx context.Context, params periphery.ExactInputParams) (*ui.Int, error) {
	return s.router.ExactInput(ctx, s.sender, params)
}

func (s *RouterSession) ExactOutput(ctx context.Context, params periphery.ExactOutputParams) (*ui.Int, error) {
	return s.router.ExactOutput(ctx, s.sender, params)
}
