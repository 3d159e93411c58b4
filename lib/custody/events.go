package custody

import (
	"time"

	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

type EventKind string

const (
	EventMinted             EventKind = "minted"
	EventFeesCollected      EventKind = "fees_collected"
	EventLiquidityDecreased EventKind = "liquidity_decreased"
	EventLiquidityIncreased EventKind = "liquidity_increased"
	EventSwapExecuted       EventKind = "swap_executed"
	EventReconciled         EventKind = "reconciled"
)

// Event is an outward notification. Only the fields relevant to Kind are set:
// Minted carries Liquidity, Amount0 and Amount1; FeesCollected, the liquidity
// events and Reconciled carry the amounts or liquidity they moved; SwapExecuted
// carries AmountIn and AmountOut.
type Event struct {
	Kind      EventKind
	Unit      string
	Position  periphery.PositionID
	Caller    common.Address
	Liquidity *ui.Int
	Amount0   *ui.Int
	Amount1   *ui.Int
	AmountIn  *ui.Int
	AmountOut *ui.Int
	Time      time.Time
}

// Listener receives events after the unit of work that produced them has
// committed.
type Listener interface {
	OnEvent(Event)
}

type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }
