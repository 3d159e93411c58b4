package custody

import (
	"fmt"
	"strings"
)

// Operation names a custody entry point.
type Operation string

const (
	OpMint            Operation = "mint"
	OpCollect         Operation = "collect"
	OpDecrease        Operation = "decrease"
	OpIncrease        Operation = "increase"
	OpSwapExactInput  Operation = "swap_exact_input"
	OpSwapExactOutput Operation = "swap_exact_output"
	OpReconcile       Operation = "reconcile"
)

// Access decides who may act on an existing position.
type Access int

const (
	AccessOwner Access = iota + 1
	AccessAny
)

func (a Access) String() string {
	switch a {
	case AccessOwner:
		return "owner"
	case AccessAny:
		return "any"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "owner":
		return AccessOwner, nil
	case "any":
		return AccessAny, nil
	}
	return 0, fmt.Errorf("%w: unknown access %q", ErrInvalidPolicy, s)
}

// Settlement decides what happens to the amounts released by a liquidity
// decrease.
type Settlement int

const (
	// SettleRetain leaves the amounts owed inside the position manager. The
	// next CollectAllFees sweeps them to the owner together with fees.
	SettleRetain Settlement = iota + 1
	// SettleForward collects exactly the released amounts into custody and
	// pushes them to the owner in the same unit of work.
	SettleForward
)

func (s Settlement) String() string {
	switch s {
	case SettleRetain:
		return "retain"
	case SettleForward:
		return "forward"
	}
	return fmt.Sprintf("Settlement(%d)", int(s))
}

func ParseSettlement(s string) (Settlement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retain":
		return SettleRetain, nil
	case "forward":
		return SettleForward, nil
	}
	return 0, fmt.Errorf("%w: unknown decrease settlement %q", ErrInvalidPolicy, s)
}

// Policy is the per-deployment authorization table and decrease settlement.
type Policy struct {
	Access             map[Operation]Access
	DecreaseSettlement Settlement
}

// DefaultAccess returns the default table: collect and decrease are owner
// only, any caller may top up a position.
func DefaultAccess() map[Operation]Access {
	return map[Operation]Access{
		OpCollect:  AccessOwner,
		OpDecrease: AccessOwner,
		OpIncrease: AccessAny,
	}
}

// NewPolicy returns the default access table with the given settlement.
func NewPolicy(settlement Settlement) Policy {
	return Policy{Access: DefaultAccess(), DecreaseSettlement: settlement}
}

func (p Policy) Validate() error {
	switch p.DecreaseSettlement {
	case SettleRetain, SettleForward:
	default:
		return fmt.Errorf("%w: decrease settlement must be retain or forward", ErrInvalidPolicy)
	}
	for op, access := range p.Access {
		switch op {
		case OpCollect, OpDecrease, OpIncrease:
		default:
			return fmt.Errorf("%w: %s is not position scoped", ErrInvalidPolicy, op)
		}
		switch access {
		case AccessOwner:
		case AccessAny:
			if op != OpIncrease {
				return fmt.Errorf("%w: %s must be owner only", ErrInvalidPolicy, op)
			}
		default:
			return fmt.Errorf("%w: %s has %s", ErrInvalidPolicy, op, access)
		}
	}
	return nil
}

// access returns the configured access for op, falling back to the default
// table.
func (p Policy) access(op Operation) Access {
	if a, ok := p.Access[op]; ok {
		return a
	}
	return DefaultAccess()[op]
}
