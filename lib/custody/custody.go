// Package custody holds caller funds for the duration of one operation against
// an external concentrated-liquidity position manager and swap router, and
// keeps the ledger of which caller owns which externally minted position.
//
// Every entry point is one unit of work: it is serialized with every other
// entry point, it runs against a journal snapshot, and either all of its
// effects (token movements, external calls, ledger writes) take place or none
// do. Events are delivered only after the ledger commit.
package custody

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	ui "github.com/holiman/uint256"
)

// TokenMover moves fungible assets on behalf of the custody account.
type TokenMover interface {
	// Pull moves amount of asset from an account that approved custody.
	Pull(ctx context.Context, asset, from, to common.Address, amount *ui.Int) error
	SetAllowance(ctx context.Context, asset, spender common.Address, amount *ui.Int) error
	Push(ctx context.Context, asset, to common.Address, amount *ui.Int) error
}

// PositionManager is the external non-fungible position manager, called as
// the custody account.
type PositionManager interface {
	Address() common.Address
	Mint(ctx context.Context, params periphery.MintParams) (periphery.MintResult, error)
	IncreaseLiquidity(ctx context.Context, params periphery.IncreaseLiquidityParams) (periphery.IncreaseLiquidityResult, error)
	DecreaseLiquidity(ctx context.Context, params periphery.DecreaseLiquidityParams) (amount0, amount1 *ui.Int, err error)
	Collect(ctx context.Context, params periphery.CollectParams) (amount0, amount1 *ui.Int, err error)
	Positions(ctx context.Context, id periphery.PositionID) (periphery.PositionInfo, error)
}

// SwapEngine is the external router, called as the custody account.
type SwapEngine interface {
	Address() common.Address
	ExactInput(ctx context.Context, params periphery.ExactInputParams) (amountOut *ui.Int, err error)
	ExactOutput(ctx context.Context, params periphery.ExactOutputParams) (amountIn *ui.Int, err error)
}

// Journal is the execution environment's revert facility. Reverting to a
// snapshot undoes every token movement and external call made since;
// discarding it makes them final.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
	DiscardSnapshot(id int)
}

// Metrics observes finished units of work.
type Metrics interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	ObserveRefund(op string)
	ObserveMint()
}

type nopMetrics struct{}

func (nopMetrics) ObserveOperation(string, string, time.Duration) {}
func (nopMetrics) ObserveRefund(string)                           {}
func (nopMetrics) ObserveMint()                                   {}

// Dependencies are the collaborators a Custodian cannot run without.
type Dependencies struct {
	Tokens    TokenMover
	Positions PositionManager
	Swaps     SwapEngine
	Store     ledger.Store
	Journal   Journal
}

func (d Dependencies) validate() error {
	switch {
	case d.Tokens == nil:
		return fmt.Errorf("%w: token mover", ErrMissingDependency)
	case d.Positions == nil:
		return fmt.Errorf("%w: position manager", ErrMissingDependency)
	case d.Swaps == nil:
		return fmt.Errorf("%w: swap engine", ErrMissingDependency)
	case d.Store == nil:
		return fmt.Errorf("%w: ledger store", ErrMissingDependency)
	case d.Journal == nil:
		return fmt.Errorf("%w: journal", ErrMissingDependency)
	}
	return nil
}

type Option func(*Custodian)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Custodian) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the time source used for deadlines and record timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Custodian) {
		if now != nil {
			c.now = now
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(c *Custodian) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithListener(l Listener) Option {
	return func(c *Custodian) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

func WithPolicy(p Policy) Option {
	return func(c *Custodian) { c.policy = p }
}

type Custodian struct {
	mu sync.Mutex

	self      common.Address
	tokens    TokenMover
	positions PositionManager
	swaps     SwapEngine
	store     ledger.Store
	journal   Journal

	policy    Policy
	logger    *slog.Logger
	now       func() time.Time
	metrics   Metrics
	listeners []Listener
}

// New returns a Custodian acting as the account self. A policy with an
// explicit decrease settlement is required.
func New(self common.Address, deps Dependencies, opts ...Option) (*Custodian, error) {
	if self == (common.Address{}) {
		return nil, fmt.Errorf("%w: custody account", ErrMissingDependency)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	c := &Custodian{
		self:      self,
		tokens:    deps.Tokens,
		positions: deps.Positions,
		swaps:     deps.Swaps,
		store:     deps.Store,
		journal:   deps.Journal,
		logger:    slog.Default(),
		now:       time.Now,
		metrics:   nopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.policy.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Custodian) Address() common.Address { return c.self }

func (c *Custodian) Policy() Policy { return c.policy }

// unit is the state of one in-flight unit of work.
type unit struct {
	id       string
	op       Operation
	caller   common.Address
	position periphery.PositionID
	changes  ledger.ChangeSet
	events   []Event
	refunds  int
}

func (u *unit) emit(e Event) {
	e.Unit = u.id
	e.Caller = u.caller
	if e.Position == 0 {
		e.Position = u.position
	}
	u.events = append(u.events, e)
}

func (c *Custodian) run(ctx context.Context, op Operation, caller common.Address, fn func(u *unit) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	u := &unit{id: uuid.NewString(), op: op, caller: caller}

	err := ctx.Err()
	if err == nil {
		snapshot := c.journal.Snapshot()
		err = fn(u)
		if err == nil && !u.changes.Empty() {
			if cerr := c.store.Commit(ctx, u.changes); cerr != nil {
				err = fmt.Errorf("%w: %w", ErrLedgerCommit, cerr)
			}
		}
		if err != nil {
			c.journal.RevertToSnapshot(snapshot)
		} else {
			c.journal.DiscardSnapshot(snapshot)
		}
	}

	outcome := Classify(err)
	c.metrics.ObserveOperation(string(op), outcome, time.Since(start))
	attrs := []any{"op", op, "unit", u.id, "caller", caller.Hex(), "position", u.position, "outcome", outcome}
	if err != nil {
		c.logger.Warn("custody operation failed", append(attrs, "err", err)...)
		return err
	}
	c.logger.Info("custody operation", attrs...)

	for i := 0; i < u.refunds; i++ {
		c.metrics.ObserveRefund(string(op))
	}
	now := c.now()
	for _, e := range u.events {
		if e.Kind == EventMinted {
			c.metrics.ObserveMint()
		}
		e.Time = now
		for _, l := range c.listeners {
			l.OnEvent(e)
		}
	}
	return nil
}

// load reads a position and checks the caller against the access table.
func (c *Custodian) load(ctx context.Context, u *unit, id periphery.PositionID) (ledger.Position, error) {
	u.position = id
	pos, err := c.store.Get(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return ledger.Position{}, fmt.Errorf("%w: %d", ErrPositionNotFound, id)
	} else if err != nil {
		return ledger.Position{}, err
	}
	if c.policy.access(u.op) == AccessOwner && pos.Owner != u.caller {
		return ledger.Position{}, fmt.Errorf("%w: position %d, caller %s", ErrNotOwner, id, u.caller.Hex())
	}
	return pos, nil
}

func (c *Custodian) pull(ctx context.Context, asset, from common.Address, amount *ui.Int) error {
	if amount.IsZero() {
		return nil
	}
	if err := c.tokens.Pull(ctx, asset, from, c.self, amount); err != nil {
		return fmt.Errorf("%w: pull %s of %s from %s: %w", ErrUpstreamTransfer, amount, asset.Hex(), from.Hex(), err)
	}
	return nil
}

func (c *Custodian) push(ctx context.Context, asset, to common.Address, amount *ui.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}
	if err := c.tokens.Push(ctx, asset, to, amount); err != nil {
		return fmt.Errorf("%w: push %s of %s to %s: %w", ErrUpstreamTransfer, amount, asset.Hex(), to.Hex(), err)
	}
	return nil
}

func (c *Custodian) approve(ctx context.Context, asset, spender common.Address, amount *ui.Int) error {
	if err := c.tokens.SetAllowance(ctx, asset, spender, amount); err != nil {
		return fmt.Errorf("%w: allowance %s of %s for %s: %w", ErrUpstreamTransfer, amount, asset.Hex(), spender.Hex(), err)
	}
	return nil
}

// refund revokes what is left of an exact allowance and returns the unused
// part of desired to the caller. It returns the refunded amount.
func (c *Custodian) refund(ctx context.Context, u *unit, asset, spender common.Address, desired, used *ui.Int) (*ui.Int, error) {
	if used.Gt(desired) {
		return nil, fmt.Errorf("%w: %s consumed %s of %s, more than granted", ErrUpstreamExecution, spender.Hex(), used, desired)
	}
	diff := new(ui.Int).Sub(desired, used)
	if diff.IsZero() {
		return diff, nil
	}
	if err := c.approve(ctx, asset, spender, new(ui.Int)); err != nil {
		return nil, err
	}
	if err := c.push(ctx, asset, u.caller, diff); err != nil {
		return nil, err
	}
	u.refunds++
	return diff, nil
}

func upstream(err error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamExecution, fmt.Sprintf(format, args...), err)
}

func orZero(v *ui.Int) *ui.Int {
	if v == nil {
		return new(ui.Int)
	}
	return v
}
