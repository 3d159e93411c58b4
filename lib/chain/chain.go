// Package chain is the execution environment the custody core runs against:
// fungible token ledgers, a block clock and a revert journal.
//
// A Chain is not safe for concurrent use. Callers serialize access the same
// way transactions are serialized in a block.
package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
	"github.com/zeebo/blake3"
)

var (
	ErrUnknownToken          = errors.New("chain: unknown token")
	ErrTokenExists           = errors.New("chain: token already deployed")
	ErrInsufficientBalance   = errors.New("chain: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("chain: insufficient allowance")
	ErrZeroAddress           = errors.New("chain: zero address")
	ErrUnknownSnapshot       = errors.New("chain: unknown snapshot")
)

var maxAllowance = new(ui.Int).SetAllOne()

// AddressOf derives a deterministic account address from a label.
func AddressOf(label string) common.Address {
	sum := blake3.Sum256([]byte(label))
	return common.BytesToAddress(sum[12:])
}

// Token is an ERC20 style ledger.
type Token struct {
	Address    common.Address
	Symbol     string
	Decimals   uint8
	balances   map[common.Address]*ui.Int
	allowances map[common.Address]map[common.Address]*ui.Int
	supply     *ui.Int
}

func (t *Token) BalanceOf(account common.Address) *ui.Int {
	if b, ok := t.balances[account]; ok {
		return b.Clone()
	}
	return new(ui.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *ui.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return a.Clone()
	}
	return new(ui.Int)
}

func (t *Token) TotalSupply() *ui.Int { return t.supply.Clone() }

type revision struct {
	id           int
	journalIndex int
}

type Chain struct {
	tokens  map[common.Address]*Token
	order   []common.Address
	now     time.Time
	journal []func()

	validRevisions []revision
	nextRevisionID int
}

func New(genesis time.Time) *Chain {
	return &Chain{
		tokens: make(map[common.Address]*Token),
		now:    genesis.UTC(),
	}
}

// Now is the timestamp of the current block.
func (c *Chain) Now() time.Time { return c.now }

// Advance moves the clock forward. It is not journaled.
func (c *Chain) Advance(d time.Duration) {
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Record appends an undo step to the journal. Outside any snapshot nothing
// can revert the change, so the step is dropped.
func (c *Chain) Record(undo func()) {
	if len(c.validRevisions) == 0 {
		return
	}
	c.journal = append(c.journal, undo)
}

// Snapshot returns an identifier for the current revision of the state.
func (c *Chain) Snapshot() int {
	id := c.nextRevisionID
	c.nextRevisionID++
	c.validRevisions = append(c.validRevisions, revision{id, len(c.journal)})
	return id
}

// RevertToSnapshot undoes every change recorded since the snapshot was taken.
// Unknown ids are ignored. Use RevertTo to observe them.
func (c *Chain) RevertToSnapshot(id int) {
	_ = c.RevertTo(id)
}

// RevertTo is RevertToSnapshot reporting unknown ids.
func (c *Chain) RevertTo(id int) error {
	idx := -1
	for i := len(c.validRevisions) - 1; i >= 0; i-- {
		if c.validRevisions[i].id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownSnapshot, id)
	}
	snapshot := c.validRevisions[idx].journalIndex
	for i := len(c.journal) - 1; i >= snapshot; i-- {
		c.journal[i]()
	}
	c.journal = c.journal[:snapshot]
	c.validRevisions = c.validRevisions[:idx]
	return nil
}

// DiscardSnapshot keeps the changes made since the snapshot and forgets it,
// along with any snapshot taken after it. Once no snapshot is outstanding the
// journal is emptied.
func (c *Chain) DiscardSnapshot(id int) {
	for i := len(c.validRevisions) - 1; i >= 0; i-- {
		if c.validRevisions[i].id == id {
			c.validRevisions = c.validRevisions[:i]
			break
		}
	}
	if len(c.validRevisions) == 0 {
		c.journal = nil
	}
}

// Atomic runs fn inside a snapshot and reverts it when fn fails.
func (c *Chain) Atomic(fn func() error) error {
	id := c.Snapshot()
	if err := fn(); err != nil {
		c.RevertToSnapshot(id)
		return err
	}
	c.DiscardSnapshot(id)
	return nil
}

// DeployToken registers a token at an address derived from its symbol.
func (c *Chain) DeployToken(symbol string, decimals uint8) (common.Address, error) {
	addr := AddressOf("token:" + symbol)
	if _, ok := c.tokens[addr]; ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrTokenExists, symbol)
	}
	c.tokens[addr] = &Token{
		Address:    addr,
		Symbol:     symbol,
		Decimals:   decimals,
		balances:   make(map[common.Address]*ui.Int),
		allowances: make(map[common.Address]map[common.Address]*ui.Int),
		supply:     new(ui.Int),
	}
	c.order = append(c.order, addr)
	return addr, nil
}

func (c *Chain) Token(addr common.Address) (*Token, error) {
	t, ok := c.tokens[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, addr.Hex())
	}
	return t, nil
}

// Tokens lists deployed tokens in deployment order.
func (c *Chain) Tokens() []*Token {
	out := make([]*Token, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, c.tokens[addr])
	}
	return out
}

func (c *Chain) BalanceOf(token, account common.Address) (*ui.Int, error) {
	t, err := c.Token(token)
	if err != nil {
		return nil, err
	}
	return t.BalanceOf(account), nil
}

func (c *Chain) Allowance(token, owner, spender common.Address) (*ui.Int, error) {
	t, err := c.Token(token)
	if err != nil {
		return nil, err
	}
	return t.Allowance(owner, spender), nil
}

func (c *Chain) setBalance(t *Token, account common.Address, amount *ui.Int) {
	prev, had := t.balances[account]
	c.Record(func() {
		if had {
			t.balances[account] = prev
		} else {
			delete(t.balances, account)
		}
	})
	t.balances[account] = amount
}

func (c *Chain) setAllowance(t *Token, owner, spender common.Address, amount *ui.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*ui.Int)
		t.allowances[owner] = spenders
	}
	prev, had := spenders[spender]
	c.Record(func() {
		if had {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
	spenders[spender] = amount
}

// Mint creates new supply for an account.
func (c *Chain) Mint(token, to common.Address, amount *ui.Int) error {
	t, err := c.Token(token)
	if err != nil {
		return err
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	prevSupply := t.supply
	c.Record(func() { t.supply = prevSupply })
	t.supply = new(ui.Int).Add(t.supply, amount)
	c.setBalance(t, to, new(ui.Int).Add(t.BalanceOf(to), amount))
	return nil
}

func (c *Chain) Transfer(token, from, to common.Address, amount *ui.Int) error {
	t, err := c.Token(token)
	if err != nil {
		return err
	}
	return c.transfer(t, from, to, amount)
}

func (c *Chain) transfer(t *Token, from, to common.Address, amount *ui.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	balance := t.BalanceOf(from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s of %s has %s, needs %s", ErrInsufficientBalance, t.Symbol, from.Hex(), balance, amount)
	}
	if amount.IsZero() || from == to {
		return nil
	}
	c.setBalance(t, from, new(ui.Int).Sub(balance, amount))
	c.setBalance(t, to, new(ui.Int).Add(t.BalanceOf(to), amount))
	return nil
}

// TransferFrom moves tokens on behalf of from, spending spender's allowance.
func (c *Chain) TransferFrom(token, spender, from, to common.Address, amount *ui.Int) error {
	t, err := c.Token(token)
	if err != nil {
		return err
	}
	if spender != from {
		allowance := t.Allowance(from, spender)
		if allowance.Lt(amount) {
			return fmt.Errorf("%w: %s allowance of %s for %s is %s, needs %s",
				ErrInsufficientAllowance, t.Symbol, from.Hex(), spender.Hex(), allowance, amount)
		}
		if !allowance.Eq(maxAllowance) {
			c.setAllowance(t, from, spender, new(ui.Int).Sub(allowance, amount))
		}
	}
	return c.transfer(t, from, to, amount)
}

func (c *Chain) Approve(token, owner, spender common.Address, amount *ui.Int) error {
	t, err := c.Token(token)
	if err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	c.setAllowance(t, owner, spender, amount.Clone())
	return nil
}
