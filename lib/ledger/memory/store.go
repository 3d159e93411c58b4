package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	ui "github.com/holiman/uint256"
)

var _ ledger.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	positions map[periphery.PositionID]ledger.Position
}

func New() *Store {
	return &Store{positions: make(map[periphery.PositionID]ledger.Position)}
}

func (s *Store) Get(_ context.Context, id periphery.PositionID) (ledger.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return ledger.Position{}, fmt.Errorf("%w: %d", ledger.ErrNotFound, id)
	}
	return p.Clone(), nil
}

func (s *Store) ListByOwner(_ context.Context, owner common.Address) ([]ledger.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledger.Position, 0)
	for _, p := range s.positions {
		if p.Owner == owner {
			result = append(result, p.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions), nil
}

// Commit validates the whole change set before applying any of it.
func (s *Store) Commit(_ context.Context, changes ledger.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[periphery.PositionID]ledger.Position, len(changes.Inserts))
	for _, p := range changes.Inserts {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, exists := s.positions[p.ID]; exists {
			return fmt.Errorf("%w: %d", ledger.ErrAlreadyExists, p.ID)
		}
		if _, exists := staged[p.ID]; exists {
			return fmt.Errorf("%w: %d", ledger.ErrAlreadyExists, p.ID)
		}
		staged[p.ID] = p.Clone()
	}
	liquidity := make(map[periphery.PositionID]*ui.Int, len(changes.Updates))
	for _, u := range changes.Updates {
		_, inStore := s.positions[u.ID]
		_, inStaged := staged[u.ID]
		if !inStore && !inStaged {
			return fmt.Errorf("%w: %d", ledger.ErrNotFound, u.ID)
		}
		if u.Liquidity == nil {
			return fmt.Errorf("%w: position %d update has no liquidity value", ledger.ErrInvalidPosition, u.ID)
		}
		liquidity[u.ID] = u.Liquidity.Clone()
	}

	for id, p := range staged {
		s.positions[id] = p
	}
	for id, l := range liquidity {
		p := s.positions[id]
		p.Liquidity = l
		s.positions[id] = p
	}
	return nil
}

func (s *Store) Close() error { return nil }
