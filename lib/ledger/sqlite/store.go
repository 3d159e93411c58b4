package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/periphery"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/glebarez/go-sqlite"
	ui "github.com/holiman/uint256"
)

var _ ledger.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS custody_positions (
	id INTEGER PRIMARY KEY,
	owner TEXT NOT NULL,
	liquidity TEXT NOT NULL,
	asset_low TEXT NOT NULL,
	asset_high TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS custody_positions_owner ON custody_positions(owner);
`

// Store keeps positions in a SQLite table keyed by position id. Liquidity is
// stored as decimal text since it does not fit an INTEGER column.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path. Use ":memory:" for a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create custody_positions table: %w", err)
	}
	return &Store{db: db}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (ledger.Position, error) {
	var (
		id                    int64
		owner, liq, low, high string
		createdAt             int64
	)
	if err := row.Scan(&id, &owner, &liq, &low, &high, &createdAt); err != nil {
		return ledger.Position{}, err
	}
	liquidity, err := ui.FromDecimal(liq)
	if err != nil {
		return ledger.Position{}, fmt.Errorf("position %d: bad liquidity %q: %w", id, liq, err)
	}
	return ledger.Position{
		ID:        periphery.PositionID(id),
		Owner:     common.HexToAddress(owner),
		Liquidity: liquidity,
		AssetLow:  common.HexToAddress(low),
		AssetHigh: common.HexToAddress(high),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}

const selectColumns = "SELECT id, owner, liquidity, asset_low, asset_high, created_at FROM custody_positions"

func (s *Store) Get(ctx context.Context, id periphery.PositionID) (ledger.Position, error) {
	p, err := scanPosition(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Position{}, fmt.Errorf("%w: %d", ledger.ErrNotFound, id)
	}
	if err != nil {
		return ledger.Position{}, fmt.Errorf("failed to get position %d: %w", id, err)
	}
	return p, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner common.Address) ([]ledger.Position, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" WHERE owner = ? ORDER BY id ASC", owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	result := make([]ledger.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM custody_positions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return n, nil
}

// Commit writes the change set in a single transaction.
func (s *Store) Commit(ctx context.Context, changes ledger.ChangeSet) error {
	for _, p := range changes.Inserts {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, u := range changes.Updates {
		if u.Liquidity == nil {
			return fmt.Errorf("%w: position %d update has no liquidity value", ledger.ErrInvalidPosition, u.ID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range changes.Inserts {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM custody_positions WHERE id = ?", int64(p.ID)).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check position %d: %w", p.ID, err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: %d", ledger.ErrAlreadyExists, p.ID)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO custody_positions (id, owner, liquidity, asset_low, asset_high, created_at) VALUES (?, ?, ?, ?, ?, ?)",
			int64(p.ID), p.Owner.Hex(), p.Liquidity.Dec(), p.AssetLow.Hex(), p.AssetHigh.Hex(), p.CreatedAt.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert position %d: %w", p.ID, err)
		}
	}
	for _, u := range changes.Updates {
		res, err := tx.ExecContext(ctx, "UPDATE custody_positions SET liquidity = ? WHERE id = ?", u.Liquidity.Dec(), int64(u.ID))
		if err != nil {
			return fmt.Errorf("failed to update position %d: %w", u.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update position %d: %w", u.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %d", ledger.ErrNotFound, u.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
