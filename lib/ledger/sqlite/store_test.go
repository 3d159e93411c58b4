package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/ledger/ledgertest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		s, err := Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStorePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "custody.db")

	s, err := Open(path)
	require.NoError(t, err)
	var cs ledger.ChangeSet
	cs.Insert(ledgertest.NewPosition(42, ledgertest.Alice, 123))
	require.NoError(t, s.Commit(ctx, cs))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, ledgertest.Alice, got.Owner)
	assert.Equal(t, uint64(123), got.Liquidity.Uint64())
}
