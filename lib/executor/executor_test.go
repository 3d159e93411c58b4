package executor

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/ftchann/uniswap-custody/lib/app"
	"github.com/ftchann/uniswap-custody/lib/config"
	"github.com/ftchann/uniswap-custody/lib/custody"
	"github.com/ftchann/uniswap-custody/lib/result"
	ent "github.com/ftchann/uniswap-custody/lib/transaction"

	ui "github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, settlement string, mutate ...func(*config.Config)) *app.Env {
	t.Helper()
	cfg := config.Default()
	cfg.Custody.DecreaseSettlement = settlement
	for _, m := range mutate {
		m(cfg)
	}
	env, err := app.Bootstrap(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

func eventsOf(report *result.Report, kind custody.EventKind) []result.Event {
	var out []result.Event
	for _, e := range report.Events {
		if e.Kind == string(kind) {
			out = append(out, e)
		}
	}
	return out
}

func TestDemo(t *testing.T) {
	for _, settlement := range []string{"retain", "forward"} {
		t.Run(settlement, func(t *testing.T) {
			env := newEnv(t, settlement)
			report, err := CreateExecution(env).Run(context.Background(), DemoScript())
			require.NoError(t, err)
			assert.Zero(t, report.Mismatches)
			assert.Equal(t, settlement, report.Settlement)

			minted := eventsOf(report, custody.EventMinted)
			require.Len(t, minted, 1)
			assert.Equal(t, "alice", minted[0].Caller)
			assert.NotEqual(t, "0", minted[0].Liquidity)
			for _, amount := range []string{minted[0].Amount0, minted[0].Amount1} {
				v := ui.MustFromDecimal(amount)
				assert.True(t, v.Cmp(ui.NewInt(1000)) <= 0)
			}

			// The first collect after the swaps pays out fees.
			collected := eventsOf(report, custody.EventFeesCollected)
			require.NotEmpty(t, collected)
			fees := new(ui.Int).Add(ui.MustFromDecimal(collected[0].Amount0), ui.MustFromDecimal(collected[0].Amount1))
			assert.False(t, fees.IsZero())

			require.Len(t, report.Positions, 1)
			pos := report.Positions[0]
			assert.Equal(t, "lp", pos.Label)
			assert.Equal(t, "alice", pos.Owner)
			assert.Equal(t, "0", pos.Liquidity)
			assert.Equal(t, 1, len(eventsOf(report, custody.EventReconciled)))

			for _, b := range report.Balances {
				if b.Account == env.Config.Custody.Account {
					assert.Equal(t, "0", b.Raw, "custody keeps nothing of %s", b.Token)
				}
			}
		})
	}
}

func TestUnexpectedOutcomeIsReported(t *testing.T) {
	env := newEnv(t, "retain")
	steps := append(DemoScript()[:8], ent.Transaction{Type: ent.Collect, Caller: "bob", Position: "lp"})
	report, err := CreateExecution(env).Run(context.Background(), steps)
	require.ErrorIs(t, err, ErrUnexpectedOutcome)
	assert.Equal(t, 1, report.Mismatches)
	last := report.Steps[len(report.Steps)-1]
	assert.Equal(t, custody.OutcomeNotOwner, last.Outcome)
	assert.Equal(t, custody.OutcomeOK, last.Expected)
	assert.NotEmpty(t, last.Error)
}

func TestSetupFailureStops(t *testing.T) {
	env := newEnv(t, "retain")
	steps := []ent.Transaction{
		{Type: ent.Fund, Account: "alice", Symbol: "DAI", Amount: ui.NewInt(1)},
		{Type: ent.Token, Symbol: "DAI", Decimals: 18},
	}
	report, err := CreateExecution(env).Run(context.Background(), steps)
	require.ErrorIs(t, err, ErrSetup)
	assert.ErrorIs(t, err, ErrUnknownName)
	assert.Len(t, report.Steps, 1)
}

func TestUnknownLabel(t *testing.T) {
	env := newEnv(t, "retain")
	report, err := CreateExecution(env).Run(context.Background(), []ent.Transaction{
		{Type: ent.Collect, Caller: "alice", Position: "missing", Expect: custody.OutcomePositionNotFound},
	})
	require.NoError(t, err)
	assert.Zero(t, report.Mismatches)
}

func TestDemoOnSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody.db")
	env := newEnv(t, "forward", func(cfg *config.Config) {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.Path = path
	})
	report, err := CreateExecution(env).Run(context.Background(), DemoScript())
	require.NoError(t, err)
	require.Len(t, report.Positions, 1)

	pos, err := env.Store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, pos.Liquidity.IsZero())
	require.NoError(t, env.Close())

	cfg := config.Default()
	cfg.Custody.DecreaseSettlement = "forward"
	cfg.Store.Driver = config.DriverSQLite
	cfg.Store.Path = path
	_, err = app.Bootstrap(context.Background(), cfg, nil, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, app.ErrStoreNotEmpty)
}
