// Package app wires a custodian to a simulated chain and AMM from a
// configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ftchann/uniswap-custody/lib/amm"
	"github.com/ftchann/uniswap-custody/lib/chain"
	"github.com/ftchann/uniswap-custody/lib/config"
	"github.com/ftchann/uniswap-custody/lib/custody"
	"github.com/ftchann/uniswap-custody/lib/ledger"
	"github.com/ftchann/uniswap-custody/lib/ledger/memory"
	"github.com/ftchann/uniswap-custody/lib/ledger/sqlite"
	"github.com/ftchann/uniswap-custody/lib/metrics"
	"github.com/ftchann/uniswap-custody/lib/registry"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
)

// ErrStoreNotEmpty is returned when a persistent store already holds positions.
// Those records belong to a chain that no longer exists, and the fresh chain
// would hand out the same position ids again.
var ErrStoreNotEmpty = errors.New("app: ledger store already holds positions from an earlier chain")

type Env struct {
	Config    *config.Config
	Logger    *slog.Logger
	Chain     *chain.Chain
	Factory   *amm.Factory
	Manager   *amm.PositionManager
	Router    *amm.Router
	Registry  *registry.Registry
	Store     ledger.Store
	Custodian *custody.Custodian
	Metrics   *metrics.Custody
	Gatherer  *prometheus.Registry
	Events    *EventLog
	Account   common.Address
}

// Bootstrap builds an environment with a fresh chain starting at genesis. The
// store must be empty.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger, genesis time.Time) (*Env, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}
	n, err := store.Count(ctx)
	if err != nil {
		store.Close()
		return nil, err
	}
	if n > 0 {
		store.Close()
		return nil, fmt.Errorf("%w: %d positions in %s store", ErrStoreNotEmpty, n, cfg.Store.Driver)
	}

	c := chain.New(genesis)
	factory := amm.NewFactory(c)
	manager := amm.NewPositionManager(c, factory)
	router := amm.NewRouter(c, factory)
	account := chain.AddressOf(cfg.Custody.Account)
	gatherer := prometheus.NewRegistry()
	m := metrics.NewCustody(gatherer, cfg.Metrics.Namespace)
	events := &EventLog{}

	custodian, err := custody.New(account, custody.Dependencies{
		Tokens:    c.Mover(account),
		Positions: manager.Session(account),
		Swaps:     router.Session(account),
		Store:     store,
		Journal:   c,
	},
		custody.WithPolicy(policy),
		custody.WithLogger(logger.With("component", "custody")),
		custody.WithClock(c.Now),
		custody.WithMetrics(m),
		custody.WithListener(events),
	)
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Debug("environment ready", "custody", account.Hex(), "store", cfg.Store.Driver, "settlement", policy.DecreaseSettlement)
	return &Env{
		Config:    cfg,
		Logger:    logger,
		Chain:     c,
		Factory:   factory,
		Manager:   manager,
		Router:    router,
		Registry:  registry.New(manager.Session(account), logger.With("component", "registry")),
		Store:     store,
		Custodian: custodian,
		Metrics:   m,
		Gatherer:  gatherer,
		Events:    events,
		Account:   account,
	}, nil
}

func (e *Env) Close() error {
	return e.Store.Close()
}

// OpenStore opens the ledger store the configuration names.
func OpenStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalid, cfg.Store.Driver)
}

// NewLogger builds the handler the configuration asks for.
func NewLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// EventLog records custody events in delivery order.
type EventLog struct {
	mu     sync.Mutex
	events []custody.Event
}

func (l *EventLog) OnEvent(e custody.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *EventLog) Events() []custody.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]custody.Event(nil), l.events...)
}
