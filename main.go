package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/ftchann/uniswap-custody/lib/app"
	"github.com/ftchann/uniswap-custody/lib/config"
	"github.com/ftchann/uniswap-custody/lib/executor"
	ent "github.com/ftchann/uniswap-custody/lib/transaction"

	"github.com/spf13/cobra"
)

type flags struct {
	config     string
	settlement string
	store      string
	storePath  string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:          "uniswap-custody",
		Short:        "Custody ledger for concentrated liquidity positions on a simulated chain",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.config, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&f.settlement, "settlement", "", "decrease settlement: retain or forward")
	root.PersistentFlags().StringVar(&f.store, "store", "", "ledger store driver: memory or sqlite")
	root.PersistentFlags().StringVar(&f.storePath, "store-path", "", "sqlite database file")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(&cobra.Command{
		Use:   "demo",
		Short: "Mint, collect and trade through custody on a fresh chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f, executor.DemoScript(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "run <script.json>",
		Short: "Replay a JSON script of custody operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			steps, err := ent.Parse(data)
			if err != nil {
				return err
			}
			return run(cmd.Context(), f, steps, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})
	return root
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.config != "" {
		data, err := os.ReadFile(f.config)
		if err != nil {
			return nil, err
		}
		// Flags may supply what the file leaves out, so validate after them.
		if cfg, err = config.Decode(data); err != nil {
			return nil, err
		}
	}
	cfg.OverrideWithEnv()
	if f.settlement != "" {
		cfg.Custody.DecreaseSettlement = f.settlement
	}
	if f.store != "" {
		cfg.Store.Driver = f.store
	}
	if f.storePath != "" {
		cfg.Store.Path = f.storePath
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, f *flags, steps []ent.Transaction, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(stderr, cfg)
	if err != nil {
		return err
	}
	env, err := app.Bootstrap(ctx, cfg, logger, time.Now().UTC().Truncate(time.Second))
	if err != nil {
		return err
	}
	defer env.Close()

	report, runErr := executor.CreateExecution(env).Run(ctx, steps)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return runErr
}
