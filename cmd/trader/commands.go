package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-bitso/internal/config"
	"github.com/rxtech-lab/argo-bitso/internal/exchange"
	"github.com/rxtech-lab/argo-bitso/internal/history"
	"github.com/rxtech-lab/argo-bitso/internal/journal"
	"github.com/rxtech-lab/argo-bitso/internal/ledger"
	"github.com/rxtech-lab/argo-bitso/internal/logger"
	"github.com/rxtech-lab/argo-bitso/internal/orchestrator"
	"github.com/rxtech-lab/argo-bitso/internal/types"
	"github.com/rxtech-lab/argo-bitso/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// app holds what every command needs. Journal members are nil unless the
// command asked for a session.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	gateway exchange.Gateway
	store   *history.Store
	session *journal.Session
	trades  *journal.TradesWriter
	trader  *orchestrator.Orchestrator
}

func loadConfig(cmd *cli.Command) (config.Config, *logger.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return config.Config{}, nil, err
	}

	log, err := logger.NewLoggerWithConfig(cfg.Log)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}

// newApp wires the gateway, history store and orchestrator. With journal set
// and a journal directory configured, trades are recorded into a new run
// folder.
func newApp(cfg config.Config, log *logger.Logger, withJournal bool) (*app, error) {
	gateway, err := exchange.NewGateway(cfg.Exchange, log)
	if err != nil {
		return nil, err
	}

	store, err := history.NewStore(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, gateway: gateway, store: store}

	fees := exchange.ResolveFees(cfg.Exchange.Provider, cfg.Fees)
	ledgerCfg := ledger.Config{TakerFee: fees.TakerRate}

	if withJournal && cfg.JournalDir != "" {
		a.session = journal.NewSession(log)
		if err := a.session.Initialize(cfg.JournalDir); err != nil {
			return nil, multierr.Append(err, a.close())
		}

		a.trades = journal.NewTradesWriter(a.session.FilePath(journal.TradesFileName), log)
		if err := a.trades.Initialize(); err != nil {
			return nil, multierr.Append(err, a.close())
		}

		ledgerCfg.Sink = a.trades
	}

	a.trader, err = orchestrator.New(cfg, orchestrator.Dependencies{
		Gateway: gateway,
		Ledger:  ledger.New(log, ledgerCfg),
		History: store,
	}, log)
	if err != nil {
		return nil, multierr.Append(err, a.close())
	}

	return a, nil
}

func (a *app) close() error {
	var err error

	if a.trades != nil {
		err = multierr.Append(err, a.trades.Close())
	}

	if a.store != nil {
		err = multierr.Append(err, a.store.Close())
	}

	return err
}

// writeReport stores stats.yaml next to the trade journal.
func (a *app) writeReport() error {
	if a.session == nil {
		return nil
	}

	path := a.session.FilePath(orchestrator.StatsFileName)

	if _, err := a.trader.WriteReport(path, journal.TradesFileName); err != nil {
		return err
	}

	a.log.Info("Performance report written", zap.String("path", path))

	return nil
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if cmd.Bool("live") {
		cfg.DryRun = false
	}

	if !cfg.DryRun && (cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "") {
		return errors.New(errors.ErrCodeMissingCredentials, "live trading requires exchange credentials")
	}

	a, err := newApp(cfg, log, true)
	if err != nil {
		return err
	}

	runErr := a.trader.Run(ctx)
	reportErr := a.writeReport()

	return multierr.Combine(runErr, reportErr, a.close())
}

func cycleAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log, true)
	if err != nil {
		return err
	}

	a.trader.LoadHistory()
	a.trader.RunTradingCycle(ctx)
	a.trader.PersistHistory()

	printErr := printYAML(a.trader.LastCycle())
	reportErr := a.writeReport()

	return multierr.Combine(printErr, reportErr, a.close())
}

func reconcileAction(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := newApp(cfg, log, false)
	if err != nil {
		return err
	}

	a.trader.LoadHistory()

	report, err := a.trader.Reconciler().Reconcile(ctx)
	if err != nil {
		return multierr.Append(err, a.close())
	}

	printErr := printYAML(report)

	return multierr.Combine(printErr, a.close())
}

func tickerAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "usage: trader ticker <pair>")
	}

	pair, err := types.ParsePair(cmd.Args().First())
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	gateway, err := exchange.NewGateway(cfg.Exchange, log)
	if err != nil {
		return err
	}

	ticker, err := gateway.GetTicker(ctx, pair)
	if err != nil {
		return err
	}

	return printYAML(ticker)
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	var (
		schema string
		err    error
	)

	if provider := cmd.String("provider"); provider != "" {
		schema, err = exchange.GetProviderConfigSchema(provider)
	} else {
		schema, err = config.Schema()
	}

	if err != nil {
		return err
	}

	fmt.Println(schema)

	return nil
}

func reportAction(_ context.Context, cmd *cli.Command) error {
	runPath := cmd.String("run")

	if runPath == "" {
		cfg, log, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if cfg.JournalDir == "" {
			return errors.New(errors.ErrCodeMissingParameter, "journal_dir is not configured; pass --run")
		}

		runPath, err = journal.LatestRun(cfg.JournalDir)
		if err != nil {
			return err
		}
	}

	statsPath := filepath.Join(runPath, orchestrator.StatsFileName)
	if _, err := os.Stat(statsPath); err == nil {
		report, err := types.ReadPerformanceReport(statsPath)
		if err != nil {
			return err
		}

		return printYAML(report)
	}

	// the run was interrupted before its report was written
	trades, err := journal.ReadTrades(filepath.Join(runPath, journal.TradesFileName))
	if err != nil {
		return err
	}

	return printYAML(trades)
}

func printYAML(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	_, err = os.Stdout.Write(data)

	return err
}
