package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/argo-bitso/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to a YAML config `FILE`. Without it the environment (and .env) is used",
		Sources: cli.EnvVars("TRADER_CONFIG"),
	}

	cmd := &cli.Command{
		Name:    "trader",
		Usage:   "Portfolio ledger and trading orchestrator for Bitso and Binance spot books",
		Version: version.GetVersion(),
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run trading cycles until interrupted",
				Action: runAction,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "live",
						Usage: "Place real orders, overriding dry_run from the config",
					},
				},
			},
			{
				Name:   "cycle",
				Usage:  "Run a single trading cycle and print its summary",
				Action: cycleAction,
			},
			{
				Name:   "reconcile",
				Usage:  "Compare exchange balances against a ledger rebuilt from the configured pairs",
				Action: reconcileAction,
			},
			{
				Name:      "ticker",
				Usage:     "Print the latest ticker of a book",
				ArgsUsage: "<pair>",
				Action:    tickerAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "provider",
						Usage: "Print the gateway schema of a provider instead",
					},
				},
			},
			{
				Name:   "report",
				Usage:  "Print the stats of the latest journaled run",
				Action: reportAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run",
						Usage: "Run folder to read instead of the latest one",
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print the binary version",
				Action: func(_ context.Context, _ *cli.Command) error {
					fmt.Println(version.GetVersion())

					return nil
				},
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
