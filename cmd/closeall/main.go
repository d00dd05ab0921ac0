package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/camuig/strategy-trader/internal/bot"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
)

var (
	configPath string
	dryRun     bool
)

var rootCmd = &cobra.Command{
	Use:          "closeall",
	Short:        "Sell every open stock position at market",
	Long:         "Lists open positions and sells each stock position in full. Option positions are listed but left open.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show positions without closing")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging.Level)
	out := cmd.OutOrStdout()

	ctx := context.Background()
	port, stop, err := bot.NewPort(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stop()

	positions, err := port.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("get positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Fprintln(out, "No open positions.")
		return nil
	}

	fmt.Fprintf(out, "Found %d position(s):\n\n", len(positions))
	for _, p := range positions {
		kind := "stock"
		if p.IsOption() {
			kind = "option"
		}
		fmt.Fprintf(out, "  %s (%s): qty %v, avg %.2f, current %.2f, P&L %.2f\n",
			p.Symbol, kind, p.Qty, p.AvgEntryPrice, p.CurrentPrice, p.UnrealizedPL)
	}
	fmt.Fprintln(out)

	if dryRun {
		fmt.Fprintln(out, "Dry run, no orders placed.")
		return nil
	}

	// The config file's dry_run is for the scheduler; this tool always trades.
	cfg.Bot.DryRun = false
	svc := bot.New(cfg.Bot, cfg.Schedule, bot.Deps{Port: port, Logger: log})

	outcomes, err := svc.CloseAll(ctx)
	if err != nil {
		return err
	}

	var closed, failed int
	for _, o := range outcomes {
		if !o.Success {
			fmt.Fprintf(out, "  [FAIL] %s: %s\n", o.Symbol, o.Error)
			failed++
			continue
		}
		fmt.Fprintf(out, "  [OK]   %s: sold %v, order %s\n", o.Symbol, o.Quantity, o.OrderID)
		closed++
	}

	fmt.Fprintf(out, "\nDone: %d closed, %d failed.\n", closed, failed)
	if failed > 0 {
		return fmt.Errorf("%d position(s) failed to close", failed)
	}
	return nil
}
