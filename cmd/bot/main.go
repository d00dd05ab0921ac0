package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/camuig/strategy-trader/internal/bot"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/logger"
	"github.com/camuig/strategy-trader/internal/web"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "strategy-trader",
	Short:        "Rule based trading bot with a JSON control API",
	SilenceUsage: true,
	RunE:         runBot,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the scheduler and serve the control API until interrupted",
	RunE:  runBot,
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single trading cycle and print the report as JSON",
	RunE:  runOnce,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(runCmd, onceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, *logger.Logger, *bot.Service, func() error, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Logging.Level)

	svc, stop, err := bot.FromConfig(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		_ = stop()
		return nil, nil, nil, nil, err
	}
	return cfg, log, svc, stop, nil
}

func runBot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, log, svc, stopBroker, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := stopBroker(); err != nil {
			log.Error("broker client stop error", "error", err)
		}
	}()

	mode := "LIVE"
	if cfg.IsPaper() {
		mode = "PAPER"
	}
	log.Info("starting strategy-trader",
		"mode", mode, "provider", cfg.Broker.Provider, "dry_run", cfg.Bot.DryRun, "symbols", cfg.Bot.Symbols)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	webServer := web.NewServer(ctx, svc, cfg.Web.Port, log)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")

	svc.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	log.Info("strategy-trader stopped")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_, _, svc, stopBroker, err := setup(ctx)
	if err != nil {
		return err
	}
	defer stopBroker()

	report, err := svc.RunCycleOnce(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
