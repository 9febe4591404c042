// ====================================
// File: cmd/curvesim/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/app"
	"github.com/rovshanmuradov/pumpcurve/internal/config"
	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/export"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/sqlstore"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
	"github.com/rovshanmuradov/pumpcurve/internal/utils/logger"
)

var configPath string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curvesim",
		Short: "Bonding-curve launchpad simulator",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}
	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceUsage = true
	cmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to config file")

	cmd.AddCommand(newRunCmd(), newQuoteCmd(), newExportCmd(), newStatsCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var tasksPath, walletsPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replay a task file against an in-memory launchpad",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			log, err := logger.New(logger.ForFile(cfg.Log.File, cfg.Log.Development))
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			defer log.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runner := app.NewRunner(cfg, log)
			if err := runner.Initialize(); err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := runner.Shutdown(shutdownCtx); err != nil {
					log.LogError("Shutdown failed", err)
				}
			}()

			report, err := runner.Run(ctx, tasksPath, walletsPath)
			if err != nil {
				return err
			}
			if err := report.Render(cmd.OutOrStdout()); err != nil {
				return err
			}
			if failed := report.Failed(); failed > 0 {
				log.Warn("Some tasks failed", zap.Int("failed", failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tasksPath, "tasks", "configs/tasks.yaml", "path to tasks file")
	cmd.Flags().StringVar(&walletsPath, "wallets", "configs/wallets.yaml", "path to wallets file")
	return cmd
}

func newQuoteCmd() *cobra.Command {
	var (
		kind   string
		sold   uint64
		raised uint64
		amount uint64
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a buy against a curve state without trading",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if kind == "" {
				kind = cfg.DefaultCurve
			}
			k, err := curve.ParseKind(kind)
			if err != nil {
				return err
			}
			strategy, err := curve.New(cfg.CurveParamsFor(k))
			if err != nil {
				return err
			}

			st := curve.State{UnitsSold: sold, CurrencyRaised: raised}
			price, err := strategy.PriceAt(st)
			if err != nil {
				return err
			}
			feeAmt, net, err := fee.Compute(amount, cfg.TradingFeeBps)
			if err != nil {
				return err
			}
			tokens, err := curve.QuoteBuy(strategy, st, net)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "curve:      %s\n", k)
			fmt.Fprintf(out, "price:      %d\n", price)
			fmt.Fprintf(out, "amount in:  %s SOL\n", fixedpoint.FormatCurrency(amount))
			fmt.Fprintf(out, "fee:        %s SOL\n", fixedpoint.FormatCurrency(feeAmt))
			fmt.Fprintf(out, "tokens out: %s\n", fixedpoint.FormatTokens(tokens))
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "curve", "", "curve kind (default from config)")
	cmd.Flags().Uint64Var(&sold, "sold", 0, "units sold so far")
	cmd.Flags().Uint64Var(&raised, "raised", 0, "currency raised so far, lamports")
	cmd.Flags().Uint64Var(&amount, "amount", 1_000_000_000, "currency to spend, lamports")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		mint   string
		action string
		format string
		outDir string
		daily  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export journaled trades to CSV or JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, store, err := openJournal()
			if err != nil {
				return err
			}
			defer log.Close()
			defer store.Close()

			ctx := cmd.Context()
			mints := []string{mint}
			if mint == "" {
				markets, err := store.ListMarkets(ctx)
				if err != nil {
					return fmt.Errorf("failed to list markets: %w", err)
				}
				mints = mints[:0]
				for _, m := range markets {
					mints = append(mints, m.Mint)
				}
			}

			var trades []*models.Trade
			for _, m := range mints {
				page, err := store.ListTrades(ctx, m, -1, 0)
				if err != nil {
					return fmt.Errorf("failed to list trades for %s: %w", m, err)
				}
				trades = append(trades, page...)
			}

			exporter := export.NewTradeExporter(log.Logger, types.SystemClock{})
			var path string
			if daily != "" {
				date, err := time.Parse("2006-01-02", daily)
				if err != nil {
					return fmt.Errorf("invalid --daily date: %w", err)
				}
				if path, err = exporter.ExportDailyReport(trades, date, outDir); err != nil {
					return err
				}
				if path == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "no trades on", daily)
					return nil
				}
			} else {
				path, err = exporter.ExportTrades(trades, export.ExportOptions{
					Format:       export.ExportFormat(format),
					MintFilter:   mint,
					ActionFilter: action,
					OutputDir:    outDir,
				})
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "only export trades of this token mint")
	cmd.Flags().StringVar(&action, "action", "", "only export buy or sell trades")
	cmd.Flags().StringVar(&format, "format", string(export.FormatCSV), "csv or json")
	cmd.Flags().StringVar(&outDir, "out", "exports", "output directory")
	cmd.Flags().StringVar(&daily, "daily", "", "write a daily JSON report for YYYY-MM-DD instead")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var mint, taskName string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show journaled markets with trade totals, or the history of one task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, store, err := openJournal()
			if err != nil {
				return err
			}
			defer log.Close()
			defer store.Close()

			if taskName != "" {
				return app.WriteTaskHistory(cmd.Context(), store, taskName, cmd.OutOrStdout())
			}
			return app.WriteMarketStats(cmd.Context(), store, mint, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&mint, "mint", "", "only show this token mint")
	cmd.Flags().StringVar(&taskName, "task", "", "show the attempts of this task instead")
	return cmd
}

// openJournal opens the configured trade journal for offline commands.
func openJournal() (*logger.Logger, *sqlstore.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver == "" {
		return nil, nil, fmt.Errorf("trade journal is disabled: set database.driver in %s", configPath)
	}

	log, err := logger.New(logger.ForFile(cfg.Log.File, cfg.Log.Development))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	store, err := sqlstore.Open(cfg.Database.Driver, cfg.Database.DSN, log.Logger)
	if err != nil {
		_ = log.Close()
		return nil, nil, err
	}
	if err := store.RunMigrations(); err != nil {
		_ = store.Close()
		_ = log.Close()
		return nil, nil, err
	}
	return log, store, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
