// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/config"
	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/launchpad"
	"github.com/rovshanmuradov/pumpcurve/internal/market"
	"github.com/rovshanmuradov/pumpcurve/internal/simulator"
	"github.com/rovshanmuradov/pumpcurve/internal/storage"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/sqlstore"
	"github.com/rovshanmuradov/pumpcurve/internal/task"
	"github.com/rovshanmuradov/pumpcurve/internal/utils/logger"
	"github.com/rovshanmuradov/pumpcurve/internal/utils/metrics"
)

// Runner owns the in-process launchpad and its supporting services.
type Runner struct {
	cfg    *config.Config
	logger *logger.Logger

	vault   *custody.Vault
	bus     *events.Bus
	market  *market.Config
	pad     *launchpad.Launchpad
	metrics *metrics.Collector
	store   *sqlstore.Store

	metricsAddr string
	shutdown    *ShutdownHandler
}

// NewRunner принимает cfg и logger; сервисы создаются в Initialize
func NewRunner(cfg *config.Config, log *logger.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   log,
		shutdown: NewShutdownHandler(log.Logger, 30*time.Second),
	}
}

// Initialize builds custody, the event bus, the journal, metrics and the
// launchpad. With a journal, the config and markets resume from their last
// recorded state. On failure everything started so far is shut down.
func (r *Runner) Initialize() (err error) {
	defer func() {
		if err == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := r.shutdown.Shutdown(ctx); shutdownErr != nil {
			r.logger.LogError("Cleanup after failed initialization", shutdownErr)
		}
	}()

	admin, feeCollector, programID, err := r.cfg.Keys()
	if err != nil {
		return fmt.Errorf("invalid keys: %w", err)
	}
	zl := r.logger.Logger

	r.vault = custody.NewVault(zl)

	// База закрывается последней, поэтому регистрируется первой
	if r.cfg.Database.Driver != "" {
		store, err := sqlstore.Open(r.cfg.Database.Driver, r.cfg.Database.DSN, zl)
		if err != nil {
			return err
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return err
		}
		r.store = store
		r.shutdown.Add("store", func(context.Context) error { return store.Close() })
	}

	r.bus = events.NewBus(zl, r.cfg.EventBuffer)
	r.shutdown.Add("event_bus", r.bus.Shutdown)
	if r.store != nil {
		storage.NewJournal(r.store, zl).Attach(r.bus)
	}

	if r.cfg.MetricsEnabled {
		r.metrics = metrics.NewCollector(true)
		if err := r.serveMetrics(); err != nil {
			return err
		}
	}

	feeBps, paused := r.cfg.TradingFeeBps, false
	if r.store != nil {
		last, err := r.store.LatestConfig(context.Background())
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return fmt.Errorf("failed to load journaled config: %w", err)
		default:
			if admin, feeCollector, err = parseKeys(last.Admin, last.FeeCollector); err != nil {
				return fmt.Errorf("journaled config: %w", err)
			}
			feeBps, paused = last.FeeBps, last.TradingPaused
			r.logger.Info("Config restored from journal",
				zap.String("admin", last.Admin),
				zap.Uint16("fee_bps", feeBps),
				zap.Bool("paused", paused))
		}
	}

	r.market, err = market.NewConfig(zl, admin, feeCollector, feeBps,
		market.WithSettler(r.vault),
		market.WithPublisher(r.bus),
		market.WithPaused(paused))
	if err != nil {
		return fmt.Errorf("failed to initialize market config: %w", err)
	}

	opts := []launchpad.Option{
		launchpad.WithPublisher(r.bus),
		launchpad.WithDefaultCurve(r.cfg.CurveParams()),
	}
	if r.metrics != nil {
		opts = append(opts, launchpad.WithObserver(r.metrics))
	}
	r.pad, err = launchpad.New(zl, r.market, r.vault, programID, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize launchpad: %w", err)
	}

	if r.store != nil {
		if err := r.restoreMarkets(context.Background()); err != nil {
			return err
		}
	}

	r.logger.WithComponent("runner").Info("Initialized",
		zap.String("admin", admin.String()),
		zap.Uint16("fee_bps", feeBps),
		zap.String("default_curve", r.cfg.DefaultCurve),
		zap.Bool("journal", r.store != nil),
		zap.Bool("metrics", r.metrics != nil))
	return nil
}

func parseKeys(admin, feeCollector string) (solana.PublicKey, solana.PublicKey, error) {
	a, err := solana.PublicKeyFromBase58(admin)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid admin: %w", err)
	}
	c, err := solana.PublicKeyFromBase58(feeCollector)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("invalid fee collector: %w", err)
	}
	return a, c, nil
}

// restoreMarkets re-opens every journaled market with the configured params of
// its curve kind. Holder balances are not journaled; only curve reserves return.
func (r *Runner) restoreMarkets(ctx context.Context) error {
	rows, err := r.store.ListMarkets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list journaled markets: %w", err)
	}
	for _, row := range rows {
		mint, err := solana.PublicKeyFromBase58(row.Mint)
		if err != nil {
			return fmt.Errorf("journaled market %q: %w", row.Mint, err)
		}
		creator, err := solana.PublicKeyFromBase58(row.Creator)
		if err != nil {
			return fmt.Errorf("journaled market %s creator: %w", row.Mint, err)
		}
		kind, err := curve.ParseKind(row.CurveKind)
		if err != nil {
			return fmt.Errorf("journaled market %s: %w", row.Mint, err)
		}
		m, err := r.pad.Restore(launchpad.RestoreRequest{
			Metadata: launchpad.Metadata{
				Mint:      mint,
				Name:      row.Name,
				Symbol:    row.Symbol,
				Creator:   creator,
				CreatedAt: row.ListedAt,
			},
			Curve:     r.cfg.CurveParamsFor(kind),
			State:     curve.State{UnitsSold: row.UnitsSold, CurrencyRaised: row.CurrencyRaised},
			Graduated: row.Graduated,
		})
		if err != nil {
			return fmt.Errorf("failed to restore market %s: %w", row.Mint, err)
		}
		// резервы кривой живут в памяти хранилища, возвращаем их authority
		if err := r.vault.Deposit(m.Ledger.Authority().Address, row.CurrencyRaised); err != nil {
			return fmt.Errorf("failed to restore reserves of %s: %w", row.Mint, err)
		}
	}
	if len(rows) > 0 {
		r.logger.Info("Markets restored from journal", zap.Int("markets", len(rows)))
	}
	return nil
}

func (r *Runner) serveMetrics() error {
	ln, err := net.Listen("tcp", r.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", r.cfg.MetricsAddr, err)
	}
	r.metricsAddr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.LogError("Metrics server stopped", err)
		}
	}()
	r.shutdown.Add("metrics_server", server.Shutdown)
	r.logger.Info("Serving metrics", zap.String("addr", r.metricsAddr))
	return nil
}

// Launchpad returns the market registry built by Initialize.
func (r *Runner) Launchpad() *launchpad.Launchpad { return r.pad }

// Vault returns the in-memory custody.
func (r *Runner) Vault() *custody.Vault { return r.vault }

// MetricsAddr is the address metrics are served on, empty when disabled.
func (r *Runner) MetricsAddr() string { return r.metricsAddr }

// Run loads the wallet and task files and replays them against the launchpad.
func (r *Runner) Run(ctx context.Context, tasksPath, walletsPath string) (*simulator.Report, error) {
	end := r.logger.TrackPerformance("simulation")
	defer end()

	wallets, err := task.LoadWallets(walletsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	plan, err := task.NewManager(r.logger.Logger).LoadTasks(tasksPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tasks: %w", err)
	}
	r.logger.Info("Starting simulation",
		zap.Int("wallets", len(wallets)),
		zap.Int("tasks", len(plan.Tasks)),
		zap.Int("workers", r.cfg.Workers))

	opts := []simulator.Option{simulator.WithCurveParams(r.cfg.CurveParamsFor)}
	if r.store != nil {
		opts = append(opts, simulator.WithStore(r.store))
	}
	if r.metrics != nil {
		opts = append(opts, simulator.WithRecorder(r.metrics))
	}

	sim := simulator.New(r.logger, r.pad, r.vault, simulator.Config{
		Workers:    r.cfg.Workers,
		Retries:    r.cfg.Retries,
		RetryDelay: time.Duration(r.cfg.RetryDelay) * time.Millisecond,
	}, opts...)
	return sim.Run(ctx, plan, wallets)
}

// Shutdown stops the metrics server, drains the bus into the journal and
// closes the store.
func (r *Runner) Shutdown(ctx context.Context) error {
	err := r.shutdown.Shutdown(ctx)
	if syncErr := r.logger.Sync(); syncErr != nil && err == nil {
		err = syncErr
	}
	return err
}
