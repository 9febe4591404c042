// Package simulator replays scripted trade tasks against a launchpad.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/launchpad"
	"github.com/rovshanmuradov/pumpcurve/internal/ledger"
	"github.com/rovshanmuradov/pumpcurve/internal/storage"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
	"github.com/rovshanmuradov/pumpcurve/internal/task"
	"github.com/rovshanmuradov/pumpcurve/internal/utils/logger"
)

var (
	ErrUnknownWallet = errors.New("unknown wallet")
	ErrUnknownToken  = errors.New("unknown token")
)

// Funder credits starting balances to simulated wallets.
type Funder interface {
	Deposit(account solana.PublicKey, amount uint64) error
}

// TaskRecorder receives the outcome of every task.
type TaskRecorder interface {
	RecordTask(ctx context.Context, operation string, duration time.Duration, success bool)
}

// Config controls concurrency and retry behaviour.
type Config struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// Simulator runs a task plan: wallets in parallel, each wallet's tasks in order.
type Simulator struct {
	pad      *launchpad.Launchpad
	funder   Funder
	store    storage.Storage
	recorder TaskRecorder
	params   func(curve.Kind) curve.Params
	cfg      Config
	logger   *logger.Logger
}

type Option func(*Simulator)

// WithStore persists task history.
func WithStore(s storage.Storage) Option { return func(sim *Simulator) { sim.store = s } }

// WithRecorder reports task outcomes, usually to metrics.
func WithRecorder(r TaskRecorder) Option { return func(sim *Simulator) { sim.recorder = r } }

// WithCurveParams resolves the curve a token spec names.
func WithCurveParams(f func(curve.Kind) curve.Params) Option {
	return func(sim *Simulator) { sim.params = f }
}

func New(log *logger.Logger, pad *launchpad.Launchpad, funder Funder, cfg Config, opts ...Option) *Simulator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 50 * time.Millisecond
	}
	sim := &Simulator{
		pad:    pad,
		funder: funder,
		params: curve.DefaultParams,
		cfg:    cfg,
		logger: logger.Wrap(log.Named("simulator")),
	}
	for _, opt := range opts {
		opt(sim)
	}
	return sim
}

// TaskResult is the outcome of one task.
type TaskResult struct {
	Task     *task.Task
	Mint     solana.PublicKey
	Attempts int
	Trade    *ledger.TradeResult
	Err      error
	Duration time.Duration
}

// Report collects the results of a run in task order.
type Report struct {
	Results []TaskResult
	Markets []MarketSummary
}

// Failed counts the tasks that did not trade.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Run funds wallets, lists the plan's tokens and executes every task.
// Task failures are recorded in the report; only cancellation or setup
// errors are returned.
func (s *Simulator) Run(ctx context.Context, plan *task.Plan, wallets map[string]*task.Wallet) (*Report, error) {
	if err := s.fund(wallets); err != nil {
		return nil, err
	}
	mints, err := s.listTokens(plan.Tokens)
	if err != nil {
		return nil, err
	}

	results := make([]TaskResult, len(plan.Tasks))
	byWallet := make(map[string][]int)
	var order []string
	for i, t := range plan.Tasks {
		if _, ok := byWallet[t.WalletName]; !ok {
			order = append(order, t.WalletName)
		}
		byWallet[t.WalletName] = append(byWallet[t.WalletName], i)
	}

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, name := range order {
		name := name
		indexes := byWallet[name]
		g.Go(func() error {
			w := wallets[name]
			for _, i := range indexes {
				if err := gCtx.Err(); err != nil {
					return err
				}
				res := s.runTask(gCtx, w, mints, plan.Tasks[i])
				mu.Lock()
				results[i] = res
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("simulation interrupted: %w", err)
	}

	report := &Report{Results: results}
	for _, spec := range plan.Tokens {
		report.Markets = append(report.Markets, s.summarize(spec.Symbol, mints[spec.Symbol], results))
	}
	s.logger.Info("Simulation finished",
		zap.Int("tasks", len(results)),
		zap.Int("failed", report.Failed()),
		zap.Int("markets", len(report.Markets)))
	return report, nil
}

func (s *Simulator) fund(wallets map[string]*task.Wallet) error {
	names := make([]string, 0, len(wallets))
	for name := range wallets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w := wallets[name]
		if w.Balance == 0 {
			continue
		}
		if err := s.funder.Deposit(w.PublicKey, w.Balance); err != nil {
			return fmt.Errorf("failed to fund wallet %s: %w", name, err)
		}
		s.logger.Debug("Wallet funded", zap.String("wallet", name), zap.Uint64("balance", w.Balance))
	}
	return nil
}

func (s *Simulator) listTokens(specs []task.TokenSpec) (map[string]solana.PublicKey, error) {
	creator := s.pad.Config().Snapshot().Admin
	mints := make(map[string]solana.PublicKey, len(specs))

	for _, spec := range specs {
		req := launchpad.CreateTokenRequest{
			Name:        spec.Name,
			Symbol:      spec.Symbol,
			Description: spec.Description,
			ImageURL:    spec.ImageURL,
			Creator:     creator,
		}
		if spec.Curve != "" {
			kind, err := curve.ParseKind(spec.Curve)
			if err != nil {
				return nil, fmt.Errorf("token %s: %w", spec.Symbol, err)
			}
			params := s.params(kind)
			req.Curve = &params
		}

		m, err := s.pad.CreateToken(req)
		if err != nil {
			return nil, fmt.Errorf("failed to list token %s: %w", spec.Symbol, err)
		}
		mints[spec.Symbol] = m.Metadata.Mint
	}
	return mints, nil
}

func (s *Simulator) runTask(ctx context.Context, w *task.Wallet, mints map[string]solana.PublicKey, t *task.Task) TaskResult {
	start := time.Now()
	res := TaskResult{Task: t}
	taskLogger := s.logger.WithTask(t)

	defer func() {
		res.Duration = time.Since(start)
		if s.recorder != nil {
			s.recorder.RecordTask(ctx, string(t.Operation), res.Duration, res.Err == nil)
		}
		s.saveHistory(ctx, start, res)
	}()

	if w == nil {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownWallet, t.WalletName)
		taskLogger.Warn("Task skipped", zap.Error(res.Err))
		return res
	}
	mint, ok := mints[t.Token]
	if !ok {
		res.Err = fmt.Errorf("%w: %s", ErrUnknownToken, t.Token)
		taskLogger.Warn("Task skipped", zap.Error(res.Err))
		return res
	}
	res.Mint = mint

	direction := ledger.Buy
	if t.Operation == task.OperationSell {
		direction = ledger.Sell
	}

	operation := func() (*ledger.TradeResult, error) {
		res.Attempts++
		// Котировка заново на каждой попытке: цена могла сдвинуться
		q, err := s.pad.Quote(mint, ledger.TradeRequest{AmountIn: t.Amount, Direction: direction})
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		trade, err := s.pad.Trade(ctx, mint, w.PublicKey, ledger.TradeRequest{
			AmountIn:     t.Amount,
			MinAmountOut: t.Slippage.MinAmountOut(q.AmountOut),
			Direction:    direction,
		})
		if err != nil {
			if ledger.IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return trade, nil
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = s.cfg.RetryDelay
	backoffPolicy.MaxInterval = s.cfg.RetryDelay * 10

	notify := func(err error, d time.Duration) {
		taskLogger.Info("Retrying trade after slippage", zap.Error(err), zap.Duration("backoff", d))
	}

	trade, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(uint(s.cfg.Retries+1)),
		backoff.WithNotify(notify))
	if err != nil {
		res.Err = err
		taskLogger.Warn("Task failed",
			zap.Int("attempts", res.Attempts),
			zap.String("reason", ledger.Reason(err)),
			zap.Error(err))
		return res
	}

	res.Trade = trade
	taskLogger.Info("Task completed",
		zap.String("trade_id", trade.TradeID),
		zap.Uint64("amount_out", trade.AmountOut),
		zap.Uint64("fee", trade.Fee),
		zap.Int("attempts", res.Attempts))
	return res
}

func (s *Simulator) saveHistory(ctx context.Context, start time.Time, res TaskResult) {
	if s.store == nil {
		return
	}
	completed := start.Add(res.Duration)
	history := &models.TaskHistory{
		TaskName:      res.Task.TaskName,
		Wallet:        res.Task.WalletName,
		Operation:     string(res.Task.Operation),
		Status:        "success",
		Attempts:      res.Attempts,
		AmountIn:      res.Task.Amount,
		StartedAt:     &start,
		CompletedAt:   &completed,
		ExecutionTime: res.Duration.Seconds(),
	}
	if !res.Mint.IsZero() {
		history.Mint = res.Mint.String()
	}
	if res.Trade != nil {
		history.AmountOut = res.Trade.AmountOut
	}
	if res.Err != nil {
		history.Status = "failed"
		history.ErrorMessage = res.Err.Error()
	}
	if err := s.store.SaveTaskHistory(ctx, history); err != nil {
		s.logger.Warn("Failed to save task history", zap.String("task_name", res.Task.TaskName), zap.Error(err))
	}
}
