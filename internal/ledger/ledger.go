// =============================
// File: internal/ledger/ledger.go
// =============================
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
	"github.com/rovshanmuradov/pumpcurve/internal/market"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

// Config is the view of the global market config a ledger needs.
type Config interface {
	Snapshot() market.Snapshot
	Authorize(caller solana.PublicKey) error
}

// Observer receives the outcome of every trade attempt.
type Observer interface {
	ObserveTrade(mint, direction string, amountIn, fee, price, progressBps uint64)
	ObserveRejection(mint, direction, reason string)
}

// Params are the fixed inputs of a ledger.
type Params struct {
	Mint      solana.PublicKey
	Authority custody.Authority
	Strategy  curve.Strategy
	Config    Config
	Settler   custody.Settler
}

// Ledger owns the mutable state of one market. At most one trade is
// validated, committed and settled at a time.
type Ledger struct {
	mu        sync.Mutex
	state     curve.State
	graduated bool

	mint      solana.PublicKey
	authority custody.Authority
	strategy  curve.Strategy
	config    Config
	settler   custody.Settler

	publisher events.Publisher
	observer  Observer
	clock     types.Clock
	logger    *zap.Logger
}

// Option customizes a Ledger.
type Option func(*Ledger)

func WithPublisher(p events.Publisher) Option { return func(l *Ledger) { l.publisher = p } }
func WithClock(c types.Clock) Option          { return func(l *Ledger) { l.clock = c } }
func WithObserver(o Observer) Option          { return func(l *Ledger) { l.observer = o } }

// WithState starts the ledger from a previously persisted state.
func WithState(st curve.State) Option { return func(l *Ledger) { l.state = st } }

// WithGraduated starts the ledger already retired.
func WithGraduated() Option { return func(l *Ledger) { l.graduated = true } }

// New creates a ledger for p.Mint.
func New(logger *zap.Logger, p Params, opts ...Option) (*Ledger, error) {
	if p.Mint.IsZero() {
		return nil, errors.New("mint is required")
	}
	if p.Authority.Address.IsZero() {
		return nil, errors.New("curve authority is required")
	}
	if p.Strategy == nil || p.Config == nil || p.Settler == nil {
		return nil, errors.New("strategy, config and settler are required")
	}

	l := &Ledger{
		mint:      p.Mint,
		authority: p.Authority,
		strategy:  p.Strategy,
		config:    p.Config,
		settler:   p.Settler,
		publisher: events.Discard,
		clock:     types.SystemClock{},
		logger: logger.Named("ledger").With(
			zap.String("mint", p.Mint.String()),
			zap.String("curve", string(p.Strategy.Kind()))),
	}
	for _, opt := range opts {
		opt(l)
	}
	if !l.graduated && l.state.UnitsSold >= curve.TotalSaleSupply {
		return nil, fmt.Errorf("%w: units sold %d", ErrGraduationReached, l.state.UnitsSold)
	}
	return l, nil
}

func (l *Ledger) Mint() solana.PublicKey       { return l.mint }
func (l *Ledger) Authority() custody.Authority { return l.authority }
func (l *Ledger) Strategy() curve.Strategy     { return l.strategy }

// State returns the committed market state.
func (l *Ledger) State() curve.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Status reports whether the market accepts trades.
func (l *Ledger) Status() Status {
	l.mu.Lock()
	graduated := l.graduated
	l.mu.Unlock()

	switch {
	case graduated:
		return StatusGraduated
	case l.config.Snapshot().TradingPaused:
		return StatusPaused
	default:
		return StatusActive
	}
}

// Progress returns units sold as basis points of the total sale supply.
func (l *Ledger) Progress() uint64 {
	return progressBps(l.State())
}

func progressBps(st curve.State) uint64 {
	bps, err := fixedpoint.MulDiv(st.UnitsSold, fee.BpsDenominator, curve.TotalSaleSupply)
	if err != nil {
		return fee.BpsDenominator
	}
	return bps
}

// Quote prices req against the current state with every check ExecuteTrade
// applies, without committing anything.
func (l *Ledger) Quote(req TradeRequest) (Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, err := l.quoteLocked(req)
	if err != nil {
		return Quote{}, &TradeError{Mint: l.mint, Direction: req.Direction, Err: err}
	}
	return q, nil
}

// ExecuteTrade validates req, commits the new market state and settles the
// fund movements. When settlement fails the state is restored and the
// trade has no effect.
func (l *Ledger) ExecuteTrade(ctx context.Context, trader solana.PublicKey, req TradeRequest) (*TradeResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	logger := l.logger.With(
		zap.String("trader", trader.String()),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amount_in", req.AmountIn),
		zap.Uint64("min_amount_out", req.MinAmountOut))

	q, err := l.quoteLocked(req)
	if err != nil {
		logger.Debug("Trade rejected", zap.Error(err))
		l.reject(req.Direction, err)
		return nil, &TradeError{Mint: l.mint, Direction: req.Direction, Err: err}
	}

	ixs := l.instructions(trader, q)

	prev := l.state
	l.state = q.After
	if err := l.settler.Settle(ctx, ixs); err != nil {
		l.state = prev
		logger.Warn("Settlement failed, state restored", zap.Error(err))
		err = fmt.Errorf("%w: %w", ErrSettlement, err)
		l.reject(req.Direction, err)
		return nil, &TradeError{Mint: l.mint, Direction: req.Direction, Err: err}
	}

	res := &TradeResult{Quote: q, TradeID: uuid.New().String()}
	progress := progressBps(l.state)

	logger.Info("Trade executed",
		zap.String("trade_id", res.TradeID),
		zap.Uint64("amount_out", q.AmountOut),
		zap.Uint64("fee", q.Fee),
		zap.Uint64("price", q.Price),
		zap.Uint64("units_sold", l.state.UnitsSold),
		zap.Uint64("currency_raised", l.state.CurrencyRaised),
		zap.Uint64("progress_bps", progress))

	if l.observer != nil {
		l.observer.ObserveTrade(l.mint.String(), req.Direction.String(), req.AmountIn, q.Fee, q.Price, progress)
	}
	l.publish(&events.TradeCompletedEvent{
		BaseEvent:      events.NewBase(events.TradeCompleted, l.clock.Now()),
		TradeID:        res.TradeID,
		Trader:         trader,
		Mint:           l.mint,
		AmountIn:       q.AmountIn,
		AmountOut:      q.AmountOut,
		Fee:            q.Fee,
		IsBuy:          req.Direction == Buy,
		Price:          q.Price,
		UnitsSold:      l.state.UnitsSold,
		CurrencyRaised: l.state.CurrencyRaised,
	})
	return res, nil
}

// Graduate retires the curve. Afterwards every trade fails with ErrGraduated.
func (l *Ledger) Graduate(caller solana.PublicKey) error {
	if err := l.config.Authorize(caller); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.graduated {
		return ErrGraduated
	}
	l.graduated = true

	l.logger.Info("Curve graduated",
		zap.Uint64("units_sold", l.state.UnitsSold),
		zap.Uint64("currency_raised", l.state.CurrencyRaised))
	l.publish(&events.CurveGraduatedEvent{
		BaseEvent:      events.NewBase(events.CurveGraduated, l.clock.Now()),
		Mint:           l.mint,
		Authority:      l.authority.Address,
		UnitsSold:      l.state.UnitsSold,
		CurrencyRaised: l.state.CurrencyRaised,
	})
	return nil
}

func (l *Ledger) quoteLocked(req TradeRequest) (Quote, error) {
	if req.Direction != Buy && req.Direction != Sell {
		return Quote{}, fmt.Errorf("%w: %d", ErrInvalidDirection, req.Direction)
	}
	if req.AmountIn == 0 {
		return Quote{}, ErrZeroAmount
	}
	if l.graduated {
		return Quote{}, ErrGraduated
	}

	snap := l.config.Snapshot()
	if snap.TradingPaused {
		return Quote{}, ErrTradingPaused
	}

	quote := l.quoteSell
	if req.Direction == Buy {
		quote = l.quoteBuy
	}
	q, err := quote(req, snap.TradingFeeBps)
	if err != nil {
		return Quote{}, err
	}
	q.FeeCollector = snap.FeeCollector
	return q, nil
}

func (l *Ledger) quoteBuy(req TradeRequest, feeBps uint16) (Quote, error) {
	st := l.state

	feeAmt, net, err := fee.Compute(req.AmountIn, feeBps)
	if err != nil {
		return Quote{}, err
	}
	price, err := l.strategy.PriceAt(st)
	if err != nil {
		return Quote{}, err
	}
	tokens, err := l.strategy.TokensOut(st, net)
	if err != nil {
		return Quote{}, err
	}
	if tokens < req.MinAmountOut {
		return Quote{}, &SlippageExceededError{MinAmountOut: req.MinAmountOut, AmountOut: tokens}
	}

	units, err := fixedpoint.Add(st.UnitsSold, tokens)
	if err != nil {
		return Quote{}, err
	}
	if units >= curve.TotalSaleSupply {
		return Quote{}, fmt.Errorf("%w: units sold would be %d of %d",
			ErrGraduationReached, units, curve.TotalSaleSupply)
	}
	if err := l.strategy.CheckBuy(st, net); err != nil {
		return Quote{}, err
	}
	raised, err := fixedpoint.Add(st.CurrencyRaised, net)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Direction: Buy,
		AmountIn:  req.AmountIn,
		AmountOut: tokens,
		Fee:       feeAmt,
		Net:       net,
		Price:     price,
		After:     curve.State{UnitsSold: units, CurrencyRaised: raised},
	}, nil
}

func (l *Ledger) quoteSell(req TradeRequest, feeBps uint16) (Quote, error) {
	st := l.state

	price, err := l.strategy.PriceAt(st)
	if err != nil {
		return Quote{}, err
	}
	gross, err := l.strategy.CurrencyOut(st, req.AmountIn)
	if err != nil {
		return Quote{}, err
	}
	feeAmt, net, err := fee.Compute(gross, feeBps)
	if err != nil {
		return Quote{}, err
	}
	if net < req.MinAmountOut {
		return Quote{}, &SlippageExceededError{MinAmountOut: req.MinAmountOut, AmountOut: net}
	}
	if err := l.strategy.CheckSell(st, gross); err != nil {
		return Quote{}, err
	}

	units, err := fixedpoint.Sub(st.UnitsSold, req.AmountIn)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: selling %d of %d units sold: %w",
			curve.ErrInsufficientLiquidity, req.AmountIn, st.UnitsSold, err)
	}
	raised, err := fixedpoint.Sub(st.CurrencyRaised, gross)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Direction: Sell,
		AmountIn:  req.AmountIn,
		AmountOut: net,
		Fee:       feeAmt,
		Net:       gross,
		Price:     price,
		After:     curve.State{UnitsSold: units, CurrencyRaised: raised},
	}, nil
}

// instructions builds the settlement batch for q.
func (l *Ledger) instructions(trader solana.PublicKey, q Quote) []custody.Instruction {
	collector := q.FeeCollector
	if q.Direction == Buy {
		return []custody.Instruction{
			custody.Transfer(trader, collector, q.Fee),
			custody.Transfer(trader, l.authority.Address, q.Net),
			custody.MintTo(l.mint, trader, q.AmountOut),
		}
	}
	return []custody.Instruction{
		custody.Burn(l.mint, trader, q.AmountIn),
		custody.Transfer(l.authority.Address, collector, q.Fee),
		custody.Transfer(l.authority.Address, trader, q.AmountOut),
	}
}

func (l *Ledger) reject(d Direction, err error) {
	if l.observer != nil {
		l.observer.ObserveRejection(l.mint.String(), d.String(), Reason(err))
	}
}

func (l *Ledger) publish(ev events.Event) {
	if err := l.publisher.Publish(ev); err != nil {
		l.logger.Warn("Failed to publish event",
			zap.String("event_type", string(ev.Type())),
			zap.Error(err))
	}
}

// Reason maps a trade error to a short label for metrics and journals.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTradingPaused):
		return "paused"
	case errors.Is(err, ErrSlippageExceeded):
		return "slippage"
	case errors.Is(err, ErrGraduationReached):
		return "graduation_reached"
	case errors.Is(err, ErrGraduated):
		return "graduated"
	case errors.Is(err, curve.ErrLiquidityTargetExceeded):
		return "liquidity_target"
	case errors.Is(err, curve.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, fixedpoint.ErrArithmetic):
		return "arithmetic"
	case errors.Is(err, ErrSettlement):
		return "settlement"
	case errors.Is(err, ErrZeroAmount), errors.Is(err, ErrInvalidDirection):
		return "invalid_request"
	default:
		return "other"
	}
}
