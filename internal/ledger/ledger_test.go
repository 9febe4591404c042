package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
	"github.com/rovshanmuradov/pumpcurve/internal/market"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

type mockSettler struct {
	mock.Mock
}

func (m *mockSettler) Settle(ctx context.Context, ixs []custody.Instruction) error {
	args := m.Called(ctx, ixs)
	return args.Error(0)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type countingObserver struct {
	trades  int
	reasons []string
}

func (o *countingObserver) ObserveTrade(_, _ string, _, _, _, _ uint64) { o.trades++ }
func (o *countingObserver) ObserveRejection(_, _, reason string) {
	o.reasons = append(o.reasons, reason)
}

type fixture struct {
	ledger   *Ledger
	config   *market.Config
	admin    solana.PublicKey
	mint     solana.PublicKey
	events   *recorder
	observer *countingObserver
}

func newFixture(t *testing.T, kind curve.Kind, settler custody.Settler, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	admin := solana.NewWallet().PublicKey()
	cfg, err := market.NewConfig(logger, admin, solana.NewWallet().PublicKey(), fee.DefaultBps)
	require.NoError(t, err)

	strategy, err := curve.New(curve.DefaultParams(kind))
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey()
	authority, err := custody.DeriveAuthority(solana.NewWallet().PublicKey(), mint)
	require.NoError(t, err)

	rec := &recorder{}
	obs := &countingObserver{}
	clock := types.NewManualClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	opts = append([]Option{WithPublisher(rec), WithObserver(obs), WithClock(clock)}, opts...)

	l, err := New(logger, Params{
		Mint:      mint,
		Authority: authority,
		Strategy:  strategy,
		Config:    cfg,
		Settler:   settler,
	}, opts...)
	require.NoError(t, err)

	return &fixture{ledger: l, config: cfg, admin: admin, mint: mint, events: rec, observer: obs}
}

func okSettler() *mockSettler {
	s := &mockSettler{}
	s.On("Settle", mock.Anything, mock.Anything).Return(nil)
	return s
}

func TestLinearBuyScenario(t *testing.T) {
	settler := &mockSettler{}
	f := newFixture(t, curve.KindLinear, settler)
	trader := solana.NewWallet().PublicKey()
	collector := f.config.Snapshot().FeeCollector

	want := []custody.Instruction{
		custody.Transfer(trader, collector, 100_000),
		custody.Transfer(trader, f.ledger.Authority().Address, 9_900_000),
		custody.MintTo(f.mint, trader, 9_900_000),
	}
	settler.On("Settle", mock.Anything, want).Return(nil).Once()

	res, err := f.ledger.ExecuteTrade(context.Background(), trader, TradeRequest{
		AmountIn:     10_000_000,
		MinAmountOut: 9_900_000,
		Direction:    Buy,
	})
	require.NoError(t, err)
	settler.AssertExpectations(t)

	// net = 10_000_000 - 1%, tokens = net * Scale / initial_price
	assert.Equal(t, uint64(100_000), res.Fee)
	assert.Equal(t, uint64(9_900_000), res.Net)
	assert.Equal(t, uint64(9_900_000), res.AmountOut)
	assert.Equal(t, curve.DefaultInitialPrice, res.Price)
	assert.NotEmpty(t, res.TradeID)
	assert.Equal(t, curve.State{UnitsSold: 9_900_000, CurrencyRaised: 9_900_000}, f.ledger.State())

	require.Equal(t, 1, f.events.count())
	ev := f.events.events[0].(*events.TradeCompletedEvent)
	assert.Equal(t, trader, ev.Trader)
	assert.Equal(t, f.mint, ev.Mint)
	assert.True(t, ev.IsBuy)
	assert.Equal(t, uint64(10_000_000), ev.AmountIn)
	assert.Equal(t, uint64(9_900_000), ev.AmountOut)
	assert.Equal(t, 1, f.observer.trades)
}

func TestExponentialBuyAndSell(t *testing.T) {
	settler := okSettler()
	f := newFixture(t, curve.KindExponential, settler,
		WithState(curve.State{UnitsSold: 50 * curve.TokenUnit, CurrencyRaised: 2_000_000_000}))
	trader := solana.NewWallet().PublicKey()
	ctx := context.Background()

	// Price at raised=2e9 is 39_213_785_521_632.
	res, err := f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 1_000_000_000, Direction: Buy})
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000_000), res.Fee)
	assert.Equal(t, uint64(252_462_236), res.AmountOut)
	assert.Equal(t, uint64(39_213_785_521_632), res.Price)
	assert.Equal(t, curve.State{
		UnitsSold:      50*curve.TokenUnit + 252_462_236,
		CurrencyRaised: 2_990_000_000,
	}, f.ledger.State())

	// The sell is priced at the new, higher state and pays out of the curve.
	before := f.ledger.State()
	q, err := f.ledger.Quote(TradeRequest{AmountIn: 100_000_000, Direction: Sell})
	require.NoError(t, err)
	assert.Equal(t, uint64(129_215_331_949_804), q.Price)
	assert.Equal(t, uint64(1_292_153_319), q.Net)
	assert.Equal(t, q.Net, q.Fee+q.AmountOut)
	assert.Equal(t, before, f.ledger.State(), "quote must not mutate state")

	sold, err := f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 100_000_000, Direction: Sell})
	require.NoError(t, err)
	assert.Equal(t, q.AmountOut, sold.AmountOut)
	assert.Equal(t, before.UnitsSold-100_000_000, f.ledger.State().UnitsSold)
	assert.Equal(t, before.CurrencyRaised-q.Net, f.ledger.State().CurrencyRaised)
}

func TestSellSettlementInstructions(t *testing.T) {
	settler := okSettler()
	f := newFixture(t, curve.KindExponential, settler,
		WithState(curve.State{UnitsSold: 100 * curve.TokenUnit, CurrencyRaised: 1_000_000_000}))
	trader := solana.NewWallet().PublicKey()

	res, err := f.ledger.ExecuteTrade(context.Background(), trader, TradeRequest{AmountIn: curve.TokenUnit, Direction: Sell})
	require.NoError(t, err)

	collector := f.config.Snapshot().FeeCollector
	settler.AssertCalled(t, "Settle", mock.Anything, []custody.Instruction{
		custody.Burn(f.mint, trader, curve.TokenUnit),
		custody.Transfer(f.ledger.Authority().Address, collector, res.Fee),
		custody.Transfer(f.ledger.Authority().Address, trader, res.AmountOut),
	})
}

func TestSlippageExceeded(t *testing.T) {
	settler := &mockSettler{}
	f := newFixture(t, curve.KindLinear, settler)

	_, err := f.ledger.ExecuteTrade(context.Background(), solana.NewWallet().PublicKey(), TradeRequest{
		AmountIn:     10_000_000,
		MinAmountOut: 9_900_001,
		Direction:    Buy,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSlippageExceeded)
	assert.True(t, IsRetryable(err))

	var slip *SlippageExceededError
	require.True(t, errors.As(err, &slip))
	assert.Equal(t, uint64(9_900_000), slip.AmountOut)

	var tradeErr *TradeError
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, Buy, tradeErr.Direction)
	assert.Equal(t, f.mint, tradeErr.Mint)

	assert.Equal(t, curve.State{}, f.ledger.State())
	settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
	assert.Equal(t, []string{"slippage"}, f.observer.reasons)
}

func TestSellSlippageUsesNetPayout(t *testing.T) {
	f := newFixture(t, curve.KindExponential, okSettler(),
		WithState(curve.State{UnitsSold: 100 * curve.TokenUnit, CurrencyRaised: 1_000_000_000}))

	q, err := f.ledger.Quote(TradeRequest{AmountIn: curve.TokenUnit, Direction: Sell})
	require.NoError(t, err)

	_, err = f.ledger.Quote(TradeRequest{AmountIn: curve.TokenUnit, MinAmountOut: q.AmountOut + 1, Direction: Sell})
	assert.ErrorIs(t, err, ErrSlippageExceeded)
	_, err = f.ledger.Quote(TradeRequest{AmountIn: curve.TokenUnit, MinAmountOut: q.AmountOut, Direction: Sell})
	assert.NoError(t, err)
}

func TestGraduationReachedLeavesStateUnchanged(t *testing.T) {
	settler := &mockSettler{}
	f := newFixture(t, curve.KindExponential, settler)

	// At the base price 100 SOL buys far more than the sale supply.
	_, err := f.ledger.ExecuteTrade(context.Background(), solana.NewWallet().PublicKey(), TradeRequest{
		AmountIn:  100_000_000_000,
		Direction: Buy,
	})
	assert.ErrorIs(t, err, ErrGraduationReached)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, curve.State{}, f.ledger.State())
	assert.Equal(t, StatusActive, f.ledger.Status())
	settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything)
}

func TestGraduationThresholdIsExclusive(t *testing.T) {
	// Exactly reaching the sale supply is rejected too.
	start := curve.State{UnitsSold: curve.TotalSaleSupply - 9_900_000_000}
	f := newFixture(t, curve.KindExponential, okSettler(), WithState(start))

	// 601_500 in, 595_485 net after the fee, buys exactly 9_900_000_000 raw units.
	q, err := f.ledger.Quote(TradeRequest{AmountIn: 601_500, Direction: Buy})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGraduationReached)
	assert.Equal(t, Quote{}, q)
}

func TestInsufficientLiquidityLeavesStateUnchanged(t *testing.T) {
	settler := okSettler()
	f := newFixture(t, curve.KindLinear, settler)
	trader := solana.NewWallet().PublicKey()
	ctx := context.Background()

	res, err := f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 10_000_000, Direction: Buy})
	require.NoError(t, err)
	before := f.ledger.State()

	// Selling back at the new price would pay more than the curve holds.
	_, err = f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: res.AmountOut, Direction: Sell})
	assert.ErrorIs(t, err, curve.ErrInsufficientLiquidity)
	assert.Equal(t, before, f.ledger.State())
	settler.AssertNumberOfCalls(t, "Settle", 1)
}

func TestLiquidityTargetExceeded(t *testing.T) {
	f := newFixture(t, curve.KindLinear, okSettler(),
		WithState(curve.State{CurrencyRaised: curve.DefaultLiquidityTarget - 1_000}))

	_, err := f.ledger.ExecuteTrade(context.Background(), solana.NewWallet().PublicKey(), TradeRequest{
		AmountIn:  2_000,
		Direction: Buy,
	})
	assert.ErrorIs(t, err, curve.ErrLiquidityTargetExceeded)
	assert.Equal(t, []string{"liquidity_target"}, f.observer.reasons)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t, curve.KindLinear, okSettler())
	trader := solana.NewWallet().PublicKey()
	ctx := context.Background()
	req := TradeRequest{AmountIn: 10_000_000, Direction: Buy}

	_, err := f.ledger.ExecuteTrade(ctx, trader, req)
	require.NoError(t, err)
	before := f.ledger.State()

	require.NoError(t, f.config.Pause(f.admin))
	assert.Equal(t, StatusPaused, f.ledger.Status())

	_, err = f.ledger.ExecuteTrade(ctx, trader, req)
	assert.ErrorIs(t, err, ErrTradingPaused)
	assert.False(t, IsRetryable(err))
	_, err = f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 1, Direction: Sell})
	assert.ErrorIs(t, err, ErrTradingPaused)

	require.NoError(t, f.config.Resume(f.admin))
	assert.Equal(t, StatusActive, f.ledger.Status())
	assert.Equal(t, before, f.ledger.State())

	_, err = f.ledger.ExecuteTrade(ctx, trader, req)
	assert.NoError(t, err)
}

func TestSettlementFailureRestoresState(t *testing.T) {
	boom := errors.New("transfer rejected")
	settler := &mockSettler{}
	settler.On("Settle", mock.Anything, mock.Anything).Return(boom).Once()
	f := newFixture(t, curve.KindLinear, settler)

	_, err := f.ledger.ExecuteTrade(context.Background(), solana.NewWallet().PublicKey(), TradeRequest{
		AmountIn:  10_000_000,
		Direction: Buy,
	})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, ErrSettlement)
	assert.Equal(t, curve.State{}, f.ledger.State())
	assert.Equal(t, 0, f.events.count())
	assert.Equal(t, []string{"settlement"}, f.observer.reasons)
}

func TestInvalidRequests(t *testing.T) {
	f := newFixture(t, curve.KindLinear, okSettler())
	trader := solana.NewWallet().PublicKey()
	ctx := context.Background()

	_, err := f.ledger.ExecuteTrade(ctx, trader, TradeRequest{Direction: Buy})
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 1, Direction: Direction(9)})
	assert.ErrorIs(t, err, ErrInvalidDirection)

	// Nothing has been sold, so there is nothing to sell back.
	_, err = f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 1, Direction: Sell})
	assert.ErrorIs(t, err, curve.ErrInsufficientLiquidity)
}

func TestGraduate(t *testing.T) {
	f := newFixture(t, curve.KindLinear, okSettler())
	ctx := context.Background()
	trader := solana.NewWallet().PublicKey()

	_, err := f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 10_000_000, Direction: Buy})
	require.NoError(t, err)

	assert.ErrorIs(t, f.ledger.Graduate(trader), market.ErrUnauthorized)
	require.NoError(t, f.ledger.Graduate(f.admin))
	assert.ErrorIs(t, f.ledger.Graduate(f.admin), ErrGraduated)
	assert.Equal(t, StatusGraduated, f.ledger.Status())

	_, err = f.ledger.ExecuteTrade(ctx, trader, TradeRequest{AmountIn: 1, Direction: Sell})
	assert.ErrorIs(t, err, ErrGraduated)

	require.Equal(t, 2, f.events.count())
	ev, ok := f.events.events[1].(*events.CurveGraduatedEvent)
	require.True(t, ok)
	assert.Equal(t, f.mint, ev.Mint)
	assert.Equal(t, uint64(9_900_000), ev.UnitsSold)
}

func TestProgress(t *testing.T) {
	f := newFixture(t, curve.KindExponential, okSettler(),
		WithState(curve.State{UnitsSold: curve.TotalSaleSupply / 4}))
	assert.Equal(t, uint64(2_500), f.ledger.Progress())
}

func TestNewRejectsGraduatedState(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg, err := market.NewConfig(logger, solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), 0)
	require.NoError(t, err)
	strategy, err := curve.New(curve.DefaultParams(curve.KindLinear))
	require.NoError(t, err)

	_, err = New(logger, Params{
		Mint:      solana.NewWallet().PublicKey(),
		Authority: custody.Authority{Address: solana.NewWallet().PublicKey()},
		Strategy:  strategy,
		Config:    cfg,
		Settler:   okSettler(),
	}, WithState(curve.State{UnitsSold: curve.TotalSaleSupply}))
	assert.ErrorIs(t, err, ErrGraduationReached)
}

func TestConcurrentTradesSerialize(t *testing.T) {
	logger := zaptest.NewLogger(t)
	vault := custody.NewVault(logger)
	f := newFixture(t, curve.KindLinear, vault)

	const traders = 32
	const amount = 1_000_000
	wallets := make([]solana.PublicKey, traders)
	for i := range wallets {
		wallets[i] = solana.NewWallet().PublicKey()
		require.NoError(t, vault.Deposit(wallets[i], amount))
	}

	var wg sync.WaitGroup
	errs := make(chan error, traders)
	for _, w := range wallets {
		wg.Add(1)
		go func(trader solana.PublicKey) {
			defer wg.Done()
			_, err := f.ledger.ExecuteTrade(context.Background(), trader, TradeRequest{AmountIn: amount, Direction: Buy})
			errs <- err
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	st := f.ledger.State()
	assert.Equal(t, uint64(traders*990_000), st.CurrencyRaised)
	assert.Equal(t, st.CurrencyRaised, vault.Balance(f.ledger.Authority().Address))
	assert.Equal(t, st.UnitsSold, vault.Supply(f.mint))

	var held uint64
	for _, w := range wallets {
		held += vault.TokenBalance(f.mint, w)
		assert.Zero(t, vault.Balance(w))
	}
	assert.Equal(t, st.UnitsSold, held)
	assert.Equal(t, uint64(traders), vault.Settled())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, Buy, d)

	d, err = ParseDirection("sell")
	require.NoError(t, err)
	assert.Equal(t, Sell, d)

	_, err = ParseDirection("hold")
	assert.ErrorIs(t, err, ErrInvalidDirection)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "ok", Reason(nil))
	assert.Equal(t, "paused", Reason(&TradeError{Err: ErrTradingPaused}))
	assert.Equal(t, "other", Reason(errors.New("x")))
}

// shiftingConfig returns the next snapshot on every call, as if an admin
// updated the config between reads.
type shiftingConfig struct {
	mu    sync.Mutex
	snaps []market.Snapshot
	calls int
}

func (c *shiftingConfig) Snapshot() market.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snaps[min(c.calls, len(c.snaps)-1)]
	c.calls++
	return s
}

func (c *shiftingConfig) Authorize(solana.PublicKey) error { return nil }

func TestTradeSettlesWithPricingSnapshot(t *testing.T) {
	oldCollector := solana.NewWallet().PublicKey()
	cfg := &shiftingConfig{snaps: []market.Snapshot{
		{FeeCollector: oldCollector, TradingFeeBps: 100},
		{FeeCollector: solana.NewWallet().PublicKey(), TradingFeeBps: 1000},
	}}
	strategy, err := curve.New(curve.DefaultParams(curve.KindLinear))
	require.NoError(t, err)

	mint := solana.NewWallet().PublicKey()
	authority, err := custody.DeriveAuthority(solana.NewWallet().PublicKey(), mint)
	require.NoError(t, err)
	trader := solana.NewWallet().PublicKey()

	settler := &mockSettler{}
	settler.On("Settle", mock.Anything, []custody.Instruction{
		custody.Transfer(trader, oldCollector, 100_000),
		custody.Transfer(trader, authority.Address, 9_900_000),
		custody.MintTo(mint, trader, 9_900_000),
	}).Return(nil).Once()

	l, err := New(zaptest.NewLogger(t), Params{
		Mint:      mint,
		Authority: authority,
		Strategy:  strategy,
		Config:    cfg,
		Settler:   settler,
	})
	require.NoError(t, err)

	res, err := l.ExecuteTrade(context.Background(), trader, TradeRequest{AmountIn: 10_000_000, Direction: Buy})
	require.NoError(t, err)
	assert.Equal(t, oldCollector, res.FeeCollector)
	assert.Equal(t, uint64(100_000), res.Fee)
	assert.Equal(t, 1, cfg.calls)
	settler.AssertExpectations(t)
}
