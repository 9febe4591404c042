package launchpad

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
	"github.com/rovshanmuradov/pumpcurve/internal/ledger"
	"github.com/rovshanmuradov/pumpcurve/internal/market"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

type env struct {
	lp    *Launchpad
	vault *custody.Vault
	admin solana.PublicKey
	clock *types.ManualClock
	bus   *events.Bus
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	vault := custody.NewVault(logger)
	bus := events.NewBus(logger, 64)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	admin := solana.NewWallet().PublicKey()
	cfg, err := market.NewConfig(logger, admin, solana.NewWallet().PublicKey(), fee.DefaultBps,
		market.WithSettler(vault), market.WithPublisher(bus))
	require.NoError(t, err)

	clock := types.NewManualClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{WithPublisher(bus), WithClock(clock)}, opts...)
	lp, err := New(logger, cfg, vault, solana.NewWallet().PublicKey(), opts...)
	require.NoError(t, err)

	return &env{lp: lp, vault: vault, admin: admin, clock: clock, bus: bus}
}

func TestCreateTokenValidation(t *testing.T) {
	e := newEnv(t)
	creator := solana.NewWallet().PublicKey()

	tests := []struct {
		name string
		req  CreateTokenRequest
		err  error
	}{
		{"name too long", CreateTokenRequest{Name: strings.Repeat("n", 33), Symbol: "X", Creator: creator}, ErrNameTooLong},
		{"symbol too long", CreateTokenRequest{Name: "Coin", Symbol: strings.Repeat("S", 11), Creator: creator}, ErrSymbolTooLong},
		{"description too long", CreateTokenRequest{Name: "Coin", Symbol: "C", Description: strings.Repeat("d", 201), Creator: creator}, ErrDescriptionTooLong},
		{"image url too long", CreateTokenRequest{Name: "Coin", Symbol: "C", ImageURL: strings.Repeat("u", 201), Creator: creator}, ErrImageURLTooLong},
		{"no creator", CreateTokenRequest{Name: "Coin", Symbol: "C"}, ErrInvalidCreator},
		{"unknown curve", CreateTokenRequest{Name: "Coin", Symbol: "C", Creator: creator, Curve: &curve.Params{Kind: "sigmoid"}}, curve.ErrUnknownKind},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.lp.CreateToken(tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.Empty(t, e.lp.Markets())

	// Limits are inclusive.
	m, err := e.lp.CreateToken(CreateTokenRequest{
		Name:    strings.Repeat("n", 32),
		Symbol:  strings.Repeat("S", 10),
		Creator: creator,
	})
	require.NoError(t, err)
	assert.False(t, m.Metadata.Mint.IsZero())
	assert.Equal(t, curve.KindExponential, m.Ledger.Strategy().Kind())
}

func TestCreateTokenDuplicateMint(t *testing.T) {
	e := newEnv(t)
	req := CreateTokenRequest{Mint: solana.NewWallet().PublicKey(), Name: "Coin", Symbol: "C", Creator: solana.NewWallet().PublicKey()}

	m, err := e.lp.CreateToken(req)
	require.NoError(t, err)
	assert.Equal(t, req.Mint, m.Metadata.Mint)
	assert.Equal(t, e.clock.Now(), m.Metadata.CreatedAt)

	_, err = e.lp.CreateToken(req)
	assert.ErrorIs(t, err, ErrMarketExists)

	authority, err := custody.DeriveAuthority(e.lp.programID, req.Mint)
	require.NoError(t, err)
	assert.Equal(t, authority, m.Ledger.Authority())
}

func TestTradeRoundTripThroughVault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	params := curve.DefaultParams(curve.KindLinear)
	m, err := e.lp.CreateToken(CreateTokenRequest{Name: "Linear", Symbol: "LIN", Creator: solana.NewWallet().PublicKey(), Curve: &params})
	require.NoError(t, err)
	mint := m.Metadata.Mint
	authority := m.Ledger.Authority().Address
	collector := e.lp.Config().Snapshot().FeeCollector

	trader := solana.NewWallet().PublicKey()
	require.NoError(t, e.vault.Deposit(trader, 10_000_000))

	q, err := e.lp.Quote(mint, ledger.TradeRequest{AmountIn: 10_000_000, Direction: ledger.Buy})
	require.NoError(t, err)

	bought, err := e.lp.Trade(ctx, mint, trader, ledger.TradeRequest{AmountIn: 10_000_000, MinAmountOut: q.AmountOut, Direction: ledger.Buy})
	require.NoError(t, err)
	assert.Equal(t, uint64(9_900_000), bought.AmountOut)
	assert.Equal(t, uint64(0), e.vault.Balance(trader))
	assert.Equal(t, uint64(100_000), e.vault.Balance(collector))
	assert.Equal(t, uint64(9_900_000), e.vault.Balance(authority))
	assert.Equal(t, uint64(9_900_000), e.vault.TokenBalance(mint, trader))

	// Price is now 1_000_000 + 100*9_900_000 = 991_000_000.
	sold, err := e.lp.Trade(ctx, mint, trader, ledger.TradeRequest{AmountIn: 9_000, Direction: ledger.Sell})
	require.NoError(t, err)
	assert.Equal(t, uint64(89_190), sold.Fee)
	assert.Equal(t, uint64(8_829_810), sold.AmountOut)
	assert.Equal(t, uint64(8_829_810), e.vault.Balance(trader))
	assert.Equal(t, uint64(189_190), e.vault.Balance(collector))
	assert.Equal(t, uint64(981_000), e.vault.Balance(authority))
	assert.Equal(t, uint64(9_891_000), e.vault.TokenBalance(mint, trader))
	assert.Equal(t, curve.State{UnitsSold: 9_891_000, CurrencyRaised: 981_000}, m.Ledger.State())

	// A buy the trader cannot fund is abandoned by custody and leaves the market untouched.
	before := m.Ledger.State()
	_, err = e.lp.Trade(ctx, mint, trader, ledger.TradeRequest{AmountIn: 1_000_000_000, Direction: ledger.Buy})
	assert.ErrorIs(t, err, custody.ErrInsufficientFunds)
	assert.Equal(t, before, m.Ledger.State())

	require.NoError(t, e.lp.WithdrawFees(ctx, e.admin, 189_190))
	assert.Equal(t, uint64(189_190), e.vault.Balance(e.admin))
	assert.Zero(t, e.vault.Balance(collector))
}

func TestUnknownMarket(t *testing.T) {
	e := newEnv(t)
	mint := solana.NewWallet().PublicKey()

	_, err := e.lp.Trade(context.Background(), mint, solana.NewWallet().PublicKey(), ledger.TradeRequest{AmountIn: 1, Direction: ledger.Buy})
	assert.ErrorIs(t, err, ErrMarketNotFound)
	_, err = e.lp.Quote(mint, ledger.TradeRequest{AmountIn: 1, Direction: ledger.Buy})
	assert.ErrorIs(t, err, ErrMarketNotFound)
	assert.ErrorIs(t, e.lp.Graduate(e.admin, mint), ErrMarketNotFound)
}

func TestGraduateAndEvents(t *testing.T) {
	e := newEnv(t)
	got := make(chan events.EventType, 8)
	e.bus.SubscribeFunc(func(_ context.Context, ev events.Event) error {
		got <- ev.Type()
		return nil
	}, events.TokenCreated, events.CurveGraduated)

	m, err := e.lp.CreateToken(CreateTokenRequest{Name: "Grad", Symbol: "GRD", Creator: solana.NewWallet().PublicKey()})
	require.NoError(t, err)
	mint := m.Metadata.Mint

	assert.ErrorIs(t, e.lp.Graduate(solana.NewWallet().PublicKey(), mint), market.ErrUnauthorized)
	require.NoError(t, e.lp.Graduate(e.admin, mint))
	assert.Equal(t, ledger.StatusGraduated, m.Ledger.Status())

	_, err = e.lp.Trade(context.Background(), mint, solana.NewWallet().PublicKey(), ledger.TradeRequest{AmountIn: 1, Direction: ledger.Buy})
	assert.ErrorIs(t, err, ledger.ErrGraduated)

	require.NoError(t, e.bus.Shutdown(context.Background()))
	close(got)
	var seen []events.EventType
	for tp := range got {
		seen = append(seen, tp)
	}
	assert.Equal(t, []events.EventType{events.TokenCreated, events.CurveGraduated}, seen)
}

func TestMarketsOrderedByCreation(t *testing.T) {
	e := newEnv(t)
	creator := solana.NewWallet().PublicKey()

	for _, sym := range []string{"B", "A", "C"} {
		_, err := e.lp.CreateToken(CreateTokenRequest{Name: sym, Symbol: sym, Creator: creator})
		require.NoError(t, err)
		e.clock.Advance(time.Minute)
	}

	var symbols []string
	for _, m := range e.lp.Markets() {
		symbols = append(symbols, m.Metadata.Symbol)
	}
	assert.Equal(t, []string{"B", "A", "C"}, symbols)
}

func TestDefaultCurveOption(t *testing.T) {
	e := newEnv(t, WithDefaultCurve(curve.DefaultParams(curve.KindLinear)))
	m, err := e.lp.CreateToken(CreateTokenRequest{Name: "L", Symbol: "L", Creator: solana.NewWallet().PublicKey()})
	require.NoError(t, err)
	assert.Equal(t, curve.KindLinear, m.Ledger.Strategy().Kind())

	_, err = New(zaptest.NewLogger(t), e.lp.Config(), e.vault, solana.NewWallet().PublicKey(),
		WithDefaultCurve(curve.Params{Kind: curve.KindLinear}))
	assert.ErrorIs(t, err, curve.ErrInvalidParams)
}

func TestRestoreMarket(t *testing.T) {
	e := newEnv(t)
	created := make(chan struct{}, 4)
	e.bus.SubscribeFunc(func(context.Context, events.Event) error {
		created <- struct{}{}
		return nil
	}, events.TokenCreated)

	meta := Metadata{Mint: solana.NewWallet().PublicKey(), Name: "Back", Symbol: "BAK", Creator: solana.NewWallet().PublicKey()}
	st := curve.State{UnitsSold: 9_900_000, CurrencyRaised: 9_900_000}
	m, err := e.lp.Restore(RestoreRequest{Metadata: meta, Curve: curve.DefaultParams(curve.KindLinear), State: st})
	require.NoError(t, err)
	assert.Equal(t, st, m.Ledger.State())
	assert.Equal(t, ledger.StatusActive, m.Ledger.Status())

	// Цена продолжает с восстановленного состояния
	price, err := m.Ledger.Strategy().PriceAt(m.Ledger.State())
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000+100*9_900_000), price)

	_, err = e.lp.Restore(RestoreRequest{Metadata: meta, Curve: curve.DefaultParams(curve.KindLinear)})
	assert.ErrorIs(t, err, ErrMarketExists)

	grad, err := e.lp.Restore(RestoreRequest{
		Metadata:  Metadata{Mint: solana.NewWallet().PublicKey(), Symbol: "OLD"},
		Curve:     curve.DefaultParams(curve.KindExponential),
		State:     curve.State{UnitsSold: curve.TotalSaleSupply},
		Graduated: true,
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusGraduated, grad.Ledger.Status())
	_, err = e.lp.Trade(context.Background(), grad.Metadata.Mint, solana.NewWallet().PublicKey(), ledger.TradeRequest{AmountIn: 1, Direction: ledger.Buy})
	assert.ErrorIs(t, err, ledger.ErrGraduated)

	_, err = e.lp.Restore(RestoreRequest{Curve: curve.DefaultParams(curve.KindLinear)})
	assert.Error(t, err)

	require.NoError(t, e.bus.Shutdown(context.Background()))
	assert.Len(t, created, 0)
}
