// =============================================
// File: internal/launchpad/launchpad.go
// =============================================
package launchpad

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/ledger"
	"github.com/rovshanmuradov/pumpcurve/internal/market"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

// Ограничения метаданных токена
const (
	MaxNameLen        = 32
	MaxSymbolLen      = 10
	MaxDescriptionLen = 200
	MaxImageURLLen    = 200
)

var (
	ErrNameTooLong        = errors.New("name too long")
	ErrSymbolTooLong      = errors.New("symbol too long")
	ErrDescriptionTooLong = errors.New("description too long")
	ErrImageURLTooLong    = errors.New("image url too long")
	ErrInvalidCreator     = errors.New("invalid creator")
	ErrMarketExists       = errors.New("market already exists")
	ErrMarketNotFound     = errors.New("market not found")
)

// Metadata describes a listed token.
type Metadata struct {
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	Creator     solana.PublicKey
	CreatedAt   time.Time
}

// CreateTokenRequest lists a new token. A zero Mint gets a fresh key; a nil
// Curve uses the launchpad default.
type CreateTokenRequest struct {
	Mint        solana.PublicKey
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	Creator     solana.PublicKey
	Curve       *curve.Params
}

// Validate checks the request shape before any state is read.
func (r CreateTokenRequest) Validate() error {
	if len(r.Name) > MaxNameLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrNameTooLong, len(r.Name), MaxNameLen)
	}
	if len(r.Symbol) > MaxSymbolLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrSymbolTooLong, len(r.Symbol), MaxSymbolLen)
	}
	if len(r.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrDescriptionTooLong, len(r.Description), MaxDescriptionLen)
	}
	if len(r.ImageURL) > MaxImageURLLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrImageURLTooLong, len(r.ImageURL), MaxImageURLLen)
	}
	if r.Creator.IsZero() {
		return ErrInvalidCreator
	}
	return nil
}

// Market pairs a token's metadata with its ledger.
type Market struct {
	Metadata Metadata
	Ledger   *ledger.Ledger
}

// Launchpad is the registry of markets sharing one global config.
type Launchpad struct {
	mu      sync.RWMutex
	markets map[solana.PublicKey]*Market

	config    *market.Config
	settler   custody.Settler
	programID solana.PublicKey
	defaults  curve.Params

	publisher events.Publisher
	observer  ledger.Observer
	clock     types.Clock
	logger    *zap.Logger
}

// Option customizes a Launchpad.
type Option func(*Launchpad)

func WithPublisher(p events.Publisher) Option { return func(lp *Launchpad) { lp.publisher = p } }
func WithObserver(o ledger.Observer) Option   { return func(lp *Launchpad) { lp.observer = o } }
func WithClock(c types.Clock) Option          { return func(lp *Launchpad) { lp.clock = c } }

// WithDefaultCurve sets the curve used when a request does not name one.
func WithDefaultCurve(p curve.Params) Option { return func(lp *Launchpad) { lp.defaults = p } }

// New creates an empty launchpad. programID owns every curve authority.
func New(logger *zap.Logger, cfg *market.Config, settler custody.Settler, programID solana.PublicKey, opts ...Option) (*Launchpad, error) {
	if cfg == nil || settler == nil {
		return nil, errors.New("config and settler are required")
	}
	if programID.IsZero() {
		return nil, errors.New("program id is required")
	}

	lp := &Launchpad{
		markets:   make(map[solana.PublicKey]*Market),
		config:    cfg,
		settler:   settler,
		programID: programID,
		defaults:  curve.DefaultParams(curve.KindExponential),
		publisher: events.Discard,
		clock:     types.SystemClock{},
		logger:    logger.Named("launchpad"),
	}
	for _, opt := range opts {
		opt(lp)
	}
	if _, err := curve.New(lp.defaults); err != nil {
		return nil, fmt.Errorf("invalid default curve: %w", err)
	}
	return lp, nil
}

// Config returns the global market config.
func (lp *Launchpad) Config() *market.Config { return lp.config }

// CreateToken validates req, derives the curve authority and opens a market.
func (lp *Launchpad) CreateToken(req CreateTokenRequest) (*Market, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := lp.defaults
	if req.Curve != nil {
		params = *req.Curve
	}
	strategy, err := curve.New(params)
	if err != nil {
		return nil, err
	}

	mint := req.Mint
	if mint.IsZero() {
		mint = solana.NewWallet().PublicKey()
	}
	authority, err := custody.DeriveAuthority(lp.programID, mint)
	if err != nil {
		return nil, err
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	if _, ok := lp.markets[mint]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketExists, mint)
	}

	l, err := lp.newLedger(mint, authority, strategy)
	if err != nil {
		return nil, err
	}

	m := &Market{
		Metadata: Metadata{
			Mint:        mint,
			Name:        req.Name,
			Symbol:      req.Symbol,
			Description: req.Description,
			ImageURL:    req.ImageURL,
			Creator:     req.Creator,
			CreatedAt:   lp.clock.Now(),
		},
		Ledger: l,
	}
	lp.markets[mint] = m

	lp.logger.Info("Token created",
		zap.String("mint", mint.String()),
		zap.String("symbol", req.Symbol),
		zap.String("creator", req.Creator.String()),
		zap.String("curve", string(params.Kind)),
		zap.String("authority", authority.Address.String()))

	if err := lp.publisher.Publish(&events.TokenCreatedEvent{
		BaseEvent: events.NewBase(events.TokenCreated, m.Metadata.CreatedAt),
		Mint:      mint,
		Creator:   req.Creator,
		Name:      req.Name,
		Symbol:    req.Symbol,
		CurveKind: string(params.Kind),
	}); err != nil {
		lp.logger.Warn("Failed to publish token creation", zap.Error(err))
	}
	return m, nil
}

func (lp *Launchpad) newLedger(mint solana.PublicKey, authority custody.Authority, strategy curve.Strategy, extra ...ledger.Option) (*ledger.Ledger, error) {
	opts := []ledger.Option{ledger.WithPublisher(lp.publisher), ledger.WithClock(lp.clock)}
	if lp.observer != nil {
		opts = append(opts, ledger.WithObserver(lp.observer))
	}
	return ledger.New(lp.logger, ledger.Params{
		Mint:      mint,
		Authority: authority,
		Strategy:  strategy,
		Config:    lp.config,
		Settler:   lp.settler,
	}, append(opts, extra...)...)
}

// RestoreRequest re-opens a market recorded by the journal.
type RestoreRequest struct {
	Metadata  Metadata
	Curve     curve.Params
	State     curve.State
	Graduated bool
}

// Restore registers a previously listed market at its recorded state. Unlike
// CreateToken it publishes nothing, so the journal is not written twice.
func (lp *Launchpad) Restore(req RestoreRequest) (*Market, error) {
	mint := req.Metadata.Mint
	if mint.IsZero() {
		return nil, errors.New("mint is required")
	}
	strategy, err := curve.New(req.Curve)
	if err != nil {
		return nil, err
	}
	authority, err := custody.DeriveAuthority(lp.programID, mint)
	if err != nil {
		return nil, err
	}

	lp.mu.Lock()
	defer lp.mu.Unlock()

	if _, ok := lp.markets[mint]; ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketExists, mint)
	}

	extra := []ledger.Option{ledger.WithState(req.State)}
	if req.Graduated {
		extra = append(extra, ledger.WithGraduated())
	}
	l, err := lp.newLedger(mint, authority, strategy, extra...)
	if err != nil {
		return nil, err
	}

	m := &Market{Metadata: req.Metadata, Ledger: l}
	lp.markets[mint] = m
	lp.logger.Info("Market restored",
		zap.String("mint", mint.String()),
		zap.String("symbol", req.Metadata.Symbol),
		zap.Uint64("units_sold", req.State.UnitsSold),
		zap.Bool("graduated", req.Graduated))
	return m, nil
}

// Market returns the market for mint.
func (lp *Launchpad) Market(mint solana.PublicKey) (*Market, error) {
	lp.mu.RLock()
	defer lp.mu.RUnlock()

	m, ok := lp.markets[mint]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarketNotFound, mint)
	}
	return m, nil
}

// Markets returns every market ordered by creation time.
func (lp *Launchpad) Markets() []*Market {
	lp.mu.RLock()
	out := make([]*Market, 0, len(lp.markets))
	for _, m := range lp.markets {
		out = append(out, m)
	}
	lp.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Metadata, out[j].Metadata
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Symbol < b.Symbol
	})
	return out
}

// Trade routes req to the ledger of mint.
func (lp *Launchpad) Trade(ctx context.Context, mint, trader solana.PublicKey, req ledger.TradeRequest) (*ledger.TradeResult, error) {
	m, err := lp.Market(mint)
	if err != nil {
		return nil, err
	}
	return m.Ledger.ExecuteTrade(ctx, trader, req)
}

// Quote prices req against mint's current state without trading.
func (lp *Launchpad) Quote(mint solana.PublicKey, req ledger.TradeRequest) (ledger.Quote, error) {
	m, err := lp.Market(mint)
	if err != nil {
		return ledger.Quote{}, err
	}
	return m.Ledger.Quote(req)
}

// Graduate retires mint's curve.
func (lp *Launchpad) Graduate(caller, mint solana.PublicKey) error {
	m, err := lp.Market(mint)
	if err != nil {
		return err
	}
	return m.Ledger.Graduate(caller)
}

// WithdrawFees moves collected fees to the admin.
func (lp *Launchpad) WithdrawFees(ctx context.Context, caller solana.PublicKey, amount uint64) error {
	return lp.config.WithdrawFees(ctx, caller, amount)
}
