// =============================================
// File: internal/market/config.go
// =============================================
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/custody"
	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

var (
	ErrUnauthorized        = errors.New("unauthorized action")
	ErrInvalidAdminAddress = errors.New("invalid admin address")
	ErrNoCustody           = errors.New("no custody service configured")
)

// Snapshot is a consistent read of the global trading switches.
type Snapshot struct {
	Admin         solana.PublicKey
	FeeCollector  solana.PublicKey
	TradingPaused bool
	TradingFeeBps uint16
}

// Update replaces the fields that are set and leaves the others unchanged.
type Update struct {
	Admin        *solana.PublicKey
	FeeCollector *solana.PublicKey
}

// Config holds the admin-controlled switches shared by every market.
// Reads may run concurrently; writes are serialized.
type Config struct {
	mu           sync.RWMutex
	admin        solana.PublicKey
	feeCollector solana.PublicKey
	paused       bool
	feeBps       uint16

	settler   custody.Settler
	publisher events.Publisher
	clock     types.Clock
	logger    *zap.Logger
}

// Option customizes a Config.
type Option func(*Config)

func WithSettler(s custody.Settler) Option     { return func(c *Config) { c.settler = s } }
func WithPublisher(p events.Publisher) Option { return func(c *Config) { c.publisher = p } }
func WithClock(clk types.Clock) Option        { return func(c *Config) { c.clock = clk } }

// WithPaused starts the config with trading paused, e.g. when restored from the journal.
func WithPaused(paused bool) Option { return func(c *Config) { c.paused = paused } }

// NewConfig initializes the deployment-wide configuration.
func NewConfig(logger *zap.Logger, admin, feeCollector solana.PublicKey, feeBps uint16, opts ...Option) (*Config, error) {
	if admin.IsZero() {
		return nil, fmt.Errorf("%w: admin must be set", ErrInvalidAdminAddress)
	}
	if feeCollector.IsZero() {
		return nil, fmt.Errorf("%w: fee collector must be set", ErrInvalidAdminAddress)
	}
	if err := fee.Validate(feeBps); err != nil {
		return nil, err
	}

	c := &Config{
		admin:        admin,
		feeCollector: feeCollector,
		feeBps:       feeBps,
		publisher:    events.Discard,
		clock:        types.SystemClock{},
		logger:       logger.Named("market_config"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Snapshot returns the current switches.
func (c *Config) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Config) snapshotLocked() Snapshot {
	return Snapshot{
		Admin:         c.admin,
		FeeCollector:  c.feeCollector,
		TradingPaused: c.paused,
		TradingFeeBps: c.feeBps,
	}
}

// IsAdmin reports whether caller is the current admin.
func (c *Config) IsAdmin(caller solana.PublicKey) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return caller.Equals(c.admin)
}

// Authorize fails with ErrUnauthorized unless caller is the current admin.
func (c *Config) Authorize(caller solana.PublicKey) error {
	if !c.IsAdmin(caller) {
		return fmt.Errorf("%w: %s is not admin", ErrUnauthorized, caller)
	}
	return nil
}

func (c *Config) authorizeLocked(caller solana.PublicKey) error {
	if !caller.Equals(c.admin) {
		return fmt.Errorf("%w: %s is not admin", ErrUnauthorized, caller)
	}
	return nil
}

// SetFee changes the global trading fee.
func (c *Config) SetFee(caller solana.PublicKey, bps uint16) error {
	if err := fee.Validate(bps); err != nil {
		return err
	}

	c.mu.Lock()
	if err := c.authorizeLocked(caller); err != nil {
		c.mu.Unlock()
		return err
	}
	old := c.feeBps
	c.feeBps = bps
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Trading fee updated",
		zap.Uint16("old_bps", old),
		zap.Uint16("new_bps", bps),
		zap.String("admin", caller.String()))
	c.emit(snap)
	return nil
}

// Update applies the optional replacements in u.
func (c *Config) Update(caller solana.PublicKey, u Update) error {
	if u.Admin != nil && u.Admin.IsZero() {
		return fmt.Errorf("%w: admin cannot be the zero address", ErrInvalidAdminAddress)
	}
	if u.FeeCollector != nil && u.FeeCollector.IsZero() {
		return fmt.Errorf("%w: fee collector cannot be the zero address", ErrInvalidAdminAddress)
	}

	c.mu.Lock()
	if err := c.authorizeLocked(caller); err != nil {
		c.mu.Unlock()
		return err
	}
	if u.FeeCollector != nil {
		c.feeCollector = *u.FeeCollector
	}
	if u.Admin != nil {
		c.admin = *u.Admin
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("Program config updated",
		zap.String("admin", snap.Admin.String()),
		zap.String("fee_collector", snap.FeeCollector.String()))
	c.emit(snap)
	return nil
}

// SetAdmin hands the admin role to admin when it is non-nil.
func (c *Config) SetAdmin(caller solana.PublicKey, admin *solana.PublicKey) error {
	return c.Update(caller, Update{Admin: admin})
}

// SetFeeCollector redirects fees to collector when it is non-nil.
func (c *Config) SetFeeCollector(caller solana.PublicKey, collector *solana.PublicKey) error {
	return c.Update(caller, Update{FeeCollector: collector})
}

// Pause rejects every trade until Resume. Pausing a paused market succeeds.
func (c *Config) Pause(caller solana.PublicKey) error {
	return c.setPaused(caller, true)
}

// Resume re-enables trading. Resuming an active market succeeds.
func (c *Config) Resume(caller solana.PublicKey) error {
	return c.setPaused(caller, false)
}

func (c *Config) setPaused(caller solana.PublicKey, paused bool) error {
	c.mu.Lock()
	if err := c.authorizeLocked(caller); err != nil {
		c.mu.Unlock()
		return err
	}
	changed := c.paused != paused
	c.paused = paused
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !changed {
		c.logger.Debug("Trading pause state unchanged", zap.Bool("paused", paused))
		return nil
	}
	c.logger.Info("Trading pause state changed", zap.Bool("paused", paused))
	c.emit(snap)
	return nil
}

// WithdrawFees moves amount from the fee collector to the admin. The
// collector's balance is checked by the custody service, not here.
func (c *Config) WithdrawFees(ctx context.Context, caller solana.PublicKey, amount uint64) error {
	c.mu.RLock()
	if err := c.authorizeLocked(caller); err != nil {
		c.mu.RUnlock()
		return err
	}
	snap := c.snapshotLocked()
	settler := c.settler
	c.mu.RUnlock()

	if settler == nil {
		return ErrNoCustody
	}
	ix := custody.Transfer(snap.FeeCollector, snap.Admin, amount)
	if err := settler.Settle(ctx, []custody.Instruction{ix}); err != nil {
		return fmt.Errorf("failed to withdraw fees: %w", err)
	}

	c.logger.Info("Fees withdrawn",
		zap.Uint64("amount", amount),
		zap.String("fee_collector", snap.FeeCollector.String()),
		zap.String("admin", snap.Admin.String()))
	return nil
}

func (c *Config) emit(snap Snapshot) {
	ev := &events.ConfigChangedEvent{
		BaseEvent:     events.NewBase(events.ConfigChanged, c.clock.Now()),
		Admin:         snap.Admin,
		FeeCollector:  snap.FeeCollector,
		FeeBps:        snap.TradingFeeBps,
		TradingPaused: snap.TradingPaused,
	}
	if err := c.publisher.Publish(ev); err != nil {
		c.logger.Warn("Failed to publish config change", zap.Error(err))
	}
}
