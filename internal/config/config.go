// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
)

type Config struct {
	Admin          string            `mapstructure:"admin"`
	FeeCollector   string            `mapstructure:"fee_collector"`
	TradingFeeBps  uint16            `mapstructure:"trading_fee_bps"`
	ProgramID      string            `mapstructure:"program_id"`
	DefaultCurve   string            `mapstructure:"default_curve"`
	Linear         LinearConfig      `mapstructure:"linear"`
	Exponential    ExponentialConfig `mapstructure:"exponential"`
	EventBuffer    int               `mapstructure:"event_buffer"`
	Database       DatabaseConfig    `mapstructure:"database"`
	Log            LogConfig         `mapstructure:"log"`
	MetricsEnabled bool              `mapstructure:"metrics_enabled"`
	MetricsAddr    string            `mapstructure:"metrics_addr"`
	Workers        int               `mapstructure:"workers"`
	Retries        int               `mapstructure:"retries"`
	RetryDelay     int               `mapstructure:"retry_delay"`
}

type LinearConfig struct {
	InitialPrice    uint64 `mapstructure:"initial_price"`
	Slope           uint64 `mapstructure:"slope"`
	LiquidityTarget uint64 `mapstructure:"liquidity_target"`
}

type ExponentialConfig struct {
	BasePrice  uint64 `mapstructure:"base_price"`
	GrowthRate uint64 `mapstructure:"growth_rate"`
}

// DatabaseConfig enables the trade journal when Driver is set.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	Development bool   `mapstructure:"development"`
}

const (
	DefaultProgramID   = "9e7FCcemFyvPUrXgUfxKCZvNVpLiiYMo34t77Kwa241u"
	DefaultEventBuffer = 1024
	DefaultWorkers     = 5
	DefaultRetries     = 3
	DefaultRetryDelay  = 50 // ms
	DefaultLogFile     = "logs/pumpcurve.log"
	DefaultMetricsAddr = "127.0.0.1:2112"
	EnvPrefix          = "PUMPCURVE"
)

// LoadConfig reads path (optional) and applies PUMPCURVE_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"admin":                   "",
		"fee_collector":           "",
		"trading_fee_bps":         fee.DefaultBps,
		"program_id":              DefaultProgramID,
		"default_curve":           string(curve.KindExponential),
		"linear.initial_price":    curve.DefaultInitialPrice,
		"linear.slope":            curve.DefaultSlope,
		"linear.liquidity_target": curve.DefaultLiquidityTarget,
		"exponential.base_price":  curve.DefaultBasePrice,
		"exponential.growth_rate": curve.DefaultGrowthRate,
		"event_buffer":            DefaultEventBuffer,
		"database.driver":         "",
		"database.dsn":            "",
		"log.file":                DefaultLogFile,
		"log.development":         false,
		"metrics_enabled":         false,
		"metrics_addr":            DefaultMetricsAddr,
		"workers":                 DefaultWorkers,
		"retries":                 DefaultRetries,
		"retry_delay":             DefaultRetryDelay,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	loadEnvironmentVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func validateConfig(cfg *Config) error {
	if cfg.Admin == "" {
		return errors.New("missing admin in configuration")
	}
	if cfg.FeeCollector == "" {
		return errors.New("missing fee_collector in configuration")
	}
	for name, key := range map[string]string{
		"admin":         cfg.Admin,
		"fee_collector": cfg.FeeCollector,
		"program_id":    cfg.ProgramID,
	} {
		if _, err := solana.PublicKeyFromBase58(key); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	if err := fee.Validate(cfg.TradingFeeBps); err != nil {
		return err
	}
	if _, err := curve.ParseKind(cfg.DefaultCurve); err != nil {
		return err
	}
	if _, err := curve.New(cfg.CurveParams()); err != nil {
		return err
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	switch cfg.Database.Driver {
	case "":
	case "postgres", "sqlite":
		if cfg.Database.DSN == "" {
			return errors.New("database.dsn is required when database.driver is set")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.RetryDelay < 0 {
		return errors.New("invalid retry_delay")
	}
	return nil
}

// CurveParams returns the parameters of the default curve kind.
func (c *Config) CurveParams() curve.Params {
	return c.CurveParamsFor(curve.Kind(c.DefaultCurve))
}

// CurveParamsFor returns the configured parameters of kind.
func (c *Config) CurveParamsFor(kind curve.Kind) curve.Params {
	if kind == curve.KindLinear {
		return curve.Params{
			Kind:            curve.KindLinear,
			InitialPrice:    c.Linear.InitialPrice,
			Slope:           c.Linear.Slope,
			LiquidityTarget: c.Linear.LiquidityTarget,
		}
	}
	return curve.Params{
		Kind:       curve.KindExponential,
		BasePrice:  c.Exponential.BasePrice,
		GrowthRate: c.Exponential.GrowthRate,
	}
}

// Keys parses the admin, fee collector and program identities.
func (c *Config) Keys() (admin, feeCollector, programID solana.PublicKey, err error) {
	if admin, err = solana.PublicKeyFromBase58(c.Admin); err != nil {
		return
	}
	if feeCollector, err = solana.PublicKeyFromBase58(c.FeeCollector); err != nil {
		return
	}
	programID, err = solana.PublicKeyFromBase58(c.ProgramID)
	return
}
