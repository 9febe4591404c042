package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/fee"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	collector := solana.NewWallet().PublicKey()
	path := writeConfig(t, "admin: "+admin.String()+"\nfee_collector: "+collector.String()+"\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, fee.DefaultBps, cfg.TradingFeeBps)
	assert.Equal(t, DefaultProgramID, cfg.ProgramID)
	assert.Equal(t, DefaultEventBuffer, cfg.EventBuffer)
	assert.Equal(t, curve.DefaultParams(curve.KindExponential), cfg.CurveParams())
	assert.Equal(t, curve.DefaultParams(curve.KindLinear), cfg.CurveParamsFor(curve.KindLinear))

	gotAdmin, gotCollector, programID, err := cfg.Keys()
	require.NoError(t, err)
	assert.Equal(t, admin, gotAdmin)
	assert.Equal(t, collector, gotCollector)
	assert.Equal(t, solana.MustPublicKeyFromBase58(DefaultProgramID), programID)
}

func TestLoadConfigFileValues(t *testing.T) {
	path := writeConfig(t, `
admin: `+solana.NewWallet().PublicKey().String()+`
fee_collector: `+solana.NewWallet().PublicKey().String()+`
trading_fee_bps: 250
default_curve: linear
linear:
  initial_price: 2000000
  slope: 5
  liquidity_target: 1000000000
database:
  driver: sqlite
  dsn: file:journal.db
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint16(250), cfg.TradingFeeBps)
	assert.Equal(t, curve.Params{
		Kind:            curve.KindLinear,
		InitialPrice:    2_000_000,
		Slope:           5,
		LiquidityTarget: 1_000_000_000,
	}, cfg.CurveParams())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoadConfigEnvironment(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	t.Setenv("PUMPCURVE_ADMIN", admin.String())
	t.Setenv("PUMPCURVE_FEE_COLLECTOR", solana.NewWallet().PublicKey().String())
	t.Setenv("PUMPCURVE_TRADING_FEE_BPS", "0")
	t.Setenv("PUMPCURVE_EXPONENTIAL_GROWTH_RATE", "10")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, admin.String(), cfg.Admin)
	assert.Equal(t, uint16(0), cfg.TradingFeeBps)
	assert.Equal(t, uint64(10), cfg.Exponential.GrowthRate)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Admin:        solana.NewWallet().PublicKey().String(),
			FeeCollector: solana.NewWallet().PublicKey().String(),
			ProgramID:    DefaultProgramID,
			DefaultCurve: "exponential",
			Exponential:  ExponentialConfig{BasePrice: curve.DefaultBasePrice, GrowthRate: curve.DefaultGrowthRate},
			EventBuffer:  1,
			Workers:      1,
		}
	}
	require.NoError(t, validateConfig(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing admin", func(c *Config) { c.Admin = "" }},
		{"bad fee collector", func(c *Config) { c.FeeCollector = "not-a-key" }},
		{"fee too high", func(c *Config) { c.TradingFeeBps = 1001 }},
		{"unknown curve", func(c *Config) { c.DefaultCurve = "quadratic" }},
		{"zero base price", func(c *Config) { c.Exponential.BasePrice = 0 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"driver without dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database = DatabaseConfig{Driver: "mysql", DSN: "x"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}
