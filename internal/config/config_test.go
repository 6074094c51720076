package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresHTTPAddrAndDSN(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("DB_DSN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_ADDR")
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DB_DSN", "postgres://localhost/simtrade")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.MetricsAddr)
	assert.Equal(t, 30*time.Second, c.SweepInterval)
	assert.Equal(t, time.Second, c.PriceTickInterval)
	assert.True(t, c.MaintenanceMarginPct.Equal(decimal.NewFromFloat(0.5)))
	assert.Zero(t, c.SlippageSeed)
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DB_DSN", "postgres://localhost/simtrade")
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("MAINTENANCE_MARGIN_PCT", "0.3")
	t.Setenv("SLIPPAGE_SEED", "42")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.SweepInterval)
	assert.True(t, c.MaintenanceMarginPct.Equal(decimal.NewFromFloat(0.3)))
	assert.Equal(t, int64(42), c.SlippageSeed)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("DB_DSN", "postgres://localhost/simtrade")
	t.Setenv("SWEEP_INTERVAL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadMarketTablesDefaultWithoutPath(t *testing.T) {
	cfg, err := LoadMarketTables("")
	require.NoError(t, err)
	assert.True(t, cfg.FeeRate.Equal(decimal.NewFromFloat(0.001)))
}

func TestLoadMarketTablesOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	body := "spreads:\n  crypto: \"0.002\"\nmax_slippage:\n  market: \"0.01\"\nfee_rate: \"0.0005\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadMarketTables(path)
	require.NoError(t, err)
	assert.True(t, cfg.Spreads[types.InstrumentTypeCrypto].Equal(decimal.NewFromFloat(0.002)))
	// Untouched classes keep their defaults.
	assert.True(t, cfg.Spreads[types.InstrumentTypeForex].Equal(decimal.NewFromFloat(0.0002)))
	assert.True(t, cfg.MaxSlippage[types.OrderTypeMarket].Equal(decimal.NewFromFloat(0.01)))
	assert.True(t, cfg.FeeRate.Equal(decimal.NewFromFloat(0.0005)))
}

func TestLoadMarketTablesBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spreads: [nope"), 0o644))

	_, err := LoadMarketTables(path)
	assert.Error(t, err)
}
