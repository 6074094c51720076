package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	DBDSN       string

	SweepInterval     time.Duration
	PriceTickInterval time.Duration

	MaintenanceMarginPct decimal.Decimal
	SlippageSeed         int64

	// MarketTablePath points at an optional YAML file overriding the
	// built-in spread/slippage/fee tables.
	MarketTablePath string
}

func Load() (Config, error) {
	var c Config
	var missing []string

	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.MetricsAddr = os.Getenv("METRICS_ADDR")
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9090"
	}

	c.SweepInterval = 30 * time.Second
	if raw := os.Getenv("SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return c, errors.New("invalid SWEEP_INTERVAL: " + err.Error())
		}
		c.SweepInterval = d
	}

	c.PriceTickInterval = time.Second
	if raw := os.Getenv("PRICE_TICK_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return c, errors.New("invalid PRICE_TICK_INTERVAL: " + err.Error())
		}
		c.PriceTickInterval = d
	}

	c.MaintenanceMarginPct = decimal.NewFromFloat(0.5)
	if raw := os.Getenv("MAINTENANCE_MARGIN_PCT"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return c, errors.New("invalid MAINTENANCE_MARGIN_PCT")
		}
		c.MaintenanceMarginPct = d
	}

	// Zero seeds from the clock; a fixed seed makes slippage reproducible.
	if raw := os.Getenv("SLIPPAGE_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c, errors.New("invalid SLIPPAGE_SEED")
		}
		c.SlippageSeed = seed
	}

	c.MarketTablePath = os.Getenv("MARKET_TABLE_PATH")

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}
