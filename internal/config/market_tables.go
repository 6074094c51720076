package config

import (
	"fmt"
	"os"

	"lv-simtrade/internal/quotes"
	"lv-simtrade/internal/simulator"
	"lv-simtrade/internal/types"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// marketTableFile is the YAML shape of an override file. All sections are
// optional; missing entries keep their built-in values.
//
//	spreads:
//	  crypto: "0.002"
//	max_slippage:
//	  market: "0.01"
//	fee_rate: "0.0005"
type marketTableFile struct {
	Spreads     map[string]string `yaml:"spreads"`
	MaxSlippage map[string]string `yaml:"max_slippage"`
	FeeRate     string            `yaml:"fee_rate"`
}

// LoadMarketTables builds the simulator configuration, applying the YAML
// override at path when one is given.
func LoadMarketTables(path string) (simulator.Config, error) {
	cfg := simulator.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read market tables: %w", err)
	}
	var file marketTableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("parse market tables: %w", err)
	}

	for class, val := range file.Spreads {
		pct, err := decimal.NewFromString(val)
		if err != nil {
			return cfg, fmt.Errorf("spread for %q: %w", class, err)
		}
		cfg.Spreads[types.InstrumentType(class)] = pct
	}
	for kind, val := range file.MaxSlippage {
		pct, err := decimal.NewFromString(val)
		if err != nil {
			return cfg, fmt.Errorf("max slippage for %q: %w", kind, err)
		}
		cfg.MaxSlippage[types.OrderType(kind)] = pct
	}
	if file.FeeRate != "" {
		rate, err := decimal.NewFromString(file.FeeRate)
		if err != nil {
			return cfg, fmt.Errorf("fee rate: %w", err)
		}
		cfg.FeeRate = rate
	}
	return cfg, nil
}

// SpreadTable is a convenience for callers that only need the quote side.
func SpreadTable(cfg simulator.Config) quotes.Table {
	return cfg.Spreads
}
