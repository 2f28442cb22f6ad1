package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("values override defaults", func(t *testing.T) {
		path := writeConfig(t, `
backtest:
  initial_capital: 50000
  transaction_cost_pct: 0.001
  rebalance_frequency_days: 5
data:
  cache_dir: /tmp/prices
`)

		cfg, err := Load(path)
		require.NoError(t, err)
		require.Equal(t, 50000.0, cfg.Backtest.InitialCapital)
		require.Equal(t, 0.001, cfg.Backtest.TransactionCostPct)
		require.Equal(t, 5, cfg.Backtest.RebalanceFrequencyDays)
		require.Equal(t, "/tmp/prices", cfg.Data.CacheDir)

		// untouched keys keep their defaults
		require.Equal(t, "2011-01-01", cfg.Backtest.StartDate)
		require.Equal(t, 8080, cfg.API.Port)
	})

	t.Run("missing file errors", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
		require.Error(t, err)
	})

	t.Run("invalid yaml errors", func(t *testing.T) {
		_, err := Load(writeConfig(t, "backtest: [not a map"))
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, Default().Validate())
	})

	t.Run("rejects bad values", func(t *testing.T) {
		for name, mutate := range map[string]func(*Config){
			"zero capital":        func(c *Config) { c.Backtest.InitialCapital = 0 },
			"fee of 100 percent":  func(c *Config) { c.Backtest.TransactionCostPct = 1 },
			"negative slippage":   func(c *Config) { c.Backtest.SlippagePct = -0.01 },
			"zero frequency":      func(c *Config) { c.Backtest.RebalanceFrequencyDays = 0 },
			"unparseable date":    func(c *Config) { c.Backtest.StartDate = "Jan 1 2011" },
			"end before start":    func(c *Config) { c.Backtest.EndDate = "2001-01-01" },
			"negative trade size": func(c *Config) { c.Backtest.MinTradeSize = -5 },
		} {
			t.Run(name, func(t *testing.T) {
				cfg := Default()
				mutate(cfg)
				require.Error(t, cfg.Validate())
			})
		}
	})
}
