package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Data     DataConfig     `yaml:"data"`
	API      APIConfig      `yaml:"api"`
}

type BacktestConfig struct {
	InitialCapital         float64 `yaml:"initial_capital"`
	TransactionCostPct     float64 `yaml:"transaction_cost_pct"`
	SlippagePct            float64 `yaml:"slippage_pct"`
	MinTradeSize           float64 `yaml:"min_trade_size"`
	RebalanceFrequencyDays int     `yaml:"rebalance_frequency_days"`
	StartDate              string  `yaml:"start_date"`
	EndDate                string  `yaml:"end_date"`
}

type DataConfig struct {
	// directory holding the per-symbol CSV price cache
	CacheDir string `yaml:"cache_dir"`
}

type APIConfig struct {
	Port int `yaml:"port"`
}

// Load reads the YAML config file, after loading a .env file if one exists.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse %q: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital:         100000,
			TransactionCostPct:     0,
			SlippagePct:            0,
			MinTradeSize:           0,
			RebalanceFrequencyDays: 1,
			StartDate:              "2011-01-01",
			EndDate:                "2024-12-31",
		},
		Data: DataConfig{
			CacheDir: "data",
		},
		API: APIConfig{
			Port: 8080,
		},
	}
}

func (c *Config) Validate() error {
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %f", c.Backtest.InitialCapital)
	}
	if c.Backtest.TransactionCostPct < 0 || c.Backtest.TransactionCostPct >= 1 {
		return fmt.Errorf("transaction_cost_pct must be in [0, 1), got %f", c.Backtest.TransactionCostPct)
	}
	if c.Backtest.SlippagePct < 0 || c.Backtest.SlippagePct >= 1 {
		return fmt.Errorf("slippage_pct must be in [0, 1), got %f", c.Backtest.SlippagePct)
	}
	if c.Backtest.MinTradeSize < 0 {
		return fmt.Errorf("min_trade_size must be non-negative, got %f", c.Backtest.MinTradeSize)
	}
	if c.Backtest.RebalanceFrequencyDays < 1 {
		return fmt.Errorf("rebalance_frequency_days must be at least 1, got %d", c.Backtest.RebalanceFrequencyDays)
	}

	start, err := c.Backtest.Start()
	if err != nil {
		return err
	}
	end, err := c.Backtest.End()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("end_date %s is before start_date %s", c.Backtest.EndDate, c.Backtest.StartDate)
	}

	return nil
}

func (b BacktestConfig) Start() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, b.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", b.StartDate, err)
	}
	return t, nil
}

func (b BacktestConfig) End() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, b.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid end_date %q: %w", b.EndDate, err)
	}
	return t, nil
}
