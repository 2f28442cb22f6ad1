package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"symphonybacktest/api"
	"symphonybacktest/internal/app"
	"symphonybacktest/internal/config"
	"symphonybacktest/internal/logger"
	"symphonybacktest/internal/marketdata"
	"symphonybacktest/internal/simulator"
	"symphonybacktest/internal/strategy"
	"symphonybacktest/internal/validator"

	"github.com/spf13/cobra"
)

var (
	configPath      string
	symphonyPath    string
	quantmagePath   string
	groundTruthPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "symphonybacktest",
		Short:        "Backtest Composer-style symphony strategies against daily market data",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&symphonyPath, "symphony", "", "path to a symphony JSON program")
	rootCmd.PersistentFlags().StringVar(&quantmagePath, "quantmage", "", "path to a quantmage JSON program")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a backtest and print the summary",
		RunE:  runBacktest,
	}
	runCmd.Flags().StringVar(&groundTruthPath, "ground-truth", "", "optional ground-truth CSV for selection validation")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download daily bars for every ticker the program references into the CSV cache",
		RunE:  fetchData,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest API",
		RunE:  serveApi,
	}

	rootCmd.AddCommand(runCmd, fetchCmd, serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadStrategy() (*strategy.Strategy, error) {
	switch {
	case symphonyPath != "":
		raw, err := os.ReadFile(symphonyPath)
		if err != nil {
			return nil, err
		}
		return strategy.ParseSymphony(raw)
	case quantmagePath != "":
		raw, err := os.ReadFile(quantmagePath)
		if err != nil {
			return nil, err
		}
		return strategy.ParseQuantmage(raw)
	default:
		return nil, fmt.Errorf("either --symphony or --quantmage is required")
	}
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.New()
	ctx := logger.AddToContext(context.Background(), log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	parsed, err := loadStrategy()
	if err != nil {
		return err
	}

	start, err := cfg.Backtest.Start()
	if err != nil {
		return err
	}
	end, err := cfg.Backtest.End()
	if err != nil {
		return err
	}

	store := marketdata.NewStore()
	analysis := strategy.Analyze(parsed.Root)
	if err := marketdata.LoadCachedSeries(store, cfg.Data.CacheDir, analysis.SortedTickers()); err != nil {
		return fmt.Errorf("missing cached data (run `symphonybacktest fetch` first): %w", err)
	}

	input := app.BacktestInput{
		Strategy:       parsed,
		Start:          start,
		End:            end,
		InitialCapital: cfg.Backtest.InitialCapital,
		Frictions: simulator.Frictions{
			TransactionCostPct:     cfg.Backtest.TransactionCostPct,
			SlippagePct:            cfg.Backtest.SlippagePct,
			MinTradeSize:           cfg.Backtest.MinTradeSize,
			RebalanceFrequencyDays: cfg.Backtest.RebalanceFrequencyDays,
		},
	}

	if groundTruthPath != "" {
		f, err := os.Open(groundTruthPath)
		if err != nil {
			return err
		}
		groundTruth, err := validator.LoadGroundTruth(f)
		f.Close()
		if err != nil {
			return err
		}
		input.GroundTruth = groundTruth
	}

	handler := app.BacktestHandler{Store: store}
	result, err := handler.Run(ctx, input)
	if err != nil {
		return err
	}

	printSummary(result, cfg.Backtest.InitialCapital)

	return nil
}

func printSummary(result *app.BacktestResult, initialCapital float64) {
	finalValue := result.Valuations[len(result.Valuations)-1].Value

	fmt.Println("\n--- Backtest Results ---")
	fmt.Printf("Strategy:                %s\n", result.StrategyName)
	fmt.Printf("Initial Portfolio Value: $%.2f\n", initialCapital)
	fmt.Printf("Final Portfolio Value:   $%.2f\n", finalValue)
	fmt.Printf("Total Return:            %.2f%%\n", result.Metrics.TotalReturn*100)
	if result.Metrics.SharpeRatio != nil {
		fmt.Printf("Annualized Sharpe Ratio: %.2f\n", *result.Metrics.SharpeRatio)
	} else {
		fmt.Println("Annualized Sharpe Ratio: N/A (insufficient data)")
	}
	fmt.Printf("Maximum Drawdown:        %.2f%%\n", result.Metrics.MaxDrawdown*100)
	fmt.Printf("Days Skipped:            %d\n", len(result.SkippedDays))
	for _, s := range result.SkippedDays {
		fmt.Printf("  %s: %s\n", s.Date.Format(time.DateOnly), s.Reason)
	}

	if result.Validation != nil {
		fmt.Println("\n--- Parser Accuracy Report (Set Comparison) ---")
		fmt.Printf("Total Days Validated: %d\n", result.Validation.DaysValidated)
		fmt.Printf("Set Matches:          %d\n", result.Validation.Matches)
		fmt.Printf("Set Mismatches:       %d\n", len(result.Validation.Mismatches))
		fmt.Printf("Accuracy:             %.2f%%\n", result.Validation.Accuracy()*100)
		for _, m := range result.Validation.Mismatches {
			fmt.Printf("  %s | parser: %v | ground truth: %v\n", m.Date.Format(time.DateOnly), m.Parser, m.GroundTruth)
		}
	}
}

func fetchData(cmd *cobra.Command, args []string) error {
	log := logger.New()
	ctx := logger.AddToContext(context.Background(), log)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	parsed, err := loadStrategy()
	if err != nil {
		return err
	}

	start, err := cfg.Backtest.Start()
	if err != nil {
		return err
	}
	end, err := cfg.Backtest.End()
	if err != nil {
		return err
	}

	analysis := strategy.Analyze(parsed.Root)
	tickers := analysis.SortedTickers()
	log.Infof("fetching %d tickers into %s", len(tickers), cfg.Data.CacheDir)

	return marketdata.IngestToCache(ctx, cfg.Data.CacheDir, tickers, start, end)
}

func serveApi(cmd *cobra.Command, args []string) error {
	log := logger.New()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store := marketdata.NewStore()
	if err := marketdata.LoadAllCachedSeries(store, cfg.Data.CacheDir); err != nil {
		return fmt.Errorf("failed to load price cache: %w", err)
	}

	handler := api.ApiHandler{
		BacktestHandler: app.BacktestHandler{Store: store},
		Logger:          log,
	}

	log.Infof("serving backtest api on port %d", cfg.API.Port)
	return handler.StartApi(cfg.API.Port)
}
