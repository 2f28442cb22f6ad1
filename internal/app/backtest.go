package app

import (
	"context"
	"fmt"
	"time"

	"symphonybacktest/internal/calculator"
	"symphonybacktest/internal/domain"
	"symphonybacktest/internal/logger"
	"symphonybacktest/internal/marketdata"
	"symphonybacktest/internal/simulator"
	"symphonybacktest/internal/strategy"
	"symphonybacktest/internal/validator"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BacktestHandler struct {
	Store *marketdata.Store
}

type BacktestInput struct {
	Strategy       *strategy.Strategy
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Frictions      simulator.Frictions

	// optional; enables per-day selection validation
	GroundTruth *validator.GroundTruth
}

// SkippedDay records one date whose evaluation failed. Trading is skipped for
// that day only; valuation and cadence still advance.
type SkippedDay struct {
	Date   time.Time
	Reason string
}

type BacktestResult struct {
	RunID        uuid.UUID
	StrategyName string

	// target allocation per simulated day, keyed by date (2006-01-02)
	Allocations map[string]domain.TargetAllocation
	Trades      []domain.FilledTrade
	Valuations  []domain.DailyValuation
	Metrics     *calculator.SummaryMetrics
	SkippedDays []SkippedDay
	Validation  *validator.Report

	FinalPortfolio *domain.Portfolio
}

// Run drives the whole backtest: static analysis, indicator precompute, then
// the strictly sequential per-day evaluate → validate → step loop.
func (h BacktestHandler) Run(ctx context.Context, in BacktestInput) (*BacktestResult, error) {
	log := logger.FromContext(ctx)

	if in.Strategy == nil || in.Strategy.Root == nil {
		return nil, fmt.Errorf("cannot backtest an empty strategy")
	}
	if in.InitialCapital <= 0 {
		return nil, fmt.Errorf("cannot backtest with initial capital %f", in.InitialCapital)
	}

	analysis := strategy.Analyze(in.Strategy.Root)
	tickers := analysis.SortedTickers()
	if len(tickers) == 0 {
		return nil, fmt.Errorf("strategy %q references no tickers", in.Strategy.Name)
	}

	if err := h.Store.ComputeIndicators(analysis.IndicatorKeys()); err != nil {
		return nil, fmt.Errorf("failed to precompute indicators: %w", err)
	}

	tradingDays, err := h.Store.CommonTradingDays(tickers, in.Start, in.End)
	if err != nil {
		return nil, err
	}
	if len(tradingDays) == 0 {
		return nil, fmt.Errorf("no common trading days for %d tickers between %s and %s",
			len(tickers), in.Start.Format(time.DateOnly), in.End.Format(time.DateOnly))
	}

	log.Infow("starting backtest",
		"strategy", in.Strategy.Name,
		"tickers", len(tickers),
		"tradingDays", len(tradingDays),
	)

	sim := simulator.New(h.Store, decimal.NewFromFloat(in.InitialCapital), in.Frictions, log)
	eval := strategy.NewEvaluator(h.Store)

	var check *validator.Validator
	if in.GroundTruth != nil {
		check = validator.New(in.GroundTruth)
	}

	result := &BacktestResult{
		RunID:        uuid.New(),
		StrategyName: in.Strategy.Name,
		Allocations:  map[string]domain.TargetAllocation{},
		Trades:       []domain.FilledTrade{},
	}

	for _, date := range tradingDays {
		target, err := eval.Evaluate(in.Strategy.Root, date)
		if err != nil {
			if strategy.IsFatal(err) {
				// corrupt program, not thin data - abort the run
				return nil, fmt.Errorf("evaluation failed on %s: %w", date.Format(time.DateOnly), err)
			}
			log.Warnf("skipping %s: %s", date.Format(time.DateOnly), err.Error())
			result.SkippedDays = append(result.SkippedDays, SkippedDay{Date: date, Reason: err.Error()})
			sim.MarkOnly(date)
			continue
		}

		result.Allocations[date.Format(time.DateOnly)] = target

		if check != nil {
			if mismatch := check.Check(date, target); mismatch != nil {
				log.Warnw("selection mismatch",
					"date", date.Format(time.DateOnly),
					"parser", mismatch.Parser,
					"groundTruth", mismatch.GroundTruth,
				)
			}
		}

		stepResult, err := sim.Step(date, target)
		if err != nil {
			// ledger invariant violations are defects; fail loudly
			return nil, err
		}
		result.Trades = append(result.Trades, stepResult.Trades...)
	}

	result.Valuations = sim.ValueHistory()
	result.FinalPortfolio = sim.Portfolio()

	metrics, err := calculator.CalculateMetrics(result.Valuations)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate metrics: %w", err)
	}
	result.Metrics = metrics

	if check != nil {
		report := check.Report()
		result.Validation = &report
	}

	log.Infow("backtest complete",
		"runID", result.RunID,
		"finalValue", result.Valuations[len(result.Valuations)-1].Value,
		"daysSkipped", len(result.SkippedDays),
	)

	return result, nil
}
