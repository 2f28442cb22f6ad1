package calculator

import (
	"fmt"
	"math"

	"symphonybacktest/internal/domain"

	"github.com/montanaflynn/stats"
)

type SummaryMetrics struct {
	TotalReturn float64
	// nil when fewer than 2 return samples exist or returns have no variance
	SharpeRatio *float64
	MaxDrawdown float64
}

// CalculateMetrics reduces the valuation series: total return, annualized
// Sharpe (risk-free rate 0), and max drawdown as a negative fraction.
func CalculateMetrics(history []domain.DailyValuation) (*SummaryMetrics, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("cannot calculate metrics on empty valuation history")
	}
	if history[0].Value == 0 {
		return nil, fmt.Errorf("cannot calculate metrics with 0 starting value")
	}

	out := &SummaryMetrics{
		TotalReturn: history[len(history)-1].Value/history[0].Value - 1,
		MaxDrawdown: maxDrawdown(history),
	}

	returns := dailyReturns(history)
	if len(returns) >= 2 {
		mean, err := stats.Mean(returns)
		if err != nil {
			return nil, err
		}
		stdev, err := stats.StandardDeviationSample(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate stdev of returns: %w", err)
		}
		if stdev > 0 {
			sharpe := mean / stdev * math.Sqrt(252)
			out.SharpeRatio = &sharpe
		}
	}

	return out, nil
}

func dailyReturns(history []domain.DailyValuation) []float64 {
	returns := []float64{}
	for i := 1; i < len(history); i++ {
		prev := history[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, history[i].Value/prev-1)
	}
	return returns
}

func maxDrawdown(history []domain.DailyValuation) float64 {
	peak := history[0].Value
	worst := 0.0
	for _, v := range history {
		if v.Value > peak {
			peak = v.Value
		}
		if peak > 0 {
			drawdown := (v.Value - peak) / peak
			if drawdown < worst {
				worst = drawdown
			}
		}
	}
	return worst
}
