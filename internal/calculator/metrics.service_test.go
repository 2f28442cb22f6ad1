package calculator

import (
	"math"
	"testing"
	"time"

	"symphonybacktest/internal/domain"

	"github.com/stretchr/testify/require"
)

func valuations(values ...float64) []domain.DailyValuation {
	out := []domain.DailyValuation{}
	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		out = append(out, domain.DailyValuation{Date: start.AddDate(0, 0, i), Value: v})
	}
	return out
}

func TestCalculateMetrics(t *testing.T) {
	t.Run("empty history errors", func(t *testing.T) {
		_, err := CalculateMetrics(nil)
		require.Error(t, err)
	})

	t.Run("zero starting value errors", func(t *testing.T) {
		_, err := CalculateMetrics(valuations(0, 100))
		require.Error(t, err)
	})

	t.Run("constant series has no variance", func(t *testing.T) {
		metrics, err := CalculateMetrics(valuations(100000, 100000, 100000))
		require.NoError(t, err)
		require.Equal(t, 0.0, metrics.TotalReturn)
		require.Equal(t, 0.0, metrics.MaxDrawdown)
		require.Nil(t, metrics.SharpeRatio)
	})

	t.Run("single sample has no sharpe", func(t *testing.T) {
		metrics, err := CalculateMetrics(valuations(100000))
		require.NoError(t, err)
		require.Nil(t, metrics.SharpeRatio)
	})

	t.Run("total return and drawdown", func(t *testing.T) {
		metrics, err := CalculateMetrics(valuations(100, 110, 99))
		require.NoError(t, err)
		require.InDelta(t, -0.01, metrics.TotalReturn, 1e-9)
		// worst peak-to-trough: 110 -> 99
		require.InDelta(t, -0.1, metrics.MaxDrawdown, 1e-9)
	})

	t.Run("sharpe annualizes mean over stdev", func(t *testing.T) {
		// returns +10%, -10%: mean 0, so sharpe is exactly 0
		metrics, err := CalculateMetrics(valuations(100, 110, 99))
		require.NoError(t, err)
		require.NotNil(t, metrics.SharpeRatio)
		require.InDelta(t, 0.0, *metrics.SharpeRatio, 1e-9)
	})

	t.Run("steady gain has positive sharpe", func(t *testing.T) {
		metrics, err := CalculateMetrics(valuations(100, 102, 103, 106))
		require.NoError(t, err)
		require.NotNil(t, metrics.SharpeRatio)
		require.Greater(t, *metrics.SharpeRatio, 0.0)
		require.False(t, math.IsNaN(*metrics.SharpeRatio))
		require.Equal(t, 0.0, metrics.MaxDrawdown)
	})
}
