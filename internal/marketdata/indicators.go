package marketdata

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"
)

// ComputeIndicators precomputes every requested indicator column for every
// loaded symbol. Values inside the warm-up window are NaN and surface as
// MissingDataError from Indicator.
func (s *Store) ComputeIndicators(requirements []IndicatorKey) error {
	for _, key := range requirements {
		if key.Window < 1 {
			return fmt.Errorf("invalid window %d for indicator %s", key.Window, key.Kind)
		}
		for symbol, sr := range s.series {
			if _, ok := sr.indicators[key]; ok {
				continue
			}
			switch key.Kind {
			case IndicatorKind_MovingAverage:
				// lookback window-1: the first mean lands on the window'th bar
				sr.indicators[key] = maskWarmup(talib.Sma(sr.closes, key.Window), key.Window-1)
			case IndicatorKind_RSI:
				// RSI needs window deltas, so one extra bar of warm-up
				sr.indicators[key] = maskWarmup(talib.Rsi(sr.closes, key.Window), key.Window)
			default:
				return fmt.Errorf("unknown indicator kind %q for %s", key.Kind, symbol)
			}
		}
	}

	return nil
}

// maskWarmup overwrites the indicator's unstable leading region with NaN.
// talib zero-fills entries before the lookback, which would otherwise read
// as real values.
func maskWarmup(values []float64, lookback int) []float64 {
	if lookback > len(values) {
		lookback = len(values)
	}
	for i := 0; i < lookback; i++ {
		values[i] = math.NaN()
	}
	return values
}
