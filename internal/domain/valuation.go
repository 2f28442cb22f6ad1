package domain

import "time"

// DailyValuation is one read-only sample of the portfolio's pre-trade value,
// appended once per simulated day in date order.
type DailyValuation struct {
	Date  time.Time
	Value float64
}
