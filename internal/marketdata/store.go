package marketdata

import (
	"fmt"
	"math"
	"sort"
	"time"
)

type IndicatorKind string

const (
	IndicatorKind_RSI           IndicatorKind = "rsi"
	IndicatorKind_MovingAverage IndicatorKind = "sma"
)

// IndicatorKey identifies one precomputed indicator column, e.g. (rsi, 10).
type IndicatorKey struct {
	Kind   IndicatorKind
	Window int
}

func (k IndicatorKey) String() string {
	return fmt.Sprintf("%s(%d)", k.Kind, k.Window)
}

// MissingDataError signals that no price or indicator value is known for a
// symbol on or before the requested date. Callers decide whether this aborts
// an evaluation or just drops a filter candidate.
type MissingDataError struct {
	Symbol string
	What   string
	Date   time.Time
}

func (e MissingDataError) Error() string {
	return fmt.Sprintf("no %s data for %s on or before %s", e.What, e.Symbol, e.Date.Format(time.DateOnly))
}

// Accessor is the market-data contract the evaluator and simulator consume.
// Both lookups use as-of semantics: the most recent value on or before date.
type Accessor interface {
	Close(symbol string, date time.Time) (float64, error)
	Indicator(symbol string, key IndicatorKey, date time.Time) (float64, error)
}

type series struct {
	dates      []time.Time
	closes     []float64
	indicators map[IndicatorKey][]float64
}

// asOfIndex returns the index of the most recent bar on or before date,
// or -1 when the series starts after date.
func (s *series) asOfIndex(date time.Time) int {
	n := sort.Search(len(s.dates), func(i int) bool {
		return s.dates[i].After(date)
	})
	return n - 1
}

// Store is an immutable-after-load, in-memory daily series per symbol.
// All data is materialized before a simulation starts; lookups never
// touch the network or disk.
type Store struct {
	series map[string]*series
}

func NewStore() *Store {
	return &Store{series: map[string]*series{}}
}

// AddSeries registers a symbol's daily closes. Bars are sorted by date;
// any previously computed indicators for the symbol are discarded.
func (s *Store) AddSeries(symbol string, bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("cannot add empty series for %s", symbol)
	}

	sorted := make([]Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].date.Before(sorted[j].date)
	})

	sr := &series{
		dates:      make([]time.Time, 0, len(sorted)),
		closes:     make([]float64, 0, len(sorted)),
		indicators: map[IndicatorKey][]float64{},
	}
	for _, b := range sorted {
		sr.dates = append(sr.dates, b.date)
		sr.closes = append(sr.closes, b.Close)
	}
	s.series[symbol] = sr

	return nil
}

func (s *Store) Symbols() []string {
	out := []string{}
	for symbol := range s.series {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func (s *Store) HasSymbol(symbol string) bool {
	_, ok := s.series[symbol]
	return ok
}

func (s *Store) Close(symbol string, date time.Time) (float64, error) {
	sr, ok := s.series[symbol]
	if !ok {
		return 0, MissingDataError{Symbol: symbol, What: "price", Date: date}
	}
	i := sr.asOfIndex(date)
	if i < 0 {
		return 0, MissingDataError{Symbol: symbol, What: "price", Date: date}
	}
	return sr.closes[i], nil
}

func (s *Store) Indicator(symbol string, key IndicatorKey, date time.Time) (float64, error) {
	sr, ok := s.series[symbol]
	if !ok {
		return 0, MissingDataError{Symbol: symbol, What: key.String(), Date: date}
	}
	values, ok := sr.indicators[key]
	if !ok {
		return 0, MissingDataError{Symbol: symbol, What: key.String(), Date: date}
	}
	i := sr.asOfIndex(date)
	if i < 0 || math.IsNaN(values[i]) {
		return 0, MissingDataError{Symbol: symbol, What: key.String(), Date: date}
	}
	return values[i], nil
}

// CommonTradingDays returns the dates, in order, on which every given symbol
// has a bar within [start, end]. The simulation axis is the intersection so a
// late-listing symbol shortens the run rather than producing missing prices.
func (s *Store) CommonTradingDays(symbols []string, start, end time.Time) ([]time.Time, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("cannot list trading days for 0 symbols")
	}

	counts := map[time.Time]int{}
	for _, symbol := range symbols {
		sr, ok := s.series[symbol]
		if !ok {
			return nil, fmt.Errorf("no series loaded for %s", symbol)
		}
		for _, d := range sr.dates {
			if d.Before(start) || d.After(end) {
				continue
			}
			counts[d]++
		}
	}

	out := []time.Time{}
	for d, n := range counts {
		if n == len(symbols) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	return out, nil
}
