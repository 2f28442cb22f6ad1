package domain

import "math"

// WeightTolerance is how far a non-empty allocation's weights may drift
// from summing to exactly 1.
const WeightTolerance = 1e-6

// TargetAllocation maps ticker symbol to fractional portfolio weight for one
// date. Weights are non-negative and sum to 1 within WeightTolerance whenever
// the map is non-empty; an empty map means fully in cash.
type TargetAllocation map[string]float64

// Normalized returns a copy scaled so weights sum to 1. A zero or empty total
// yields an empty allocation.
func (a TargetAllocation) Normalized() TargetAllocation {
	total := 0.0
	for _, w := range a {
		total += w
	}
	if total <= 0 {
		return TargetAllocation{}
	}

	out := make(TargetAllocation, len(a))
	for symbol, w := range a {
		out[symbol] = w / total
	}
	return out
}

// Valid reports whether the allocation satisfies the weight invariant.
func (a TargetAllocation) Valid() bool {
	if len(a) == 0 {
		return true
	}
	total := 0.0
	for _, w := range a {
		if w < 0 || math.IsNaN(w) {
			return false
		}
		total += w
	}
	return math.Abs(total-1) <= WeightTolerance
}

// Symbols returns the set of symbols with strictly positive weight.
func (a TargetAllocation) Symbols() map[string]struct{} {
	out := map[string]struct{}{}
	for symbol, w := range a {
		if w > 0 {
			out[symbol] = struct{}{}
		}
	}
	return out
}
