package validator

import (
	"sort"
	"time"

	"symphonybacktest/internal/domain"
)

// Mismatch records one date where the evaluator's selected tickers differ
// from the ground truth. Set comparison only, no partial credit.
type Mismatch struct {
	Date        time.Time
	Parser      []string
	GroundTruth []string
}

type Report struct {
	DaysValidated int
	Matches       int
	Mismatches    []Mismatch
}

func (r Report) Accuracy() float64 {
	if r.DaysValidated == 0 {
		return 0
	}
	return float64(r.Matches) / float64(r.DaysValidated)
}

// Validator compares per-day allocations against a ground-truth selection
// table. Dates absent from the ground truth are not validated.
type Validator struct {
	groundTruth *GroundTruth
	report      Report
}

func New(groundTruth *GroundTruth) *Validator {
	return &Validator{groundTruth: groundTruth}
}

// Check records the comparison for one date and returns the mismatch, if any.
func (v *Validator) Check(date time.Time, allocation domain.TargetAllocation) *Mismatch {
	expected, ok := v.groundTruth.Selections(date)
	if !ok {
		return nil
	}

	v.report.DaysValidated++

	actual := allocation.Symbols()
	if setsEqual(actual, expected) {
		v.report.Matches++
		return nil
	}

	mismatch := Mismatch{
		Date:        date,
		Parser:      sortedSet(actual),
		GroundTruth: sortedSet(expected),
	}
	v.report.Mismatches = append(v.report.Mismatches, mismatch)
	return &mismatch
}

func (v *Validator) Report() Report {
	return v.report
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

func sortedSet(set map[string]struct{}) []string {
	out := []string{}
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
