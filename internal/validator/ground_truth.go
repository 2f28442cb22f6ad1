package validator

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

// GroundTruth holds the externally supplied daily selections: per date, the
// set of tickers with a strictly positive allocation.
type GroundTruth struct {
	holdings map[string]map[string]struct{}
}

// metadata columns in the ground-truth export; every other column is a ticker
var nonTickerColumns = map[string]struct{}{
	"Date":       {},
	"Day Traded": {},
}

// LoadGroundTruth parses the ground-truth CSV. Ticker columns hold
// percentage strings; "-" or blank means not held.
func LoadGroundTruth(r io.Reader) (*GroundTruth, error) {
	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ground truth csv: %w", err)
	}

	gt := &GroundTruth{holdings: map[string]map[string]struct{}{}}
	for _, row := range rows {
		rawDate, ok := row["Date"]
		if !ok {
			return nil, fmt.Errorf("ground truth csv has no Date column")
		}
		date, err := time.Parse(time.DateOnly, rawDate)
		if err != nil {
			return nil, fmt.Errorf("invalid ground truth date %q: %w", rawDate, err)
		}

		selected := map[string]struct{}{}
		for column, value := range row {
			if _, skip := nonTickerColumns[column]; skip {
				continue
			}
			value = strings.TrimSpace(value)
			if value == "" || value == "-" {
				continue
			}
			allocation, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
			if err != nil {
				continue
			}
			if allocation > 0 {
				selected[column] = struct{}{}
			}
		}
		gt.holdings[date.Format(time.DateOnly)] = selected
	}

	return gt, nil
}

// Selections returns the ground-truth ticker set for a date, if present.
func (g *GroundTruth) Selections(date time.Time) (map[string]struct{}, bool) {
	selected, ok := g.holdings[date.Format(time.DateOnly)]
	return selected, ok
}

func (g *GroundTruth) NumDates() int {
	return len(g.holdings)
}
