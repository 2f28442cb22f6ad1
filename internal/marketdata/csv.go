package marketdata

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
)

// Bar is one daily close, in the CSV cache layout.
type Bar struct {
	Date  string  `csv:"date"`
	Close float64 `csv:"close"`

	date time.Time
}

func NewBar(date time.Time, close float64) Bar {
	return Bar{
		Date:  date.Format(time.DateOnly),
		Close: close,
		date:  date,
	}
}

// ReadBars parses a per-symbol CSV series.
func ReadBars(r io.Reader) ([]Bar, error) {
	rows := []Bar{}
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse bars csv: %w", err)
	}

	for i := range rows {
		date, err := time.Parse(time.DateOnly, rows[i].Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q in bars csv: %w", rows[i].Date, err)
		}
		rows[i].date = date.UTC()
	}

	return rows, nil
}

func WriteBars(w io.Writer, bars []Bar) error {
	if err := gocsv.Marshal(&bars, w); err != nil {
		return fmt.Errorf("failed to write bars csv: %w", err)
	}
	return nil
}

func cachePath(dir, symbol string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.csv", symbol))
}

// LoadCachedSeries loads <dir>/<symbol>.csv for every symbol into the store.
func LoadCachedSeries(s *Store, dir string, symbols []string) error {
	for _, symbol := range symbols {
		f, err := os.Open(cachePath(dir, symbol))
		if err != nil {
			return fmt.Errorf("failed to open cached series for %s: %w", symbol, err)
		}
		bars, err := ReadBars(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to read cached series for %s: %w", symbol, err)
		}
		if err := s.AddSeries(symbol, bars); err != nil {
			return err
		}
	}

	return nil
}

// LoadAllCachedSeries loads every per-symbol CSV found in dir.
func LoadAllCachedSeries(s *Store, dir string) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no cached series found in %s", dir)
	}

	symbols := []string{}
	for _, path := range matches {
		base := filepath.Base(path)
		symbols = append(symbols, base[:len(base)-len(".csv")])
	}

	return LoadCachedSeries(s, dir, symbols)
}

func WriteCachedSeries(dir, symbol string, bars []Bar) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(cachePath(dir, symbol))
	if err != nil {
		return err
	}
	defer f.Close()

	return WriteBars(f, bars)
}
