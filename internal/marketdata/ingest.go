package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"symphonybacktest/internal/logger"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
)

// IngestBars downloads daily adjusted closes for one symbol.
func IngestBars(symbol string, start, end time.Time) ([]Bar, error) {
	params := &chart.Params{
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Symbol:   symbol,
		Interval: datetime.OneDay,
	}
	iter := chart.Get(params)

	bars := []Bar{}
	for iter.Next() {
		ts := time.Unix(int64(iter.Bar().Timestamp), 0).UTC()
		date := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		adjClose, _ := iter.Bar().AdjClose.Float64()
		bars = append(bars, NewBar(date, adjClose))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", symbol, err)
	}

	return bars, nil
}

// IngestToCache downloads every symbol's series concurrently and writes the
// per-symbol CSV cache. Ingestion happens strictly before simulation; the
// store itself is never mutated while a backtest runs.
func IngestToCache(ctx context.Context, dir string, symbols []string, start, end time.Time) error {
	log := logger.FromContext(ctx)
	numGoroutines := 10

	inputCh := make(chan string, len(symbols))

	var wg sync.WaitGroup
	for _, symbol := range symbols {
		wg.Add(1)
		inputCh <- symbol
	}
	close(inputCh)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			for symbol := range inputCh {
				if ctx.Err() != nil {
					wg.Done()
					continue
				}
				bars, err := IngestBars(symbol, start, end)
				if err == nil {
					err = WriteCachedSeries(dir, symbol, bars)
				}
				if err != nil {
					log.Warnf("failed to ingest prices for %s: %s", symbol, err.Error())
				} else {
					log.Infof("cached %d bars for %s", len(bars), symbol)
				}
				wg.Done()
			}
		}()
	}

	wg.Wait()

	return ctx.Err()
}
