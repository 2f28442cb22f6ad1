package marketdata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBars(t *testing.T) {
	t.Run("parses dates and closes", func(t *testing.T) {
		bars, err := ReadBars(strings.NewReader("date,close\n2023-01-03,380.82\n2023-01-04,383.76\n"))
		require.NoError(t, err)
		require.Len(t, bars, 2)
		require.Equal(t, 380.82, bars[0].Close)
		require.Equal(t, day(2023, 1, 3), bars[0].date)
	})

	t.Run("bad date rejected", func(t *testing.T) {
		_, err := ReadBars(strings.NewReader("date,close\n01/03/2023,380.82\n"))
		require.Error(t, err)
	})
}

func TestCachedSeries(t *testing.T) {
	dir := t.TempDir()

	bars := []Bar{
		NewBar(day(2023, 1, 3), 100),
		NewBar(day(2023, 1, 4), 101),
	}
	require.NoError(t, WriteCachedSeries(dir, "SPY", bars))

	t.Run("load named symbols", func(t *testing.T) {
		s := NewStore()
		require.NoError(t, LoadCachedSeries(s, dir, []string{"SPY"}))
		price, err := s.Close("SPY", day(2023, 1, 4))
		require.NoError(t, err)
		require.Equal(t, 101.0, price)
	})

	t.Run("missing symbol errors", func(t *testing.T) {
		s := NewStore()
		require.Error(t, LoadCachedSeries(s, dir, []string{"SPY", "ZZZ"}))
	})

	t.Run("load everything in the cache dir", func(t *testing.T) {
		require.NoError(t, WriteCachedSeries(dir, "TLT", bars))

		s := NewStore()
		require.NoError(t, LoadAllCachedSeries(s, dir))
		require.ElementsMatch(t, []string{"SPY", "TLT"}, s.Symbols())
	})
}
