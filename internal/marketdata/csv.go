// Package marketdata reads tick data for a backtest run. CSVSource is the
// only tick source: no CSV or dataframe library appears anywhere in the
// dependency stack this backtester draws on, so it is read with the
// standard library's encoding/csv — the one ambient concern in this module
// built without a third-party library, for lack of one in the stack.
package marketdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"jax-quant-backtester/libs/events"
)

var tickTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CSVSource streams Market ticks from a CSV file, sorted chronologically.
//
// Required columns: date, symbol, mid.
// Optional columns: bid, ask, spread_bps, volume.
type CSVSource struct {
	Path string
}

// NewCSVSource constructs a CSVSource for path.
func NewCSVSource(path string) CSVSource {
	return CSVSource{Path: path}
}

// Load reads and validates the whole file, returning ticks sorted by
// timestamp (stable, so same-timestamp rows keep their file order).
func (s CSVSource) Load() ([]events.Market, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("marketdata: open %s: %w", s.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("marketdata: read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"date", "symbol", "mid"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("marketdata: CSV missing required column %q", required)
		}
	}

	var ticks []events.Market
	rowNum := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("marketdata: row %d: %w", rowNum+1, err)
		}
		rowNum++

		ts, err := parseTickTime(record[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("marketdata: invalid date at row %d: %w", rowNum, err)
		}

		mid, err := strconv.ParseFloat(record[col["mid"]], 64)
		if err != nil {
			return nil, fmt.Errorf("marketdata: invalid mid at row %d: %q", rowNum, record[col["mid"]])
		}

		bid, err := optionalField(record, col, "bid", rowNum)
		if err != nil {
			return nil, err
		}
		ask, err := optionalField(record, col, "ask", rowNum)
		if err != nil {
			return nil, err
		}
		spreadBps, err := optionalField(record, col, "spread_bps", rowNum)
		if err != nil {
			return nil, err
		}
		volume, err := optionalField(record, col, "volume", rowNum)
		if err != nil {
			return nil, err
		}

		tick, err := events.NewMarket(ts, record[col["symbol"]], mid, bid, ask, spreadBps, volume)
		if err != nil {
			return nil, fmt.Errorf("marketdata: row %d: %w", rowNum, err)
		}
		ticks = append(ticks, tick)
	}

	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
	return ticks, nil
}

func optionalField(record []string, col map[string]int, name string, rowNum int) (*float64, error) {
	idx, ok := col[name]
	if !ok || idx >= len(record) || strings.TrimSpace(record[idx]) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(record[idx], 64)
	if err != nil {
		return nil, fmt.Errorf("marketdata: invalid %s at row %d: %q", name, rowNum, record[idx])
	}
	return &v, nil
}

func parseTickTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range tickTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
