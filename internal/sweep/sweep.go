// Package sweep runs a Cartesian-product grid of (short_window,
// long_window) backtests, optionally in parallel, and exports the ranked
// results to CSV.
package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"jax-quant-backtester/internal/config"
	"jax-quant-backtester/internal/engine"
	"jax-quant-backtester/internal/observability"
	"jax-quant-backtester/libs/events"
)

// Member is one (short_window, long_window) pair's run result.
type Member struct {
	ShortWindow int
	LongWindow  int
	Summary     engine.RunSummary
}

// Run executes every (sw, lw) combination from shortWindows x longWindows
// with sw < lw, skipping invalid pairs. maxParallel bounds concurrency: 1
// runs sequentially, 0 or negative means unbounded. Each member gets its
// own Driver and therefore its own disjoint engine/portfolio state, so
// running members concurrently is safe.
func Run(ctx context.Context, base config.BacktestConfig, ticks []events.Market, shortWindows, longWindows []int, maxParallel int, stats *observability.BacktestMetrics) ([]Member, error) {
	type pair struct{ sw, lw int }
	var pairs []pair
	for _, sw := range shortWindows {
		for _, lw := range longWindows {
			if sw >= lw {
				continue
			}
			pairs = append(pairs, pair{sw, lw})
		}
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	members := make([]Member, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	if maxParallel > 0 {
		g.SetLimit(maxParallel)
	}

	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			runCfg := base
			runCfg.ShortWindow = p.sw
			runCfg.LongWindow = p.lw
			runCfg.RunName = fmt.Sprintf("%s-sw%d-lw%d", base.RunName, p.sw, p.lw)

			d, err := engine.New(runCfg, stats)
			if err != nil {
				return fmt.Errorf("sweep: build driver for sw=%d lw=%d: %w", p.sw, p.lw, err)
			}
			summary, err := d.Run(gctx, ticks, fmt.Sprintf("%s-sw%d-lw%d", base.RunName, p.sw, p.lw))
			if err != nil {
				return fmt.Errorf("sweep: run sw=%d lw=%d: %w", p.sw, p.lw, err)
			}
			members[i] = Member{ShortWindow: p.sw, LongWindow: p.lw, Summary: summary}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Summary.TotalReturn != members[j].Summary.TotalReturn {
			return members[i].Summary.TotalReturn > members[j].Summary.TotalReturn
		}
		return members[i].Summary.Sharpe > members[j].Summary.Sharpe
	})

	return members, nil
}

var csvHeader = []string{
	"run_name", "symbols", "short_window", "long_window", "initial_cash",
	"final_equity", "total_return", "sharpe", "max_drawdown",
	"total_commission", "total_slippage_cost", "halted", "halt_reason",
}

// ExportCSV writes members to path in the ranked order they're given in,
// creating parent directories as needed.
func ExportCSV(path string, members []Member) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("sweep: create export dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sweep: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("sweep: write header: %w", err)
	}
	for _, m := range members {
		s := m.Summary
		row := []string{
			s.RunName,
			joinSymbols(s.Symbols),
			strconv.Itoa(s.ShortWindow),
			strconv.Itoa(s.LongWindow),
			strconv.FormatFloat(s.InitialCash, 'f', -1, 64),
			strconv.FormatFloat(s.FinalEquity, 'f', -1, 64),
			strconv.FormatFloat(s.TotalReturn, 'f', -1, 64),
			strconv.FormatFloat(s.Sharpe, 'f', -1, 64),
			strconv.FormatFloat(s.MaxDrawdown, 'f', -1, 64),
			strconv.FormatFloat(s.TotalCommission, 'f', -1, 64),
			strconv.FormatFloat(s.TotalSlippageCost, 'f', -1, 64),
			strconv.FormatBool(s.Halted),
			s.HaltReason,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("sweep: write row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func joinSymbols(symbols []string) string {
	out := ""
	for i, s := range symbols {
		if i > 0 {
			out += ";"
		}
		out += s
	}
	return out
}
