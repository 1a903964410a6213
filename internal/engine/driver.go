// Package engine drives a single backtest run: it streams ticks through
// strategy, execution, and portfolio in a fixed per-tick order (mark-to-
// market, fills, halt check, stop-loss or signal), then summarizes the
// run's equity curve into RunSummary.
package engine

import (
	"context"
	"time"

	"jax-quant-backtester/internal/config"
	"jax-quant-backtester/internal/observability"
	"jax-quant-backtester/libs/events"
	"jax-quant-backtester/libs/execution"
	"jax-quant-backtester/libs/metrics"
	"jax-quant-backtester/libs/portfolio"
	"jax-quant-backtester/libs/strategy"
)

// RunSummary is the terminal result of one backtest run. Execution and Risk
// are carried through so a persisted record can store the full config the
// run was executed under, not just its headline numbers.
type RunSummary struct {
	RunName           string
	Symbols           []string
	ShortWindow       int
	LongWindow        int
	InitialCash       float64
	FinalEquity       float64
	TotalReturn       float64
	Sharpe            float64
	MaxDrawdown       float64
	TotalCommission   float64
	TotalSlippageCost float64
	Halted            bool
	HaltReason        string
	RunID             string
	RunAt             time.Time
	DurationMs        int64
	Execution         execution.Config
	Risk              portfolio.RiskConfig
}

// Driver owns one backtest run's worth of wiring: strategy, execution
// engine, and portfolio, plus the symbol allow-list ticks are filtered by.
type Driver struct {
	cfg      config.BacktestConfig
	symbols  map[string]bool
	strat    strategy.Strategy
	exec     *execution.Engine
	book     *portfolio.Portfolio
	tradeQty int
	stats    *observability.BacktestMetrics
}

// New wires a Driver from a validated BacktestConfig. stats may be nil to
// skip metrics recording.
func New(cfg config.BacktestConfig, stats *observability.BacktestMetrics) (*Driver, error) {
	strategyID := cfg.StrategyID
	if strategyID == "" {
		strategyID = "ma_crossover"
	}
	strat, err := strategy.DefaultRegistry().Build(strategyID, cfg.Symbols, cfg.ShortWindow, cfg.LongWindow)
	if err != nil {
		return nil, err
	}
	execEngine, err := execution.New(cfg.CommissionPerTrade, cfg.Execution)
	if err != nil {
		return nil, err
	}
	book, err := portfolio.New(cfg.InitialCash, cfg.Risk)
	if err != nil {
		return nil, err
	}

	symbols := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = true
	}

	return &Driver{
		cfg:      cfg,
		symbols:  symbols,
		strat:    strat,
		exec:     execEngine,
		book:     book,
		tradeQty: cfg.TradeQuantity,
		stats:    stats,
	}, nil
}

// Run streams ticks through the event loop and returns the run summary.
// ticks must already be sorted chronologically.
func (d *Driver) Run(ctx context.Context, ticks []events.Market, runID string) (RunSummary, error) {
	start := time.Now()

	for _, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		if !d.symbols[tick.Symbol] {
			continue
		}
		if err := d.processTick(tick); err != nil {
			return RunSummary{}, err
		}
	}

	return d.summarize(runID, start), nil
}

func (d *Driver) processTick(tick events.Market) error {
	wasHalted := d.book.Risk.TradingHalted
	equity := d.book.MarkToMarket(tick.Symbol, tick.Mid)
	if d.stats != nil {
		d.stats.Equity.Set(equity)
		if d.book.EquityCurve != nil {
			d.stats.Drawdown.Set(metrics.MaxDrawdown(d.book.EquityCurve))
		}
	}

	fills, err := d.exec.OnMarket(tick)
	if err != nil {
		return err
	}
	for _, fill := range fills {
		d.book.OnFill(fill)
		if d.stats != nil {
			d.stats.FillsTotal.Inc("symbol", fill.Symbol)
		}
	}

	if d.book.Risk.TradingHalted {
		if d.stats != nil && !wasHalted {
			d.stats.HaltEvents.Inc()
		}
		return nil
	}

	if side, triggered := d.book.CheckStopLoss(tick.Symbol); triggered {
		pos := d.book.GetPosition(tick.Symbol)
		qty := pos.Quantity
		if qty < 0 {
			qty = -qty
		}
		if qty > 0 {
			order, err := events.NewOrder(tick.Timestamp, tick.Symbol, side, qty, events.Market, nil)
			if err != nil {
				return err
			}
			d.exec.Submit(order)
			if d.stats != nil {
				d.stats.StopLossEvents.Inc("symbol", tick.Symbol)
			}
		}
		return nil
	}

	signal, err := d.strat.OnMarket(tick)
	if err != nil {
		return err
	}
	if signal != nil && d.book.CanPlaceOrder(signal.Symbol, signal.Side, d.tradeQty) {
		order, err := events.NewOrder(signal.Timestamp, signal.Symbol, signal.Side, d.tradeQty, events.Market, nil)
		if err != nil {
			return err
		}
		d.exec.Submit(order)
		if d.stats != nil {
			d.stats.SignalsEmitted.Inc("symbol", signal.Symbol, "side", string(signal.Side))
		}
	}
	return nil
}

func (d *Driver) summarize(runID string, start time.Time) RunSummary {
	eq := d.book.EquityCurve
	returns := metrics.ReturnsFromEquity(eq)

	finalEquity := d.cfg.InitialCash
	if len(eq) > 0 {
		finalEquity = eq[len(eq)-1]
	}
	totalReturn := finalEquity/d.cfg.InitialCash - 1.0

	return RunSummary{
		RunName:           d.cfg.RunName,
		Symbols:           d.cfg.Symbols,
		ShortWindow:       d.cfg.ShortWindow,
		LongWindow:        d.cfg.LongWindow,
		InitialCash:       d.cfg.InitialCash,
		FinalEquity:       finalEquity,
		TotalReturn:       totalReturn,
		Sharpe:            metrics.SharpeRatio(returns, 252),
		MaxDrawdown:       metrics.MaxDrawdown(eq),
		TotalCommission:   d.book.TotalCommission,
		TotalSlippageCost: d.book.TotalSlippageCost,
		Halted:            d.book.Risk.TradingHalted,
		HaltReason:        d.book.Risk.HaltReason,
		RunID:             runID,
		RunAt:             start,
		DurationMs:        time.Since(start).Milliseconds(),
		Execution:         d.cfg.Execution,
		Risk:              d.cfg.Risk,
	}
}
