// Command backtester runs a deterministic single-symbol-set backtest or a
// parameter sweep over a moving-average crossover strategy, against CSV
// tick data, with results optionally persisted to Postgres.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"jax-quant-backtester/internal/config"
	"jax-quant-backtester/internal/engine"
	"jax-quant-backtester/internal/marketdata"
	"jax-quant-backtester/internal/observability"
	"jax-quant-backtester/internal/persistence"
	"jax-quant-backtester/internal/sweep"
	"jax-quant-backtester/libs/events"
	"jax-quant-backtester/libs/execution"
	"jax-quant-backtester/libs/portfolio"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

type cliFlags struct {
	fs  *flag.FlagSet
	set map[string]bool

	configPath  string
	dryRun      bool
	csvPath     string
	symbols     string
	dbURL       string
	outDir      string
	runName     string
	strategyID  string
	noPersist   bool
	metricsAddr string
	maxParallel int
	logLevel    string

	defaultSpreadBps *float64
	impactBpsPerUnit *float64
	impactVolume     *float64
	rngSeed          *int64
	commission       *float64
	qty              *int
	cash             *float64

	latencyEvents       *int
	defaultTickVolume   *float64
	maxParticipation    *float64
	queueAhead          *float64
	baseFillProbability *float64

	maxPos   *int
	stopLoss *float64
	maxDD    *float64

	short *int
	long  *int

	shortGrid string
	longGrid  string
	exportCSV string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: backtester <run|sweep> [flags]")
		return 2
	}
	cmd := args[0]
	if cmd != "run" && cmd != "sweep" {
		fmt.Fprintf(os.Stderr, "unknown command %q: expected run or sweep\n", cmd)
		return 2
	}

	flags, err := parseFlags(cmd, args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	fileCfg, err := config.LoadFile(flags.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, grids, err := buildConfig(cmd, flags, fileCfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if flags.dryRun {
		printDryRun(cmd, cfg, flags, grids)
		return 0
	}

	observability.SetMinLevel(flags.logLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var metricsServer *observability.Server
	var stats *observability.BacktestMetrics
	if flags.metricsAddr != "" {
		internalReg := observability.NewRegistry()
		stats = observability.NewBacktestMetrics(internalReg)
		_, promReg := observability.NewCLIMetrics()
		metricsServer, err = observability.NewServer(flags.metricsAddr, promReg, internalReg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}
	if metricsServer != nil {
		defer metricsServer.Shutdown(context.Background())
	}

	ticks, err := marketdata.NewCSVSource(cfg.CSVPath).Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	var store *persistence.Store
	if !flags.noPersist {
		store, err = persistence.Connect(ctx, persistence.DefaultConfig(cfg.DatabaseURL))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer store.Close()
	}

	switch cmd {
	case "run":
		return runSingle(ctx, cfg, ticks, stats, store)
	case "sweep":
		return runSweep(ctx, cfg, ticks, grids, flags, stats, store)
	}
	return 1
}

func runSingle(ctx context.Context, cfg config.BacktestConfig, ticks []events.Market, stats *observability.BacktestMetrics, store *persistence.Store) int {
	runID := observability.NewRunID()
	runCtx := observability.WithRunInfo(ctx, observability.RunInfo{RunID: runID})
	start := time.Now()

	d, err := engine.New(cfg, stats)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	summary, err := d.Run(ctx, ticks, runID)
	observability.LogRunComplete(runCtx, cfg.RunName, time.Since(start), summary.FinalEquity, err)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if store != nil {
		if _, err := store.InsertRun(ctx, toRunRecord(summary)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	for _, line := range []string{
		fmt.Sprintf("run_name: %s", summary.RunName),
		fmt.Sprintf("symbols: %v", summary.Symbols),
		fmt.Sprintf("final_equity: %v", summary.FinalEquity),
		fmt.Sprintf("total_return: %v", summary.TotalReturn),
		fmt.Sprintf("sharpe: %v", summary.Sharpe),
		fmt.Sprintf("max_drawdown: %v", summary.MaxDrawdown),
		fmt.Sprintf("halted: %v", summary.Halted),
		fmt.Sprintf("halt_reason: %s", summary.HaltReason),
	} {
		fmt.Println(line)
	}
	return 0
}

func runSweep(ctx context.Context, cfg config.BacktestConfig, ticks []events.Market, grids sweepGrids, f *cliFlags, stats *observability.BacktestMetrics, store *persistence.Store) int {
	start := time.Now()
	members, err := sweep.Run(ctx, cfg, ticks, grids.short, grids.long, f.maxParallel, stats)
	var bestEquity float64
	if len(members) > 0 {
		bestEquity = members[0].Summary.FinalEquity
	}
	observability.LogRunComplete(ctx, cfg.RunName+"-sweep", time.Since(start), bestEquity, err)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	exportCSV := f.exportCSV
	if exportCSV == "" {
		exportCSV = filepath.Join(cfg.OutDir, "sweep_results.csv")
	}
	if err := sweep.ExportCSV(exportCSV, members); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if store != nil && len(members) > 0 {
		records := make([]persistence.RunRecord, len(members))
		for i, m := range members {
			records[i] = toRunRecord(m.Summary)
		}
		if err := store.InsertRunsBulk(ctx, records); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	shown := members
	if len(shown) > 10 {
		shown = shown[:10]
	}
	for _, m := range shown {
		fmt.Printf("sw=%d lw=%d total_return=%v sharpe=%v\n", m.ShortWindow, m.LongWindow, m.Summary.TotalReturn, m.Summary.Sharpe)
	}
	fmt.Printf("Saved sweep CSV to: %s\n", exportCSV)
	return 0
}

func toRunRecord(s engine.RunSummary) persistence.RunRecord {
	return persistence.RunRecord{
		RunName:           s.RunName,
		Symbols:           s.Symbols,
		ShortWindow:       s.ShortWindow,
		LongWindow:        s.LongWindow,
		InitialCash:       s.InitialCash,
		FinalEquity:       s.FinalEquity,
		TotalReturn:       s.TotalReturn,
		Sharpe:            s.Sharpe,
		MaxDrawdown:       s.MaxDrawdown,
		TotalCommission:   s.TotalCommission,
		TotalSlippageCost: s.TotalSlippageCost,
		Halted:            s.Halted,
		HaltReason:        s.HaltReason,
		Extra: map[string]any{
			"run_id":    s.RunID,
			"execution": s.Execution,
			"risk":      s.Risk,
		},
	}
}

func parseFlags(cmd string, args []string) (*cliFlags, error) {
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	f := &cliFlags{fs: fs}

	fs.StringVar(&f.configPath, "config", "", "path to .json/.yml/.yaml config")
	fs.BoolVar(&f.dryRun, "dry-run", false, "validate config and exit")
	fs.StringVar(&f.csvPath, "csv", "", "path to CSV market data")
	fs.StringVar(&f.symbols, "symbols", "", "comma-separated symbols")
	fs.StringVar(&f.dbURL, "db", "", "database connection string")
	fs.StringVar(&f.outDir, "out", "", "output directory")
	fs.StringVar(&f.runName, "run-name", "", "run name")
	fs.StringVar(&f.strategyID, "strategy", "", "registered strategy id (default ma_crossover)")
	fs.BoolVar(&f.noPersist, "no-persist", false, "do not persist run results to the database")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (empty disables)")
	fs.IntVar(&f.maxParallel, "max-parallel", 1, "max concurrent backtests in a sweep (0 = unbounded)")
	fs.StringVar(&f.logLevel, "log-level", "info", "minimum log level: debug, info, warn, error")

	f.defaultSpreadBps = fs.Float64("default-spread-bps", 0, "fallback spread in basis points")
	f.impactBpsPerUnit = fs.Float64("impact-bps-per-unit", 0, "market impact basis points per unit quantity")
	f.impactVolume = fs.Float64("impact-volume", 0, "impact model liquidity scale")
	f.rngSeed = fs.Int64("rng-seed", 0, "execution simulator RNG seed")
	f.commission = fs.Float64("commission", 0, "commission charged per order")
	f.qty = fs.Int("qty", 0, "trade quantity per signal")
	f.cash = fs.Float64("cash", 0, "initial cash")

	f.latencyEvents = fs.Int("latency-events", 0, "ticks before an order becomes eligible to fill")
	f.defaultTickVolume = fs.Float64("default-tick-volume", 0, "assumed tick volume when absent from data")
	f.maxParticipation = fs.Float64("max-participation", 0, "max fraction of tick volume consumable per tick")
	f.queueAhead = fs.Float64("queue-ahead", 0, "assumed resting liquidity ahead of a LIMIT order")
	f.baseFillProbability = fs.Float64("base-fill-prob", 0, "base fill probability once a LIMIT order is touched")

	f.maxPos = fs.Int("max-pos", 0, "max absolute position per symbol")
	f.stopLoss = fs.Float64("stop-loss", 0, "stop-loss percentage from average cost")
	f.maxDD = fs.Float64("max-dd", 0, "max drawdown before trading halts")

	if cmd == "run" {
		f.short = fs.Int("short", 0, "short moving-average window")
		f.long = fs.Int("long", 0, "long moving-average window")
	}
	if cmd == "sweep" {
		fs.StringVar(&f.shortGrid, "short-grid", "", "comma-separated short windows")
		fs.StringVar(&f.longGrid, "long-grid", "", "comma-separated long windows")
		fs.StringVar(&f.exportCSV, "export-csv", "", "sweep results CSV output path")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

func parseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func parseGrid(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid grid value %q: %w", part, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("grid values must not be empty")
	}
	return out, nil
}

type sweepGrids struct {
	short []int
	long  []int
}

func buildConfig(cmd string, f *cliFlags, fc config.FileConfig) (config.BacktestConfig, sweepGrids, error) {
	var symbols []string
	if f.set["symbols"] {
		symbols = parseSymbols(f.symbols)
	} else if len(fc.Symbols) > 0 {
		symbols = fc.Symbols
	}
	if len(symbols) == 0 {
		return config.BacktestConfig{}, sweepGrids{}, fmt.Errorf("missing symbols: pass --symbols or provide 'symbols' in --config")
	}

	csvPath := config.Pick(optStr(f.set["csv"], f.csvPath), fc.CSVPath, "data/sample_prices.csv")
	runName := config.Pick(optStr(f.set["run-name"], f.runName), fc.RunName, "run")
	strategyID := config.Pick(optStr(f.set["strategy"], f.strategyID), fc.StrategyID, "ma_crossover")
	outDir := config.Pick(optStr(f.set["out"], f.outDir), fc.OutDir, "runs")
	dbURL := config.Pick(optStr(f.set["db"], f.dbURL), fc.DatabaseURL, envOr("DATABASE_URL", "postgres://localhost:5432/backtester"))

	micro := execution.MicrostructureConfig{
		LatencyEvents:        config.Pick(optInt(f.set["latency-events"], f.latencyEvents), fc.Execution.Micro.LatencyEvents, 1),
		DefaultTickVolume:    config.Pick(optF64(f.set["default-tick-volume"], f.defaultTickVolume), fc.Execution.Micro.DefaultTickVolume, 5_000.0),
		MaxParticipationRate: config.Pick(optF64(f.set["max-participation"], f.maxParticipation), fc.Execution.Micro.MaxParticipationRate, 0.2),
		QueueAheadFraction:   config.Pick(optF64(f.set["queue-ahead"], f.queueAhead), fc.Execution.Micro.QueueAheadFraction, 0.7),
		BaseFillProbability:  config.Pick(optF64(f.set["base-fill-prob"], f.baseFillProbability), fc.Execution.Micro.BaseFillProbability, 0.8),
	}
	execCfg := execution.Config{
		DefaultSpreadBps: config.Pick(optF64(f.set["default-spread-bps"], f.defaultSpreadBps), fc.Execution.DefaultSpreadBps, 5.0),
		ImpactBpsPerUnit: config.Pick(optF64(f.set["impact-bps-per-unit"], f.impactBpsPerUnit), fc.Execution.ImpactBpsPerUnit, 2.0),
		ImpactVolume:     config.Pick(optF64(f.set["impact-volume"], f.impactVolume), fc.Execution.ImpactVolume, 10_000.0),
		RNGSeed:          config.Pick(optI64(f.set["rng-seed"], f.rngSeed), fc.Execution.RNGSeed, 7),
		Micro:            micro,
	}
	riskCfg := portfolio.RiskConfig{
		MaxPositionPerSymbol: config.Pick(optInt(f.set["max-pos"], f.maxPos), fc.Risk.MaxPositionPerSymbol, 1_000),
		StopLossPct:          config.Pick(optF64(f.set["stop-loss"], f.stopLoss), fc.Risk.StopLossPct, 0.05),
		MaxDrawdownPct:       config.Pick(optF64(f.set["max-dd"], f.maxDD), fc.Risk.MaxDrawdownPct, 0.20),
	}

	var short, long int
	grids := sweepGrids{}
	if cmd == "run" {
		short = config.Pick(optInt(f.set["short"], f.short), fc.ShortWindow, 20)
		long = config.Pick(optInt(f.set["long"], f.long), fc.LongWindow, 50)
	} else {
		rawShort := config.Pick(optStr(f.set["short-grid"], f.shortGrid), fc.ShortGrid, "10,20,30")
		rawLong := config.Pick(optStr(f.set["long-grid"], f.longGrid), fc.LongGrid, "50,100,150")
		shortGrid, err := parseGrid(rawShort)
		if err != nil {
			return config.BacktestConfig{}, sweepGrids{}, fmt.Errorf("invalid short-grid: %w", err)
		}
		longGrid, err := parseGrid(rawLong)
		if err != nil {
			return config.BacktestConfig{}, sweepGrids{}, fmt.Errorf("invalid long-grid: %w", err)
		}
		grids = sweepGrids{short: shortGrid, long: longGrid}
		// Placeholder window pair for Validate(); sweep.Run overrides per-member.
		short, long = shortGrid[0], longGrid[len(longGrid)-1]
		if short >= long {
			short = 1
		}
	}

	cfg := config.BacktestConfig{
		Symbols:            symbols,
		InitialCash:        config.Pick(optF64(f.set["cash"], f.cash), fc.InitialCash, 100_000.0),
		TradeQuantity:      config.Pick(optInt(f.set["qty"], f.qty), fc.TradeQuantity, 100),
		CommissionPerTrade: config.Pick(optF64(f.set["commission"], f.commission), fc.CommissionPerTrade, 1.0),
		ShortWindow:        short,
		LongWindow:         long,
		CSVPath:            csvPath,
		RunName:            runName,
		OutDir:             outDir,
		DatabaseURL:        dbURL,
		StrategyID:         strategyID,
		Execution:          execCfg,
		Risk:               riskCfg,
	}

	if err := cfg.Validate(); err != nil {
		return config.BacktestConfig{}, sweepGrids{}, err
	}
	return cfg, grids, nil
}

func optStr(set bool, v string) *string {
	if !set {
		return nil
	}
	return &v
}
func optInt(set bool, v *int) *int {
	if !set {
		return nil
	}
	return v
}
func optI64(set bool, v *int64) *int64 {
	if !set {
		return nil
	}
	return v
}
func optF64(set bool, v *float64) *float64 {
	if !set {
		return nil
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func printDryRun(cmd string, cfg config.BacktestConfig, f *cliFlags, grids sweepGrids) {
	payload := map[string]any{
		"cmd":                  cmd,
		"symbols":              cfg.Symbols,
		"initial_cash":         cfg.InitialCash,
		"trade_quantity":       cfg.TradeQuantity,
		"commission_per_trade": cfg.CommissionPerTrade,
		"short_window":         cfg.ShortWindow,
		"long_window":          cfg.LongWindow,
		"csv_path":             cfg.CSVPath,
		"run_name":             cfg.RunName,
		"out_dir":              cfg.OutDir,
		"database_url":         cfg.DatabaseURL,
		"strategy_id":          cfg.StrategyID,
		"log_level":            f.logLevel,
		"persist":              !f.noPersist,
		"execution":            cfg.Execution,
		"risk":                 cfg.Risk,
	}
	if cmd == "sweep" {
		payload["short_grid"] = grids.short
		payload["long_grid"] = grids.long
		exportCSV := f.exportCSV
		if exportCSV == "" {
			exportCSV = filepath.Join(cfg.OutDir, "sweep_results.csv")
		}
		payload["export_csv"] = exportCSV
	}

	fmt.Println("Config valid.")
	out, _ := json.MarshalIndent(observability.RedactValue(payload), "", "  ")
	fmt.Println(string(out))
}
