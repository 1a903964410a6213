package engine

import (
	"context"
	"testing"
	"time"

	"jax-quant-backtester/internal/config"
	"jax-quant-backtester/libs/events"
	"jax-quant-backtester/libs/execution"
	"jax-quant-backtester/libs/portfolio"
)

func testConfig() config.BacktestConfig {
	return config.BacktestConfig{
		Symbols:            []string{"AAPL"},
		InitialCash:        100_000,
		TradeQuantity:      10,
		CommissionPerTrade: 0,
		ShortWindow:        2,
		LongWindow:         3,
		CSVPath:            "unused.csv",
		RunName:            "test",
		OutDir:             "runs",
		DatabaseURL:        "postgres://localhost/test",
		StrategyID:         "ma_crossover",
		Execution: execution.Config{
			DefaultSpreadBps: 0,
			ImpactBpsPerUnit: 0,
			ImpactVolume:     10_000,
			RNGSeed:          1,
			Micro: execution.MicrostructureConfig{
				LatencyEvents:        0,
				DefaultTickVolume:    10_000,
				MaxParticipationRate: 1.0,
				QueueAheadFraction:   0,
				BaseFillProbability:  1.0,
			},
		},
		Risk: portfolio.RiskConfig{
			MaxPositionPerSymbol: 1000,
			StopLossPct:          0.05,
			MaxDrawdownPct:       0.20,
		},
	}
}

func genTicks(t *testing.T, mids []float64) []events.Market {
	t.Helper()
	var ticks []events.Market
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, mid := range mids {
		tick, err := events.NewMarket(base.Add(time.Duration(i)*time.Minute), "AAPL", mid, nil, nil, nil, nil)
		if err != nil {
			t.Fatalf("NewMarket: %v", err)
		}
		ticks = append(ticks, tick)
	}
	return ticks
}

func TestDriver_RunProducesSummary(t *testing.T) {
	d, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mids := []float64{100, 100, 100, 101, 102, 99, 98, 97, 103, 105, 90, 85}
	ticks := genTicks(t, mids)

	summary, err := d.Run(context.Background(), ticks, "test-run-id")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.RunName != "test" {
		t.Errorf("RunName = %q, want %q", summary.RunName, "test")
	}
	if summary.InitialCash != 100_000 {
		t.Errorf("InitialCash = %v, want 100000", summary.InitialCash)
	}
	if summary.RunID != "test-run-id" {
		t.Errorf("RunID = %q, want %q", summary.RunID, "test-run-id")
	}
	if summary.Execution != testConfig().Execution {
		t.Errorf("Execution = %+v, want %+v", summary.Execution, testConfig().Execution)
	}
	if summary.Risk != testConfig().Risk {
		t.Errorf("Risk = %+v, want %+v", summary.Risk, testConfig().Risk)
	}
}

func TestDriver_IgnoresUnknownSymbols(t *testing.T) {
	d, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tick, err := events.NewMarket(time.Now(), "TSLA", 200, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	summary, err := d.Run(context.Background(), []events.Market{tick}, "run-2")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.FinalEquity != 100_000 {
		t.Errorf("FinalEquity = %v, want unchanged 100000 (symbol not in config)", summary.FinalEquity)
	}
}

func TestDriver_RunIsDeterministic(t *testing.T) {
	mids := []float64{100, 99, 101, 102, 98, 97, 103, 104, 90}
	run := func() (float64, bool) {
		d, err := New(testConfig(), nil)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		ticks := genTicks(t, mids)
		summary, err := d.Run(context.Background(), ticks, "r")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return summary.FinalEquity, summary.Halted
	}
	eq1, halted1 := run()
	eq2, halted2 := run()
	if eq1 != eq2 || halted1 != halted2 {
		t.Errorf("non-deterministic run: (%v,%v) vs (%v,%v)", eq1, halted1, eq2, halted2)
	}
}

func TestDriver_ContextCancellationStopsRun(t *testing.T) {
	d, err := New(testConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ticks := genTicks(t, []float64{100, 101})
	if _, err := d.Run(ctx, ticks, "r"); err == nil {
		t.Fatalf("expected error from cancelled context")
	}
}
