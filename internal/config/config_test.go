package config

import (
	"testing"

	"jax-quant-backtester/libs/execution"
	"jax-quant-backtester/libs/portfolio"
)

func validConfig() BacktestConfig {
	return BacktestConfig{
		Symbols:            []string{"AAPL"},
		InitialCash:        100_000,
		TradeQuantity:      100,
		CommissionPerTrade: 1.0,
		ShortWindow:        20,
		LongWindow:         50,
		CSVPath:            "data/sample_prices.csv",
		RunName:            "default",
		OutDir:             "runs",
		DatabaseURL:        "postgres://localhost/backtester",
		StrategyID:         "ma_crossover",
		Execution:          execution.DefaultConfig(),
		Risk:               portfolio.DefaultRiskConfig(),
	}
}

func TestBacktestConfig_ValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestBacktestConfig_ValidateShortGELong(t *testing.T) {
	c := validConfig()
	c.ShortWindow = 50
	c.LongWindow = 50
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for short_window >= long_window")
	}
}

func TestBacktestConfig_ValidateEmptySymbols(t *testing.T) {
	c := validConfig()
	c.Symbols = nil
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for empty symbols")
	}
}

func TestBacktestConfig_ValidateBlankSymbol(t *testing.T) {
	c := validConfig()
	c.Symbols = []string{"AAPL", "  "}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for blank symbol")
	}
}

func TestBacktestConfig_ValidateEmptyStrategyID(t *testing.T) {
	c := validConfig()
	c.StrategyID = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for empty strategy_id")
	}
}

func TestPick(t *testing.T) {
	def := 10
	fileVal := 20
	cliVal := 30

	if got := Pick[int](nil, nil, def); got != def {
		t.Errorf("Pick with no overrides = %d, want %d", got, def)
	}
	if got := Pick[int](nil, &fileVal, def); got != fileVal {
		t.Errorf("Pick with file override = %d, want %d", got, fileVal)
	}
	if got := Pick[int](&cliVal, &fileVal, def); got != cliVal {
		t.Errorf("Pick with cli override = %d, want %d", got, cliVal)
	}
}

func TestLoadFileEmptyPath(t *testing.T) {
	fc, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") = %v, want nil error", err)
	}
	if fc.CSVPath != nil {
		t.Errorf("expected zero-value FileConfig for empty path")
	}
}

func TestLoadFile_EnvOverridesApplyWithoutConfigFile(t *testing.T) {
	t.Setenv("BACKTEST_DATABASE_URL", "postgres://env-host/backtester")
	t.Setenv("BACKTEST_STRATEGY_ID", "env_strategy")
	t.Setenv("BACKTEST_SYMBOLS", "aapl,msft")

	fc, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile(\"\") = %v, want nil error", err)
	}
	if fc.DatabaseURL == nil || *fc.DatabaseURL != "postgres://env-host/backtester" {
		t.Errorf("expected BACKTEST_DATABASE_URL to populate DatabaseURL, got %v", fc.DatabaseURL)
	}
	if fc.StrategyID == nil || *fc.StrategyID != "env_strategy" {
		t.Errorf("expected BACKTEST_STRATEGY_ID to populate StrategyID, got %v", fc.StrategyID)
	}
	if len(fc.Symbols) != 2 || fc.Symbols[0] != "aapl" || fc.Symbols[1] != "msft" {
		t.Errorf("expected BACKTEST_SYMBOLS to populate Symbols, got %v", fc.Symbols)
	}
}
