// Package config defines the backtester's configuration value objects and
// loads them from an optional JSON/YAML file via viper, with CLI flags
// taking precedence over the file and the file taking precedence over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"jax-quant-backtester/libs/execution"
	"jax-quant-backtester/libs/portfolio"
)

// BacktestConfig is the fully-resolved, validated configuration for a
// single backtest run.
type BacktestConfig struct {
	Symbols            []string `mapstructure:"symbols"`
	InitialCash        float64  `mapstructure:"initial_cash"`
	TradeQuantity      int      `mapstructure:"trade_quantity"`
	CommissionPerTrade float64  `mapstructure:"commission_per_trade"`
	ShortWindow        int      `mapstructure:"short_window"`
	LongWindow         int      `mapstructure:"long_window"`
	CSVPath            string   `mapstructure:"csv_path"`
	RunName            string   `mapstructure:"run_name"`
	OutDir             string   `mapstructure:"out_dir"`
	DatabaseURL        string   `mapstructure:"database_url"`
	StrategyID         string   `mapstructure:"strategy_id"`

	Execution execution.Config     `mapstructure:"-"`
	Risk      portfolio.RiskConfig `mapstructure:"-"`
}

// Validate enforces the invariants a resolved config must satisfy before a
// run starts: non-empty identifiers, positive cash/quantity/windows, and a
// short window strictly less than the long window.
func (c BacktestConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("config: symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("config: symbols must not contain empty values")
		}
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("config: initial_cash must be > 0, got %v", c.InitialCash)
	}
	if c.TradeQuantity <= 0 {
		return fmt.Errorf("config: trade_quantity must be > 0, got %d", c.TradeQuantity)
	}
	if c.CommissionPerTrade < 0 {
		return fmt.Errorf("config: commission_per_trade must be >= 0, got %v", c.CommissionPerTrade)
	}
	if c.ShortWindow <= 0 {
		return fmt.Errorf("config: short_window must be > 0, got %d", c.ShortWindow)
	}
	if c.LongWindow <= 0 {
		return fmt.Errorf("config: long_window must be > 0, got %d", c.LongWindow)
	}
	if c.ShortWindow >= c.LongWindow {
		return fmt.Errorf("config: short_window must be < long_window, got %d and %d", c.ShortWindow, c.LongWindow)
	}
	if strings.TrimSpace(c.CSVPath) == "" {
		return fmt.Errorf("config: csv_path must not be empty")
	}
	if strings.TrimSpace(c.RunName) == "" {
		return fmt.Errorf("config: run_name must not be empty")
	}
	if strings.TrimSpace(c.OutDir) == "" {
		return fmt.Errorf("config: out_dir must not be empty")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("config: database_url must not be empty")
	}
	if strings.TrimSpace(c.StrategyID) == "" {
		return fmt.Errorf("config: strategy_id must not be empty")
	}
	if err := c.Execution.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	return nil
}

// FileConfig is the raw shape of a config file, read via viper before the
// CLI layer applies its CLI-flag/file/default precedence on top.
type FileConfig struct {
	Symbols            []string `mapstructure:"symbols"`
	InitialCash        *float64 `mapstructure:"initial_cash"`
	TradeQuantity      *int     `mapstructure:"trade_quantity"`
	CommissionPerTrade *float64 `mapstructure:"commission_per_trade"`
	ShortWindow        *int     `mapstructure:"short_window"`
	LongWindow         *int     `mapstructure:"long_window"`
	CSVPath            *string  `mapstructure:"csv_path"`
	RunName            *string  `mapstructure:"run_name"`
	OutDir             *string  `mapstructure:"out_dir"`
	DatabaseURL        *string  `mapstructure:"database_url"`
	StrategyID         *string  `mapstructure:"strategy_id"`
	ShortGrid          *string  `mapstructure:"short_grid"`
	LongGrid           *string  `mapstructure:"long_grid"`

	Execution struct {
		DefaultSpreadBps *float64 `mapstructure:"default_spread_bps"`
		ImpactBpsPerUnit *float64 `mapstructure:"impact_bps_per_unit"`
		ImpactVolume     *float64 `mapstructure:"impact_volume"`
		RNGSeed          *int64   `mapstructure:"rng_seed"`
		Micro            struct {
			LatencyEvents        *int     `mapstructure:"latency_events"`
			DefaultTickVolume    *float64 `mapstructure:"default_tick_volume"`
			MaxParticipationRate *float64 `mapstructure:"max_participation_rate"`
			QueueAheadFraction   *float64 `mapstructure:"queue_ahead_fraction"`
			BaseFillProbability  *float64 `mapstructure:"base_fill_probability"`
		} `mapstructure:"micro"`
	} `mapstructure:"execution"`

	Risk struct {
		MaxPositionPerSymbol *int     `mapstructure:"max_position_per_symbol"`
		StopLossPct          *float64 `mapstructure:"stop_loss_pct"`
		MaxDrawdownPct       *float64 `mapstructure:"max_drawdown_pct"`
	} `mapstructure:"risk"`
}

// LoadFile reads a JSON or YAML config file into a FileConfig, then applies
// BACKTEST_-prefixed environment overrides on top for a fixed set of fields
// (database_url, csv_path, run_name, out_dir, strategy_id, symbols), read
// directly from the environment. An empty path skips the file read but still applies env overrides, so a
// config can be driven entirely by environment variables in a container.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	v := viper.New()
	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fc, fmt.Errorf("config: read config file: %w", err)
		}
		if err := v.Unmarshal(&fc); err != nil {
			return fc, fmt.Errorf("config: unmarshal config file: %w", err)
		}
	}

	// AutomaticEnv only affects v.Get, not Unmarshal, so the handful of
	// fields an operator is likely to override via environment in a
	// container (rather than editing a mounted config file) are applied
	// explicitly here, same as the config file's own fields.
	if val := os.Getenv("BACKTEST_DATABASE_URL"); val != "" {
		fc.DatabaseURL = &val
	}
	if val := os.Getenv("BACKTEST_CSV_PATH"); val != "" {
		fc.CSVPath = &val
	}
	if val := os.Getenv("BACKTEST_RUN_NAME"); val != "" {
		fc.RunName = &val
	}
	if val := os.Getenv("BACKTEST_OUT_DIR"); val != "" {
		fc.OutDir = &val
	}
	if val := os.Getenv("BACKTEST_STRATEGY_ID"); val != "" {
		fc.StrategyID = &val
	}
	if val := os.Getenv("BACKTEST_SYMBOLS"); val != "" {
		fc.Symbols = strings.Split(val, ",")
	}

	return fc, nil
}
