package portfolio

import "fmt"

// RiskConfig sets hard risk limits: per-symbol position caps, a stop-loss
// percentage, and a max-drawdown halt threshold.
type RiskConfig struct {
	MaxPositionPerSymbol int
	StopLossPct          float64
	MaxDrawdownPct       float64
}

// Validate enforces that position caps and percentage thresholds are
// sensible (non-negative, percentages in [0,1]).
func (c RiskConfig) Validate() error {
	if c.MaxPositionPerSymbol <= 0 {
		return fmt.Errorf("risk: max_position_per_symbol must be > 0, got %d", c.MaxPositionPerSymbol)
	}
	if c.StopLossPct < 0 || c.StopLossPct > 1 {
		return fmt.Errorf("risk: stop_loss_pct must be in [0,1], got %v", c.StopLossPct)
	}
	if c.MaxDrawdownPct < 0 || c.MaxDrawdownPct > 1 {
		return fmt.Errorf("risk: max_drawdown_pct must be in [0,1], got %v", c.MaxDrawdownPct)
	}
	return nil
}

// DefaultRiskConfig returns conservative defaults suitable for a first run
// against unfamiliar data: a generous position cap, a tight stop-loss, and
// a max drawdown that halts trading well before a strategy blows through
// its cash.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPositionPerSymbol: 1_000,
		StopLossPct:          0.05,
		MaxDrawdownPct:       0.20,
	}
}

// RiskState is a one-way latch: once TradingHalted is set it remains set
// for the rest of the run.
type RiskState struct {
	TradingHalted bool
	HaltReason    string
}
