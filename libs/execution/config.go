package execution

import "fmt"

// MicrostructureConfig tunes the queueing/fill-probability model applied on
// top of the spread+impact slippage model.
type MicrostructureConfig struct {
	// LatencyEvents is how many market events (for the same symbol) must
	// elapse after submission before an order becomes eligible to fill.
	LatencyEvents int
	// DefaultTickVolume is the available volume assumed for a tick whose
	// Market.Volume is absent.
	DefaultTickVolume float64
	// MaxParticipationRate is the fraction of a tick's available volume
	// that may be consumed by all orders for that symbol in that tick.
	MaxParticipationRate float64
	// QueueAheadFraction models resting liquidity ahead of our LIMIT order.
	QueueAheadFraction float64
	// BaseFillProbability is the fill probability once a LIMIT order's
	// price is touched, before the queue-ahead discount is applied.
	BaseFillProbability float64
}

// Validate enforces that every rate/fraction stays in its meaningful range
// and that latency/volume tunables aren't negative.
func (c MicrostructureConfig) Validate() error {
	if c.LatencyEvents < 0 {
		return fmt.Errorf("execution: latency_events must be >= 0, got %d", c.LatencyEvents)
	}
	if c.DefaultTickVolume <= 0 {
		return fmt.Errorf("execution: default_tick_volume must be > 0, got %v", c.DefaultTickVolume)
	}
	if c.MaxParticipationRate < 0 || c.MaxParticipationRate > 1 {
		return fmt.Errorf("execution: max_participation_rate must be in [0,1], got %v", c.MaxParticipationRate)
	}
	if c.QueueAheadFraction < 0 || c.QueueAheadFraction > 1 {
		return fmt.Errorf("execution: queue_ahead_fraction must be in [0,1], got %v", c.QueueAheadFraction)
	}
	if c.BaseFillProbability < 0 || c.BaseFillProbability > 1 {
		return fmt.Errorf("execution: base_fill_probability must be in [0,1], got %v", c.BaseFillProbability)
	}
	return nil
}

// DefaultMicrostructureConfig returns reasonable out-of-the-box
// microstructure tunables so a config file that omits the `micro` block
// still produces plausible fills.
func DefaultMicrostructureConfig() MicrostructureConfig {
	return MicrostructureConfig{
		LatencyEvents:        1,
		DefaultTickVolume:    5_000,
		MaxParticipationRate: 0.2,
		QueueAheadFraction:   0.7,
		BaseFillProbability:  0.8,
	}
}

// Config holds the execution simulator's configuration.
type Config struct {
	// DefaultSpreadBps is used when a tick has neither bid/ask nor its own
	// spread_bps.
	DefaultSpreadBps float64
	// ImpactBpsPerUnit scales the linear price-impact model.
	ImpactBpsPerUnit float64
	// ImpactVolume is the liquidity scale in the impact model; larger means
	// less impact per unit filled.
	ImpactVolume float64
	// RNGSeed seeds the execution simulator's sole source of randomness.
	RNGSeed int64
	Micro   MicrostructureConfig
}

// Validate enforces that spread/impact/volume tunables are non-negative
// (volume strictly positive, since it's a divisor in the impact model) and
// delegates to Micro.Validate for the microstructure block.
func (c Config) Validate() error {
	if c.DefaultSpreadBps < 0 {
		return fmt.Errorf("execution: default_spread_bps must be >= 0, got %v", c.DefaultSpreadBps)
	}
	if c.ImpactBpsPerUnit < 0 {
		return fmt.Errorf("execution: impact_bps_per_unit must be >= 0, got %v", c.ImpactBpsPerUnit)
	}
	if c.ImpactVolume <= 0 {
		return fmt.Errorf("execution: impact_volume must be > 0, got %v", c.ImpactVolume)
	}
	return c.Micro.Validate()
}

// DefaultConfig returns the execution simulator's out-of-the-box tunables.
func DefaultConfig() Config {
	return Config{
		DefaultSpreadBps: 5,
		ImpactBpsPerUnit: 2,
		ImpactVolume:     10_000,
		RNGSeed:          7,
		Micro:            DefaultMicrostructureConfig(),
	}
}
