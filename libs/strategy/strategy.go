// Package strategy holds the Strategy capability set and the concrete
// moving-average crossover strategy. The engine depends only on the
// Strategy interface, never on a concrete type, so new strategies can be
// registered and selected by ID without touching the engine.
package strategy

import "jax-quant-backtester/libs/events"

// Strategy consumes Market ticks and emits at most one Signal per tick.
type Strategy interface {
	OnMarket(tick events.Market) (*events.Signal, error)
}
