// Package execution simulates order execution microstructure: latency,
// partial fills bounded by a participation rate, LIMIT-order queueing, and a
// spread+impact slippage model. The only source of nondeterminism anywhere
// in the backtest core lives here, as a single seeded *rand.Rand owned
// exclusively by the Engine.
package execution

import (
	"fmt"
	"math"
	"math/rand"

	"jax-quant-backtester/libs/events"
)

// pendingOrder is a queued order awaiting (partial) execution. It is owned
// by its queue cell; Fills are built by copying fields out of it, never by
// aliasing it, so a popped/mutated pendingOrder can never retroactively
// change a Fill already returned to the caller.
type pendingOrder struct {
	order             events.Order
	submittedTick     int
	remaining         int
	commissionCharged bool
}

// Engine is the execution simulator: it owns every symbol's pending-order
// queue and the run's only RNG.
type Engine struct {
	commissionPerTrade float64
	cfg                Config
	rng                *rand.Rand

	tickIndex map[string]int
	queues    map[string][]*pendingOrder
}

// New constructs an execution Engine. cfg must already be valid (see
// Config.Validate); the RNG is seeded once here and never reseeded.
func New(commissionPerTrade float64, cfg Config) (*Engine, error) {
	if commissionPerTrade < 0 {
		return nil, fmt.Errorf("execution: commission_per_trade must be >= 0, got %v", commissionPerTrade)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		commissionPerTrade: commissionPerTrade,
		cfg:                cfg,
		rng:                rand.New(rand.NewSource(cfg.RNGSeed)),
		tickIndex:          make(map[string]int),
		queues:             make(map[string][]*pendingOrder),
	}, nil
}

// Submit appends order to its symbol's FIFO queue. The only validation
// beyond events.NewOrder is implicit: a LIMIT order with no limit_price is
// accepted here and silently dropped the first time the queue is processed
// — a deliberate drop, not an error, since submission order must stay
// deterministic regardless of what individual orders carry.
func (e *Engine) Submit(order events.Order) {
	pending := &pendingOrder{
		order:         order,
		submittedTick: e.tickIndex[order.Symbol], // current tick count for this symbol
		remaining:     order.Quantity,
	}
	e.queues[order.Symbol] = append(e.queues[order.Symbol], pending)
}

// OnMarket advances the symbol's tick counter and processes its FIFO queue,
// returning the Fills produced this tick in the order they were generated.
func (e *Engine) OnMarket(tick events.Market) ([]events.Fill, error) {
	e.tickIndex[tick.Symbol]++
	current := e.tickIndex[tick.Symbol]

	queue := e.queues[tick.Symbol]
	if len(queue) == 0 {
		return nil, nil
	}

	tickVolume := e.cfg.Micro.DefaultTickVolume
	if tick.Volume != nil {
		tickVolume = *tick.Volume
	}
	remainingCapacity := int(math.Floor(tickVolume * e.cfg.Micro.MaxParticipationRate))
	if remainingCapacity < 0 {
		remainingCapacity = 0
	}

	var fills []events.Fill

	// Iterate exactly len(queue) times as captured at the start of this
	// tick — items rotated to the tail are revisited only on a later tick,
	// never re-processed within this one, even though the queue's length
	// changes as entries are popped.
	n := len(queue)
	for i := 0; i < n; i++ {
		if len(queue) == 0 {
			break
		}
		head := queue[0]
		queue = queue[1:]

		if current-head.submittedTick < e.cfg.Micro.LatencyEvents {
			queue = append(queue, head) // rotate to tail; not yet eligible
			continue
		}

		if remainingCapacity == 0 {
			queue = append([]*pendingOrder{head}, queue...) // put back at head, stop
			break
		}

		if head.order.OrderType == events.Limit {
			if head.order.LimitPrice == nil {
				// Invalid LIMIT order: dropped silently rather than erroring,
				// so one malformed order can't halt the whole run.
				continue
			}
			if !limitTouching(head.order, tick) {
				queue = append(queue, head)
				continue
			}
			pFill := e.cfg.Micro.BaseFillProbability * (1 - e.cfg.Micro.QueueAheadFraction)
			if e.rng.Float64() > pFill {
				queue = append(queue, head)
				continue
			}
		}

		fillQty := head.remaining
		if remainingCapacity < fillQty {
			fillQty = remainingCapacity
		}

		commission := 0.0
		if !head.commissionCharged {
			commission = e.commissionPerTrade
			head.commissionCharged = true
		}

		fill, err := e.buildFill(head.order, tick, fillQty, commission)
		if err != nil {
			return nil, err
		}
		fills = append(fills, fill)

		head.remaining -= fillQty
		remainingCapacity -= fillQty

		if head.remaining < 0 {
			panic("execution: pending order remaining went negative")
		}
		if head.remaining == 0 {
			// fully filled, drop from the queue
		} else {
			queue = append(queue, head)
		}
	}

	e.queues[tick.Symbol] = queue
	return fills, nil
}

// limitTouching reports whether a resting LIMIT order's price is satisfied
// by the current tick: a BUY fills if limit >= ask (falling back to mid),
// a SELL fills if limit <= bid (falling back to mid).
func limitTouching(order events.Order, tick events.Market) bool {
	limit := *order.LimitPrice
	if order.Side == events.Buy {
		ref := tick.Mid
		if tick.Ask != nil {
			ref = *tick.Ask
		}
		return limit >= ref
	}
	ref := tick.Mid
	if tick.Bid != nil {
		ref = *tick.Bid
	}
	return limit <= ref
}

func effectiveSpread(cfg Config, tick events.Market) float64 {
	if tick.Bid != nil && tick.Ask != nil && *tick.Ask >= *tick.Bid {
		return *tick.Ask - *tick.Bid
	}
	spreadBps := cfg.DefaultSpreadBps
	if tick.SpreadBps != nil {
		spreadBps = *tick.SpreadBps
	}
	return tick.Mid * (spreadBps / 10_000.0)
}

func (e *Engine) buildFill(order events.Order, tick events.Market, qty int, commission float64) (events.Fill, error) {
	spread := effectiveSpread(e.cfg, tick)
	halfSpread := 0.5 * spread

	impactVolume := e.cfg.ImpactVolume
	if impactVolume < 1 {
		impactVolume = 1
	}
	impactBps := e.cfg.ImpactBpsPerUnit * (float64(qty) / impactVolume)
	impact := tick.Mid * (impactBps / 10_000.0)

	sideSign := float64(order.Side.Sign())
	price := tick.Mid + sideSign*(halfSpread+impact)
	slippage := price - tick.Mid

	if price <= 0 {
		return events.Fill{}, fmt.Errorf("execution: computed fill price must be > 0, got %v", price)
	}

	return events.Fill{
		Timestamp:  tick.Timestamp,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   qty,
		FillPrice:  price,
		Commission: commission,
		Slippage:   slippage,
	}, nil
}
