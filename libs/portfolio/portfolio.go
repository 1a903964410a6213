// Package portfolio tracks a multi-asset cash+position book, marks it to
// market incrementally, and enforces risk controls: per-symbol position
// caps, stop-loss, and a drawdown halt that is a one-way latch on new
// strategy-originated orders.
package portfolio

import (
	"fmt"

	"jax-quant-backtester/libs/events"
)

// Portfolio is the mutable multi-asset book: cash, positions, equity
// history, and the risk state that gates new orders.
type Portfolio struct {
	initialCash float64
	riskCfg     RiskConfig

	cash    float64
	equity  float64
	lastMid map[string]float64
	peak    float64

	positions map[string]*Position

	EquityCurve       []float64
	TotalCommission   float64
	TotalSlippageCost float64
	Risk              RiskState
}

// New constructs a Portfolio with the given initial cash and risk limits.
// initialCash must be > 0 and riskCfg must already be valid.
func New(initialCash float64, riskCfg RiskConfig) (*Portfolio, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("portfolio: initial_cash must be > 0, got %v", initialCash)
	}
	if err := riskCfg.Validate(); err != nil {
		return nil, err
	}
	return &Portfolio{
		initialCash: initialCash,
		riskCfg:     riskCfg,
		cash:        initialCash,
		equity:      initialCash,
		peak:        initialCash,
		lastMid:     make(map[string]float64),
		positions:   make(map[string]*Position),
	}, nil
}

// GetPosition returns the existing Position for symbol, creating a
// zero-position entry if one does not yet exist. The side-effecting access
// is deliberate: Position's zero value is the additive identity.
func (p *Portfolio) GetPosition(symbol string) *Position {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{}
		p.positions[symbol] = pos
	}
	return pos
}

// CanPlaceOrder reports whether placing an order of qty shares on side for
// symbol would keep the resulting absolute position within the configured
// per-symbol cap.
func (p *Portfolio) CanPlaceOrder(symbol string, side events.Side, qty int) bool {
	pos := p.GetPosition(symbol)
	signed := qty
	if side == events.Sell {
		signed = -qty
	}
	proposed := pos.Quantity + signed
	if proposed < 0 {
		proposed = -proposed
	}
	return proposed <= p.riskCfg.MaxPositionPerSymbol
}

// Equity returns the current incrementally-maintained equity value.
func (p *Portfolio) Equity() float64 { return p.equity }

// LastMid returns the last known mid price for symbol and whether it is known.
func (p *Portfolio) LastMid(symbol string) (float64, bool) {
	mid, ok := p.lastMid[symbol]
	return mid, ok
}

// OnFill applies a Fill's cash, commission, slippage, and position effects,
// then updates the incremental equity accumulator (falling back to a full
// recomputation when the symbol's mid is not yet known).
func (p *Portfolio) OnFill(fill events.Fill) {
	pos := p.GetPosition(fill.Symbol)
	oldQty := pos.Quantity

	signedQty := fill.Quantity
	if fill.Side == events.Sell {
		signedQty = -fill.Quantity
	}

	cashDelta := -(fill.FillPrice * float64(signedQty)) - fill.Commission
	p.cash += cashDelta

	p.TotalCommission += fill.Commission
	p.TotalSlippageCost += fill.Slippage * float64(signedQty)

	pos.updateOnFill(fill)

	mid, known := p.lastMid[fill.Symbol]
	if !known {
		p.equity = p.recomputeEquity()
		return
	}
	qtyDelta := pos.Quantity - oldQty
	p.equity += cashDelta + float64(qtyDelta)*mid
}

func (p *Portfolio) recomputeEquity() float64 {
	total := p.cash
	for sym, pos := range p.positions {
		mid, ok := p.lastMid[sym]
		if !ok {
			continue
		}
		total += float64(pos.Quantity) * mid
	}
	return total
}

// MarkToMarket updates the last known mid for symbol, advances the
// incremental equity accumulator, appends to the equity curve, and — once
// peak-to-current drawdown reaches the configured threshold — latches
// trading_halted. Returns the new equity value.
func (p *Portfolio) MarkToMarket(symbol string, mid float64) float64 {
	prevMid, known := p.lastMid[symbol]
	p.lastMid[symbol] = mid

	qty := 0
	if pos, ok := p.positions[symbol]; ok {
		qty = pos.Quantity
	}

	if !known {
		p.equity += float64(qty) * mid
	} else {
		p.equity += float64(qty) * (mid - prevMid)
	}

	equity := p.equity
	p.EquityCurve = append(p.EquityCurve, equity)
	if equity > p.peak {
		p.peak = equity
	}

	if p.peak > 0 {
		dd := (p.peak - equity) / p.peak
		if dd >= p.riskCfg.MaxDrawdownPct && !p.Risk.TradingHalted {
			p.Risk.TradingHalted = true
			p.Risk.HaltReason = fmt.Sprintf("Max drawdown reached: %.2f%%", dd*100)
		}
	}

	return equity
}

// CheckStopLoss returns the liquidating side for symbol if its mid has
// crossed the stop-loss threshold from the position's average cost: SELL
// for a long position whose mid has fallen far enough, BUY for a short
// position whose mid has risen far enough. Returns (side, false) for flat
// positions, unknown mids, or a zero average cost.
func (p *Portfolio) CheckStopLoss(symbol string) (events.Side, bool) {
	pos, ok := p.positions[symbol]
	if !ok || pos.Quantity == 0 {
		return "", false
	}
	mid, known := p.lastMid[symbol]
	if !known || pos.AvgCost == 0 {
		return "", false
	}
	if pos.Quantity > 0 && mid <= pos.AvgCost*(1-p.riskCfg.StopLossPct) {
		return events.Sell, true
	}
	if pos.Quantity < 0 && mid >= pos.AvgCost*(1+p.riskCfg.StopLossPct) {
		return events.Buy, true
	}
	return "", false
}
