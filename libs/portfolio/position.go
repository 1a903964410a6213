package portfolio

import (
	"math"

	"jax-quant-backtester/libs/events"
)

// Position is the mutable per-symbol holding. Invariants: quantity == 0
// implies avg_cost == 0; a same-direction addition updates avg_cost as a
// share-weighted mean over |old| and |delta|; a reducing fill leaves
// avg_cost unchanged; a sign-flipping fill sets avg_cost to the fill price
// of the flipped remainder.
type Position struct {
	Quantity int
	AvgCost  float64
}

// updateOnFill applies a Fill to the position per the rules above.
func (p *Position) updateOnFill(fill events.Fill) {
	signedQty := fill.Quantity
	if fill.Side == events.Sell {
		signedQty = -fill.Quantity
	}
	newQty := p.Quantity + signedQty

	if newQty == 0 {
		p.Quantity = 0
		p.AvgCost = 0
		return
	}

	sameDirection := p.Quantity == 0 ||
		(p.Quantity > 0 && signedQty > 0) ||
		(p.Quantity < 0 && signedQty < 0)
	if sameDirection {
		totalCost := p.AvgCost*math.Abs(float64(p.Quantity)) + fill.FillPrice*math.Abs(float64(signedQty))
		p.Quantity = newQty
		p.AvgCost = totalCost / math.Abs(float64(newQty))
		return
	}

	// Reducing without flipping: avg_cost unchanged.
	if (p.Quantity > 0 && newQty > 0) || (p.Quantity < 0 && newQty < 0) {
		p.Quantity = newQty
		return
	}

	// Sign flip: avg_cost resets to the fill price for the new direction.
	p.Quantity = newQty
	p.AvgCost = fill.FillPrice
}
