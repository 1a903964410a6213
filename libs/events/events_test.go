package events

import (
	"testing"
	"time"
)

func f(v float64) *float64 { return &v }

func TestNewMarket(t *testing.T) {
	ts := time.Now()
	cases := []struct {
		name    string
		symbol  string
		mid     float64
		bid     *float64
		ask     *float64
		spread  *float64
		volume  *float64
		wantErr bool
	}{
		{"valid minimal", "AAPL", 100, nil, nil, nil, nil, false},
		{"valid full", "AAPL", 100, f(99.5), f(100.5), f(5), f(1000), false},
		{"empty symbol", "", 100, nil, nil, nil, nil, true},
		{"non-positive mid", "AAPL", 0, nil, nil, nil, nil, true},
		{"nan mid", "AAPL", nan(), nil, nil, nil, nil, true},
		{"ask below bid", "AAPL", 100, f(100), f(99), nil, nil, true},
		{"negative spread", "AAPL", 100, nil, nil, f(-1), nil, true},
		{"negative volume", "AAPL", 100, nil, nil, nil, f(-1), true},
		{"non-positive bid", "AAPL", 100, f(0), nil, nil, nil, true},
		{"non-positive ask", "AAPL", 100, nil, f(0), nil, nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewMarket(ts, tc.symbol, tc.mid, tc.bid, tc.ask, tc.spread, tc.volume)
			if (err != nil) != tc.wantErr {
				t.Fatalf("got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}

func TestSideSign(t *testing.T) {
	if Buy.Sign() != 1 {
		t.Errorf("Buy.Sign() = %d, want 1", Buy.Sign())
	}
	if Sell.Sign() != -1 {
		t.Errorf("Sell.Sign() = %d, want -1", Sell.Sign())
	}
}

func TestNewOrder(t *testing.T) {
	ts := time.Now()
	if _, err := NewOrder(ts, "AAPL", Buy, 100, Market, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewOrder(ts, "AAPL", Buy, 100, Market, f(10)); err == nil {
		t.Fatalf("expected error for MARKET order with limit_price")
	}
	if _, err := NewOrder(ts, "AAPL", Buy, 100, Limit, nil); err == nil {
		t.Fatalf("expected error for LIMIT order without limit_price")
	}
	if _, err := NewOrder(ts, "AAPL", Buy, 0, Market, nil); err == nil {
		t.Fatalf("expected error for non-positive quantity")
	}
	if _, err := NewOrder(ts, "AAPL", "HOLD", 1, Market, nil); err == nil {
		t.Fatalf("expected error for invalid side")
	}
}
