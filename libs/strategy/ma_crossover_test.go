package strategy

import (
	"testing"
	"time"

	"jax-quant-backtester/libs/events"
)

func tick(t *testing.T, symbol string, mid float64, ts time.Time) events.Market {
	t.Helper()
	m, err := events.NewMarket(ts, symbol, mid, nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewMarket: %v", err)
	}
	return m
}

func TestMACrossover_WarmupEmitsNothing(t *testing.T) {
	s, err := NewMACrossover([]string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("NewMACrossover: %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		sig, err := s.OnMarket(tick(t, "AAPL", 100, base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("OnMarket: %v", err)
		}
		if sig != nil {
			t.Fatalf("expected no signal during warm-up, got %+v", sig)
		}
	}
}

func TestMACrossover_UnknownSymbolIgnored(t *testing.T) {
	s, err := NewMACrossover([]string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("NewMACrossover: %v", err)
	}
	sig, err := s.OnMarket(tick(t, "MSFT", 100, time.Now()))
	if err != nil {
		t.Fatalf("OnMarket: %v", err)
	}
	if sig != nil {
		t.Fatalf("expected nil signal for unknown symbol, got %+v", sig)
	}
}

func TestMACrossover_CrossoverEmitsBuyThenSell(t *testing.T) {
	s, err := NewMACrossover([]string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("NewMACrossover: %v", err)
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := []float64{100, 100, 100, 110, 120, 90, 80, 70}
	var signals []*events.Signal
	for i, p := range prices {
		sig, err := s.OnMarket(tick(t, "AAPL", p, base.Add(time.Duration(i)*time.Minute)))
		if err != nil {
			t.Fatalf("OnMarket: %v", err)
		}
		if sig != nil {
			signals = append(signals, sig)
		}
	}
	if len(signals) < 2 {
		t.Fatalf("expected at least 2 signals, got %d: %+v", len(signals), signals)
	}
	if signals[0].Side != events.Buy {
		t.Errorf("expected first signal to be BUY, got %s", signals[0].Side)
	}
	for i := 1; i < len(signals); i++ {
		if signals[i].Side == signals[i-1].Side {
			t.Errorf("two consecutive signals with same side at index %d: %s", i, signals[i].Side)
		}
	}
}

func TestMACrossover_InvalidWindows(t *testing.T) {
	if _, err := NewMACrossover([]string{"AAPL"}, 0, 5); err == nil {
		t.Fatalf("expected error for non-positive short_window")
	}
	if _, err := NewMACrossover([]string{"AAPL"}, 5, 5); err == nil {
		t.Fatalf("expected error for short_window >= long_window")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	ma, err := NewMACrossover([]string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("NewMACrossover: %v", err)
	}
	factory := func(symbols []string, shortWindow, longWindow int) (Strategy, error) {
		return ma, nil
	}
	if err := r.Register("ma_crossover", factory); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("ma_crossover", factory); err == nil {
		t.Fatalf("expected error on duplicate registration")
	}
	got, err := r.Build("ma_crossover", []string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got != Strategy(ma) {
		t.Errorf("Build returned a different strategy instance")
	}
	if _, err := r.Build("missing", []string{"AAPL"}, 2, 3); err == nil {
		t.Fatalf("expected error for missing strategy")
	}
}
