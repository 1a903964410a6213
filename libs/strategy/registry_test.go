package strategy

import "testing"

func TestDefaultRegistry_BuildsMACrossover(t *testing.T) {
	r := DefaultRegistry()
	s, err := r.Build("ma_crossover", []string{"AAPL"}, 2, 3)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := s.(*MACrossover); !ok {
		t.Fatalf("Build returned %T, want *MACrossover", s)
	}
}

func TestRegistry_BuildUnknownID(t *testing.T) {
	r := DefaultRegistry()
	if _, err := r.Build("no_such_strategy", []string{"AAPL"}, 2, 3); err == nil {
		t.Fatalf("expected error for unknown strategy id")
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := DefaultRegistry()
	err := r.Register("ma_crossover", func(symbols []string, sw, lw int) (Strategy, error) {
		return NewMACrossover(symbols, sw, lw)
	})
	if err == nil {
		t.Fatalf("expected error re-registering an existing id")
	}
}

func TestRegistry_List(t *testing.T) {
	r := DefaultRegistry()
	ids := r.List()
	if len(ids) != 1 || ids[0] != "ma_crossover" {
		t.Fatalf("List() = %v, want [ma_crossover]", ids)
	}
}
