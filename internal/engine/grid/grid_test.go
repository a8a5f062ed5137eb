package grid

import (
	"errors"
	"testing"

	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/model"
)

const scatter model.Symbol = 9

func testConfig() Config {
	return Config{
		Rows: 7,
		Cols: 7,
		Symbols: rng.Table[model.Symbol]{
			{Value: 0, Weight: 10},
			{Value: 1, Weight: 10},
			{Value: 2, Weight: 10},
			{Value: 3, Weight: 10},
			{Value: scatter, Weight: 4},
		},
	}
}

func seed(client string) model.Seed {
	return model.Seed{ServerSeed: "grid-test", ClientSeed: client}
}

func TestGenerateFullAndDeterministic(t *testing.T) {
	cfg := testConfig()
	a, err := Generate(rng.New(seed("s")), cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(rng.New(seed("s")), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Full() || a.Rows() != 7 || a.Cols() != 7 {
		t.Fatalf("grid is not a full 7x7: %v", a)
	}
	if !a.Equal(b) {
		t.Fatal("same seed produced different grids")
	}
}

func TestGenerateInvalidTable(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = rng.Table[model.Symbol]{{Value: 0, Weight: 0}}
	if _, err := Generate(rng.New(seed("s")), cfg); !errors.Is(err, rng.ErrInvalidTable) {
		t.Fatalf("err = %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("zero-sum table passed validation")
	}
}

func TestGenerateConstrained(t *testing.T) {
	cfg := testConfig()
	cons := Constraints{
		ForceNonWinning: true,
		MaxScatterCount: 2,
		MaxRetries:      200,
		MinClusterSize:  5,
		Scatter:         scatter,
	}
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		g, err := GenerateConstrained(rng.New(seed(id)), cfg, cons)
		if err != nil {
			t.Fatalf("session %s: %v", id, err)
		}
		if !g.Full() {
			t.Fatalf("session %s: grid not full", id)
		}
		if n := g.Count(scatter); n > cons.MaxScatterCount {
			t.Fatalf("session %s: %d scatters", id, n)
		}
		if groups := cluster.Groups(g, cons.MinClusterSize, scatter); len(groups) != 0 {
			t.Fatalf("session %s: winning group survived: %v", id, groups)
		}
	}
}

func TestGenerateConstrainedRetriesExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.Symbols = rng.Table[model.Symbol]{{Value: 0, Weight: 1}}
	cons := Constraints{ForceNonWinning: true, MaxScatterCount: 0, MaxRetries: 3, MinClusterSize: 5, Scatter: scatter}
	_, err := GenerateConstrained(rng.New(seed("x")), cfg, cons)
	if !errors.Is(err, ErrRetriesExceeded) {
		t.Fatalf("err = %v, want ErrRetriesExceeded", err)
	}
}
