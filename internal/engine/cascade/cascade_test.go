package cascade

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/integrity"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/model"
)

type constSource float64

func (c constSource) Draw() float64 { return float64(c) }

func TestCollapseDistances(t *testing.T) {
	e := model.SymbolEmpty
	g := model.Grid{
		{1},
		{e},
		{2},
		{e},
		{e},
		{3},
	}
	drops := Collapse(g)

	want := model.Grid{{e}, {e}, {e}, {1}, {2}, {3}}
	if !g.Equal(want) {
		t.Fatalf("grid after collapse = %v", g)
	}
	if len(drops) != 2 {
		t.Fatalf("drops = %+v", drops)
	}
	// снизу вверх: 2 падает через две пустые, 1 через три
	if drops[0].Symbol != 2 || drops[0].Distance != 2 || drops[0].To.Row != 4 {
		t.Fatalf("drop[0] = %+v", drops[0])
	}
	if drops[1].Symbol != 1 || drops[1].Distance != 3 || drops[1].From.Row != 0 || drops[1].To.Row != 3 {
		t.Fatalf("drop[1] = %+v", drops[1])
	}
}

func TestRefillColumnMajorTopDown(t *testing.T) {
	e := model.SymbolEmpty
	g := model.Grid{
		{e, e},
		{e, 4},
		{5, 4},
	}
	spawns, err := Refill(constSource(0), g, rng.Table[model.Symbol]{{Value: 7, Weight: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Full() {
		t.Fatal("grid not full after refill")
	}
	want := []model.Position{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: 1}}
	if len(spawns) != len(want) {
		t.Fatalf("spawns = %+v", spawns)
	}
	for i, s := range spawns {
		if s.Position != want[i] || s.Symbol != 7 || s.Source != model.SpawnSourceRefill {
			t.Fatalf("spawn %d = %+v", i, s)
		}
	}
}

func singlePaytable(size int) cluster.Paytable {
	return cluster.Paytable{
		MinClusterSize: size,
		Tiers:          []cluster.Tier{{Name: "any", Min: size, Factor: decimal.NewFromInt(1)}},
		Base:           map[model.Symbol]decimal.Decimal{0: decimal.NewFromInt(1), 1: decimal.NewFromInt(1)},
		Scatter:        9,
	}
}

func TestRunDepthCap(t *testing.T) {
	g := model.Grid{{0, 0}, {0, 0}}
	cfg := Config{
		Paytable: singlePaytable(2),
		Symbols:  rng.Table[model.Symbol]{{Value: 0, Weight: 1}},
		MaxDepth: 5,
	}
	_, err := Run(constSource(0.5), g, cfg, decimal.NewFromInt(1))
	if !errors.Is(err, ErrCascadeDepthExceeded) {
		t.Fatalf("err = %v, want ErrCascadeDepthExceeded", err)
	}
}

func TestRunSteps(t *testing.T) {
	// нижняя строка из нулей уходит, сверху досыпаются скаттеры
	g := model.Grid{
		{1, 9, 1},
		{9, 1, 9},
		{0, 0, 0},
	}
	cfg := Config{
		Paytable: singlePaytable(3),
		Symbols:  rng.Table[model.Symbol]{{Value: 9, Weight: 1}},
		MaxDepth: 10,
	}
	initial := g.Clone()
	out, err := Run(constSource(0.5), g, cfg, decimal.NewFromInt(2))
	if err != nil {
		t.Fatal(err)
	}
	if !g.Equal(initial) {
		t.Fatal("Run mutated the initial grid")
	}
	if len(out.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(out.Steps))
	}
	step := out.Steps[0]
	if step.Index != 0 || len(step.Removed) != 3 || len(step.Drops) != 6 || len(step.Spawns) != 3 {
		t.Fatalf("unexpected step %+v", step)
	}
	if !step.GridBefore.Equal(initial) {
		t.Fatal("grid before differs from the initial grid")
	}
	if step.GridAfterRemoval[2][0] != model.SymbolEmpty {
		t.Fatal("removed cell still occupied")
	}
	if !step.GridAfter.Full() || !out.Final.Equal(step.GridAfter) {
		t.Fatal("final grid mismatch")
	}
	if step.Hash != integrity.GridHash(step.GridAfter) {
		t.Fatal("step hash does not match grid after")
	}
	if !step.StepWin.Equal(decimal.NewFromInt(2)) || !out.BaseWin.Equal(step.RunningTotal) {
		t.Fatalf("step win %s running %s base %s", step.StepWin, step.RunningTotal, out.BaseWin)
	}
}

func TestRunQuiescent(t *testing.T) {
	g := model.Grid{{0, 1}, {1, 0}}
	cfg := Config{Paytable: singlePaytable(2), Symbols: rng.Table[model.Symbol]{{Value: 0, Weight: 1}}, MaxDepth: 3}
	out, err := Run(constSource(0.5), g, cfg, decimal.NewFromInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Steps) != 0 || !out.BaseWin.IsZero() || !out.Final.Equal(g) {
		t.Fatalf("quiescent grid produced %+v", out)
	}
}
