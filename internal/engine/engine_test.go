package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/bonus"
	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/grid"
	"infinity_stones/internal/engine/multiplier"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
)

const scatter model.Symbol = 9

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() Config {
	return Config{
		Grid: grid.Config{
			Rows: 7,
			Cols: 7,
			Symbols: rng.Table[model.Symbol]{
				{Value: 0, Weight: 20},
				{Value: 1, Weight: 20},
				{Value: 2, Weight: 20},
				{Value: 3, Weight: 20},
				{Value: 4, Weight: 20},
				{Value: 5, Weight: 20},
				{Value: scatter, Weight: 3},
			},
		},
		Paytable: cluster.Paytable{
			MinClusterSize: 8,
			Tiers: []cluster.Tier{
				{Name: "8-9", Min: 8, Max: 9, Factor: dec("1")},
				{Name: "10-11", Min: 10, Max: 11, Factor: dec("2")},
				{Name: "12+", Min: 12, Factor: dec("5")},
			},
			Base: map[model.Symbol]decimal.Decimal{
				0: dec("2"), 1: dec("1"), 2: dec("1"), 3: dec("0.5"), 4: dec("0.5"), 5: dec("0.25"),
			},
			Scatter: scatter,
		},
		MaxCascadeDepth: 50,
		Multiplier: multiplier.Config{
			Values: rng.Table[int]{{Value: 2, Weight: 50}, {Value: 3, Weight: 30}, {Value: 5, Weight: 15}, {Value: 10, Weight: 5}},
			Cascade: multiplier.CascadeConfig{
				Enabled: true, MinCascades: 1, MinWinX: decimal.Zero, BaseChance: 1, MaxChance: 1,
			},
			Random: multiplier.RandomConfig{Enabled: true, MinWinX: decimal.Zero, Chance: 1},
		},
		Bonus:     bonus.Config{TriggerThreshold: 4, RetriggerThreshold: 3, InitialSpins: 10, RetriggerSpins: 5},
		MaxWinX:   dec("5000"),
		FirstView: FirstViewConfig{Salt: "first-view", MaxScatterCount: 2, MaxRetries: 200},
	}
}

// denseConfig мелкое поле и маленькие кластеры, выигрыши почти на каждом спине
func denseConfig() Config {
	cfg := testConfig()
	cfg.Grid.Rows, cfg.Grid.Cols = 6, 6
	cfg.Grid.Symbols = rng.Table[model.Symbol]{
		{Value: 0, Weight: 10}, {Value: 1, Weight: 10}, {Value: 2, Weight: 10}, {Value: 3, Weight: 10},
		{Value: scatter, Weight: 2},
	}
	cfg.Paytable.MinClusterSize = 5
	cfg.Paytable.Tiers = []cluster.Tier{
		{Name: "5-7", Min: 5, Max: 7, Factor: dec("0.5")},
		{Name: "8-9", Min: 8, Max: 9, Factor: dec("1")},
		{Name: "10+", Min: 10, Factor: dec("3")},
	}
	cfg.MaxCascadeDepth = 200
	return cfg
}

func seedFor(nonce int) model.Seed {
	return model.Seed{
		ServerSeed:     "server-seed",
		ServerSeedHash: rng.HashSeed("server-seed"),
		ClientSeed:     "session-1",
		Nonce:          int64(nonce),
	}
}

func baseInput(nonce int) Input {
	return Input{
		State:     model.NewSessionState("session-1"),
		Seed:      seedFor(nonce),
		RequestID: fmt.Sprintf("req-%d", nonce),
		Wager:     dec("1"),
	}
}

// seqSource заранее заданные числа, потом fallback
type seqSource struct {
	vals     []float64
	fallback float64
}

func (s *seqSource) Draw() float64 {
	if len(s.vals) == 0 {
		return s.fallback
	}
	v := s.vals[0]
	s.vals = s.vals[1:]
	return v
}

// drawFor число, которое Choice превратит в symbol
func drawFor(table rng.Table[model.Symbol], symbol model.Symbol) float64 {
	total := float64(table.Total())
	acc := 0
	for _, e := range table {
		if e.Value == symbol {
			return (float64(acc) + float64(e.Weight)/2) / total
		}
		acc += e.Weight
	}
	panic("symbol not in table")
}

// backgroundGrid соседние ячейки всегда разные, символы 1..4
func backgroundGrid(rows, cols int) model.Grid {
	g := model.NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g[r][c] = model.Symbol((r+2*c)%4 + 1)
		}
	}
	return g
}

// withTopLeftBlock квадрат 3x3 символа 0 в левом верхнем углу
func withTopLeftBlock(g model.Grid) model.Grid {
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			g[r][c] = 0
		}
	}
	return g
}

// checkerRefill досыпка 3x3 шахматкой из 0 и 5, колонками сверху вниз
func checkerRefill(cfg Config) []float64 {
	var out []float64
	for c := 0; c < 3; c++ {
		for r := 0; r < 3; r++ {
			sym := model.Symbol(0)
			if (r+c)%2 == 1 {
				sym = 5
			}
			out = append(out, drawFor(cfg.Grid.Symbols, sym))
		}
	}
	return out
}

func TestNineCellClusterScenario(t *testing.T) {
	cfg := testConfig()
	cfg.Multiplier.Cascade.Enabled = false
	cfg.Multiplier.Random.Enabled = false

	initial := withTopLeftBlock(backgroundGrid(7, 7))
	src := &seqSource{vals: checkerRefill(cfg), fallback: 0.5}

	res, after, err := compute(context.Background(), cfg, baseInput(1), src, initial)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(res.Steps))
	}
	step := res.Steps[0]
	if len(step.Clusters) != 1 || step.Clusters[0].Size != 9 || step.Clusters[0].Tier != "8-9" {
		t.Fatalf("clusters = %+v", step.Clusters)
	}
	// tier 8-9 factor 1 * base 2 * wager 1
	if !step.StepWin.Equal(dec("2")) || !res.TotalWin.Equal(dec("2")) {
		t.Fatalf("step win %s total %s", step.StepWin, res.TotalWin)
	}
	if !step.GridAfter.Full() {
		t.Fatal("grid after refill is not full")
	}
	if len(step.Spawns) != 9 || len(step.Drops) != 0 {
		t.Fatalf("spawns %d drops %d", len(step.Spawns), len(step.Drops))
	}
	if after.Mode != model.ModeBase || after.Version != 1 || after.LastSpinID != "req-1" {
		t.Fatalf("state after = %+v", after)
	}
}

func TestFourScatterTriggerScenario(t *testing.T) {
	cfg := testConfig()

	build := func(scatters int) model.Grid {
		g := withTopLeftBlock(backgroundGrid(7, 7))
		cells := []model.Position{{Row: 6, Col: 6}, {Row: 6, Col: 4}, {Row: 4, Col: 6}, {Row: 5, Col: 5}}
		for _, p := range cells[:scatters] {
			g.Set(p, scatter)
		}
		return g
	}

	src := &seqSource{vals: checkerRefill(cfg), fallback: 0.5}
	res, after, err := compute(context.Background(), cfg, baseInput(2), src, build(4))
	if err != nil {
		t.Fatal(err)
	}
	if !res.BonusTriggered || res.ModeAfter != model.ModeBonus || after.Mode != model.ModeBonus {
		t.Fatalf("bonus not triggered: %+v", res)
	}
	if res.AwardedSpins != cfg.Bonus.InitialSpins || after.BonusSpinsRemaining != cfg.Bonus.InitialSpins {
		t.Fatalf("awarded %d remaining %d", res.AwardedSpins, after.BonusSpinsRemaining)
	}
	if len(res.Multipliers) != 0 {
		t.Fatalf("multipliers on trigger spin: %+v", res.Multipliers)
	}
	if res.InitialScatterCount != 4 || res.ScatterCount != 4 {
		t.Fatalf("scatters initial %d total %d", res.InitialScatterCount, res.ScatterCount)
	}
	if after.CarriedMultiplier != 1 || !after.BonusWager.Equal(dec("1")) {
		t.Fatalf("state after trigger = %+v", after)
	}
	if !slices.Equal(res.BonusPath, []string{bonus.StateInactive, bonus.StateTriggered, bonus.StateActive}) {
		t.Fatalf("path = %v", res.BonusPath)
	}

	// тот же спин без триггера получает оба множителя
	src = &seqSource{vals: checkerRefill(cfg), fallback: 0.5}
	res, _, err = compute(context.Background(), cfg, baseInput(2), src, build(3))
	if err != nil {
		t.Fatal(err)
	}
	if res.BonusTriggered || len(res.Multipliers) != 2 {
		t.Fatalf("control spin: triggered=%v multipliers=%+v", res.BonusTriggered, res.Multipliers)
	}
}

func TestRetriggerMultiplierSuppression(t *testing.T) {
	initial := withTopLeftBlock(backgroundGrid(7, 7))
	for _, p := range []model.Position{{Row: 6, Col: 6}, {Row: 6, Col: 4}, {Row: 4, Col: 6}} {
		initial.Set(p, scatter)
	}

	spin := func(suppress bool) (model.CascadeSpinResult, model.SessionState) {
		t.Helper()
		cfg := testConfig()
		cfg.Multiplier.SuppressOnRetrigger = suppress

		state := model.NewSessionState("session-1")
		state.Mode = model.ModeBonus
		state.BonusSpinsRemaining = 5
		state.CarriedMultiplier = 1
		state.BonusWager = dec("1")
		in := baseInput(4)
		in.State = state

		src := &seqSource{vals: checkerRefill(cfg), fallback: 0.5}
		res, after, err := compute(context.Background(), cfg, in, src, initial.Clone())
		if err != nil {
			t.Fatal(err)
		}
		if !res.BonusRetriggered || res.BonusTriggered {
			t.Fatalf("suppress=%v: retriggered=%v triggered=%v", suppress, res.BonusRetriggered, res.BonusTriggered)
		}
		if res.AwardedSpins != cfg.Bonus.RetriggerSpins || after.BonusSpinsRemaining != 4+cfg.Bonus.RetriggerSpins {
			t.Fatalf("suppress=%v: awarded %d remaining %d", suppress, res.AwardedSpins, after.BonusSpinsRemaining)
		}
		if !res.BaseWin.IsPositive() {
			t.Fatalf("suppress=%v: retrigger spin has no win", suppress)
		}
		return res, after
	}

	res, after := spin(false)
	if len(res.Multipliers) != 2 {
		t.Fatalf("multipliers on retrigger = %+v, want 2", res.Multipliers)
	}
	for _, ev := range res.Multipliers {
		if ev.AppliedToCurrentSpin {
			t.Fatalf("bonus multiplier applied to current spin: %+v", ev)
		}
	}
	if after.CarriedMultiplier != 1+multiplier.Sum(res.Multipliers) {
		t.Fatalf("carried %d, want %d", after.CarriedMultiplier, 1+multiplier.Sum(res.Multipliers))
	}

	res, after = spin(true)
	if len(res.Multipliers) != 0 {
		t.Fatalf("suppressed retrigger produced multipliers: %+v", res.Multipliers)
	}
	if after.CarriedMultiplier != 1 || after.Mode != model.ModeBonus {
		t.Fatalf("state after suppressed retrigger %+v", after)
	}
}

func TestBonusExhaustionScenario(t *testing.T) {
	cfg := testConfig()
	state := model.NewSessionState("session-1")
	state.Mode = model.ModeBonus
	state.BonusSpinsRemaining = 1
	state.CarriedMultiplier = 7
	state.BonusWager = dec("1")
	state.Version = 12

	in := baseInput(3)
	in.State = state
	res, after, err := compute(context.Background(), cfg, in, &seqSource{fallback: 0.5}, backgroundGrid(7, 7))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.BonusPath, []string{bonus.StateActive, bonus.StateExhausted, bonus.StateInactive}) {
		t.Fatalf("path = %v", res.BonusPath)
	}
	if after.Mode != model.ModeBase || after.BonusSpinsRemaining != 0 || after.CarriedMultiplier != 1 {
		t.Fatalf("state after = %+v", after)
	}
	if !after.BonusWager.IsZero() || after.Version != 13 {
		t.Fatalf("state after = %+v", after)
	}
	if res.AppliedMultiplier != 7 || res.CarriedMultiplier != 1 {
		t.Fatalf("applied %d carried %d", res.AppliedMultiplier, res.CarriedMultiplier)
	}
}

func TestComputeDeterministic(t *testing.T) {
	cfg := denseConfig()
	for i := 0; i < 20; i++ {
		a, sa, err := Compute(context.Background(), cfg, baseInput(i))
		if err != nil {
			t.Fatal(err)
		}
		b, sb, err := Compute(context.Background(), cfg, baseInput(i))
		if err != nil {
			t.Fatal(err)
		}
		if err := Seal(&a, dec("100")); err != nil {
			t.Fatal(err)
		}
		if err := Seal(&b, dec("100")); err != nil {
			t.Fatal(err)
		}
		ja, _ := json.Marshal(a)
		jb, _ := json.Marshal(b)
		if string(ja) != string(jb) || a.Checksum != b.Checksum {
			t.Fatalf("nonce %d: results differ", i)
		}
		if sa.Version != sb.Version || sa.CarriedMultiplier != sb.CarriedMultiplier || sa.Mode != sb.Mode {
			t.Fatalf("nonce %d: states differ", i)
		}
	}
}

func TestWinSumIdentity(t *testing.T) {
	cfg := denseConfig()
	wins := 0
	for i := 0; i < 300; i++ {
		res, _, err := Compute(context.Background(), cfg, baseInput(i))
		if err != nil {
			t.Fatalf("nonce %d: %v", i, err)
		}
		sum := decimal.Zero
		for _, s := range res.Steps {
			sum = sum.Add(s.StepWin)
			if !s.RunningTotal.Equal(sum) {
				t.Fatalf("nonce %d step %d: running total %s, want %s", i, s.Index, s.RunningTotal, sum)
			}
		}
		if !sum.Equal(res.BaseWin) {
			t.Fatalf("nonce %d: base win %s, sum %s", i, res.BaseWin, sum)
		}
		want := sum.Mul(decimal.NewFromInt(int64(res.AppliedMultiplier)))
		if res.WinCapped {
			continue
		}
		if !res.TotalWin.Equal(want) {
			t.Fatalf("nonce %d: total %s, want %s", i, res.TotalWin, want)
		}
		if res.TotalWin.IsPositive() {
			wins++
		}
	}
	if wins == 0 {
		t.Fatal("no winning spins, identity not exercised")
	}
}

func TestMultipliersAreAdditive(t *testing.T) {
	cfg := denseConfig()
	for i := 0; i < 300; i++ {
		res, _, err := Compute(context.Background(), cfg, baseInput(i))
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Multipliers) < 2 {
			continue
		}
		sum, product := 0, 1
		for _, ev := range res.Multipliers {
			sum += ev.Value
			product *= ev.Value
		}
		if res.AppliedMultiplier != sum {
			t.Fatalf("applied %d, sum %d, product %d", res.AppliedMultiplier, sum, product)
		}
		if !res.WinCapped && !res.TotalWin.Equal(res.BaseWin.Mul(decimal.NewFromInt(int64(sum)))) {
			t.Fatalf("total %s base %s sum %d", res.TotalWin, res.BaseWin, sum)
		}
		return
	}
	t.Fatal("no spin produced two multipliers")
}

func TestBonusCarryOver(t *testing.T) {
	cfg := denseConfig()
	// ретриггер недостижим, чтобы спин оставался обычным бонусным
	cfg.Bonus.RetriggerThreshold = 1000

	for i := 0; i < 300; i++ {
		state := model.NewSessionState("session-1")
		state.Mode = model.ModeBonus
		state.BonusSpinsRemaining = 5
		state.CarriedMultiplier = 3
		state.BonusWager = dec("1")
		in := baseInput(i)
		in.State = state
		in.Wager = dec("50")

		res, after, err := Compute(context.Background(), cfg, in)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Wager.Equal(dec("1")) {
			t.Fatalf("bonus spin played wager %s", res.Wager)
		}
		if res.AppliedMultiplier != 3 {
			t.Fatalf("applied %d, want carried 3", res.AppliedMultiplier)
		}
		rolled := multiplier.Sum(res.Multipliers)
		if after.CarriedMultiplier != 3+rolled {
			t.Fatalf("carried after %d, want %d", after.CarriedMultiplier, 3+rolled)
		}
		if rolled == 0 {
			continue
		}
		if !res.WinCapped && !res.TotalWin.Equal(res.BaseWin.Mul(dec("3"))) {
			t.Fatalf("rolled multiplier changed the current win: %s", res.TotalWin)
		}
		for _, ev := range res.Multipliers {
			if ev.AppliedToCurrentSpin {
				t.Fatalf("bonus multiplier applied to current spin: %+v", ev)
			}
		}
		if after.CarriedMultiplier <= 3 {
			t.Fatal("carried multiplier did not grow")
		}
		return
	}
	t.Fatal("no bonus spin rolled a multiplier")
}

func TestGridsFullAndClustersValid(t *testing.T) {
	cfg := denseConfig()
	for i := 0; i < 200; i++ {
		res, _, err := Compute(context.Background(), cfg, baseInput(i))
		if err != nil {
			t.Fatal(err)
		}
		if !res.InitialGrid.Full() {
			t.Fatalf("nonce %d: initial grid not full", i)
		}
		for _, s := range res.Steps {
			if !s.GridBefore.Full() || !s.GridAfter.Full() {
				t.Fatalf("nonce %d step %d: grid at rest not full", i, s.Index)
			}
			for _, cl := range s.Clusters {
				if cl.Size < cfg.Paytable.MinClusterSize || len(cl.Positions) != cl.Size {
					t.Fatalf("nonce %d: cluster size %d", i, cl.Size)
				}
				if !connected(cl.Positions) {
					t.Fatalf("nonce %d: cluster spans disconnected regions", i)
				}
				for _, p := range cl.Positions {
					if s.GridBefore.At(p) != cl.Symbol || s.GridAfterRemoval.At(p) != model.SymbolEmpty {
						t.Fatalf("nonce %d: cluster cell %+v mismatch", i, p)
					}
				}
			}
		}
	}
}

func connected(ps []model.Position) bool {
	set := make(map[model.Position]bool, len(ps))
	for _, p := range ps {
		set[p] = true
	}
	seen := map[model.Position]bool{ps[0]: true}
	queue := []model.Position{ps[0]}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range []model.Position{
			{Row: cur.Row - 1, Col: cur.Col}, {Row: cur.Row + 1, Col: cur.Col},
			{Row: cur.Row, Col: cur.Col - 1}, {Row: cur.Row, Col: cur.Col + 1},
		} {
			if set[n] && !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return len(seen) == len(ps)
}

func TestWinCap(t *testing.T) {
	cfg := testConfig()
	cfg.Multiplier.Cascade.Enabled = false
	cfg.Multiplier.Random.Enabled = false
	cfg.MaxWinX = dec("1.5")

	src := &seqSource{vals: checkerRefill(cfg), fallback: 0.5}
	res, _, err := compute(context.Background(), cfg, baseInput(4), src, withTopLeftBlock(backgroundGrid(7, 7)))
	if err != nil {
		t.Fatal(err)
	}
	if !res.WinCapped || !res.TotalWin.Equal(dec("1.5")) || !res.BaseWin.Equal(dec("2")) {
		t.Fatalf("capped=%v total %s base %s", res.WinCapped, res.TotalWin, res.BaseWin)
	}
}

func TestComputeRejectsWager(t *testing.T) {
	cfg := testConfig()
	for _, w := range []string{"0", "-1", "0.001"} {
		in := baseInput(1)
		in.Wager = dec(w)
		_, _, err := Compute(context.Background(), cfg, in)
		if !errors.Is(err, errs.ErrInvalidWager) {
			t.Errorf("wager %s: err = %v", w, err)
		}
	}
}

func TestVerify(t *testing.T) {
	cfg := denseConfig()
	in := baseInput(9)
	res, _, err := Compute(context.Background(), cfg, in)
	if err != nil {
		t.Fatal(err)
	}
	if err := Seal(&res, dec("42.5")); err != nil {
		t.Fatal(err)
	}
	if err := Verify(context.Background(), cfg, in.State, res); err != nil {
		t.Fatalf("verify: %v", err)
	}

	tampered := res
	tampered.TotalWin = res.TotalWin.Add(dec("100"))
	if err := Verify(context.Background(), cfg, in.State, tampered); !errors.Is(err, ErrVerifyMismatch) {
		t.Fatalf("tampered win: err = %v, want ErrVerifyMismatch", err)
	}

	// запись пересчитана вместе с контрольной суммой, но не совпадает с игрой
	resealed := tampered
	if err := Seal(&resealed, res.Balance); err != nil {
		t.Fatal(err)
	}
	if err := Verify(context.Background(), cfg, in.State, resealed); !errors.Is(err, ErrVerifyMismatch) {
		t.Fatalf("resealed: err = %v, want ErrVerifyMismatch", err)
	}

	badSeed := res
	badSeed.Seed.ServerSeed = "other"
	if err := Verify(context.Background(), cfg, in.State, badSeed); !errors.Is(err, ErrVerifyMismatch) {
		t.Fatalf("err = %v, want ErrVerifyMismatch", err)
	}
}

func TestFirstView(t *testing.T) {
	cfg := testConfig()
	a, err := FirstView(cfg, "session-a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := FirstView(cfg, "session-a")
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatal("first view is not deterministic")
	}
	if !a.Full() || a.Count(scatter) > cfg.FirstView.MaxScatterCount {
		t.Fatalf("first view violates constraints: %v", a)
	}
	if got := cluster.Detect(a, cfg.Paytable, dec("1")); len(got) != 0 {
		t.Fatalf("first view has winning clusters: %+v", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("valid config: %v", err)
	}

	cfg := testConfig()
	cfg.Grid.Symbols = rng.Table[model.Symbol]{{Value: 0, Weight: 0}}
	err := cfg.Validate()
	if !errors.Is(err, rng.ErrInvalidTable) || !errs.IsFatal(err) {
		t.Fatalf("zero-sum table: err = %v", err)
	}

	cfg = testConfig()
	delete(cfg.Paytable.Base, 5)
	if err := cfg.Validate(); err == nil {
		t.Fatal("symbol without base payout accepted")
	}
}
