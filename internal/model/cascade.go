package model

import "github.com/shopspring/decimal"

// Symbol идентификатор символа на поле
type Symbol int

// SymbolEmpty пустая ячейка, существует только внутри шага каскада
const SymbolEmpty Symbol = -1

// Position координаты ячейки, строка 0: верх
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Grid поле rows x cols, индексация grid[row][col]
type Grid [][]Symbol

// NewGrid пустое поле заданного размера
func NewGrid(rows, cols int) Grid {
	g := make(Grid, rows)
	for r := range g {
		g[r] = make([]Symbol, cols)
		for c := range g[r] {
			g[r][c] = SymbolEmpty
		}
	}
	return g
}

func (g Grid) Rows() int {
	return len(g)
}

func (g Grid) Cols() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// Clone глубокая копия
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for r := range g {
		out[r] = append([]Symbol(nil), g[r]...)
	}
	return out
}

func (g Grid) At(p Position) Symbol {
	return g[p.Row][p.Col]
}

func (g Grid) Set(p Position, s Symbol) {
	g[p.Row][p.Col] = s
}

// Full true, если все ячейки заняты и поле прямоугольное
func (g Grid) Full() bool {
	cols := g.Cols()
	for _, row := range g {
		if len(row) != cols {
			return false
		}
		for _, s := range row {
			if s == SymbolEmpty {
				return false
			}
		}
	}
	return true
}

// Count количество ячеек с символом s
func (g Grid) Count(s Symbol) int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v == s {
				n++
			}
		}
	}
	return n
}

// Equal поячеечное сравнение
func (g Grid) Equal(o Grid) bool {
	if len(g) != len(o) {
		return false
	}
	for r := range g {
		if len(g[r]) != len(o[r]) {
			return false
		}
		for c := range g[r] {
			if g[r][c] != o[r][c] {
				return false
			}
		}
	}
	return true
}

// Cluster связная группа одинаковых символов с посчитанной выплатой
type Cluster struct {
	Symbol    Symbol          `json:"symbol"`
	Positions []Position      `json:"positions"`
	Size      int             `json:"size"`
	Tier      string          `json:"tier"`
	Payout    decimal.Decimal `json:"payout"`
}

// Drop вектор падения символа
type Drop struct {
	Symbol   Symbol   `json:"symbol"`
	From     Position `json:"from"`
	To       Position `json:"to"`
	Distance int      `json:"distance"`
}

// SpawnSourceRefill новый символ пришел из ГСЧ при досыпке
const SpawnSourceRefill = "refill"

// Spawn новый символ, появившийся сверху колонки
type Spawn struct {
	Position Position `json:"position"`
	Symbol   Symbol   `json:"symbol"`
	Source   string   `json:"source"`
}

// CascadeStep один цикл удаление -> падение -> досыпка
type CascadeStep struct {
	Index            int             `json:"index"`
	GridBefore       Grid            `json:"grid_before"`
	Clusters         []Cluster       `json:"clusters"`
	Removed          []Position      `json:"removed"`
	GridAfterRemoval Grid            `json:"grid_after_removal"`
	Drops            []Drop          `json:"drops"`
	Spawns           []Spawn         `json:"spawns"`
	GridAfter        Grid            `json:"grid_after"`
	StepWin          decimal.Decimal `json:"step_win"`
	RunningTotal     decimal.Decimal `json:"running_total"`
	Hash             string          `json:"hash"`
}
