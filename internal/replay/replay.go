// Package replay эталонный потребитель результата спина на стороне клиента.
//
// Шаги применяются строго по порядку, после каждого шага локальное поле
// сверяется с хэшем сервера. При расхождении поле жестко перезаписывается
// серверным GridAfter. Итоговый выигрыш доступен только после последнего шага.
package replay

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/integrity"
	"infinity_stones/internal/model"
)

var (
	// ErrOutOfOrder шаг пришел не по порядку
	ErrOutOfOrder = errors.New("cascade step out of order")
	// ErrNotFinished итог запрошен до применения всех шагов
	ErrNotFinished = errors.New("replay not finished")
)

// Desync расхождение локального поля с сервером на шаге
type Desync struct {
	StepIndex  int
	LocalHash  string
	ServerHash string
}

// Player проигрывает один результат спина
type Player struct {
	res     model.CascadeSpinResult
	grid    model.Grid
	next    int
	desyncs []Desync
}

// NewPlayer применяет начальное поле как есть
func NewPlayer(res model.CascadeSpinResult) *Player {
	return &Player{
		res:  res,
		grid: res.InitialGrid.Clone(),
	}
}

// Grid текущее локальное поле
func (p *Player) Grid() model.Grid {
	return p.grid.Clone()
}

// Desyncs все расхождения за проигрывание
func (p *Player) Desyncs() []Desync {
	return p.desyncs
}

// Done все шаги применены
func (p *Player) Done() bool {
	return p.next >= len(p.res.Steps)
}

// Apply применяет шаг с индексом index. Возвращает true, если было расхождение
func (p *Player) Apply(index int) (bool, error) {
	if index != p.next || index >= len(p.res.Steps) {
		return false, fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, index, p.next)
	}
	step := p.res.Steps[index]

	local := p.grid.Clone()
	for _, pos := range step.Removed {
		local.Set(pos, model.SymbolEmpty)
	}
	moveDrops(local, step.Drops)
	for _, s := range step.Spawns {
		local.Set(s.Position, s.Symbol)
	}

	p.next++
	hash := integrity.GridHash(local)
	if hash == step.Hash {
		p.grid = local
		return false, nil
	}

	// частичная сверка не допускается, берем серверное поле целиком
	p.grid = step.GridAfter.Clone()
	p.desyncs = append(p.desyncs, Desync{StepIndex: index, LocalHash: hash, ServerHash: step.Hash})
	return true, nil
}

// Run применяет все оставшиеся шаги по порядку
func (p *Player) Run() error {
	for !p.Done() {
		if _, err := p.Apply(p.next); err != nil {
			return err
		}
	}
	return nil
}

// Total итоговый выигрыш и множитель, только после последнего шага
func (p *Player) Total() (decimal.Decimal, int, error) {
	if !p.Done() {
		return decimal.Zero, 0, fmt.Errorf("%w: %d of %d steps applied", ErrNotFinished, p.next, len(p.res.Steps))
	}
	return p.res.TotalWin, p.res.AppliedMultiplier, nil
}

// moveDrops двигает то, что лежит в локальной ячейке. Векторы идут снизу вверх
// по колонке, поэтому цель всегда уже свободна
func moveDrops(g model.Grid, drops []model.Drop) {
	for _, d := range drops {
		sym := g.At(d.From)
		g.Set(d.From, model.SymbolEmpty)
		g.Set(d.To, sym)
	}
}
