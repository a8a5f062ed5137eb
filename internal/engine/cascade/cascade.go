// Package cascade цикл удаление -> падение -> досыпка до стабильного поля.
package cascade

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/integrity"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/model"
)

// ErrCascadeDepthExceeded после MaxDepth шагов на поле остались кластеры.
// Признак кривой конфигурации весов или выплат
var ErrCascadeDepthExceeded = errors.New("cascade depth cap exceeded")

// Config параметры каскада
type Config struct {
	Paytable cluster.Paytable
	Symbols  rng.Table[model.Symbol]
	MaxDepth int
}

// Outcome результат каскадного цикла
type Outcome struct {
	Steps   []model.CascadeStep
	Final   model.Grid
	BaseWin decimal.Decimal
}

// Run каскады до стабильного поля. initial не меняется
func Run(src rng.Source, initial model.Grid, cfg Config, wager decimal.Decimal) (Outcome, error) {
	if cfg.MaxDepth <= 0 {
		return Outcome{}, fmt.Errorf("max cascade depth must be positive, got %d", cfg.MaxDepth)
	}

	current := initial.Clone()
	total := decimal.Zero
	steps := make([]model.CascadeStep, 0, 4)

	for {
		clusters := cluster.Detect(current, cfg.Paytable, wager)
		if len(clusters) == 0 {
			break
		}
		if len(steps) >= cfg.MaxDepth {
			return Outcome{}, fmt.Errorf("%w: %d", ErrCascadeDepthExceeded, cfg.MaxDepth)
		}

		step := model.CascadeStep{
			Index:      len(steps),
			GridBefore: current.Clone(),
			Clusters:   clusters,
		}

		work := current.Clone()
		step.Removed = Remove(work, clusters)
		step.GridAfterRemoval = work.Clone()

		step.Drops = Collapse(work)

		spawns, err := Refill(src, work, cfg.Symbols)
		if err != nil {
			return Outcome{}, err
		}
		step.Spawns = spawns
		step.GridAfter = work

		step.StepWin = cluster.Total(clusters)
		total = total.Add(step.StepWin)
		step.RunningTotal = total
		step.Hash = integrity.GridHash(work)

		steps = append(steps, step)
		current = work
	}

	return Outcome{Steps: steps, Final: current, BaseWin: total}, nil
}

// Remove освобождает ячейки кластеров, возвращает удаленные позиции
func Remove(g model.Grid, clusters []model.Cluster) []model.Position {
	var removed []model.Position
	for _, cl := range clusters {
		for _, p := range cl.Positions {
			g.Set(p, model.SymbolEmpty)
			removed = append(removed, p)
		}
	}
	return removed
}

// Collapse гравитация по колонкам. Символ опускается на число пустых ячеек под ним.
// Векторы возвращаются по колонкам слева направо, внутри колонки снизу вверх
func Collapse(g model.Grid) []model.Drop {
	var drops []model.Drop
	rows := g.Rows()
	for c := 0; c < g.Cols(); c++ {
		gap := 0
		for r := rows - 1; r >= 0; r-- {
			sym := g[r][c]
			if sym == model.SymbolEmpty {
				gap++
				continue
			}
			if gap == 0 {
				continue
			}
			g[r+gap][c] = sym
			g[r][c] = model.SymbolEmpty
			drops = append(drops, model.Drop{
				Symbol:   sym,
				From:     model.Position{Row: r, Col: c},
				To:       model.Position{Row: r + gap, Col: c},
				Distance: gap,
			})
		}
	}
	return drops
}

// Refill досыпка пустых ячеек колонками сверху вниз
func Refill(src rng.Source, g model.Grid, symbols rng.Table[model.Symbol]) ([]model.Spawn, error) {
	var spawns []model.Spawn
	for c := 0; c < g.Cols(); c++ {
		for r := 0; r < g.Rows(); r++ {
			if g[r][c] != model.SymbolEmpty {
				continue
			}
			sym, err := rng.Choice(src, symbols)
			if err != nil {
				return nil, err
			}
			g[r][c] = sym
			spawns = append(spawns, model.Spawn{
				Position: model.Position{Row: r, Col: c},
				Symbol:   sym,
				Source:   model.SpawnSourceRefill,
			})
		}
	}
	return spawns, nil
}
