// Package grid генерация начального поля.
package grid

import (
	"errors"
	"fmt"

	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/model"
)

// ErrRetriesExceeded ограничения первого вида не выполнились за MaxRetries перерисовок
var ErrRetriesExceeded = errors.New("grid constraints not satisfied within retry bound")

// Config размер поля и веса символов
type Config struct {
	Rows    int
	Cols    int
	Symbols rng.Table[model.Symbol]
}

// Validate проверка конфигурации поля
func (c Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("grid size must be positive, got %dx%d", c.Rows, c.Cols)
	}
	if err := c.Symbols.Validate(); err != nil {
		return fmt.Errorf("symbols: %w", err)
	}
	for _, e := range c.Symbols {
		if e.Value == model.SymbolEmpty {
			return fmt.Errorf("symbol %d is reserved for empty cells", model.SymbolEmpty)
		}
	}
	return nil
}

// Constraints ограничения для первого вида новой сессии
type Constraints struct {
	ForceNonWinning bool
	MaxScatterCount int
	MaxRetries      int
	MinClusterSize  int
	Scatter         model.Symbol
}

// Generate по одному взвешенному символу на ячейку, колонками сверху вниз
func Generate(src rng.Source, cfg Config) (model.Grid, error) {
	g := model.NewGrid(cfg.Rows, cfg.Cols)
	for c := 0; c < cfg.Cols; c++ {
		for r := 0; r < cfg.Rows; r++ {
			sym, err := rng.Choice(src, cfg.Symbols)
			if err != nil {
				return nil, err
			}
			g[r][c] = sym
		}
	}
	return g, nil
}

// GenerateConstrained поле без выигрышных кластеров и с ограниченным числом скаттеров.
// Нарушающие ячейки перерисовываются, распределение обычных спинов не затрагивается
func GenerateConstrained(src rng.Source, cfg Config, cons Constraints) (model.Grid, error) {
	g, err := Generate(src, cfg)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < cons.MaxRetries; attempt++ {
		bad := violations(g, cons)
		if len(bad) == 0 {
			return g, nil
		}
		for _, p := range bad {
			sym, err := rng.Choice(src, cfg.Symbols)
			if err != nil {
				return nil, err
			}
			g.Set(p, sym)
		}
	}
	if len(violations(g, cons)) == 0 {
		return g, nil
	}
	return nil, fmt.Errorf("%w: %d retries", ErrRetriesExceeded, cons.MaxRetries)
}

// violations ячейки для перерисовки: лишние скаттеры и по одной ячейке из каждого кластера
func violations(g model.Grid, cons Constraints) []model.Position {
	var bad []model.Position

	if cons.MaxScatterCount >= 0 {
		seen := 0
		for c := 0; c < g.Cols(); c++ {
			for r := 0; r < g.Rows(); r++ {
				if g[r][c] != cons.Scatter {
					continue
				}
				seen++
				if seen > cons.MaxScatterCount {
					bad = append(bad, model.Position{Row: r, Col: c})
				}
			}
		}
	}

	if cons.ForceNonWinning {
		for _, group := range cluster.Groups(g, cons.MinClusterSize, cons.Scatter) {
			// ячейка из середины группы чаще разрывает связность
			bad = append(bad, group[len(group)/2])
		}
	}
	return bad
}
