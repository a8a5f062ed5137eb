// Package cluster поиск выигрышных кластеров и расчет выплат.
package cluster

import (
	"fmt"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/model"
)

// Tier диапазон размеров кластера. Max == 0: диапазон без верхней границы
type Tier struct {
	Name   string
	Min    int
	Max    int
	Factor decimal.Decimal
}

func (t Tier) contains(size int) bool {
	return size >= t.Min && (t.Max == 0 || size <= t.Max)
}

// Paytable таблица выплат кластеров
type Paytable struct {
	MinClusterSize int
	Tiers          []Tier
	// Base базовая выплата символа в долях ставки
	Base    map[model.Symbol]decimal.Decimal
	Scatter model.Symbol
}

// Validate проверка таблицы выплат
func (p Paytable) Validate() error {
	if p.MinClusterSize < 2 {
		return fmt.Errorf("min cluster size must be >= 2, got %d", p.MinClusterSize)
	}
	if len(p.Tiers) == 0 {
		return fmt.Errorf("paytable has no tiers")
	}
	if first := p.Tiers[0]; first.Min != p.MinClusterSize {
		return fmt.Errorf("first tier %q must start at min cluster size %d, got %d", first.Name, p.MinClusterSize, first.Min)
	}
	if last := p.Tiers[len(p.Tiers)-1]; last.Max != 0 {
		return fmt.Errorf("last tier %q must be open-ended, got max %d", last.Name, last.Max)
	}
	for i, t := range p.Tiers {
		if t.Min < p.MinClusterSize {
			return fmt.Errorf("tier %q starts below min cluster size", t.Name)
		}
		if t.Max != 0 && t.Max < t.Min {
			return fmt.Errorf("tier %q has max < min", t.Name)
		}
		if i > 0 {
			prev := p.Tiers[i-1]
			if prev.Max == 0 || prev.Max+1 != t.Min {
				return fmt.Errorf("tier %q does not continue tier %q", t.Name, prev.Name)
			}
		}
	}
	if len(p.Base) == 0 {
		return fmt.Errorf("paytable has no symbol payouts")
	}
	return nil
}

// TierFor диапазон для размера кластера
func (p Paytable) TierFor(size int) (Tier, bool) {
	for _, t := range p.Tiers {
		if t.contains(size) {
			return t, true
		}
	}
	return Tier{}, false
}

var dirs = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Groups все связные области одного символа размером >= minSize.
// Обход BFS по 4 направлениям, каждая ячейка принадлежит не более чем одной группе.
// Порядок групп: по первой ячейке в построчном обходе.
func Groups(g model.Grid, minSize int, skip model.Symbol) [][]model.Position {
	rows, cols := g.Rows(), g.Cols()
	visited := make([][]bool, rows)
	for r := range visited {
		visited[r] = make([]bool, cols)
	}

	var groups [][]model.Position
	queue := make([]model.Position, 0, rows*cols)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			sym := g[r][c]
			if visited[r][c] || sym == model.SymbolEmpty || sym == skip {
				continue
			}

			queue = queue[:0]
			queue = append(queue, model.Position{Row: r, Col: c})
			visited[r][c] = true
			var component []model.Position

			for head := 0; head < len(queue); head++ {
				cur := queue[head]
				component = append(component, cur)
				for _, d := range dirs {
					nr, nc := cur.Row+d[0], cur.Col+d[1]
					if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
						continue
					}
					if visited[nr][nc] || g[nr][nc] != sym {
						continue
					}
					visited[nr][nc] = true
					queue = append(queue, model.Position{Row: nr, Col: nc})
				}
			}

			if len(component) >= minSize {
				groups = append(groups, component)
			}
		}
	}
	return groups
}

// Detect выигрышные кластеры с выплатой. Поле не меняется
func Detect(g model.Grid, p Paytable, wager decimal.Decimal) []model.Cluster {
	groups := Groups(g, p.MinClusterSize, p.Scatter)
	clusters := make([]model.Cluster, 0, len(groups))
	for _, positions := range groups {
		sym := g.At(positions[0])
		size := len(positions)
		tier, ok := p.TierFor(size)
		payout := decimal.Zero
		if ok {
			payout = Payout(tier, p.Base[sym], wager)
		}
		clusters = append(clusters, model.Cluster{
			Symbol:    sym,
			Positions: positions,
			Size:      size,
			Tier:      tier.Name,
			Payout:    payout,
		})
	}
	return clusters
}

// Payout factor * base * wager, отбрасываем дробную часть меньше цента
func Payout(t Tier, base, wager decimal.Decimal) decimal.Decimal {
	return t.Factor.Mul(base).Mul(wager).Truncate(2)
}

// Total сумма выплат кластеров
func Total(clusters []model.Cluster) decimal.Decimal {
	sum := decimal.Zero
	for _, cl := range clusters {
		sum = sum.Add(cl.Payout)
	}
	return sum
}
