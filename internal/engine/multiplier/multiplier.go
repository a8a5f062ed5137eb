// Package multiplier генерация множителей после завершения каскадов.
//
// Значения множителей внутри спина всегда складываются.
package multiplier

import (
	"fmt"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/model"
)

const (
	ActorCascadeOrb   = "cascade_orb"
	ActorShootingStar = "shooting_star"
)

// CascadeConfig множитель, привязанный к числу каскадов
type CascadeConfig struct {
	Enabled          bool
	MinCascades      int
	MinWinX          decimal.Decimal
	BaseChance       float64
	PerCascadeChance float64
	MaxChance        float64
}

// RandomConfig независимый множитель, зависит только от выигрыша
type RandomConfig struct {
	Enabled bool
	MinWinX decimal.Decimal
	Chance  float64
}

// Config настройки множителей
type Config struct {
	Values  rng.Table[int]
	Cascade CascadeConfig
	Random  RandomConfig
	// SuppressOnRetrigger отключает множители на спине с ретриггером в бонусе
	SuppressOnRetrigger bool
}

// Validate проверка конфигурации множителей
func (c Config) Validate() error {
	if !c.Cascade.Enabled && !c.Random.Enabled {
		return nil
	}
	if err := c.Values.Validate(); err != nil {
		return fmt.Errorf("multiplier values: %w", err)
	}
	for _, e := range c.Values {
		if e.Value < 1 {
			return fmt.Errorf("multiplier value must be >= 1, got %d", e.Value)
		}
	}
	for _, p := range []float64{c.Cascade.BaseChance, c.Cascade.PerCascadeChance, c.Cascade.MaxChance, c.Random.Chance} {
		if p < 0 || p > 1 {
			return fmt.Errorf("multiplier chance out of [0,1]: %v", p)
		}
	}
	return nil
}

// Input данные спина после каскадов
type Input struct {
	Steps   []model.CascadeStep
	Final   model.Grid
	BaseWin decimal.Decimal
	Wager   decimal.Decimal
	Mode    model.Mode
}

// Generate события множителей. Порядок обращений к ГСЧ фиксирован:
// шанс и значение каскадного, затем шанс, значение, строка и колонка случайного
func Generate(src rng.Source, cfg Config, in Input) ([]model.MultiplierEvent, error) {
	applied := in.Mode == model.ModeBase
	var events []model.MultiplierEvent

	cascades := len(in.Steps)
	if cfg.Cascade.Enabled && cascades > 0 && cascades >= cfg.Cascade.MinCascades && reached(in.BaseWin, in.Wager, cfg.Cascade.MinWinX) {
		if rng.Chance(src, CascadeChance(cfg.Cascade, cascades)) {
			v, err := rng.Choice(src, cfg.Values)
			if err != nil {
				return nil, err
			}
			ev := model.MultiplierEvent{
				Kind:                 model.MultiplierCascadeLinked,
				Value:                v,
				Actor:                ActorCascadeOrb,
				AppliedToCurrentSpin: applied,
			}
			if pos, ok := lastClusterCell(in.Steps); ok {
				ev.Position = &pos
			}
			events = append(events, ev)
		}
	}

	if cfg.Random.Enabled && in.BaseWin.IsPositive() && reached(in.BaseWin, in.Wager, cfg.Random.MinWinX) {
		if rng.Chance(src, cfg.Random.Chance) {
			v, err := rng.Choice(src, cfg.Values)
			if err != nil {
				return nil, err
			}
			pos := model.Position{
				Row: rng.IntN(src, in.Final.Rows()),
				Col: rng.IntN(src, in.Final.Cols()),
			}
			events = append(events, model.MultiplierEvent{
				Kind:                 model.MultiplierRandom,
				Value:                v,
				Position:             &pos,
				Actor:                ActorShootingStar,
				AppliedToCurrentSpin: applied,
			})
		}
	}
	return events, nil
}

// CascadeChance min(base + per * (cascades - min), max)
func CascadeChance(cfg CascadeConfig, cascades int) float64 {
	extra := cascades - cfg.MinCascades
	if extra < 0 {
		return 0
	}
	p := cfg.BaseChance + cfg.PerCascadeChance*float64(extra)
	if cfg.MaxChance > 0 && p > cfg.MaxChance {
		p = cfg.MaxChance
	}
	return p
}

// Sum сумма значений. Множители складываются, не перемножаются
func Sum(events []model.MultiplierEvent) int {
	total := 0
	for _, ev := range events {
		total += ev.Value
	}
	return total
}

// Applied множитель текущего спина: в базе max(1, Σ), в бонусе накопленный до спина
func Applied(mode model.Mode, events []model.MultiplierEvent, carried int) int {
	if mode == model.ModeBonus {
		if carried < 1 {
			return 1
		}
		return carried
	}
	if s := Sum(events); s > 1 {
		return s
	}
	return 1
}

func reached(win, wager, minX decimal.Decimal) bool {
	return win.GreaterThanOrEqual(wager.Mul(minX))
}

func lastClusterCell(steps []model.CascadeStep) (model.Position, bool) {
	if len(steps) == 0 {
		return model.Position{}, false
	}
	last := steps[len(steps)-1]
	if len(last.Clusters) == 0 || len(last.Clusters[0].Positions) == 0 {
		return model.Position{}, false
	}
	return last.Clusters[0].Positions[0], true
}
