package env

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"infinity_stones/internal/config"
	"infinity_stones/internal/engine"
	"infinity_stones/internal/engine/bonus"
	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/grid"
	"infinity_stones/internal/engine/multiplier"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
)

const (
	gameConfigPathEnvName = "GAME_CONFIG_PATH"
	defaultGameConfigPath = "config.yaml"

	defaultTargetRTP   = 96.0
	defaultStatsWindow = 500
)

type symbolYAML struct {
	ID     int `yaml:"id"`
	Weight int `yaml:"weight"`
}

type tierYAML struct {
	Name   string `yaml:"name"`
	Min    int    `yaml:"min"`
	Max    int    `yaml:"max"`
	Factor string `yaml:"factor"`
}

type valueYAML struct {
	Value  int `yaml:"value"`
	Weight int `yaml:"weight"`
}

type gameYAML struct {
	Grid struct {
		Rows    int          `yaml:"rows"`
		Cols    int          `yaml:"cols"`
		Symbols []symbolYAML `yaml:"symbols"`
	} `yaml:"grid"`

	Paytable struct {
		MinClusterSize int            `yaml:"min_cluster_size"`
		Scatter        int            `yaml:"scatter"`
		Tiers          []tierYAML     `yaml:"tiers"`
		Base           map[int]string `yaml:"base"`
	} `yaml:"paytable"`

	MaxCascadeDepth int    `yaml:"max_cascade_depth"`
	MaxWinX         string `yaml:"max_win_x"`

	Multipliers struct {
		Values              []valueYAML `yaml:"values"`
		SuppressOnRetrigger bool        `yaml:"suppress_on_retrigger"`
		Cascade             struct {
			Enabled          bool    `yaml:"enabled"`
			MinCascades      int     `yaml:"min_cascades"`
			MinWinX          string  `yaml:"min_win_x"`
			BaseChance       float64 `yaml:"base_chance"`
			PerCascadeChance float64 `yaml:"per_cascade_chance"`
			MaxChance        float64 `yaml:"max_chance"`
		} `yaml:"cascade"`
		Random struct {
			Enabled bool    `yaml:"enabled"`
			MinWinX string  `yaml:"min_win_x"`
			Chance  float64 `yaml:"chance"`
		} `yaml:"random"`
	} `yaml:"multipliers"`

	Bonus struct {
		TriggerThreshold   int `yaml:"trigger_threshold"`
		RetriggerThreshold int `yaml:"retrigger_threshold"`
		InitialSpins       int `yaml:"initial_spins"`
		RetriggerSpins     int `yaml:"retrigger_spins"`
	} `yaml:"bonus"`

	FirstView struct {
		Salt            string `yaml:"salt"`
		MaxScatterCount int    `yaml:"max_scatter_count"`
		MaxRetries      int    `yaml:"max_retries"`
	} `yaml:"first_view"`

	BuyBonusCostX string  `yaml:"buy_bonus_cost_x"`
	TargetRTP     float64 `yaml:"target_rtp"`
	StatsWindow   int     `yaml:"stats_window"`
}

type gameConfig struct {
	engine        engine.Config
	buyBonusCostX decimal.Decimal
	targetRTP     float64
	statsWindow   int
}

// GameConfigPath путь к YAML из окружения или config.yaml
func GameConfigPath() string {
	if p := os.Getenv(gameConfigPathEnvName); len(p) != 0 {
		return p
	}
	return defaultGameConfigPath
}

// NewGameConfigFromYAML читает и проверяет математику игры. Любая ошибка фатальна
func NewGameConfigFromYAML(path string) (config.GameConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapLevel(errs.Fatal, err, "read game config")
	}
	return ParseGameConfig(data)
}

func ParseGameConfig(data []byte) (config.GameConfig, error) {
	var raw gameYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs.WrapLevel(errs.Fatal, err, "parse game config")
	}

	cfg, err := raw.toGameConfig()
	if err != nil {
		return nil, errs.WrapLevel(errs.Fatal, err, "game config")
	}
	if err := cfg.engine.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (raw gameYAML) toGameConfig() (*gameConfig, error) {
	symbols := make(rng.Table[model.Symbol], 0, len(raw.Grid.Symbols))
	for _, s := range raw.Grid.Symbols {
		symbols = append(symbols, rng.Entry[model.Symbol]{Value: model.Symbol(s.ID), Weight: s.Weight})
	}

	tiers := make([]cluster.Tier, 0, len(raw.Paytable.Tiers))
	for _, t := range raw.Paytable.Tiers {
		factor, err := parseDecimal(t.Factor, "tier "+t.Name+" factor")
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, cluster.Tier{Name: t.Name, Min: t.Min, Max: t.Max, Factor: factor})
	}

	base := make(map[model.Symbol]decimal.Decimal, len(raw.Paytable.Base))
	for id, v := range raw.Paytable.Base {
		d, err := parseDecimal(v, fmt.Sprintf("base payout of symbol %d", id))
		if err != nil {
			return nil, err
		}
		base[model.Symbol(id)] = d
	}

	values := make(rng.Table[int], 0, len(raw.Multipliers.Values))
	for _, v := range raw.Multipliers.Values {
		values = append(values, rng.Entry[int]{Value: v.Value, Weight: v.Weight})
	}

	maxWinX, err := parseDecimal(raw.MaxWinX, "max_win_x")
	if err != nil {
		return nil, err
	}
	cascadeMinWin, err := parseDecimal(raw.Multipliers.Cascade.MinWinX, "cascade min_win_x")
	if err != nil {
		return nil, err
	}
	randomMinWin, err := parseDecimal(raw.Multipliers.Random.MinWinX, "random min_win_x")
	if err != nil {
		return nil, err
	}
	buyCost, err := parseDecimal(raw.BuyBonusCostX, "buy_bonus_cost_x")
	if err != nil {
		return nil, err
	}

	mc := raw.Multipliers
	cfg := &gameConfig{
		engine: engine.Config{
			Grid: grid.Config{
				Rows:    raw.Grid.Rows,
				Cols:    raw.Grid.Cols,
				Symbols: symbols,
			},
			Paytable: cluster.Paytable{
				MinClusterSize: raw.Paytable.MinClusterSize,
				Tiers:          tiers,
				Base:           base,
				Scatter:        model.Symbol(raw.Paytable.Scatter),
			},
			MaxCascadeDepth: raw.MaxCascadeDepth,
			Multiplier: multiplier.Config{
				Values: values,
				Cascade: multiplier.CascadeConfig{
					Enabled:          mc.Cascade.Enabled,
					MinCascades:      mc.Cascade.MinCascades,
					MinWinX:          cascadeMinWin,
					BaseChance:       mc.Cascade.BaseChance,
					PerCascadeChance: mc.Cascade.PerCascadeChance,
					MaxChance:        mc.Cascade.MaxChance,
				},
				Random: multiplier.RandomConfig{
					Enabled: mc.Random.Enabled,
					MinWinX: randomMinWin,
					Chance:  mc.Random.Chance,
				},
				SuppressOnRetrigger: mc.SuppressOnRetrigger,
			},
			Bonus: bonus.Config{
				TriggerThreshold:   raw.Bonus.TriggerThreshold,
				RetriggerThreshold: raw.Bonus.RetriggerThreshold,
				InitialSpins:       raw.Bonus.InitialSpins,
				RetriggerSpins:     raw.Bonus.RetriggerSpins,
			},
			MaxWinX: maxWinX,
			FirstView: engine.FirstViewConfig{
				Salt:            raw.FirstView.Salt,
				MaxScatterCount: raw.FirstView.MaxScatterCount,
				MaxRetries:      raw.FirstView.MaxRetries,
			},
		},
		buyBonusCostX: buyCost,
		targetRTP:     raw.TargetRTP,
		statsWindow:   raw.StatsWindow,
	}

	if buyCost.IsNegative() {
		return nil, fmt.Errorf("buy_bonus_cost_x must be >= 0")
	}
	if cfg.targetRTP == 0 {
		cfg.targetRTP = defaultTargetRTP
	}
	if cfg.statsWindow == 0 {
		cfg.statsWindow = defaultStatsWindow
	}
	return cfg, nil
}

// parseDecimal пустая строка: ноль
func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

func (g *gameConfig) Engine() engine.Config {
	return g.engine
}

func (g *gameConfig) BuyBonusCostX() decimal.Decimal {
	return g.buyBonusCostX
}

func (g *gameConfig) TargetRTP() float64 {
	return g.targetRTP
}

func (g *gameConfig) StatsWindow() int {
	return g.statsWindow
}
