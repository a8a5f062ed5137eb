// Package engine сборка спина: поле, каскады, бонус, множители и итоговое состояние сессии.
//
// Compute чистая функция от состояния до спина, seed и ставки.
// Ничего не пишет и ничего не читает кроме аргументов.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine/bonus"
	"infinity_stones/internal/engine/cascade"
	"infinity_stones/internal/engine/cluster"
	"infinity_stones/internal/engine/grid"
	"infinity_stones/internal/engine/integrity"
	"infinity_stones/internal/engine/multiplier"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/model"
)

// ErrVerifyMismatch пересчитанный результат не совпал с сохраненным
var ErrVerifyMismatch = errors.New("recomputed result does not match stored checksum")

// FirstViewConfig ограничения первого вида поля новой сессии
type FirstViewConfig struct {
	Salt            string
	MaxScatterCount int
	MaxRetries      int
}

// Config полная математика игры
type Config struct {
	Grid            grid.Config
	Paytable        cluster.Paytable
	MaxCascadeDepth int
	Multiplier      multiplier.Config
	Bonus           bonus.Config
	// MaxWinX потолок выигрыша в ставках, 0: без потолка
	MaxWinX   decimal.Decimal
	FirstView FirstViewConfig
}

// Validate вызывается при загрузке конфигурации, до любого спина
func (c Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return errs.WrapLevel(errs.Fatal, err, "grid config")
	}
	if err := c.Paytable.Validate(); err != nil {
		return errs.WrapLevel(errs.Fatal, err, "paytable config")
	}
	for _, e := range c.Grid.Symbols {
		if e.Value == c.Paytable.Scatter {
			continue
		}
		if _, ok := c.Paytable.Base[e.Value]; !ok {
			return errs.Fatalf("symbol %d has no base payout", e.Value)
		}
	}
	if c.MaxCascadeDepth <= 0 {
		return errs.Fatalf("max cascade depth must be positive, got %d", c.MaxCascadeDepth)
	}
	if err := c.Multiplier.Validate(); err != nil {
		return errs.WrapLevel(errs.Fatal, err, "multiplier config")
	}
	if err := c.Bonus.Validate(); err != nil {
		return errs.WrapLevel(errs.Fatal, err, "bonus config")
	}
	if c.MaxWinX.IsNegative() {
		return errs.Fatalf("max win must be >= 0")
	}
	if c.FirstView.MaxRetries <= 0 {
		return errs.Fatalf("first view retries must be positive, got %d", c.FirstView.MaxRetries)
	}
	return nil
}

func (c Config) cascade() cascade.Config {
	return cascade.Config{
		Paytable: c.Paytable,
		Symbols:  c.Grid.Symbols,
		MaxDepth: c.MaxCascadeDepth,
	}
}

// Input все, от чего зависит спин
type Input struct {
	State     model.SessionState
	Seed      model.Seed
	RequestID string
	Wager     decimal.Decimal
}

// ValidateWager ставка положительная, не точнее цента
func ValidateWager(w decimal.Decimal) error {
	if !w.IsPositive() {
		return errs.WrapLevel(errs.Warn, errs.ErrInvalidWager, "wager must be positive")
	}
	if !w.Equal(w.Truncate(2)) {
		return errs.WrapLevel(errs.Warn, errs.ErrInvalidWager, "wager must have at most 2 decimal places")
	}
	return nil
}

// Compute спин и состояние сессии после него. Баланс и контрольная сумма
// проставляются после проводки, см. Seal
func Compute(ctx context.Context, cfg Config, in Input) (model.CascadeSpinResult, model.SessionState, error) {
	return compute(ctx, cfg, in, rng.New(in.Seed), nil)
}

// compute initial != nil подменяет генерацию начального поля
func compute(ctx context.Context, cfg Config, in Input, src rng.Source, initial model.Grid) (model.CascadeSpinResult, model.SessionState, error) {
	before := in.State
	if !before.Mode.Valid() {
		return model.CascadeSpinResult{}, model.SessionState{}, errs.Fatalf("session %s has invalid mode %q", before.SessionID, before.Mode)
	}

	// во фриспинах играет ставка, зафиксированная при входе в бонус
	wager := in.Wager
	if before.Mode == model.ModeBonus {
		wager = before.BonusWager
	}
	if err := ValidateWager(wager); err != nil {
		return model.CascadeSpinResult{}, model.SessionState{}, err
	}

	var err error
	if initial == nil {
		initial, err = grid.Generate(src, cfg.Grid)
		if err != nil {
			return model.CascadeSpinResult{}, model.SessionState{}, errs.WrapLevel(errs.Fatal, err, "generate grid")
		}
	}

	out, err := cascade.Run(src, initial, cfg.cascade(), wager)
	if err != nil {
		return model.CascadeSpinResult{}, model.SessionState{}, errs.WrapLevel(errs.Fatal, err, "run cascades")
	}

	scatter := cfg.Paytable.Scatter
	bonusIn := bonus.Input{
		Mode:            before.Mode,
		SpinsRemaining:  before.BonusSpinsRemaining,
		InitialScatters: initial.Count(scatter),
		FinalScatters:   out.Final.Count(scatter),
	}
	bo, err := bonus.Evaluate(ctx, cfg.Bonus, bonusIn)
	if err != nil {
		return model.CascadeSpinResult{}, model.SessionState{}, errs.WrapLevel(errs.Fatal, err, "bonus state machine")
	}

	var events []model.MultiplierEvent
	if !suppressMultipliers(cfg.Multiplier, bo) {
		events, err = multiplier.Generate(src, cfg.Multiplier, multiplier.Input{
			Steps:   out.Steps,
			Final:   out.Final,
			BaseWin: out.BaseWin,
			Wager:   wager,
			Mode:    before.Mode,
		})
		if err != nil {
			return model.CascadeSpinResult{}, model.SessionState{}, errs.WrapLevel(errs.Fatal, err, "generate multipliers")
		}
	}

	applied := multiplier.Applied(before.Mode, events, before.CarriedMultiplier)
	total := out.BaseWin.Mul(decimal.NewFromInt(int64(applied)))
	capped := false
	if cfg.MaxWinX.IsPositive() {
		limit := wager.Mul(cfg.MaxWinX).Truncate(2)
		if total.GreaterThan(limit) {
			total = limit
			capped = true
		}
	}

	after := nextState(before, in.RequestID, wager, bo, events)

	res := model.CascadeSpinResult{
		RequestID:           in.RequestID,
		SessionID:           before.SessionID,
		Wager:               wager,
		Seed:                in.Seed,
		InitialGrid:         initial,
		Steps:               out.Steps,
		Multipliers:         events,
		BaseWin:             out.BaseWin,
		AppliedMultiplier:   applied,
		TotalWin:            total,
		WinCapped:           capped,
		ScatterCount:        bonusIn.Scatters(),
		InitialScatterCount: bonusIn.InitialScatters,
		FinalScatterCount:   bonusIn.FinalScatters,
		BonusTriggered:      bo.Triggered,
		BonusRetriggered:    bo.Retriggered,
		AwardedSpins:        bo.Awarded,
		BonusPath:           bo.Path,
		ModeBefore:          before.Mode,
		ModeAfter:           after.Mode,
		SpinsRemaining:      after.BonusSpinsRemaining,
		CarriedMultiplier:   after.CarriedMultiplier,
		Balance:             decimal.Zero,
	}
	if res.Steps == nil {
		res.Steps = []model.CascadeStep{}
	}
	if res.Multipliers == nil {
		res.Multipliers = []model.MultiplierEvent{}
	}
	return res, after, nil
}

// suppressMultipliers свежий триггер всегда глушит множители, ретриггер: по настройке
func suppressMultipliers(cfg multiplier.Config, bo bonus.Outcome) bool {
	if bo.Triggered {
		return true
	}
	return bo.Retriggered && cfg.SuppressOnRetrigger
}

// nextState состояние после спина как функция от состояния до и итога спина
func nextState(before model.SessionState, requestID string, wager decimal.Decimal, bo bonus.Outcome, events []model.MultiplierEvent) model.SessionState {
	after := before
	after.Mode = bo.Mode
	after.BonusSpinsRemaining = bo.Remaining
	after.LastSpinID = requestID
	after.Version = before.Version + 1

	switch {
	case bo.Triggered:
		after.CarriedMultiplier = 1
		after.BonusWager = wager
	case bo.Exited, after.Mode == model.ModeBase:
		after.CarriedMultiplier = 1
		after.BonusWager = decimal.Zero
	default:
		// бонус продолжается: новые множители копятся на следующий спин
		after.CarriedMultiplier = max(before.CarriedMultiplier, 1) + multiplier.Sum(events)
	}
	return after
}

// Seal проставить баланс после проводки и посчитать контрольную сумму
func Seal(res *model.CascadeSpinResult, balance decimal.Decimal) error {
	res.Balance = balance
	if err := integrity.Seal(res); err != nil {
		return errs.WrapLevel(errs.Fatal, err, "seal result")
	}
	return nil
}

// Verify пересчитывает сохраненный результат из seed и состояния до спина
func Verify(ctx context.Context, cfg Config, before model.SessionState, stored model.CascadeSpinResult) error {
	if rng.HashSeed(stored.Seed.ServerSeed) != stored.Seed.ServerSeedHash {
		return fmt.Errorf("%w: server seed does not match its hash", ErrVerifyMismatch)
	}
	if sum, err := integrity.Checksum(stored); err != nil || sum != stored.Checksum {
		return fmt.Errorf("%w: stored result does not match its checksum", ErrVerifyMismatch)
	}
	res, _, err := Compute(ctx, cfg, Input{
		State:     before,
		Seed:      stored.Seed,
		RequestID: stored.RequestID,
		Wager:     stored.Wager,
	})
	if err != nil {
		return err
	}
	if err := Seal(&res, stored.Balance); err != nil {
		return err
	}
	if res.Checksum != stored.Checksum {
		return fmt.Errorf("%w: request %s", ErrVerifyMismatch, stored.RequestID)
	}
	return nil
}

// FirstView безопасный первый вид поля: без выигрышей, скаттеров не больше лимита.
// Детерминирован по id сессии
func FirstView(cfg Config, sessionID string) (model.Grid, error) {
	src := rng.New(model.Seed{ServerSeed: cfg.FirstView.Salt, ClientSeed: sessionID})
	g, err := grid.GenerateConstrained(src, cfg.Grid, grid.Constraints{
		ForceNonWinning: true,
		MaxScatterCount: cfg.FirstView.MaxScatterCount,
		MaxRetries:      cfg.FirstView.MaxRetries,
		MinClusterSize:  cfg.Paytable.MinClusterSize,
		Scatter:         cfg.Paytable.Scatter,
	})
	if err != nil {
		return nil, errs.WrapLevel(errs.Fatal, err, "first view")
	}
	return g, nil
}
