// Package bonus автомат фриспинов.
package bonus

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"infinity_stones/internal/model"
)

// Состояния автомата
const (
	StateInactive    = "inactive"
	StateTriggered   = "triggered"
	StateActive      = "active"
	StateRetriggered = "retriggered"
	StateExhausted   = "exhausted"
)

// События автомата
const (
	EventTrigger   = "trigger"
	EventActivate  = "activate"
	EventRetrigger = "retrigger"
	EventResume    = "resume"
	EventExhaust   = "exhaust"
	EventReset     = "reset"
)

var events = fsm.Events{
	{Name: EventTrigger, Src: []string{StateInactive}, Dst: StateTriggered},
	{Name: EventActivate, Src: []string{StateTriggered}, Dst: StateActive},
	{Name: EventRetrigger, Src: []string{StateActive}, Dst: StateRetriggered},
	{Name: EventResume, Src: []string{StateRetriggered}, Dst: StateActive},
	{Name: EventExhaust, Src: []string{StateActive}, Dst: StateExhausted},
	{Name: EventReset, Src: []string{StateExhausted}, Dst: StateInactive},
}

// Config пороги скаттеров и количество спинов
type Config struct {
	TriggerThreshold   int
	RetriggerThreshold int
	InitialSpins       int
	RetriggerSpins     int
}

// Validate проверка конфигурации бонуса
func (c Config) Validate() error {
	if c.TriggerThreshold <= 0 || c.RetriggerThreshold <= 0 {
		return fmt.Errorf("scatter thresholds must be positive")
	}
	if c.InitialSpins <= 0 {
		return fmt.Errorf("initial spins must be positive, got %d", c.InitialSpins)
	}
	if c.RetriggerSpins < 0 {
		return fmt.Errorf("retrigger spins must be >= 0, got %d", c.RetriggerSpins)
	}
	if c.RetriggerSpins >= c.InitialSpins {
		return fmt.Errorf("retrigger spins %d must be less than initial spins %d", c.RetriggerSpins, c.InitialSpins)
	}
	return nil
}

// Input состояние до спина и скаттеры с серверного поля
type Input struct {
	Mode            model.Mode
	SpinsRemaining  int
	InitialScatters int
	FinalScatters   int
}

// Outcome итог автомата за спин
type Outcome struct {
	Triggered   bool
	Retriggered bool
	Awarded     int
	Path        []string
	Mode        model.Mode
	Remaining   int
	// Exited бонус закончился на этом спине
	Exited bool
}

// Scatters учитываются и на начальном, и на финальном поле
func (in Input) Scatters() int {
	return max(in.InitialScatters, in.FinalScatters)
}

// Evaluate переходы автомата за один спин.
// В бонусе сначала списывается текущий спин, потом проверяется ретриггер
func Evaluate(ctx context.Context, cfg Config, in Input) (Outcome, error) {
	start := StateInactive
	if in.Mode == model.ModeBonus {
		start = StateActive
	}

	path := []string{start}
	machine := fsm.NewFSM(start, events, fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			path = append(path, e.Dst)
		},
	})
	fire := func(event string) error {
		if err := machine.Event(ctx, event); err != nil {
			return fmt.Errorf("bonus %s from %s: %w", event, machine.Current(), err)
		}
		return nil
	}

	out := Outcome{Mode: in.Mode, Remaining: in.SpinsRemaining}
	scatters := in.Scatters()

	switch in.Mode {
	case model.ModeBase:
		if scatters < cfg.TriggerThreshold {
			break
		}
		if err := fire(EventTrigger); err != nil {
			return Outcome{}, err
		}
		if err := fire(EventActivate); err != nil {
			return Outcome{}, err
		}
		out.Triggered = true
		out.Awarded = cfg.InitialSpins
		out.Mode = model.ModeBonus
		out.Remaining = cfg.InitialSpins

	case model.ModeBonus:
		out.Remaining = max(in.SpinsRemaining-1, 0)
		if scatters >= cfg.RetriggerThreshold {
			if err := fire(EventRetrigger); err != nil {
				return Outcome{}, err
			}
			if err := fire(EventResume); err != nil {
				return Outcome{}, err
			}
			out.Retriggered = true
			out.Awarded = cfg.RetriggerSpins
			out.Remaining += cfg.RetriggerSpins
		}
		if out.Remaining == 0 {
			if err := fire(EventExhaust); err != nil {
				return Outcome{}, err
			}
			if err := fire(EventReset); err != nil {
				return Outcome{}, err
			}
			out.Mode = model.ModeBase
			out.Exited = true
		}

	default:
		return Outcome{}, fmt.Errorf("unknown session mode %q", in.Mode)
	}

	out.Path = path
	return out, nil
}
