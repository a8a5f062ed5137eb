package stats_repo

import (
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"infinity_stones/internal/repository/stats_repo/model"
)

const (
	// minSpinsToCheck Количество спинов, после которого начинаем следить за отклонением
	minSpinsToCheck = 100
	// periodSpinsToCheck Периодичность проверки (каждые N спинов)
	periodSpinsToCheck = 25
	// criticalRTPDeviation отклонение RTP окна от целевого для входа в режим отклонения, п.п.
	criticalRTPDeviation = 10.0
	// normalRTPDeviation отклонение для выхода из режима
	normalRTPDeviation = 5.0

	directionHigh = "high"
	directionLow  = "low"
)

var hundred = decimal.NewFromInt(100)

// StatsRepo статистика RTP в памяти. Только наблюдает: математика игры от нее не зависит
type StatsRepo struct {
	mtx    sync.RWMutex
	state  model.Stats
	window []model.SpinSample
	logger *zap.Logger
	now    func() time.Time
}

// NewStatsRepository Конструктор с целевым RTP и размером окна
func NewStatsRepository(targetRTP float64, windowSize int, logger *zap.Logger) *StatsRepo {
	if windowSize <= 0 {
		windowSize = 500
	}
	return &StatsRepo{
		state: model.Stats{
			TotalBet:    decimal.Zero,
			TotalPayout: decimal.Zero,
			TargetRTP:   targetRTP,
			WindowSize:  windowSize,
			Alerts:      make([]model.DriftAlert, 0),
		},
		window: make([]model.SpinSample, 0, windowSize),
		logger: logger,
		now:    time.Now,
	}
}

// Stats копия текущей статистики
func (r *StatsRepo) Stats() model.Stats {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	out := r.state
	out.Alerts = append([]model.DriftAlert(nil), r.state.Alerts...)
	return out
}

// Record учитывает закоммиченный спин. bet ноль для бесплатных спинов.
// Возвращает true, если этот спин перевел статистику в режим отклонения
func (r *StatsRepo) Record(bet, payout decimal.Decimal, bonus, triggered bool) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.state.TotalSpins++
	if bonus {
		r.state.BonusSpins++
	}
	if triggered {
		r.state.Triggers++
	}
	if payout.IsPositive() {
		r.state.Wins++
	}
	r.state.TotalBet = r.state.TotalBet.Add(bet)
	r.state.TotalPayout = r.state.TotalPayout.Add(payout)
	r.state.CurrentRTP = rtp(r.state.TotalBet, r.state.TotalPayout)

	r.window = append(r.window, model.SpinSample{Bet: bet, Payout: payout})
	if len(r.window) > r.state.WindowSize {
		r.window = r.window[1:]
	}

	var windowBet, windowPayout decimal.Decimal
	for _, s := range r.window {
		windowBet = windowBet.Add(s.Bet)
		windowPayout = windowPayout.Add(s.Payout)
	}
	r.state.WindowRTP = rtp(windowBet, windowPayout)

	if r.state.TotalSpins < minSpinsToCheck || r.state.TotalSpins%periodSpinsToCheck != 0 {
		return false
	}
	return r.driftCheck()
}

// RecordPurchase учитывает покупку бонуса как ставку без спина
func (r *StatsRepo) RecordPurchase(cost decimal.Decimal) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.state.TotalBet = r.state.TotalBet.Add(cost)
	r.state.CurrentRTP = rtp(r.state.TotalBet, r.state.TotalPayout)
}

// driftCheck вход и выход из режима отклонения, вызывается под mtx
func (r *StatsRepo) driftCheck() bool {
	diff := math.Abs(r.state.WindowRTP - r.state.TargetRTP)

	if r.state.DriftMode {
		if diff < normalRTPDeviation {
			r.state.DriftMode = false
			r.state.DriftDirection = ""
			r.logger.Info("rtp back to normal", zap.Float64("window_rtp", r.state.WindowRTP))
		}
		return false
	}

	if diff <= criticalRTPDeviation {
		return false
	}

	direction := directionLow
	if r.state.WindowRTP > r.state.TargetRTP {
		direction = directionHigh
	}
	r.state.DriftMode = true
	r.state.DriftDirection = direction

	alert := model.DriftAlert{
		Timestamp: r.now(),
		Direction: direction,
		WindowRTP: r.state.WindowRTP,
		Profit:    r.state.TotalBet.Sub(r.state.TotalPayout),
	}
	r.state.Alerts = append(r.state.Alerts, alert)

	r.logger.Warn("rtp drift",
		zap.String("direction", direction),
		zap.Float64("window_rtp", r.state.WindowRTP),
		zap.Float64("target_rtp", r.state.TargetRTP),
		zap.String("profit", alert.Profit.String()),
	)
	return true
}

func rtp(bet, payout decimal.Decimal) float64 {
	if !bet.IsPositive() {
		return 0
	}
	return payout.Mul(hundred).Div(bet).InexactFloat64()
}
