package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats агрегированная статистика игры с момента старта процесса
type Stats struct {
	TotalSpins  int             // Сколько всего спинов закоммичено
	BonusSpins  int             // Из них бесплатных
	Triggers    int             // Сколько раз запускался бонус
	Wins        int             // Спины с ненулевым выигрышем
	TotalBet    decimal.Decimal // Сумма списанных ставок, включая покупку бонуса
	TotalPayout decimal.Decimal // Сумма выплат

	CurrentRTP float64 // TotalPayout/TotalBet*100
	TargetRTP  float64 // Заявленный RTP из конфига игры

	WindowRTP  float64 // RTP в окне последних спинов
	WindowSize int     // Размер окна

	DriftMode      bool   // RTP в окне критически отклонился от целевого
	DriftDirection string // "high" или "low"
	Alerts         []DriftAlert
}

// DriftAlert запись о входе в режим отклонения
type DriftAlert struct {
	Timestamp time.Time
	Direction string
	WindowRTP float64
	Profit    decimal.Decimal
}

// SpinSample спин в окне
type SpinSample struct {
	Bet    decimal.Decimal
	Payout decimal.Decimal
}
