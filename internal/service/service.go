package service

import (
	"context"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/model"
	statsModel "infinity_stones/internal/repository/stats_repo/model"
)

type CascadeService interface {
	// Open создает сессию при первом входе и отдает безопасный первый вид поля
	Open(ctx context.Context, sessionID string) (*model.OpenedSession, error)
	Spin(ctx context.Context, req model.CascadeSpin) (*model.CascadeSpinResult, error)
	BuyBonus(ctx context.Context, req model.BuyBonus) (*model.BuyBonusResult, error)
	Deposit(ctx context.Context, req model.Deposit) (decimal.Decimal, error)
	CheckData(ctx context.Context, sessionID string) (*model.CascadeData, error)
	// Result закоммиченный результат по request id, без пересчета
	Result(ctx context.Context, sessionID, requestID string) (*model.CascadeSpinResult, error)
	// Verify пересчитывает сохраненный спин и сверяет контрольную сумму
	Verify(ctx context.Context, sessionID, requestID string) error
	ReportDesync(ctx context.Context, rep model.DesyncReport) error
	Stats() statsModel.Stats
}
