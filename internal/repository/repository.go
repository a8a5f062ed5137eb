package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"infinity_stones/internal/model"
	statsModel "infinity_stones/internal/repository/stats_repo/model"
)

// SessionRepository состояние сессии, запись только через CAS по версии
type SessionRepository interface {
	// LoadOrCreate создает состояние по умолчанию при первой игре
	LoadOrCreate(ctx context.Context, sessionID string) (model.SessionState, error)
	Get(ctx context.Context, sessionID string) (model.SessionState, error)
	// Commit пишет state, только если сохраненная версия равна expectedVersion.
	// Иначе errs.ErrConflict
	Commit(ctx context.Context, expectedVersion int64, state model.SessionState) error
}

// SpinLogRepository журнал спинов по request id, только добавление
type SpinLogRepository interface {
	// Append errs.ErrDuplicateRequest, если request id уже записан
	Append(ctx context.Context, rec model.SpinRecord) error
	Get(ctx context.Context, requestID string) (model.SpinRecord, error)
}

// PurchaseRepository журнал покупок бонуса по request id, только добавление
type PurchaseRepository interface {
	// Append errs.ErrDuplicateRequest, если request id уже записан
	Append(ctx context.Context, rec model.PurchaseRecord) error
	Get(ctx context.Context, requestID string) (model.PurchaseRecord, error)
}

// LedgerRepository кошелек сессии. Debit и Credit идемпотентны по (requestID, вид проводки)
type LedgerRepository interface {
	Balance(ctx context.Context, sessionID string) (decimal.Decimal, error)
	Debit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error)
	Deposit(ctx context.Context, sessionID, requestID string, amount decimal.Decimal) (decimal.Decimal, error)
}

// StatsRepository статистика RTP процесса, только для наблюдения
type StatsRepository interface {
	Record(bet, payout decimal.Decimal, bonus, triggered bool) bool
	RecordPurchase(cost decimal.Decimal)
	Stats() statsModel.Stats
}
