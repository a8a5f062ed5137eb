package cascade

import (
	"context"

	"go.uber.org/zap"

	"infinity_stones/internal/audit"
	"infinity_stones/internal/config"
	"infinity_stones/internal/engine/rng"
	"infinity_stones/internal/lock"
	"infinity_stones/internal/repository"
	"infinity_stones/internal/service"
)

const (
	// maxCommitAttempts перезагрузок состояния и пересчетов при конфликте версии
	maxCommitAttempts = 5

	// buyBonusLedgerPrefix отделяет проводку покупки от проводок спина с тем же request id
	buyBonusLedgerPrefix = "buy:"
)

// TxManager одна транзакция вокруг проводок, CAS и журнала. trm.Manager подходит как есть
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type Deps struct {
	Cfg       config.GameConfig
	Sessions  repository.SessionRepository
	Spins     repository.SpinLogRepository
	Purchases repository.PurchaseRepository
	Ledger    repository.LedgerRepository
	Stats     repository.StatsRepository
	TxManager TxManager
	Locker    lock.Locker
	Audit     audit.Sink
	Logger    *zap.Logger
	// Seeds источник server seed, по умолчанию crypto/rand
	Seeds func() (string, error)
}

type serv struct {
	cfg       config.GameConfig
	sessions  repository.SessionRepository
	spins     repository.SpinLogRepository
	purchases repository.PurchaseRepository
	ledger    repository.LedgerRepository
	stats     repository.StatsRepository
	txManager TxManager
	locker    lock.Locker
	audit     audit.Sink
	logger    *zap.Logger
	seeds     func() (string, error)
}

// NewCascadeService Создать новый cascade
func NewCascadeService(deps Deps) service.CascadeService {
	seeds := deps.Seeds
	if seeds == nil {
		seeds = rng.NewServerSeed
	}
	return &serv{
		cfg:       deps.Cfg,
		sessions:  deps.Sessions,
		spins:     deps.Spins,
		purchases: deps.Purchases,
		ledger:    deps.Ledger,
		stats:     deps.Stats,
		txManager: deps.TxManager,
		locker:    deps.Locker,
		audit:     deps.Audit,
		logger:    deps.Logger,
		seeds:     seeds,
	}
}
