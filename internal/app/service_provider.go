package app

import (
	"context"

	trmpgx "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	cascadeAPI "infinity_stones/internal/api/cascade"
	"infinity_stones/internal/api/middleware"
	"infinity_stones/internal/audit"
	"infinity_stones/internal/config"
	"infinity_stones/internal/config/env"
	"infinity_stones/internal/lock"
	"infinity_stones/internal/logger"
	"infinity_stones/internal/repository"
	"infinity_stones/internal/repository/ledger_repo"
	"infinity_stones/internal/repository/memory"
	"infinity_stones/internal/repository/migration"
	"infinity_stones/internal/repository/purchase_repo"
	"infinity_stones/internal/repository/session_repo"
	"infinity_stones/internal/repository/spin_log_repo"
	"infinity_stones/internal/repository/stats_repo"
	"infinity_stones/internal/service"
	"infinity_stones/internal/service/cascade"
)

type ServiceProvider struct {
	logger *zap.Logger

	// Configs
	logCfg   config.LogConfig
	gameCfg  config.GameConfig
	pgConfig config.PGConfig
	redisCfg config.RedisConfig
	amqpCfg  config.AMQPConfig
	jwtCfg   config.JWTConfig
	httpCfg  config.HTTPConfig

	// Database
	dbClient *pgxpool.Pool
	memStore *memory.Store

	//TXManager
	txManager cascade.TxManager

	// Repositories
	sessionRepo  repository.SessionRepository
	spinLogRepo  repository.SpinLogRepository
	purchaseRepo repository.PurchaseRepository
	ledgerRepo   repository.LedgerRepository
	statsRepo    repository.StatsRepository

	// Infrastructure
	redisClient redis.UniversalClient
	locker      lock.Locker
	publisher   audit.Publisher
	auditWorker *audit.Worker

	// Cascade bits
	cascadeServ service.CascadeService
	cascadeHand *cascadeAPI.Handler

	router chi.Router

	closers []func()
}

func newServiceProvider() *ServiceProvider {
	return &ServiceProvider{}
}

func (sp *ServiceProvider) LogCfg() config.LogConfig {
	if sp.logCfg == nil {
		cfg, err := env.NewLogConfig()
		if err != nil {
			panic("failed to get log config: " + err.Error())
		}
		sp.logCfg = cfg
	}
	return sp.logCfg
}

func (sp *ServiceProvider) Logger() *zap.Logger {
	if sp.logger == nil {
		l, err := logger.New(sp.LogCfg().Mode())
		if err != nil {
			panic("failed to build logger: " + err.Error())
		}
		sp.logger = l
		sp.closers = append(sp.closers, func() { _ = l.Sync() })
	}
	return sp.logger
}

func (sp *ServiceProvider) GameCfg() config.GameConfig {
	if sp.gameCfg == nil {
		cfg, err := env.NewGameConfigFromYAML(env.GameConfigPath())
		if err != nil {
			panic("failed to get game config: " + err.Error())
		}
		sp.gameCfg = cfg
	}
	return sp.gameCfg
}

func (sp *ServiceProvider) PgConfig() config.PGConfig {
	if sp.pgConfig == nil {
		cfg, err := env.NewPGConfig()
		if err != nil {
			panic("failed to get database config: " + err.Error())
		}
		sp.pgConfig = cfg
	}
	return sp.pgConfig
}

func (sp *ServiceProvider) RedisCfg() config.RedisConfig {
	if sp.redisCfg == nil {
		cfg, err := env.NewRedisConfig()
		if err != nil {
			panic("failed to get redis config: " + err.Error())
		}
		sp.redisCfg = cfg
	}
	return sp.redisCfg
}

func (sp *ServiceProvider) AMQPCfg() config.AMQPConfig {
	if sp.amqpCfg == nil {
		cfg, err := env.NewAMQPConfig()
		if err != nil {
			panic("failed to get amqp config: " + err.Error())
		}
		sp.amqpCfg = cfg
	}
	return sp.amqpCfg
}

func (sp *ServiceProvider) JWTCfg() config.JWTConfig {
	if sp.jwtCfg == nil {
		cfg, err := env.NewJWTConfig()
		if err != nil {
			panic("failed to get jwt config: " + err.Error())
		}
		sp.jwtCfg = cfg
	}
	return sp.jwtCfg
}

func (sp *ServiceProvider) HTTPCfg() config.HTTPConfig {
	if sp.httpCfg == nil {
		cfg, err := env.NewHTTPConfig()
		if err != nil {
			panic("failed to get http config: " + err.Error())
		}
		sp.httpCfg = cfg
	}
	return sp.httpCfg
}

// usePostgres без PG_DSN все хранится в памяти процесса
func (sp *ServiceProvider) usePostgres() bool {
	return sp.PgConfig().DSN() != ""
}

func (sp *ServiceProvider) DBClient(ctx context.Context) *pgxpool.Pool {
	if sp.dbClient == nil {
		dbc, err := pgxpool.New(ctx, sp.PgConfig().DSN())
		if err != nil {
			panic("failed to create db pool: " + err.Error())
		}
		err = dbc.Ping(ctx)
		if err != nil {
			panic("failed to ping db: " + err.Error())
		}
		err = migration.Up(ctx, dbc)
		if err != nil {
			panic("failed to migrate db: " + err.Error())
		}
		sp.dbClient = dbc
		sp.closers = append(sp.closers, dbc.Close)
	}
	return sp.dbClient
}

func (sp *ServiceProvider) MemStore() *memory.Store {
	if sp.memStore == nil {
		sp.Logger().Warn("PG_DSN is empty, using in-memory storage")
		sp.memStore = memory.NewStore()
	}
	return sp.memStore
}

func (sp *ServiceProvider) TXManager(ctx context.Context) cascade.TxManager {
	if sp.txManager == nil {
		if !sp.usePostgres() {
			sp.txManager = sp.MemStore()
			return sp.txManager
		}

		m, err := manager.New(trmpgx.NewDefaultFactory(sp.DBClient(ctx)))
		if err != nil {
			panic("failed to create tx manager: " + err.Error())
		}
		sp.txManager = m
	}
	return sp.txManager
}

func (sp *ServiceProvider) SessionRepository(ctx context.Context) repository.SessionRepository {
	if sp.sessionRepo == nil {
		if sp.usePostgres() {
			sp.sessionRepo = session_repo.NewSessionRepository(sp.DBClient(ctx))
		} else {
			sp.sessionRepo = sp.MemStore().Sessions()
		}
	}
	return sp.sessionRepo
}

func (sp *ServiceProvider) SpinLogRepository(ctx context.Context) repository.SpinLogRepository {
	if sp.spinLogRepo == nil {
		if sp.usePostgres() {
			sp.spinLogRepo = spin_log_repo.NewSpinLogRepository(sp.DBClient(ctx))
		} else {
			sp.spinLogRepo = sp.MemStore().SpinLog()
		}
	}
	return sp.spinLogRepo
}

func (sp *ServiceProvider) PurchaseRepository(ctx context.Context) repository.PurchaseRepository {
	if sp.purchaseRepo == nil {
		if sp.usePostgres() {
			sp.purchaseRepo = purchase_repo.NewPurchaseRepository(sp.DBClient(ctx))
		} else {
			sp.purchaseRepo = sp.MemStore().Purchases()
		}
	}
	return sp.purchaseRepo
}

func (sp *ServiceProvider) LedgerRepository(ctx context.Context) repository.LedgerRepository {
	if sp.ledgerRepo == nil {
		if sp.usePostgres() {
			sp.ledgerRepo = ledger_repo.NewLedgerRepository(sp.DBClient(ctx))
		} else {
			sp.ledgerRepo = sp.MemStore().Ledger()
		}
	}
	return sp.ledgerRepo
}

func (sp *ServiceProvider) StatsRepository() repository.StatsRepository {
	if sp.statsRepo == nil {
		cfg := sp.GameCfg()
		sp.statsRepo = stats_repo.NewStatsRepository(cfg.TargetRTP(), cfg.StatsWindow(), sp.Logger())
	}
	return sp.statsRepo
}

func (sp *ServiceProvider) RedisClient() redis.UniversalClient {
	if sp.redisClient == nil {
		cfg := sp.RedisCfg()
		c := redis.NewClient(&redis.Options{
			Addr:     cfg.Address(),
			Password: cfg.Password(),
			DB:       cfg.DB(),
		})
		sp.redisClient = c
		sp.closers = append(sp.closers, func() { _ = c.Close() })
	}
	return sp.redisClient
}

// Locker redis, если задан REDIS_ADDR, иначе блокировка внутри процесса
func (sp *ServiceProvider) Locker(ctx context.Context) lock.Locker {
	if sp.locker == nil {
		if sp.RedisCfg().Address() == "" {
			sp.locker = lock.NewLocal()
			return sp.locker
		}

		client := sp.RedisClient()
		if err := client.Ping(ctx).Err(); err != nil {
			panic("failed to ping redis: " + err.Error())
		}
		sp.locker = lock.NewRedis(client, sp.RedisCfg().LockTTL(), sp.Logger())
	}
	return sp.locker
}

func (sp *ServiceProvider) AuditPublisher() audit.Publisher {
	if sp.publisher == nil {
		url := sp.AMQPCfg().URL()
		if url == "" {
			sp.publisher = audit.NewLogPublisher(sp.Logger())
			return sp.publisher
		}

		p, err := audit.NewAMQPPublisher(url)
		if err != nil {
			panic("failed to connect to amqp: " + err.Error())
		}
		sp.publisher = p
		sp.closers = append(sp.closers, func() { _ = p.Close() })
	}
	return sp.publisher
}

func (sp *ServiceProvider) AuditWorker() *audit.Worker {
	if sp.auditWorker == nil {
		sp.auditWorker = audit.NewWorker(sp.AuditPublisher(), sp.AMQPCfg().BufferSize(), sp.Logger())
	}
	return sp.auditWorker
}

func (sp *ServiceProvider) CascadeService(ctx context.Context) service.CascadeService {
	if sp.cascadeServ == nil {
		sp.cascadeServ = cascade.NewCascadeService(cascade.Deps{
			Cfg:       sp.GameCfg(),
			Sessions:  sp.SessionRepository(ctx),
			Spins:     sp.SpinLogRepository(ctx),
			Ledger:    sp.LedgerRepository(ctx),
			Stats:     sp.StatsRepository(),
			TxManager: sp.TXManager(ctx),
			Locker:    sp.Locker(ctx),
			Audit:     sp.AuditWorker(),
			Logger:    sp.Logger(),
		})
	}
	return sp.cascadeServ
}

func (sp *ServiceProvider) CascadeHandler(ctx context.Context) *cascadeAPI.Handler {
	if sp.cascadeHand == nil {
		sp.cascadeHand = cascadeAPI.NewHandler(cascadeAPI.HandlerDeps{
			Serv:   sp.CascadeService(ctx),
			Logger: sp.Logger(),
		})
	}
	return sp.cascadeHand
}

func (sp *ServiceProvider) Router(ctx context.Context) chi.Router {
	if sp.router == nil {
		r := chi.NewRouter()

		r.Use(chimw.RequestID)
		r.Use(chimw.Recoverer)

		// CORS middleware
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: false,
			MaxAge:           60 * 15,
		}))

		// Cascade endpoints
		cascadeHandler := sp.CascadeHandler(ctx)
		r.Route("/cascade", func(rr chi.Router) {
			rr.Use(middleware.Auth(sp.JWTCfg().AccessTokenSecretKey()))
			cascadeHandler.Register(rr)
		})

		sp.router = r
	}
	return sp.router
}

// Close освобождает ресурсы в обратном порядке
func (sp *ServiceProvider) Close() {
	for i := len(sp.closers) - 1; i >= 0; i-- {
		sp.closers[i]()
	}
}
