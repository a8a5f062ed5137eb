package env

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"infinity_stones/internal/config"
)

const (
	redisAddrEnvName     = "REDIS_ADDR"
	redisPasswordEnvName = "REDIS_PASSWORD"
	redisDBEnvName       = "REDIS_DB"
	lockTTLEnvName       = "SPIN_LOCK_TTL"

	defaultLockTTL = 5 * time.Second
)

type redisConfig struct {
	address  string
	password string
	db       int
	lockTTL  time.Duration
}

func NewRedisConfig() (config.RedisConfig, error) {
	cfg := &redisConfig{
		address:  os.Getenv(redisAddrEnvName),
		password: os.Getenv(redisPasswordEnvName),
		lockTTL:  defaultLockTTL,
	}

	if raw := os.Getenv(redisDBEnvName); len(raw) != 0 {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db: %w", err)
		}
		cfg.db = db
	}
	if raw := os.Getenv(lockTTLEnvName); len(raw) != 0 {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid spin lock ttl: %w", err)
		}
		cfg.lockTTL = ttl
	}
	return cfg, nil
}

func (cfg *redisConfig) Address() string {
	return cfg.address
}

func (cfg *redisConfig) Password() string {
	return cfg.password
}

func (cfg *redisConfig) DB() int {
	return cfg.db
}

func (cfg *redisConfig) LockTTL() time.Duration {
	return cfg.lockTTL
}
