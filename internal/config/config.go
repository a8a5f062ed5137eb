package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"infinity_stones/internal/engine"
	"infinity_stones/internal/logger"
)

func Load(path string) error {
	err := godotenv.Load(path)
	if err != nil {
		return err
	}
	return nil
}

// GameConfig математика игры и настройки вокруг нее
type GameConfig interface {
	Engine() engine.Config
	// BuyBonusCostX цена покупки бонуса в ставках, 0: покупка выключена
	BuyBonusCostX() decimal.Decimal
	TargetRTP() float64
	StatsWindow() int
}

type HTTPConfig interface {
	Address() string
	ShutdownTimeout() time.Duration
}

// PGConfig пустой DSN означает хранилище в памяти
type PGConfig interface {
	DSN() string
}

// RedisConfig пустой адрес означает блокировку внутри процесса
type RedisConfig interface {
	Address() string
	Password() string
	DB() int
	LockTTL() time.Duration
}

// AMQPConfig пустой URL означает аудит в лог
type AMQPConfig interface {
	URL() string
	BufferSize() int
}

type JWTConfig interface {
	AccessTokenSecretKey() []byte
	AccessTokenDuration() time.Duration
}

type LogConfig interface {
	Mode() logger.Mode
}
