package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Mode режим логгера
type Mode string

const (
	ModeDev     Mode = "dev"
	ModeProd    Mode = "prod"
	ModeSilence Mode = "silence"
)

// New собирает zap логгер по режиму. prod пишет JSON в stdout, dev пишет в консоль с debug
func New(mode Mode) (*zap.Logger, error) {
	switch mode {
	case ModeProd:
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		return cfg.Build()
	case ModeSilence:
		return zap.NewNop(), nil
	default:
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
}

// Session поля сессии и запроса для логов спина
func Session(sessionID, requestID string) []zap.Field {
	return []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("request_id", requestID),
	}
}
