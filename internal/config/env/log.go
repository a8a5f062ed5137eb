package env

import (
	"fmt"
	"os"

	"infinity_stones/internal/config"
	"infinity_stones/internal/logger"
)

const logModeEnvName = "LOG_MODE"

type logConfig struct {
	mode logger.Mode
}

func NewLogConfig() (config.LogConfig, error) {
	mode := logger.Mode(os.Getenv(logModeEnvName))
	switch mode {
	case "":
		mode = logger.ModeDev
	case logger.ModeDev, logger.ModeProd, logger.ModeSilence:
	default:
		return nil, fmt.Errorf("unknown log mode %q", mode)
	}
	return &logConfig{mode: mode}, nil
}

func (cfg *logConfig) Mode() logger.Mode {
	return cfg.mode
}
