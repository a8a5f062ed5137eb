package env

import (
	"fmt"
	"os"
	"time"

	"infinity_stones/internal/config"
)

const (
	httpAddrEnvName        = "HTTP_ADDR"
	shutdownTimeoutEnvName = "HTTP_SHUTDOWN_TIMEOUT"

	defaultHTTPAddr        = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

type httpConfig struct {
	address         string
	shutdownTimeout time.Duration
}

func NewHTTPConfig() (config.HTTPConfig, error) {
	addr := os.Getenv(httpAddrEnvName)
	if len(addr) == 0 {
		addr = defaultHTTPAddr
	}

	timeout := defaultShutdownTimeout
	if raw := os.Getenv(shutdownTimeoutEnvName); len(raw) != 0 {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
		}
		timeout = parsed
	}

	return &httpConfig{
		address:         addr,
		shutdownTimeout: timeout,
	}, nil
}

func (cfg *httpConfig) Address() string {
	return cfg.address
}

func (cfg *httpConfig) ShutdownTimeout() time.Duration {
	return cfg.shutdownTimeout
}
