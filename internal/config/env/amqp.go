package env

import (
	"fmt"
	"os"
	"strconv"

	"infinity_stones/internal/config"
)

const (
	amqpURLEnvName         = "AMQP_URL"
	auditBufferSizeEnvName = "AUDIT_BUFFER_SIZE"

	defaultAuditBufferSize = 1024
)

type amqpConfig struct {
	url        string
	bufferSize int
}

func NewAMQPConfig() (config.AMQPConfig, error) {
	cfg := &amqpConfig{
		url:        os.Getenv(amqpURLEnvName),
		bufferSize: defaultAuditBufferSize,
	}
	if raw := os.Getenv(auditBufferSizeEnvName); len(raw) != 0 {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return nil, fmt.Errorf("invalid audit buffer size %q", raw)
		}
		cfg.bufferSize = size
	}
	return cfg, nil
}

func (cfg *amqpConfig) URL() string {
	return cfg.url
}

func (cfg *amqpConfig) BufferSize() int {
	return cfg.bufferSize
}
