package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"time"

	"github.com/stockly-app/sessionkit/pkg/redis"
)

// Store backends understood by the client.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the client configuration, populated from STOCKLY_* variables.
type Config struct {
	APIBase        string        `env:"STOCKLY_API_BASE" envDefault:"http://127.0.0.1:8000"`
	RequestTimeout time.Duration `env:"STOCKLY_REQUEST_TIMEOUT" envDefault:"30s"`

	StoreBackend   string `env:"STOCKLY_STORE_BACKEND" envDefault:"file"`
	StorePath      string `env:"STOCKLY_STORE_PATH" envDefault:".stockly/credentials.json"`
	StoreNamespace string `env:"STOCKLY_STORE_NAMESPACE" envDefault:"@stockly"`
	// StoreKey is an optional hex-encoded 32 byte key; when set, stored values
	// are encrypted at rest.
	StoreKey string `env:"STOCKLY_STORE_KEY"`

	Language string `env:"STOCKLY_LANGUAGE" envDefault:"ar"`

	Env       string `env:"STOCKLY_ENV" envDefault:"development"`
	LogLevel  string `env:"STOCKLY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"STOCKLY_LOG_FORMAT"`

	Redis redis.Config `envPrefix:"STOCKLY_"`
}

// Validate checks values that env tags cannot express.
func (c Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: STOCKLY_API_BASE must be an absolute http(s) URL, got %q", ErrInvalidConfig, c.APIBase)
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.StorePath == "" {
			return fmt.Errorf("%w: STOCKLY_STORE_PATH is required for the file backend", ErrInvalidConfig)
		}
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.StoreBackend)
	}

	if c.StoreKey != "" {
		if _, err := c.StoreKeyBytes(); err != nil {
			return err
		}
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: STOCKLY_REQUEST_TIMEOUT must be positive", ErrInvalidConfig)
	}

	return nil
}

// StoreKeyBytes decodes StoreKey. It returns nil, nil when no key is set.
func (c Config) StoreKeyBytes() ([]byte, error) {
	if c.StoreKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.StoreKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: STOCKLY_STORE_KEY must be 64 hex characters", ErrInvalidConfig)
	}
	return key, nil
}
