package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

type Config struct {
	RPCURL     string        `env:"RPC_URL"`
	Port       int           `env:"PORT"`
	RPCTimeout time.Duration `env:"RPC_TIMEOUT"`

	StoreBackend string `env:"STORE_BACKEND"`
	PostgresURL  string `env:"POSTGRES_URL"`
	BadgerPath   string `env:"BADGER_PATH"`

	StaticDir string `env:"STATIC_DIR"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
	NotifyBuffer   int    `env:"NOTIFY_BUFFER"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}
	return parseConfig()
}

func parseConfig() (Config, error) {
	config := Config{
		RPCURL:       "https://eth.llamarpc.com",
		Port:         3000,
		RPCTimeout:   15 * time.Second,
		StoreBackend: StoreMemory,
		BadgerPath:   "./data/ledger",
		LogLevel:     "info",
		LogFormat:    "console",
		NotifyBuffer: 256,
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}
	config.StoreBackend = strings.ToLower(strings.TrimSpace(config.StoreBackend))

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	var errs []error

	if c.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is empty"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.RPCTimeout <= 0 {
		errs = append(errs, fmt.Errorf("RPC_TIMEOUT must be positive: %s", c.RPCTimeout))
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required for the postgres backend"))
		}
	case StoreBadger:
		if c.BadgerPath == "" {
			errs = append(errs, errors.New("BADGER_PATH is required for the badger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat))
	}
	if c.TelegramToken != "" && c.NotifyBuffer <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_BUFFER must be positive: %d", c.NotifyBuffer))
	}

	return errors.Join(errs...)
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
