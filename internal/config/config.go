// Package config loads server configuration from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	EventBus EventBusConfig `yaml:"eventbus"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the SQLite connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // trace, debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LedgerConfig configures billing rules that are deployment-tunable.
type LedgerConfig struct {
	// PaymentEditWindow is how long after creation a payment stays editable.
	PaymentEditWindow string `yaml:"payment_edit_window"`
}

// EventBusConfig configures the in-process event bus.
type EventBusConfig struct {
	BufferSize int `yaml:"buffer_size"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			DSN: "file:lawoffice.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Ledger: LedgerConfig{
			PaymentEditWindow: "24h",
		},
		EventBus: EventBusConfig{
			BufferSize: 256,
		},
	}
}

// Load builds a Config. path may be empty; a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	// .env is optional, same as in local development.
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("APP_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PAYMENT_EDIT_WINDOW"); v != "" {
		cfg.Ledger.PaymentEditWindow = v
	}
	if v := os.Getenv("EVENTBUS_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EventBus.BufferSize = n
		}
	}
}

// Validate checks that durations parse and numeric values are in range.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if _, err := c.ShutdownTimeout(); err != nil {
		return err
	}
	if w, err := c.PaymentEditWindow(); err != nil {
		return err
	} else if w <= 0 {
		return fmt.Errorf("ledger.payment_edit_window must be positive: %s", c.Ledger.PaymentEditWindow)
	}
	return nil
}

// ShutdownTimeout parses Server.ShutdownTimeout.
func (c Config) ShutdownTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	return d, nil
}

// PaymentEditWindow parses Ledger.PaymentEditWindow.
func (c Config) PaymentEditWindow() (time.Duration, error) {
	d, err := time.ParseDuration(c.Ledger.PaymentEditWindow)
	if err != nil {
		return 0, fmt.Errorf("ledger.payment_edit_window: %w", err)
	}
	return d, nil
}
