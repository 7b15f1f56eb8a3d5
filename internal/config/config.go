// Package config loads settings from defaults, an optional YAML or .env
// file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int           `mapstructure:"port"`
	StoreDriver    string        `mapstructure:"store_driver"`
	DBPath         string        `mapstructure:"db_path"`
	StoreDSN       string        `mapstructure:"store_dsn"`
	MoveMode       string        `mapstructure:"move_mode"`
	NATSURL        string        `mapstructure:"nats_url"`
	LogLevel       string        `mapstructure:"log_level"`
	LogFormat      string        `mapstructure:"log_format"`
	ExportCacheTTL time.Duration `mapstructure:"export_cache_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 4000)
	v.SetDefault("store_driver", "sqlite")
	v.SetDefault("db_path", "database.sqlite")
	v.SetDefault("store_dsn", "")
	v.SetDefault("move_mode", "transactional")
	v.SetDefault("nats_url", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("export_cache_ttl", 30*time.Second)
}

// Load reads path when given, else ./.env when present.
// Environment variables such as PORT or DB_PATH override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.StoreDriver {
	case "sqlite":
	case "mysql":
		if c.StoreDSN == "" {
			return errors.New("store_dsn is required for the mysql driver")
		}
	default:
		return fmt.Errorf("unknown store_driver %q", c.StoreDriver)
	}
	switch c.MoveMode {
	case "transactional", "sentinel":
	default:
		return fmt.Errorf("unknown move_mode %q", c.MoveMode)
	}
	return nil
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// DSN is the data source for the configured driver.
func (c *Config) DSN() string {
	if c.StoreDriver == "mysql" {
		return c.StoreDSN
	}
	return c.DBPath
}
