// Package config loads the startup configuration object from environment
// variables. There is no
// process-wide mutable config singleton; every collaborator is handed the
// *Config it needs at construction time.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Backend identifies the selected relational database driver.
type Backend string

const (
	BackendSQLite   Backend = "sqlite3"
	BackendMySQL    Backend = "mysql"
	BackendPostgres Backend = "postgres"
)

// Config is the single startup-built configuration object consumed by the
// storage layer, the upstream client, and the collector.
type Config struct {
	NodeEnv string

	Backend      Backend
	DBHost       string
	DBPort       string
	DBUser       string
	DBPass       string
	DBName       string
	SQLitePath   string

	NodeHost string
	NodePort int
	NodeSSL  bool

	HTTPPort int

	FeeAddress string
	FeeAmount  uint64

	LogLevel string
}

// Load builds a Config from the process environment. It returns a
// Configuration-kind error (per the error taxonomy) when a backend that
// requires DB_* credentials is selected but they are not all present.
func Load() (*Config, error) {
	cfg := &Config{
		NodeEnv:    getenv("NODE_ENV", ""),
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"),
		DBName:     os.Getenv("DB_NAME"),
		SQLitePath: getenv("SQLITE_PATH", "blockchain.sqlite3"),
		NodeHost:   getenv("NODE_HOST", "localhost"),
		NodePort:   11898,
		HTTPPort:   8080,
		FeeAddress: os.Getenv("FEE_ADDRESS"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
	}

	useMySQL := truthy(os.Getenv("USE_MYSQL"))
	usePostgres := truthy(os.Getenv("USE_POSTGRES"))
	if useMySQL && usePostgres {
		return nil, errors.New("USE_MYSQL and USE_POSTGRES are mutually exclusive")
	}
	switch {
	case useMySQL:
		cfg.Backend = BackendMySQL
	case usePostgres:
		cfg.Backend = BackendPostgres
	default:
		cfg.Backend = BackendSQLite
	}

	if cfg.Backend != BackendSQLite {
		missing := []string{}
		for name, v := range map[string]string{
			"DB_HOST": cfg.DBHost, "DB_PORT": cfg.DBPort,
			"DB_USER": cfg.DBUser, "DB_PASS": cfg.DBPass, "DB_NAME": cfg.DBName,
		} {
			if v == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return nil, errors.Errorf("missing required configuration for %s backend: %v", cfg.Backend, missing)
		}
	}

	if port := os.Getenv("NODE_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrap(err, "invalid NODE_PORT")
		}
		cfg.NodePort = p
	}
	cfg.NodeSSL = truthy(os.Getenv("NODE_SSL"))

	if port := os.Getenv("HTTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, errors.Wrap(err, "invalid HTTP_PORT")
		}
		cfg.HTTPPort = p
	}

	if amount := os.Getenv("FEE_AMOUNT"); amount != "" {
		a, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, "invalid FEE_AMOUNT")
		}
		cfg.FeeAmount = a
	}

	if cfg.NodeEnv != "production" {
		fmt.Fprintln(os.Stderr, "warning: NODE_ENV is not set to \"production\"")
	}

	return cfg, nil
}

// MustLoad loads the configuration or terminates the process with exit code
// 1, matching the CLI surface's exit-code contract for every entry point.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func truthy(v string) bool {
	return v == "true" || v == "1"
}
