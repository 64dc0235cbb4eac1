// Package config assembles the runtime configuration for roload commands.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds everything the roload commands need.
type Config struct {
	DataDir  string // directory scanned for *.xml event documents
	DBPath   string // SQLite database file, or ":memory:"
	Workers  int    // document parse parallelism; 1 means fully sequential
	LogLevel string // default log level; -v/-q flags take precedence
}

func defaults() Config {
	return Config{
		DataDir:  "data",
		DBPath:   "repair.db",
		Workers:  1,
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional .env file, and
// ROLOAD_* environment variables, in that order. Command-line flags are
// applied on top by the caller.
func Load() (Config, error) {
	// A missing .env is fine; it is a convenience for local runs.
	_ = godotenv.Load()

	cfg := defaults()
	if v := os.Getenv("ROLOAD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ROLOAD_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ROLOAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ROLOAD_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid ROLOAD_WORKERS value %q: want a positive integer", v)
		}
		cfg.Workers = n
	}
	return cfg, nil
}
