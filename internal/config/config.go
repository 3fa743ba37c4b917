// Package config loads kvcache server settings from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/codeGROOVE-dev/kvcache/pkg/store/compress"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/hash"
)

// Config holds server configuration. Flags override environment variables.
type Config struct {
	Address         string        `env:"KVCACHE_ADDRESS" envDefault:"127.0.0.1:8080"`
	CacheDir        string        `env:"KVCACHE_CACHE_DIR"`
	Hash            string        `env:"KVCACHE_HASH" envDefault:"blake3"`
	Compression     string        `env:"KVCACHE_COMPRESSION" envDefault:"none"`
	LogLevel        string        `env:"KVCACHE_LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"KVCACHE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Parse reads the environment, then applies flags from args, then validates.
func Parse(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Address, "address", cfg.Address, "Address to listen on")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for durable storage (empty: in-memory)")
	fs.StringVar(&cfg.Hash, "hash", cfg.Hash, "Entry file name hash: blake3 or sha256")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Entry file compression: none, s2, zstd or lz4")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Graceful shutdown budget")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every setting names something that exists.
func (c Config) Validate() error {
	var errs []error
	if c.Address == "" {
		errs = append(errs, errors.New("address cannot be empty"))
	}
	if _, err := hash.ByName(c.Hash); err != nil {
		errs = append(errs, err)
	}
	if _, err := compress.ByName(c.Compression); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}

// Level returns the configured slog level.
func (c Config) Level() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}
