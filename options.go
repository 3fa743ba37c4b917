package kvcache

import "log/slog"

// config holds configuration for a Cache.
type config struct {
	logger *slog.Logger
}

func defaultConfig() *config {
	return &config{
		logger: slog.Default(),
	}
}

// Option configures a Cache.
type Option func(*config)

// WithLogger sets the logger used to report storage failures.
// Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
