// Package main runs the kvcache HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeGROOVE-dev/kvcache/internal/config"
	"github.com/codeGROOVE-dev/kvcache/internal/server"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		exitf("kvcache: %v", err)
	}
	lvl, err := cfg.Level()
	if err != nil {
		exitf("kvcache: %v", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, log); err != nil {
		stop()
		exitf("kvcache: %v", err)
	}
}

// exitf writes a formatted error message to stderr and exits with code 1.
func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
