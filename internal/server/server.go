// Package server wires configuration, storage and the HTTP API into a running process.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/codeGROOVE-dev/kvcache"
	"github.com/codeGROOVE-dev/kvcache/internal/config"
	"github.com/codeGROOVE-dev/kvcache/internal/httpapi"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/auto"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/compress"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/hash"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/localfs"
)

// LockFile is held exclusively inside the cache directory while a server uses it.
const LockFile = ".lock"

// Run serves the cache until ctx is done.
func Run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return Serve(ctx, ln, cfg, log)
}

// Serve is Run on an existing listener. It closes ln.
func Serve(ctx context.Context, ln net.Listener, cfg config.Config, log *slog.Logger) (err error) {
	if log == nil {
		log = slog.Default()
	}

	store, unlock, err := openStore(cfg)
	if err != nil {
		_ = ln.Close() //nolint:errcheck // already failing
		return err
	}
	defer unlock()

	cache := kvcache.New(store, kvcache.WithLogger(log))
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	srv := &http.Server{
		Handler:           httpapi.New(cache, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "url", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	//nolint:contextcheck // shutdown must outlive the cancelled serving context
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// openStore builds the configured backend. For a durable backend it also takes
// the directory lock, released by the returned func.
func openStore(cfg config.Config) (auto.Store, func(), error) {
	if cfg.CacheDir == "" {
		s, err := auto.New("")
		return s, func() {}, err
	}

	h, err := hash.ByName(cfg.Hash)
	if err != nil {
		return nil, nil, err
	}
	c, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, nil, err
	}

	if err := os.MkdirAll(cfg.CacheDir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create cache dir: %w", err)
	}
	unlock, err := lockDir(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}

	s, err := auto.New(cfg.CacheDir, localfs.WithHasher(h), localfs.WithCompressor(c))
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return s, unlock, nil
}

// lockDir takes an exclusive lock on dir so that only one process writes to it.
// It blocks while another process holds the lock.
func lockDir(dir string) (func(), error) {
	path := filepath.Join(dir, LockFile)
	f, err := lockedfile.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("lock cache dir: %w", err)
	}
	return func() {
		if err := f.Close(); err != nil {
			slog.Debug("failed to release cache dir lock", "file", path, "error", err)
		}
	}, nil
}
