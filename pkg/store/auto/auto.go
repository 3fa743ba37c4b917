// Package auto selects a kvcache storage backend from configuration.
// A configured directory selects the durable local filesystem store;
// no directory selects the volatile in-memory store.
package auto

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codeGROOVE-dev/kvcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/memory"
)

// Store is the backend interface returned by New.
// Matches kvcache.Store so callers can pass it to kvcache.New.
type Store interface {
	List(ctx context.Context) (map[string]string, error)
	Add(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) (bool, error)
	Modify(ctx context.Context, key, value string) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Close() error
}

// New returns a localfs store rooted at dir, or a memory store if dir is empty.
// Options apply to the localfs store only.
func New(dir string, opts ...localfs.Option) (Store, error) {
	if dir == "" {
		slog.Info("using in-memory store; entries will not survive a restart")
		return memory.New(), nil
	}

	s, err := localfs.New(dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	slog.Info("using local filesystem store", "dir", s.Dir)
	return s, nil
}
