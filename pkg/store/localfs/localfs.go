// Package localfs provides crash-safe local filesystem storage for kvcache.
//
// Each entry lives in its own file, named by the hex digest of its key. A write
// lands in a temporary file, is fsynced, renamed over the entry name and then the
// directory is fsynced, so a committed entry survives a crash and a reader never
// observes a partially written file.
package localfs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/codeGROOVE-dev/kvcache/pkg/store/compress"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/hash"
)

// TempSuffix is appended to an entry name while its new content is being written.
const TempSuffix = ".new"

// ErrInvalidUTF8 is returned when a key or value is not valid UTF-8 text.
var ErrInvalidUTF8 = errors.New("not valid UTF-8")

// record is the serialized content of an entry file.
type record struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Store implements file-per-entry persistence in a single directory.
type Store struct {
	Dir        string // Exported for testing - directory path
	hasher     hash.Hasher
	compressor compress.Compressor
	nameLen    int

	rename  func(oldpath, newpath string) error
	fsync   func(f *os.File) error
	syncDir func(dir string) error
}

// Option configures a Store.
type Option func(*Store)

// WithHasher sets the hash used to derive entry file names (default: BLAKE3).
func WithHasher(h hash.Hasher) Option {
	return func(s *Store) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithCompressor compresses entry file content (default: none).
// A directory must be reopened with the compressor it was written with.
func WithCompressor(c compress.Compressor) Option {
	return func(s *Store) {
		if c != nil {
			s.compressor = c
		}
	}
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("dir cannot be empty")
	}
	if strings.Contains(dir, "\x00") {
		return nil, errors.New("invalid dir: contains null byte")
	}

	s := &Store{
		Dir:        dir,
		hasher:     hash.BLAKE3(),
		compressor: compress.None(),
		rename:     os.Rename,
		fsync:      (*os.File).Sync,
		syncDir:    syncDirectory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.nameLen = hex.EncodedLen(s.hasher.Size())

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	testFile := filepath.Join(dir, ".write_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("cache dir not writable: %w", err)
	}
	_ = os.Remove(testFile) //nolint:errcheck // best-effort cleanup

	slog.Debug("opened local store", "dir", dir, "hash", s.hasher.Name())
	return s, nil
}

// keyToFilename converts a cache key to its entry file name.
func (s *Store) keyToFilename(key string) string {
	return hex.EncodeToString(s.hasher.Sum([]byte(key)))
}

// Location returns the full file path where a key is stored.
func (s *Store) Location(key string) string {
	return filepath.Join(s.Dir, s.keyToFilename(key))
}

// isEntryFile reports whether a directory entry name can hold an entry.
// Temporary and foreign files have a different length and are ignored.
func (s *Store) isEntryFile(name string) bool {
	return len(name) == s.nameLen
}

// Get retrieves a value from its entry file.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	fn := s.Location(key)
	data, err := os.ReadFile(fn)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read file: %w", err)
	}

	r, err := s.decode(data)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", fn, err)
	}
	if r.Key != key {
		return "", false, fmt.Errorf("%s: holds key %q, not %q", fn, r.Key, key)
	}
	return r.Value, true, nil
}

// Add writes an entry durably, replacing any previous value.
func (s *Store) Add(_ context.Context, key, value string) error {
	return s.write(key, value)
}

// Modify overwrites an existing entry. It reports false without writing
// anything when the entry does not exist.
//
// The existence check and the write are not atomic together: a concurrent
// Delete between them lets Modify re-create the entry.
func (s *Store) Modify(_ context.Context, key, value string) (bool, error) {
	if err := validate(key, value); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.Location(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat file: %w", err)
	}
	if err := s.write(key, value); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes an entry file and makes the removal durable.
func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	if err := os.Remove(s.Location(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove file: %w", err)
	}
	if err := s.syncDir(s.Dir); err != nil {
		return false, err
	}
	return true, nil
}

// List reads every entry file in the directory.
func (s *Store) List(_ context.Context) (map[string]string, error) {
	des, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	out := make(map[string]string, len(des))
	for _, de := range des {
		if de.IsDir() || !s.isEntryFile(de.Name()) {
			continue
		}
		fn := filepath.Join(s.Dir, de.Name())
		data, err := os.ReadFile(fn)
		if err != nil {
			// Removed after ReadDir saw it.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", fn, err)
		}
		r, err := s.decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn, err)
		}
		out[r.Key] = r.Value
	}
	return out, nil
}

// Close cleans up resources.
func (*Store) Close() error {
	// No resources to clean up for file-based persistence
	return nil
}

// write commits a record with the temp file, fsync, rename, dir fsync sequence.
func (s *Store) write(key, value string) error {
	if err := validate(key, value); err != nil {
		return err
	}
	data, err := s.encode(record{Key: key, Value: value})
	if err != nil {
		return err
	}

	fn := s.Location(key)
	tmp := fn + TempSuffix
	if err := s.writeSynced(tmp, data); err != nil {
		rmErr := removeIfExists(tmp)
		return errors.Join(err, rmErr)
	}

	// Commit point: the entry name now refers to the complete new content.
	if err := s.rename(tmp, fn); err != nil {
		rmErr := removeIfExists(tmp)
		return errors.Join(fmt.Errorf("rename file: %w", err), rmErr)
	}

	return s.syncDir(s.Dir)
}

// validate rejects text that the JSON record cannot carry byte for byte.
func validate(key, value string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("key %q: %w", key, ErrInvalidUTF8)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("value for key %q: %w", key, ErrInvalidUTF8)
	}
	return nil
}

func (s *Store) encode(r record) ([]byte, error) {
	jsonData, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode entry: %w", err)
	}
	data, err := s.compressor.Encode(jsonData)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return data, nil
}

func (s *Store) decode(data []byte) (record, error) {
	var r record
	jsonData, err := s.compressor.Decode(data)
	if err != nil {
		return r, fmt.Errorf("decompress: %w", err)
	}
	if err := json.Unmarshal(jsonData, &r); err != nil {
		return r, fmt.Errorf("decode entry: %w", err)
	}
	return r, nil
}

// writeSynced writes data to name and forces it to stable storage before closing.
func (s *Store) writeSynced(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(fmt.Errorf("write temp file: %w", err), f.Close())
	}
	if err := s.fsync(f); err != nil {
		return errors.Join(fmt.Errorf("sync temp file: %w", err), f.Close())
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	return nil
}

// syncDirectory makes directory entry changes (renames, removals) durable.
func syncDirectory(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	if err := d.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync dir: %w", err), d.Close())
	}
	if err := d.Close(); err != nil {
		return fmt.Errorf("close dir: %w", err)
	}
	return nil
}

func removeIfExists(name string) error {
	if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}
