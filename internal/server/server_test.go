package server

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/kvcache/internal/config"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/localfs"
)

var quiet = slog.New(slog.DiscardHandler)

func testConfig(dir string) config.Config {
	return config.Config{
		Address:         "127.0.0.1:0",
		CacheDir:        dir,
		Hash:            "blake3",
		Compression:     "s2",
		LogLevel:        "info",
		ShutdownTimeout: 5 * time.Second,
	}
}

// start runs Serve in the background and returns its base URL and a stop func
// that waits for Serve to return.
func start(t *testing.T, cfg config.Config) (string, func() error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, cfg, quiet) }()

	return "http://" + ln.Addr().String(), func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Serve did not return after cancel")
			return nil
		}
	}
}

func request(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return resp.StatusCode, string(data)
}

func TestServe_PersistsAcrossRestart(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	cfg := testConfig(dir)

	url, stop := start(t, cfg)
	if code, _ := request(t, http.MethodPut, url+"/add", `{"key":"a","value":"x"}`); code != http.StatusCreated {
		t.Fatalf("PUT /add = %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFile)); err != nil {
		t.Errorf("lock file missing while serving: %v", err)
	}
	if err := stop(); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	url, stop = start(t, cfg)
	defer func() {
		if err := stop(); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	code, body := request(t, http.MethodGet, url+"/get", `{"key":"a"}`)
	if code != http.StatusOK || body != "x" {
		t.Errorf("GET /get after restart = %d %q; want 200 x", code, body)
	}
	code, body = request(t, http.MethodGet, url+"/list", "")
	if code != http.StatusOK || body != `{"a":"x"}` {
		t.Errorf("GET /list = %d %q", code, body)
	}
}

func TestServe_Memory(t *testing.T) {
	url, stop := start(t, testConfig(""))
	if code, _ := request(t, http.MethodPut, url+"/add", `{"key":"a","value":"x"}`); code != http.StatusCreated {
		t.Fatalf("PUT /add = %d", code)
	}
	if code, body := request(t, http.MethodGet, url+"/get", `{"key":"a"}`); code != http.StatusOK || body != "x" {
		t.Errorf("GET /get = %d %q", code, body)
	}
	if err := stop(); err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestServe_LockFileIgnoredByList(t *testing.T) {
	dir := t.TempDir()
	url, stop := start(t, testConfig(dir))
	defer func() { _ = stop() }() //nolint:errcheck // cleanup

	code, body := request(t, http.MethodGet, url+"/list", "")
	if code != http.StatusOK || body != "{}" {
		t.Errorf("GET /list = %d %q; want 200 {}", code, body)
	}
}

func TestServe_BadCacheDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	if err := Serve(context.Background(), ln, testConfig(filepath.Join(file, "sub")), quiet); err == nil {
		t.Fatal("Serve with an unusable cache dir should fail")
	}
}

func TestServe_DirWrittenWithConfiguredCompressor(t *testing.T) {
	dir := t.TempDir()
	url, stop := start(t, testConfig(dir))
	if code, _ := request(t, http.MethodPut, url+"/add", `{"key":"k","value":"v"}`); code != http.StatusCreated {
		t.Fatalf("PUT /add = %d", code)
	}
	if err := stop(); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	plain, err := localfs.New(dir)
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	if _, _, err := plain.Get(context.Background(), "k"); err == nil {
		t.Error("entry should be s2-compressed and unreadable without the compressor")
	}
}

func TestRun_ListenError(t *testing.T) {
	cfg := testConfig("")
	cfg.Address = "not-an-address"
	if err := Run(context.Background(), cfg, quiet); err == nil {
		t.Fatal("Run with an invalid address should fail")
	}
}
