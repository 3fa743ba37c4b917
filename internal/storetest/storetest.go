// Package storetest runs the behavior every kvcache.Store must share.
package storetest

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/codeGROOVE-dev/kvcache"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) kvcache.Store

// Run exercises the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s kvcache.Store)
	}{
		{"EmptyList", testEmptyList},
		{"AbsentKey", testAbsentKey},
		{"AddGet", testAddGet},
		{"AddOverwrites", testAddOverwrites},
		{"Modify", testModify},
		{"DeleteOnce", testDeleteOnce},
		{"ListIsSnapshot", testListIsSnapshot},
		{"UnusualKeys", testUnusualKeys},
		{"RejectsInvalidUTF8", testRejectsInvalidUTF8},
		{"Walkthrough", testWalkthrough},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer func() {
				if err := s.Close(); err != nil {
					t.Logf("Close error: %v", err)
				}
			}()
			tt.fn(t, s)
		})
	}
}

// MustList returns s.List or fails the test.
func MustList(t *testing.T, s kvcache.Store) map[string]string {
	t.Helper()
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	return got
}

// MustAdd calls s.Add or fails the test.
func MustAdd(t *testing.T, s kvcache.Store, key, value string) {
	t.Helper()
	if err := s.Add(context.Background(), key, value); err != nil {
		t.Fatalf("Add(%q): %v", key, err)
	}
}

// WantGet fails the test unless Get(key) returns want and found.
func WantGet(t *testing.T, s kvcache.Store, key, want string, wantFound bool) {
	t.Helper()
	got, found, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q): %v", key, err)
	}
	if found != wantFound {
		t.Fatalf("Get(%q) found = %v; want %v", key, found, wantFound)
	}
	if got != want {
		t.Errorf("Get(%q) = %q; want %q", key, got, want)
	}
}

func testEmptyList(t *testing.T, s kvcache.Store) {
	got := MustList(t, s)
	if got == nil {
		t.Fatal("List on empty store returned nil map")
	}
	if len(got) != 0 {
		t.Errorf("List on empty store = %v; want empty", got)
	}
}

func testAbsentKey(t *testing.T, s kvcache.Store) {
	ctx := context.Background()

	WantGet(t, s, "missing", "", false)

	deleted, err := s.Delete(ctx, "missing")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted {
		t.Error("Delete of absent key returned true")
	}

	modified, err := s.Modify(ctx, "missing", "v")
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if modified {
		t.Error("Modify of absent key returned true")
	}

	WantGet(t, s, "missing", "", false)
	if got := MustList(t, s); len(got) != 0 {
		t.Errorf("Modify of absent key created an entry: %v", got)
	}
}

func testAddGet(t *testing.T, s kvcache.Store) {
	MustAdd(t, s, "some key", "a value")
	WantGet(t, s, "some key", "a value", true)

	if diff := cmp.Diff(map[string]string{"some key": "a value"}, MustList(t, s)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func testAddOverwrites(t *testing.T, s kvcache.Store) {
	MustAdd(t, s, "k", "v1")
	MustAdd(t, s, "k", "v2")
	WantGet(t, s, "k", "v2", true)

	if diff := cmp.Diff(map[string]string{"k": "v2"}, MustList(t, s)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func testModify(t *testing.T, s kvcache.Store) {
	ctx := context.Background()
	MustAdd(t, s, "k", "old")

	modified, err := s.Modify(ctx, "k", "new")
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if !modified {
		t.Fatal("Modify of present key returned false")
	}
	WantGet(t, s, "k", "new", true)

	modified, err = s.Modify(ctx, "other", "x")
	if err != nil {
		t.Fatalf("Modify: %v", err)
	}
	if modified {
		t.Error("Modify of absent key returned true")
	}
	WantGet(t, s, "other", "", false)
}

func testDeleteOnce(t *testing.T, s kvcache.Store) {
	ctx := context.Background()
	MustAdd(t, s, "k", "v")

	for i, want := range []bool{true, false, false} {
		deleted, err := s.Delete(ctx, "k")
		if err != nil {
			t.Fatalf("Delete #%d: %v", i, err)
		}
		if deleted != want {
			t.Errorf("Delete #%d = %v; want %v", i, deleted, want)
		}
	}
	WantGet(t, s, "k", "", false)
}

func testListIsSnapshot(t *testing.T, s kvcache.Store) {
	MustAdd(t, s, "a", "x")
	snap := MustList(t, s)
	snap["b"] = "injected"

	if diff := cmp.Diff(map[string]string{"a": "x"}, MustList(t, s)); diff != "" {
		t.Errorf("mutating a List result changed the store (-want +got):\n%s", diff)
	}
}

func testUnusualKeys(t *testing.T, s kvcache.Store) {
	want := map[string]string{
		"../../../etc/passwd":        "traversal",
		"C:\\Windows\\System32":      "backslashes",
		"":                           "empty key",
		"ключ 🔑":                     "unicode",
		"line\nbreak\x00nul":         "control bytes",
		string(make([]byte, 4096)):   "long key",
		"value with \"quotes\" & {}": "{\"json\": [1, 2]}\n",
	}
	for k, v := range want {
		MustAdd(t, s, k, v)
	}
	for k, v := range want {
		WantGet(t, s, k, v, true)
	}
	if diff := cmp.Diff(want, MustList(t, s)); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}
}

func testRejectsInvalidUTF8(t *testing.T, s kvcache.Store) {
	ctx := context.Background()
	MustAdd(t, s, "k", "valid")

	if err := s.Add(ctx, "k", "\xff\xfe"); err == nil {
		t.Error("Add with an invalid UTF-8 value should fail")
	}
	if err := s.Add(ctx, "\xff", "v"); err == nil {
		t.Error("Add with an invalid UTF-8 key should fail")
	}
	if ok, err := s.Modify(ctx, "k", "bad\x80"); err == nil || ok {
		t.Errorf("Modify with an invalid UTF-8 value = %v, %v; want false and an error", ok, err)
	}
	if ok, err := s.Modify(ctx, "\xff", "v"); err == nil || ok {
		t.Errorf("Modify with an invalid UTF-8 key = %v, %v; want false and an error", ok, err)
	}

	WantGet(t, s, "k", "valid", true)
	WantGet(t, s, "\xff", "", false)
	if diff := cmp.Diff(map[string]string{"k": "valid"}, MustList(t, s)); diff != "" {
		t.Errorf("rejected writes changed the store (-want +got):\n%s", diff)
	}
}

func testWalkthrough(t *testing.T, s kvcache.Store) {
	ctx := context.Background()

	MustAdd(t, s, "a", "x")
	MustAdd(t, s, "b", "y")
	if diff := cmp.Diff(map[string]string{"a": "x", "b": "y"}, MustList(t, s)); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	deleted, err := s.Delete(ctx, "a")
	if err != nil || !deleted {
		t.Fatalf("Delete(a) = %v, %v; want true, nil", deleted, err)
	}
	if diff := cmp.Diff(map[string]string{"b": "y"}, MustList(t, s)); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	modified, err := s.Modify(ctx, "b", "z")
	if err != nil || !modified {
		t.Fatalf("Modify(b) = %v, %v; want true, nil", modified, err)
	}
	WantGet(t, s, "b", "z", true)

	modified, err = s.Modify(ctx, "c", "w")
	if err != nil || modified {
		t.Fatalf("Modify(c) = %v, %v; want false, nil", modified, err)
	}
	WantGet(t, s, "c", "", false)
}
