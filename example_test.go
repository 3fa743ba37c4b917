package kvcache_test

import (
	"context"
	"fmt"
	"os"

	"github.com/codeGROOVE-dev/kvcache"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/kvcache/pkg/store/memory"
)

func ExampleCache_memory() {
	ctx := context.Background()

	cache := kvcache.New(memory.New())
	defer cache.Close()

	if err := cache.Add(ctx, "answer", "42"); err != nil {
		panic(err)
	}

	val, found, _ := cache.Get(ctx, "answer")
	if found {
		fmt.Printf("The answer is %s\n", val)
	}

	// Output: The answer is 42
}

func ExampleCache_localfs() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "kvcache-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	store, err := localfs.New(dir)
	if err != nil {
		panic(err)
	}
	cache := kvcache.New(store)

	if err := cache.Add(ctx, "b", "y"); err != nil {
		panic(err)
	}
	modified, _ := cache.Modify(ctx, "b", "z")
	missing, _ := cache.Modify(ctx, "c", "w")
	cache.Close()

	// A fresh store over the same directory sees the committed entries.
	reopened, err := localfs.New(dir)
	if err != nil {
		panic(err)
	}
	val, found, _ := kvcache.New(reopened).Get(ctx, "b")
	fmt.Println(modified, missing, val, found)

	// Output: true false z true
}
