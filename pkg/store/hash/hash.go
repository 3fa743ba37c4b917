// Package hash maps cache keys to fixed-length, filesystem-safe digests.
package hash

import (
	"crypto/sha256"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hasher produces a fixed-size, collision-resistant digest of a key.
type Hasher interface {
	// Sum returns the digest of data. The result is always Size() bytes long.
	Sum(data []byte) []byte

	// Size returns the digest length in bytes.
	Size() int

	// Name identifies the algorithm in configuration and logs.
	Name() string
}

// ByName returns the hasher registered under name.
// An empty name selects BLAKE3.
func ByName(name string) (Hasher, error) {
	switch name {
	case "", "blake3":
		return BLAKE3(), nil
	case "sha256":
		return SHA256(), nil
	default:
		return nil, fmt.Errorf("unknown hash %q (want blake3 or sha256)", name)
	}
}

type blake3h struct{}

// BLAKE3 returns a hasher producing 32-byte BLAKE3 digests.
func BLAKE3() Hasher { return blake3h{} }

func (blake3h) Sum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}
func (blake3h) Size() int    { return 32 }
func (blake3h) Name() string { return "blake3" }

type sha256h struct{}

// SHA256 returns a hasher producing 32-byte SHA-256 digests.
func SHA256() Hasher { return sha256h{} }

func (sha256h) Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
func (sha256h) Size() int    { return sha256.Size }
func (sha256h) Name() string { return "sha256" }
