// Package compress provides compression algorithms for kvcache entry files.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compressor compresses and decompresses data.
type Compressor interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

// ByName returns the compressor registered under name.
// An empty name selects None.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", "none":
		return None(), nil
	case "s2":
		return S2(), nil
	case "zstd":
		return Zstd(2), nil
	case "lz4":
		return LZ4(), nil
	default:
		return nil, fmt.Errorf("unknown compression %q (want none, s2, zstd or lz4)", name)
	}
}

type none struct{}

// None returns a pass-through compressor (no compression).
func None() Compressor { return none{} }

func (none) Encode(data []byte) ([]byte, error) { return data, nil }
func (none) Decode(data []byte) ([]byte, error) { return data, nil }

type s2c struct{}

// S2 returns a fast compressor using S2 (improved Snappy).
func S2() Compressor { return s2c{} }

func (s2c) Encode(data []byte) ([]byte, error) { return s2.Encode(nil, data), nil }
func (s2c) Decode(data []byte) ([]byte, error) { return s2.Decode(nil, data) }

type zstdc struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Zstd returns a compressor using Zstandard.
// Level: 1 (fastest) to 4 (best compression).
func Zstd(level int) Compressor {
	lvl := zstd.SpeedDefault
	if level <= 1 {
		lvl = zstd.SpeedFastest
	} else if level >= 4 {
		lvl = zstd.SpeedBestCompression
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl)) //nolint:errcheck // options are valid
	dec, _ := zstd.NewReader(nil)                             //nolint:errcheck // options are valid
	return &zstdc{enc: enc, dec: dec}
}

func (z *zstdc) Encode(data []byte) ([]byte, error) { return z.enc.EncodeAll(data, nil), nil }
func (z *zstdc) Decode(data []byte) ([]byte, error) { return z.dec.DecodeAll(data, nil) }

type lz4c struct{}

// LZ4 returns a compressor using the LZ4 frame format.
func LZ4() Compressor { return lz4c{} }

func (lz4c) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4c) Decode(data []byte) ([]byte, error) {
	out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("lz4 read: %w", err)
	}
	return out, nil
}
