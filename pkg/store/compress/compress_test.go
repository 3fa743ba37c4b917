package compress

import (
	"bytes"
	"strings"
	"testing"
)

func TestCompressors(t *testing.T) {
	payload := []byte(strings.Repeat(`{"key":"user:123","value":"some repeated text"}`, 32))

	for _, name := range []string{"none", "s2", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			if err != nil {
				t.Fatalf("ByName(%q): %v", name, err)
			}

			enc, err := c.Encode(payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if name != "none" && len(enc) >= len(payload) {
				t.Errorf("%s did not shrink repetitive input: %d >= %d", name, len(enc), len(payload))
			}

			dec, err := c.Decode(enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(dec, payload) {
				t.Error("decoded payload differs from input")
			}
		})
	}
}

func TestByName_Unknown(t *testing.T) {
	if _, err := ByName("brotli"); err == nil {
		t.Fatal("ByName(brotli) should fail")
	}
	c, err := ByName("")
	if err != nil {
		t.Fatalf("ByName(\"\"): %v", err)
	}
	if c != None() {
		t.Errorf("empty name should select None, got %T", c)
	}
}

func TestDecode_Garbage(t *testing.T) {
	garbage := []byte("definitely not compressed")
	for _, c := range []Compressor{S2(), Zstd(1), LZ4()} {
		if _, err := c.Decode(garbage); err == nil {
			t.Errorf("%T.Decode(garbage) should fail", c)
		}
	}
}
