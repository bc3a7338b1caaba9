package encode

import (
	"bytes"
	"errors"
	"testing"

	"objrepo/internal/repoerr"
)

func key32() []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = byte(i)
	}
	return k
}

func TestRoundTripAllCombinations(t *testing.T) {
	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated. " +
		"the quick brown fox jumps over the lazy dog, repeated.")

	cases := []struct {
		name string
		comp Compression
		enc  Encryption
	}{
		{"none-none", CompressionNone, EncryptionNone},
		{"zstd-none", CompressionZstd, EncryptionNone},
		{"none-chacha", CompressionNone, EncryptionChaCha20Poly1305},
		{"zstd-chacha", CompressionZstd, EncryptionChaCha20Poly1305},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.comp, tc.enc, key32())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			defer p.Close()

			encoded, err := p.Encode(plaintext)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := p.Decode(encoded)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(decoded, plaintext) {
				t.Fatalf("round trip mismatch")
			}
		})
	}
}

func TestDecodeTamperedCiphertextFails(t *testing.T) {
	p, err := New(CompressionNone, EncryptionChaCha20Poly1305, key32())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	encoded, err := p.Encode([]byte("secret payload"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	encoded[len(encoded)-1] ^= 0xFF

	if _, err := p.Decode(encoded); !errors.Is(err, repoerr.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}

func TestDecodeCorruptCompressedStreamFails(t *testing.T) {
	p, err := New(CompressionZstd, EncryptionNone, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	garbage := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	if _, err := p.Decode(garbage); !errors.Is(err, repoerr.ErrInvalidData) {
		t.Fatalf("expected ErrInvalidData, got %v", err)
	}
}
