// Package encode implements the repository's encoder pipeline: compress,
// then encrypt-and-authenticate. Each stage is independently selectable,
// including "none". Decoding fails with repoerr.ErrInvalidData when the
// authentication tag does not verify or the compressed stream is
// malformed.
package encode

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/chacha20poly1305"

	"objrepo/internal/repoerr"
)

// Compression selects the compression stage of the pipeline.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// Encryption selects the encrypt-and-authenticate stage of the pipeline.
type Encryption int

const (
	EncryptionNone Encryption = iota
	EncryptionChaCha20Poly1305
)

// Pipeline bundles a compression and encryption choice with the master
// key material used for authenticated encryption. It is safe for
// concurrent Encode calls but not for concurrent mutation of the key
// (there is none; Key is immutable after construction).
type Pipeline struct {
	Compression Compression
	Encryption  Encryption
	Key         []byte // 32 bytes, required unless Encryption == EncryptionNone

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// New constructs a Pipeline, preparing any reusable zstd encoder/decoder
// state. The returned Pipeline must not be copied after first use.
func New(compression Compression, encryption Encryption, key []byte) (*Pipeline, error) {
	p := &Pipeline{Compression: compression, Encryption: encryption, Key: key}
	if encryption != EncryptionNone && len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encode: key must be %d bytes for encryption: %w", chacha20poly1305.KeySize, repoerr.ErrInvalidData)
	}
	if compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("encode: init zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("encode: init zstd decoder: %w", err)
		}
		p.encoder = enc
		p.decoder = dec
	}
	return p, nil
}

// Close releases any resources held by the pipeline's zstd decoder.
func (p *Pipeline) Close() {
	if p.decoder != nil {
		p.decoder.Close()
	}
}

// Encode runs plaintext through compress-then-encrypt-and-authenticate and
// returns the opaque result suitable for storage.
func (p *Pipeline) Encode(plaintext []byte) ([]byte, error) {
	data := plaintext

	switch p.Compression {
	case CompressionZstd:
		data = p.encoder.EncodeAll(data, make([]byte, 0, len(data)))
	case CompressionNone:
	default:
		return nil, fmt.Errorf("encode: unknown compression mode %d", p.Compression)
	}

	switch p.Encryption {
	case EncryptionChaCha20Poly1305:
		aead, err := chacha20poly1305.New(p.Key)
		if err != nil {
			return nil, fmt.Errorf("encode: init aead: %w", err)
		}
		nonce := make([]byte, aead.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("encode: generate nonce: %w", err)
		}
		sealed := aead.Seal(nil, nonce, data, nil)
		out := make([]byte, 0, len(nonce)+len(sealed))
		out = append(out, nonce...)
		out = append(out, sealed...)
		data = out
	case EncryptionNone:
	default:
		return nil, fmt.Errorf("encode: unknown encryption mode %d", p.Encryption)
	}

	return data, nil
}

// Decode inverts Encode. It returns an error wrapping
// repoerr.ErrInvalidData if the authentication tag fails to verify or the
// compressed stream is malformed.
func (p *Pipeline) Decode(encoded []byte) ([]byte, error) {
	data := encoded

	switch p.Encryption {
	case EncryptionChaCha20Poly1305:
		aead, err := chacha20poly1305.New(p.Key)
		if err != nil {
			return nil, fmt.Errorf("encode: init aead: %w", err)
		}
		if len(data) < aead.NonceSize() {
			return nil, fmt.Errorf("encode: ciphertext too short: %w", repoerr.ErrInvalidData)
		}
		nonce, sealed := data[:aead.NonceSize()], data[aead.NonceSize():]
		plain, err := aead.Open(nil, nonce, sealed, nil)
		if err != nil {
			return nil, fmt.Errorf("encode: authentication failed: %w", repoerr.ErrInvalidData)
		}
		data = plain
	case EncryptionNone:
	default:
		return nil, fmt.Errorf("encode: unknown encryption mode %d", p.Encryption)
	}

	switch p.Compression {
	case CompressionZstd:
		plain, err := p.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("encode: decompress: %w", repoerr.ErrInvalidData)
		}
		data = plain
	case CompressionNone:
	default:
		return nil, fmt.Errorf("encode: unknown compression mode %d", p.Compression)
	}

	return data, nil
}
