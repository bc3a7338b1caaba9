package metadata

import (
	"bytes"
	"testing"

	"github.com/google/uuid"

	"objrepo/internal/encode"
)

// sealWith/openWith adapt an encode.Pipeline (used only for its AEAD
// stage, with compression disabled) to the Sealer/Opener closures
// Metadata expects.
func sealWith(t *testing.T) Sealer {
	t.Helper()
	return func(key, plaintext []byte) ([]byte, error) {
		p, err := encode.New(encode.CompressionNone, encode.EncryptionChaCha20Poly1305, key)
		if err != nil {
			return nil, err
		}
		return p.Encode(plaintext)
	}
}

func openWith(t *testing.T) Opener {
	t.Helper()
	return func(key, ciphertext []byte) ([]byte, error) {
		p, err := encode.New(encode.CompressionNone, encode.EncryptionChaCha20Poly1305, key)
		if err != nil {
			return nil, err
		}
		return p.Decode(ciphertext)
	}
}

func TestNewAndUnsealRoundTrip(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x42}, 32)

	m, err := New(uuid.New(), "correct horse", masterKey, DefaultKeyDerivationParams, Packing{}, sealWith(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := m.Unseal("correct horse", openWith(t))
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !bytes.Equal(got, masterKey) {
		t.Fatalf("got %x, want %x", got, masterKey)
	}
}

func TestUnsealWrongPasswordFails(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x42}, 32)
	m, err := New(uuid.New(), "correct horse", masterKey, DefaultKeyDerivationParams, Packing{}, sealWith(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := m.Unseal("wrong password", openWith(t)); err == nil {
		t.Fatalf("expected error unsealing with wrong password")
	}
}

func TestChangePasswordRotatesSaltAndKey(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x7, 0x7}, 16)
	m, err := New(uuid.New(), "old-password", masterKey, DefaultKeyDerivationParams, Packing{}, sealWith(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	oldSalt := append([]byte(nil), m.Salt...)

	rotated, err := m.ChangePassword("new-password", masterKey, sealWith(t))
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if bytes.Equal(rotated.Salt, oldSalt) {
		t.Fatalf("expected salt to rotate")
	}

	if _, err := rotated.Unseal("old-password", openWith(t)); err == nil {
		t.Fatalf("expected old password to fail after rotation")
	}
	got, err := rotated.Unseal("new-password", openWith(t))
	if err != nil {
		t.Fatalf("Unseal with new password: %v", err)
	}
	if !bytes.Equal(got, masterKey) {
		t.Fatalf("got %x, want %x", got, masterKey)
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	masterKey := bytes.Repeat([]byte{0x9}, 32)
	m, err := New(uuid.New(), "pw", masterKey, DefaultKeyDerivationParams, Packing{}, sealWith(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	m.HeaderID = uuid.New()

	data, err := Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.RepoID != m.RepoID || got.HeaderID != m.HeaderID || !bytes.Equal(got.Salt, m.Salt) || !bytes.Equal(got.EncryptedKey, m.EncryptedKey) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestUnmarshalCorruptDataFails(t *testing.T) {
	if _, err := Unmarshal([]byte{0xFF, 0xFF, 0xFF}); err == nil {
		t.Fatalf("expected error unmarshaling corrupt data")
	}
}
