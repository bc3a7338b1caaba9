// Package metadata implements the repository's singleton Metadata record:
// repo identity, creation time, key-derivation salt, the AEAD-encrypted
// master key, and a pointer to the current committed header block.
//
// Key derivation is grounded on internal/auth's argon2id usage (the
// teacher's own password-hashing package): the same golang.org/x/crypto/
// argon2 dependency, here deriving a raw symmetric key instead of a PHC
// comparison hash. Marshaling follows internal/superblock's msgpack
// convention, stored as an ordinary store.KindMetadata block (spec §6)
// rather than the superblock's fixed-offset slots, since the metadata
// block's location does not need to be known before block_size is known.
package metadata

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/argon2"

	"objrepo/internal/repoerr"
)

// KeyDerivationParams controls the argon2id cost parameters used to turn
// a user password into a key-wrapping key. Defaults mirror internal/auth's
// OWASP-recommended parameters.
type KeyDerivationParams struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8
}

// DefaultKeyDerivationParams matches internal/auth's argon2id parameters.
var DefaultKeyDerivationParams = KeyDerivationParams{
	Memory:  64 * 1024,
	Time:    3,
	Threads: 4,
}

const masterKeyLen = 32 // chacha20poly1305.KeySize; avoided importing encode to keep metadata a leaf package.
const saltLen = 16

// DeriveUserKey runs argon2id over password and salt with the given cost
// parameters, producing a key-wrapping key of the same length as the
// master key it will wrap.
func DeriveUserKey(password string, salt []byte, params KeyDerivationParams) []byte {
	return argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, masterKeyLen)
}

// Packing mirrors chunkstore.Packing's shape without importing chunkstore,
// so that metadata stays a leaf package; internal/repo converts between
// the two when constructing a chunk store.
type Packing struct {
	Enabled  bool `msgpack:"enabled"`
	PackSize int  `msgpack:"pack_size"`
}

// Metadata is the repository's singleton, rewritten atomically by commit.
type Metadata struct {
	RepoID       uuid.UUID           `msgpack:"repo_id"`
	CreatedAt    time.Time           `msgpack:"created_at"`
	Params       KeyDerivationParams `msgpack:"params"`
	Packing      Packing             `msgpack:"packing"`
	Salt         []byte              `msgpack:"salt"`
	EncryptedKey []byte              `msgpack:"encrypted_key"` // master key, AEAD-sealed under the user key
	HeaderID     uuid.UUID           `msgpack:"header_id"`
}

// sealer and opener are the minimal AEAD surface metadata needs to wrap
// and unwrap the master key under the user key. encode.Pipeline satisfies
// this implicitly; metadata does not import encode to stay a leaf
// package, so callers pass closures instead.
type Sealer func(key, plaintext []byte) ([]byte, error)
type Opener func(key, ciphertext []byte) ([]byte, error)

// New creates a fresh Metadata for a newly initialized repository,
// generating a random salt and sealing masterKey under a key derived from
// password.
func New(repoID uuid.UUID, password string, masterKey []byte, params KeyDerivationParams, packing Packing, seal Sealer) (Metadata, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Metadata{}, fmt.Errorf("metadata: generate salt: %w", err)
	}

	userKey := DeriveUserKey(password, salt, params)
	encrypted, err := seal(userKey, masterKey)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: seal master key: %w", err)
	}

	return Metadata{
		RepoID:       repoID,
		CreatedAt:    timeNow(),
		Params:       params,
		Packing:      packing,
		Salt:         salt,
		EncryptedKey: encrypted,
	}, nil
}

// timeNow exists so tests can substitute a deterministic clock if needed;
// production code always calls it unmodified.
var timeNow = time.Now

// Unseal recovers the master key by deriving the user key from password
// and m.Salt/m.Params and opening m.EncryptedKey. Returns repoerr.ErrPassword
// if the AEAD fails to authenticate, which happens precisely when the
// password is wrong.
func (m Metadata) Unseal(password string, open Opener) ([]byte, error) {
	userKey := DeriveUserKey(password, m.Salt, m.Params)
	masterKey, err := open(userKey, m.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("metadata: unseal master key: %w", repoerr.ErrPassword)
	}
	return masterKey, nil
}

// ChangePassword generates a fresh salt, derives a new user key under the
// same cost parameters, and re-encrypts masterKey under it. It does not
// touch HeaderID; the caller must still commit for the change to persist
// (spec §4.14).
func (m Metadata) ChangePassword(newPassword string, masterKey []byte, seal Sealer) (Metadata, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return Metadata{}, fmt.Errorf("metadata: generate salt: %w", err)
	}

	userKey := DeriveUserKey(newPassword, salt, m.Params)
	encrypted, err := seal(userKey, masterKey)
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata: seal master key: %w", err)
	}

	out := m
	out.Salt = salt
	out.EncryptedKey = encrypted
	return out, nil
}

// Marshal serializes m for storage under store.MetadataBlockID.
func Marshal(m Metadata) ([]byte, error) {
	data, err := msgpack.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("metadata: marshal: %w", repoerr.ErrSerialize)
	}
	return data, nil
}

// Unmarshal deserializes a Metadata record previously produced by Marshal.
func Unmarshal(data []byte) (Metadata, error) {
	var m Metadata
	if err := msgpack.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("metadata: unmarshal: %w", repoerr.ErrDeserialize)
	}
	return m, nil
}
