// Package repoerr defines the sentinel errors shared across the repository
// core. Callers use errors.Is against these values; internal packages wrap
// them with fmt.Errorf("...: %w", ...) rather than inventing new error types.
package repoerr

import "errors"

var (
	// ErrIo indicates the underlying store or local I/O failed.
	ErrIo = errors.New("repo: i/o error")

	// ErrStore indicates the DataStore reported an implementation-specific
	// error, surfaced unchanged by the caller of the store.
	ErrStore = errors.New("repo: store error")

	// ErrInvalidData indicates an authentication tag or checksum mismatch.
	ErrInvalidData = errors.New("repo: invalid data")

	// ErrDeserialize indicates a structured decoding failure.
	ErrDeserialize = errors.New("repo: deserialize error")

	// ErrSerialize indicates a structured encoding failure.
	ErrSerialize = errors.New("repo: serialize error")

	// ErrCorrupt indicates a required block referenced by metadata is
	// missing or undecodable. Generally unrecoverable.
	ErrCorrupt = errors.New("repo: corrupt repository")

	// ErrInvalidSavepoint indicates a savepoint UUID is not known to this
	// repository instance or is no longer valid.
	ErrInvalidSavepoint = errors.New("repo: invalid savepoint")

	// ErrPassword indicates the user key failed to decrypt the master key
	// on open.
	ErrPassword = errors.New("repo: incorrect password")

	// ErrAlreadyExists indicates create was called against a store root
	// that already holds a repository.
	ErrAlreadyExists = errors.New("repo: already exists")

	// ErrNotFound indicates open was called against a store root that does
	// not hold a repository, or a requested object does not exist.
	ErrNotFound = errors.New("repo: not found")
)
