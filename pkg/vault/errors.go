package vault

import "errors"

// Sentinel errors returned by vault operations. Callers match them with
// errors.Is; messages never reveal whether a failure came from a wrong
// password or tampered data.
var (
	// ErrNotInitialized indicates no vault metadata exists yet.
	ErrNotInitialized = errors.New("vault: not initialized")

	// ErrAlreadyInitialized indicates Init was called on an existing vault.
	ErrAlreadyInitialized = errors.New("vault: already initialized")

	// ErrAuthentication indicates the supplied keys cannot open the vault.
	// Wrong password and tampered ciphertext return the same error.
	ErrAuthentication = errors.New("vault: authentication failed")

	// ErrEntryNotFound indicates the entry id does not exist.
	ErrEntryNotFound = errors.New("vault: entry not found")

	// ErrValidation indicates missing or malformed caller input.
	ErrValidation = errors.New("vault: validation failed")

	// ErrCorrupted indicates the persisted data is unreadable or
	// inconsistent. Fatal: callers must halt further mutation.
	ErrCorrupted = errors.New("vault: storage corrupted")
)
