// Package crypto provides the cryptographic primitives for the passctl
// vault engine.
//
// This package implements AES-256-GCM authenticated encryption and Argon2id
// key derivation following OWASP recommendations. The master password is
// derived into a 256-bit master key, which is then expanded with HKDF-SHA256
// into purpose-bound subkeys so that entry encryption and master-password
// verification never share key material.
//
// # Security Features
//
//   - Argon2id key derivation (64MB memory, 3 iterations, 4 threads)
//   - HKDF-SHA256 subkey separation per purpose
//   - AES-256-GCM authenticated encryption, fresh random nonce per call
//   - Secure memory wiping for key material
//
// Ciphertexts are self-contained blobs: the 12-byte nonce is prepended to
// the GCM output, so a single []byte round-trips through storage.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// Argon2id parameters following OWASP recommendations.
const (
	// Argon2Memory is the default memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the default number of iterations.
	Argon2Time = 3

	// Argon2Threads is the default degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// SaltLength is the length of per-vault salts in bytes.
	SaltLength = 32

	// NonceLength is the length of GCM nonces in bytes (96 bits).
	NonceLength = 12
)

// HKDF info strings binding each subkey to a single purpose.
const (
	// InfoEntryKey labels the subkey that encrypts entry fields.
	InfoEntryKey = "passctl-entry-encryption-v1"

	// InfoVerifyKey labels the subkey that seals the verification token.
	InfoVerifyKey = "passctl-verify-token-v1"
)

// Sentinel errors returned by crypto functions.
var (
	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidSaltLength indicates the salt is not 32 bytes.
	ErrInvalidSaltLength = errors.New("crypto: invalid salt length, must be 32 bytes")

	// ErrDecryptionFailed indicates decryption or authentication tag verification failed.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")

	// ErrCiphertextTooShort indicates the blob is shorter than nonce plus GCM tag.
	ErrCiphertextTooShort = errors.New("crypto: ciphertext too short")
)

// Params holds the Argon2id cost parameters. They are persisted alongside
// the vault salt so that a vault written under one cost profile stays
// readable after the defaults change.
type Params struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultParams returns the current recommended Argon2id cost parameters.
func DefaultParams() Params {
	return Params{Time: Argon2Time, MemoryKiB: Argon2Memory, Threads: Argon2Threads}
}

// Valid reports whether all cost parameters are non-zero.
func (p Params) Valid() bool {
	return p.Time > 0 && p.MemoryKiB > 0 && p.Threads > 0
}

// DeriveKey derives the 256-bit master key from a password using Argon2id.
//
// Deterministic: the same (password, salt, params) triple always yields the
// same key. The salt must be SaltLength bytes of cryptographically secure
// random data (use NewSalt). DeriveKey performs no policy checks; password
// strength rules live in the security package.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.MemoryKiB, p.Threads, KeyLength)
}

// ExpandKey derives a purpose-bound subkey from the master key using
// HKDF-SHA256. The info string must be one of the Info* constants so that
// subkeys for different purposes can never collide.
func ExpandKey(master []byte, info string) ([]byte, error) {
	if len(master) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	r := hkdf.New(sha256.New, master, nil, []byte(info))
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("crypto: failed to expand key: %w", err)
	}
	return key, nil
}

// NewSalt generates a fresh per-vault salt from crypto/rand.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	return salt, nil
}

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("crypto: failed to read random bytes: %w", err)
	}
	return b, nil
}

// Encrypt encrypts plaintext using AES-256-GCM authenticated encryption.
//
// A cryptographically secure random 12-byte nonce is generated per call, so
// identical plaintexts never produce identical blobs. The returned blob is
// nonce || ciphertext-with-tag and is the only artifact that needs storing.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and tag to the nonce, producing a
	// self-contained blob.
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt decrypts a blob produced by Encrypt.
//
// The authentication tag is verified before any plaintext is returned. A
// wrong key and tampered data are indistinguishable: both fail with
// ErrDecryptionFailed.
func Decrypt(key, blob []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}

	if len(blob) < NonceLength+gcm.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := blob[:NonceLength], blob[NonceLength:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
// This is critical for securely destroying derived keys on session end.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
