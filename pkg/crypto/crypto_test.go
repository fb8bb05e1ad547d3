package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSalt(t *testing.T) []byte {
	t.Helper()
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltLength)
	return salt
}

// fastParams keeps Argon2 cheap in tests; the production cost profile is
// exercised once in TestDeriveKeyDefaultParams.
var fastParams = Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := testSalt(t)
	password := []byte("correct horse battery staple")

	key1 := DeriveKey(password, salt, fastParams)
	key2 := DeriveKey(password, salt, fastParams)

	assert.Len(t, key1, KeyLength)
	assert.Equal(t, key1, key2, "same password and salt must derive the same key")
}

func TestDeriveKeyInputSensitivity(t *testing.T) {
	salt := testSalt(t)
	otherSalt := testSalt(t)
	password := []byte("correct horse battery staple")

	base := DeriveKey(password, salt, fastParams)

	tests := []struct {
		name  string
		other []byte
	}{
		{"different salt", DeriveKey(password, otherSalt, fastParams)},
		{"different password", DeriveKey([]byte("Correct horse battery staple"), salt, fastParams)},
		{"different cost", DeriveKey(password, salt, Params{Time: 2, MemoryKiB: 8 * 1024, Threads: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, base, tt.other)
		})
	}
}

func TestDeriveKeyDefaultParams(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full-cost Argon2 in short mode")
	}
	salt := testSalt(t)
	key := DeriveKey([]byte("a long master password here"), salt, DefaultParams())
	assert.Len(t, key, KeyLength)
}

func TestParamsValid(t *testing.T) {
	assert.True(t, DefaultParams().Valid())
	assert.False(t, Params{}.Valid())
	assert.False(t, Params{Time: 1, MemoryKiB: 0, Threads: 1}.Valid())
}

func TestExpandKeyPurposeSeparation(t *testing.T) {
	master, err := RandomBytes(KeyLength)
	require.NoError(t, err)

	entry, err := ExpandKey(master, InfoEntryKey)
	require.NoError(t, err)
	verify, err := ExpandKey(master, InfoVerifyKey)
	require.NoError(t, err)

	assert.Len(t, entry, KeyLength)
	assert.Len(t, verify, KeyLength)
	assert.NotEqual(t, entry, verify, "subkeys for different purposes must differ")
	assert.NotEqual(t, master, entry, "subkey must not equal the master key")

	// Expansion is deterministic per purpose.
	entry2, err := ExpandKey(master, InfoEntryKey)
	require.NoError(t, err)
	assert.Equal(t, entry, entry2)
}

func TestExpandKeyInvalidMaster(t *testing.T) {
	_, err := ExpandKey(make([]byte, 16), InfoEntryKey)
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := RandomBytes(KeyLength)
	require.NoError(t, err)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"short", []byte("p@ss1234567890!")},
		{"empty", []byte{}},
		{"unicode", []byte("pässwörd 料金 🔐")},
		{"json", []byte(`{"username":"bob","notes":"line1\nline2"}`)},
		{"binary", bytes.Repeat([]byte{0x00, 0xff, 0x7f}, 300)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encrypt(key, tt.plaintext)
			require.NoError(t, err)
			require.GreaterOrEqual(t, len(blob), NonceLength+16, "blob must carry nonce and tag")

			plaintext, err := Decrypt(key, blob)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, plaintext)
		})
	}
}

func TestEncryptFreshNonce(t *testing.T) {
	key, err := RandomBytes(KeyLength)
	require.NoError(t, err)
	plaintext := []byte("same plaintext")

	blob1, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	blob2, err := Encrypt(key, plaintext)
	require.NoError(t, err)

	assert.NotEqual(t, blob1, blob2, "fresh nonce per call must randomize the blob")
	assert.NotEqual(t, blob1[:NonceLength], blob2[:NonceLength])
}

func TestDecryptFailures(t *testing.T) {
	key, err := RandomBytes(KeyLength)
	require.NoError(t, err)
	wrongKey, err := RandomBytes(KeyLength)
	require.NoError(t, err)

	blob, err := Encrypt(key, []byte("sensitive"))
	require.NoError(t, err)

	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)-1] ^= 0x01

	flippedNonce := append([]byte(nil), blob...)
	flippedNonce[0] ^= 0x01

	tests := []struct {
		name    string
		key     []byte
		blob    []byte
		wantErr error
	}{
		{"wrong key", wrongKey, blob, ErrDecryptionFailed},
		{"tampered ciphertext", key, tampered, ErrDecryptionFailed},
		{"tampered nonce", key, flippedNonce, ErrDecryptionFailed},
		{"truncated blob", key, blob[:NonceLength+4], ErrCiphertextTooShort},
		{"empty blob", key, nil, ErrCiphertextTooShort},
		{"short key", make([]byte, 16), blob, ErrInvalidKeyLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plaintext, err := Decrypt(tt.key, tt.blob)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, plaintext)
		})
	}
}

func TestEncryptInvalidKey(t *testing.T) {
	_, err := Encrypt(make([]byte, 31), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestDeriveKeySet(t *testing.T) {
	salt := testSalt(t)

	ks, err := DeriveKeySet([]byte("a long master password here"), salt, fastParams)
	require.NoError(t, err)
	assert.Len(t, ks.Entry, KeyLength)
	assert.Len(t, ks.Verify, KeyLength)
	assert.NotEqual(t, ks.Entry, ks.Verify)

	// Same inputs rebuild the same key set.
	ks2, err := DeriveKeySet([]byte("a long master password here"), salt, fastParams)
	require.NoError(t, err)
	assert.Equal(t, ks.Entry, ks2.Entry)
	assert.Equal(t, ks.Verify, ks2.Verify)

	_, err = DeriveKeySet([]byte("pw"), make([]byte, 8), fastParams)
	assert.ErrorIs(t, err, ErrInvalidSaltLength)
}

func TestKeySetWipe(t *testing.T) {
	ks, err := DeriveKeySet([]byte("a long master password here"), testSalt(t), fastParams)
	require.NoError(t, err)

	entry := ks.Entry
	verify := ks.Verify
	ks.Wipe()

	assert.Nil(t, ks.Entry)
	assert.Nil(t, ks.Verify)
	assert.Equal(t, make([]byte, KeyLength), entry, "entry subkey must be zeroed")
	assert.Equal(t, make([]byte, KeyLength), verify, "verify subkey must be zeroed")

	// Wiping twice or wiping nil must not panic.
	ks.Wipe()
	var nilSet *KeySet
	nilSet.Wipe()
}

func TestSecureWipe(t *testing.T) {
	b := []byte(strings.Repeat("secret", 10))
	SecureWipe(b)
	assert.Equal(t, make([]byte, len(b)), b)

	SecureWipe(nil) // must not panic
}
