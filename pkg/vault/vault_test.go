package vault

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mossfield13/passctl/pkg/crypto"
)

// testParams keeps Argon2id cheap enough for the test suite while staying
// inside the accepted range.
var testParams = crypto.Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 1}

const testPassword = "correct horse battery staple"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testKeySet(t *testing.T, password string) (*crypto.KeySet, []byte) {
	t.Helper()
	salt, err := crypto.NewSalt()
	require.NoError(t, err)
	keys, err := crypto.DeriveKeySet([]byte(password), salt, testParams)
	require.NoError(t, err)
	return keys, salt
}

func initTestStore(t *testing.T) (*Store, *crypto.KeySet) {
	t.Helper()
	store := newTestStore(t)
	keys, salt := testKeySet(t, testPassword)
	require.NoError(t, store.Init(context.Background(), keys, salt, testParams))
	return store, keys
}

func TestOpenCreatesDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vault.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	initialized, err := store.Initialized(ctx)
	require.NoError(t, err)
	assert.False(t, initialized)
}

func TestOpenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs the migrations again; they must be no-ops.
	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	require.NoError(t, store.CheckIntegrity(ctx))
}

func TestInitAndVerify(t *testing.T) {
	ctx := context.Background()
	store, keys := initTestStore(t)

	initialized, err := store.Initialized(ctx)
	require.NoError(t, err)
	assert.True(t, initialized)

	require.NoError(t, store.VerifyKeys(ctx, keys))

	wrongKeys, _ := testKeySet(t, "not the password at all")
	err = store.VerifyKeys(ctx, wrongKeys)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestInitTwiceFails(t *testing.T) {
	ctx := context.Background()
	store, _ := initTestStore(t)

	keys, salt := testKeySet(t, "another password entirely")
	err := store.Init(ctx, keys, salt, testParams)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestInitValidation(t *testing.T) {
	ctx := context.Background()
	keys, salt := testKeySet(t, testPassword)

	tests := []struct {
		name   string
		salt   []byte
		params crypto.Params
	}{
		{name: "short salt", salt: salt[:8], params: testParams},
		{name: "nil salt", salt: nil, params: testParams},
		{name: "zero time cost", salt: salt, params: crypto.Params{Time: 0, MemoryKiB: 8 * 1024, Threads: 1}},
		{name: "zero memory", salt: salt, params: crypto.Params{Time: 1, MemoryKiB: 0, Threads: 1}},
		{name: "zero threads", salt: salt, params: crypto.Params{Time: 1, MemoryKiB: 8 * 1024, Threads: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			err := store.Init(ctx, keys, tt.salt, tt.params)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	keys, salt := testKeySet(t, testPassword)
	require.NoError(t, store.Init(ctx, keys, salt, testParams))

	meta, err := store.Meta(ctx)
	require.NoError(t, err)
	assert.Equal(t, salt, meta.Salt)
	assert.Equal(t, testParams, meta.Params)
	assert.False(t, meta.CreatedAt.IsZero())
	assert.False(t, meta.UpdatedAt.IsZero())
}

func TestMetaNotInitialized(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Meta(ctx)
	assert.ErrorIs(t, err, ErrNotInitialized)

	keys, _ := testKeySet(t, testPassword)
	err = store.VerifyKeys(ctx, keys)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestVerifySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vault.db")

	store, err := Open(ctx, path)
	require.NoError(t, err)
	keys, salt := testKeySet(t, testPassword)
	require.NoError(t, store.Init(ctx, keys, salt, testParams))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	// Re-derive from the stored metadata, as a fresh process would.
	meta, err := store.Meta(ctx)
	require.NoError(t, err)
	rederived, err := crypto.DeriveKeySet([]byte(testPassword), meta.Salt, meta.Params)
	require.NoError(t, err)
	defer rederived.Wipe()

	require.NoError(t, store.VerifyKeys(ctx, rederived))
}

func TestSnapshotTo(t *testing.T) {
	ctx := context.Background()
	store, keys := initTestStore(t)

	_, err := store.CreateEntry(ctx, keys, EntryFields{
		SiteName: "example.com",
		Username: "alice",
		Password: "s3cret-value",
	})
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, store.SnapshotTo(ctx, dst))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(dst)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	// The snapshot must be a complete, openable vault.
	copied, err := Open(ctx, dst)
	require.NoError(t, err)
	defer copied.Close() //nolint:errcheck

	require.NoError(t, copied.VerifyKeys(ctx, keys))
	entries, err := copied.ListEntries(ctx, keys)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "example.com", entries[0].SiteName)
}

func TestSnapshotToExistingFileFails(t *testing.T) {
	ctx := context.Background()
	store, _ := initTestStore(t)

	dst := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, os.WriteFile(dst, []byte("occupied"), 0o600))

	err := store.SnapshotTo(ctx, dst)
	assert.Error(t, err)
}

func TestCheckIntegrity(t *testing.T) {
	ctx := context.Background()
	store, _ := initTestStore(t)
	require.NoError(t, store.CheckIntegrity(ctx))
}

func TestCheckIntegrityMissingTable(t *testing.T) {
	ctx := context.Background()
	store, _ := initTestStore(t)

	_, err := store.db.ExecContext(ctx, `DROP TABLE login_attempts`)
	require.NoError(t, err)

	err = store.CheckIntegrity(ctx)
	assert.ErrorIs(t, err, ErrCorrupted)
}
